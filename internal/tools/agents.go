package tools

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/alanpac24/Vibebusiness/internal/catalog"
	"github.com/alanpac24/Vibebusiness/internal/errinfo"
	"github.com/alanpac24/Vibebusiness/internal/models"
	"github.com/alanpac24/Vibebusiness/internal/resolver"
	"github.com/alanpac24/Vibebusiness/internal/session"
)

// AgentTools holds references needed by the agent tool handlers.
type AgentTools struct {
	Catalog *catalog.Catalog
	Session *session.Session
	Logger  *slog.Logger
}

// --- Input types ---

type ListAgentsInput struct {
	Category string `json:"category,omitempty" jsonschema:"Only list agents in this category: PRODUCT, MARKET, GROWTH, or FINANCE"`
}

type GetAgentStatusInput struct {
	AgentID string `json:"agent_id,omitempty" jsonschema:"Agent to inspect; omit for the whole board"`
}

type RunAgentInput struct {
	AgentID string         `json:"agent_id" jsonschema:"Id of the agent to run"`
	Input   map[string]any `json:"input,omitempty" jsonschema:"Optional user input; idea-refiner reads idea, business_name and target_market"`
}

type SaveAgentOutputInput struct {
	AgentID  string                 `json:"agent_id" jsonschema:"Id of the agent whose result is recorded"`
	Data     map[string]any         `json:"data" jsonschema:"Agent result document; include a summary field"`
	Metadata *models.OutputMetadata `json:"metadata,omitempty" jsonschema:"Optional token and timing metadata"`
	Update   *ContextFields         `json:"update,omitempty" jsonschema:"Optional business context fields written with the output"`
}

// --- Output types ---

type agentView struct {
	catalog.Agent
	State     resolver.State `json:"state"`
	BlockedBy []string       `json:"blocked_by,omitempty"`
	Running   bool           `json:"running,omitempty"`
}

// --- Handlers ---

func (t *AgentTools) ListAgents(ctx context.Context, _ *mcp.CallToolRequest, input ListAgentsInput) (*mcp.CallToolResult, any, error) {
	ui, err := t.Session.UIState(ctx)
	if err != nil {
		return t.fail("list agents", err), nil, nil
	}
	views := []agentView{}
	for _, a := range t.Catalog.Agents {
		if input.Category != "" && a.Category != input.Category {
			continue
		}
		views = append(views, view(a, ui))
	}
	return toolJSON(views)
}

func (t *AgentTools) GetAgentStatus(ctx context.Context, _ *mcp.CallToolRequest, input GetAgentStatusInput) (*mcp.CallToolResult, any, error) {
	ui, err := t.Session.UIState(ctx)
	if err != nil {
		return t.fail("get agent status", err), nil, nil
	}
	if input.AgentID == "" {
		return toolJSON(ui)
	}
	a, ok := t.Catalog.Lookup(input.AgentID)
	if !ok {
		return t.fail("get agent status", errinfo.UnknownAgent(input.AgentID)), nil, nil
	}
	return toolJSON(view(a, ui))
}

func (t *AgentTools) RunAgent(ctx context.Context, _ *mcp.CallToolRequest, input RunAgentInput) (*mcp.CallToolResult, any, error) {
	res, err := t.Session.RunAgent(ctx, input.AgentID, input.Input)
	if err != nil {
		return t.fail("run agent", err), nil, nil
	}
	return toolJSON(res)
}

func (t *AgentTools) SaveAgentOutput(ctx context.Context, _ *mcp.CallToolRequest, input SaveAgentOutputInput) (*mcp.CallToolResult, any, error) {
	if input.Data == nil {
		return t.fail("save agent output", errinfo.ValidationFailed(errinfo.PhaseSession, "data is required")), nil, nil
	}
	data, err := json.Marshal(input.Data)
	if err != nil {
		return t.fail("save agent output", errinfo.ValidationFailed(errinfo.PhaseSession, err.Error())), nil, nil
	}
	var update *models.ContextUpdate
	if input.Update != nil {
		u := input.Update.toUpdate()
		update = &u
	}
	rev, err := t.Session.SaveAgentOutput(ctx, input.AgentID, data, input.Metadata, update)
	if err != nil {
		return t.fail("save agent output", err), nil, nil
	}
	return toolJSON(rev)
}

func (t *AgentTools) fail(op string, err error) *mcp.CallToolResult {
	return toolFailure(t.Logger, op, err)
}

func view(a catalog.Agent, ui resolver.AgentUIState) agentView {
	return agentView{
		Agent:     a,
		State:     ui.StateOf(a.ID),
		BlockedBy: ui.BlockedBy[a.ID],
		Running:   ui.CurrentAgent == a.ID,
	}
}
