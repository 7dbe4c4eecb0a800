package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/alanpac24/Vibebusiness/internal/agents"
	"github.com/alanpac24/Vibebusiness/internal/catalog"
	"github.com/alanpac24/Vibebusiness/internal/models"
	"github.com/alanpac24/Vibebusiness/internal/resolver"
	"github.com/alanpac24/Vibebusiness/internal/server"
	"github.com/alanpac24/Vibebusiness/internal/session"
	"github.com/alanpac24/Vibebusiness/internal/storage"
)

type harness struct {
	store *storage.Store
	deps  server.Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return &harness{store: store, deps: newDeps(t, store)}
}

// newDeps builds fresh sessions over store, as a restarted process would.
func newDeps(t *testing.T, store *storage.Store) server.Deps {
	t.Helper()
	c := catalog.MustDefault()
	reg, err := agents.DefaultRegistry(c)
	if err != nil {
		t.Fatal(err)
	}
	return server.Deps{
		Catalog:  c,
		Store:    store,
		Sessions: session.NewManager(store, c, reg, nil),
	}
}

// connect creates a real MCP server for userID with in-memory transport and
// returns a connected client session.
func connect(t *testing.T, deps server.Deps, userID string) *mcp.ClientSession {
	t.Helper()
	srv := server.New(deps, userID)

	ctx := context.Background()
	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	if _, err := srv.Connect(ctx, serverTransport, nil); err != nil {
		t.Fatalf("server connect: %v", err)
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { cs.Close() })
	return cs
}

// callTool is a helper that calls a tool and returns the text content.
func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) string {
	t.Helper()
	result, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent, got %T", name, result.Content[0])
	}
	if result.IsError {
		t.Fatalf("CallTool(%s) returned error: %s", name, tc.Text)
	}
	return tc.Text
}

// callToolExpectError calls a tool and expects an error response (IsError=true).
func callToolExpectError(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) string {
	t.Helper()
	result, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): protocol error: %v", name, err)
	}
	tc := result.Content[0].(*mcp.TextContent)
	if !result.IsError {
		t.Fatalf("CallTool(%s): expected error but got success: %s", name, tc.Text)
	}
	return tc.Text
}

func decode[T any](t *testing.T, text string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		t.Fatalf("parse %q: %v", text, err)
	}
	return v
}

type runResult struct {
	Summary string             `json:"summary"`
	Updated []string           `json:"updated_fields"`
	Output  models.AgentOutput `json:"output"`
	Rerun   bool               `json:"rerun"`
	Diff    *struct {
		Added   int `json:"added"`
		Removed int `json:"removed"`
	} `json:"diff"`
	UIState resolver.AgentUIState `json:"ui_state"`
}

func TestIntegration_ListTools(t *testing.T) {
	cs := connect(t, newHarness(t).deps, "alice")

	result, err := cs.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}

	expectedTools := []string{
		"list_agents", "get_agent_status", "run_agent", "save_agent_output",
		"get_context", "refetch_context", "save_context",
		"get_project", "list_projects", "create_project", "set_project_status",
	}

	toolNames := make(map[string]bool)
	for _, tool := range result.Tools {
		toolNames[tool.Name] = true
	}
	for _, name := range expectedTools {
		if !toolNames[name] {
			t.Errorf("Missing tool: %s", name)
		}
	}
	if len(result.Tools) != len(expectedTools) {
		t.Errorf("Expected %d tools, got %d", len(expectedTools), len(result.Tools))
	}
}

func TestIntegration_AgentWorkflow(t *testing.T) {
	h := newHarness(t)
	cs := connect(t, h.deps, "alice")

	// Step 1: first access creates the default project.
	proj := decode[models.Project](t, callTool(t, cs, "get_project", nil))
	if proj.Name != storage.DefaultProjectName || proj.Status != models.StatusActive {
		t.Errorf("project = %+v", proj)
	}

	// Step 2: only agents without prerequisites are available.
	ui := decode[resolver.AgentUIState](t, callTool(t, cs, "get_agent_status", nil))
	if len(ui.CompletedAgents) != 0 || len(ui.AvailableAgents) != 1 || ui.AvailableAgents[0] != agents.IdeaRefinerID {
		t.Errorf("initial ui = %+v", ui)
	}

	// Step 3: a locked agent is refused with its missing prerequisites.
	text := callToolExpectError(t, cs, "run_agent", map[string]any{"agent_id": agents.MarketResearchID})
	if !strings.Contains(text, "AGENT_LOCKED") || !strings.Contains(text, agents.IdeaRefinerID) {
		t.Errorf("locked error = %s", text)
	}

	// Step 4: run the idea refiner.
	res := decode[runResult](t, callTool(t, cs, "run_agent", map[string]any{
		"agent_id": agents.IdeaRefinerID,
		"input":    map[string]any{"idea": "Scheduling software for dog groomers", "business_name": "Groomly"},
	}))
	if res.Summary == "" || res.Rerun {
		t.Errorf("idea-refiner result = %+v", res)
	}
	if len(res.Updated) == 0 || res.Updated[0] != models.FieldCompanyProfile {
		t.Errorf("updated fields = %v", res.Updated)
	}
	if res.UIState.StateOf(agents.MarketResearchID) != resolver.StateAvailable {
		t.Errorf("market-research not unlocked: %+v", res.UIState)
	}

	// Step 5: market research now runs and fills market intelligence.
	res = decode[runResult](t, callTool(t, cs, "run_agent", map[string]any{"agent_id": agents.MarketResearchID}))
	if !strings.Contains(res.Summary, "TAM") {
		t.Errorf("market-research summary = %q", res.Summary)
	}

	bc := decode[models.BusinessContext](t, callTool(t, cs, "get_context", nil))
	if bc.CompanyProfile.BusinessName != "Groomly" {
		t.Errorf("BusinessName = %q", bc.CompanyProfile.BusinessName)
	}
	if bc.MarketIntelligence == nil || bc.MarketIntelligence.MarketSize == nil || len(bc.MarketIntelligence.Competitors) == 0 {
		t.Errorf("market intelligence = %+v", bc.MarketIntelligence)
	}
	if len(bc.AgentOutputs) != 2 {
		t.Errorf("agent outputs = %d, want 2", len(bc.AgentOutputs))
	}

	// Step 6: re-running reports a revision.
	res = decode[runResult](t, callTool(t, cs, "run_agent", map[string]any{"agent_id": agents.MarketResearchID}))
	if !res.Rerun || res.Diff == nil {
		t.Errorf("rerun = %v, diff = %+v", res.Rerun, res.Diff)
	}

	// Step 7: record external results to unlock pricing.
	for _, id := range []string{"customer-personas", "competitor-map"} {
		callTool(t, cs, "save_agent_output", map[string]any{
			"agent_id": id,
			"data":     map[string]any{"summary": id + " recorded"},
			"metadata": map[string]any{"tokens_used": 42},
		})
	}
	res = decode[runResult](t, callTool(t, cs, "run_agent", map[string]any{"agent_id": agents.PricingStrategyID}))
	if !strings.Contains(res.Summary, "14-day free trial") {
		t.Errorf("pricing summary = %q", res.Summary)
	}

	bc = decode[models.BusinessContext](t, callTool(t, cs, "get_context", nil))
	ops := bc.BusinessOperations
	if ops == nil || ops.Financials == nil || ops.Financials.Pricing == nil || ops.Financials.Pricing.Model != "tiered-subscription" {
		t.Fatalf("business operations = %+v", ops)
	}

	// Step 8: a restarted process sees the same state.
	cs2 := connect(t, newDeps(t, h.store), "alice")
	again := decode[models.BusinessContext](t, callTool(t, cs2, "get_context", nil))
	if again.ProjectID != bc.ProjectID || len(again.AgentOutputs) != len(bc.AgentOutputs) {
		t.Errorf("reloaded context differs: %d outputs, project %s", len(again.AgentOutputs), again.ProjectID)
	}
	ui = decode[resolver.AgentUIState](t, callTool(t, cs2, "get_agent_status", nil))
	if ui.StateOf(agents.PricingStrategyID) != resolver.StateCompleted {
		t.Errorf("pricing-strategy state after reload = %q", ui.StateOf(agents.PricingStrategyID))
	}
}

func TestIntegration_SaveContext(t *testing.T) {
	cs := connect(t, newHarness(t).deps, "alice")

	callTool(t, cs, "save_context", map[string]any{
		"company_profile": map[string]any{"business_name": "Groomly", "mission_statement": "Happy dogs"},
		"market_intelligence": map[string]any{
			"market_size": map[string]any{"tam": 1000.0, "sam": 100.0, "som": 10.0, "currency": "USD"},
		},
	})
	bc := decode[models.BusinessContext](t, callTool(t, cs, "save_context", map[string]any{
		"company_profile": map[string]any{"target_market": "Independent groomers"},
	}))
	p := bc.CompanyProfile
	if p.BusinessName != "Groomly" || p.MissionStatement != "Happy dogs" || p.TargetMarket != "Independent groomers" {
		t.Errorf("profile = %+v", p)
	}
	if bc.MarketIntelligence == nil || bc.MarketIntelligence.MarketSize.TAM != 1000 {
		t.Errorf("market intelligence = %+v", bc.MarketIntelligence)
	}

	text := callToolExpectError(t, cs, "save_context", map[string]any{})
	if !strings.Contains(text, "VALIDATION_FAILED") {
		t.Errorf("empty update error = %s", text)
	}

	ui := decode[resolver.AgentUIState](t, callTool(t, cs, "refetch_context", nil))
	if len(ui.CompletedAgents) != 0 {
		t.Errorf("context saves must not complete agents: %v", ui.CompletedAgents)
	}
}

func TestIntegration_Projects(t *testing.T) {
	h := newHarness(t)
	alice := connect(t, h.deps, "alice")
	bob := connect(t, h.deps, "bob")

	first := decode[models.Project](t, callTool(t, alice, "get_project", nil))

	// Only one active project per user.
	text := callToolExpectError(t, alice, "create_project", map[string]any{"name": "Second"})
	if !strings.Contains(text, "VALIDATION_FAILED") {
		t.Errorf("duplicate active error = %s", text)
	}

	callTool(t, alice, "set_project_status", map[string]any{"project_id": first.ID, "status": models.StatusArchived})
	second := decode[models.Project](t, callTool(t, alice, "create_project", map[string]any{"name": "Second"}))
	if second.Name != "Second" || second.Status != models.StatusActive {
		t.Errorf("second = %+v", second)
	}
	current := decode[models.Project](t, callTool(t, alice, "get_project", nil))
	if current.ID != second.ID {
		t.Errorf("active project = %s, want %s", current.ID, second.ID)
	}

	all := decode[[]models.Project](t, callTool(t, alice, "list_projects", map[string]any{"status": "all"}))
	if len(all) != 2 {
		t.Errorf("alice has %d projects, want 2", len(all))
	}
	archived := decode[[]models.Project](t, callTool(t, alice, "list_projects", map[string]any{"status": models.StatusArchived}))
	if len(archived) != 1 || archived[0].ID != first.ID {
		t.Errorf("archived = %+v", archived)
	}

	// Bob sees none of alice's projects and cannot touch them.
	bobs := decode[[]models.Project](t, callTool(t, bob, "list_projects", nil))
	if len(bobs) != 0 {
		t.Errorf("bob sees %d projects", len(bobs))
	}
	text = callToolExpectError(t, bob, "set_project_status", map[string]any{"project_id": first.ID, "status": models.StatusActive})
	if !strings.Contains(text, "PROJECT_NOT_FOUND") {
		t.Errorf("foreign project error = %s", text)
	}
	text = callToolExpectError(t, alice, "set_project_status", map[string]any{"project_id": second.ID, "status": "deleted"})
	if !strings.Contains(text, "VALIDATION_FAILED") {
		t.Errorf("bad status error = %s", text)
	}
}

func TestIntegration_AgentCatalog(t *testing.T) {
	cs := connect(t, newHarness(t).deps, "alice")

	type agentView struct {
		ID        string         `json:"id"`
		Category  string         `json:"category"`
		State     resolver.State `json:"state"`
		BlockedBy []string       `json:"blocked_by"`
	}
	all := decode[[]agentView](t, callTool(t, cs, "list_agents", nil))
	if len(all) != catalog.MustDefault().Len() {
		t.Errorf("list_agents returned %d agents", len(all))
	}
	finance := decode[[]agentView](t, callTool(t, cs, "list_agents", map[string]any{"category": "FINANCE"}))
	for _, a := range finance {
		if a.Category != "FINANCE" || a.State != resolver.StateLocked || len(a.BlockedBy) == 0 {
			t.Errorf("finance agent = %+v", a)
		}
	}

	one := decode[agentView](t, callTool(t, cs, "get_agent_status", map[string]any{"agent_id": "brand-story"}))
	if one.State != resolver.StateLocked || len(one.BlockedBy) != 1 || one.BlockedBy[0] != agents.IdeaRefinerID {
		t.Errorf("brand-story = %+v", one)
	}

	text := callToolExpectError(t, cs, "get_agent_status", map[string]any{"agent_id": "ghost"})
	if !strings.Contains(text, "UNKNOWN_AGENT") {
		t.Errorf("unknown agent error = %s", text)
	}
	text = callToolExpectError(t, cs, "save_agent_output", map[string]any{"agent_id": "ghost", "data": map[string]any{}})
	if !strings.Contains(text, "UNKNOWN_AGENT") {
		t.Errorf("unknown agent save error = %s", text)
	}
}
