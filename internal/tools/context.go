package tools

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/alanpac24/Vibebusiness/internal/models"
	"github.com/alanpac24/Vibebusiness/internal/session"
)

// ContextTools holds references needed by the business context handlers.
type ContextTools struct {
	Session *session.Session
	Logger  *slog.Logger
}

// --- Input types ---

// ProfileFields lists the company profile columns a caller may set. Omitted
// fields keep their stored value.
type ProfileFields struct {
	BusinessIdea     string `json:"business_idea,omitempty"`
	BusinessName     string `json:"business_name,omitempty"`
	ProblemStatement string `json:"problem_statement,omitempty"`
	ValueProposition string `json:"value_proposition,omitempty"`
	MissionStatement string `json:"mission_statement,omitempty"`
	BrandStory       string `json:"brand_story,omitempty"`
	TargetMarket     string `json:"target_market,omitempty"`
}

// ContextFields is a partial business context. Agent outputs are written
// through save_agent_output instead.
type ContextFields struct {
	CompanyProfile     *ProfileFields                `json:"company_profile,omitempty" jsonschema:"Company profile columns to set"`
	MarketIntelligence *models.MarketIntelligence    `json:"market_intelligence,omitempty" jsonschema:"Market intelligence columns to set"`
	ProductSpecs       *models.ProductSpecifications `json:"product_specs,omitempty" jsonschema:"Product specification columns to set"`
	BusinessOperations *models.BusinessOperations    `json:"business_operations,omitempty" jsonschema:"Business operations columns to set"`
}

func (f ContextFields) toUpdate() models.ContextUpdate {
	u := models.ContextUpdate{
		MarketIntelligence: f.MarketIntelligence,
		ProductSpecs:       f.ProductSpecs,
		BusinessOperations: f.BusinessOperations,
	}
	if p := f.CompanyProfile; p != nil {
		u.CompanyProfile = &models.CompanyProfile{
			BusinessIdea:     p.BusinessIdea,
			BusinessName:     p.BusinessName,
			ProblemStatement: p.ProblemStatement,
			ValueProposition: p.ValueProposition,
			MissionStatement: p.MissionStatement,
			BrandStory:       p.BrandStory,
			TargetMarket:     p.TargetMarket,
		}
	}
	return u
}

// --- Handlers ---

func (t *ContextTools) GetContext(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	bc, err := t.Session.Context(ctx)
	if err != nil {
		return toolFailure(t.Logger, "get context", err), nil, nil
	}
	return toolJSON(bc)
}

func (t *ContextTools) RefetchContext(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	if err := t.Session.Refetch(ctx); err != nil {
		return toolFailure(t.Logger, "refetch context", err), nil, nil
	}
	ui, err := t.Session.UIState(ctx)
	if err != nil {
		return toolFailure(t.Logger, "refetch context", err), nil, nil
	}
	return toolJSON(ui)
}

func (t *ContextTools) SaveContext(ctx context.Context, _ *mcp.CallToolRequest, input ContextFields) (*mcp.CallToolResult, any, error) {
	bc, err := t.Session.SaveContext(ctx, input.toUpdate())
	if err != nil {
		return toolFailure(t.Logger, "save context", err), nil, nil
	}
	return toolJSON(bc)
}
