package models

import "encoding/json"

// Project statuses.
const (
	StatusActive    = "active"
	StatusArchived  = "archived"
	StatusCompleted = "completed"
)

// Project is a user's business plan workspace.
type Project struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// ValidStatus reports whether s is a known project status.
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusArchived, StatusCompleted:
		return true
	}
	return false
}

// CompanyProfile is the root record of a project's business context.
// Empty strings mean "not provided" on writes.
type CompanyProfile struct {
	ID               string `json:"id,omitempty"`
	ProjectID        string `json:"project_id,omitempty"`
	BusinessIdea     string `json:"business_idea"`
	BusinessName     string `json:"business_name,omitempty"`
	ProblemStatement string `json:"problem_statement,omitempty"`
	ValueProposition string `json:"value_proposition,omitempty"`
	MissionStatement string `json:"mission_statement,omitempty"`
	BrandStory       string `json:"brand_story,omitempty"`
	TargetMarket     string `json:"target_market,omitempty"`
	UpdatedAt        string `json:"updated_at,omitempty"`
}

// MarketSize holds TAM/SAM/SOM figures.
type MarketSize struct {
	TAM      float64 `json:"tam"`
	SAM      float64 `json:"sam"`
	SOM      float64 `json:"som"`
	Currency string  `json:"currency"`
}

type Competitor struct {
	Name        string   `json:"name"`
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
	MarketShare float64  `json:"market_share,omitempty"`
}

type PriceTier struct {
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Features []string `json:"features,omitempty"`
}

type PricingResearch struct {
	CompetitorName string      `json:"competitor_name"`
	PricingModel   string      `json:"pricing_model"`
	Tiers          []PriceTier `json:"tiers"`
}

type CustomerFeedback struct {
	Source    string `json:"source"`
	Feedback  string `json:"feedback"`
	Sentiment string `json:"sentiment"`
	Date      string `json:"date"`
}

// MarketIntelligence is written by market research workflows.
// A nil field is left untouched by an update.
type MarketIntelligence struct {
	ID               string             `json:"id,omitempty"`
	ProjectID        string             `json:"project_id,omitempty"`
	MarketSize       *MarketSize        `json:"market_size,omitempty"`
	Competitors      []Competitor       `json:"competitors,omitempty"`
	PricingResearch  []PricingResearch  `json:"pricing_research,omitempty"`
	CustomerFeedback []CustomerFeedback `json:"customer_feedback,omitempty"`
	UpdatedAt        string             `json:"updated_at,omitempty"`
}

type Feature struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
}

type TechStack struct {
	Frontend []string `json:"frontend,omitempty"`
	Backend  []string `json:"backend,omitempty"`
	Database []string `json:"database,omitempty"`
	Hosting  []string `json:"hosting,omitempty"`
	Tools    []string `json:"tools,omitempty"`
}

type Architecture struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Diagrams    []string `json:"diagrams,omitempty"`
}

type Milestone struct {
	Milestone string   `json:"milestone"`
	Deadline  string   `json:"deadline"`
	Features  []string `json:"features"`
	Status    string   `json:"status"`
}

// ProductSpecifications is written by offer and product workflows.
type ProductSpecifications struct {
	ID           string        `json:"id,omitempty"`
	ProjectID    string        `json:"project_id,omitempty"`
	Features     []Feature     `json:"features,omitempty"`
	TechStack    *TechStack    `json:"tech_stack,omitempty"`
	Architecture *Architecture `json:"architecture,omitempty"`
	Roadmap      []Milestone   `json:"roadmap,omitempty"`
	UpdatedAt    string        `json:"updated_at,omitempty"`
}

type MonthlyAmount struct {
	Month  string  `json:"month"`
	Amount float64 `json:"amount"`
}

type Projections struct {
	Revenue  []MonthlyAmount `json:"revenue"`
	Expenses []MonthlyAmount `json:"expenses"`
	Runway   int             `json:"runway"`
}

type PricingTier struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Interval string  `json:"interval,omitempty"`
}

type Pricing struct {
	Model string        `json:"model"`
	Tiers []PricingTier `json:"tiers,omitempty"`
}

type Financials struct {
	Projections *Projections `json:"projections,omitempty"`
	Pricing     *Pricing     `json:"pricing,omitempty"`
}

type TeamRole struct {
	Title  string `json:"title"`
	Count  int    `json:"count"`
	Status string `json:"status"`
}

type Team struct {
	Size  int        `json:"size"`
	Roles []TeamRole `json:"roles"`
}

type ComplianceItem struct {
	Item   string `json:"item"`
	Status string `json:"status"`
}

type Legal struct {
	EntityType          string           `json:"entity_type,omitempty"`
	Incorporated        *bool            `json:"incorporated,omitempty"`
	Jurisdiction        string           `json:"jurisdiction,omitempty"`
	ComplianceChecklist []ComplianceItem `json:"compliance_checklist,omitempty"`
}

type KPI struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
	Trend string  `json:"trend,omitempty"`
}

type Metrics struct {
	KPIs []KPI `json:"kpis"`
}

// BusinessOperations is written by pricing and finance workflows.
type BusinessOperations struct {
	ID         string      `json:"id,omitempty"`
	ProjectID  string      `json:"project_id,omitempty"`
	Financials *Financials `json:"financials,omitempty"`
	Team       *Team       `json:"team,omitempty"`
	Legal      *Legal      `json:"legal,omitempty"`
	Metrics    *Metrics    `json:"metrics,omitempty"`
	UpdatedAt  string      `json:"updated_at,omitempty"`
}

// OutputMetadata is informational only and never drives control flow.
type OutputMetadata struct {
	TokensUsed       int     `json:"tokens_used,omitempty"`
	ProcessingTimeMs int64   `json:"processing_time_ms,omitempty"`
	Confidence       float64 `json:"confidence,omitempty"`
}

// AgentOutput is the stored result of one agent for one project. Its
// existence marks the agent as completed.
type AgentOutput struct {
	AgentID   string          `json:"agent_id"`
	ProjectID string          `json:"project_id"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	Metadata  *OutputMetadata `json:"metadata,omitempty"`
}

// BusinessContext is the in-memory aggregate threaded through every executor.
type BusinessContext struct {
	ProjectID          string                 `json:"project_id"`
	CompanyProfile     CompanyProfile         `json:"company_profile"`
	MarketIntelligence *MarketIntelligence    `json:"market_intelligence,omitempty"`
	ProductSpecs       *ProductSpecifications `json:"product_specs,omitempty"`
	BusinessOperations *BusinessOperations    `json:"business_operations,omitempty"`
	AgentOutputs       map[string]AgentOutput `json:"agent_outputs"`
}

// Clone returns a copy whose AgentOutputs map can be modified independently.
// Nested records are shared and must be treated as read-only.
func (c BusinessContext) Clone() BusinessContext {
	out := c
	out.AgentOutputs = make(map[string]AgentOutput, len(c.AgentOutputs))
	for id, o := range c.AgentOutputs {
		out.AgentOutputs[id] = o
	}
	return out
}

// ContextUpdate is a partial BusinessContext. Nil fields are absent.
type ContextUpdate struct {
	CompanyProfile     *CompanyProfile        `json:"company_profile,omitempty"`
	MarketIntelligence *MarketIntelligence    `json:"market_intelligence,omitempty"`
	ProductSpecs       *ProductSpecifications `json:"product_specs,omitempty"`
	BusinessOperations *BusinessOperations    `json:"business_operations,omitempty"`
	AgentOutputs       map[string]AgentOutput `json:"agent_outputs,omitempty"`
}

// Field names reported by ContextUpdate.Fields.
const (
	FieldCompanyProfile     = "company_profile"
	FieldMarketIntelligence = "market_intelligence"
	FieldProductSpecs       = "product_specs"
	FieldBusinessOperations = "business_operations"
	FieldAgentOutputs       = "agent_outputs"
)

// Empty reports whether the update carries no fields.
func (u ContextUpdate) Empty() bool {
	return len(u.Fields()) == 0
}

// Fields lists the present top-level fields in a fixed order.
func (u ContextUpdate) Fields() []string {
	var fields []string
	if u.CompanyProfile != nil {
		fields = append(fields, FieldCompanyProfile)
	}
	if u.MarketIntelligence != nil {
		fields = append(fields, FieldMarketIntelligence)
	}
	if u.ProductSpecs != nil {
		fields = append(fields, FieldProductSpecs)
	}
	if u.BusinessOperations != nil {
		fields = append(fields, FieldBusinessOperations)
	}
	if len(u.AgentOutputs) > 0 {
		fields = append(fields, FieldAgentOutputs)
	}
	return fields
}
