package agents

import (
	"fmt"
	"strings"

	"github.com/alanpac24/Vibebusiness/internal/catalog"
	"github.com/alanpac24/Vibebusiness/internal/models"
)

const MarketResearchID = "market-research"

// Step keys.
const (
	KeyMarketSize  = "market_size"
	KeyCompetitors = "competitors"
	KeyTrends      = "trends"
)

type MarketSizeResult struct {
	TAM        float64           `json:"tam"`
	SAM        float64           `json:"sam"`
	SOM        float64           `json:"som"`
	Currency   string            `json:"currency"`
	GrowthRate float64           `json:"growth_rate"`
	Reasoning  map[string]string `json:"reasoning"`
	Drivers    []string          `json:"drivers"`
}

type CompetitorProfile struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
	MarketShare float64  `json:"market_share"`
	Pricing     string   `json:"pricing"`
	Positioning string   `json:"positioning"`
}

type Trend struct {
	Trend       string `json:"trend"`
	Impact      string `json:"impact"`
	Timeframe   string `json:"timeframe"`
	Opportunity string `json:"opportunity"`
}

// NewMarketResearch sizes the market, scans competitors and spots trends.
// Market size and competitors are written to market intelligence.
func NewMarketResearch(agent catalog.Agent) *Pipeline {
	return &Pipeline{
		Agent: agent,
		Steps: []Step{
			{Key: KeyMarketSize, Name: "market sizer", Run: fixed(placeholderMarketSize), Fold: foldMarketSize},
			{Key: KeyCompetitors, Name: "competitor scanner", Run: fixed(placeholderCompetitors), Fold: foldCompetitors},
			{Key: KeyTrends, Name: "trend spotter", Run: fixed(placeholderTrends)},
		},
		Compose:  composeMarketResearch,
		Metadata: models.OutputMetadata{TokensUsed: 1500, Confidence: 0.85},
	}
}

// workingMarket returns a copy of the market intelligence that steps may modify.
func workingMarket(bc *models.BusinessContext) *models.MarketIntelligence {
	var mi models.MarketIntelligence
	if bc.MarketIntelligence != nil {
		mi = *bc.MarketIntelligence
	}
	mi.ProjectID = bc.ProjectID
	return &mi
}

func foldMarketSize(bc *models.BusinessContext, result any) error {
	ms, ok := result.(MarketSizeResult)
	if !ok {
		return fmt.Errorf("unusable shape: got %T", result)
	}
	mi := workingMarket(bc)
	mi.MarketSize = &models.MarketSize{TAM: ms.TAM, SAM: ms.SAM, SOM: ms.SOM, Currency: ms.Currency}
	bc.MarketIntelligence = mi
	return nil
}

func foldCompetitors(bc *models.BusinessContext, result any) error {
	profiles, ok := result.([]CompetitorProfile)
	if !ok {
		return fmt.Errorf("unusable shape: got %T", result)
	}
	mi := workingMarket(bc)
	mi.Competitors = make([]models.Competitor, 0, len(profiles))
	for _, c := range profiles {
		mi.Competitors = append(mi.Competitors, models.Competitor{
			Name:        c.Name,
			Strengths:   c.Strengths,
			Weaknesses:  c.Weaknesses,
			MarketShare: c.MarketShare,
		})
	}
	bc.MarketIntelligence = mi
	return nil
}

func composeMarketResearch(ec *ExecutionContext, _ map[string]any) (string, models.ContextUpdate, error) {
	size, err := inputAs[MarketSizeResult](ec, KeyMarketSize)
	if err != nil {
		return "", models.ContextUpdate{}, err
	}
	competitors, err := inputAs[[]CompetitorProfile](ec, KeyCompetitors)
	if err != nil {
		return "", models.ContextUpdate{}, err
	}
	trends, err := inputAs[[]Trend](ec, KeyTrends)
	if err != nil {
		return "", models.ContextUpdate{}, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The market opportunity is substantial with a TAM of $%.1fB and %.0f%% annual growth.",
		size.TAM/1e9, size.GrowthRate*100)
	for _, c := range competitors {
		if c.Type != "direct" {
			continue
		}
		fmt.Fprintf(&b, " %s leads the market with %.0f%% share", c.Name, c.MarketShare*100)
		if len(c.Weaknesses) > 0 {
			fmt.Fprintf(&b, " but has weaknesses in %s", strings.ToLower(c.Weaknesses[0]))
		}
		b.WriteString(".")
		break
	}
	for _, t := range trends {
		if t.Impact != "high" {
			continue
		}
		fmt.Fprintf(&b, " The biggest trend is %s creating opportunities to %s.", t.Trend, strings.ToLower(t.Opportunity))
		break
	}

	return b.String(), models.ContextUpdate{MarketIntelligence: ec.Business.MarketIntelligence}, nil
}

func placeholderMarketSize() MarketSizeResult {
	return MarketSizeResult{
		TAM:        5_000_000_000,
		SAM:        500_000_000,
		SOM:        50_000_000,
		Currency:   "USD",
		GrowthRate: 0.23,
		Reasoning: map[string]string{
			"tam": "Based on global market for similar solutions",
			"sam": "Focused on English-speaking markets initially",
			"som": "Realistic 10% market capture in first 3 years",
		},
		Drivers: []string{
			"Digital transformation acceleration",
			"Remote work adoption",
			"Increasing demand for automation",
		},
	}
}

func placeholderCompetitors() []CompetitorProfile {
	return []CompetitorProfile{
		{
			Name:        "CompetitorA",
			Type:        "direct",
			Strengths:   []string{"Market leader", "Strong brand", "Enterprise features"},
			Weaknesses:  []string{"Expensive", "Complex UI", "Poor customer support"},
			MarketShare: 0.35,
			Pricing:     "$99-999/mo",
			Positioning: "Enterprise-focused",
		},
		{
			Name:        "CompetitorB",
			Type:        "direct",
			Strengths:   []string{"User-friendly", "Good pricing", "Strong community"},
			Weaknesses:  []string{"Limited features", "Performance issues", "No enterprise"},
			MarketShare: 0.20,
			Pricing:     "$29-199/mo",
			Positioning: "SMB-focused",
		},
		{
			Name:        "CompetitorC",
			Type:        "indirect",
			Strengths:   []string{"Free tier", "Developer-friendly", "Open source"},
			Weaknesses:  []string{"Requires technical knowledge", "Limited support"},
			MarketShare: 0.10,
			Pricing:     "$0-49/mo",
			Positioning: "Developer tools",
		},
	}
}

func placeholderTrends() []Trend {
	return []Trend{
		{Trend: "AI-powered automation", Impact: "high", Timeframe: "1-2 years", Opportunity: "Integrate AI features to differentiate"},
		{Trend: "Privacy-first solutions", Impact: "medium", Timeframe: "2-3 years", Opportunity: "Build trust with data privacy features"},
		{Trend: "Vertical SaaS specialization", Impact: "high", Timeframe: "ongoing", Opportunity: "Focus on specific industry needs"},
		{Trend: "Usage-based pricing adoption", Impact: "medium", Timeframe: "1-2 years", Opportunity: "Flexible pricing models"},
	}
}
