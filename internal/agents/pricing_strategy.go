package agents

import (
	"fmt"
	"strings"

	"github.com/alanpac24/Vibebusiness/internal/catalog"
	"github.com/alanpac24/Vibebusiness/internal/models"
)

const PricingStrategyID = "pricing-strategy"

const (
	KeyPricingModel = "model"
	KeyPricing      = "pricing"
	KeyElasticity   = "elasticity"
)

type ModelChoice struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Rationale   string `json:"rationale"`
}

type Billing struct {
	Frequencies    []string `json:"frequencies"`
	Preferred      string   `json:"preferred"`
	AnnualDiscount float64  `json:"annual_discount"`
	Rationale      string   `json:"rationale"`
}

type Trial struct {
	Type               string  `json:"type"`
	DurationDays       int     `json:"duration_days"`
	CreditCardRequired bool    `json:"credit_card_required"`
	Limitations        string  `json:"limitations"`
	ConversionRate     float64 `json:"conversion_rate"`
	Rationale          string  `json:"rationale"`
}

type PricingModel struct {
	Model   ModelChoice `json:"model"`
	Billing Billing     `json:"billing"`
	Trial   Trial       `json:"trial"`
}

type TierPrice struct {
	Name         string  `json:"name"`
	MonthlyPrice float64 `json:"monthly_price"`
	AnnualPrice  float64 `json:"annual_price"`
	SetupFee     float64 `json:"setup_fee"`
	Highlighted  bool    `json:"highlighted,omitempty"`
	CustomPrice  string  `json:"custom_pricing,omitempty"`
	Rationale    string  `json:"rationale"`
}

type PricePoints struct {
	Tiers     []TierPrice        `json:"tiers"`
	Discounts map[string]float64 `json:"discounts"`
	Anchor    string             `json:"anchor"`
}

type SweetSpot struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Optimal float64 `json:"optimal"`
}

type TierElasticity struct {
	Coefficient    float64   `json:"coefficient"`
	Interpretation string    `json:"interpretation"`
	SweetSpot      SweetSpot `json:"sweet_spot"`
}

type Projection struct {
	Users   int     `json:"users"`
	Revenue float64 `json:"revenue"`
	Profit  float64 `json:"profit"`
}

type Scenario struct {
	Name       string             `json:"name"`
	Pricing    map[string]float64 `json:"pricing"`
	Projection Projection         `json:"projection"`
}

type Elasticity struct {
	ByTier    map[string]TierElasticity `json:"by_tier"`
	Scenarios []Scenario                `json:"scenarios"`
	Testing   string                    `json:"testing"`
}

// NewPricingStrategy picks a pricing model, sets tier prices and checks price
// sensitivity. The result becomes the pricing section of the financials.
func NewPricingStrategy(agent catalog.Agent) *Pipeline {
	return &Pipeline{
		Agent: agent,
		Steps: []Step{
			{Key: KeyPricingModel, Name: "model selector", Run: fixed(placeholderPricingModel)},
			{Key: KeyPricing, Name: "price optimizer", Run: fixed(placeholderPricePoints)},
			{Key: KeyElasticity, Name: "elasticity analyzer", Run: fixed(placeholderElasticity)},
		},
		Compose:  composePricingStrategy,
		Metadata: models.OutputMetadata{TokensUsed: 1800, Confidence: 0.87},
	}
}

func composePricingStrategy(ec *ExecutionContext, _ map[string]any) (string, models.ContextUpdate, error) {
	model, err := inputAs[PricingModel](ec, KeyPricingModel)
	if err != nil {
		return "", models.ContextUpdate{}, err
	}
	points, err := inputAs[PricePoints](ec, KeyPricing)
	if err != nil {
		return "", models.ContextUpdate{}, err
	}
	elasticity, err := inputAs[Elasticity](ec, KeyElasticity)
	if err != nil {
		return "", models.ContextUpdate{}, err
	}
	if len(points.Tiers) == 0 {
		return "", models.ContextUpdate{}, fmt.Errorf("price optimizer returned no tiers")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recommended %s pricing with %d-day free trial.", model.Model.Type, model.Trial.DurationDays)
	for _, t := range points.Tiers {
		if t.Highlighted {
			fmt.Fprintf(&b, " The %s tier at $%.0f/mo serves as the anchor.", t.Name, t.MonthlyPrice)
			break
		}
	}
	for _, s := range elasticity.Scenarios {
		if s.Name == "Revenue Optimization" {
			fmt.Fprintf(&b, " Targeting %d users for $%.0f/mo in recurring revenue.", s.Projection.Users, s.Projection.Revenue/12)
			break
		}
	}
	fmt.Fprintf(&b, " %s billing with %.0f%% discount maximizes LTV.",
		titleCase(model.Billing.Preferred), model.Billing.AnnualDiscount*100)

	tiers := make([]models.PricingTier, 0, len(points.Tiers))
	for _, t := range points.Tiers {
		tiers = append(tiers, models.PricingTier{Name: t.Name, Price: t.MonthlyPrice, Interval: "monthly"})
	}

	var ops models.BusinessOperations
	if ec.Business.BusinessOperations != nil {
		ops = *ec.Business.BusinessOperations
	}
	ops.ProjectID = ec.Business.ProjectID
	var fin models.Financials
	if ops.Financials != nil {
		fin = *ops.Financials
	}
	fin.Pricing = &models.Pricing{Model: model.Model.Type, Tiers: tiers}
	ops.Financials = &fin

	return b.String(), models.ContextUpdate{BusinessOperations: &ops}, nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func placeholderPricingModel() PricingModel {
	return PricingModel{
		Model: ModelChoice{
			Type:        "tiered-subscription",
			Description: "Monthly/annual subscription with feature-based tiers",
			Rationale:   "Predictable revenue, clear upgrade path, industry standard",
		},
		Billing: Billing{
			Frequencies:    []string{"monthly", "annual"},
			Preferred:      "annual",
			AnnualDiscount: 0.20,
			Rationale:      "Annual billing improves cash flow and reduces churn",
		},
		Trial: Trial{
			Type:           "free-trial",
			DurationDays:   14,
			Limitations:    "Full access to Professional tier features",
			ConversionRate: 0.15,
			Rationale:      "Low-friction entry increases signups, 14 days optimal for B2B",
		},
	}
}

func placeholderPricePoints() PricePoints {
	return PricePoints{
		Tiers: []TierPrice{
			{Name: "Starter", MonthlyPrice: 49, AnnualPrice: 39,
				Rationale: "Below psychological $50 threshold, competitive with low-end alternatives"},
			{Name: "Professional", MonthlyPrice: 149, AnnualPrice: 119, Highlighted: true,
				Rationale: "3x starter price creates strong anchor, sweet spot for target market"},
			{Name: "Enterprise", MonthlyPrice: 499, AnnualPrice: 399, SetupFee: 2500, CustomPrice: "Available for 100+ users",
				Rationale: "Premium pricing for premium service, setup fee filters serious buyers"},
		},
		Discounts: map[string]float64{"nonprofit": 0.30, "education": 0.50, "startup": 0.25},
		Anchor:    "Show Enterprise price first to make Professional seem affordable",
	}
}

func placeholderElasticity() Elasticity {
	return Elasticity{
		ByTier: map[string]TierElasticity{
			"starter": {Coefficient: -1.2, Interpretation: "Somewhat elastic - 10% price increase = 12% demand decrease",
				SweetSpot: SweetSpot{Min: 39, Max: 59, Optimal: 49}},
			"professional": {Coefficient: -0.8, Interpretation: "Relatively inelastic - quality matters more than price",
				SweetSpot: SweetSpot{Min: 99, Max: 199, Optimal: 149}},
			"enterprise": {Coefficient: -0.4, Interpretation: "Highly inelastic - decision based on features not price",
				SweetSpot: SweetSpot{Min: 299, Max: 999, Optimal: 499}},
		},
		Scenarios: []Scenario{
			{Name: "Growth Maximization", Pricing: map[string]float64{"starter": 29, "professional": 99, "enterprise": 399},
				Projection: Projection{Users: 10000, Revenue: 890000, Profit: 445000}},
			{Name: "Revenue Optimization", Pricing: map[string]float64{"starter": 49, "professional": 149, "enterprise": 499},
				Projection: Projection{Users: 6000, Revenue: 1074000, Profit: 644000}},
			{Name: "Premium Positioning", Pricing: map[string]float64{"starter": 79, "professional": 249, "enterprise": 799},
				Projection: Projection{Users: 3000, Revenue: 897000, Profit: 628000}},
		},
		Testing: "A/B test Professional tier at $129 vs $149 for 30 days",
	}
}
