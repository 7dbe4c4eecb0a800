package agents

import (
	"fmt"
	"strings"

	"github.com/alanpac24/Vibebusiness/internal/catalog"
	"github.com/alanpac24/Vibebusiness/internal/models"
)

const OfferDesignID = "offer-design"

const (
	KeyValuePropositions = "value_propositions"
	KeyFeatures          = "features"
	KeyPackages          = "packages"
)

type SegmentProposition struct {
	Segment     string `json:"segment"`
	Proposition string `json:"proposition"`
}

type ValuePropositions struct {
	Primary         string               `json:"primary"`
	Supporting      []string             `json:"supporting"`
	SegmentSpecific []SegmentProposition `json:"segment_specific"`
	Differentiators []string             `json:"differentiators"`
}

type PrioritizedFeature struct {
	Name                 string `json:"name"`
	Category             string `json:"category"`
	Description          string `json:"description"`
	CustomerValue        int    `json:"customer_value"`
	CompetitiveAdvantage int    `json:"competitive_advantage"`
	Effort               int    `json:"effort"`
	RevenueImpact        int    `json:"revenue_impact"`
	Justification        string `json:"justification"`
}

type Package struct {
	Name          string            `json:"name"`
	TargetSegment string            `json:"target_segment"`
	Features      []string          `json:"features"`
	Limits        map[string]string `json:"limits"`
	Support       string            `json:"support"`
	Positioning   string            `json:"positioning"`
	Highlighted   bool              `json:"highlighted,omitempty"`
	CustomPricing bool              `json:"custom_pricing,omitempty"`
}

// NewOfferDesign drafts value propositions, ranks features and builds
// packages. It rewrites the company value proposition and the product
// feature list.
func NewOfferDesign(agent catalog.Agent) *Pipeline {
	return &Pipeline{
		Agent: agent,
		Steps: []Step{
			{Key: KeyValuePropositions, Name: "value proposition designer", Run: fixed(placeholderValueProps)},
			{Key: KeyFeatures, Name: "feature prioritizer", Run: fixed(placeholderFeatures)},
			{Key: KeyPackages, Name: "package builder", Run: fixed(placeholderPackages)},
		},
		Compose:  composeOfferDesign,
		Metadata: models.OutputMetadata{TokensUsed: 2000, Confidence: 0.88},
	}
}

func composeOfferDesign(ec *ExecutionContext, _ map[string]any) (string, models.ContextUpdate, error) {
	props, err := inputAs[ValuePropositions](ec, KeyValuePropositions)
	if err != nil {
		return "", models.ContextUpdate{}, err
	}
	features, err := inputAs[[]PrioritizedFeature](ec, KeyFeatures)
	if err != nil {
		return "", models.ContextUpdate{}, err
	}
	packages, err := inputAs[[]Package](ec, KeyPackages)
	if err != nil {
		return "", models.ContextUpdate{}, err
	}
	if len(packages) == 0 {
		return "", models.ContextUpdate{}, fmt.Errorf("package builder returned no packages")
	}

	mustHave := 0
	specFeatures := make([]models.Feature, 0, len(features))
	for _, f := range features {
		if f.Category == "must-have" {
			mustHave++
		}
		specFeatures = append(specFeatures, models.Feature{
			ID:          slug(f.Name),
			Name:        f.Name,
			Description: f.Description,
			Priority:    featurePriority(f.Category),
			Status:      "planned",
		})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Your offering centers on %q with %d core features that deliver immediate value.", props.Primary, mustHave)
	fmt.Fprintf(&b, " The %d-tier structure serves %s through %s",
		len(packages), strings.ToLower(packages[0].TargetSegment), strings.ToLower(packages[len(packages)-1].TargetSegment))
	if len(props.Differentiators) > 0 {
		fmt.Fprintf(&b, ", with clear upgrade paths based on %s", strings.ToLower(props.Differentiators[0]))
	}
	b.WriteString(".")

	profile := ec.Business.CompanyProfile
	profile.ValueProposition = props.Primary

	var specs models.ProductSpecifications
	if ec.Business.ProductSpecs != nil {
		specs = *ec.Business.ProductSpecs
	}
	specs.ProjectID = ec.Business.ProjectID
	specs.Features = specFeatures

	return b.String(), models.ContextUpdate{CompanyProfile: &profile, ProductSpecs: &specs}, nil
}

// featurePriority maps ranking categories onto product spec priorities.
func featurePriority(category string) string {
	switch category {
	case "must-have":
		return "must-have"
	case "should-have":
		return "nice-to-have"
	}
	return "future"
}

func slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func placeholderValueProps() ValuePropositions {
	return ValuePropositions{
		Primary: "The only platform that combines X with Y to deliver Z 10x faster",
		Supporting: []string{
			"Save 20+ hours per week on repetitive tasks",
			"Reduce errors by 90% with AI-powered validation",
			"Scale operations without adding headcount",
			"Get insights competitors can't see",
		},
		SegmentSpecific: []SegmentProposition{
			{Segment: "Enterprise", Proposition: "Enterprise-grade security with consumer-grade simplicity"},
			{Segment: "SMB", Proposition: "Fortune 500 capabilities at startup prices"},
			{Segment: "Startups", Proposition: "Start free, scale seamlessly as you grow"},
		},
		Differentiators: []string{
			"Only solution with real-time collaboration",
			"Proprietary AI trained on industry data",
			"No implementation required - works instantly",
			"Transparent pricing with no hidden costs",
		},
	}
}

func placeholderFeatures() []PrioritizedFeature {
	return []PrioritizedFeature{
		{Name: "AI-Powered Automation", Category: "must-have", Description: "Automate repetitive tasks with smart AI",
			CustomerValue: 10, CompetitiveAdvantage: 9, Effort: 7, RevenueImpact: 9,
			Justification: "Core differentiator that directly addresses main pain point"},
		{Name: "Real-time Collaboration", Category: "must-have", Description: "Multiple users working simultaneously",
			CustomerValue: 9, CompetitiveAdvantage: 7, Effort: 6, RevenueImpact: 8,
			Justification: "Table stakes for modern SaaS, enables team adoption"},
		{Name: "Advanced Analytics Dashboard", Category: "should-have", Description: "Insights and reporting capabilities",
			CustomerValue: 8, CompetitiveAdvantage: 6, Effort: 5, RevenueImpact: 7,
			Justification: "Drives stickiness and justifies higher pricing tiers"},
		{Name: "API & Integrations", Category: "should-have", Description: "Connect with other tools in the stack",
			CustomerValue: 7, CompetitiveAdvantage: 5, Effort: 8, RevenueImpact: 6,
			Justification: "Reduces friction for enterprise adoption"},
		{Name: "Mobile App", Category: "nice-to-have", Description: "iOS and Android native apps",
			CustomerValue: 6, CompetitiveAdvantage: 4, Effort: 9, RevenueImpact: 5,
			Justification: "Good for engagement but not critical for MVP"},
		{Name: "White Labeling", Category: "nice-to-have", Description: "Custom branding for enterprise",
			CustomerValue: 5, CompetitiveAdvantage: 6, Effort: 4, RevenueImpact: 7,
			Justification: "Opens enterprise revenue stream but not core"},
	}
}

func placeholderPackages() []Package {
	return []Package{
		{
			Name:          "Starter",
			TargetSegment: "Individual users and small teams",
			Features:      []string{"AI-Powered Automation (limited)", "Real-time Collaboration (up to 3 users)", "Basic Analytics"},
			Limits:        map[string]string{"users": "3", "projects": "5", "api_calls": "1000", "storage": "10GB"},
			Support:       "Email support",
			Positioning:   "Perfect for getting started and small projects",
		},
		{
			Name:          "Professional",
			TargetSegment: "Growing teams and businesses",
			Features: []string{"AI-Powered Automation (unlimited)", "Real-time Collaboration (up to 20 users)",
				"Advanced Analytics Dashboard", "API & Integrations", "Priority Support"},
			Limits:      map[string]string{"users": "20", "projects": "50", "api_calls": "10000", "storage": "100GB"},
			Support:     "Priority email & chat support",
			Positioning: "Everything you need to scale your business",
			Highlighted: true,
		},
		{
			Name:          "Enterprise",
			TargetSegment: "Large organizations with complex needs",
			Features: []string{"All Professional features", "White Labeling", "Advanced Security (SSO, SAML)",
				"Custom Integrations", "Dedicated Success Manager", "SLA Guarantee"},
			Limits:        map[string]string{"users": "Unlimited", "projects": "Unlimited", "api_calls": "Custom", "storage": "Custom"},
			Support:       "24/7 phone, email, and dedicated Slack",
			Positioning:   "Enterprise-grade solution with custom everything",
			CustomPricing: true,
		},
	}
}
