package agents

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/alanpac24/Vibebusiness/internal/catalog"
	"github.com/alanpac24/Vibebusiness/internal/errinfo"
	"github.com/alanpac24/Vibebusiness/internal/models"
)

func business() models.BusinessContext {
	return models.BusinessContext{
		ProjectID: "p1",
		CompanyProfile: models.CompanyProfile{
			ProjectID:    "p1",
			BusinessIdea: "Invoicing for freelancers",
			BusinessName: "Billable",
		},
		AgentOutputs: map[string]models.AgentOutput{},
	}
}

func pipeline(t *testing.T, id string) *Pipeline {
	t.Helper()
	agent, ok := catalog.MustDefault().Lookup(id)
	if !ok {
		t.Fatalf("catalog has no %s", id)
	}
	return builtins[id](agent)
}

func decodeData(t *testing.T, res Result) map[string]json.RawMessage {
	t.Helper()
	var data map[string]json.RawMessage
	if err := json.Unmarshal(res.Output.Data, &data); err != nil {
		t.Fatalf("decode output data: %v", err)
	}
	return data
}

func TestMarketResearch(t *testing.T) {
	p := pipeline(t, MarketResearchID)
	res := p.Execute(context.Background(), business(), nil)
	if !res.Success {
		t.Fatalf("Execute failed: %s", res.Error)
	}
	data := decodeData(t, res)
	for _, key := range []string{KeyMarketSize, KeyCompetitors, KeyTrends, "summary"} {
		if _, ok := data[key]; !ok {
			t.Errorf("output data missing %q", key)
		}
	}
	var summary string
	json.Unmarshal(data["summary"], &summary)
	if !strings.Contains(summary, "TAM of $5.0B") || !strings.Contains(summary, "CompetitorA") {
		t.Errorf("summary = %q", summary)
	}

	mi := res.ContextUpdates.MarketIntelligence
	if mi == nil || mi.MarketSize == nil || mi.MarketSize.TAM != 5e9 {
		t.Fatalf("MarketIntelligence update = %+v", mi)
	}
	if len(mi.Competitors) != 3 {
		t.Errorf("Competitors = %d, want 3", len(mi.Competitors))
	}
	if _, ok := res.ContextUpdates.AgentOutputs[MarketResearchID]; !ok {
		t.Error("context updates should carry the agent output")
	}
	if res.Output.ProjectID != "p1" || res.Output.AgentID != MarketResearchID {
		t.Errorf("Output ids = %s/%s", res.Output.ProjectID, res.Output.AgentID)
	}
}

func TestMarketResearchKeepsOtherMarketFields(t *testing.T) {
	bc := business()
	bc.MarketIntelligence = &models.MarketIntelligence{
		CustomerFeedback: []models.CustomerFeedback{{Source: "interview", Feedback: "love it", Sentiment: "positive"}},
	}
	res := pipeline(t, MarketResearchID).Execute(context.Background(), bc, nil)
	if !res.Success {
		t.Fatalf("Execute failed: %s", res.Error)
	}
	if len(res.ContextUpdates.MarketIntelligence.CustomerFeedback) != 1 {
		t.Error("existing customer feedback should be folded into the update")
	}
	if bc.MarketIntelligence.MarketSize != nil {
		t.Error("Execute mutated the caller's context")
	}
}

func TestLaterStepSeesEarlierResult(t *testing.T) {
	p := pipeline(t, MarketResearchID)
	var seen *models.MarketSize
	err := p.Replace(KeyCompetitors, SubAgentFunc(func(ctx context.Context, ec *ExecutionContext) (any, error) {
		seen = ec.Business.MarketIntelligence.MarketSize
		if _, ok := ec.Input[KeyMarketSize]; !ok {
			return nil, errors.New("market size missing from input")
		}
		return placeholderCompetitors(), nil
	}))
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if res := p.Execute(context.Background(), business(), nil); !res.Success {
		t.Fatalf("Execute failed: %s", res.Error)
	}
	if seen == nil || seen.SOM != 5e7 {
		t.Errorf("competitor step saw market size %+v", seen)
	}
}

func TestSecondStepFailureDiscardsEverything(t *testing.T) {
	p := pipeline(t, MarketResearchID)
	if err := p.Replace(KeyCompetitors, SubAgentFunc(func(ctx context.Context, ec *ExecutionContext) (any, error) {
		return nil, errors.New("upstream timeout")
	})); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	ran := false
	if err := p.Replace(KeyTrends, SubAgentFunc(func(ctx context.Context, ec *ExecutionContext) (any, error) {
		ran = true
		return placeholderTrends(), nil
	})); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	res := p.Execute(context.Background(), business(), nil)
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.ContextUpdates != nil || res.Output != nil {
		t.Errorf("failed run returned partial results: %+v", res)
	}
	if !strings.Contains(res.Error, "competitor scanner") || !strings.Contains(res.Error, "upstream timeout") {
		t.Errorf("Error = %q", res.Error)
	}
	if ran {
		t.Error("steps after a failure must not run")
	}
}

func TestUnusableShapeFails(t *testing.T) {
	p := pipeline(t, PricingStrategyID)
	if err := p.Replace(KeyPricing, SubAgentFunc(func(ctx context.Context, ec *ExecutionContext) (any, error) {
		return "forty-nine dollars", nil
	})); err != nil {
		t.Fatal(err)
	}
	res := p.Execute(context.Background(), business(), nil)
	if res.Success || !strings.Contains(res.Error, "unusable shape") {
		t.Fatalf("expected unusable shape failure, got %+v", res)
	}
}

func TestCancelledContextFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := pipeline(t, OfferDesignID).Execute(ctx, business(), nil)
	if res.Success || res.ContextUpdates != nil {
		t.Fatalf("expected failure on cancelled context, got %+v", res)
	}
}

func TestOfferDesign(t *testing.T) {
	bc := business()
	bc.ProductSpecs = &models.ProductSpecifications{TechStack: &models.TechStack{Backend: []string{"Go"}}}
	res := pipeline(t, OfferDesignID).Execute(context.Background(), bc, nil)
	if !res.Success {
		t.Fatalf("Execute failed: %s", res.Error)
	}
	upd := res.ContextUpdates
	if upd.CompanyProfile == nil || !strings.HasPrefix(upd.CompanyProfile.ValueProposition, "The only platform") {
		t.Errorf("CompanyProfile update = %+v", upd.CompanyProfile)
	}
	if upd.CompanyProfile.BusinessName != "Billable" {
		t.Error("offer design should keep existing profile fields")
	}
	if upd.ProductSpecs == nil || len(upd.ProductSpecs.Features) != 6 {
		t.Fatalf("ProductSpecs update = %+v", upd.ProductSpecs)
	}
	if upd.ProductSpecs.TechStack == nil {
		t.Error("existing tech stack should be folded into the update")
	}
	f := upd.ProductSpecs.Features[2]
	if f.ID != "advanced-analytics-dashboard" || f.Priority != "nice-to-have" || f.Status != "planned" {
		t.Errorf("feature mapping = %+v", f)
	}
	if got := upd.ProductSpecs.Features[4].Priority; got != "future" {
		t.Errorf("nice-to-have priority = %q, want future", got)
	}
}

func TestPricingStrategyFoldsFinancials(t *testing.T) {
	bc := business()
	bc.BusinessOperations = &models.BusinessOperations{
		Financials: &models.Financials{Projections: &models.Projections{Runway: 18}},
		Team:       &models.Team{Size: 3},
	}
	res := pipeline(t, PricingStrategyID).Execute(context.Background(), bc, nil)
	if !res.Success {
		t.Fatalf("Execute failed: %s", res.Error)
	}
	ops := res.ContextUpdates.BusinessOperations
	if ops == nil || ops.Financials == nil || ops.Financials.Pricing == nil {
		t.Fatalf("BusinessOperations update = %+v", ops)
	}
	if ops.Financials.Projections == nil || ops.Financials.Projections.Runway != 18 {
		t.Error("existing projections were dropped")
	}
	if ops.Team == nil || ops.Team.Size != 3 {
		t.Error("existing team was dropped")
	}
	pricing := ops.Financials.Pricing
	if pricing.Model != "tiered-subscription" || len(pricing.Tiers) != 3 || pricing.Tiers[1].Price != 149 {
		t.Errorf("Pricing = %+v", pricing)
	}
	if bc.BusinessOperations.Financials.Pricing != nil {
		t.Error("Execute mutated the caller's financials")
	}
	var data map[string]any
	json.Unmarshal(res.Output.Data, &data)
	if s, _ := data["summary"].(string); !strings.Contains(s, "14-day free trial") || !strings.Contains(s, "$89500/mo") {
		t.Errorf("summary = %q", s)
	}
}

func TestIdeaRefiner(t *testing.T) {
	bc := business()
	bc.CompanyProfile.BusinessIdea = ""
	p := pipeline(t, IdeaRefinerID)

	if res := p.Execute(context.Background(), bc, nil); res.Success || !strings.Contains(res.Error, "business idea is required") {
		t.Fatalf("expected missing idea failure, got %+v", res)
	}

	res := p.Execute(context.Background(), bc, map[string]any{
		InputIdea:         "Meal plans for busy parents",
		InputTargetMarket: "Working parents",
	})
	if !res.Success {
		t.Fatalf("Execute failed: %s", res.Error)
	}
	prof := res.ContextUpdates.CompanyProfile
	if prof.BusinessIdea != "Meal plans for busy parents" || prof.TargetMarket != "Working parents" {
		t.Errorf("profile = %+v", prof)
	}
	if prof.ProblemStatement == "" || prof.ValueProposition == "" || prof.MissionStatement == "" {
		t.Errorf("profile missing refined fields: %+v", prof)
	}
	if prof.BusinessName != "Billable" {
		t.Errorf("BusinessName = %q, want kept value", prof.BusinessName)
	}
}

func TestExecuteDoesNotMutateInput(t *testing.T) {
	input := map[string]any{"note": "hello"}
	res := pipeline(t, OfferDesignID).Execute(context.Background(), business(), input)
	if !res.Success {
		t.Fatalf("Execute failed: %s", res.Error)
	}
	if len(input) != 1 {
		t.Errorf("input was modified: %v", input)
	}
}

func TestDefaultRegistry(t *testing.T) {
	r, err := DefaultRegistry(catalog.MustDefault())
	if err != nil {
		t.Fatalf("DefaultRegistry: %v", err)
	}
	want := []string{IdeaRefinerID, MarketResearchID, OfferDesignID, PricingStrategyID}
	if got := strings.Join(r.IDs(), ","); got != strings.Join(want, ",") {
		t.Errorf("IDs = %s", got)
	}
	if _, ok := r.Lookup("financials"); ok {
		t.Error("financials has no executor")
	}
}

func TestRegistryRejectsUnknownAgent(t *testing.T) {
	small, err := catalog.New(catalog.Agent{ID: "idea-refiner", Category: "PRODUCT", Name: "Idea Refiner"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DefaultRegistry(small); !errinfo.HasCode(err, errinfo.CodeConfigurationInvalid) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	p := NewMarketResearch(catalog.Agent{ID: MarketResearchID})
	if _, err := NewRegistry(small, p); err == nil {
		t.Fatal("expected error for executor without catalog entry")
	}
}
