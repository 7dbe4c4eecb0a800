package merge

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/alanpac24/Vibebusiness/internal/models"
)

func baseContext() models.BusinessContext {
	return models.BusinessContext{
		ProjectID:      "p1",
		CompanyProfile: models.CompanyProfile{ProjectID: "p1", BusinessIdea: "Invoices for freelancers"},
		MarketIntelligence: &models.MarketIntelligence{
			MarketSize: &models.MarketSize{TAM: 1, SAM: 1, SOM: 1, Currency: "USD"},
		},
		AgentOutputs: map[string]models.AgentOutput{
			"idea-refiner": {AgentID: "idea-refiner", ProjectID: "p1", Data: json.RawMessage(`{"v":1}`)},
		},
	}
}

func TestApplyReplacesPresentFields(t *testing.T) {
	cur := baseContext()
	upd := models.ContextUpdate{
		CompanyProfile: &models.CompanyProfile{ProjectID: "p1", BusinessIdea: "Invoices", ValueProposition: "Paid faster"},
	}
	got := Apply(cur, upd)

	if got.CompanyProfile.ValueProposition != "Paid faster" {
		t.Errorf("ValueProposition = %q", got.CompanyProfile.ValueProposition)
	}
	if got.MarketIntelligence != cur.MarketIntelligence {
		t.Error("absent field should be carried over untouched")
	}
	if len(got.AgentOutputs) != 1 {
		t.Errorf("AgentOutputs = %v", got.AgentOutputs)
	}
}

func TestApplyUpsertsAgentOutputs(t *testing.T) {
	cur := baseContext()
	upd := models.ContextUpdate{AgentOutputs: map[string]models.AgentOutput{
		"market-research": {AgentID: "market-research", ProjectID: "p1", Data: json.RawMessage(`{}`)},
		"idea-refiner":    {AgentID: "idea-refiner", ProjectID: "p1", Data: json.RawMessage(`{"v":2}`)},
	}}
	got := Apply(cur, upd)

	if len(got.AgentOutputs) != 2 {
		t.Fatalf("AgentOutputs has %d entries, want 2", len(got.AgentOutputs))
	}
	if string(got.AgentOutputs["idea-refiner"].Data) != `{"v":2}` {
		t.Errorf("re-run should overwrite, got %s", got.AgentOutputs["idea-refiner"].Data)
	}
	if string(cur.AgentOutputs["idea-refiner"].Data) != `{"v":1}` || len(cur.AgentOutputs) != 1 {
		t.Error("Apply mutated its input")
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	cur := baseContext()
	upd := models.ContextUpdate{
		ProductSpecs: &models.ProductSpecifications{Features: []models.Feature{{ID: "f1", Name: "Dashboard"}}},
		BusinessOperations: &models.BusinessOperations{
			Financials: &models.Financials{Pricing: &models.Pricing{Model: "tiered-subscription"}},
		},
		AgentOutputs: map[string]models.AgentOutput{
			"offer-design": {AgentID: "offer-design", ProjectID: "p1", Data: json.RawMessage(`{"x":1}`)},
		},
	}
	once := Apply(cur, upd)
	twice := Apply(once, upd)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("merge is not idempotent:\nonce  %+v\ntwice %+v", once, twice)
	}
}

func TestApplyEmptyUpdate(t *testing.T) {
	cur := baseContext()
	upd := models.ContextUpdate{}
	if !upd.Empty() {
		t.Fatal("zero update should be empty")
	}
	if got := Apply(cur, upd); !reflect.DeepEqual(got, cur) {
		t.Errorf("empty update changed the context: %+v", got)
	}
}

func TestFieldsOrder(t *testing.T) {
	upd := models.ContextUpdate{
		AgentOutputs:   map[string]models.AgentOutput{"a": {}},
		CompanyProfile: &models.CompanyProfile{},
	}
	want := []string{models.FieldCompanyProfile, models.FieldAgentOutputs}
	if got := upd.Fields(); !reflect.DeepEqual(got, want) {
		t.Errorf("Fields = %v, want %v", got, want)
	}
}
