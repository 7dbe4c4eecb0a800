package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/alanpac24/Vibebusiness/internal/models"
)

func newProject(t *testing.T, s *Store) string {
	t.Helper()
	proj, err := s.CreateProject(context.Background(), "user-1", "Acme", "")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	return proj.ID
}

func TestLoadNotFound(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		_, err := s.Load(context.Background(), "no-such-project")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("Load err = %v, want ErrNotFound", err)
		}
	})
}

func TestSaveAgentOutputRoundTrip(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		pid := newProject(t, s)

		payload := json.RawMessage(`{"summary":"Market looks healthy","tam":5000000000}`)
		saved, err := s.SaveAgentOutput(ctx, models.AgentOutput{
			ProjectID: pid,
			AgentID:   "market-research",
			Data:      payload,
			Metadata:  &models.OutputMetadata{ProcessingTimeMs: 12},
		})
		if err != nil {
			t.Fatalf("SaveAgentOutput: %v", err)
		}
		if saved.Timestamp == "" {
			t.Error("Timestamp should be stamped")
		}

		bc, err := s.Load(ctx, pid)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		got, ok := bc.AgentOutputs["market-research"]
		if !ok {
			t.Fatal("market-research output missing after load")
		}
		if string(got.Data) != string(payload) {
			t.Errorf("Data = %s, want %s", got.Data, payload)
		}
		if got.Metadata == nil || got.Metadata.ProcessingTimeMs != 12 {
			t.Errorf("Metadata = %+v", got.Metadata)
		}
	})
}

func TestSaveAgentOutputIsIdempotentUpsert(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		pid := newProject(t, s)

		first, err := s.SaveAgentOutput(ctx, models.AgentOutput{ProjectID: pid, AgentID: "idea-refiner", Data: json.RawMessage(`{"v":1}`)})
		if err != nil {
			t.Fatalf("SaveAgentOutput: %v", err)
		}
		second, err := s.SaveAgentOutput(ctx, models.AgentOutput{ProjectID: pid, AgentID: "idea-refiner", Data: json.RawMessage(`{"v":2}`)})
		if err != nil {
			t.Fatalf("SaveAgentOutput: %v", err)
		}
		if second.Timestamp <= first.Timestamp {
			t.Errorf("re-run timestamp %s should be after %s", second.Timestamp, first.Timestamp)
		}

		ids, err := s.GetCompletedAgents(ctx, pid)
		if err != nil {
			t.Fatalf("GetCompletedAgents: %v", err)
		}
		if len(ids) != 1 || ids[0] != "idea-refiner" {
			t.Fatalf("completed = %v, want [idea-refiner]", ids)
		}

		bc, err := s.Load(ctx, pid)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if string(bc.AgentOutputs["idea-refiner"].Data) != `{"v":2}` {
			t.Errorf("latest run should win, got %s", bc.AgentOutputs["idea-refiner"].Data)
		}
	})
}

func TestSaveAgentOutputValidation(t *testing.T) {
	s := openStore(t, DriverNcruces)
	ctx := context.Background()
	pid := newProject(t, s)

	if _, err := s.SaveAgentOutput(ctx, models.AgentOutput{ProjectID: pid, AgentID: "x", Data: json.RawMessage(`{nope`)}); err == nil {
		t.Error("expected error for invalid JSON data")
	}
	if _, err := s.SaveAgentOutput(ctx, models.AgentOutput{AgentID: "x"}); err == nil {
		t.Error("expected error for missing project id")
	}
	if _, err := s.SaveAgentOutput(ctx, models.AgentOutput{ProjectID: "ghost", AgentID: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown project: err = %v, want ErrNotFound", err)
	}
}

func TestCompanyProfileColumnLevelUpsert(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		pid := newProject(t, s)

		if _, err := s.SaveCompanyProfile(ctx, pid, models.CompanyProfile{
			BusinessIdea:     "Invoices for freelancers",
			BusinessName:     "Billable",
			ValueProposition: "Get paid twice as fast",
		}); err != nil {
			t.Fatalf("SaveCompanyProfile: %v", err)
		}
		saved, err := s.SaveCompanyProfile(ctx, pid, models.CompanyProfile{MissionStatement: "Make cash flow boring"})
		if err != nil {
			t.Fatalf("SaveCompanyProfile: %v", err)
		}

		if saved.BusinessName != "Billable" || saved.ValueProposition != "Get paid twice as fast" {
			t.Errorf("omitted fields were cleared: %+v", saved)
		}
		if saved.MissionStatement != "Make cash flow boring" {
			t.Errorf("MissionStatement = %q", saved.MissionStatement)
		}

		bc, err := s.Load(ctx, pid)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if bc.CompanyProfile != *saved {
			t.Errorf("loaded profile %+v differs from returned %+v", bc.CompanyProfile, *saved)
		}
	})
}

func TestMarketIntelligenceColumnLevelUpsert(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		pid := newProject(t, s)

		if _, err := s.UpdateMarketIntelligence(ctx, pid, models.MarketIntelligence{
			MarketSize: &models.MarketSize{TAM: 5e9, SAM: 5e8, SOM: 5e7, Currency: "USD"},
		}); err != nil {
			t.Fatalf("UpdateMarketIntelligence: %v", err)
		}
		saved, err := s.UpdateMarketIntelligence(ctx, pid, models.MarketIntelligence{
			Competitors: []models.Competitor{{Name: "Competitor A", Strengths: []string{"brand"}, Weaknesses: []string{"price"}}},
		})
		if err != nil {
			t.Fatalf("UpdateMarketIntelligence: %v", err)
		}
		if saved.MarketSize == nil || saved.MarketSize.TAM != 5e9 {
			t.Errorf("market size was cleared: %+v", saved.MarketSize)
		}
		if len(saved.Competitors) != 1 || saved.Competitors[0].Name != "Competitor A" {
			t.Errorf("Competitors = %+v", saved.Competitors)
		}

		bc, err := s.Load(ctx, pid)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if bc.MarketIntelligence == nil || bc.MarketIntelligence.MarketSize.Currency != "USD" {
			t.Errorf("loaded market intelligence = %+v", bc.MarketIntelligence)
		}
		if bc.ProductSpecs != nil || bc.BusinessOperations != nil {
			t.Error("unwritten sections should be absent")
		}
	})
}

func TestProductSpecsAndOperationsUpsert(t *testing.T) {
	s := openStore(t, DriverNcruces)
	ctx := context.Background()
	pid := newProject(t, s)

	if _, err := s.UpdateProductSpecs(ctx, pid, models.ProductSpecifications{
		Features:  []models.Feature{{ID: "f1", Name: "Dashboard", Priority: "must-have", Status: "planned"}},
		TechStack: &models.TechStack{Backend: []string{"Go"}},
	}); err != nil {
		t.Fatalf("UpdateProductSpecs: %v", err)
	}
	ps, err := s.UpdateProductSpecs(ctx, pid, models.ProductSpecifications{
		Roadmap: []models.Milestone{{Milestone: "Beta", Deadline: "2026-03-01", Features: []string{"f1"}, Status: "planned"}},
	})
	if err != nil {
		t.Fatalf("UpdateProductSpecs: %v", err)
	}
	if len(ps.Features) != 1 || ps.TechStack == nil || len(ps.Roadmap) != 1 {
		t.Errorf("product specs lost fields: %+v", ps)
	}

	if _, err := s.UpdateBusinessOperations(ctx, pid, models.BusinessOperations{
		Team: &models.Team{Size: 2, Roles: []models.TeamRole{{Title: "Engineer", Count: 2, Status: "filled"}}},
	}); err != nil {
		t.Fatalf("UpdateBusinessOperations: %v", err)
	}
	bo, err := s.UpdateBusinessOperations(ctx, pid, models.BusinessOperations{
		Financials: &models.Financials{Pricing: &models.Pricing{Model: "tiered-subscription"}},
	})
	if err != nil {
		t.Fatalf("UpdateBusinessOperations: %v", err)
	}
	if bo.Team == nil || bo.Team.Size != 2 {
		t.Errorf("team was cleared: %+v", bo.Team)
	}
	if bo.Financials == nil || bo.Financials.Pricing.Model != "tiered-subscription" {
		t.Errorf("Financials = %+v", bo.Financials)
	}
}

func TestWritesTouchProject(t *testing.T) {
	s := openStore(t, DriverNcruces)
	ctx := context.Background()
	pid := newProject(t, s)

	before, err := s.GetProject(ctx, pid)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveCompanyProfile(ctx, pid, models.CompanyProfile{BusinessIdea: "x"}); err != nil {
		t.Fatal(err)
	}
	after, err := s.GetProject(ctx, pid)
	if err != nil {
		t.Fatal(err)
	}
	if after.UpdatedAt <= before.UpdatedAt {
		t.Errorf("updated_at not bumped: %s -> %s", before.UpdatedAt, after.UpdatedAt)
	}
}
