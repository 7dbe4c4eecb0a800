package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanpac24/Vibebusiness/internal/errinfo"
	"github.com/alanpac24/Vibebusiness/internal/models"
)

// Load assembles the full business context of a project. It returns ErrNotFound
// when the project has no company profile.
func (s *Store) Load(ctx context.Context, projectID string) (*models.BusinessContext, error) {
	bc := &models.BusinessContext{ProjectID: projectID}
	var profileErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := scanCompanyProfile(s.db.QueryRowContext(gctx,
			`SELECT `+profileColumns+` FROM company_profiles WHERE project_id = ?`, projectID))
		if errors.Is(err, sql.ErrNoRows) {
			profileErr = fmt.Errorf("company profile for project %s: %w", projectID, ErrNotFound)
			return nil
		}
		if err != nil {
			return errinfo.PersistenceFailed("load company profile", err)
		}
		bc.CompanyProfile = *p
		return nil
	})
	g.Go(func() error {
		mi, err := scanMarketIntelligence(s.db.QueryRowContext(gctx,
			`SELECT `+marketColumns+` FROM market_intelligence WHERE project_id = ?`, projectID))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return errinfo.PersistenceFailed("load market intelligence", err)
		}
		bc.MarketIntelligence = mi
		return nil
	})
	g.Go(func() error {
		ps, err := scanProductSpecs(s.db.QueryRowContext(gctx,
			`SELECT `+productColumns+` FROM product_specifications WHERE project_id = ?`, projectID))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return errinfo.PersistenceFailed("load product specifications", err)
		}
		bc.ProductSpecs = ps
		return nil
	})
	g.Go(func() error {
		bo, err := scanBusinessOperations(s.db.QueryRowContext(gctx,
			`SELECT `+operationsColumns+` FROM business_operations WHERE project_id = ?`, projectID))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return errinfo.PersistenceFailed("load business operations", err)
		}
		bc.BusinessOperations = bo
		return nil
	})
	g.Go(func() error {
		outputs, err := s.agentOutputs(gctx, projectID)
		if err != nil {
			return errinfo.PersistenceFailed("load agent outputs", err)
		}
		bc.AgentOutputs = outputs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if profileErr != nil {
		return nil, profileErr
	}
	return bc, nil
}

// agentOutputs indexes every output row by agent id. Rows are read oldest
// first so a later duplicate wins.
func (s *Store) agentOutputs(ctx context.Context, projectID string) (map[string]models.AgentOutput, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+outputColumns+` FROM agent_outputs WHERE project_id = ? ORDER BY created_at, rowid`,
		projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	outputs := map[string]models.AgentOutput{}
	for rows.Next() {
		out, err := scanAgentOutput(rows)
		if err != nil {
			return nil, err
		}
		outputs[out.AgentID] = *out
	}
	return outputs, rows.Err()
}

// SaveCompanyProfile upserts the profile column by column. Empty strings leave
// the stored value unchanged. The stored row is returned.
func (s *Store) SaveCompanyProfile(ctx context.Context, projectID string, p models.CompanyProfile) (*models.CompanyProfile, error) {
	var saved *models.CompanyProfile
	err := s.withTx(ctx, "save company profile", func(tx *sql.Tx) error {
		now := s.timestamp()
		if err := touchProject(ctx, tx, projectID, now); err != nil {
			return err
		}
		row := tx.QueryRowContext(ctx, `
			INSERT INTO company_profiles (id, project_id, business_idea, business_name, problem_statement,
			    value_proposition, mission_statement, brand_story, target_market, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(project_id) DO UPDATE SET
			    business_idea     = COALESCE(excluded.business_idea, business_idea),
			    business_name     = COALESCE(excluded.business_name, business_name),
			    problem_statement = COALESCE(excluded.problem_statement, problem_statement),
			    value_proposition = COALESCE(excluded.value_proposition, value_proposition),
			    mission_statement = COALESCE(excluded.mission_statement, mission_statement),
			    brand_story       = COALESCE(excluded.brand_story, brand_story),
			    target_market     = COALESCE(excluded.target_market, target_market),
			    updated_at        = excluded.updated_at
			RETURNING `+profileColumns,
			uuid.New().String(), projectID,
			nullString(p.BusinessIdea), nullString(p.BusinessName), nullString(p.ProblemStatement),
			nullString(p.ValueProposition), nullString(p.MissionStatement), nullString(p.BrandStory),
			nullString(p.TargetMarket), now,
		)
		var err error
		saved, err = scanCompanyProfile(row)
		if err != nil {
			return fmt.Errorf("upsert company profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// UpdateMarketIntelligence upserts market intelligence. Nil fields leave the
// stored value unchanged.
func (s *Store) UpdateMarketIntelligence(ctx context.Context, projectID string, mi models.MarketIntelligence) (*models.MarketIntelligence, error) {
	size, err := encodePtr(mi.MarketSize)
	if err != nil {
		return nil, encodeErr("market_size", err)
	}
	competitors, err := encodeSlice(mi.Competitors)
	if err != nil {
		return nil, encodeErr("competitors", err)
	}
	research, err := encodeSlice(mi.PricingResearch)
	if err != nil {
		return nil, encodeErr("pricing_research", err)
	}
	feedback, err := encodeSlice(mi.CustomerFeedback)
	if err != nil {
		return nil, encodeErr("customer_feedback", err)
	}

	var saved *models.MarketIntelligence
	err = s.withTx(ctx, "update market intelligence", func(tx *sql.Tx) error {
		now := s.timestamp()
		if err := touchProject(ctx, tx, projectID, now); err != nil {
			return err
		}
		row := tx.QueryRowContext(ctx, `
			INSERT INTO market_intelligence (id, project_id, market_size, competitors, pricing_research,
			    customer_feedback, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(project_id) DO UPDATE SET
			    market_size       = COALESCE(excluded.market_size, market_size),
			    competitors       = COALESCE(excluded.competitors, competitors),
			    pricing_research  = COALESCE(excluded.pricing_research, pricing_research),
			    customer_feedback = COALESCE(excluded.customer_feedback, customer_feedback),
			    updated_at        = excluded.updated_at
			RETURNING `+marketColumns,
			uuid.New().String(), projectID, size, competitors, research, feedback, now,
		)
		var err error
		saved, err = scanMarketIntelligence(row)
		if err != nil {
			return fmt.Errorf("upsert market intelligence: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// UpdateProductSpecs upserts product specifications. Nil fields leave the
// stored value unchanged.
func (s *Store) UpdateProductSpecs(ctx context.Context, projectID string, ps models.ProductSpecifications) (*models.ProductSpecifications, error) {
	features, err := encodeSlice(ps.Features)
	if err != nil {
		return nil, encodeErr("features", err)
	}
	stack, err := encodePtr(ps.TechStack)
	if err != nil {
		return nil, encodeErr("tech_stack", err)
	}
	arch, err := encodePtr(ps.Architecture)
	if err != nil {
		return nil, encodeErr("architecture", err)
	}
	roadmap, err := encodeSlice(ps.Roadmap)
	if err != nil {
		return nil, encodeErr("roadmap", err)
	}

	var saved *models.ProductSpecifications
	err = s.withTx(ctx, "update product specifications", func(tx *sql.Tx) error {
		now := s.timestamp()
		if err := touchProject(ctx, tx, projectID, now); err != nil {
			return err
		}
		row := tx.QueryRowContext(ctx, `
			INSERT INTO product_specifications (id, project_id, features, tech_stack, architecture, roadmap, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(project_id) DO UPDATE SET
			    features     = COALESCE(excluded.features, features),
			    tech_stack   = COALESCE(excluded.tech_stack, tech_stack),
			    architecture = COALESCE(excluded.architecture, architecture),
			    roadmap      = COALESCE(excluded.roadmap, roadmap),
			    updated_at   = excluded.updated_at
			RETURNING `+productColumns,
			uuid.New().String(), projectID, features, stack, arch, roadmap, now,
		)
		var err error
		saved, err = scanProductSpecs(row)
		if err != nil {
			return fmt.Errorf("upsert product specifications: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// UpdateBusinessOperations upserts business operations. Nil fields leave the
// stored value unchanged.
func (s *Store) UpdateBusinessOperations(ctx context.Context, projectID string, bo models.BusinessOperations) (*models.BusinessOperations, error) {
	financials, err := encodePtr(bo.Financials)
	if err != nil {
		return nil, encodeErr("financials", err)
	}
	team, err := encodePtr(bo.Team)
	if err != nil {
		return nil, encodeErr("team", err)
	}
	legal, err := encodePtr(bo.Legal)
	if err != nil {
		return nil, encodeErr("legal", err)
	}
	metrics, err := encodePtr(bo.Metrics)
	if err != nil {
		return nil, encodeErr("metrics", err)
	}

	var saved *models.BusinessOperations
	err = s.withTx(ctx, "update business operations", func(tx *sql.Tx) error {
		now := s.timestamp()
		if err := touchProject(ctx, tx, projectID, now); err != nil {
			return err
		}
		row := tx.QueryRowContext(ctx, `
			INSERT INTO business_operations (id, project_id, financials, team, legal, metrics, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(project_id) DO UPDATE SET
			    financials = COALESCE(excluded.financials, financials),
			    team       = COALESCE(excluded.team, team),
			    legal      = COALESCE(excluded.legal, legal),
			    metrics    = COALESCE(excluded.metrics, metrics),
			    updated_at = excluded.updated_at
			RETURNING `+operationsColumns,
			uuid.New().String(), projectID, financials, team, legal, metrics, now,
		)
		var err error
		saved, err = scanBusinessOperations(row)
		if err != nil {
			return fmt.Errorf("upsert business operations: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// SaveAgentOutput upserts the output keyed by (project, agent), replacing any
// earlier run and stamping a fresh timestamp.
func (s *Store) SaveAgentOutput(ctx context.Context, out models.AgentOutput) (*models.AgentOutput, error) {
	if out.ProjectID == "" || out.AgentID == "" {
		return nil, errinfo.ValidationFailed(errinfo.PhaseStore, "agent output needs project id and agent id")
	}
	data := out.Data
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	if !json.Valid(data) {
		return nil, errinfo.ValidationFailed(errinfo.PhaseStore, "agent output data is not valid JSON")
	}
	meta, err := encodePtr(out.Metadata)
	if err != nil {
		return nil, encodeErr("metadata", err)
	}

	var saved *models.AgentOutput
	err = s.withTx(ctx, "save agent output", func(tx *sql.Tx) error {
		now := s.timestamp()
		if err := touchProject(ctx, tx, out.ProjectID, now); err != nil {
			return err
		}
		row := tx.QueryRowContext(ctx, `
			INSERT INTO agent_outputs (id, project_id, agent_id, data, metadata, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(project_id, agent_id) DO UPDATE SET
			    data       = excluded.data,
			    metadata   = excluded.metadata,
			    created_at = excluded.created_at
			RETURNING `+outputColumns,
			uuid.New().String(), out.ProjectID, out.AgentID, string(data), meta, now,
		)
		var err error
		saved, err = scanAgentOutput(row)
		if err != nil {
			return fmt.Errorf("upsert agent output: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// GetCompletedAgents returns the distinct agent ids with a stored output,
// oldest completion first.
func (s *Store) GetCompletedAgents(ctx context.Context, projectID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT agent_id FROM agent_outputs WHERE project_id = ?
		 GROUP BY agent_id ORDER BY MIN(created_at), agent_id`,
		projectID,
	)
	if err != nil {
		return nil, errinfo.PersistenceFailed("get completed agents", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errinfo.PersistenceFailed("scan completed agent", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errinfo.PersistenceFailed("get completed agents", err)
	}
	return ids, nil
}

// --- Row mapping ---

const profileColumns = `id, project_id, COALESCE(business_idea, ''), COALESCE(business_name, ''),
	COALESCE(problem_statement, ''), COALESCE(value_proposition, ''), COALESCE(mission_statement, ''),
	COALESCE(brand_story, ''), COALESCE(target_market, ''), updated_at`

const marketColumns = `id, project_id, market_size, competitors, pricing_research, customer_feedback, updated_at`

const productColumns = `id, project_id, features, tech_stack, architecture, roadmap, updated_at`

const operationsColumns = `id, project_id, financials, team, legal, metrics, updated_at`

const outputColumns = `project_id, agent_id, data, metadata, created_at`

func scanCompanyProfile(row rowScanner) (*models.CompanyProfile, error) {
	var p models.CompanyProfile
	err := row.Scan(&p.ID, &p.ProjectID, &p.BusinessIdea, &p.BusinessName, &p.ProblemStatement,
		&p.ValueProposition, &p.MissionStatement, &p.BrandStory, &p.TargetMarket, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanMarketIntelligence(row rowScanner) (*models.MarketIntelligence, error) {
	var mi models.MarketIntelligence
	var size, competitors, research, feedback sql.NullString
	if err := row.Scan(&mi.ID, &mi.ProjectID, &size, &competitors, &research, &feedback, &mi.UpdatedAt); err != nil {
		return nil, err
	}
	if err := errors.Join(
		decodeJSON(size, &mi.MarketSize),
		decodeJSON(competitors, &mi.Competitors),
		decodeJSON(research, &mi.PricingResearch),
		decodeJSON(feedback, &mi.CustomerFeedback),
	); err != nil {
		return nil, fmt.Errorf("decode market intelligence: %w", err)
	}
	return &mi, nil
}

func scanProductSpecs(row rowScanner) (*models.ProductSpecifications, error) {
	var ps models.ProductSpecifications
	var features, stack, arch, roadmap sql.NullString
	if err := row.Scan(&ps.ID, &ps.ProjectID, &features, &stack, &arch, &roadmap, &ps.UpdatedAt); err != nil {
		return nil, err
	}
	if err := errors.Join(
		decodeJSON(features, &ps.Features),
		decodeJSON(stack, &ps.TechStack),
		decodeJSON(arch, &ps.Architecture),
		decodeJSON(roadmap, &ps.Roadmap),
	); err != nil {
		return nil, fmt.Errorf("decode product specifications: %w", err)
	}
	return &ps, nil
}

func scanBusinessOperations(row rowScanner) (*models.BusinessOperations, error) {
	var bo models.BusinessOperations
	var financials, team, legal, metrics sql.NullString
	if err := row.Scan(&bo.ID, &bo.ProjectID, &financials, &team, &legal, &metrics, &bo.UpdatedAt); err != nil {
		return nil, err
	}
	if err := errors.Join(
		decodeJSON(financials, &bo.Financials),
		decodeJSON(team, &bo.Team),
		decodeJSON(legal, &bo.Legal),
		decodeJSON(metrics, &bo.Metrics),
	); err != nil {
		return nil, fmt.Errorf("decode business operations: %w", err)
	}
	return &bo, nil
}

func scanAgentOutput(row rowScanner) (*models.AgentOutput, error) {
	var out models.AgentOutput
	var data string
	var meta sql.NullString
	if err := row.Scan(&out.ProjectID, &out.AgentID, &data, &meta, &out.Timestamp); err != nil {
		return nil, err
	}
	out.Data = json.RawMessage(data)
	if err := decodeJSON(meta, &out.Metadata); err != nil {
		return nil, fmt.Errorf("decode agent output metadata: %w", err)
	}
	return &out, nil
}

func encodeErr(field string, err error) error {
	return errinfo.ValidationFailed(errinfo.PhaseStore, fmt.Sprintf("encode %s: %v", field, err))
}
