package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alanpac24/Vibebusiness/internal/agents"
	"github.com/alanpac24/Vibebusiness/internal/catalog"
	"github.com/alanpac24/Vibebusiness/internal/diff"
	"github.com/alanpac24/Vibebusiness/internal/errinfo"
	"github.com/alanpac24/Vibebusiness/internal/merge"
	"github.com/alanpac24/Vibebusiness/internal/models"
	"github.com/alanpac24/Vibebusiness/internal/resolver"
	"github.com/alanpac24/Vibebusiness/internal/storage"
)

// Store is the persistence a session reads through and writes through.
type Store interface {
	EnsureActiveProject(ctx context.Context, userID string) (*models.Project, bool, error)
	Load(ctx context.Context, projectID string) (*models.BusinessContext, error)
	SaveCompanyProfile(ctx context.Context, projectID string, p models.CompanyProfile) (*models.CompanyProfile, error)
	UpdateMarketIntelligence(ctx context.Context, projectID string, mi models.MarketIntelligence) (*models.MarketIntelligence, error)
	UpdateProductSpecs(ctx context.Context, projectID string, ps models.ProductSpecifications) (*models.ProductSpecifications, error)
	UpdateBusinessOperations(ctx context.Context, projectID string, bo models.BusinessOperations) (*models.BusinessOperations, error)
	SaveAgentOutput(ctx context.Context, out models.AgentOutput) (*models.AgentOutput, error)
	GetCompletedAgents(ctx context.Context, projectID string) ([]string, error)
}

// Session caches one user's active project, its business context and the
// derived UI state. Every write goes to the store first; the cache only
// reflects rows the store returned.
type Session struct {
	mu       sync.Mutex
	userID   string
	store    Store
	catalog  *catalog.Catalog
	registry *agents.Registry
	logger   *slog.Logger

	loaded   bool
	project  models.Project
	business models.BusinessContext
	ui       resolver.AgentUIState
	running  string
}

// New creates an unloaded session for userID.
func New(userID string, store Store, c *catalog.Catalog, reg *agents.Registry, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{
		userID:   userID,
		store:    store,
		catalog:  c,
		registry: reg,
		logger:   logger.With("user", userID),
	}
}

// UserID returns the owning user.
func (s *Session) UserID() string {
	return s.userID
}

// Open loads the active project, creating it on first access.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensure(ctx)
}

// Refetch discards the cache and reloads from the store.
func (s *Session) Refetch(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	return s.ensure(ctx)
}

// Invalidate drops the cache; the next access reloads from the store.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
}

// Project returns the active project.
func (s *Session) Project(ctx context.Context) (models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensure(ctx); err != nil {
		return models.Project{}, err
	}
	return s.project, nil
}

// Context returns a snapshot of the business context.
func (s *Session) Context(ctx context.Context) (models.BusinessContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensure(ctx); err != nil {
		return models.BusinessContext{}, err
	}
	return s.business.Clone(), nil
}

// UIState returns a snapshot of the agent UI state.
func (s *Session) UIState(ctx context.Context) (resolver.AgentUIState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensure(ctx); err != nil {
		return resolver.AgentUIState{}, err
	}
	return s.ui.Clone(), nil
}

// ensure loads state if needed. Callers hold s.mu.
func (s *Session) ensure(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	proj, created, err := s.store.EnsureActiveProject(ctx, s.userID)
	if err != nil {
		return fmt.Errorf("active project: %w", err)
	}
	if created {
		s.logger.Info("created project", "project", proj.ID, "name", proj.Name)
	}

	bc, err := s.store.Load(ctx, proj.ID)
	if errors.Is(err, storage.ErrNotFound) {
		// Project exists without a profile: initialize it and load again.
		s.logger.Warn("initializing missing company profile", "project", proj.ID)
		if _, err := s.store.SaveCompanyProfile(ctx, proj.ID, models.CompanyProfile{}); err != nil {
			return fmt.Errorf("initialize project %s: %w", proj.ID, err)
		}
		bc, err = s.store.Load(ctx, proj.ID)
	}
	if err != nil {
		return fmt.Errorf("load project %s: %w", proj.ID, err)
	}

	completed, err := s.store.GetCompletedAgents(ctx, proj.ID)
	if err != nil {
		return err
	}

	s.project = *proj
	s.business = *bc
	if s.business.AgentOutputs == nil {
		s.business.AgentOutputs = map[string]models.AgentOutput{}
	}
	s.ui = resolver.Project(s.catalog, proj.ID, completed)
	s.ui.CurrentAgent = s.running
	s.loaded = true
	return nil
}

// SaveContext persists every present field of update and then merges what the
// store returned into the cache. On any store error nothing is merged.
func (s *Session) SaveContext(ctx context.Context, update models.ContextUpdate) (models.BusinessContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensure(ctx); err != nil {
		return models.BusinessContext{}, err
	}
	if update.Empty() {
		return models.BusinessContext{}, errinfo.ValidationFailed(errinfo.PhaseSession, "update has no fields")
	}
	if err := s.saveLocked(ctx, s.project.ID, update); err != nil {
		return models.BusinessContext{}, err
	}
	return s.business.Clone(), nil
}

// Revision reports a stored agent output and how it differs from the run it
// replaced.
type Revision struct {
	Output            models.AgentOutput    `json:"output"`
	Rerun             bool                  `json:"rerun"`
	PreviousTimestamp string                `json:"previous_timestamp,omitempty"`
	Diff              *diff.Summary         `json:"diff,omitempty"`
	UIState           resolver.AgentUIState `json:"ui_state"`
}

// SaveAgentOutput records an agent's output together with any context update,
// then refreshes the completed set and UI state from the store.
func (s *Session) SaveAgentOutput(ctx context.Context, agentID string, data json.RawMessage, meta *models.OutputMetadata, update *models.ContextUpdate) (Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensure(ctx); err != nil {
		return Revision{}, err
	}
	return s.saveOutputLocked(ctx, s.project.ID, agentID, data, meta, update)
}

func (s *Session) saveOutputLocked(ctx context.Context, projectID, agentID string, data json.RawMessage, meta *models.OutputMetadata, update *models.ContextUpdate) (Revision, error) {
	if !s.catalog.Has(agentID) {
		return Revision{}, errinfo.UnknownAgent(agentID)
	}
	// The cache may have been dropped mid-run, e.g. after an archive.
	if err := s.ensure(ctx); err != nil {
		return Revision{}, err
	}
	if projectID != s.project.ID {
		return Revision{}, errinfo.ValidationFailed(errinfo.PhaseSession, "active project changed while the agent was running")
	}

	var combined models.ContextUpdate
	if update != nil {
		combined = *update
	}
	outputs := make(map[string]models.AgentOutput, len(combined.AgentOutputs)+1)
	for id, o := range combined.AgentOutputs {
		outputs[id] = o
	}
	outputs[agentID] = models.AgentOutput{AgentID: agentID, ProjectID: projectID, Data: data, Metadata: meta}
	combined.AgentOutputs = outputs

	prev, hadPrev := s.business.AgentOutputs[agentID]
	if err := s.saveLocked(ctx, projectID, combined); err != nil {
		return Revision{}, err
	}

	rev := Revision{
		Output:  s.business.AgentOutputs[agentID],
		Rerun:   hadPrev,
		UIState: s.ui.Clone(),
	}
	if hadPrev {
		d := diff.JSON(prev.Data, rev.Output.Data)
		rev.PreviousTimestamp = prev.Timestamp
		rev.Diff = &d
	}
	return rev, nil
}

// saveLocked persists each present field, merges the stored rows and, when
// agent outputs were written, re-reads completion from the store.
func (s *Session) saveLocked(ctx context.Context, projectID string, update models.ContextUpdate) error {
	for id := range update.AgentOutputs {
		if !s.catalog.Has(id) {
			return errinfo.UnknownAgent(id)
		}
	}

	var stored models.ContextUpdate
	wrote := false
	fail := func(err error) error {
		if wrote {
			// Some rows reached the store; reload on next access.
			s.loaded = false
		}
		s.logger.Error("persist context", "project", projectID, "error", err)
		return err
	}

	if update.CompanyProfile != nil {
		p, err := s.store.SaveCompanyProfile(ctx, projectID, *update.CompanyProfile)
		if err != nil {
			return fail(err)
		}
		stored.CompanyProfile, wrote = p, true
	}
	if update.MarketIntelligence != nil {
		mi, err := s.store.UpdateMarketIntelligence(ctx, projectID, *update.MarketIntelligence)
		if err != nil {
			return fail(err)
		}
		stored.MarketIntelligence, wrote = mi, true
	}
	if update.ProductSpecs != nil {
		ps, err := s.store.UpdateProductSpecs(ctx, projectID, *update.ProductSpecs)
		if err != nil {
			return fail(err)
		}
		stored.ProductSpecs, wrote = ps, true
	}
	if update.BusinessOperations != nil {
		bo, err := s.store.UpdateBusinessOperations(ctx, projectID, *update.BusinessOperations)
		if err != nil {
			return fail(err)
		}
		stored.BusinessOperations, wrote = bo, true
	}
	if len(update.AgentOutputs) > 0 {
		stored.AgentOutputs = make(map[string]models.AgentOutput, len(update.AgentOutputs))
		for id, o := range update.AgentOutputs {
			o.AgentID = id
			o.ProjectID = projectID
			saved, err := s.store.SaveAgentOutput(ctx, o)
			if err != nil {
				return fail(err)
			}
			stored.AgentOutputs[id], wrote = *saved, true
		}
	}

	if len(stored.AgentOutputs) > 0 {
		completed, err := s.store.GetCompletedAgents(ctx, projectID)
		if err != nil {
			return fail(err)
		}
		s.ui = resolver.Project(s.catalog, projectID, completed)
		s.ui.CurrentAgent = s.running
	}
	s.business = merge.Apply(s.business, stored)
	return nil
}

// RunResult is the outcome of a successful agent run.
type RunResult struct {
	Summary string   `json:"summary"`
	Updated []string `json:"updated_fields"`
	Revision
}

// RunAgent executes an agent against the cached context and saves its output.
// Only one agent runs at a time per session. A failed run persists nothing.
func (s *Session) RunAgent(ctx context.Context, agentID string, input map[string]any) (*RunResult, error) {
	s.mu.Lock()
	if err := s.ensure(ctx); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if !s.catalog.Has(agentID) {
		s.mu.Unlock()
		return nil, errinfo.UnknownAgent(agentID)
	}
	if !s.ui.CanRun(agentID) {
		blocked := s.ui.BlockedBy[agentID]
		s.mu.Unlock()
		return nil, errinfo.AgentLocked(agentID, blocked)
	}
	exec, ok := s.registry.Lookup(agentID)
	if !ok {
		s.mu.Unlock()
		return nil, errinfo.ValidationFailed(errinfo.PhaseSession,
			fmt.Sprintf("agent %s has no executor; record its result with save_agent_output", agentID))
	}
	if s.running != "" {
		running := s.running
		s.mu.Unlock()
		return nil, errinfo.AgentRunning(running)
	}
	s.running = agentID
	s.ui.CurrentAgent = agentID
	snapshot := s.business.Clone()
	projectID := s.project.ID
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = ""
		s.ui.CurrentAgent = ""
		s.mu.Unlock()
	}()

	s.logger.Info("running agent", "agent", agentID, "project", projectID)
	res := exec.Execute(ctx, snapshot, input)
	if !res.Success {
		s.logger.Warn("agent failed", "agent", agentID, "error", res.Error)
		return nil, errinfo.ExecutorFailed(agentID, res.Error, nil)
	}

	if res.Output == nil {
		return nil, errinfo.ExecutorFailed(agentID, "executor returned no output", nil)
	}
	var update models.ContextUpdate
	if res.ContextUpdates != nil {
		update = *res.ContextUpdates
	}
	updated := update.Fields()
	update.AgentOutputs = nil

	s.mu.Lock()
	rev, err := s.saveOutputLocked(ctx, projectID, agentID, res.Output.Data, res.Output.Metadata, &update)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var data struct {
		Summary string `json:"summary"`
	}
	_ = json.Unmarshal(rev.Output.Data, &data)
	return &RunResult{Summary: data.Summary, Updated: updated, Revision: rev}, nil
}

// Running returns the agent currently executing, if any.
func (s *Session) Running() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
