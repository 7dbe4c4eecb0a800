package agents

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alanpac24/Vibebusiness/internal/catalog"
	"github.com/alanpac24/Vibebusiness/internal/errinfo"
)

// Factory builds a pipeline for a catalog agent.
type Factory func(agent catalog.Agent) *Pipeline

// builtins maps agent ids to their placeholder pipelines.
var builtins = map[string]Factory{
	IdeaRefinerID:     NewIdeaRefiner,
	MarketResearchID:  NewMarketResearch,
	OfferDesignID:     NewOfferDesign,
	PricingStrategyID: NewPricingStrategy,
}

// Registry maps agent ids to executors.
type Registry struct {
	executors map[string]Executor
}

// NewRegistry registers executors whose agent ids must all exist in c.
func NewRegistry(c *catalog.Catalog, execs ...Executor) (*Registry, error) {
	r := &Registry{executors: make(map[string]Executor, len(execs))}
	for _, e := range execs {
		if err := r.Register(c, e); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an executor. Ids unknown to the catalog and duplicates are
// configuration errors.
func (r *Registry) Register(c *catalog.Catalog, e Executor) error {
	id := e.AgentID()
	if !c.Has(id) {
		return errinfo.ConfigurationInvalid(fmt.Sprintf("executor %s has no catalog entry", id))
	}
	if _, dup := r.executors[id]; dup {
		return errinfo.ConfigurationInvalid(fmt.Sprintf("executor %s registered twice", id))
	}
	r.executors[id] = e
	return nil
}

// Option configures the built-in pipelines.
type Option func(*Pipeline)

// WithLogger sets the step logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.Logger = l }
}

// WithClock sets the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.Now = now }
}

// DefaultRegistry registers every built-in executor against c.
func DefaultRegistry(c *catalog.Catalog, opts ...Option) (*Registry, error) {
	ids := make([]string, 0, len(builtins))
	for id := range builtins {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	r := &Registry{executors: make(map[string]Executor, len(builtins))}
	for _, id := range ids {
		agent, ok := c.Lookup(id)
		if !ok {
			return nil, errinfo.ConfigurationInvalid(fmt.Sprintf("executor %s has no catalog entry", id))
		}
		p := builtins[id](agent)
		for _, opt := range opts {
			opt(p)
		}
		if err := r.Register(c, p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Lookup returns the executor for id.
func (r *Registry) Lookup(id string) (Executor, bool) {
	e, ok := r.executors[id]
	return e, ok
}

// IDs returns the registered agent ids, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.executors))
	for id := range r.executors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
