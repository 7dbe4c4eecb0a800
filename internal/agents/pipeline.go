// Package agents runs business-planning agents as ordered pipelines of
// sub-agents.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanpac24/Vibebusiness/internal/catalog"
	"github.com/alanpac24/Vibebusiness/internal/models"
)

// ExecutionContext is what a sub-agent sees: the agent being run, the working
// business context and the accumulated input, which holds the caller's input
// plus every earlier step's result under its step key.
type ExecutionContext struct {
	Agent    catalog.Agent
	Business models.BusinessContext
	Input    map[string]any
}

// SubAgent is one opaque compute step. Placeholder implementations return
// fixed data; a model-backed one can be swapped in behind the same contract.
type SubAgent interface {
	Execute(ctx context.Context, ec *ExecutionContext) (any, error)
}

// SubAgentFunc adapts a function to SubAgent.
type SubAgentFunc func(ctx context.Context, ec *ExecutionContext) (any, error)

// Execute calls f.
func (f SubAgentFunc) Execute(ctx context.Context, ec *ExecutionContext) (any, error) {
	return f(ctx, ec)
}

// Step is a named pipeline stage.
type Step struct {
	// Key names the result in the accumulated input and in the output data.
	Key  string
	Name string
	Run  SubAgent
	// Fold, if set, writes the result into the working business context
	// before the next step runs.
	Fold func(bc *models.BusinessContext, result any) error
}

// Result is the outcome of one executor invocation. On failure Output and
// ContextUpdates are nil.
type Result struct {
	Success        bool                  `json:"success"`
	Output         *models.AgentOutput   `json:"output,omitempty"`
	Error          string                `json:"error,omitempty"`
	ContextUpdates *models.ContextUpdate `json:"context_updates,omitempty"`
}

// Executor runs one agent.
type Executor interface {
	AgentID() string
	Execute(ctx context.Context, business models.BusinessContext, input map[string]any) Result
}

// ComposeFunc turns step results into a summary and the context update the
// caller should persist and merge. The agent output entry is added by the
// pipeline.
type ComposeFunc func(ec *ExecutionContext, results map[string]any) (summary string, update models.ContextUpdate, err error)

// Pipeline runs its steps strictly in order and fails as a whole if any step
// fails.
type Pipeline struct {
	Agent    catalog.Agent
	Steps    []Step
	Compose  ComposeFunc
	Metadata models.OutputMetadata

	Logger *slog.Logger
	Now    func() time.Time
}

// AgentID returns the catalog id the pipeline executes.
func (p *Pipeline) AgentID() string {
	return p.Agent.ID
}

// Replace swaps the sub-agent behind the step with the given key.
func (p *Pipeline) Replace(key string, sa SubAgent) error {
	for i := range p.Steps {
		if p.Steps[i].Key == key {
			p.Steps[i].Run = sa
			return nil
		}
	}
	return fmt.Errorf("agent %s has no step %q", p.Agent.ID, key)
}

// Execute runs the pipeline against a private copy of business. Input is not
// modified.
func (p *Pipeline) Execute(ctx context.Context, business models.BusinessContext, input map[string]any) Result {
	start := p.now()
	log := p.logger().With("agent", p.Agent.ID, "project", business.ProjectID)

	ec := &ExecutionContext{
		Agent:    p.Agent,
		Business: business.Clone(),
		Input:    make(map[string]any, len(input)+len(p.Steps)),
	}
	for k, v := range input {
		ec.Input[k] = v
	}

	results := make(map[string]any, len(p.Steps))
	for _, step := range p.Steps {
		if err := ctx.Err(); err != nil {
			return failure(fmt.Sprintf("%s: %v", step.Name, err))
		}
		if step.Run == nil {
			return failure(fmt.Sprintf("%s: no sub-agent configured", step.Name))
		}
		log.Debug("executor step", "step", step.Key)
		res, err := step.Run.Execute(ctx, ec)
		if err != nil {
			log.Debug("executor step failed", "step", step.Key, "error", err)
			return failure(fmt.Sprintf("%s: %v", step.Name, err))
		}
		if step.Fold != nil {
			if err := step.Fold(&ec.Business, res); err != nil {
				return failure(fmt.Sprintf("%s: %v", step.Name, err))
			}
		}
		ec.Input[step.Key] = res
		results[step.Key] = res
	}

	if p.Compose == nil {
		return failure("no composer configured")
	}
	summary, update, err := p.Compose(ec, results)
	if err != nil {
		return failure(fmt.Sprintf("compose %s output: %v", p.Agent.ID, err))
	}

	data := make(map[string]any, len(results)+1)
	for k, v := range results {
		data[k] = v
	}
	data["summary"] = summary
	raw, err := json.Marshal(data)
	if err != nil {
		return failure(fmt.Sprintf("encode %s output: %v", p.Agent.ID, err))
	}

	meta := p.Metadata
	meta.ProcessingTimeMs = p.now().Sub(start).Milliseconds()
	out := models.AgentOutput{
		AgentID:   p.Agent.ID,
		ProjectID: business.ProjectID,
		Timestamp: p.now().UTC().Format(time.RFC3339),
		Data:      raw,
		Metadata:  &meta,
	}
	update.AgentOutputs = map[string]models.AgentOutput{p.Agent.ID: out}
	return Result{Success: true, Output: &out, ContextUpdates: &update}
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func failure(msg string) Result {
	return Result{Success: false, Error: msg}
}

// inputAs reads a required earlier result from the accumulated input.
func inputAs[T any](ec *ExecutionContext, key string) (T, error) {
	var zero T
	v, ok := ec.Input[key]
	if !ok {
		return zero, fmt.Errorf("missing %s result", key)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("unusable shape for %s: got %T", key, v)
	}
	return t, nil
}

// fixed returns a sub-agent that always yields v.
func fixed[T any](v func() T) SubAgent {
	return SubAgentFunc(func(ctx context.Context, ec *ExecutionContext) (any, error) {
		return v(), nil
	})
}
