package resolver

import (
	"github.com/alanpac24/Vibebusiness/internal/catalog"
)

// State is an agent's position in the planning sequence.
type State string

const (
	StateCompleted State = "completed"
	StateAvailable State = "available"
	StateLocked    State = "locked"
	StateUnknown   State = "unknown"
)

// Resolution partitions the agents that are not completed.
type Resolution struct {
	Available map[string]struct{}
	Locked    map[string]struct{}
	// BlockedBy lists the missing required inputs of each locked agent, in
	// declared order.
	BlockedBy map[string][]string
}

// Resolve decides which agents can run given the completed set. Only required
// inputs gate an agent; optional inputs are ignored. Completed ids missing from
// the catalog are ignored.
func Resolve(c *catalog.Catalog, completed map[string]struct{}) Resolution {
	res := Resolution{
		Available: map[string]struct{}{},
		Locked:    map[string]struct{}{},
		BlockedBy: map[string][]string{},
	}
	for _, a := range c.Agents {
		if _, done := completed[a.ID]; done {
			continue
		}
		var missing []string
		for _, dep := range a.RequiredInputs {
			if _, ok := completed[dep]; !ok {
				missing = append(missing, dep)
			}
		}
		if len(missing) == 0 {
			res.Available[a.ID] = struct{}{}
			continue
		}
		res.Locked[a.ID] = struct{}{}
		res.BlockedBy[a.ID] = missing
	}
	return res
}

// Set builds a membership set from ids.
func Set(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// AgentUIState is the projection consumed by presentation. The three id lists
// partition the catalog and follow catalog order.
type AgentUIState struct {
	ProjectID       string              `json:"project_id"`
	CompletedAgents []string            `json:"completed_agents"`
	AvailableAgents []string            `json:"available_agents"`
	LockedAgents    []string            `json:"locked_agents"`
	BlockedBy       map[string][]string `json:"blocked_by,omitempty"`
	CurrentAgent    string              `json:"current_agent,omitempty"`
}

// Project derives the UI state for a project from its completed agents.
func Project(c *catalog.Catalog, projectID string, completed []string) AgentUIState {
	done := Set(completed)
	res := Resolve(c, done)
	st := AgentUIState{
		ProjectID:       projectID,
		CompletedAgents: []string{},
		AvailableAgents: []string{},
		LockedAgents:    []string{},
		BlockedBy:       res.BlockedBy,
	}
	for _, a := range c.Agents {
		switch {
		case has(done, a.ID):
			st.CompletedAgents = append(st.CompletedAgents, a.ID)
		case has(res.Available, a.ID):
			st.AvailableAgents = append(st.AvailableAgents, a.ID)
		default:
			st.LockedAgents = append(st.LockedAgents, a.ID)
		}
	}
	return st
}

// StateOf reports where id sits in the projection.
func (s AgentUIState) StateOf(id string) State {
	switch {
	case contains(s.CompletedAgents, id):
		return StateCompleted
	case contains(s.AvailableAgents, id):
		return StateAvailable
	case contains(s.LockedAgents, id):
		return StateLocked
	}
	return StateUnknown
}

// CanRun reports whether id may be executed. Completed agents may re-run.
func (s AgentUIState) CanRun(id string) bool {
	st := s.StateOf(id)
	return st == StateAvailable || st == StateCompleted
}

// Clone returns a deep copy.
func (s AgentUIState) Clone() AgentUIState {
	out := s
	out.CompletedAgents = append([]string{}, s.CompletedAgents...)
	out.AvailableAgents = append([]string{}, s.AvailableAgents...)
	out.LockedAgents = append([]string{}, s.LockedAgents...)
	if s.BlockedBy != nil {
		out.BlockedBy = make(map[string][]string, len(s.BlockedBy))
		for id, deps := range s.BlockedBy {
			out.BlockedBy[id] = append([]string(nil), deps...)
		}
	}
	return out
}

func has(set map[string]struct{}, id string) bool {
	_, ok := set[id]
	return ok
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
