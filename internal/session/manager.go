package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/alanpac24/Vibebusiness/internal/agents"
	"github.com/alanpac24/Vibebusiness/internal/catalog"
	"github.com/alanpac24/Vibebusiness/internal/errinfo"
)

// Manager hands out one Session per user.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	store    Store
	catalog  *catalog.Catalog
	registry *agents.Registry
	logger   *slog.Logger
}

func NewManager(store Store, c *catalog.Catalog, reg *agents.Registry, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		sessions: make(map[string]*Session),
		store:    store,
		catalog:  c,
		registry: reg,
		logger:   logger,
	}
}

// Get returns the session for userID, creating it unloaded.
func (m *Manager) Get(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		s = New(userID, m.store, m.catalog, m.registry, m.logger)
		m.sessions[userID] = s
	}
	return s
}

// Open returns the loaded session for userID.
func (m *Manager) Open(ctx context.Context, userID string) (*Session, error) {
	if userID == "" {
		return nil, errinfo.ValidationFailed(errinfo.PhaseSession, "user id is required")
	}
	s := m.Get(userID)
	if err := s.Open(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Users lists users with a session, sorted.
func (m *Manager) Users() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]string, 0, len(m.sessions))
	for u := range m.sessions {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}
