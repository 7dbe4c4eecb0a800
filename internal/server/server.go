package server

import (
	"log/slog"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/alanpac24/Vibebusiness/internal/catalog"
	"github.com/alanpac24/Vibebusiness/internal/session"
	"github.com/alanpac24/Vibebusiness/internal/tools"
)

const (
	Name    = "vibebusiness"
	Version = "0.1.0"
)

// Deps are shared by every per-user server.
type Deps struct {
	Catalog  *catalog.Catalog
	Store    tools.ProjectStore
	Sessions *session.Manager
	Logger   *slog.Logger
}

// New creates an MCP server with all tools registered, bound to userID's
// session.
func New(deps Deps, userID string) *mcp.Server {
	logger := deps.logger().With("user", userID)
	sess := deps.Sessions.Get(userID)

	at := &tools.AgentTools{Catalog: deps.Catalog, Session: sess, Logger: logger}
	ct := &tools.ContextTools{Session: sess, Logger: logger}
	pt := &tools.ProjectTools{Store: deps.Store, Session: sess, Logger: logger}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    Name,
		Version: Version,
	}, nil)

	// Agent tools
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_agents",
		Description: "List the planning agents with their category, prerequisites and current state (completed, available, locked)",
	}, at.ListAgents)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_agent_status",
		Description: "Get the completed, available and locked agents of the active project, or the state of one agent",
	}, at.GetAgentStatus)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "run_agent",
		Description: "Run an available agent against the business context and save its output (fails if prerequisites are missing)",
	}, at.RunAgent)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "save_agent_output",
		Description: "Record an agent's result produced elsewhere, optionally with business context updates; marks the agent completed",
	}, at.SaveAgentOutput)

	// Business context tools
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_context",
		Description: "Get the business context of the active project: company profile, market intelligence, product specs, operations and agent outputs",
	}, ct.GetContext)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "refetch_context",
		Description: "Reload the business context from storage, discarding the cached copy",
	}, ct.RefetchContext)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "save_context",
		Description: "Persist business context fields; omitted fields keep their stored values",
	}, ct.SaveContext)

	// Project tools
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_project",
		Description: "Get the active project, creating a default one on first use",
	}, pt.GetProject)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_projects",
		Description: "List your projects with optional status filter (active, archived, completed, all)",
	}, pt.ListProjects)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "create_project",
		Description: "Create a new active project (only one project may be active at a time)",
	}, pt.CreateProject)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "set_project_status",
		Description: "Archive, complete or reactivate one of your projects",
	}, pt.SetProjectStatus)

	return srv
}

// Pool caches one server per user for the HTTP transport.
type Pool struct {
	deps Deps

	mu      sync.Mutex
	servers map[string]*mcp.Server
}

func NewPool(deps Deps) *Pool {
	return &Pool{deps: deps, servers: make(map[string]*mcp.Server)}
}

// Get returns userID's server, creating it on first use.
func (p *Pool) Get(userID string) *mcp.Server {
	p.mu.Lock()
	defer p.mu.Unlock()
	srv, ok := p.servers[userID]
	if !ok {
		srv = New(p.deps, userID)
		p.servers[userID] = srv
		p.deps.logger().Info("created server", "user", userID)
	}
	return srv
}

// Len reports how many users have a server.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.servers)
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.Logger
}
