package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/alanpac24/Vibebusiness/internal/errinfo"
	"github.com/alanpac24/Vibebusiness/internal/models"
	"github.com/alanpac24/Vibebusiness/internal/session"
	"github.com/alanpac24/Vibebusiness/internal/storage"
)

// ProjectStore is the project bookkeeping the project tools need.
type ProjectStore interface {
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListProjects(ctx context.Context, userID, status string) ([]models.Project, error)
	CreateProject(ctx context.Context, userID, name, description string) (*models.Project, error)
	SetProjectStatus(ctx context.Context, id, status string) (*models.Project, error)
}

// ProjectTools holds references needed by project management tool handlers.
type ProjectTools struct {
	Store   ProjectStore
	Session *session.Session
	Logger  *slog.Logger
}

// --- Input types ---

type ListProjectsInput struct {
	Status string `json:"status,omitempty" jsonschema:"Filter projects by status: active, archived, completed, or all (default all)"`
}

type CreateProjectInput struct {
	Name        string `json:"name,omitempty" jsonschema:"Project name (defaults to My SaaS Project)"`
	Description string `json:"description,omitempty" jsonschema:"Optional project description"`
}

type SetProjectStatusInput struct {
	ProjectID string `json:"project_id" jsonschema:"Id of the project to update"`
	Status    string `json:"status" jsonschema:"New status: active, archived, or completed"`
}

// --- Handlers ---

func (t *ProjectTools) GetProject(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	proj, err := t.Session.Project(ctx)
	if err != nil {
		return t.fail("get project", err), nil, nil
	}
	return toolJSON(proj)
}

func (t *ProjectTools) ListProjects(ctx context.Context, _ *mcp.CallToolRequest, input ListProjectsInput) (*mcp.CallToolResult, any, error) {
	projects, err := t.Store.ListProjects(ctx, t.Session.UserID(), input.Status)
	if err != nil {
		return t.fail("list projects", err), nil, nil
	}
	if projects == nil {
		projects = []models.Project{}
	}
	return toolJSON(projects)
}

func (t *ProjectTools) CreateProject(ctx context.Context, _ *mcp.CallToolRequest, input CreateProjectInput) (*mcp.CallToolResult, any, error) {
	name := input.Name
	if name == "" {
		name = storage.DefaultProjectName
	}
	proj, err := t.Store.CreateProject(ctx, t.Session.UserID(), name, input.Description)
	if err != nil {
		return t.fail("create project", err), nil, nil
	}
	// The new project is now the active one.
	if err := t.Session.Refetch(ctx); err != nil {
		return t.fail("create project", err), nil, nil
	}
	return toolJSON(proj)
}

func (t *ProjectTools) SetProjectStatus(ctx context.Context, _ *mcp.CallToolRequest, input SetProjectStatusInput) (*mcp.CallToolResult, any, error) {
	if input.ProjectID == "" {
		return t.fail("set project status", errinfo.ValidationFailed(errinfo.PhaseSession, "project_id is required")), nil, nil
	}
	// Projects of other users are reported as missing.
	existing, err := t.Store.GetProject(ctx, input.ProjectID)
	if err == nil && existing.UserID != t.Session.UserID() {
		err = storage.ErrNotFound
	}
	if err != nil {
		return t.fail("set project status", projectErr(input.ProjectID, err)), nil, nil
	}

	proj, err := t.Store.SetProjectStatus(ctx, input.ProjectID, input.Status)
	if err != nil {
		return t.fail("set project status", projectErr(input.ProjectID, err)), nil, nil
	}
	// Reload lazily so archiving the active project does not create a
	// default one before create_project runs.
	t.Session.Invalidate()
	return toolJSON(proj)
}

func (t *ProjectTools) fail(op string, err error) *mcp.CallToolResult {
	return toolFailure(t.Logger, op, err)
}

// --- Helpers ---

// projectErr maps store sentinels to coded errors.
func projectErr(projectID string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return errinfo.ProjectNotFound(projectID, err)
	case errors.Is(err, storage.ErrActiveProject):
		return errinfo.ValidationFailed(errinfo.PhaseStore, "user already has an active project; complete or archive it first")
	}
	return err
}

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

// toolFailure reports err as an ErrorInfo document. The error code leads the
// text so callers can match on it without parsing.
func toolFailure(logger *slog.Logger, op string, err error) *mcp.CallToolResult {
	err = projectErr("", err)
	info := errinfo.From(err, errinfo.PhaseSession)
	if logger != nil {
		logger.Warn("tool failed", "op", op, "code", info.ErrorCode, "error", err)
	}
	data, merr := json.MarshalIndent(info, "", "  ")
	if merr != nil {
		return toolError("%s: %v", info.ErrorCode, err)
	}
	return toolError("Failed to %s: %s\n%s", op, info.ErrorCode, data)
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
