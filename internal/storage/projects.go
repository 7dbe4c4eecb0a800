package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/alanpac24/Vibebusiness/internal/errinfo"
	"github.com/alanpac24/Vibebusiness/internal/models"
)

// DefaultProjectName names the project created on a user's first access.
const DefaultProjectName = "My SaaS Project"

const projectColumns = `id, user_id, name, description, status, created_at, updated_at`

// CreateProject inserts an active project and its empty company profile in one
// transaction. A user may own only one active project.
func (s *Store) CreateProject(ctx context.Context, userID, name, description string) (*models.Project, error) {
	if userID == "" || name == "" {
		return nil, errinfo.ValidationFailed(errinfo.PhaseStore, "user id and project name are required")
	}
	now := s.timestamp()
	proj := &models.Project{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        name,
		Description: description,
		Status:      models.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.withTx(ctx, "create project", func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM projects WHERE user_id = ? AND status = 'active'`, userID,
		).Scan(&n); err != nil {
			return fmt.Errorf("count active projects: %w", err)
		}
		if n > 0 {
			return ErrActiveProject
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			proj.ID, proj.UserID, proj.Name, proj.Description, proj.Status, proj.CreatedAt, proj.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO company_profiles (id, project_id, business_idea, updated_at) VALUES (?, ?, '', ?)`,
			uuid.New().String(), proj.ID, now,
		); err != nil {
			return fmt.Errorf("insert company profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return proj, nil
}

// GetProject looks up a project by id.
func (s *Store) GetProject(ctx context.Context, id string) (*models.Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	proj, err := scanProject(row)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", id, err)
	}
	return proj, nil
}

// GetActiveProject returns the user's most recently updated active project.
func (s *Store) GetActiveProject(ctx context.Context, userID string) (*models.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects
		 WHERE user_id = ? AND status = 'active'
		 ORDER BY updated_at DESC LIMIT 1`,
		userID,
	)
	proj, err := scanProject(row)
	if err != nil {
		return nil, fmt.Errorf("active project for %s: %w", userID, err)
	}
	return proj, nil
}

// EnsureActiveProject returns the user's active project, creating the default
// one if none exists. created reports whether a project was created.
func (s *Store) EnsureActiveProject(ctx context.Context, userID string) (proj *models.Project, created bool, err error) {
	proj, err = s.GetActiveProject(ctx, userID)
	if err == nil {
		return proj, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	proj, err = s.CreateProject(ctx, userID, DefaultProjectName, "")
	if errors.Is(err, ErrActiveProject) {
		// Lost a race with another caller; read theirs.
		proj, err = s.GetActiveProject(ctx, userID)
		return proj, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return proj, true, nil
}

// ListProjects returns a user's projects filtered by status. Use "all" for no filter.
func (s *Store) ListProjects(ctx context.Context, userID, status string) ([]models.Project, error) {
	var rows *sql.Rows
	var err error

	if status == "" || status == "all" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+projectColumns+` FROM projects WHERE user_id = ? ORDER BY updated_at DESC`,
			userID,
		)
	} else {
		if !models.ValidStatus(status) {
			return nil, errinfo.ValidationFailed(errinfo.PhaseStore, fmt.Sprintf("unknown project status %q", status))
		}
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+projectColumns+` FROM projects WHERE user_id = ? AND status = ? ORDER BY updated_at DESC`,
			userID, status,
		)
	}
	if err != nil {
		return nil, errinfo.PersistenceFailed("list projects", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, errinfo.PersistenceFailed("scan project", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errinfo.PersistenceFailed("list projects", err)
	}
	return projects, nil
}

// SetProjectStatus moves a project between active, archived and completed.
// Activating a project fails while the owner has another active project.
func (s *Store) SetProjectStatus(ctx context.Context, id, status string) (*models.Project, error) {
	if !models.ValidStatus(status) {
		return nil, errinfo.ValidationFailed(errinfo.PhaseStore, fmt.Sprintf("unknown project status %q", status))
	}
	var proj *models.Project
	err := s.withTx(ctx, "set project status", func(tx *sql.Tx) error {
		p, err := scanProject(tx.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
		if err != nil {
			return fmt.Errorf("project %s: %w", id, err)
		}
		if status == models.StatusActive && p.Status != models.StatusActive {
			var n int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM projects WHERE user_id = ? AND status = 'active' AND id != ?`, p.UserID, id,
			).Scan(&n); err != nil {
				return fmt.Errorf("count active projects: %w", err)
			}
			if n > 0 {
				return ErrActiveProject
			}
		}
		now := s.timestamp()
		if _, err := tx.ExecContext(ctx,
			`UPDATE projects SET status = ?, updated_at = ? WHERE id = ?`, status, now, id,
		); err != nil {
			return fmt.Errorf("update project status: %w", err)
		}
		p.Status = status
		p.UpdatedAt = now
		proj = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return proj, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanProject scans a single project row.
func scanProject(row rowScanner) (*models.Project, error) {
	var p models.Project
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errinfo.PersistenceFailed("scan project", err)
	}
	return &p, nil
}
