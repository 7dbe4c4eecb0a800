package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	_ "modernc.org/sqlite"

	"github.com/alanpac24/Vibebusiness/internal/errinfo"
)

// Supported database/sql driver names.
const (
	DriverNcruces = "sqlite3"
	DriverModernc = "sqlite"
)

// DBFile is the database file name inside the data directory.
const DBFile = "vibebusiness.db"

// timeLayout sorts lexically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

var (
	// ErrNotFound is returned when a project or its company profile does not exist.
	ErrNotFound = errors.New("not found")
	// ErrActiveProject is returned when a user would end up with two active projects.
	ErrActiveProject = errors.New("user already has an active project")
)

// ValidDriver reports whether name is a supported driver.
func ValidDriver(name string) bool {
	return name == DriverNcruces || name == DriverModernc
}

// Store persists projects and their business context in one SQLite database.
type Store struct {
	db      *sql.DB
	dataDir string
	driver  string
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDriver selects the database/sql driver.
func WithDriver(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.driver = name
		}
	}
}

// Open opens (or creates) the database under dataDir and runs migrations.
func Open(dataDir string, opts ...Option) (*Store, error) {
	s := &Store{dataDir: dataDir, driver: DriverNcruces, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if !ValidDriver(s.driver) {
		return nil, errinfo.ConfigurationInvalid(fmt.Sprintf("unknown database driver %q", s.driver))
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBFile)
	db, err := sql.Open(s.driver, "file:"+dbPath+pragmas)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	s.db = db
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DataDir returns the base data directory.
func (s *Store) DataDir() string {
	return s.dataDir
}

// Driver returns the driver name in use.
func (s *Store) Driver() string {
	return s.driver
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(timeLayout)
}

// withTx runs fn in a transaction and commits only if fn succeeds.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errinfo.PersistenceFailed(op, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrActiveProject) {
			return err
		}
		var typed *errinfo.Error
		if errors.As(err, &typed) {
			return err
		}
		return errinfo.PersistenceFailed(op, err)
	}
	if err := tx.Commit(); err != nil {
		return errinfo.PersistenceFailed(op, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// touchProject bumps updated_at and fails with ErrNotFound for unknown projects.
func touchProject(ctx context.Context, tx *sql.Tx, projectID, now string) error {
	res, err := tx.ExecContext(ctx, `UPDATE projects SET updated_at = ? WHERE id = ?`, now, projectID)
	if err != nil {
		return fmt.Errorf("touch project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch project: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	return nil
}

// nullString maps "" to NULL so upserts leave the stored column alone.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// encodePtr marshals v to JSON text, or NULL when v is nil.
func encodePtr[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// encodeSlice marshals v to JSON text, or NULL when v is nil. An empty
// non-nil slice is stored as [] and does clear the column.
func encodeSlice[T any](v []T) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func decodeJSON(src sql.NullString, dst any) error {
	if !src.Valid {
		return nil
	}
	return json.Unmarshal([]byte(src.String), dst)
}
