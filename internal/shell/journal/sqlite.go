package journal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glasskube/distr-sub001/internal/core/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout is fixed-width so created_at sorts lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DefaultListLimit applies when ListOptions.Limit is not positive.
const DefaultListLimit = 50

// ListOptions filters List.
type ListOptions struct {
	Limit              int
	DeploymentTargetID string
	Operation          domain.Operation
}

// =============================================================================
// SQLiteJournal
// =============================================================================

// SQLiteJournal stores journal entries in SQLite.
type SQLiteJournal struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open opens (creating if needed) the journal database at dsn and runs
// migrations. ":memory:" opens a private in-memory journal.
func Open(dsn string) (*SQLiteJournal, error) {
	if dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, NewStoreError("Open", "", "", err.Error(), ErrConnectionFailed)
			}
		}
	}

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, NewStoreError("Open", "", "", "failed to open database: "+err.Error(), ErrConnectionFailed)
	}
	// one connection keeps ":memory:" a single database
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("Open", "", "", "failed to ping database: "+err.Error(), ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("Open", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteJournal{db: db, now: time.Now}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// =============================================================================
// Entries
// =============================================================================

type entryRow struct {
	ID                   string `db:"id"`
	Operation            string `db:"operation"`
	Outcome              string `db:"outcome"`
	DeploymentTargetID   string `db:"deployment_target_id"`
	DeploymentID         string `db:"deployment_id"`
	ApplicationID        string `db:"application_id"`
	ApplicationVersionID string `db:"application_version_id"`
	PreviousVersionID    string `db:"previous_version_id"`
	Step                 string `db:"step"`
	Message              string `db:"message"`
	CreatedAt            string `db:"created_at"`
}

// Record appends entry. A missing ID or timestamp is filled in.
func (j *SQLiteJournal) Record(ctx context.Context, entry domain.JournalEntry) error {
	if entry.Operation == "" || entry.Outcome == "" {
		return NewStoreError("Record", "journal_entry", entry.ID, "operation and outcome are required", ErrInvalidEntry)
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = j.now()
	}

	query := `
		INSERT INTO journal_entries (
			id, operation, outcome, deployment_target_id, deployment_id,
			application_id, application_version_id, previous_version_id,
			step, message, created_at
		) VALUES (
			:id, :operation, :outcome, :deployment_target_id, :deployment_id,
			:application_id, :application_version_id, :previous_version_id,
			:step, :message, :created_at
		)`

	_, err := j.db.NamedExecContext(ctx, query, map[string]any{
		"id":                     entry.ID,
		"operation":              string(entry.Operation),
		"outcome":                string(entry.Outcome),
		"deployment_target_id":   entry.DeploymentTargetID,
		"deployment_id":          entry.DeploymentID,
		"application_id":         entry.ApplicationID,
		"application_version_id": entry.ApplicationVersionID,
		"previous_version_id":    entry.PreviousVersionID,
		"step":                   entry.Step,
		"message":                entry.Message,
		"created_at":             entry.CreatedAt.UTC().Format(timeLayout),
	})
	if err != nil {
		return NewStoreError("Record", "journal_entry", entry.ID, err.Error(), err)
	}
	return nil
}

// List returns entries newest first.
func (j *SQLiteJournal) List(ctx context.Context, opts ListOptions) ([]domain.JournalEntry, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var (
		where []string
		args  []any
	)
	if opts.DeploymentTargetID != "" {
		where = append(where, "deployment_target_id = ?")
		args = append(args, opts.DeploymentTargetID)
	}
	if opts.Operation != "" {
		where = append(where, "operation = ?")
		args = append(args, string(opts.Operation))
	}

	query := `SELECT * FROM journal_entries`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	var rows []entryRow
	if err := j.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, NewStoreError("List", "journal_entry", "", err.Error(), err)
	}

	entries := make([]domain.JournalEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := rowToEntry(row)
		if err != nil {
			return nil, NewStoreError("List", "journal_entry", row.ID, err.Error(), err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func rowToEntry(row entryRow) (domain.JournalEntry, error) {
	createdAt, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return domain.JournalEntry{}, fmt.Errorf("parse created_at: %w", err)
	}
	return domain.JournalEntry{
		ID:                   row.ID,
		Operation:            domain.Operation(row.Operation),
		Outcome:              domain.Outcome(row.Outcome),
		DeploymentTargetID:   row.DeploymentTargetID,
		DeploymentID:         row.DeploymentID,
		ApplicationID:        row.ApplicationID,
		ApplicationVersionID: row.ApplicationVersionID,
		PreviousVersionID:    row.PreviousVersionID,
		Step:                 row.Step,
		Message:              row.Message,
		CreatedAt:            createdAt,
	}, nil
}
