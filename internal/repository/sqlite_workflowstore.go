package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"promptflow/backend/pkg/models"
)

// SQLiteStore is the local file-backed implementation of the Store interface.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a SQLite database at path and creates
// missing tables. Foreign keys are enforced on every connection so that
// deleting a workflow cascades to its steps.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open workflow db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func sqliteDSN(path string) string {
	pragmas := "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return "file:" + path + sep + pragmas
}

// Migrate creates the workflow tables if they do not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Acquire reserves a dedicated connection from the pool.
func (s *SQLiteStore) Acquire(ctx context.Context) (Session, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return &sqliteSession{conn: conn}, nil
}

// Ping checks database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqliteSession struct {
	conn *sql.Conn
}

func (s *sqliteSession) Release() {
	_ = s.conn.Close()
}

func (s *sqliteSession) CreateWorkflow(ctx context.Context, w *models.Workflow) error {
	res, err := s.conn.ExecContext(ctx,
		"INSERT INTO workflows (name, description) VALUES (?, ?)",
		w.Name, w.Description,
	)
	if err != nil {
		return fmt.Errorf("insert workflow: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert workflow: %w", err)
	}
	w.ID = id
	w.Steps = []*models.Step{}
	return nil
}

func (s *sqliteSession) ListWorkflows(ctx context.Context) ([]*models.Workflow, error) {
	rows, err := s.conn.QueryContext(ctx, "SELECT id, name, description FROM workflows ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query workflows: %w", err)
	}
	defer rows.Close()

	workflows := []*models.Workflow{}
	for rows.Next() {
		var w models.Workflow
		if err := rows.Scan(&w.ID, &w.Name, &w.Description); err != nil {
			return nil, err
		}
		workflows = append(workflows, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	steps, err := s.querySteps(ctx, "SELECT id, workflow_id, prompt, result, progress FROM steps ORDER BY id")
	if err != nil {
		return nil, err
	}
	attachSteps(workflows, steps)
	return workflows, nil
}

func (s *sqliteSession) GetWorkflow(ctx context.Context, id int64) (*models.Workflow, error) {
	var w models.Workflow
	err := s.conn.QueryRowContext(ctx,
		"SELECT id, name, description FROM workflows WHERE id = ?", id,
	).Scan(&w.ID, &w.Name, &w.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query workflow: %w", err)
	}

	steps, err := s.ListSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	w.Steps = steps
	return &w, nil
}

func (s *sqliteSession) CreateStep(ctx context.Context, step *models.Step) error {
	var exists bool
	if err := s.conn.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM workflows WHERE id = ?)", step.WorkflowID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check workflow: %w", err)
	}
	if !exists {
		return ErrNotFound
	}

	res, err := s.conn.ExecContext(ctx,
		"INSERT INTO steps (workflow_id, prompt, result, progress) VALUES (?, ?, ?, ?)",
		step.WorkflowID, step.Prompt, step.Result, step.Progress,
	)
	if err != nil {
		return fmt.Errorf("insert step: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert step: %w", err)
	}
	step.ID = id
	return nil
}

func (s *sqliteSession) ListSteps(ctx context.Context, workflowID int64) ([]*models.Step, error) {
	return s.querySteps(ctx,
		"SELECT id, workflow_id, prompt, result, progress FROM steps WHERE workflow_id = ? ORDER BY id",
		workflowID,
	)
}

func (s *sqliteSession) UpdateStepResult(ctx context.Context, stepID int64, result string, progress int) error {
	res, err := s.conn.ExecContext(ctx,
		"UPDATE steps SET result = ?, progress = ? WHERE id = ?",
		result, progress, stepID,
	)
	if err != nil {
		return fmt.Errorf("update step: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteSession) querySteps(ctx context.Context, query string, args ...any) ([]*models.Step, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	steps := []*models.Step{}
	for rows.Next() {
		var step models.Step
		if err := rows.Scan(&step.ID, &step.WorkflowID, &step.Prompt, &step.Result, &step.Progress); err != nil {
			return nil, err
		}
		steps = append(steps, &step)
	}
	return steps, rows.Err()
}
