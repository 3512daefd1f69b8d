package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"promptflow/backend/pkg/models"
)

// PostgresStore is a PostgreSQL implementation of the Store interface.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore on an existing pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects a pool, pings it and creates missing tables.
func OpenPostgres(ctx context.Context, connStr string) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// Migrate creates the workflow tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Acquire reserves a pooled connection.
func (s *PostgresStore) Acquire(ctx context.Context) (Session, error) {
	conn, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return &postgresSession{conn: conn}, nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

type postgresSession struct {
	conn *pgxpool.Conn
}

func (s *postgresSession) Release() {
	s.conn.Release()
}

func (s *postgresSession) CreateWorkflow(ctx context.Context, w *models.Workflow) error {
	err := s.conn.QueryRow(ctx,
		"INSERT INTO workflows (name, description) VALUES ($1, $2) RETURNING id",
		w.Name, w.Description,
	).Scan(&w.ID)
	if err != nil {
		return fmt.Errorf("insert workflow: %w", err)
	}
	w.Steps = []*models.Step{}
	return nil
}

func (s *postgresSession) ListWorkflows(ctx context.Context) ([]*models.Workflow, error) {
	rows, err := s.conn.Query(ctx, "SELECT id, name, description FROM workflows ORDER BY id")
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

	steps, err := s.querySteps(ctx, "SELECT id, workflow_id, prompt, result, progress FROM steps ORDER BY id")
	if err != nil {
		return nil, err
	}
	attachSteps(workflows, steps)
	return workflows, nil
}

func (s *postgresSession) GetWorkflow(ctx context.Context, id int64) (*models.Workflow, error) {
	var w models.Workflow
	err := s.conn.QueryRow(ctx,
		"SELECT id, name, description FROM workflows WHERE id = $1", id,
	).Scan(&w.ID, &w.Name, &w.Description)
	if errors.Is(err, pgx.ErrNoRows) {
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

func (s *postgresSession) CreateStep(ctx context.Context, step *models.Step) error {
	var exists bool
	if err := s.conn.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM workflows WHERE id = $1)", step.WorkflowID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check workflow: %w", err)
	}
	if !exists {
		return ErrNotFound
	}

	err := s.conn.QueryRow(ctx,
		"INSERT INTO steps (workflow_id, prompt, result, progress) VALUES ($1, $2, $3, $4) RETURNING id",
		step.WorkflowID, step.Prompt, step.Result, step.Progress,
	).Scan(&step.ID)
	if err != nil {
		return fmt.Errorf("insert step: %w", err)
	}
	return nil
}

func (s *postgresSession) ListSteps(ctx context.Context, workflowID int64) ([]*models.Step, error) {
	return s.querySteps(ctx,
		"SELECT id, workflow_id, prompt, result, progress FROM steps WHERE workflow_id = $1 ORDER BY id",
		workflowID,
	)
}

func (s *postgresSession) UpdateStepResult(ctx context.Context, stepID int64, result string, progress int) error {
	tag, err := s.conn.Exec(ctx,
		"UPDATE steps SET result = $1, progress = $2 WHERE id = $3",
		result, progress, stepID,
	)
	if err != nil {
		return fmt.Errorf("update step: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *postgresSession) querySteps(ctx context.Context, query string, args ...any) ([]*models.Step, error) {
	rows, err := s.conn.Query(ctx, query, args...)
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
