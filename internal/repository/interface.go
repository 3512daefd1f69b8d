package repository

import (
	"context"
	"errors"

	"promptflow/backend/pkg/models"
)

// ErrNotFound is returned when a workflow or step identity does not exist.
var ErrNotFound = errors.New("not found")

// Store is a handle on the workflow database. It owns the connection pool;
// work happens on a Session acquired per request or per run.
type Store interface {
	// Acquire reserves one connection for the caller. The session must be
	// released on every exit path.
	Acquire(ctx context.Context) (Session, error)
	// Ping checks that the database is reachable.
	Ping(ctx context.Context) error
	// Close releases the pool.
	Close() error
}

// Session exposes the workflow and step operations on one connection. Each
// write commits immediately.
type Session interface {
	// CreateWorkflow inserts w and assigns its ID. Steps are ignored.
	CreateWorkflow(ctx context.Context, w *models.Workflow) error
	// ListWorkflows returns all workflows with their steps, both in creation order.
	ListWorkflows(ctx context.Context) ([]*models.Workflow, error)
	// GetWorkflow returns a workflow with its steps or ErrNotFound.
	GetWorkflow(ctx context.Context, id int64) (*models.Workflow, error)
	// CreateStep inserts s under s.WorkflowID or returns ErrNotFound.
	CreateStep(ctx context.Context, s *models.Step) error
	// ListSteps returns the steps of a workflow in creation order. An unknown
	// workflow yields an empty list.
	ListSteps(ctx context.Context, workflowID int64) ([]*models.Step, error)
	// UpdateStepResult stores the generated result and progress of a step.
	UpdateStepResult(ctx context.Context, stepID int64, result string, progress int) error
	// Release returns the connection to the pool.
	Release()
}
