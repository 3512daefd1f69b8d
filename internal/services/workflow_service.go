package services

import (
	"context"

	"promptflow/backend/internal/repository"
	"promptflow/backend/pkg/models"
)

// WorkflowService is the create/read surface over workflows and steps. Each
// call runs on its own session, released before returning.
type WorkflowService struct {
	store repository.Store
}

// NewWorkflowService creates a new WorkflowService.
func NewWorkflowService(store repository.Store) *WorkflowService {
	return &WorkflowService{store: store}
}

// CreateWorkflow stores a new workflow with no steps.
func (s *WorkflowService) CreateWorkflow(ctx context.Context, in models.WorkflowCreate) (*models.Workflow, error) {
	var w *models.Workflow
	err := s.withSession(ctx, func(sess repository.Session) error {
		w = &models.Workflow{Name: in.Name, Description: in.Description}
		return sess.CreateWorkflow(ctx, w)
	})
	return w, err
}

// ListWorkflows returns every workflow with its steps.
func (s *WorkflowService) ListWorkflows(ctx context.Context) ([]*models.Workflow, error) {
	var out []*models.Workflow
	err := s.withSession(ctx, func(sess repository.Session) error {
		var err error
		out, err = sess.ListWorkflows(ctx)
		return err
	})
	return out, err
}

// GetWorkflow returns one workflow or repository.ErrNotFound.
func (s *WorkflowService) GetWorkflow(ctx context.Context, id int64) (*models.Workflow, error) {
	var out *models.Workflow
	err := s.withSession(ctx, func(sess repository.Session) error {
		var err error
		out, err = sess.GetWorkflow(ctx, id)
		return err
	})
	return out, err
}

// AddStep appends a step to a workflow or returns repository.ErrNotFound.
func (s *WorkflowService) AddStep(ctx context.Context, workflowID int64, in models.StepCreate) (*models.Step, error) {
	var step *models.Step
	err := s.withSession(ctx, func(sess repository.Session) error {
		step = &models.Step{
			WorkflowID: workflowID,
			Prompt:     in.Prompt,
			Result:     in.Result,
			Progress:   in.Progress,
		}
		return sess.CreateStep(ctx, step)
	})
	return step, err
}

// ListSteps returns a workflow's steps in execution order. Unknown
// workflows yield an empty list, not an error.
func (s *WorkflowService) ListSteps(ctx context.Context, workflowID int64) ([]*models.Step, error) {
	var out []*models.Step
	err := s.withSession(ctx, func(sess repository.Session) error {
		var err error
		out, err = sess.ListSteps(ctx, workflowID)
		return err
	})
	return out, err
}

func (s *WorkflowService) withSession(ctx context.Context, fn func(repository.Session) error) error {
	sess, err := s.store.Acquire(ctx)
	if err != nil {
		return err
	}
	defer sess.Release()
	return fn(sess)
}
