// Package api contains the HTTP handlers for the workflow service
package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"promptflow/backend/internal/logging"
	"promptflow/backend/internal/repository"
	"promptflow/backend/internal/services"
	"promptflow/backend/pkg/models"
)

// Server holds the dependencies for the API server.
type Server struct {
	Workflows *services.WorkflowService
	Runner    *services.Runner
	Logger    *logging.Logger
	// Origins accepted on the run WebSocket; "*" accepts any.
	Origins []string
}

// NewServer creates a new Server.
func NewServer(workflows *services.WorkflowService, runner *services.Runner, logger *logging.Logger, origins []string) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Server{Workflows: workflows, Runner: runner, Logger: logger, Origins: origins}
}

// RegisterRoutes mounts the REST and run endpoints. No delete or update
// routes exist for workflows or steps.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", HandleHealth)

	g := e.Group("/api")
	g.GET("/workflows", s.ListWorkflows)
	g.POST("/workflows", s.CreateWorkflow)
	g.GET("/workflows/:id", s.GetWorkflow)
	g.GET("/workflows/:id/steps", s.ListSteps)
	g.POST("/workflows/:id/steps", s.AddStep)

	e.GET("/ws/workflows/:id/run", s.RunWorkflow)
}

// ListWorkflows returns all workflows with their steps
// (GET /api/workflows)
func (s *Server) ListWorkflows(c echo.Context) error {
	workflows, err := s.Workflows.ListWorkflows(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, workflows)
}

// CreateWorkflow creates a workflow with no steps
// (POST /api/workflows)
func (s *Server) CreateWorkflow(c echo.Context) error {
	var in models.WorkflowCreate
	if err := bindValid(c, workflowCreateValidator, &in); err != nil {
		return err
	}

	workflow, err := s.Workflows.CreateWorkflow(c.Request().Context(), in)
	if err != nil {
		return err
	}
	s.Logger.Info("workflow created", "workflow_id", workflow.ID, "name", workflow.Name)
	return c.JSON(http.StatusOK, workflow)
}

// GetWorkflow returns one workflow with its steps
// (GET /api/workflows/{id})
func (s *Server) GetWorkflow(c echo.Context) error {
	id, err := workflowID(c)
	if err != nil {
		return err
	}

	workflow, err := s.Workflows.GetWorkflow(c.Request().Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Workflow not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, workflow)
}

// AddStep appends a step to a workflow
// (POST /api/workflows/{id}/steps)
func (s *Server) AddStep(c echo.Context) error {
	id, err := workflowID(c)
	if err != nil {
		return err
	}

	var in models.StepCreate
	if err := bindValid(c, stepCreateValidator, &in); err != nil {
		return err
	}

	step, err := s.Workflows.AddStep(c.Request().Context(), id, in)
	if errors.Is(err, repository.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Workflow not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, step)
}

// ListSteps returns the steps of a workflow in execution order. An unknown
// workflow yields an empty list.
// (GET /api/workflows/{id}/steps)
func (s *Server) ListSteps(c echo.Context) error {
	id, err := workflowID(c)
	if err != nil {
		return err
	}

	steps, err := s.Workflows.ListSteps(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, steps)
}
