// Package mcp exposes the workflow catalogue as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/labstack/echo/v4"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"promptflow/backend/internal/repository"
	"promptflow/backend/internal/services"
	"promptflow/backend/pkg/models"
)

type Server struct {
	mcpServer *server.MCPServer
	workflows *services.WorkflowService
}

func NewServer(workflows *services.WorkflowService) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Prompt Workflows",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		workflows: workflows,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_workflows",
			mcp.WithDescription("List all workflows with their steps"),
		),
		s.handleListWorkflows,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_workflow",
			mcp.WithDescription("Get one workflow with its steps"),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("The ID of the workflow")),
		),
		s.handleGetWorkflow,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"create_workflow",
			mcp.WithDescription("Create a new workflow with no steps"),
			mcp.WithString("name", mcp.Required(), mcp.Description("The name of the workflow")),
			mcp.WithString("description", mcp.Description("Optional description")),
		),
		s.handleCreateWorkflow,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"add_step",
			mcp.WithDescription("Append a prompt step to a workflow"),
			mcp.WithNumber("workflow_id", mcp.Required(), mcp.Description("The ID of the workflow")),
			mcp.WithString("prompt", mcp.Required(), mcp.Description("The prompt to run for this step")),
		),
		s.handleAddStep,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_steps",
			mcp.WithDescription("List the steps of a workflow in execution order"),
			mcp.WithNumber("workflow_id", mcp.Required(), mcp.Description("The ID of the workflow")),
		),
		s.handleListSteps,
	)
}

func (s *Server) handleListWorkflows(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflows, err := s.workflows.ListWorkflows(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list workflows: %v", err)), nil
	}
	return jsonResult(workflows), nil
}

func (s *Server) handleGetWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	id, ok := intArg(args, "id")
	if !ok {
		return mcp.NewToolResultError("Missing required parameter: id"), nil
	}

	workflow, err := s.workflows.GetWorkflow(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return mcp.NewToolResultError("Workflow not found"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get workflow: %v", err)), nil
	}
	return jsonResult(workflow), nil
}

func (s *Server) handleCreateWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	name, ok := args["name"].(string)
	if !ok || name == "" {
		return mcp.NewToolResultError("Missing required parameter: name"), nil
	}
	in := models.WorkflowCreate{Name: name}
	if desc, ok := args["description"].(string); ok {
		in.Description = &desc
	}

	workflow, err := s.workflows.CreateWorkflow(ctx, in)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create workflow: %v", err)), nil
	}
	return jsonResult(workflow), nil
}

func (s *Server) handleAddStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	workflowID, ok := intArg(args, "workflow_id")
	if !ok {
		return mcp.NewToolResultError("Missing required parameter: workflow_id"), nil
	}
	prompt, ok := args["prompt"].(string)
	if !ok || prompt == "" {
		return mcp.NewToolResultError("Missing required parameter: prompt"), nil
	}

	step, err := s.workflows.AddStep(ctx, workflowID, models.StepCreate{Prompt: prompt})
	if errors.Is(err, repository.ErrNotFound) {
		return mcp.NewToolResultError("Workflow not found"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to add step: %v", err)), nil
	}
	return jsonResult(step), nil
}

func (s *Server) handleListSteps(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	workflowID, ok := intArg(args, "workflow_id")
	if !ok {
		return mcp.NewToolResultError("Missing required parameter: workflow_id"), nil
	}

	steps, err := s.workflows.ListSteps(ctx, workflowID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list steps: %v", err)), nil
	}
	return jsonResult(steps), nil
}

// intArg reads a whole-number argument; JSON numbers arrive as float64.
func intArg(args map[string]interface{}, key string) (int64, bool) {
	v, ok := args[key].(float64)
	if !ok || v != math.Trunc(v) {
		return 0, false
	}
	return int64(v), true
}

func jsonResult(v any) *mcp.CallToolResult {
	jsonBytes, _ := json.Marshal(v)
	return mcp.NewToolResultText(string(jsonBytes))
}

// Mount serves the MCP SSE transport under /mcp (/mcp/sse and /mcp/message).
func Mount(e *echo.Echo, mcpServer *server.MCPServer) {
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))
	e.Any("/mcp/*", echo.WrapHandler(sseServer))
}
