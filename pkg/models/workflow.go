package models

// Workflow is a named, ordered collection of steps.
type Workflow struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Steps       []*Step `json:"steps"`
}

// Step is one prompt within a workflow. Result and Progress stay nil until
// the step has been executed.
type Step struct {
	ID         int64   `json:"id"`
	WorkflowID int64   `json:"-"`
	Prompt     string  `json:"prompt"`
	Result     *string `json:"result"`
	Progress   *int    `json:"progress"`
}

// WorkflowCreate is the request body for POST /api/workflows.
type WorkflowCreate struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// StepCreate is the request body for POST /api/workflows/{id}/steps.
type StepCreate struct {
	Prompt   string  `json:"prompt"`
	Result   *string `json:"result,omitempty"`
	Progress *int    `json:"progress,omitempty"`
}

// ProgressComplete marks a step whose result has been generated.
const ProgressComplete = 100
