// Package models defines the domain and wire models for the workflow service
package models

// RunMessageType discriminates the JSON messages streamed during a run
type RunMessageType string

const (
	RunMessageStatus RunMessageType = "status"
	RunMessageResult RunMessageType = "result"
	RunMessageError  RunMessageType = "error"
	RunMessagePing   RunMessageType = "ping"
)

// StatusMessage narrates run progress
type StatusMessage struct {
	Type    RunMessageType `json:"type"`
	Message string         `json:"message"`
}

// ResultMessage carries the generated output of one step (1-indexed)
type ResultMessage struct {
	Type   RunMessageType `json:"type"`
	Step   int            `json:"step"`
	Prompt string         `json:"prompt"`
	Result string         `json:"result"`
}

// ErrorMessage is a terminal failure notice. Status is set only for
// domain-known conditions such as an unknown workflow.
type ErrorMessage struct {
	Type    RunMessageType `json:"type"`
	Message string         `json:"message"`
	Status  int            `json:"status,omitempty"`
}

// PingMessage keeps an idle connection alive
type PingMessage struct {
	Type RunMessageType `json:"type"`
}

func NewStatus(msg string) StatusMessage {
	return StatusMessage{Type: RunMessageStatus, Message: msg}
}

func NewResult(step int, prompt, result string) ResultMessage {
	return ResultMessage{Type: RunMessageResult, Step: step, Prompt: prompt, Result: result}
}

func NewError(msg string, status int) ErrorMessage {
	return ErrorMessage{Type: RunMessageError, Message: msg, Status: status}
}

func NewPing() PingMessage {
	return PingMessage{Type: RunMessagePing}
}

// HealthStatus represents service health
type HealthStatus struct {
	Status string `json:"status"`
}

// ProblemDetails represents RFC 7807 Problem Details
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}
