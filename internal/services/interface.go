package services

import "context"

// Completer is a text-generation backend. Implementations return an error
// on any failure; the Adapter turns that into a tagged Result.
type Completer interface {
	// Complete returns the generated text for a fully built prompt.
	Complete(ctx context.Context, prompt string) (string, error)
	// Name identifies the backend in logs.
	Name() string
}

// Generator produces a step result from a prompt and the previous step's
// output (nil for the first step). It never fails.
type Generator interface {
	Generate(ctx context.Context, prompt string, previous *string) Result
}
