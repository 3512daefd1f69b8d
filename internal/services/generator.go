package services

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"promptflow/backend/internal/logging"
)

// ResultKind tags how a Result was produced.
type ResultKind string

const (
	ResultOK       ResultKind = "ok"
	ResultDisabled ResultKind = "disabled"
	ResultFailed   ResultKind = "failed"
)

// Result is the outcome of one generation. Text is the generated output for
// ResultOK, the original prompt for ResultDisabled and the failure reason
// for ResultFailed.
type Result struct {
	Kind ResultKind
	Text string
}

// String renders the result as the plain text stored and streamed for a step.
func (r Result) String() string {
	switch r.Kind {
	case ResultDisabled:
		return "[AI disabled] No AI credentials configured. Prompt: " + r.Text
	case ResultFailed:
		return "[AI error] " + r.Text
	default:
		return r.Text
	}
}

// BuildPrompt prepends the previous step's output as context.
func BuildPrompt(prompt string, previous *string) string {
	if previous == nil {
		return prompt
	}
	return fmt.Sprintf("Previous step output:\n%s\n\nUsing the output above as context, %s", *previous, prompt)
}

var tracer = otel.Tracer("promptflow/backend/internal/services")

// Adapter implements Generator on top of a Completer. A nil Completer puts
// the adapter in disabled mode.
type Adapter struct {
	completer Completer
	timeout   time.Duration
	logger    *logging.Logger
}

// NewAdapter creates an Adapter. timeout <= 0 leaves calls unbounded.
func NewAdapter(completer Completer, timeout time.Duration, logger *logging.Logger) *Adapter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Adapter{completer: completer, timeout: timeout, logger: logger}
}

// Enabled reports whether calls reach a real backend.
func (a *Adapter) Enabled() bool {
	return a.completer != nil
}

// Generate implements Generator.
func (a *Adapter) Generate(ctx context.Context, prompt string, previous *string) (res Result) {
	if a.completer == nil {
		return Result{Kind: ResultDisabled, Text: prompt}
	}

	ctx, span := tracer.Start(ctx, "ai.generate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("ai.provider", a.completer.Name()),
			attribute.Bool("ai.has_context", previous != nil),
		),
	)
	defer func() {
		if r := recover(); r != nil {
			res = Result{Kind: ResultFailed, Text: fmt.Sprint(r)}
		}
		span.SetAttributes(attribute.String("ai.result_kind", string(res.Kind)))
		if res.Kind == ResultFailed {
			span.SetStatus(codes.Error, res.Text)
		}
		span.End()
	}()

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	text, err := a.completer.Complete(ctx, BuildPrompt(prompt, previous))
	if err != nil {
		a.logger.Warn("generation failed", "provider", a.completer.Name(), "error", err)
		return Result{Kind: ResultFailed, Text: err.Error()}
	}
	return Result{Kind: ResultOK, Text: text}
}
