package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"promptflow/backend/internal/logging"
	"promptflow/backend/internal/repository"
	"promptflow/backend/internal/telemetry"
	"promptflow/backend/pkg/models"
)

// DefaultHeartbeatInterval is how often a ping is sent while a run is active.
const DefaultHeartbeatInterval = 20 * time.Second

// Emitter is the server side of a run's persistent connection. Send must be
// safe for concurrent use; any Send error means the client is gone.
type Emitter interface {
	Send(ctx context.Context, msg any) error
	Close() error
}

// errDisconnected marks a run that ended because the client went away.
var errDisconnected = errors.New("client disconnected")

// Runner executes a workflow's steps in order against the Generator,
// persisting and streaming each result.
type Runner struct {
	store     repository.Store
	generator Generator
	heartbeat time.Duration
	metrics   *telemetry.Metrics
	logger    *logging.Logger
}

// NewRunner creates a Runner. heartbeat <= 0 uses DefaultHeartbeatInterval.
func NewRunner(store repository.Store, generator Generator, heartbeat time.Duration, metrics *telemetry.Metrics, logger *logging.Logger) *Runner {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		store:     store,
		generator: generator,
		heartbeat: heartbeat,
		metrics:   metrics,
		logger:    logger,
	}
}

// Run drives one workflow run over out. It returns nil when the run
// completes, the workflow is unknown or the client disconnects, and the
// underlying error for any other failure. out is always closed on return.
func (r *Runner) Run(ctx context.Context, workflowID int64, out Emitter) (err error) {
	log := r.logger.With("run_id", uuid.NewString(), "workflow_id", workflowID)
	outcome := telemetry.OutcomeCompleted

	var sess repository.Session
	stopHeartbeat := func() {}
	defer func() {
		stopHeartbeat()
		if sess != nil {
			sess.Release()
		}
		if cerr := out.Close(); cerr != nil {
			log.Debug("close connection", "error", cerr)
		}
		r.metrics.RunFinished(context.WithoutCancel(ctx), outcome)
		log.Info("run finished", "outcome", outcome)
	}()

	sess, err = r.store.Acquire(ctx)
	if err != nil {
		outcome = telemetry.OutcomeFailed
		r.trySend(out, models.NewError(err.Error(), 0))
		return err
	}

	wf, err := sess.GetWorkflow(ctx, workflowID)
	if errors.Is(err, repository.ErrNotFound) {
		outcome = telemetry.OutcomeNotFound
		r.trySend(out, models.NewError("Workflow not found", http.StatusNotFound))
		return nil
	}
	if err != nil {
		outcome = telemetry.OutcomeFailed
		r.trySend(out, models.NewError(err.Error(), 0))
		return err
	}

	steps, err := sess.ListSteps(ctx, wf.ID)
	if err != nil {
		outcome = telemetry.OutcomeFailed
		r.trySend(out, models.NewError(err.Error(), 0))
		return err
	}

	log.Info("run started", "steps", len(steps))
	if err := out.Send(ctx, models.NewStatus(fmt.Sprintf("Started workflow '%s' with %d steps", wf.Name, len(steps)))); err != nil {
		outcome = telemetry.OutcomeDisconnected
		return nil
	}

	hbCtx, cancel := context.WithCancel(ctx)
	var g errgroup.Group
	g.Go(func() error { return r.keepAlive(hbCtx, out) })
	stopHeartbeat = func() {
		cancel()
		_ = g.Wait()
	}

	err = r.executeSteps(ctx, sess, steps, out)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errDisconnected):
		outcome = telemetry.OutcomeDisconnected
		log.Debug("client disconnected mid-run")
		return nil
	default:
		outcome = telemetry.OutcomeFailed
		log.Error("run failed", "error", err)
		r.trySend(out, models.NewError(err.Error(), 0))
		return err
	}
}

func (r *Runner) executeSteps(ctx context.Context, sess repository.Session, steps []*models.Step, out Emitter) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic during run: %v", p)
		}
	}()

	var previous *string
	for i, step := range steps {
		n := i + 1
		if err := out.Send(ctx, models.NewStatus(fmt.Sprintf("Generating step %d...", n))); err != nil {
			return errDisconnected
		}

		res, err := r.generate(ctx, step.Prompt, previous)
		if err != nil {
			return errDisconnected
		}
		text := res.String()

		if err := sess.UpdateStepResult(ctx, step.ID, text, models.ProgressComplete); err != nil {
			if ctx.Err() != nil {
				return errDisconnected
			}
			return fmt.Errorf("save step %d: %w", n, err)
		}
		r.metrics.StepCompleted(ctx, string(res.Kind))

		if err := out.Send(ctx, models.NewResult(n, step.Prompt, text)); err != nil {
			return errDisconnected
		}
		previous = &text
	}

	if err := out.Send(ctx, models.NewStatus("Workflow complete")); err != nil {
		return errDisconnected
	}
	return nil
}

// generate runs the Generator off the run's goroutine so that a disconnect
// is noticed while a slow call is in flight.
func (r *Runner) generate(ctx context.Context, prompt string, previous *string) (Result, error) {
	done := make(chan Result, 1)
	go func() {
		done <- r.generator.Generate(ctx, prompt, previous)
	}()

	select {
	case res := <-done:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (r *Runner) keepAlive(ctx context.Context, out Emitter) error {
	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if ctx.Err() != nil {
				return nil
			}
			if err := out.Send(ctx, models.NewPing()); err != nil {
				return err
			}
		}
	}
}

// trySend emits a best-effort message; failures are ignored.
func (r *Runner) trySend(out Emitter, msg any) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = out.Send(ctx, msg)
}
