package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"promptflow/backend/internal/repository"
	"promptflow/backend/pkg/models"
)

// recordingEmitter captures every message sent during a run.
type recordingEmitter struct {
	mu       sync.Mutex
	messages []any
	times    []time.Time
	closed   bool
	failAt   int // Send returns an error from this message on; 0 disables
}

func (e *recordingEmitter) Send(_ context.Context, msg any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.New("connection closed")
	}
	if e.failAt > 0 && len(e.messages)+1 >= e.failAt {
		return errors.New("broken pipe")
	}
	e.messages = append(e.messages, msg)
	e.times = append(e.times, time.Now())
	return nil
}

func (e *recordingEmitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *recordingEmitter) snapshot() []any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]any(nil), e.messages...)
}

func (e *recordingEmitter) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// withoutPings drops keep-alive messages.
func withoutPings(msgs []any) []any {
	var out []any
	for _, m := range msgs {
		if _, ok := m.(models.PingMessage); ok {
			continue
		}
		out = append(out, m)
	}
	return out
}

func countPings(msgs []any) int {
	n := 0
	for _, m := range msgs {
		if _, ok := m.(models.PingMessage); ok {
			n++
		}
	}
	return n
}

// fakeCompleter answers from a function and records the prompts it saw.
type fakeCompleter struct {
	mu      sync.Mutex
	prompts []string
	fn      func(call int, prompt string) (string, error)
}

func (f *fakeCompleter) Name() string { return "fake" }

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	call := len(f.prompts)
	f.mu.Unlock()
	return f.fn(call, prompt)
}

func (f *fakeCompleter) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

// recordingGenerator records raw Generate arguments.
type recordingGenerator struct {
	mu        sync.Mutex
	prompts   []string
	previous  []*string
	delay     time.Duration
	resultFor func(prompt string) Result
}

func (g *recordingGenerator) Generate(ctx context.Context, prompt string, previous *string) Result {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.previous = append(g.previous, previous)
	g.mu.Unlock()
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
		}
	}
	if g.resultFor != nil {
		return g.resultFor(prompt)
	}
	return Result{Kind: ResultOK, Text: "out:" + prompt}
}

func newTestStore(t *testing.T) repository.Store {
	t.Helper()
	store, err := repository.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "workflows.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedWorkflow(t *testing.T, store repository.Store, name string, prompts ...string) *models.Workflow {
	t.Helper()
	svc := NewWorkflowService(store)
	ctx := context.Background()
	w, err := svc.CreateWorkflow(ctx, models.WorkflowCreate{Name: name})
	require.NoError(t, err)
	for _, p := range prompts {
		_, err := svc.AddStep(ctx, w.ID, models.StepCreate{Prompt: p})
		require.NoError(t, err)
	}
	return w
}
