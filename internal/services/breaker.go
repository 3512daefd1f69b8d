package services

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"promptflow/backend/internal/logging"
)

// BreakerCompleter fails fast once the wrapped Completer has failed
// MaxFailures times in a row. It never retries.
type BreakerCompleter struct {
	inner   Completer
	breaker *gobreaker.CircuitBreaker[string]
}

// NewBreakerCompleter wraps inner. Zero values fall back to 5 failures and a
// 30s open period.
func NewBreakerCompleter(inner Completer, maxFailures uint32, openFor time.Duration, logger *logging.Logger) *BreakerCompleter {
	if maxFailures == 0 {
		maxFailures = 5
	}
	if openFor == 0 {
		openFor = 30 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "ai:" + inner.Name(),
		MaxRequests: 1,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// A cancelled run says nothing about provider health.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return &BreakerCompleter{inner: inner, breaker: cb}
}

// Name implements Completer.
func (b *BreakerCompleter) Name() string { return b.inner.Name() }

// Complete implements Completer.
func (b *BreakerCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return b.breaker.Execute(func() (string, error) {
		return b.inner.Complete(ctx, prompt)
	})
}
