// Package combo implements the combo orchestrator: an ordered fallback
// chain across models, one level above the per-provider account fallback
// implemented in internal/fallback.
package combo

import (
	"context"
	"errors"
	"fmt"
)

// RetryableError marks an error as exhausted-but-not-fatal: every account
// for that model was tried and failed, so the orchestrator should move on
// to the next model in the chain rather than surface the error.
type RetryableError struct {
	Model string
	Err   error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("combo: model %q exhausted: %v", e.Model, e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// AttemptFunc runs one model attempt: substitute model into body and drive
// the chat core / account loop for it. A RetryableError return means "all
// accounts for this model failed, try the next model"; any other non-nil
// error is surfaced to the caller immediately.
type AttemptFunc func(ctx context.Context, model string) (*Result, error)

// Result is whatever the caller needs from a successful attempt — the
// orchestrator never inspects it, only whether attempt returned one.
type Result struct {
	Response any
}

// Run tries each model in order, stopping at the first success. A
// RetryableError from one model advances to the next; any other error
// aborts immediately. If every model is exhausted, the last RetryableError
// is returned wrapped so callers can map it to a 503.
func Run(ctx context.Context, models []string, attempt AttemptFunc) (*Result, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("combo: empty model chain")
	}

	var lastErr error
	for _, model := range models {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := attempt(ctx, model)
		if err == nil {
			return result, nil
		}

		var retryable *RetryableError
		if errors.As(err, &retryable) {
			lastErr = err
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("combo: all models exhausted, last error: %w", lastErr)
}
