package combo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_FirstModelSucceeds(t *testing.T) {
	calls := 0
	result, err := Run(context.Background(), []string{"gpt-4o", "gpt-4o-mini"}, func(_ context.Context, model string) (*Result, error) {
		calls++
		assert.Equal(t, "gpt-4o", model)
		return &Result{Response: "ok"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Response)
	assert.Equal(t, 1, calls)
}

func TestRun_RetryableAdvancesToNextModel(t *testing.T) {
	var seen []string
	result, err := Run(context.Background(), []string{"a", "b"}, func(_ context.Context, model string) (*Result, error) {
		seen = append(seen, model)
		if model == "a" {
			return nil, &RetryableError{Model: model, Err: errors.New("exhausted")}
		}
		return &Result{Response: model}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "b", result.Response)
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestRun_NonRetryableSurfacesImmediately(t *testing.T) {
	fatal := errors.New("bad request")
	calls := 0
	_, err := Run(context.Background(), []string{"a", "b"}, func(_ context.Context, model string) (*Result, error) {
		calls++
		return nil, fatal
	})
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestRun_AllExhaustedReturnsWrappedLastError(t *testing.T) {
	_, err := Run(context.Background(), []string{"a", "b"}, func(_ context.Context, model string) (*Result, error) {
		return nil, &RetryableError{Model: model, Err: errors.New("no accounts")}
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all models exhausted")
}

func TestRun_EmptyChainIsError(t *testing.T) {
	_, err := Run(context.Background(), nil, func(_ context.Context, model string) (*Result, error) {
		t.Fatal("should not be called")
		return nil, nil
	})
	assert.Error(t, err)
}

func TestRun_ContextCancelledStopsEarly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := Run(ctx, []string{"a", "b"}, func(_ context.Context, model string) (*Result, error) {
		calls++
		return &Result{}, nil
	})
	assert.Error(t, err)
	assert.Equal(t, 0, calls)
}
