package fallback

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_RateLimitedWithRetryAfter(t *testing.T) {
	d := Classify(Outcome{StatusCode: 429, RetryAfter: "30"})
	require.True(t, d.ShouldFallback)
	assert.Equal(t, 30*time.Second, d.Cooldown)
}

func TestClassify_RateLimitedWithBodyRetryAfterMS(t *testing.T) {
	d := Classify(Outcome{StatusCode: 429, RetryAfter: "30", RetryAfterMS: 1500})
	require.True(t, d.ShouldFallback)
	assert.Equal(t, 1500*time.Millisecond, d.Cooldown, "body retryAfterMs takes priority over the Retry-After header")
}

func TestClassify_RateLimitedExponential(t *testing.T) {
	d := Classify(Outcome{StatusCode: 429, FailedCount: 3})
	require.True(t, d.ShouldFallback)
	assert.Equal(t, 8*time.Millisecond, d.Cooldown)
}

func TestClassify_RateLimitedExponentialCaps(t *testing.T) {
	d := Classify(Outcome{StatusCode: 429, FailedCount: 40})
	require.True(t, d.ShouldFallback)
	assert.Equal(t, maxBackoff, d.Cooldown)
}

func TestClassify_AuthFailureAfterRefresh(t *testing.T) {
	d := Classify(Outcome{StatusCode: 401})
	require.True(t, d.ShouldFallback)
	assert.Equal(t, 30*time.Minute, d.Cooldown)
}

func TestClassify_QuotaExhausted(t *testing.T) {
	for _, status := range []int{402, 451} {
		d := Classify(Outcome{StatusCode: status})
		require.True(t, d.ShouldFallback)
		assert.Equal(t, 24*time.Hour, d.Cooldown)
	}
}

func TestClassify_UpstreamServerError(t *testing.T) {
	d := Classify(Outcome{StatusCode: 503})
	require.True(t, d.ShouldFallback)
	assert.Equal(t, 60*time.Second, d.Cooldown)
}

func TestClassify_OtherClientErrorIsFatal(t *testing.T) {
	d := Classify(Outcome{StatusCode: 400})
	assert.False(t, d.ShouldFallback)
}

func TestClassify_NetworkError(t *testing.T) {
	d := Classify(NetworkOutcome(errors.New("connection reset by peer")))
	require.True(t, d.ShouldFallback)
	assert.Equal(t, 10*time.Second, d.Cooldown)
}
