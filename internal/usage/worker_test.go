package usage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaygate/internal/domain"
	"relaygate/internal/queue"
	"relaygate/internal/utils"
)

type fakeSink struct {
	mu       sync.Mutex
	written  []domain.UsageEntry
	failN    int // number of Write calls to fail before succeeding
	attempts int
}

func (f *fakeSink) Write(_ context.Context, entries []domain.UsageEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.attempts <= f.failN {
		return errors.New("sink unavailable")
	}
	f.written = append(f.written, entries...)
	return nil
}

func (f *fakeSink) All(context.Context) ([]domain.UsageEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.UsageEntry(nil), f.written...), nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.written)
}

func TestWorker_EnqueueAndDrainWritesToSink(t *testing.T) {
	cfg := queue.DefaultConfig("usage-test")
	cfg.BatchSize = 10
	cfg.BatchTimeout = 20 * time.Millisecond
	q := queue.NewMemoryQueue(cfg)
	dlq := queue.NewMemoryDeadLetterQueue()
	sink := &fakeSink{}
	w := NewWorker(q, dlq, sink, cfg, utils.NewLogger("test"))

	ctx, cancel := context.WithCancel(context.Background())
	go w.Start(ctx)

	for i := 0; i < 5; i++ {
		require.NoError(t, w.Enqueue(ctx, domain.UsageEntry{RequestID: "req", Model: "gpt-4o"}))
	}

	require.Eventually(t, func() bool { return sink.count() == 5 }, time.Second, 5*time.Millisecond)

	require.NoError(t, w.Stop(context.Background()))
	cancel()
}

func TestWorker_StopDrainsRemaining(t *testing.T) {
	cfg := queue.DefaultConfig("usage-test")
	cfg.BatchSize = 10
	cfg.BatchTimeout = time.Second
	q := queue.NewMemoryQueue(cfg)
	dlq := queue.NewMemoryDeadLetterQueue()
	sink := &fakeSink{}
	w := NewWorker(q, dlq, sink, cfg, utils.NewLogger("test"))

	ctx := context.Background()
	go w.Start(ctx)

	for i := 0; i < 3; i++ {
		require.NoError(t, w.Enqueue(ctx, domain.UsageEntry{RequestID: "req"}))
	}

	require.NoError(t, w.Stop(context.Background()))
	assert.Equal(t, 3, sink.count())
}

func TestWorker_RetriesBeforeSucceeding(t *testing.T) {
	cfg := queue.DefaultConfig("usage-test")
	cfg.BatchSize = 10
	cfg.BatchTimeout = 20 * time.Millisecond
	cfg.MaxRetries = 3
	cfg.RetryBackoff = time.Millisecond
	q := queue.NewMemoryQueue(cfg)
	dlq := queue.NewMemoryDeadLetterQueue()
	sink := &fakeSink{failN: 2}
	w := NewWorker(q, dlq, sink, cfg, utils.NewLogger("test"))

	ctx, cancel := context.WithCancel(context.Background())
	go w.Start(ctx)

	require.NoError(t, w.Enqueue(ctx, domain.UsageEntry{RequestID: "req"}))

	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, w.Stop(context.Background()))
	cancel()
}

func TestWorker_ExhaustedRetriesGoToDeadLetterQueue(t *testing.T) {
	cfg := queue.DefaultConfig("usage-test")
	cfg.BatchSize = 10
	cfg.BatchTimeout = 20 * time.Millisecond
	cfg.MaxRetries = 1
	cfg.RetryBackoff = time.Millisecond
	q := queue.NewMemoryQueue(cfg)
	dlq := queue.NewMemoryDeadLetterQueue()
	sink := &fakeSink{failN: 100}
	w := NewWorker(q, dlq, sink, cfg, utils.NewLogger("test"))

	ctx, cancel := context.WithCancel(context.Background())
	go w.Start(ctx)

	require.NoError(t, w.Enqueue(ctx, domain.UsageEntry{RequestID: "req-dead"}))

	require.Eventually(t, func() bool {
		items, err := dlq.List(context.Background(), 10)
		return err == nil && len(items) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, w.Stop(context.Background()))
	cancel()
}
