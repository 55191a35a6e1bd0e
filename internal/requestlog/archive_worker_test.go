package requestlog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaygate/internal/queue"
	"relaygate/internal/utils"
)

type fakeBatchWriter struct {
	mu    sync.Mutex
	calls [][]Snapshot
	err   error
}

func (f *fakeBatchWriter) WriteBatch(_ context.Context, snapshots []Snapshot) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.calls = append(f.calls, snapshots)
	return "key", nil
}

func (f *fakeBatchWriter) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, batch := range f.calls {
		n += len(batch)
	}
	return n
}

func TestArchiveWorker_EnqueueAndDrain(t *testing.T) {
	cfg := queue.DefaultConfig("requestlog-archive-test")
	cfg.BatchSize = 10
	cfg.BatchTimeout = 20 * time.Millisecond
	q := queue.NewMemoryQueue(cfg)
	writer := &fakeBatchWriter{}
	worker := NewArchiveWorker(q, writer, cfg, utils.NewLogger("test"))

	ctx, cancel := context.WithCancel(context.Background())
	go worker.Start(ctx)

	for i := 0; i < 5; i++ {
		require.NoError(t, worker.Enqueue(ctx, Snapshot{RequestID: "req"}))
	}

	require.Eventually(t, func() bool { return writer.total() == 5 }, time.Second, 5*time.Millisecond)

	require.NoError(t, worker.Stop(context.Background()))
	cancel()
}

func TestArchiveWorker_StopDrainsRemaining(t *testing.T) {
	cfg := queue.DefaultConfig("requestlog-archive-test")
	cfg.BatchSize = 10
	cfg.BatchTimeout = time.Second
	q := queue.NewMemoryQueue(cfg)
	writer := &fakeBatchWriter{}
	worker := NewArchiveWorker(q, writer, cfg, utils.NewLogger("test"))

	ctx := context.Background()
	go worker.Start(ctx)

	for i := 0; i < 3; i++ {
		require.NoError(t, worker.Enqueue(ctx, Snapshot{RequestID: "req"}))
	}

	require.NoError(t, worker.Stop(context.Background()))
	assert.Equal(t, 3, writer.total())
}
