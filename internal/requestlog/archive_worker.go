package requestlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"relaygate/internal/queue"
	"relaygate/internal/utils"
)

// batchWriter is satisfied by S3Writer; a narrow interface so tests can
// substitute a fake instead of talking to real S3.
type batchWriter interface {
	WriteBatch(ctx context.Context, snapshots []Snapshot) (string, error)
}

// ArchiveWorker drains a queue of Snapshot records into a batchWriter in
// batches, the same shape as the usage package's queue worker: handlers
// enqueue and move on, a background goroutine does the slow network
// call.
type ArchiveWorker struct {
	q      queue.Queue
	writer batchWriter
	config *queue.Config
	log    *utils.Logger

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// NewArchiveWorker wires a queue and a batchWriter together. config may
// be nil, in which case queue.DefaultConfig("requestlog-archive") applies.
func NewArchiveWorker(q queue.Queue, writer batchWriter, config *queue.Config, log *utils.Logger) *ArchiveWorker {
	if config == nil {
		config = queue.DefaultConfig("requestlog-archive")
	}
	return &ArchiveWorker{
		q:         q,
		writer:    writer,
		config:    config,
		log:       log,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Enqueue hands one snapshot to the queue for async archival.
func (w *ArchiveWorker) Enqueue(ctx context.Context, s Snapshot) error {
	return w.q.Enqueue(ctx, s)
}

// Start runs the drain loop until Stop is called. It should be run in
// its own goroutine.
func (w *ArchiveWorker) Start(ctx context.Context) {
	defer close(w.stoppedCh)
	for {
		select {
		case <-w.stopCh:
			w.drainRemaining(ctx)
			return
		case <-ctx.Done():
			return
		default:
			items, err := w.q.DequeueWithTimeout(ctx, w.config.BatchSize, w.config.BatchTimeout)
			if err != nil {
				if err == queue.ErrQueueClosed || ctx.Err() != nil {
					return
				}
				w.log.Error("requestlog: dequeue failed", "error", err)
				continue
			}
			if len(items) == 0 {
				continue
			}
			w.flush(ctx, items)
		}
	}
}

// Stop signals the drain loop to flush whatever remains and exit,
// blocking until it has done so or ctx is cancelled.
func (w *ArchiveWorker) Stop(ctx context.Context) error {
	close(w.stopCh)
	select {
	case <-w.stoppedCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *ArchiveWorker) drainRemaining(ctx context.Context) {
	for {
		items, err := w.q.DequeueWithTimeout(ctx, w.config.BatchSize, 200*time.Millisecond)
		if err != nil || len(items) == 0 {
			return
		}
		w.flush(ctx, items)
	}
}

func (w *ArchiveWorker) flush(ctx context.Context, items []interface{}) {
	snapshots := make([]Snapshot, 0, len(items))
	for _, item := range items {
		s, err := unmarshalSnapshot(item)
		if err != nil {
			w.log.Error("requestlog: dropping malformed snapshot", "error", err)
			continue
		}
		snapshots = append(snapshots, s)
	}
	if len(snapshots) == 0 {
		return
	}
	if _, err := w.writer.WriteBatch(ctx, snapshots); err != nil {
		w.log.Error("requestlog: archiving snapshot batch failed", "error", err, "count", len(snapshots))
	}
}

func unmarshalSnapshot(item interface{}) (Snapshot, error) {
	switch v := item.(type) {
	case Snapshot:
		return v, nil
	case *Snapshot:
		return *v, nil
	case []byte:
		var s Snapshot
		if err := json.Unmarshal(v, &s); err != nil {
			return s, fmt.Errorf("requestlog: unmarshal snapshot: %w", err)
		}
		return s, nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return Snapshot{}, fmt.Errorf("requestlog: re-marshal unknown queue item type %T: %w", v, err)
		}
		var s Snapshot
		if err := json.Unmarshal(b, &s); err != nil {
			return s, fmt.Errorf("requestlog: unmarshal snapshot: %w", err)
		}
		return s, nil
	}
}
