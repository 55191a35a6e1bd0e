package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"relaygate/internal/domain"
	"relaygate/internal/queue"
	"relaygate/internal/utils"
)

// Worker drains a queue of usage entries into a Sink in batches, retrying
// individual failures with exponential backoff before giving up to a
// dead-letter queue. Chat handlers never block on Sink.Write directly —
// they Enqueue and move on, so a slow database never adds request
// latency.
type Worker struct {
	q      queue.Queue
	dlq    queue.DeadLetterQueue
	sink   Sink
	config *queue.Config
	log    *utils.Logger

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// NewWorker wires a queue, dead-letter queue and sink together. config may
// be nil, in which case queue.DefaultConfig("usage") applies.
func NewWorker(q queue.Queue, dlq queue.DeadLetterQueue, sink Sink, config *queue.Config, log *utils.Logger) *Worker {
	if config == nil {
		config = queue.DefaultConfig("usage")
	}
	return &Worker{
		q:         q,
		dlq:       dlq,
		sink:      sink,
		config:    config,
		log:       log,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Enqueue hands one usage entry to the queue for async persistence.
func (w *Worker) Enqueue(ctx context.Context, e domain.UsageEntry) error {
	return w.q.Enqueue(ctx, e)
}

// Start runs the drain loop until Stop is called. It should be run in its
// own goroutine.
func (w *Worker) Start(ctx context.Context) {
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
				w.log.Error("usage: dequeue failed", "error", err)
				continue
			}
			if len(items) == 0 {
				continue
			}
			w.processBatch(ctx, items)
		}
	}
}

// Stop signals the drain loop to flush whatever remains and exit, blocking
// until it has done so or ctx is cancelled.
func (w *Worker) Stop(ctx context.Context) error {
	close(w.stopCh)
	select {
	case <-w.stoppedCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) drainRemaining(ctx context.Context) {
	for {
		items, err := w.q.DequeueWithTimeout(ctx, w.config.BatchSize, 200*time.Millisecond)
		if err != nil || len(items) == 0 {
			return
		}
		w.processBatch(ctx, items)
	}
}

func (w *Worker) processBatch(ctx context.Context, items []interface{}) {
	entries := make([]domain.UsageEntry, 0, len(items))
	for _, item := range items {
		e, err := unmarshalEntry(item)
		if err != nil {
			w.log.Error("usage: dropping malformed entry", "error", err)
			continue
		}
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return
	}

	if err := w.sink.Write(ctx, entries); err == nil {
		return
	}

	// Batch write failed; retry each entry individually before giving up.
	for _, e := range entries {
		w.processItem(ctx, e)
	}
}

func (w *Worker) processItem(ctx context.Context, e domain.UsageEntry) {
	backoff := w.config.RetryBackoff
	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			backoff *= 2
		}
		if err := w.sink.Write(ctx, []domain.UsageEntry{e}); err == nil {
			return
		} else {
			lastErr = err
		}
	}

	w.log.Error("usage: persisting entry failed after retries, sending to dead-letter queue",
		"requestId", e.RequestID, "error", lastErr)
	if err := w.dlq.Add(ctx, e, lastErr); err != nil {
		w.log.Error("usage: dead-letter add failed", "error", err)
	}
}

func unmarshalEntry(item interface{}) (domain.UsageEntry, error) {
	switch v := item.(type) {
	case domain.UsageEntry:
		return v, nil
	case *domain.UsageEntry:
		return *v, nil
	case []byte:
		var e domain.UsageEntry
		if err := json.Unmarshal(v, &e); err != nil {
			return e, fmt.Errorf("usage: unmarshal entry: %w", err)
		}
		return e, nil
	case json.RawMessage:
		var e domain.UsageEntry
		if err := json.Unmarshal(v, &e); err != nil {
			return e, fmt.Errorf("usage: unmarshal entry: %w", err)
		}
		return e, nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return domain.UsageEntry{}, fmt.Errorf("usage: re-marshal unknown queue item type %T: %w", v, err)
		}
		var e domain.UsageEntry
		if err := json.Unmarshal(b, &e); err != nil {
			return e, fmt.Errorf("usage: unmarshal entry: %w", err)
		}
		return e, nil
	}
}
