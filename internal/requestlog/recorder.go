package requestlog

import "context"

// Recorder is what the chat core calls into once per request: always a
// plain-text summary line, and — when request-logging snapshots are
// enabled — one JSON snapshot plus an optional off-site archive copy.
type Recorder struct {
	text      *TextLog
	snapshots *SnapshotWriter // nil when snapshots are disabled
	archive   *ArchiveWorker  // nil when no S3 archive is configured
}

// NewRecorder builds a Recorder. snapshots and archive may both be nil.
func NewRecorder(text *TextLog, snapshots *SnapshotWriter, archive *ArchiveWorker) *Recorder {
	return &Recorder{text: text, snapshots: snapshots, archive: archive}
}

// Line appends one log.txt entry.
func (r *Recorder) Line(e Entry) {
	r.text.Append(e)
}

// Snapshot records the five canonical debugging artifacts for one
// request, a no-op when snapshots are disabled.
func (r *Recorder) Snapshot(ctx context.Context, s Snapshot) {
	if r.snapshots == nil {
		return
	}
	r.snapshots.Write(s)
	if r.archive != nil {
		if err := r.archive.Enqueue(ctx, s); err != nil {
			return
		}
	}
}

// Close flushes and stops the underlying writers.
func (r *Recorder) Close() {
	if r.snapshots != nil {
		r.snapshots.Close()
	}
	r.text.Close()
}
