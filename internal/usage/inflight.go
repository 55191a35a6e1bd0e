package usage

import (
	"sync"
	"sync/atomic"
)

// InFlight tracks the number of requests currently executing against each
// model and each (connection, model) pair. It is purely in-memory —
// nothing here survives a restart; no caller persists it.
//
// Every Begin must be paired with exactly one End; the invariant callers
// rely on is sum(Begin) - sum(End) == current count >= 0.
type InFlight struct {
	byModel      sync.Map // model string -> *atomic.Int64
	byConnection sync.Map // connection+model string -> *atomic.Int64
}

// NewInFlight returns an empty in-flight tracker.
func NewInFlight() *InFlight {
	return &InFlight{}
}

func counter(m *sync.Map, key string) *atomic.Int64 {
	v, _ := m.LoadOrStore(key, &atomic.Int64{})
	return v.(*atomic.Int64)
}

// Begin records that one more request has started against model (and,
// when connectionID is non-empty, against that specific connection). It
// returns a Done func the caller must call exactly once when the request
// finishes, regardless of outcome.
func (f *InFlight) Begin(model, connectionID string) (done func()) {
	modelCtr := counter(&f.byModel, model)
	modelCtr.Add(1)

	var connCtr *atomic.Int64
	if connectionID != "" {
		connCtr = counter(&f.byConnection, connectionID+"|"+model)
		connCtr.Add(1)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			modelCtr.Add(-1)
			if connCtr != nil {
				connCtr.Add(-1)
			}
		})
	}
}

// ForModel returns the current number of in-flight requests for a model.
func (f *InFlight) ForModel(model string) int64 {
	v, ok := f.byModel.Load(model)
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

// ForConnection returns the current number of in-flight requests for a
// specific (connection, model) pair.
func (f *InFlight) ForConnection(connectionID, model string) int64 {
	v, ok := f.byConnection.Load(connectionID + "|" + model)
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}
