package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"relaygate/internal/domain"
	"relaygate/internal/storage"
)

// Sink persists a batch of usage entries. Implementations must be safe
// for concurrent use; the Worker calls Write from a single goroutine but
// callers may also flush directly (e.g. from an admin export handler).
type Sink interface {
	Write(ctx context.Context, entries []domain.UsageEntry) error
	// All returns every persisted entry, most recent last.
	All(ctx context.Context) ([]domain.UsageEntry, error)
}

// JSONFileSink appends usage entries to a single usage.json file shaped
// like domain.History. cmd/gateway does not construct it: the gateway
// requires a database and always persists through PostgresSink.
type JSONFileSink struct {
	path string
	mu   sync.Mutex
}

// NewJSONFileSink returns a sink backed by the file at path, creating its
// parent directory if necessary.
func NewJSONFileSink(path string) (*JSONFileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("usage: create history dir: %w", err)
	}
	return &JSONFileSink{path: path}, nil
}

func (s *JSONFileSink) load() (domain.History, error) {
	var h domain.History
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return h, nil
		}
		return h, fmt.Errorf("usage: read history file: %w", err)
	}
	if len(data) == 0 {
		return h, nil
	}
	if err := json.Unmarshal(data, &h); err != nil {
		return h, fmt.Errorf("usage: decode history file: %w", err)
	}
	return h, nil
}

func (s *JSONFileSink) Write(_ context.Context, entries []domain.UsageEntry) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.load()
	if err != nil {
		return err
	}
	h.Entries = append(h.Entries, entries...)

	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("usage: encode history file: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("usage: write history file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("usage: replace history file: %w", err)
	}
	return nil
}

func (s *JSONFileSink) All(_ context.Context) ([]domain.UsageEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, err := s.load()
	if err != nil {
		return nil, err
	}
	return h.Entries, nil
}

// PostgresSink writes usage entries to the usage_entries table. It backs
// the database-configured deployment mode.
type PostgresSink struct {
	db *storage.UsageRepository
}

// NewPostgresSink wraps a UsageRepository as a Sink.
func NewPostgresSink(repo *storage.UsageRepository) *PostgresSink {
	return &PostgresSink{db: repo}
}

func (s *PostgresSink) Write(ctx context.Context, entries []domain.UsageEntry) error {
	for _, e := range entries {
		if err := s.db.ExecInsertUsage(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresSink) All(ctx context.Context) ([]domain.UsageEntry, error) {
	return s.db.SelectAllUsage(ctx)
}
