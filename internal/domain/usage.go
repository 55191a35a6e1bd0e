package domain

import (
	"time"

	"github.com/google/uuid"
)

// TokenCounts is the set of billable token categories relaygate tracks.
// Zero values are valid and common (most providers report only Prompt and
// Completion).
type TokenCounts struct {
	Prompt        int `json:"prompt"`
	Completion    int `json:"completion"`
	Cached        int `json:"cached,omitempty"`
	Reasoning     int `json:"reasoning,omitempty"`
	CacheCreation int `json:"cacheCreation,omitempty"`
}

// UsageEntry is an append-only record of one completed (or well-structured
// failed) request. Usage entries are never mutated after creation.
type UsageEntry struct {
	Timestamp    time.Time   `json:"timestamp"`
	ProviderID   string      `json:"provider"`
	Model        string      `json:"model"`
	Tokens       TokenCounts `json:"tokens"`
	ConnectionID uuid.UUID   `json:"connectionId"`
	CostUSD      float64     `json:"costUsd"`
	RequestID    string      `json:"requestId,omitempty"`
	StatusCode   int         `json:"statusCode,omitempty"`
}

// History is the on-disk shape of usage.json.
type History struct {
	Entries []UsageEntry `json:"history"`
}
