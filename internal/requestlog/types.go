// Package requestlog captures the debugging trail of a request — a
// one-line summary and, when enabled, the five canonical JSON
// snapshots (client body, detected formats, translated upstream body,
// upstream URL/headers, final response) — plus the plain-text
// dashboard line used by the admin UI.
package requestlog

import (
	"encoding/json"
	"net/http"
	"time"
)

// Entry is one line of the plain-text log: the per-request summary an
// operator scans for a quick health check.
type Entry struct {
	Timestamp  time.Time
	Model      string
	ProviderID string
	Account    string
	SentTokens int
	RecvTokens int
	Status     string
}

// Snapshot is the five-artifact debugging record for one request.
type Snapshot struct {
	RequestID       string          `json:"requestId"`
	Timestamp       time.Time       `json:"timestamp"`
	ClientBody      json.RawMessage `json:"clientBody,omitempty"`
	SourceFormat    string          `json:"sourceFormat"`
	TargetFormat    string          `json:"targetFormat"`
	UpstreamBody    json.RawMessage `json:"upstreamBody,omitempty"`
	UpstreamURL     string          `json:"upstreamUrl,omitempty"`
	UpstreamHeaders http.Header     `json:"upstreamHeaders,omitempty"`
	ResponseBody    json.RawMessage `json:"responseBody,omitempty"`
	ResponseStatus  int             `json:"responseStatus,omitempty"`
	Error           string          `json:"error,omitempty"`
}

// SanitizeHeaders returns a copy of h with the Authorization header (and
// any provider secret header) removed, safe to write to a snapshot file.
func SanitizeHeaders(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		switch http.CanonicalHeaderKey(k) {
		case "Authorization", "X-Api-Key", "X-Goog-Api-Key":
			continue
		default:
			out[k] = v
		}
	}
	return out
}
