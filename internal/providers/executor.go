// Package providers implements the provider executor strategy: one
// Executor per upstream wire dialect, each owning URL/header construction,
// request transformation, the upstream HTTP call, and (for non-SSE
// upstreams) response reframing into OpenAI-style chat-completion chunks.
package providers

import (
	"context"
	"io"
	"net/http"
	"time"

	"relaygate/internal/domain"
	"relaygate/internal/formats"
	"relaygate/internal/utils"
)

// ExecuteInput is everything an Executor needs to issue one upstream call.
type ExecuteInput struct {
	Model       string
	Body        map[string]any
	Stream      bool
	Connection  *domain.Connection
	Provider    *domain.Provider
	ToolNameMap map[string]string
	Log         *utils.Logger
}

// ExecuteOutput is the raw upstream result before any stream reframing.
// Body is populated only for non-streaming responses; Stream is populated
// (and Body nil) when the caller asked for streaming and the upstream
// responded 2xx.
type ExecuteOutput struct {
	URL             string
	StatusCode      int
	Header          http.Header
	Body            []byte
	Stream          io.ReadCloser
	TransformedBody map[string]any
	Latency         time.Duration

	// ResponseFormat is the wire shape of Body/Stream on a 2xx response —
	// the format the caller must run through translate.TranslateResponse
	// (non-streaming) or translate.TranslateStreamChunk (streaming) to get
	// back to the hub. Each Executor knows its own wire shape, so it sets
	// this rather than making the caller re-derive it from Provider.ID.
	ResponseFormat formats.Format
}

// RefreshedCredentials is what a successful refresh call returns. Fields
// left empty are not updated by the caller.
type RefreshedCredentials struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	ExpiresIn    int // seconds
	Extra        map[string]any
}

// Executor is implemented by every provider dialect strategy. A single
// Executor instance is stateless and safe for concurrent use across
// requests; all per-request state lives in ExecuteInput/Output.
type Executor interface {
	// BuildURL returns the upstream URL for this call. urlIndex selects
	// among a provider's AlternateURLs when the primary has been marked
	// unhealthy; most providers never populate AlternateURLs, but the hook
	// exists for ones with documented regional mirrors.
	BuildURL(model string, stream bool, urlIndex int, conn *domain.Connection, prov *domain.Provider) string

	// BuildHeaders returns the headers to attach to the upstream request.
	BuildHeaders(conn *domain.Connection, stream bool) http.Header

	// TransformRequest converts the hub-format body into this provider's
	// wire shape.
	TransformRequest(ctx context.Context, in ExecuteInput) (map[string]any, error)

	// Execute issues the upstream call and returns the raw result.
	Execute(ctx context.Context, in ExecuteInput) (*ExecuteOutput, error)

	// RefreshCredentials exchanges a refresh token for new credentials.
	// Returns (nil, nil) when this provider has no refresh flow (API-key
	// auth) rather than an error.
	RefreshCredentials(ctx context.Context, conn *domain.Connection, prov *domain.Provider) (*RefreshedCredentials, error)
}
