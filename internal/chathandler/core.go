// Package chathandler implements the chat endpoint's core request flow:
// resolving an alias or combo to one or more (provider, model) candidates,
// selecting a credential for each, executing the upstream call, retrying
// across accounts on a classified failure, and handing the result back to
// the HTTP layer either as a decoded JSON body or an already-streamed SSE
// response.
package chathandler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"relaygate/internal/combo"
	"relaygate/internal/credentials"
	"relaygate/internal/domain"
	"relaygate/internal/fallback"
	"relaygate/internal/formats"
	"relaygate/internal/providers"
	"relaygate/internal/requestlog"
	"relaygate/internal/storage"
	"relaygate/internal/translate"
	"relaygate/internal/usage"
	"relaygate/internal/utils"
)

// maxAccountAttempts bounds how many connections one model attempt will
// cycle through before giving up and letting the combo orchestrator move
// on to the next model; it exists purely as a loop backstop against a
// pathological number of connections for one provider.
const maxAccountAttempts = 8

// maxRefreshRetries is how many times Core re-attempts a single upstream
// call after a credential refresh before treating the connection as
// exhausted.
const maxRefreshRetries = 3

// Core executes one fully-resolved model attempt: select a connection,
// translate and send the request, classify failures, and retry across
// connections for that model.
type Core struct {
	connections *storage.ConnectionRepository
	providersDB *storage.ProviderRepository
	pricing     *storage.PricingRepository
	selector    *credentials.Selector
	registry    *providers.Registry
	inflight    *usage.InFlight
	usageQueue  *usage.Worker
	recorder    *requestlog.Recorder
	log         *utils.Logger
}

// NewCore wires a Core from its dependencies.
func NewCore(
	connections *storage.ConnectionRepository,
	providersDB *storage.ProviderRepository,
	pricing *storage.PricingRepository,
	selector *credentials.Selector,
	registry *providers.Registry,
	inflight *usage.InFlight,
	usageQueue *usage.Worker,
	recorder *requestlog.Recorder,
	log *utils.Logger,
) *Core {
	return &Core{
		connections: connections,
		providersDB: providersDB,
		pricing:     pricing,
		selector:    selector,
		registry:    registry,
		inflight:    inflight,
		usageQueue:  usageQueue,
		recorder:    recorder,
		log:         log,
	}
}

// RequestCtx is everything one chat-completion call needs, independent of
// which (provider, model) candidate is currently being attempted.
type RequestCtx struct {
	RequestID   string
	ClientBody  map[string]any
	SrcFormat   formats.Format
	Stream      bool
	Header      http.Header
	Writer      http.ResponseWriter // client response sink for both streaming and non-streaming replies
	AnthropicVersionSeen bool
}

// Outcome is what a successful attempt produced, ready for the HTTP layer
// to write out. For a streaming attempt, the response has already been
// written to RequestCtx.Writer by the time Outcome is returned.
type Outcome struct {
	Streamed   bool
	Body       map[string]any
	StatusCode int
}

// Attempt runs the full per-account retry loop for one (providerID, model)
// candidate. A RetryableError return means every eligible connection for
// this provider was tried and failed; the combo orchestrator should move
// on to the next candidate.
func (c *Core) Attempt(ctx context.Context, providerID, model string, rc *RequestCtx) (*combo.Result, error) {
	prov, err := c.providersDB.GetByID(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("chathandler: get provider %q: %w", providerID, err)
	}

	excludeID := uuid.Nil
	var lastErr error

	for i := 0; i < maxAccountAttempts; i++ {
		conn, err := c.selector.Select(ctx, providerID, excludeID)
		if err != nil {
			return nil, fmt.Errorf("chathandler: select connection: %w", err)
		}
		if conn == nil {
			if lastErr == nil {
				lastErr = fmt.Errorf("no eligible connection for provider %q", providerID)
			}
			return nil, &combo.RetryableError{Model: model, Err: lastErr}
		}

		outcome, retry, err := c.attemptOnce(ctx, prov, conn, model, rc)
		if err == nil {
			return &combo.Result{Response: outcome}, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
		excludeID = conn.ID
	}

	return nil, &combo.RetryableError{Model: model, Err: lastErr}
}

// attemptOnce drives exactly one connection through translation, upstream
// execution, 401/403 refresh-and-retry, and failure classification. The
// bool return reports whether the caller should advance to the next
// connection (true) or treat err as fatal for the whole request (false).
func (c *Core) attemptOnce(ctx context.Context, prov *domain.Provider, conn *domain.Connection, model string, rc *RequestCtx) (*Outcome, bool, error) {
	toolNameMap := make(map[string]string)
	tctx := &translate.Context{
		Model: model, Stream: rc.Stream, Provider: prov.ID,
		OAuth: conn.AuthType == domain.AuthOAuth, ToolNameMap: toolNameMap,
	}

	hubBody, err := translate.TranslateRequest(tctx, rc.SrcFormat, formats.OpenAI, rc.ClientBody)
	if err != nil {
		return nil, false, fmt.Errorf("chathandler: translate request: %w", err)
	}
	hubBody["model"] = model

	exec := c.registry.ExecutorFor(prov.ID)
	done := c.inflight.Begin(model, conn.ID.String())
	defer done()

	c.recorder.Line(requestlog.Entry{
		Timestamp: time.Now(), Model: model, ProviderID: prov.ID, Account: conn.DisplayName,
		Status: "PENDING",
	})

	in := providers.ExecuteInput{
		Model: model, Body: hubBody, Stream: rc.Stream,
		Connection: conn, Provider: prov, ToolNameMap: toolNameMap, Log: c.log,
	}

	out, err := exec.Execute(ctx, in)
	if err != nil {
		return c.classifyAndLog(ctx, prov, conn, model, rc, fallback.NetworkOutcome(err), "")
	}

	if out.StatusCode == http.StatusUnauthorized || out.StatusCode == http.StatusForbidden {
		out, err = c.refreshAndRetry(ctx, prov, conn, in)
		if err != nil {
			return c.classifyAndLog(ctx, prov, conn, model, rc, fallback.Outcome{StatusCode: http.StatusUnauthorized, FailedCount: conn.ConsecutiveFailed}, err.Error())
		}
	}

	if out.StatusCode < 200 || out.StatusCode >= 300 {
		msg := upstreamErrorMessage(out.Body)
		return c.classifyAndLog(ctx, prov, conn, model, rc, fallback.Outcome{
			StatusCode: out.StatusCode, Message: msg,
			RetryAfter:   out.Header.Get("Retry-After"),
			RetryAfterMS: retryAfterMsFromBody(out.Body),
			FailedCount:  conn.ConsecutiveFailed,
		}, msg)
	}

	if err := c.connections.ClearError(ctx, conn.ID); err != nil {
		c.log.Warn("chathandler: clear connection error failed", "connectionId", conn.ID, "error", err)
	}

	if rc.Stream && out.Stream != nil {
		outcome, err := c.respondStreaming(ctx, tctx, out, model, prov, conn, rc)
		return outcome, false, err
	}
	outcome, err := c.respondNonStreaming(ctx, tctx, out, model, prov, conn, rc)
	return outcome, false, err
}

// refreshAndRetry re-executes the call up to maxRefreshRetries times after
// a credential refresh, the sequence the chat core follows on an
// authentication failure before falling back to the next account.
func (c *Core) refreshAndRetry(ctx context.Context, prov *domain.Provider, conn *domain.Connection, in providers.ExecuteInput) (*providers.ExecuteOutput, error) {
	exec := c.registry.ExecutorFor(prov.ID)
	var lastErr error
	for attempt := 0; attempt < maxRefreshRetries; attempt++ {
		rc, err := exec.RefreshCredentials(ctx, conn, prov)
		if err != nil {
			lastErr = err
			continue
		}
		if rc == nil {
			return nil, fmt.Errorf("chathandler: provider %q has no refresh flow", prov.ID)
		}
		conn.Secrets.AccessToken = rc.AccessToken
		if rc.RefreshToken != "" {
			conn.Secrets.RefreshToken = rc.RefreshToken
		}
		if err := c.connections.UpdateSecrets(ctx, conn.ID, conn.Secrets); err != nil {
			c.log.Warn("chathandler: persist refreshed secrets failed", "connectionId", conn.ID, "error", err)
		}
		in.Connection = conn
		out, err := exec.Execute(ctx, in)
		if err != nil {
			lastErr = err
			continue
		}
		if out.StatusCode == http.StatusUnauthorized || out.StatusCode == http.StatusForbidden {
			lastErr = fmt.Errorf("refreshed credentials still rejected with status %d", out.StatusCode)
			continue
		}
		return out, nil
	}
	return nil, fmt.Errorf("chathandler: refresh-and-retry exhausted: %w", lastErr)
}

// classifyAndLog applies the fallback policy to a failed attempt, persists
// the resulting cooldown, writes the FAILED log line, and reports whether
// the caller should try the next connection.
func (c *Core) classifyAndLog(ctx context.Context, prov *domain.Provider, conn *domain.Connection, model string, rc *RequestCtx, outcome fallback.Outcome, message string) (*Outcome, bool, error) {
	decision := fallback.Classify(outcome)
	attemptErr := fmt.Errorf("chathandler: upstream call failed: %s", firstNonEmpty(message, outcome.Message))

	if decision.ShouldFallback {
		cooldownUntil := time.Now().Add(decision.Cooldown)
		if err := c.connections.MarkUnavailable(ctx, conn.ID, attemptErr.Error(), cooldownUntil); err != nil {
			c.log.Warn("chathandler: mark connection unavailable failed", "connectionId", conn.ID, "error", err)
		}
	}

	c.recorder.Line(requestlog.Entry{
		Timestamp: time.Now(), Model: model, ProviderID: prov.ID, Account: conn.DisplayName,
		Status: "FAILED",
	})

	if !decision.ShouldFallback {
		return nil, false, attemptErr
	}
	return nil, true, attemptErr
}

func upstreamErrorMessage(body []byte) string {
	parsed, err := formats.ParseBody(body)
	if err != nil {
		return string(body)
	}
	if errObj, ok := parsed["error"].(map[string]any); ok {
		if msg, ok := errObj["message"].(string); ok {
			return msg
		}
	}
	return string(body)
}

// retryAfterMsFromBody looks for a body-embedded retryAfterMs field, either
// at the top level or nested under "error" — the shape Antigravity's quota
// errors use in place of a Retry-After header. Returns 0 when absent, so
// callers can fall back to the header value.
func retryAfterMsFromBody(body []byte) int64 {
	parsed, err := formats.ParseBody(body)
	if err != nil {
		return 0
	}
	if ms, ok := retryAfterMsField(parsed); ok {
		return ms
	}
	if errObj, ok := parsed["error"].(map[string]any); ok {
		if ms, ok := retryAfterMsField(errObj); ok {
			return ms
		}
	}
	return 0
}

func retryAfterMsField(m map[string]any) (int64, bool) {
	switch v := m["retryAfterMs"].(type) {
	case float64:
		return int64(v), true
	case string:
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			return ms, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

var errAborted = errors.New("chathandler: client disconnected")
