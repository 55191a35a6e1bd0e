package chathandler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"relaygate/internal/domain"
	"relaygate/internal/formats"
	"relaygate/internal/providers"
	"relaygate/internal/requestlog"
	"relaygate/internal/sse"
	"relaygate/internal/stream"
	"relaygate/internal/translate"
	"relaygate/internal/usage"
)

func (c *Core) respondNonStreaming(ctx context.Context, tctx *translate.Context, out *providers.ExecuteOutput, model string, prov *domain.Provider, conn *domain.Connection, rc *RequestCtx) (*Outcome, error) {
	var hubResp map[string]any
	var tokens domain.TokenCounts
	var err error

	if out.Stream != nil {
		hubResp, tokens, err = drainToResponse(out.Stream, model)
	} else {
		var dialectResp map[string]any
		dialectResp, err = formats.ParseBody(out.Body)
		if err == nil {
			hubResp, err = translate.TranslateResponse(tctx, out.ResponseFormat, formats.OpenAI, dialectResp)
			tokens = extractTokenCounts(hubResp)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("chathandler: build non-streaming response: %w", err)
	}

	clientResp, err := translate.TranslateResponse(tctx, formats.OpenAI, rc.SrcFormat, hubResp)
	if err != nil {
		return nil, fmt.Errorf("chathandler: translate response to client format: %w", err)
	}

	body, err := json.Marshal(clientResp)
	if err != nil {
		return nil, fmt.Errorf("chathandler: marshal client response: %w", err)
	}

	c.finish(ctx, prov, conn, model, rc, tokens, http.StatusOK, out, clientResp, "")

	if rc.Writer != nil {
		rc.Writer.Header().Set("Content-Type", "application/json")
		rc.Writer.WriteHeader(http.StatusOK)
		rc.Writer.Write(body)
	}
	return &Outcome{Body: clientResp, StatusCode: http.StatusOK}, nil
}

func (c *Core) respondStreaming(ctx context.Context, tctx *translate.Context, out *providers.ExecuteOutput, model string, prov *domain.Provider, conn *domain.Connection, rc *RequestCtx) (*Outcome, error) {
	rc.Writer.Header().Set("Content-Type", "text/event-stream")
	rc.Writer.Header().Set("Cache-Control", "no-cache")
	rc.Writer.Header().Set("Connection", "keep-alive")
	rc.Writer.WriteHeader(http.StatusOK)

	flusher, _ := rc.Writer.(http.Flusher)
	dst := sse.NewWriter(rc.Writer, flusher)

	result := stream.Run(ctx, out.Stream, dst, out.ResponseFormat, rc.SrcFormat, tctx)
	tokens := domain.TokenCounts{
		Prompt: result.Usage.Prompt, Completion: result.Usage.Completion,
		Cached: result.Usage.Cached, Reasoning: result.Usage.Reasoning, CacheCreation: result.Usage.CacheCreation,
	}

	status := http.StatusOK
	errMsg := ""
	if result.ChunkErr != nil {
		errMsg = result.ChunkErr.Error()
	}
	if result.Aborted {
		errMsg = "client disconnected mid-stream"
	}

	c.finish(ctx, prov, conn, model, rc, tokens, status, out, nil, errMsg)
	return &Outcome{Streamed: true, StatusCode: status}, nil
}

// finish persists the usage entry, writes the text-log line, and records
// the five-artifact debugging snapshot for one completed (successful)
// attempt.
func (c *Core) finish(ctx context.Context, prov *domain.Provider, conn *domain.Connection, model string, rc *RequestCtx, tokens domain.TokenCounts, statusCode int, out *providers.ExecuteOutput, clientResp map[string]any, errMsg string) {
	var costUSD float64
	if pricing, ok, err := c.pricing.Get(ctx, prov.ID, model); err == nil && ok {
		costUSD = usage.CostOf(pricing, tokens)
	}

	entry := domain.UsageEntry{
		Timestamp: time.Now(), ProviderID: prov.ID, Model: model, Tokens: tokens,
		ConnectionID: conn.ID, CostUSD: costUSD, RequestID: rc.RequestID, StatusCode: statusCode,
	}
	if err := c.usageQueue.Enqueue(ctx, entry); err != nil {
		c.log.Warn("chathandler: enqueue usage entry failed", "requestId", rc.RequestID, "error", err)
	}

	status := fmt.Sprintf("%d", statusCode)
	if errMsg != "" {
		status = "FAILED"
	}
	c.recorder.Line(requestlog.Entry{
		Timestamp: time.Now(), Model: model, ProviderID: prov.ID, Account: conn.DisplayName,
		SentTokens: tokens.Prompt, RecvTokens: tokens.Completion, Status: status,
	})

	snap := requestlog.Snapshot{
		RequestID: rc.RequestID, Timestamp: time.Now(),
		SourceFormat: string(rc.SrcFormat), TargetFormat: string(out.ResponseFormat),
		UpstreamURL: out.URL, UpstreamHeaders: requestlog.SanitizeHeaders(out.Header),
		ResponseStatus: statusCode, Error: errMsg,
	}
	if b, err := json.Marshal(rc.ClientBody); err == nil {
		snap.ClientBody = b
	}
	if b, err := json.Marshal(out.TransformedBody); err == nil {
		snap.UpstreamBody = b
	}
	if clientResp != nil {
		if b, err := json.Marshal(clientResp); err == nil {
			snap.ResponseBody = b
		}
	}
	c.recorder.Snapshot(ctx, snap)
}
