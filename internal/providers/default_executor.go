package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"relaygate/internal/domain"
	"relaygate/internal/formats"
	"relaygate/internal/translate"
)

// anthropicFamily, apiKeyHeaderFamily and friends are the provider.ID values that
// share one URL/header/refresh convention. A Provider.ID outside every
// named set is treated as a generic OpenAI-compatible node.
var anthropicFamily = map[string]bool{"claude": true, "glm": true, "kimi": true, "minimax": true}
var apiKeyHeaderFamily = map[string]bool{"glm": true, "kimi": true, "minimax": true}
var geminiFamily = map[string]bool{"gemini": true}
var responsesFamily = map[string]bool{"codex": true}

// DefaultExecutor handles every provider that speaks JSON-over-HTTPS with
// either SSE or a single JSON response body: OpenAI, Anthropic (API key or
// OAuth), Gemini, Codex, Qwen, iFlow, GLM, Kimi, MiniMax, OpenRouter, and
// any user-added OpenAI-/Anthropic-compatible node.
type DefaultExecutor struct {
	Client *http.Client
}

// NewDefaultExecutor returns an executor using client, or a sane default
// pooled transport when client is nil.
func NewDefaultExecutor(client *http.Client) *DefaultExecutor {
	if client == nil {
		client = &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &DefaultExecutor{Client: client}
}

func (e *DefaultExecutor) targetFormat(prov *domain.Provider) formats.Format {
	switch {
	case anthropicFamily[prov.ID]:
		return formats.Claude
	case geminiFamily[prov.ID]:
		return formats.Gemini
	case responsesFamily[prov.ID]:
		return formats.OpenAIResponses
	default:
		return formats.OpenAI
	}
}

func (e *DefaultExecutor) BuildURL(model string, stream bool, urlIndex int, conn *domain.Connection, prov *domain.Provider) string {
	base := prov.BaseURL
	if urlIndex > 0 && urlIndex-1 < len(prov.AlternateURLs) {
		base = prov.AlternateURLs[urlIndex-1]
	}
	if conn.Secrets.BaseURL != "" {
		base = conn.Secrets.BaseURL
	}

	switch {
	case anthropicFamily[prov.ID]:
		return base + "?beta=true"
	case geminiFamily[prov.ID]:
		if stream {
			return base + "/" + model + ":streamGenerateContent?alt=sse"
		}
		return base + "/" + model + ":generateContent"
	case responsesFamily[prov.ID]:
		return base + "/responses"
	default:
		return base + "/chat/completions"
	}
}

func (e *DefaultExecutor) BuildHeaders(conn *domain.Connection, stream bool) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")

	prov := conn.ProviderID
	switch {
	case geminiFamily[prov]:
		if conn.Secrets.APIKey != "" {
			h.Set("x-goog-api-key", conn.Secrets.APIKey)
		} else {
			h.Set("Authorization", "Bearer "+conn.Secrets.AccessToken)
		}
	case anthropicFamily[prov] && !apiKeyHeaderFamily[prov]:
		if conn.Secrets.APIKey != "" {
			h.Set("x-api-key", conn.Secrets.APIKey)
		} else {
			h.Set("Authorization", "Bearer "+conn.Secrets.AccessToken)
		}
	case apiKeyHeaderFamily[prov]:
		h.Set("x-api-key", conn.Secrets.APIKey)
	default:
		tok := conn.Secrets.APIKey
		if tok == "" {
			tok = conn.Secrets.AccessToken
		}
		h.Set("Authorization", "Bearer "+tok)
	}

	if stream {
		h.Set("Accept", "text/event-stream")
	}
	return h
}

func (e *DefaultExecutor) TransformRequest(_ context.Context, in ExecuteInput) (map[string]any, error) {
	tctx := &translate.Context{Model: in.Model, Stream: in.Stream, Provider: in.Provider.ID, ToolNameMap: in.ToolNameMap}
	tgt := e.targetFormat(in.Provider)
	return translate.TranslateRequest(tctx, formats.OpenAI, tgt, in.Body)
}

func (e *DefaultExecutor) Execute(ctx context.Context, in ExecuteInput) (*ExecuteOutput, error) {
	body, err := e.TransformRequest(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("providers: transform request: %w", err)
	}
	if body["model"] == nil {
		body["model"] = in.Model
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("providers: marshal request: %w", err)
	}

	url := e.BuildURL(in.Model, in.Stream, 0, in.Connection, in.Provider)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("providers: build request: %w", err)
	}
	httpReq.Header = e.BuildHeaders(in.Connection, in.Stream)

	start := time.Now()
	resp, err := e.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("providers: upstream request failed: %w", err)
	}
	latency := time.Since(start)

	out := &ExecuteOutput{
		URL:             url,
		StatusCode:      resp.StatusCode,
		Header:          resp.Header,
		TransformedBody: body,
		Latency:         latency,
		ResponseFormat:  e.targetFormat(in.Provider),
	}

	if in.Stream && resp.StatusCode == http.StatusOK {
		out.Stream = resp.Body
		return out, nil
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("providers: read response: %w", err)
	}
	out.Body = respBody
	return out, nil
}

func (e *DefaultExecutor) RefreshCredentials(ctx context.Context, conn *domain.Connection, prov *domain.Provider) (*RefreshedCredentials, error) {
	return refreshDefault(ctx, e.Client, conn, prov)
}
