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

// copilotTokenExchangeURL issues short-lived Copilot API tokens in
// exchange for the long-lived GitHub OAuth token stored as Secrets.APIKey.
// Unlike every other provider's refresh flow, this is not a refresh_token
// grant — GitHub's device-flow OAuth token doesn't expire, but the
// Copilot-specific bearer token it's exchanged for does, every ~25
// minutes, which is why RefreshCredentials calls this unconditionally
// rather than checking an expiry first.
const copilotTokenExchangeURL = "https://api.github.com/copilot_internal/v2/token"

// CopilotExecutor wraps DefaultExecutor's request shape (Copilot is
// OpenAI-compatible at the wire level) with GitHub's required editor
// identification headers and its distinct token-exchange refresh flow.
type CopilotExecutor struct {
	Client *http.Client
}

func NewCopilotExecutor(client *http.Client) *CopilotExecutor {
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return &CopilotExecutor{Client: client}
}

func (e *CopilotExecutor) BuildURL(_ string, _ bool, _ int, conn *domain.Connection, prov *domain.Provider) string {
	base := prov.BaseURL
	if conn.Secrets.BaseURL != "" {
		base = conn.Secrets.BaseURL
	}
	return base + "/chat/completions"
}

func (e *CopilotExecutor) BuildHeaders(conn *domain.Connection, stream bool) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Authorization", "Bearer "+conn.Secrets.AccessToken)
	h.Set("Editor-Version", "relaygate/1.0")
	h.Set("Copilot-Integration-Id", "vscode-chat")
	if stream {
		h.Set("Accept", "text/event-stream")
	}
	return h
}

func (e *CopilotExecutor) TransformRequest(_ context.Context, in ExecuteInput) (map[string]any, error) {
	tctx := &translate.Context{Model: in.Model, Stream: in.Stream, Provider: in.Provider.ID, ToolNameMap: in.ToolNameMap}
	return translate.TranslateRequest(tctx, formats.OpenAI, formats.Copilot, in.Body)
}

func (e *CopilotExecutor) Execute(ctx context.Context, in ExecuteInput) (*ExecuteOutput, error) {
	body, err := e.TransformRequest(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("providers: transform copilot request: %w", err)
	}
	if body["model"] == nil {
		body["model"] = in.Model
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("providers: marshal copilot request: %w", err)
	}

	url := e.BuildURL(in.Model, in.Stream, 0, in.Connection, in.Provider)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("providers: build copilot request: %w", err)
	}
	httpReq.Header = e.BuildHeaders(in.Connection, in.Stream)

	start := time.Now()
	resp, err := e.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("providers: copilot upstream request failed: %w", err)
	}
	latency := time.Since(start)

	out := &ExecuteOutput{URL: url, StatusCode: resp.StatusCode, Header: resp.Header, TransformedBody: body, Latency: latency, ResponseFormat: formats.OpenAI}
	if in.Stream && resp.StatusCode == http.StatusOK {
		out.Stream = resp.Body
		return out, nil
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("providers: read copilot response: %w", err)
	}
	out.Body = respBody
	return out, nil
}

// RefreshCredentials exchanges the stored GitHub OAuth token for a new
// short-lived Copilot API token. conn.Secrets.APIKey holds the GitHub
// token; the exchanged token is returned as AccessToken.
func (e *CopilotExecutor) RefreshCredentials(ctx context.Context, conn *domain.Connection, _ *domain.Provider) (*RefreshedCredentials, error) {
	if conn.Secrets.APIKey == "" {
		return nil, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, copilotTokenExchangeURL, nil)
	if err != nil {
		return nil, fmt.Errorf("providers: build copilot token exchange request: %w", err)
	}
	req.Header.Set("Authorization", "token "+conn.Secrets.APIKey)

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("providers: copilot token exchange failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("providers: read copilot token exchange response: %w", err)
	}
	var parsed struct {
		Token     string `json:"token"`
		ExpiresAt int64  `json:"expires_at"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("providers: decode copilot token exchange response: %w", err)
	}

	expiresIn := int(parsed.ExpiresAt - time.Now().Unix())
	if expiresIn < 0 {
		expiresIn = 0
	}
	return &RefreshedCredentials{AccessToken: parsed.Token, ExpiresIn: expiresIn}, nil
}
