package chathandler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"relaygate/internal/combo"
	"relaygate/internal/formats"
	"relaygate/internal/storage"
	"relaygate/internal/utils"
)

// Handler is the HTTP entry point for the chat-completion endpoint. It
// decodes the client body, detects its dialect, resolves the requested
// model or combo to an ordered candidate chain, and drives the chain
// through Core via the combo orchestrator.
type Handler struct {
	core    *Core
	aliases *storage.AliasRepository
	combos  *storage.ComboRepository
	log     *utils.Logger
}

func NewHandler(core *Core, aliases *storage.AliasRepository, combos *storage.ComboRepository, log *utils.Logger) *Handler {
	return &Handler{core: core, aliases: aliases, combos: combos, log: log}
}

// ServeHTTP handles the OpenAI- and Anthropic-shaped endpoints
// (/v1/chat/completions, /v1/messages), where the model and stream flag
// both live in the JSON body.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	clientBody, err := formats.ParseBody(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	model, _ := clientBody["model"].(string)
	stream, _ := clientBody["stream"].(bool)
	h.serve(w, r, clientBody, model, stream)
}

// ServeHTTPGemini handles Gemini's REST shape, where the model and the
// streaming variant are encoded in the URL path rather than the body:
// POST /v1beta/{model}:generateContent
// POST /v1beta/{model}:streamGenerateContent[?alt=sse]
// chi has no native ":" action syntax, so the {modelAndAction} wildcard
// segment is split on ":" here.
func (h *Handler) ServeHTTPGemini(w http.ResponseWriter, r *http.Request) {
	modelAndAction := chi.URLParam(r, "modelAndAction")
	model, action, ok := strings.Cut(modelAndAction, ":")
	if !ok {
		writeError(w, http.StatusBadRequest, "missing :generateContent action")
		return
	}
	stream := action == "streamGenerateContent"
	if !stream && action != "generateContent" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported action %q", action))
		return
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	clientBody, err := formats.ParseBody(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	clientBody["model"] = model
	clientBody["stream"] = stream

	h.serve(w, r, clientBody, model, stream)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, clientBody map[string]any, model string, stream bool) {
	ctx := r.Context()
	requestID := uuid.New().String()

	if model == "" {
		writeError(w, http.StatusBadRequest, "missing model")
		return
	}

	anthropicVersionSeen := r.Header.Get("Anthropic-Version") != ""
	srcFormat := formats.Detect(clientBody, anthropicVersionSeen)

	chain, err := resolveChain(ctx, h.aliases, h.combos, model)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rc := &RequestCtx{
		RequestID: requestID, ClientBody: clientBody, SrcFormat: srcFormat,
		Stream: stream, Header: r.Header, Writer: w, AnthropicVersionSeen: anthropicVersionSeen,
	}

	keys := make([]string, 0, len(chain))
	byKey := make(map[string]candidate, len(chain))
	for _, c := range chain {
		key := c.ProviderID + "/" + c.Model
		keys = append(keys, key)
		byKey[key] = c
	}

	attempt := func(ctx context.Context, key string) (*combo.Result, error) {
		c, ok := byKey[key]
		if !ok {
			return nil, fmt.Errorf("chathandler: unknown candidate key %q", key)
		}
		return h.core.Attempt(ctx, c.ProviderID, c.Model, rc)
	}

	result, err := combo.Run(ctx, keys, attempt)
	if err != nil {
		h.log.Error("chathandler: request failed", "requestId", requestID, "model", model, "error", err)
		writeError(w, http.StatusServiceUnavailable, "all providers exhausted for this request")
		return
	}

	// Both respondStreaming and respondNonStreaming already wrote the
	// response to rc.Writer; result.Response carries nothing more to do.
	_ = result
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body, _ := json.Marshal(map[string]any{"error": map[string]any{"message": message}})
	w.Write(body)
}
