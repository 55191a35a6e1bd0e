// Package translate implements the translator registry: a directed graph
// of per-format request and streaming-response translators, using OPENAI as
// the hub so that only lossy or dialect-only edges need a direct
// implementation.
package translate

import (
	"fmt"

	"relaygate/internal/formats"
)

// Context carries everything a translator needs beyond the body itself.
// ToolNameMap is populated by translators that must rewrite tool names to
// satisfy a provider's restricted identifier rules (e.g. Anthropic OAuth);
// it is threaded back to the caller so the response path can restore the
// original names.
type Context struct {
	Model       string
	Stream      bool
	Provider    string // provider id, used for dialect-specific quirks
	OAuth       bool   // true when the executing connection authenticates via OAuth rather than an API key
	ToolNameMap map[string]string
}

type edge struct {
	src, tgt formats.Format
}

// RequestFunc translates one request body from src to tgt. Implementations
// must be pure aside from writes to ctx.ToolNameMap.
type RequestFunc func(ctx *Context, body map[string]any) (map[string]any, error)

// StreamFunc translates one already-decoded SSE chunk from src to tgt.
// Returning a nil map (with nil error) means "drop this chunk" — the
// upstream frame doesn't translate to anything meaningful downstream.
type StreamFunc func(ctx *Context, st *StreamState, chunk map[string]any) (map[string]any, error)

// ResponseFunc translates one complete, non-streaming response body from
// src to tgt.
type ResponseFunc func(ctx *Context, body map[string]any) (map[string]any, error)

var requestTranslators = map[edge]RequestFunc{}
var streamTranslators = map[edge]StreamFunc{}
var responseTranslators = map[edge]ResponseFunc{}

func registerRequest(src, tgt formats.Format, fn RequestFunc) {
	requestTranslators[edge{src, tgt}] = fn
}

func registerStream(src, tgt formats.Format, fn StreamFunc) {
	streamTranslators[edge{src, tgt}] = fn
}

func registerResponse(src, tgt formats.Format, fn ResponseFunc) {
	responseTranslators[edge{src, tgt}] = fn
}

// hub is the pivot format every indirect edge routes through.
const hub = formats.OpenAI

// TranslateRequest converts body from src to tgt. If src == tgt it returns
// body unchanged (identity; an OPENAI body is first validated against the
// OpenAI wire shape). Otherwise it looks for a direct edge; failing that,
// it composes src->hub->tgt. When one side already is the hub, only the
// direct edge applies and its absence is an error.
func TranslateRequest(ctx *Context, src, tgt formats.Format, body map[string]any) (map[string]any, error) {
	if src == tgt {
		if src == hub {
			return validateHubRequest(body)
		}
		return body, nil
	}
	if fn, ok := requestTranslators[edge{src, tgt}]; ok {
		return fn(ctx, body)
	}
	if src == hub {
		return nil, fmt.Errorf("translate: no request translator registered for %s->%s", src, tgt)
	}
	if tgt == hub {
		return nil, fmt.Errorf("translate: no request translator registered for %s->%s", src, tgt)
	}
	toHub, ok := requestTranslators[edge{src, hub}]
	if !ok {
		return nil, fmt.Errorf("translate: no path from %s to hub", src)
	}
	fromHub, ok := requestTranslators[edge{hub, tgt}]
	if !ok {
		return nil, fmt.Errorf("translate: no path from hub to %s", tgt)
	}
	mid, err := toHub(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("translate %s->hub: %w", src, err)
	}
	out, err := fromHub(ctx, mid)
	if err != nil {
		return nil, fmt.Errorf("translate hub->%s: %w", tgt, err)
	}
	return out, nil
}

// TranslateResponse converts a complete, non-streaming response body from
// src to tgt, composing through the hub the same way TranslateRequest does.
func TranslateResponse(ctx *Context, src, tgt formats.Format, body map[string]any) (map[string]any, error) {
	if src == tgt {
		if src == hub {
			return validateHubResponse(body)
		}
		return body, nil
	}
	if fn, ok := responseTranslators[edge{src, tgt}]; ok {
		return fn(ctx, body)
	}
	if src == hub {
		return nil, fmt.Errorf("translate: no response translator registered for %s->%s", src, tgt)
	}
	if tgt == hub {
		return nil, fmt.Errorf("translate: no response translator registered for %s->%s", src, tgt)
	}
	toHub, ok := responseTranslators[edge{src, hub}]
	if !ok {
		return nil, fmt.Errorf("translate: no response path from %s to hub", src)
	}
	fromHub, ok := responseTranslators[edge{hub, tgt}]
	if !ok {
		return nil, fmt.Errorf("translate: no response path from hub to %s", tgt)
	}
	mid, err := toHub(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("translate response %s->hub: %w", src, err)
	}
	out, err := fromHub(ctx, mid)
	if err != nil {
		return nil, fmt.Errorf("translate response hub->%s: %w", tgt, err)
	}
	return out, nil
}

// StreamState is the per-request mutable state threaded through successive
// calls to TranslateStreamChunk: assistant-role-emitted flag, tool-call
// index assignment, accumulated arguments, and accumulated usage.
type StreamState struct {
	RoleEmitted    bool
	ToolIndexByID  map[string]int
	NextToolIndex  int
	ArgsByToolID   map[string]string
	Usage          Usage
	FinishEmitted  bool
	ResponseID     string
	Model          string
}

func NewStreamState() *StreamState {
	return &StreamState{
		ToolIndexByID: make(map[string]int),
		ArgsByToolID:  make(map[string]string),
	}
}

// TranslateStreamChunk converts one decoded SSE payload from src to tgt,
// threading st across the whole stream. Identity when src == tgt.
func TranslateStreamChunk(ctx *Context, st *StreamState, src, tgt formats.Format, chunk map[string]any) (map[string]any, error) {
	if src == tgt {
		if src == hub {
			return validateHubStreamChunk(chunk)
		}
		return chunk, nil
	}
	if fn, ok := streamTranslators[edge{src, tgt}]; ok {
		return fn(ctx, st, chunk)
	}
	if src == hub || tgt == hub {
		return nil, fmt.Errorf("translate: no stream translator registered for %s->%s", src, tgt)
	}
	toHub, ok := streamTranslators[edge{src, hub}]
	if !ok {
		return nil, fmt.Errorf("translate: no stream path from %s to hub", src)
	}
	fromHub, ok := streamTranslators[edge{hub, tgt}]
	if !ok {
		return nil, fmt.Errorf("translate: no stream path from hub to %s", tgt)
	}
	mid, err := toHub(ctx, st, chunk)
	if err != nil || mid == nil {
		return mid, err
	}
	return fromHub(ctx, st, mid)
}
