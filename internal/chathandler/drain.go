package chathandler

import (
	"fmt"
	"io"

	"github.com/bytedance/sonic"

	"relaygate/internal/domain"
	"relaygate/internal/sse"
)

var sonicJSON = sonic.ConfigStd

// drainToResponse fully consumes an OpenAI-shaped SSE stream and
// reassembles it into a single non-streaming chat-completion response.
// It exists because some executors (Kiro's CodeWhisperer reframer) only
// ever produce an SSE stream, even when the client asked for a
// non-streaming response — so the core has to do on its side what the
// upstream won't.
func drainToResponse(src io.ReadCloser, model string) (map[string]any, domain.TokenCounts, error) {
	r := sse.NewReader(src)
	defer r.Close()

	var content string
	var finishReason string
	toolCalls := map[int]map[string]any{}
	var toolOrder []int
	var tokens domain.TokenCounts
	var responseID string

	for {
		ev, err := r.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, tokens, fmt.Errorf("chathandler: drain upstream stream: %w", err)
		}
		var chunk map[string]any
		if err := sonicJSON.Unmarshal(ev.Data, &chunk); err != nil {
			continue
		}
		if id, ok := chunk["id"].(string); ok && id != "" {
			responseID = id
		}
		choices, _ := chunk["choices"].([]any)
		if len(choices) == 0 {
			continue
		}
		choice, _ := choices[0].(map[string]any)
		delta, _ := choice["delta"].(map[string]any)
		if text, ok := delta["content"].(string); ok {
			content += text
		}
		if calls, ok := delta["tool_calls"].([]any); ok {
			for _, raw := range calls {
				tc, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				idx := intField(tc, "index")
				entry, seen := toolCalls[idx]
				if !seen {
					entry = map[string]any{"id": tc["id"], "type": "function", "function": map[string]any{"name": "", "arguments": ""}}
					toolCalls[idx] = entry
					toolOrder = append(toolOrder, idx)
				}
				fn, _ := entry["function"].(map[string]any)
				if newFn, ok := tc["function"].(map[string]any); ok {
					if name, ok := newFn["name"].(string); ok && name != "" {
						fn["name"] = name
					}
					if args, ok := newFn["arguments"].(string); ok {
						fn["arguments"] = fn["arguments"].(string) + args
					}
				}
			}
		}
		if fr, ok := choice["finish_reason"].(string); ok && fr != "" {
			finishReason = fr
		}
	}

	message := map[string]any{"role": "assistant", "content": content}
	if len(toolOrder) > 0 {
		var ordered []map[string]any
		for _, idx := range toolOrder {
			ordered = append(ordered, toolCalls[idx])
		}
		message["tool_calls"] = ordered
		message["content"] = nil
	}
	if finishReason == "" {
		finishReason = "stop"
	}

	resp := map[string]any{
		"id":      responseID,
		"object":  "chat.completion",
		"model":   model,
		"choices": []map[string]any{{"index": 0, "message": message, "finish_reason": finishReason}},
		"usage":   map[string]any{"prompt_tokens": tokens.Prompt, "completion_tokens": tokens.Completion, "total_tokens": tokens.Prompt + tokens.Completion},
	}
	return resp, tokens, nil
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// extractTokenCounts reads the hub (OpenAI-shaped) "usage" object out of a
// non-streaming response body.
func extractTokenCounts(hubResp map[string]any) domain.TokenCounts {
	var t domain.TokenCounts
	usage, ok := hubResp["usage"].(map[string]any)
	if !ok {
		return t
	}
	t.Prompt = intField(usage, "prompt_tokens")
	t.Completion = intField(usage, "completion_tokens")
	if details, ok := usage["prompt_tokens_details"].(map[string]any); ok {
		t.Cached = intField(details, "cached_tokens")
	}
	if details, ok := usage["completion_tokens_details"].(map[string]any); ok {
		t.Reasoning = intField(details, "reasoning_tokens")
	}
	return t
}
