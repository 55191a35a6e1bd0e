package translate

import (
	"encoding/json"
	"regexp"

	"relaygate/internal/formats"
)

func init() {
	registerRequest(formats.OpenAI, formats.Claude, openaiToClaudeRequest)
	registerRequest(formats.Claude, formats.OpenAI, claudeToOpenAIRequest)
	registerStream(formats.OpenAI, formats.Claude, openaiToClaudeStream)
	registerStream(formats.Claude, formats.OpenAI, claudeToOpenAIStream)
	registerResponse(formats.OpenAI, formats.Claude, openaiToClaudeResponse)
	registerResponse(formats.Claude, formats.OpenAI, claudeToOpenAIResponse)
}

const defaultMaxTokens = 4096

func openaiToClaudeRequest(ctx *Context, body map[string]any) (map[string]any, error) {
	msgs, _ := body["messages"].([]any)

	var systemParts []string
	var out []map[string]any

	for _, raw := range msgs {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		role, _ := m["role"].(string)

		switch role {
		case "system", "developer":
			systemParts = append(systemParts, contentToText(m["content"]))

		case "tool":
			toolCallID, _ := m["tool_call_id"].(string)
			out = append(out, map[string]any{
				"role": "user",
				"content": []map[string]any{{
					"type":        "tool_result",
					"tool_use_id": toolCallID,
					"content":     contentToText(m["content"]),
				}},
			})

		case "assistant":
			blocks := []map[string]any{}
			if text := contentToText(m["content"]); text != "" {
				blocks = append(blocks, map[string]any{"type": "text", "text": text})
			}
			if toolCalls, ok := m["tool_calls"].([]any); ok {
				for _, tc := range toolCalls {
					tcm, ok := tc.(map[string]any)
					if !ok {
						continue
					}
					fn, _ := tcm["function"].(map[string]any)
					name, _ := fn["name"].(string)
					argsStr, _ := fn["arguments"].(string)
					var input map[string]any
					_ = json.Unmarshal([]byte(argsStr), &input)
					id, _ := tcm["id"].(string)
					blocks = append(blocks, map[string]any{
						"type":  "tool_use",
						"id":    id,
						"name":  originalToolName(ctx, name),
						"input": input,
					})
				}
			}
			out = append(out, map[string]any{"role": "assistant", "content": blocks})

		default: // user
			out = append(out, map[string]any{"role": "user", "content": userContentBlocks(m["content"])})
		}
	}

	result := map[string]any{
		"model":      body["model"],
		"messages":   out,
		"max_tokens": firstInt(body["max_tokens"], defaultMaxTokens),
	}
	if len(systemParts) > 0 {
		result["system"] = joinNonEmpty(systemParts)
	}
	if stream, ok := body["stream"].(bool); ok {
		result["stream"] = stream
	}
	if temp, ok := body["temperature"]; ok {
		result["temperature"] = temp
	}
	if tools, ok := body["tools"].([]any); ok && len(tools) > 0 {
		var claudeTools []map[string]any
		for _, t := range tools {
			tm, ok := t.(map[string]any)
			if !ok {
				continue
			}
			fn, _ := tm["function"].(map[string]any)
			name, _ := fn["name"].(string)
			claudeTools = append(claudeTools, map[string]any{
				"name":         restrictedToolName(ctx, name),
				"description":  fn["description"],
				"input_schema": fn["parameters"],
			})
		}
		result["tools"] = claudeTools
	}
	if tc, ok := body["tool_choice"]; ok {
		result["tool_choice"] = translateToolChoiceToClaude(tc)
	}
	return result, nil
}

func claudeToOpenAIRequest(ctx *Context, body map[string]any) (map[string]any, error) {
	var out []map[string]any

	if sys, ok := body["system"]; ok {
		if text := contentToText(sys); text != "" {
			out = append(out, map[string]any{"role": "system", "content": text})
		}
	}

	msgs, _ := body["messages"].([]any)
	for _, raw := range msgs {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		role, _ := m["role"].(string)
		blocks, isBlocks := m["content"].([]any)
		if !isBlocks {
			out = append(out, map[string]any{"role": role, "content": contentToText(m["content"])})
			continue
		}

		var text string
		var toolCalls []map[string]any
		var toolResults []map[string]any
		for _, b := range blocks {
			bm, ok := b.(map[string]any)
			if !ok {
				continue
			}
			switch bm["type"] {
			case "text":
				if t, ok := bm["text"].(string); ok {
					text += t
				}
			case "tool_use":
				argBytes, _ := json.Marshal(bm["input"])
				name, _ := bm["name"].(string)
				toolCalls = append(toolCalls, map[string]any{
					"id":   bm["id"],
					"type": "function",
					"function": map[string]any{
						"name":      originalToolName(ctx, name),
						"arguments": string(argBytes),
					},
				})
			case "tool_result":
				toolResults = append(toolResults, map[string]any{
					"role":         "tool",
					"tool_call_id": bm["tool_use_id"],
					"content":      contentToText(bm["content"]),
				})
			}
		}
		if len(toolResults) > 0 {
			out = append(out, toolResults...)
			continue
		}
		msg := map[string]any{"role": role, "content": text}
		if len(toolCalls) > 0 {
			msg["tool_calls"] = toolCalls
			msg["content"] = nil
		}
		out = append(out, msg)
	}

	result := map[string]any{"model": body["model"], "messages": out}
	if stream, ok := body["stream"].(bool); ok {
		result["stream"] = stream
	}
	if mt, ok := body["max_tokens"]; ok {
		result["max_tokens"] = mt
	}
	if tools, ok := body["tools"].([]any); ok && len(tools) > 0 {
		var oaTools []map[string]any
		for _, t := range tools {
			tm, ok := t.(map[string]any)
			if !ok {
				continue
			}
			oaTools = append(oaTools, map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        tm["name"],
					"description": tm["description"],
					"parameters":  tm["input_schema"],
				},
			})
		}
		result["tools"] = oaTools
	}
	return result, nil
}

func translateToolChoiceToClaude(tc any) any {
	switch v := tc.(type) {
	case string:
		switch v {
		case "auto":
			return map[string]any{"type": "auto"}
		case "required":
			return map[string]any{"type": "any"}
		case "none":
			return nil
		}
	case map[string]any:
		if fn, ok := v["function"].(map[string]any); ok {
			return map[string]any{"type": "tool", "name": fn["name"]}
		}
	}
	return nil
}

// originalToolName/restrictedToolName consult ctx.ToolNameMap to recover a
// name rewritten for a provider's restricted identifier rules (populated by
// the Anthropic OAuth dialect path). Absent a mapping, the name passes
// through unchanged.
func originalToolName(ctx *Context, name string) string {
	if ctx == nil || ctx.ToolNameMap == nil {
		return name
	}
	for translated, original := range ctx.ToolNameMap {
		if translated == name {
			return original
		}
	}
	return name
}

// anthropicToolNamePattern is the identifier Anthropic's OAuth (Claude Code
// subscription) token accepts for a tool name: letters, digits, underscore,
// and hyphen only. Connections authenticated with a plain API key aren't
// subject to this restriction, so rewriting is scoped to ctx.OAuth.
var anthropicToolNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,128}$`)

// restrictedToolName rewrites name into something Anthropic OAuth accepts
// (e.g. MCP tool names like "mcp__server__tool.v2" that contain a dot), and
// records the rewrite in ctx.ToolNameMap keyed by the rewritten name so
// originalToolName can restore it on the response path.
func restrictedToolName(ctx *Context, name string) string {
	if ctx == nil || !ctx.OAuth || ctx.Provider != "claude" {
		return name
	}
	if anthropicToolNamePattern.MatchString(name) {
		return name
	}
	sanitized := disallowedToolNameChar.ReplaceAllString(name, "_")
	if len(sanitized) > 128 {
		sanitized = sanitized[:128]
	}
	if sanitized == name {
		return name
	}
	if ctx.ToolNameMap != nil {
		ctx.ToolNameMap[sanitized] = name
	}
	return sanitized
}

var disallowedToolNameChar = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func contentToText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		return joinBlocksAsText(v)
	case nil:
		return ""
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

func joinBlocksAsText(blocks []any) string {
	var s string
	for _, b := range blocks {
		bm, ok := b.(map[string]any)
		if !ok {
			continue
		}
		switch bm["type"] {
		case "text":
			if t, ok := bm["text"].(string); ok {
				s += t
			}
		case "image_url", "image":
			s += "[image omitted]"
		}
	}
	return s
}

// userContentBlocks converts an OpenAI multi-part user content array into
// Claude content blocks, inlining a textual placeholder for parts with no
// Claude-side representation instead of dropping them silently.
func userContentBlocks(content any) any {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		var blocks []map[string]any
		for _, part := range v {
			pm, ok := part.(map[string]any)
			if !ok {
				continue
			}
			switch pm["type"] {
			case "text":
				blocks = append(blocks, map[string]any{"type": "text", "text": pm["text"]})
			case "image_url":
				blocks = append(blocks, map[string]any{"type": "text", "text": "[image omitted]"})
			default:
				b, _ := json.Marshal(pm)
				blocks = append(blocks, map[string]any{"type": "text", "text": string(b)})
			}
		}
		return blocks
	default:
		return content
	}
}

func firstInt(v any, def int) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return def
	}
}

func joinNonEmpty(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "\n"
		}
		out += p
	}
	return out
}

// --- streaming ---

func openaiToClaudeStream(ctx *Context, st *StreamState, chunk map[string]any) (map[string]any, error) {
	choices, _ := chunk["choices"].([]any)
	if usage, ok := chunk["usage"].(map[string]any); ok {
		extractUsage(&st.Usage, usage)
	}
	if len(choices) == 0 {
		return nil, nil
	}
	choice, _ := choices[0].(map[string]any)
	delta, _ := choice["delta"].(map[string]any)

	if finish, ok := choice["finish_reason"].(string); ok && finish != "" {
		return map[string]any{
			"type":  "message_delta",
			"delta": map[string]any{"stop_reason": claudeStopReason(finish)},
			"usage": map[string]any{"output_tokens": st.Usage.Completion},
		}, nil
	}

	if text, ok := delta["content"].(string); ok && text != "" {
		return map[string]any{
			"type":  "content_block_delta",
			"index": 0,
			"delta": map[string]any{"type": "text_delta", "text": text},
		}, nil
	}
	if _, ok := delta["tool_calls"]; ok {
		// Dialect-level tool-call streaming is covered by the non-streaming
		// accumulation path; fine-grained Claude tool_use SSE is out of
		// scope since clients that need it speak Claude to a Claude
		// provider directly (identity path, no translation).
		return nil, nil
	}
	return nil, nil
}

func claudeToOpenAIStream(ctx *Context, st *StreamState, chunk map[string]any) (map[string]any, error) {
	typ, _ := chunk["type"].(string)
	switch typ {
	case "content_block_delta":
		delta, _ := chunk["delta"].(map[string]any)
		text, _ := delta["text"].(string)
		return openAIDeltaChunk(st, text, ""), nil
	case "message_delta":
		delta, _ := chunk["delta"].(map[string]any)
		stopReason, _ := delta["stop_reason"].(string)
		if usage, ok := chunk["usage"].(map[string]any); ok {
			extractUsage(&st.Usage, usage)
		}
		return openAIDeltaChunk(st, "", openAIFinishReason(stopReason)), nil
	default:
		return nil, nil
	}
}

func claudeStopReason(openAIFinish string) string {
	switch openAIFinish {
	case "tool_calls":
		return "tool_use"
	case "length":
		return "max_tokens"
	default:
		return "end_turn"
	}
}

func openAIFinishReason(claudeStop string) string {
	switch claudeStop {
	case "tool_use":
		return "tool_calls"
	case "max_tokens":
		return "length"
	case "":
		return ""
	default:
		return "stop"
	}
}

// openAIDeltaChunk builds an OpenAI-shaped completion-chunk delta, emitting
// the assistant role marker exactly once per stream.
func openAIDeltaChunk(st *StreamState, text, finishReason string) map[string]any {
	delta := map[string]any{}
	if !st.RoleEmitted {
		delta["role"] = "assistant"
		st.RoleEmitted = true
	}
	if text != "" {
		delta["content"] = text
	}
	choice := map[string]any{"index": 0, "delta": delta}
	if finishReason != "" {
		choice["finish_reason"] = finishReason
	} else {
		choice["finish_reason"] = nil
	}
	return map[string]any{
		"id":      st.ResponseID,
		"object":  "chat.completion.chunk",
		"model":   st.Model,
		"choices": []map[string]any{choice},
	}
}

// --- non-streaming responses ---

func claudeToOpenAIResponse(ctx *Context, body map[string]any) (map[string]any, error) {
	blocks, _ := body["content"].([]any)

	var text string
	var toolCalls []map[string]any
	for _, b := range blocks {
		bm, ok := b.(map[string]any)
		if !ok {
			continue
		}
		switch bm["type"] {
		case "text":
			if t, ok := bm["text"].(string); ok {
				text += t
			}
		case "tool_use":
			argBytes, _ := json.Marshal(bm["input"])
			name, _ := bm["name"].(string)
			toolCalls = append(toolCalls, map[string]any{
				"id":   bm["id"],
				"type": "function",
				"function": map[string]any{
					"name":      originalToolName(ctx, name),
					"arguments": string(argBytes),
				},
			})
		}
	}

	message := map[string]any{"role": "assistant", "content": text}
	stopReason, _ := body["stop_reason"].(string)
	if len(toolCalls) > 0 {
		message["tool_calls"] = toolCalls
		message["content"] = nil
	}

	usage := map[string]any{}
	if in, ok := body["usage"].(map[string]any); ok {
		if v, ok := numberField(in, "input_tokens"); ok {
			usage["prompt_tokens"] = v
		}
		if v, ok := numberField(in, "output_tokens"); ok {
			usage["completion_tokens"] = v
		}
	}

	return map[string]any{
		"id":      body["id"],
		"object":  "chat.completion",
		"model":   body["model"],
		"choices": []map[string]any{{"index": 0, "message": message, "finish_reason": openAIFinishReason(stopReason)}},
		"usage":   usage,
	}, nil
}

func openaiToClaudeResponse(ctx *Context, body map[string]any) (map[string]any, error) {
	choices, _ := body["choices"].([]any)
	var message map[string]any
	var finishReason string
	if len(choices) > 0 {
		if c, ok := choices[0].(map[string]any); ok {
			message, _ = c["message"].(map[string]any)
			finishReason, _ = c["finish_reason"].(string)
		}
	}

	var blocks []map[string]any
	if text, ok := message["content"].(string); ok && text != "" {
		blocks = append(blocks, map[string]any{"type": "text", "text": text})
	}
	if toolCalls, ok := message["tool_calls"].([]any); ok {
		for _, tc := range toolCalls {
			tcm, ok := tc.(map[string]any)
			if !ok {
				continue
			}
			fn, _ := tcm["function"].(map[string]any)
			name, _ := fn["name"].(string)
			argsStr, _ := fn["arguments"].(string)
			var input map[string]any
			_ = json.Unmarshal([]byte(argsStr), &input)
			blocks = append(blocks, map[string]any{
				"type":  "tool_use",
				"id":    tcm["id"],
				"name":  restrictedToolName(ctx, name),
				"input": input,
			})
		}
	}

	usage := map[string]any{}
	if in, ok := body["usage"].(map[string]any); ok {
		if v, ok := numberField(in, "prompt_tokens"); ok {
			usage["input_tokens"] = v
		}
		if v, ok := numberField(in, "completion_tokens"); ok {
			usage["output_tokens"] = v
		}
	}

	return map[string]any{
		"id":          body["id"],
		"type":        "message",
		"role":        "assistant",
		"model":       body["model"],
		"content":     blocks,
		"stop_reason": claudeStopReason(finishReason),
		"usage":       usage,
	}, nil
}
