package translate

import (
	"relaygate/internal/formats"
)

func init() {
	registerRequest(formats.OpenAI, formats.OpenAIResponses, openaiToResponsesRequest)
	registerRequest(formats.OpenAIResponses, formats.OpenAI, responsesToOpenAIRequest)
	registerStream(formats.OpenAI, formats.OpenAIResponses, openaiToResponsesStream)
	registerStream(formats.OpenAIResponses, formats.OpenAI, responsesToOpenAIStream)
	registerResponse(formats.OpenAI, formats.OpenAIResponses, openaiToResponsesResponse)
	registerResponse(formats.OpenAIResponses, formats.OpenAI, responsesToOpenAIResponse)
}

func openaiToResponsesRequest(ctx *Context, body map[string]any) (map[string]any, error) {
	msgs, _ := body["messages"].([]any)

	var instructions []string
	var input []map[string]any

	for _, raw := range msgs {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		role, _ := m["role"].(string)

		switch role {
		case "system", "developer":
			instructions = append(instructions, contentToText(m["content"]))
		case "tool":
			input = append(input, map[string]any{
				"type":    "function_call_output",
				"call_id": m["tool_call_id"],
				"output":  contentToText(m["content"]),
			})
		case "assistant":
			if toolCalls, ok := m["tool_calls"].([]any); ok {
				for _, tc := range toolCalls {
					tcm, ok := tc.(map[string]any)
					if !ok {
						continue
					}
					fn, _ := tcm["function"].(map[string]any)
					input = append(input, map[string]any{
						"type":      "function_call",
						"call_id":   tcm["id"],
						"name":      fn["name"],
						"arguments": fn["arguments"],
					})
				}
			}
			if text := contentToText(m["content"]); text != "" {
				input = append(input, map[string]any{
					"type": "message", "role": "assistant",
					"content": []map[string]any{{"type": "output_text", "text": text}},
				})
			}
		default:
			input = append(input, map[string]any{
				"type": "message", "role": "user",
				"content": []map[string]any{{"type": "input_text", "text": contentToText(m["content"])}},
			})
		}
	}

	result := map[string]any{"model": body["model"], "input": input}
	if len(instructions) > 0 {
		result["instructions"] = joinNonEmpty(instructions)
	}
	if stream, ok := body["stream"].(bool); ok {
		result["stream"] = stream
	}
	if tools, ok := body["tools"].([]any); ok && len(tools) > 0 {
		var flat []map[string]any
		for _, t := range tools {
			tm, ok := t.(map[string]any)
			if !ok {
				continue
			}
			fn, _ := tm["function"].(map[string]any)
			flat = append(flat, map[string]any{
				"type":        "function",
				"name":        fn["name"],
				"description": fn["description"],
				"parameters":  fn["parameters"],
			})
		}
		result["tools"] = flat
	}
	return result, nil
}

func responsesToOpenAIRequest(ctx *Context, body map[string]any) (map[string]any, error) {
	var out []map[string]any
	if instr, ok := body["instructions"].(string); ok && instr != "" {
		out = append(out, map[string]any{"role": "system", "content": instr})
	}

	items, _ := body["input"].([]any)
	for _, raw := range items {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		switch m["type"] {
		case "function_call_output":
			out = append(out, map[string]any{
				"role":         "tool",
				"tool_call_id": m["call_id"],
				"content":      contentToText(m["output"]),
			})
		case "function_call":
			out = append(out, map[string]any{
				"role": "assistant", "content": nil,
				"tool_calls": []map[string]any{{
					"id":   m["call_id"],
					"type": "function",
					"function": map[string]any{
						"name":      m["name"],
						"arguments": m["arguments"],
					},
				}},
			})
		case "message":
			role, _ := m["role"].(string)
			out = append(out, map[string]any{"role": role, "content": responsesContentToText(m["content"])})
		}
	}

	result := map[string]any{"model": body["model"], "messages": out}
	if stream, ok := body["stream"].(bool); ok {
		result["stream"] = stream
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
					"parameters":  tm["parameters"],
				},
			})
		}
		result["tools"] = oaTools
	}
	return result, nil
}

func responsesContentToText(content any) string {
	arr, ok := content.([]any)
	if !ok {
		return contentToText(content)
	}
	var s string
	for _, c := range arr {
		cm, ok := c.(map[string]any)
		if !ok {
			continue
		}
		if t, ok := cm["text"].(string); ok {
			s += t
		}
	}
	return s
}

// --- streaming ---
//
// Responses API streams a sequence of typed events
// (response.output_text.delta, response.function_call_arguments.delta,
// response.completed, ...) rather than OpenAI chat's uniform chunk shape.
// relaygate translates text deltas and completion in both directions, and
// function-call argument deltas from Responses to chat only; chat
// tool-call deltas produce no Responses event.

func openaiToResponsesStream(ctx *Context, st *StreamState, chunk map[string]any) (map[string]any, error) {
	choices, _ := chunk["choices"].([]any)
	if len(choices) == 0 {
		return nil, nil
	}
	choice, _ := choices[0].(map[string]any)
	delta, _ := choice["delta"].(map[string]any)
	if text, ok := delta["content"].(string); ok && text != "" {
		return map[string]any{"type": "response.output_text.delta", "delta": text}, nil
	}
	if finish, ok := choice["finish_reason"].(string); ok && finish != "" {
		return map[string]any{"type": "response.completed"}, nil
	}
	return nil, nil
}

func responsesToOpenAIStream(ctx *Context, st *StreamState, chunk map[string]any) (map[string]any, error) {
	typ, _ := chunk["type"].(string)
	switch typ {
	case "response.output_text.delta":
		text, _ := chunk["delta"].(string)
		return openAIDeltaChunk(st, text, ""), nil
	case "response.function_call_arguments.delta":
		// Arguments arrive as a raw string fragment; surface as a
		// tool_calls delta so downstream accumulation (internal/stream)
		// can build up the full JSON the way it does for chat-format
		// tool calls.
		args, _ := chunk["delta"].(string)
		return map[string]any{
			"id": st.ResponseID, "object": "chat.completion.chunk", "model": st.Model,
			"choices": []map[string]any{{
				"index": 0,
				"delta": map[string]any{
					"tool_calls": []map[string]any{{
						"index":    0,
						"function": map[string]any{"arguments": args},
					}},
				},
				"finish_reason": nil,
			}},
		}, nil
	case "response.completed":
		return openAIDeltaChunk(st, "", "stop"), nil
	default:
		return nil, nil
	}
}

// --- non-streaming responses ---

func responsesToOpenAIResponse(ctx *Context, body map[string]any) (map[string]any, error) {
	items, _ := body["output"].([]any)
	var text string
	var toolCalls []map[string]any
	for _, raw := range items {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		switch m["type"] {
		case "message":
			text += responsesContentToText(m["content"])
		case "function_call":
			toolCalls = append(toolCalls, map[string]any{
				"id":   m["call_id"],
				"type": "function",
				"function": map[string]any{
					"name":      m["name"],
					"arguments": m["arguments"],
				},
			})
		}
	}

	message := map[string]any{"role": "assistant", "content": text}
	if len(toolCalls) > 0 {
		message["tool_calls"] = toolCalls
		message["content"] = nil
	}

	usage := map[string]any{}
	if u, ok := body["usage"].(map[string]any); ok {
		if v, ok := numberField(u, "input_tokens"); ok {
			usage["prompt_tokens"] = v
		}
		if v, ok := numberField(u, "output_tokens"); ok {
			usage["completion_tokens"] = v
		}
	}

	return map[string]any{
		"id":      body["id"],
		"object":  "chat.completion",
		"model":   body["model"],
		"choices": []map[string]any{{"index": 0, "message": message, "finish_reason": "stop"}},
		"usage":   usage,
	}, nil
}

func openaiToResponsesResponse(ctx *Context, body map[string]any) (map[string]any, error) {
	choices, _ := body["choices"].([]any)
	var message map[string]any
	if len(choices) > 0 {
		if c, ok := choices[0].(map[string]any); ok {
			message, _ = c["message"].(map[string]any)
		}
	}

	var output []map[string]any
	if toolCalls, ok := message["tool_calls"].([]any); ok {
		for _, tc := range toolCalls {
			tcm, ok := tc.(map[string]any)
			if !ok {
				continue
			}
			fn, _ := tcm["function"].(map[string]any)
			output = append(output, map[string]any{
				"type":      "function_call",
				"call_id":   tcm["id"],
				"name":      fn["name"],
				"arguments": fn["arguments"],
			})
		}
	}
	if text, ok := message["content"].(string); ok && text != "" {
		output = append(output, map[string]any{
			"type": "message", "role": "assistant",
			"content": []map[string]any{{"type": "output_text", "text": text}},
		})
	}

	usage := map[string]any{}
	if u, ok := body["usage"].(map[string]any); ok {
		if v, ok := numberField(u, "prompt_tokens"); ok {
			usage["input_tokens"] = v
		}
		if v, ok := numberField(u, "completion_tokens"); ok {
			usage["output_tokens"] = v
		}
	}

	return map[string]any{
		"id":     body["id"],
		"object": "response",
		"model":  body["model"],
		"output": output,
		"usage":  usage,
	}, nil
}
