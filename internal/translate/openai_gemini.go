package translate

import (
	"encoding/json"

	"relaygate/internal/formats"
)

func init() {
	registerRequest(formats.OpenAI, formats.Gemini, openaiToGeminiRequest)
	registerRequest(formats.Gemini, formats.OpenAI, geminiToOpenAIRequest)
	registerStream(formats.OpenAI, formats.Gemini, openaiToGeminiStream)
	registerStream(formats.Gemini, formats.OpenAI, geminiToOpenAIStream)
	registerResponse(formats.OpenAI, formats.Gemini, openaiToGeminiResponse)
	registerResponse(formats.Gemini, formats.OpenAI, geminiToOpenAIResponse)
}

func openaiToGeminiRequest(ctx *Context, body map[string]any) (map[string]any, error) {
	msgs, _ := body["messages"].([]any)

	var systemParts []string
	var contents []map[string]any

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
			name, _ := m["name"].(string)
			contents = append(contents, map[string]any{
				"role": "user",
				"parts": []map[string]any{{
					"functionResponse": map[string]any{
						"name":     name,
						"response": map[string]any{"result": contentToText(m["content"])},
					},
				}},
			})

		case "assistant":
			var parts []map[string]any
			if text := contentToText(m["content"]); text != "" {
				parts = append(parts, map[string]any{"text": text})
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
					var args map[string]any
					_ = json.Unmarshal([]byte(argsStr), &args)
					parts = append(parts, map[string]any{
						"functionCall": map[string]any{"name": name, "args": args},
					})
				}
			}
			contents = append(contents, map[string]any{"role": "model", "parts": parts})

		default:
			contents = append(contents, map[string]any{"role": "user", "parts": geminiParts(m["content"])})
		}
	}

	result := map[string]any{"contents": contents}
	if len(systemParts) > 0 {
		result["systemInstruction"] = map[string]any{
			"parts": []map[string]any{{"text": joinNonEmpty(systemParts)}},
		}
	}
	genConfig := map[string]any{}
	if mt, ok := body["max_tokens"]; ok {
		genConfig["maxOutputTokens"] = mt
	}
	if temp, ok := body["temperature"]; ok {
		genConfig["temperature"] = temp
	}
	if len(genConfig) > 0 {
		result["generationConfig"] = genConfig
	}
	if tools, ok := body["tools"].([]any); ok && len(tools) > 0 {
		var decls []map[string]any
		for _, t := range tools {
			tm, ok := t.(map[string]any)
			if !ok {
				continue
			}
			fn, _ := tm["function"].(map[string]any)
			decl := map[string]any{
				"name":        fn["name"],
				"description": fn["description"],
			}
			if params := fn["parameters"]; params != nil {
				decl["parameters"] = SanitizeSchema(params)
			}
			decls = append(decls, decl)
		}
		result["tools"] = []map[string]any{{"functionDeclarations": decls}}
	}
	result["model"] = body["model"]
	if stream, ok := body["stream"].(bool); ok {
		result["stream"] = stream
	}
	return result, nil
}

func geminiParts(content any) []map[string]any {
	switch v := content.(type) {
	case string:
		return []map[string]any{{"text": v}}
	case []any:
		var parts []map[string]any
		for _, c := range v {
			cm, ok := c.(map[string]any)
			if !ok {
				continue
			}
			switch cm["type"] {
			case "text":
				parts = append(parts, map[string]any{"text": cm["text"]})
			case "image_url":
				parts = append(parts, map[string]any{"text": "[image omitted]"})
			default:
				b, _ := json.Marshal(cm)
				parts = append(parts, map[string]any{"text": string(b)})
			}
		}
		return parts
	default:
		return []map[string]any{{"text": contentToText(content)}}
	}
}

func geminiToOpenAIRequest(ctx *Context, body map[string]any) (map[string]any, error) {
	var out []map[string]any

	if sys, ok := body["systemInstruction"].(map[string]any); ok {
		if text := geminiPartsToText(sys["parts"]); text != "" {
			out = append(out, map[string]any{"role": "system", "content": text})
		}
	}

	contents, _ := body["contents"].([]any)
	for _, raw := range contents {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		role, _ := m["role"].(string)
		parts, _ := m["parts"].([]any)

		var text string
		var toolCalls []map[string]any
		var toolResponses []map[string]any
		for _, p := range parts {
			pm, ok := p.(map[string]any)
			if !ok {
				continue
			}
			if t, ok := pm["text"].(string); ok {
				text += t
			}
			if fc, ok := pm["functionCall"].(map[string]any); ok {
				argBytes, _ := json.Marshal(fc["args"])
				toolCalls = append(toolCalls, map[string]any{
					"id":   "call_" + fcName(fc),
					"type": "function",
					"function": map[string]any{
						"name":      fc["name"],
						"arguments": string(argBytes),
					},
				})
			}
			if fr, ok := pm["functionResponse"].(map[string]any); ok {
				resp, _ := fr["response"].(map[string]any)
				toolResponses = append(toolResponses, map[string]any{
					"role":         "tool",
					"name":         fr["name"],
					"tool_call_id": "call_" + fcName(fr),
					"content":      contentToText(resp["result"]),
				})
			}
		}
		if len(toolResponses) > 0 {
			out = append(out, toolResponses...)
			continue
		}
		oaRole := "user"
		if role == "model" {
			oaRole = "assistant"
		}
		msg := map[string]any{"role": oaRole, "content": text}
		if len(toolCalls) > 0 {
			msg["tool_calls"] = toolCalls
			msg["content"] = nil
		}
		out = append(out, msg)
	}

	result := map[string]any{"model": body["model"], "messages": out}
	if genConfig, ok := body["generationConfig"].(map[string]any); ok {
		if mt, ok := genConfig["maxOutputTokens"]; ok {
			result["max_tokens"] = mt
		}
		if temp, ok := genConfig["temperature"]; ok {
			result["temperature"] = temp
		}
	}
	if tools, ok := body["tools"].([]any); ok {
		for _, t := range tools {
			tm, ok := t.(map[string]any)
			if !ok {
				continue
			}
			decls, _ := tm["functionDeclarations"].([]any)
			var oaTools []map[string]any
			for _, d := range decls {
				dm, ok := d.(map[string]any)
				if !ok {
					continue
				}
				oaTools = append(oaTools, map[string]any{
					"type": "function",
					"function": map[string]any{
						"name":        dm["name"],
						"description": dm["description"],
						"parameters":  dm["parameters"],
					},
				})
			}
			if len(oaTools) > 0 {
				result["tools"] = oaTools
			}
		}
	}
	return result, nil
}

func fcName(m map[string]any) string {
	if n, ok := m["name"].(string); ok {
		return n
	}
	return "unknown"
}

func geminiPartsToText(parts any) string {
	arr, ok := parts.([]any)
	if !ok {
		return ""
	}
	var s string
	for _, p := range arr {
		pm, ok := p.(map[string]any)
		if !ok {
			continue
		}
		if t, ok := pm["text"].(string); ok {
			s += t
		}
	}
	return s
}

// --- streaming ---

func openaiToGeminiStream(ctx *Context, st *StreamState, chunk map[string]any) (map[string]any, error) {
	choices, _ := chunk["choices"].([]any)
	if usage, ok := chunk["usage"].(map[string]any); ok {
		extractUsage(&st.Usage, usage)
	}
	if len(choices) == 0 {
		return nil, nil
	}
	choice, _ := choices[0].(map[string]any)
	delta, _ := choice["delta"].(map[string]any)

	var parts []map[string]any
	if text, ok := delta["content"].(string); ok && text != "" {
		parts = append(parts, map[string]any{"text": text})
	}
	if toolCalls, ok := delta["tool_calls"].([]any); ok {
		for _, tc := range toolCalls {
			tcm, ok := tc.(map[string]any)
			if !ok {
				continue
			}
			fn, _ := tcm["function"].(map[string]any)
			var args map[string]any
			argsStr, _ := fn["arguments"].(string)
			_ = json.Unmarshal([]byte(argsStr), &args)
			parts = append(parts, map[string]any{
				"functionCall": map[string]any{"name": fn["name"], "args": args},
			})
		}
	}
	if len(parts) == 0 {
		return nil, nil
	}
	out := map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{"role": "model", "parts": parts},
			"index":   0,
		}},
	}
	if finish, ok := choice["finish_reason"].(string); ok && finish != "" {
		out["candidates"].([]map[string]any)[0]["finishReason"] = geminiFinishReason(finish)
		out["usageMetadata"] = map[string]any{
			"promptTokenCount":     st.Usage.Prompt,
			"candidatesTokenCount": st.Usage.Completion,
		}
	}
	return out, nil
}

func geminiToOpenAIStream(ctx *Context, st *StreamState, chunk map[string]any) (map[string]any, error) {
	if usage, ok := chunk["usageMetadata"].(map[string]any); ok {
		if v, ok := numberField(usage, "promptTokenCount"); ok {
			st.Usage.Prompt = v
		}
		if v, ok := numberField(usage, "candidatesTokenCount"); ok {
			st.Usage.Completion = v
		}
	}
	candidates, _ := chunk["candidates"].([]any)
	if len(candidates) == 0 {
		return nil, nil
	}
	cand, _ := candidates[0].(map[string]any)
	content, _ := cand["content"].(map[string]any)
	parts, _ := content["parts"].([]any)

	var text string
	for _, p := range parts {
		pm, ok := p.(map[string]any)
		if !ok {
			continue
		}
		if t, ok := pm["text"].(string); ok {
			text += t
		}
	}
	finish := ""
	if fr, ok := cand["finishReason"].(string); ok && fr != "" {
		finish = openAIFinishFromGemini(fr)
	}
	return openAIDeltaChunk(st, text, finish), nil
}

func geminiFinishReason(openAIFinish string) string {
	switch openAIFinish {
	case "length":
		return "MAX_TOKENS"
	case "tool_calls":
		return "STOP"
	default:
		return "STOP"
	}
}

func openAIFinishFromGemini(geminiReason string) string {
	switch geminiReason {
	case "MAX_TOKENS":
		return "length"
	case "SAFETY", "RECITATION":
		return "content_filter"
	case "":
		return ""
	default:
		return "stop"
	}
}

// --- non-streaming responses ---

func geminiToOpenAIResponse(ctx *Context, body map[string]any) (map[string]any, error) {
	candidates, _ := body["candidates"].([]any)
	var text string
	var finish string
	var toolCalls []map[string]any
	if len(candidates) > 0 {
		cand, _ := candidates[0].(map[string]any)
		content, _ := cand["content"].(map[string]any)
		parts, _ := content["parts"].([]any)
		for _, p := range parts {
			pm, ok := p.(map[string]any)
			if !ok {
				continue
			}
			if t, ok := pm["text"].(string); ok {
				text += t
			}
			if fc, ok := pm["functionCall"].(map[string]any); ok {
				argBytes, _ := json.Marshal(fc["args"])
				toolCalls = append(toolCalls, map[string]any{
					"id":   "call_" + fcName(fc),
					"type": "function",
					"function": map[string]any{
						"name":      fc["name"],
						"arguments": string(argBytes),
					},
				})
			}
		}
		if fr, ok := cand["finishReason"].(string); ok {
			finish = openAIFinishFromGemini(fr)
		}
	}

	message := map[string]any{"role": "assistant", "content": text}
	if len(toolCalls) > 0 {
		message["tool_calls"] = toolCalls
		message["content"] = nil
	}

	usage := map[string]any{}
	if u, ok := body["usageMetadata"].(map[string]any); ok {
		if v, ok := numberField(u, "promptTokenCount"); ok {
			usage["prompt_tokens"] = v
		}
		if v, ok := numberField(u, "candidatesTokenCount"); ok {
			usage["completion_tokens"] = v
		}
		if v, ok := numberField(u, "totalTokenCount"); ok {
			usage["total_tokens"] = v
		}
	}

	return map[string]any{
		"object":  "chat.completion",
		"model":   body["modelVersion"],
		"choices": []map[string]any{{"index": 0, "message": message, "finish_reason": finish}},
		"usage":   usage,
	}, nil
}

func openaiToGeminiResponse(ctx *Context, body map[string]any) (map[string]any, error) {
	choices, _ := body["choices"].([]any)
	var message map[string]any
	var finishReason string
	if len(choices) > 0 {
		if c, ok := choices[0].(map[string]any); ok {
			message, _ = c["message"].(map[string]any)
			finishReason, _ = c["finish_reason"].(string)
		}
	}

	var parts []map[string]any
	if text, ok := message["content"].(string); ok && text != "" {
		parts = append(parts, map[string]any{"text": text})
	}
	if toolCalls, ok := message["tool_calls"].([]any); ok {
		for _, tc := range toolCalls {
			tcm, ok := tc.(map[string]any)
			if !ok {
				continue
			}
			fn, _ := tcm["function"].(map[string]any)
			var args map[string]any
			argsStr, _ := fn["arguments"].(string)
			_ = json.Unmarshal([]byte(argsStr), &args)
			parts = append(parts, map[string]any{
				"functionCall": map[string]any{"name": fn["name"], "args": args},
			})
		}
	}

	cand := map[string]any{
		"content": map[string]any{"role": "model", "parts": parts},
		"index":   0,
	}
	if finishReason != "" {
		cand["finishReason"] = geminiFinishReason(finishReason)
	}

	usageMeta := map[string]any{}
	if u, ok := body["usage"].(map[string]any); ok {
		if v, ok := numberField(u, "prompt_tokens"); ok {
			usageMeta["promptTokenCount"] = v
		}
		if v, ok := numberField(u, "completion_tokens"); ok {
			usageMeta["candidatesTokenCount"] = v
		}
		if v, ok := numberField(u, "total_tokens"); ok {
			usageMeta["totalTokenCount"] = v
		}
	}

	return map[string]any{
		"candidates":    []map[string]any{cand},
		"usageMetadata": usageMeta,
	}, nil
}
