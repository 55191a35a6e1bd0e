package translate

import "relaygate/internal/formats"

// Dialect translators are one-directional: a dialect is never a detection
// result for an inbound client body, only ever a translation target the
// provider executor requests on the way out. Responses from these
// providers come back already shaped like OPENAI or GEMINI (Copilot,
// Qwen, and iFlow are OpenAI-compatible; Antigravity is Gemini-compatible),
// so no reverse edge is registered.

func init() {
	registerRequest(formats.OpenAI, formats.Kiro, openaiToKiroRequest)
	registerRequest(formats.OpenAI, formats.Copilot, openaiToCopilotRequest)
	registerRequest(formats.OpenAI, formats.Antigravity, openaiToAntigravityRequest)
	registerRequest(formats.OpenAI, formats.Qwen, openaiToQwenRequest)
	registerRequest(formats.OpenAI, formats.IFlow, openaiToIFlowRequest)
}

// Copilot, Qwen, and iFlow are OpenAI-compatible at the wire level; the
// executor layer is what differs (auth headers, base URL, model aliasing),
// not the body shape. The translator still exists as a named edge so the
// registry's dispatch table stays uniform and future dialect-specific body
// quirks have a home.
func openaiToCopilotRequest(ctx *Context, body map[string]any) (map[string]any, error) {
	return body, nil
}

func openaiToQwenRequest(ctx *Context, body map[string]any) (map[string]any, error) {
	return body, nil
}

func openaiToIFlowRequest(ctx *Context, body map[string]any) (map[string]any, error) {
	return body, nil
}

// openaiToAntigravityRequest reuses the Gemini body shape and its tool-schema
// sanitization unchanged (Antigravity is a Gemini-CLI variant); it is kept
// as a separate edge so a future divergence doesn't require touching the
// Gemini translator.
func openaiToAntigravityRequest(ctx *Context, body map[string]any) (map[string]any, error) {
	return openaiToGeminiRequest(ctx, body)
}

// openaiToKiroRequest builds the CodeWhisperer generateAssistantResponse
// body. Kiro has no native tool-call/system-prompt shape of its own in the
// chat sense; history is flattened into a single conversationState.
func openaiToKiroRequest(ctx *Context, body map[string]any) (map[string]any, error) {
	msgs, _ := body["messages"].([]any)

	var history []map[string]any
	var systemParts []string
	var lastUserText string

	for i, raw := range msgs {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		role, _ := m["role"].(string)
		text := contentToText(m["content"])

		switch role {
		case "system", "developer":
			systemParts = append(systemParts, text)
		case "user":
			if i == len(msgs)-1 {
				lastUserText = text
				continue
			}
			history = append(history, map[string]any{"userInputMessage": map[string]any{"content": text}})
		case "assistant":
			history = append(history, map[string]any{"assistantResponseMessage": map[string]any{"content": text}})
		}
	}

	if len(systemParts) > 0 {
		lastUserText = joinNonEmpty(systemParts) + "\n\n" + lastUserText
	}

	return map[string]any{
		"conversationState": map[string]any{
			"chatTriggerType": "MANUAL",
			"currentMessage": map[string]any{
				"userInputMessage": map[string]any{"content": lastUserText},
			},
			"history": history,
		},
	}, nil
}
