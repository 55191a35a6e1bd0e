package translate

import (
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// validateAgainstOpenAI confirms body unmarshals cleanly into typed, one of
// go-openai's wire structs. It is the hub format's own validation step:
// since OPENAI is the pivot every other dialect translates through, a body
// already claiming to be OPENAI-shaped should actually fit the library's
// request/response/chunk types. Unlike a full round-trip, this never
// re-marshals typed back into the body — go-openai's structs don't carry
// every field a dialect translator may have stashed in the hub map (tool
// thinking blocks, provider-specific extensions), and re-serializing would
// silently drop them. body is returned unchanged on success.
func validateAgainstOpenAI(body map[string]any, typed any) (map[string]any, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("translate: marshal hub body: %w", err)
	}
	if err := json.Unmarshal(raw, typed); err != nil {
		return nil, fmt.Errorf("translate: hub body does not match OpenAI wire shape: %w", err)
	}
	return body, nil
}

// validateHubRequest confirms body matches openai.ChatCompletionRequest's
// wire shape before it is sent to an OpenAI-speaking account unchanged.
func validateHubRequest(body map[string]any) (map[string]any, error) {
	return validateAgainstOpenAI(body, &openai.ChatCompletionRequest{})
}

// validateHubResponse confirms body matches
// openai.ChatCompletionResponse's wire shape before it is handed back to
// an OpenAI-speaking client unchanged.
func validateHubResponse(body map[string]any) (map[string]any, error) {
	return validateAgainstOpenAI(body, &openai.ChatCompletionResponse{})
}

// validateHubStreamChunk confirms chunk matches
// openai.ChatCompletionStreamResponse's wire shape before it is forwarded
// to an OpenAI-speaking client unchanged.
func validateHubStreamChunk(chunk map[string]any) (map[string]any, error) {
	return validateAgainstOpenAI(chunk, &openai.ChatCompletionStreamResponse{})
}
