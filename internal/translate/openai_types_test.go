package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaygate/internal/formats"
)

func TestTranslateRequest_HubIdentityValidatesAgainstOpenAIShape(t *testing.T) {
	body := map[string]any{
		"model": "gpt-4o",
		"messages": []any{
			map[string]any{"role": "user", "content": "hi"},
		},
	}
	out, err := TranslateRequest(&Context{}, formats.OpenAI, formats.OpenAI, body)
	require.NoError(t, err)
	assert.Equal(t, body, out)
}

func TestTranslateRequest_HubIdentityRejectsMalformedShape(t *testing.T) {
	body := map[string]any{
		"model":    "gpt-4o",
		"messages": "this should be an array of messages, not a string",
	}
	_, err := TranslateRequest(&Context{}, formats.OpenAI, formats.OpenAI, body)
	assert.Error(t, err)
}

func TestTranslateStreamChunk_HubIdentityValidatesAgainstOpenAIShape(t *testing.T) {
	chunk := map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion.chunk",
		"choices": []any{
			map[string]any{"index": float64(0), "delta": map[string]any{"content": "hi"}},
		},
	}
	out, err := TranslateStreamChunk(&Context{}, NewStreamState(), formats.OpenAI, formats.OpenAI, chunk)
	require.NoError(t, err)
	assert.Equal(t, chunk, out)
}
