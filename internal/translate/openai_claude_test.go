package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaygate/internal/formats"
)

func TestRestrictedToolName_RewritesOnlyForClaudeOAuth(t *testing.T) {
	name := "mcp__server__tool.v2"

	out := restrictedToolName(&Context{Provider: "claude", OAuth: true, ToolNameMap: map[string]string{}}, name)
	assert.NotEqual(t, name, out, "a dotted name must be rewritten for Claude OAuth")
	assert.Regexp(t, `^[a-zA-Z0-9_-]+$`, out)

	assert.Equal(t, name, restrictedToolName(&Context{Provider: "claude", OAuth: false}, name), "api-key connections are not restricted")
	assert.Equal(t, name, restrictedToolName(&Context{Provider: "glm", OAuth: true}, name), "restriction is scoped to the claude provider")
	assert.Equal(t, "lookup", restrictedToolName(&Context{Provider: "claude", OAuth: true}, "lookup"), "already-valid names pass through unchanged")
}

func TestRestrictedToolName_RoundTripsThroughToolNameMap(t *testing.T) {
	toolNameMap := map[string]string{}
	ctx := &Context{Provider: "claude", OAuth: true, ToolNameMap: toolNameMap}

	rewritten := restrictedToolName(ctx, "mcp__server__tool.v2")
	require.NotEqual(t, "mcp__server__tool.v2", rewritten)
	require.Len(t, toolNameMap, 1)

	assert.Equal(t, "mcp__server__tool.v2", originalToolName(ctx, rewritten))
}

func TestTranslateRequest_OpenAIToClaudeRestrictsOAuthToolNames(t *testing.T) {
	body := map[string]any{
		"model": "claude-3-opus",
		"messages": []any{
			map[string]any{"role": "user", "content": "hi"},
		},
		"tools": []any{
			map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        "mcp__server__tool.v2",
					"description": "does a thing",
					"parameters":  map[string]any{"type": "object"},
				},
			},
		},
	}

	ctx := &Context{Provider: "claude", OAuth: true, ToolNameMap: map[string]string{}}
	out, err := TranslateRequest(ctx, formats.OpenAI, formats.Claude, body)
	require.NoError(t, err)

	tools := out["tools"].([]map[string]any)
	require.Len(t, tools, 1)
	rewritten, _ := tools[0]["name"].(string)
	assert.NotEqual(t, "mcp__server__tool.v2", rewritten)
	assert.Regexp(t, `^[a-zA-Z0-9_-]+$`, rewritten)
	assert.Equal(t, "mcp__server__tool.v2", ctx.ToolNameMap[rewritten])
}
