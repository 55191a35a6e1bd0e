// Package formats enumerates the wire formats relaygate understands and
// classifies an incoming request body into one of them.
package formats

import "encoding/json"

// Format is a closed set of request/response shapes relaygate can translate
// between.
type Format string

const (
	OpenAI          Format = "OPENAI"
	Claude          Format = "CLAUDE"
	Gemini          Format = "GEMINI"
	OpenAIResponses Format = "OPENAI_RESPONSES"

	// Provider dialect targets. A dialect is never a detection result for an
	// inbound client body; it is only ever a translation target chosen by the
	// provider executor.
	Kiro        Format = "KIRO"
	Copilot     Format = "COPILOT"
	Antigravity Format = "ANTIGRAVITY"
	Qwen        Format = "QWEN"
	IFlow       Format = "IFLOW"
)

func (f Format) String() string { return string(f) }

// IsDialect reports whether f is a provider-specific dialect rather than one
// of the four client-facing formats.
func (f Format) IsDialect() bool {
	switch f {
	case Kiro, Copilot, Antigravity, Qwen, IFlow:
		return true
	default:
		return false
	}
}

// Detect classifies a parsed request body. Detection is deterministic and
// side-effect-free: it never mutates body and never consults anything but
// the JSON shape and, optionally, a header hint.
//
// Rules are evaluated in order; the first match wins. Ambiguous bodies
// default to OpenAI.
func Detect(body map[string]any, anthropicVersionHeaderSeen bool) Format {
	if hasArray(body, "input") && (hasKey(body, "instructions") || hasKey(body, "previous_response_id")) {
		return OpenAIResponses
	}
	if hasContents(body) {
		return Gemini
	}
	if hasArray(body, "messages") && looksLikeClaude(body, anthropicVersionHeaderSeen) {
		return Claude
	}
	if hasArray(body, "messages") {
		return OpenAI
	}
	return OpenAI
}

func hasKey(body map[string]any, key string) bool {
	_, ok := body[key]
	return ok
}

func hasArray(body map[string]any, key string) bool {
	v, ok := body[key]
	if !ok {
		return false
	}
	_, ok = v.([]any)
	return ok
}

// hasContents checks for Gemini's `contents` array, either at top level or
// nested one level down (some dialects wrap the payload).
func hasContents(body map[string]any) bool {
	if hasArray(body, "contents") {
		return true
	}
	for _, v := range body {
		if nested, ok := v.(map[string]any); ok && hasArray(nested, "contents") {
			return true
		}
	}
	return false
}

func looksLikeClaude(body map[string]any, anthropicVersionHeaderSeen bool) bool {
	if anthropicVersionHeaderSeen {
		return true
	}
	if sys, ok := body["system"]; ok {
		switch sys.(type) {
		case string:
			return true
		case []any:
			return true
		}
	}
	msgs, _ := body["messages"].([]any)
	for _, m := range msgs {
		mm, ok := m.(map[string]any)
		if !ok {
			continue
		}
		content, ok := mm["content"].([]any)
		if !ok {
			continue
		}
		for _, c := range content {
			block, ok := c.(map[string]any)
			if !ok {
				continue
			}
			switch block["type"] {
			case "tool_use", "tool_result":
				return true
			}
		}
	}
	return false
}

// ParseBody is a thin convenience wrapper used by callers that have the raw
// bytes rather than an already-decoded map.
func ParseBody(raw []byte) (map[string]any, error) {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	return body, nil
}

// DialectTargets maps a provider alias (the string used in Provider.ID, e.g.
// "kiro", "copilot", "antigravity", "qwen", "iflow") to the
// dialect format its requests must be translated into. Providers not listed
// here use the default target resolution (their preferred wire format).
var DialectTargets = map[string]Format{
	"kiro":        Kiro,
	"copilot":     Copilot,
	"antigravity": Antigravity,
	"qwen":        Qwen,
	"iflow":       IFlow,
}

// TargetFor resolves the dialect target for a provider alias, falling back
// to def (the provider's statically configured preferred format) when the
// alias has no dialect entry.
func TargetFor(providerAlias string, def Format) Format {
	if t, ok := DialectTargets[providerAlias]; ok {
		return t
	}
	return def
}
