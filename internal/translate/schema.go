package translate

import "encoding/json"

// unsupportedSchemaKeywords is the set of JSON Schema keywords Gemini's
// function-declaration schema does not accept. SanitizeSchema strips all of them
// after resolving the keywords it can translate (const, allOf, anyOf/oneOf,
// type arrays).
var unsupportedSchemaKeywords = map[string]bool{
	"minLength": true, "maxLength": true, "exclusiveMinimum": true, "exclusiveMaximum": true,
	"pattern": true, "minItems": true, "maxItems": true, "format": true, "default": true,
	"examples": true, "$schema": true, "$defs": true, "definitions": true, "const": true,
	"$ref": true, "additionalProperties": true, "propertyNames": true, "patternProperties": true,
	"anyOf": true, "oneOf": true, "allOf": true, "not": true, "dependencies": true,
	"dependentSchemas": true, "dependentRequired": true, "title": true, "if": true, "then": true,
	"else": true, "contentMediaType": true, "contentEncoding": true,
}

// SanitizeSchema rewrites a JSON Schema (decoded into map[string]any) into
// the subset Gemini/Antigravity accept. It is shared by the request
// translator and any tool-schema preview surface. Traversal is depth-first
// so that by the time a parent node is rewritten, every child it might
// reference has already been simplified — this is what makes the function
// idempotent: a second pass finds nothing left to rewrite.
func SanitizeSchema(schema any) any {
	m, ok := schema.(map[string]any)
	if !ok {
		return schema
	}
	return sanitizeObject(m)
}

func sanitizeObject(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}

	resolveConst(out)
	resolveAllOf(out)
	resolveAnyOneOf(out)
	resolveTypeArray(out)

	// Recurse into children before stripping unsupported keywords at this
	// level, so nested schemas are fully simplified first.
	if props, ok := out["properties"].(map[string]any); ok {
		sanitized := make(map[string]any, len(props))
		for name, sub := range props {
			sanitized[name] = sanitizeChild(sub)
		}
		out["properties"] = sanitized
	}
	if items, ok := out["items"]; ok {
		out["items"] = sanitizeChild(items)
	}

	pruneRequired(out)

	for kw := range unsupportedSchemaKeywords {
		delete(out, kw)
	}

	if isEmptyObjectSchema(out) {
		out["properties"] = map[string]any{"reason": map[string]any{"type": "string"}}
		out["required"] = []any{"reason"}
	}

	return out
}

func sanitizeChild(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return sanitizeObject(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = sanitizeChild(e)
		}
		return out
	default:
		return v
	}
}

// resolveConst converts `const: X` into a singleton, stringified `enum`.
func resolveConst(m map[string]any) {
	v, ok := m["const"]
	if !ok {
		return
	}
	m["enum"] = []any{stringifyEnumValue(v)}
}

func stringifyEnumValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		b, _ := marshalCompact(t)
		return string(b)
	}
}

func marshalCompact(v any) ([]byte, error) {
	return json.Marshal(v)
}

// resolveAllOf merges every branch's properties and required list into m.
func resolveAllOf(m map[string]any) {
	branches, ok := m["allOf"].([]any)
	if !ok {
		return
	}
	props, _ := m["properties"].(map[string]any)
	if props == nil {
		props = map[string]any{}
	}
	var required []any
	if r, ok := m["required"].([]any); ok {
		required = r
	}
	for _, b := range branches {
		bm, ok := b.(map[string]any)
		if !ok {
			continue
		}
		if bp, ok := bm["properties"].(map[string]any); ok {
			for k, v := range bp {
				props[k] = v
			}
		}
		if br, ok := bm["required"].([]any); ok {
			required = append(required, br...)
		}
		if bm["type"] != nil && m["type"] == nil {
			m["type"] = bm["type"]
		}
	}
	m["properties"] = props
	m["required"] = required
}

// resolveAnyOneOf flattens anyOf/oneOf by picking the richest non-null
// branch: object wins over array, array over scalar.
func resolveAnyOneOf(m map[string]any) {
	branches, ok := m["anyOf"].([]any)
	if !ok {
		branches, ok = m["oneOf"].([]any)
	}
	if !ok {
		return
	}
	best := pickRichestBranch(branches)
	if best == nil {
		return
	}
	for k, v := range best {
		if _, exists := m[k]; !exists {
			m[k] = v
		}
	}
}

func pickRichestBranch(branches []any) map[string]any {
	rank := func(bm map[string]any) int {
		switch bm["type"] {
		case "object":
			return 3
		case "array":
			return 2
		case "null":
			return 0
		default:
			return 1
		}
	}
	var best map[string]any
	bestRank := -1
	for _, b := range branches {
		bm, ok := b.(map[string]any)
		if !ok {
			continue
		}
		if r := rank(bm); r > bestRank {
			bestRank = r
			best = bm
		}
	}
	return best
}

// resolveTypeArray flattens `type: [a, b, ...]` to the first non-null type.
func resolveTypeArray(m map[string]any) {
	arr, ok := m["type"].([]any)
	if !ok {
		return
	}
	for _, t := range arr {
		if s, ok := t.(string); ok && s != "null" {
			m["type"] = s
			return
		}
	}
	if len(arr) > 0 {
		m["type"] = arr[0]
	}
}

// pruneRequired drops names from `required` that no longer appear in
// `properties`, which resolveAllOf/resolveAnyOneOf can otherwise leave
// dangling.
func pruneRequired(m map[string]any) {
	required, ok := m["required"].([]any)
	if !ok {
		return
	}
	props, _ := m["properties"].(map[string]any)
	var kept []any
	for _, r := range required {
		name, ok := r.(string)
		if !ok {
			continue
		}
		if props == nil {
			continue
		}
		if _, exists := props[name]; exists {
			kept = append(kept, name)
		}
	}
	if len(kept) > 0 {
		m["required"] = kept
	} else {
		delete(m, "required")
	}
}

func isEmptyObjectSchema(m map[string]any) bool {
	if m["type"] != "object" {
		return false
	}
	props, ok := m["properties"].(map[string]any)
	return !ok || len(props) == 0
}
