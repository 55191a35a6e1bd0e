package translate

// Usage accumulates token counts across a stream as provider-specific
// usage fields are observed, in the domain.TokenCounts categories.
type Usage struct {
	Prompt        int
	Completion    int
	Cached        int
	Reasoning     int
	CacheCreation int
}

func (u *Usage) AddPrompt(n int)        { u.Prompt += n }
func (u *Usage) AddCompletion(n int)    { u.Completion += n }
func (u *Usage) AddCached(n int)        { u.Cached += n }
func (u *Usage) AddReasoning(n int)     { u.Reasoning += n }
func (u *Usage) AddCacheCreation(n int) { u.CacheCreation += n }

// extractUsage pulls token counts out of an OpenAI-shaped usage object,
// handling both the `prompt_tokens`/`completion_tokens` field names and the
// newer `input_tokens`/`output_tokens` names, plus the nested
// `*_tokens_details` breakdowns.
func extractUsage(u *Usage, raw map[string]any) {
	if raw == nil {
		return
	}
	if v, ok := numberField(raw, "prompt_tokens", "input_tokens"); ok {
		u.Prompt = v
	}
	if v, ok := numberField(raw, "completion_tokens", "output_tokens"); ok {
		u.Completion = v
	}
	if details, ok := raw["prompt_tokens_details"].(map[string]any); ok {
		if v, ok := numberField(details, "cached_tokens"); ok {
			u.Cached = v
		}
	}
	if details, ok := raw["input_tokens_details"].(map[string]any); ok {
		if v, ok := numberField(details, "cached_tokens"); ok {
			u.Cached = v
		}
	}
	if details, ok := raw["completion_tokens_details"].(map[string]any); ok {
		if v, ok := numberField(details, "reasoning_tokens"); ok {
			u.Reasoning = v
		}
	}
	if details, ok := raw["output_tokens_details"].(map[string]any); ok {
		if v, ok := numberField(details, "reasoning_tokens"); ok {
			u.Reasoning = v
		}
	}
}

func numberField(m map[string]any, names ...string) (int, bool) {
	for _, name := range names {
		if v, ok := m[name]; ok {
			switch n := v.(type) {
			case float64:
				return int(n), true
			case int:
				return n, true
			}
		}
	}
	return 0, false
}
