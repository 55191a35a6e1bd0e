package providers

import "net/http"

// Registry maps a provider's dialect to the Executor that speaks it. Most
// providers share DefaultExecutor; Kiro gets its own binary-framing
// executor, and Copilot's distinct device-token header quirk gets a thin
// wrapper around DefaultExecutor.
type Registry struct {
	def     *DefaultExecutor
	kiro    *KiroExecutor
	copilot *CopilotExecutor
}

// NewRegistry builds the standard executor set, sharing one pooled HTTP
// client across all of them.
func NewRegistry(client *http.Client, kiroTokenURL string) *Registry {
	if client == nil {
		client = &http.Client{}
	}
	return &Registry{
		def:     NewDefaultExecutor(client),
		kiro:    NewKiroExecutor(client, kiroTokenURL),
		copilot: NewCopilotExecutor(client),
	}
}

// ExecutorFor returns the Executor for a provider's dialect kind. Anything
// not named below — including every generic user-added OpenAI-/
// Anthropic-compatible node — uses DefaultExecutor.
func (r *Registry) ExecutorFor(providerID string) Executor {
	switch providerID {
	case "kiro":
		return r.kiro
	case "copilot":
		return r.copilot
	default:
		return r.def
	}
}
