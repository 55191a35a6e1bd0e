// Package usage tracks billable token counts, computes request cost, and
// persists an append-only history of completed requests.
package usage

import "relaygate/internal/domain"

// ratePerMillion converts a USD-per-million-token rate and a token count
// into a cost contribution.
func ratePerMillion(rate float64, tokens int) float64 {
	return rate * float64(tokens) / 1_000_000
}

// CostOf computes the USD cost of one request given the pricing entry that
// applies to it. A nil entry (pricing miss) returns 0 rather than an
// error; callers that care about the miss check the entry lookup
// themselves before calling this.
//
// Cost is linear in each token category and zero for a zero-token request.
func CostOf(p *domain.PricingEntry, t domain.TokenCounts) float64 {
	if p == nil {
		return 0
	}
	cost := ratePerMillion(p.Input, t.Prompt) + ratePerMillion(p.Output, t.Completion)
	if p.Cached != nil {
		cost += ratePerMillion(*p.Cached, t.Cached)
	}
	if p.Reasoning != nil {
		cost += ratePerMillion(*p.Reasoning, t.Reasoning)
	}
	if p.CacheCreation != nil {
		cost += ratePerMillion(*p.CacheCreation, t.CacheCreation)
	}
	return cost
}
