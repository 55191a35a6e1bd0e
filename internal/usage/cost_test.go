package usage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"relaygate/internal/domain"
)

func TestCostOf_NilPricingIsZero(t *testing.T) {
	assert.Equal(t, 0.0, CostOf(nil, domain.TokenCounts{Prompt: 1000, Completion: 1000}))
}

func TestCostOf_ZeroTokensIsZero(t *testing.T) {
	p := &domain.PricingEntry{Input: 3, Output: 15}
	assert.Equal(t, 0.0, CostOf(p, domain.TokenCounts{}))
}

func TestCostOf_LinearInEachCategory(t *testing.T) {
	cached := 0.3
	p := &domain.PricingEntry{Input: 3, Output: 15, Cached: &cached}

	base := CostOf(p, domain.TokenCounts{Prompt: 1_000_000})
	assert.InDelta(t, 3.0, base, 1e-9)

	doubled := CostOf(p, domain.TokenCounts{Prompt: 2_000_000})
	assert.InDelta(t, base*2, doubled, 1e-9)

	withOutput := CostOf(p, domain.TokenCounts{Prompt: 1_000_000, Completion: 1_000_000})
	assert.InDelta(t, 18.0, withOutput, 1e-9)

	withCached := CostOf(p, domain.TokenCounts{Cached: 1_000_000})
	assert.InDelta(t, 0.3, withCached, 1e-9)
}

func TestCostOf_MissingOptionalRateIsZero(t *testing.T) {
	p := &domain.PricingEntry{Input: 3, Output: 15}
	assert.Equal(t, 0.0, CostOf(p, domain.TokenCounts{Reasoning: 500_000}))
}
