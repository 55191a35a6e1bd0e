package domain

import "time"

// PricingEntry holds USD-per-million-token rates for one (provider, model)
// pair. Optional rates are nil when the provider does not bill that token
// category.
type PricingEntry struct {
	ProviderID     string    `json:"providerId" db:"provider_id"`
	Model          string    `json:"model" db:"model"`
	Input          float64   `json:"input" db:"input"`
	Output         float64   `json:"output" db:"output"`
	Cached         *float64  `json:"cached,omitempty" db:"cached"`
	Reasoning      *float64  `json:"reasoning,omitempty" db:"reasoning"`
	CacheCreation  *float64  `json:"cacheCreation,omitempty" db:"cache_creation"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

// Key returns the lookup key used by the pricing table: "provider/model".
func (p PricingEntry) Key() string { return p.ProviderID + "/" + p.Model }
