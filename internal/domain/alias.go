package domain

import "time"

// ModelAlias maps a flat, case-sensitive name to a provider/model pair.
type ModelAlias struct {
	ID         string    `json:"id" db:"id"`
	Alias      string    `json:"alias" db:"alias"`
	ProviderID string    `json:"providerId" db:"provider_id"`
	Model      string    `json:"model" db:"model"`
	Enabled    bool      `json:"enabled" db:"enabled"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
}

// Target returns the "provider/model" string this alias resolves to.
func (a ModelAlias) Target() string {
	return a.ProviderID + "/" + a.Model
}

// Combo is an ordered, user-defined fallback chain of model strings (each
// either an alias or an explicit "provider/model"). Order is significant.
type Combo struct {
	ID        string     `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	Models    StringList `json:"models" db:"models"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time  `json:"updatedAt" db:"updated_at"`
}
