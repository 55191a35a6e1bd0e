package storage

import "errors"

var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrAliasNotFound      = errors.New("model alias not found")
	ErrComboNotFound      = errors.New("combo not found")
	ErrProviderNotFound   = errors.New("provider not found")
	ErrPricingNotFound    = errors.New("pricing entry not found")
	ErrSettingsNotFound   = errors.New("settings not found")
)

// IsNotFound reports whether err is one of the package's not-found
// sentinels, at any wrapping depth.
func IsNotFound(err error) bool {
	switch {
	case errors.Is(err, ErrConnectionNotFound),
		errors.Is(err, ErrAliasNotFound),
		errors.Is(err, ErrComboNotFound),
		errors.Is(err, ErrProviderNotFound),
		errors.Is(err, ErrPricingNotFound),
		errors.Is(err, ErrSettingsNotFound):
		return true
	default:
		return false
	}
}
