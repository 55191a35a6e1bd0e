package domain

// Provider is the static, user-facing description of an upstream AI
// provider: its base URL(s), default headers, OAuth endpoints, and
// preferred wire format. Providers are read-mostly config, not secrets.
type Provider struct {
	ID              string   `json:"id" db:"id"`
	Name            string   `json:"name" db:"name"`
	BaseURL         string   `json:"baseUrl" db:"base_url"`
	AlternateURLs   []string `json:"alternateUrls,omitempty" db:"-"`
	DefaultHeaders  JSONB    `json:"defaultHeaders,omitempty" db:"default_headers"`
	OAuthTokenURL   string   `json:"oauthTokenUrl,omitempty" db:"oauth_token_url"`
	OAuthClientID   string   `json:"oauthClientId,omitempty" db:"oauth_client_id"`
	PreferredFormat string   `json:"preferredFormat" db:"preferred_format"`
}

// AuthType is the credential shape a connection carries.
type AuthType string

const (
	AuthAPIKey AuthType = "apikey"
	AuthOAuth  AuthType = "oauth"
)

// TestStatus is the last-observed health of a connection.
type TestStatus string

const (
	StatusActive  TestStatus = "active"
	StatusError   TestStatus = "error"
	StatusUnknown TestStatus = "unknown"
)
