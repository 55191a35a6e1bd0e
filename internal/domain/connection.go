package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Secrets carries the credential material for a connection. It is never
// serialized into an API response; config-surface handlers must strip it
// before marshaling a Connection for a client.
type Secrets struct {
	APIKey       string `json:"apiKey,omitempty"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	IDToken      string `json:"idToken,omitempty"`

	// ProfileARN, BaseURL, and APIType hold provider-specific extras (Kiro's
	// CodeWhisperer profile ARN, a generic OpenAI-compatible node's base URL
	// override, and the dialect hint for user-added nodes).
	ProfileARN string `json:"profileArn,omitempty"`
	BaseURL    string `json:"baseUrl,omitempty"`
	APIType    string `json:"apiType,omitempty"`

	// SSOClientID and SSOClientSecret are set on Kiro connections
	// authorized through AWS IAM Identity Center rather than the social
	// login endpoint. Their presence is what selects the AWS SSO-OIDC
	// refresh path over the plain HTTP one.
	SSOClientID     string `json:"ssoClientId,omitempty"`
	SSOClientSecret string `json:"ssoClientSecret,omitempty"`

	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Connection is a single stored credential ("account") for one provider.
// Connections are ordered per-provider by Priority (lower wins), with
// GlobalPriority taking precedence when set.
type Connection struct {
	ID                uuid.UUID  `json:"id" db:"id"`
	ProviderID        string     `json:"providerId" db:"provider_id"`
	AuthType          AuthType   `json:"authType" db:"auth_type"`
	DisplayName       string     `json:"displayName" db:"display_name"`
	Priority          int        `json:"priority" db:"priority"`
	GlobalPriority    *int       `json:"globalPriority,omitempty" db:"global_priority"`
	DefaultModel      string     `json:"defaultModel,omitempty" db:"default_model"`
	Secrets           Secrets    `json:"secrets,omitempty" db:"-"`
	EncodedSecrets    JSONB      `json:"-" db:"secrets"`
	TestStatus        TestStatus `json:"testStatus" db:"test_status"`
	LastError         string     `json:"lastError,omitempty" db:"last_error"`
	LastErrorAt       *time.Time `json:"lastErrorAt,omitempty" db:"last_error_at"`
	CooldownUntil     time.Time  `json:"cooldownUntil,omitempty" db:"cooldown_until"`
	IsActive          bool       `json:"isActive" db:"is_active"`
	ConsecutiveFailed int        `json:"-" db:"consecutive_failed"`
	CreatedAt         time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time  `json:"updatedAt" db:"updated_at"`
}

// Eligible reports whether c may currently be selected: active, not the
// excluded connection, and outside its cooldown window.
func (c *Connection) Eligible(now time.Time, excludeID uuid.UUID) bool {
	if !c.IsActive {
		return false
	}
	if excludeID != uuid.Nil && c.ID == excludeID {
		return false
	}
	return !c.CooldownUntil.After(now)
}

// NeedsRefresh reports whether c's access token is within buffer of expiry
// and so should be proactively refreshed before use.
func (c *Connection) NeedsRefresh(now time.Time, buffer time.Duration) bool {
	if c.Secrets.AccessToken == "" || c.Secrets.ExpiresAt == nil {
		return false
	}
	return c.Secrets.ExpiresAt.Sub(now) < buffer
}

// Redacted returns a copy of c with all secret material stripped, suitable
// for an API response.
func (c Connection) Redacted() Connection {
	c.Secrets = Secrets{}
	c.EncodedSecrets = nil
	return c
}

// StringList is a Postgres text[]-backed slice used for combos and model
// alias lists of strings.
type StringList = pq.StringArray
