package domain

import "time"

// Settings is the single-operator config row: the bcrypt-hashed admin
// password and optional cloud config sync endpoint. relaygate has no
// multi-tenant concept (see DESIGN.md Open Question #4), so admin
// credentials and tokens collapse to one row instead of separate tables.
type Settings struct {
	ID                 int       `json:"-" db:"id"`
	PasswordHash       string    `json:"-" db:"password_hash"`
	CloudURL           string    `json:"cloudUrl,omitempty" db:"cloud_url"`
	EnableRequestLogs  bool      `json:"enableRequestLogs" db:"enable_request_logs"`
	UpdatedAt          time.Time `json:"updatedAt" db:"updated_at"`
}
