// Package auth implements the operator's single-password admin login:
// bcrypt password hashing plus a short-lived session JWT. relaygate has no
// per-requester API keys (see DESIGN.md's Open Question decision) — this
// package exists only to gate the config/admin surface.
package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword bcrypt-hashes password for storage in domain.Settings.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
