package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ErrInvalidSession is returned for any malformed, unsigned, or expired
// session token.
var ErrInvalidSession = errors.New("auth: invalid or expired session")

// GenerateSession issues a short-lived HS256 session token for the
// operator, signed with secret.
func GenerateSession(secret []byte, ttl time.Duration) (token string, expiresAt int64, err error) {
	exp := time.Now().Add(ttl).Unix()
	claims := jwt.MapClaims{"sub": "operator", "exp": exp}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", 0, err
	}
	return signed, exp, nil
}

// ValidateSession reports whether tokenString is a session token signed
// with secret and not yet expired.
func ValidateSession(tokenString string, secret []byte) error {
	token, err := jwt.Parse(tokenString, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil || !token.Valid {
		return ErrInvalidSession
	}
	if _, ok := token.Claims.(jwt.MapClaims); !ok {
		return ErrInvalidSession
	}
	return nil
}
