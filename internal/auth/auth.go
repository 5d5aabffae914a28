// Package auth verifies the admin console password against an externally supplied secret.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/m3rciful/memearena/core/config"
)

// Verifier checks admin passwords. Without a configured secret every attempt is denied.
type Verifier struct {
	hash  []byte
	plain []byte
}

// New builds a Verifier from the admin config. A bcrypt hash wins over a plain secret.
func New(cfg config.AdminConfig) (*Verifier, error) {
	v := &Verifier{}
	if h := strings.TrimSpace(cfg.PasswordHash); h != "" {
		if _, err := bcrypt.Cost([]byte(h)); err != nil {
			return nil, errors.New("admin.password_hash is not a bcrypt hash")
		}
		v.hash = []byte(h)
		return v, nil
	}
	if cfg.Password != "" {
		v.plain = []byte(cfg.Password)
	}
	return v, nil
}

// Configured reports whether any secret is set.
func (v *Verifier) Configured() bool {
	return len(v.hash) > 0 || len(v.plain) > 0
}

// Verify reports whether password matches the configured secret.
func (v *Verifier) Verify(_ context.Context, password string) bool {
	switch {
	case password == "":
		return false
	case len(v.hash) > 0:
		return bcrypt.CompareHashAndPassword(v.hash, []byte(password)) == nil
	case len(v.plain) > 0:
		return subtle.ConstantTimeCompare(v.plain, []byte(password)) == 1
	default:
		return false
	}
}

// Hash produces a bcrypt hash suitable for ADMIN_PASSWORD_HASH.
func Hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
