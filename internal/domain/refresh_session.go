package domain

import (
	"time"

	"github.com/google/uuid"
)

// RefreshSession holds the single live refresh token of an account.
// Only the token fingerprint is stored.
type RefreshSession struct {
	AccountID uuid.UUID `json:"account_id"`
	TokenHash string    `json:"-"`
	IssuedAt  time.Time `json:"issued_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Expired reports whether the session outlived ttl. A zero ttl never expires.
func (s RefreshSession) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.After(s.UpdatedAt.Add(ttl))
}
