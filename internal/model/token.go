package model

import "time"

// RefreshToken is one issued refresh credential. Only the hash of the
// secret is ever stored.
type RefreshToken struct {
	ID          string
	UserID      string
	TokenHash   string
	ExpiresAt   time.Time
	IsRevoked   bool
	RevokedAt   *time.Time
	RevokedBy   string
	CreatedByIP string
	UserAgent   string
	CreatedAt   time.Time
}

// Usable is true iff the token is not revoked and expires strictly after now.
func (t RefreshToken) Usable(now time.Time) bool {
	return !t.IsRevoked && t.ExpiresAt.After(now)
}

// ClientInfo is audit metadata attached to issued refresh tokens.
type ClientInfo struct {
	IP        string
	UserAgent string
}

type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int64     `json:"expires_in"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	User             AuthUser  `json:"user"`
}
