package domain

import "time"

// Session is a tracked device/browser login. It follows the lifecycle of the refresh token whose
// hash it carries: rotation moves the session to the new token, revocation deactivates both.
type Session struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId"`
	RefreshTokenHash string    `json:"-"`
	IPAddress        string    `json:"ipAddress"`
	UserAgent        string    `json:"userAgent"`
	IsActive         bool      `json:"isActive"`
	ExpiresAt        time.Time `json:"expiresAt"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// IsLive reports whether the session is active and unexpired at now.
func (s *Session) IsLive(now time.Time) bool {
	return s.IsActive && now.Before(s.ExpiresAt)
}

// RefreshToken is a stored refresh credential. Only the SHA-256 hash of the token is persisted.
type RefreshToken struct {
	ID        string
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	IsRevoked bool
	RevokedAt *time.Time
	CreatedAt time.Time
}

// Usable reports whether the stored token may still be exchanged at now. The stored row is
// authoritative for revocation and is checked in addition to the signed expiry.
func (t *RefreshToken) Usable(now time.Time) bool {
	return !t.IsRevoked && now.Before(t.ExpiresAt)
}
