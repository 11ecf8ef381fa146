package domain

import "time"

// Challenge is a pending second login step for a user with TOTP enabled. It is created after the
// password check succeeds and consumed when a valid code is submitted.
type Challenge struct {
	ID        string
	UserID    string
	IPAddress string
	UserAgent string
	Attempts  int
	ExpiresAt time.Time
}
