// Package domain holds the single-use email verification and password reset tokens.
package domain

import "time"

// Purpose distinguishes the two single-use token kinds.
type Purpose string

const (
	PurposeEmailVerification Purpose = "email_verification"
	PurposePasswordReset     Purpose = "password_reset"
)

// Token is a single-use token bound to an email address. Only the hash is stored.
// Used is meaningful for password reset tokens; verification tokens are deleted on use.
type Token struct {
	ID        string
	Purpose   Purpose
	TokenHash string
	Email     string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// Expired reports whether the token is past its expiry at now.
func (t *Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Redeemable reports whether the token can still be consumed at now.
func (t *Token) Redeemable(now time.Time) bool {
	return !t.Used && !t.Expired(now)
}
