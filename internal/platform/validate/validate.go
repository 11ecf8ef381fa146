// Package validate checks request input shape. Every failure is a BadRequest carrying a client-safe message.
package validate

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"enterprise-api/backend/internal/apperr"
)

// MinPasswordLength is the minimum password length.
const MinPasswordLength = 8

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,50}$`)
	codePattern     = regexp.MustCompile(`^[0-9]{6}$`)
	phonePattern    = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	hasUpper        = regexp.MustCompile(`[A-Z]`)
	hasLower        = regexp.MustCompile(`[a-z]`)
	hasDigit        = regexp.MustCompile(`[0-9]`)
)

var (
	ErrInvalidEmail     = apperr.New(apperr.KindBadRequest, "Invalid email address")
	ErrPasswordTooShort = apperr.New(apperr.KindBadRequest, "Password must be at least 8 characters long")
	ErrWeakPassword     = apperr.New(apperr.KindBadRequest,
		"Password must contain at least one uppercase letter, one lowercase letter and one number")
	ErrInvalidUsername = apperr.New(apperr.KindBadRequest,
		"Username must be 3-50 characters of letters, numbers, underscores or hyphens")
	ErrInvalidCode  = apperr.New(apperr.KindBadRequest, "Code must be 6 digits")
	ErrInvalidPhone = apperr.New(apperr.KindBadRequest, "Invalid phone number")
)

// Email checks address format.
func Email(email string) error {
	if !emailPattern.MatchString(strings.TrimSpace(email)) {
		return ErrInvalidEmail
	}
	return nil
}

// NormalizeEmail trims surrounding whitespace. Case is kept: addresses are stored and matched exactly as
// entered.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

// Password checks length and character classes.
func Password(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if !hasUpper.MatchString(password) || !hasLower.MatchString(password) || !hasDigit.MatchString(password) {
		return ErrWeakPassword
	}
	return nil
}

// Username checks an optional username. Empty is valid.
func Username(username string) error {
	if username == "" {
		return nil
	}
	if !usernamePattern.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

// Code checks a 6-digit one-time code.
func Code(code string) error {
	if !codePattern.MatchString(strings.TrimSpace(code)) {
		return ErrInvalidCode
	}
	return nil
}

// Phone checks an E.164-like phone number.
func Phone(phone string) error {
	if !phonePattern.MatchString(strings.TrimSpace(phone)) {
		return ErrInvalidPhone
	}
	return nil
}

// UUID checks that s is a UUID. field names the offending input in the message.
func UUID(field, s string) error {
	if _, err := uuid.Parse(s); err != nil {
		return apperr.Newf(apperr.KindBadRequest, "%s must be a valid UUID", field)
	}
	return nil
}
