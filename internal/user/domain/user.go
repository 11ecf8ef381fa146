package domain

import (
	"errors"
	"strings"
	"time"
)

// User is the core user entity. PasswordHash and the two-factor secrets never leave the service layer;
// transports render Public or Profile instead.
type User struct {
	ID                     string
	Email                  string
	Username               *string
	PasswordHash           string
	FirstName              string
	LastName               string
	Avatar                 string
	Phone                  string
	IsActive               bool
	IsEmailVerified        bool
	EmailVerifiedAt        *time.Time
	FailedLoginAttempts    int
	LockedUntil            *time.Time
	TwoFactorEnabled       bool
	TwoFactorSecret        string
	TwoFactorPendingSecret string
	LastLoginAt            *time.Time
	LastLoginIP            string
	PasswordChangedAt      *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
	DeletedAt              *time.Time
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Email) == "" {
		return errors.New("email is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if u.Username != nil && strings.TrimSpace(*u.Username) == "" {
		u.Username = nil
	}
	return nil
}

// IsLocked reports whether the account is locked at now. A past LockedUntil means unlocked.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// DisplayName returns the first name, or "User" when it is empty. Used in notification templates.
func (u *User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return "User"
}

// PublicUser is the client-safe projection returned by login.
type PublicUser struct {
	ID               string  `json:"id"`
	Email            string  `json:"email"`
	Username         *string `json:"username"`
	FirstName        string  `json:"firstName,omitempty"`
	LastName         string  `json:"lastName,omitempty"`
	Avatar           string  `json:"avatar,omitempty"`
	IsEmailVerified  bool    `json:"isEmailVerified"`
	TwoFactorEnabled bool    `json:"twoFactorEnabled"`
}

// Public returns the login projection of u.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:               u.ID,
		Email:            u.Email,
		Username:         u.Username,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Avatar:           u.Avatar,
		IsEmailVerified:  u.IsEmailVerified,
		TwoFactorEnabled: u.TwoFactorEnabled,
	}
}

// Profile is the user projection returned by registration and the users API.
type Profile struct {
	PublicUser
	Phone       string     `json:"phone,omitempty"`
	IsActive    bool       `json:"isActive"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Profile returns the full client-safe projection of u.
func (u *User) Profile() Profile {
	return Profile{
		PublicUser:  u.Public(),
		Phone:       u.Phone,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}
