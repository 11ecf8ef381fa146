package domain

import (
	"errors"
	"strings"
	"time"
)

// Type is the delivery channel of a notification.
type Type string

const (
	TypeEmail Type = "email"
	TypeSMS   Type = "sms"
)

// Status is the delivery state of a notification.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Email templates.
const (
	TemplateWelcome           = "welcome"
	TemplateEmailVerification = "email-verification"
	TemplatePasswordReset     = "password-reset"
	TemplatePasswordChanged   = "password-changed"
	TemplateTwoFactorCode     = "2fa-code"
)

// SMS templates.
const (
	SMSTemplateTwoFactorCode     = "2fa-code"
	SMSTemplatePasswordResetCode = "password-reset-code"
	SMSTemplateLoginAlert        = "login-alert"
)

// Notification is a persisted delivery record. Channel is the destination: an email address or a phone number.
type Notification struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId,omitempty"`
	Type      Type       `json:"type"`
	Channel   string     `json:"channel"`
	Subject   string     `json:"subject,omitempty"`
	Message   string     `json:"message"`
	Status    Status     `json:"status"`
	Attempts  int        `json:"attempts"`
	LastError string     `json:"lastError,omitempty"`
	SentAt    *time.Time `json:"sentAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Request asks for one notification. Either Template (rendered with Data) or Message must be set.
// For email, To defaults to the user's email when UserID is set.
type Request struct {
	UserID   string
	Type     Type
	To       string
	Subject  string
	Template string
	Data     map[string]string
	Message  string
}

// Validate checks the request shape before rendering.
func (r *Request) Validate() error {
	switch r.Type {
	case TypeEmail, TypeSMS:
	default:
		return errors.New("notification type must be email or sms")
	}
	if r.Template == "" && strings.TrimSpace(r.Message) == "" {
		return errors.New("message or template is required")
	}
	if r.Type == TypeSMS && strings.TrimSpace(r.To) == "" {
		return errors.New("phone number is required")
	}
	if r.Type == TypeEmail && strings.TrimSpace(r.To) == "" && r.UserID == "" {
		return errors.New("recipient is required")
	}
	return nil
}

// StatusUpdate is the outcome of one delivery attempt.
type StatusUpdate struct {
	Status    Status
	Attempts  int
	LastError string
	SentAt    *time.Time
	At        time.Time
}
