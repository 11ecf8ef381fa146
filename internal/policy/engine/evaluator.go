package engine

import (
	"context"

	userdomain "enterprise-api/backend/internal/user/domain"
)

// Login denial reasons.
const (
	ReasonAccountInactive  = "account_inactive"
	ReasonEmailNotVerified = "email_not_verified"
)

// LoginDecision holds the result of login policy evaluation for a user whose password already matched.
type LoginDecision struct {
	Allow       bool
	Reason      string
	MFARequired bool
}

// Evaluator evaluates the login policy using OPA or other engines.
type Evaluator interface {
	// EvaluateLogin decides whether the user may sign in and whether a second factor is required.
	EvaluateLogin(ctx context.Context, user *userdomain.User) (LoginDecision, error)
}
