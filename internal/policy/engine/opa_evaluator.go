package engine

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/sirupsen/logrus"

	"enterprise-api/backend/internal/logging"
	userdomain "enterprise-api/backend/internal/user/domain"
)

const decisionQuery = "data.enterprise.login.decision"

// DefaultLoginPolicy denies inactive accounts, optionally denies unverified emails, and requires a second
// factor for users with TOTP enabled.
const DefaultLoginPolicy = `package enterprise.login

default allow = false
default mfa_required = false
default reason = ""

email_blocked if {
	input.settings.require_verified_email
	not input.user.is_email_verified
}

allow if {
	input.user.is_active
	not email_blocked
}

reason = "account_inactive" if {
	not input.user.is_active
}

reason = "email_not_verified" if {
	input.user.is_active
	email_blocked
}

mfa_required if {
	input.user.two_factor_enabled
}

decision = {
	"allow": allow,
	"reason": reason,
	"mfa_required": mfa_required,
}
`

// Options configures the OPA evaluator.
type Options struct {
	// RequireVerifiedEmail denies login until the email is verified.
	RequireVerifiedEmail bool
	// Policy replaces DefaultLoginPolicy when non-empty. It must define data.enterprise.login.decision.
	Policy string
}

// OPAEvaluator evaluates the login policy using OPA Rego. The query is compiled once at construction.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
	opts  Options
	log   logrus.FieldLogger
}

// NewOPAEvaluator compiles the login policy and returns an evaluator. Returns an error if the policy does
// not compile.
func NewOPAEvaluator(ctx context.Context, opts Options, log logrus.FieldLogger) (*OPAEvaluator, error) {
	policy := opts.Policy
	if policy == "" {
		policy = DefaultLoginPolicy
	}
	compiler, err := ast.CompileModules(map[string]string{"login.rego": policy})
	if err != nil {
		return nil, fmt.Errorf("compile login policy: %w", err)
	}
	pq, err := rego.New(
		rego.Query(decisionQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare login policy: %w", err)
	}
	return &OPAEvaluator{query: pq, opts: opts, log: logging.OrDiscard(log)}, nil
}

// HealthCheck verifies that the prepared Rego query evaluates against a minimal input. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.eval(ctx, buildInput(&userdomain.User{IsActive: true}, e.opts))
	return err
}

// EvaluateLogin evaluates the login policy. When evaluation fails, it logs and falls back to the built-in
// rules (active account required, MFA when enabled) so a broken policy never locks everyone out.
func (e *OPAEvaluator) EvaluateLogin(ctx context.Context, user *userdomain.User) (LoginDecision, error) {
	if user == nil {
		return LoginDecision{Reason: ReasonAccountInactive}, nil
	}
	d, err := e.eval(ctx, buildInput(user, e.opts))
	if err != nil {
		e.log.WithError(err).WithField("user_id", user.ID).Warn("policy: evaluation failed, using defaults")
		return defaultDecision(user, e.opts), nil
	}
	return d, nil
}

func (e *OPAEvaluator) eval(ctx context.Context, input map[string]any) (LoginDecision, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return LoginDecision{}, fmt.Errorf("eval login policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return LoginDecision{}, fmt.Errorf("login policy query returned no result")
	}
	obj, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return LoginDecision{}, fmt.Errorf("login policy decision has type %T", rs[0].Expressions[0].Value)
	}
	var d LoginDecision
	d.Allow, _ = obj["allow"].(bool)
	d.MFARequired, _ = obj["mfa_required"].(bool)
	d.Reason, _ = obj["reason"].(string)
	return d, nil
}

func buildInput(user *userdomain.User, opts Options) map[string]any {
	return map[string]any{
		"user": map[string]any{
			"id":                 user.ID,
			"is_active":          user.IsActive,
			"is_email_verified":  user.IsEmailVerified,
			"two_factor_enabled": user.TwoFactorEnabled,
			"has_phone":          user.Phone != "",
		},
		"settings": map[string]any{
			"require_verified_email": opts.RequireVerifiedEmail,
		},
	}
}

func defaultDecision(user *userdomain.User, opts Options) LoginDecision {
	switch {
	case !user.IsActive:
		return LoginDecision{Reason: ReasonAccountInactive}
	case opts.RequireVerifiedEmail && !user.IsEmailVerified:
		return LoginDecision{Reason: ReasonEmailNotVerified}
	}
	return LoginDecision{Allow: true, MFARequired: user.TwoFactorEnabled}
}
