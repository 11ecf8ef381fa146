// Package service implements the authentication and session core: registration, password login with lockout,
// token issuance and rotation, email verification, password reset, TOTP two-factor and session management.
package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"enterprise-api/backend/internal/audit"
	"enterprise-api/backend/internal/logging"
	"enterprise-api/backend/internal/metrics"
	"enterprise-api/backend/internal/mfa"
	mfadomain "enterprise-api/backend/internal/mfa/domain"
	notificationdomain "enterprise-api/backend/internal/notification/domain"
	policyengine "enterprise-api/backend/internal/policy/engine"
	rbacdomain "enterprise-api/backend/internal/rbac/domain"
	"enterprise-api/backend/internal/security"
	sessiondomain "enterprise-api/backend/internal/session/domain"
	userdomain "enterprise-api/backend/internal/user/domain"
	userrepo "enterprise-api/backend/internal/user/repository"
	verificationdomain "enterprise-api/backend/internal/verification/domain"
)

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	GetByUsername(ctx context.Context, username string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
	RecordLogin(ctx context.Context, id string, at time.Time, ip string) error
	RecordFailedLogin(ctx context.Context, id string, threshold int, lockUntil, at time.Time) (userrepo.FailedLogin, error)
	ResetFailedLogins(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error
	MarkEmailVerified(ctx context.Context, email string, at time.Time) (bool, error)
	SetPendingTwoFactorSecret(ctx context.Context, id, secret string, at time.Time) error
	ConfirmTwoFactor(ctx context.Context, id string, at time.Time) (bool, error)
	DisableTwoFactor(ctx context.Context, id string, at time.Time) error
}

// SessionRepo is the refresh token and session ledger.
type SessionRepo interface {
	Create(ctx context.Context, token *sessiondomain.RefreshToken, s *sessiondomain.Session) error
	GetRefreshToken(ctx context.Context, hash string) (*sessiondomain.RefreshToken, error)
	Rotate(ctx context.Context, oldHash string, next *sessiondomain.RefreshToken, at time.Time) (bool, error)
	RevokeByToken(ctx context.Context, hash string, at time.Time) error
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) error
	RevokeSession(ctx context.Context, userID, id string, at time.Time) (bool, error)
	ListActive(ctx context.Context, userID string, now time.Time) ([]*sessiondomain.Session, error)
}

// TokenRepo stores single-use verification and reset tokens.
type TokenRepo interface {
	Create(ctx context.Context, t *verificationdomain.Token) error
	Get(ctx context.Context, purpose verificationdomain.Purpose, hash string) (*verificationdomain.Token, error)
	Consume(ctx context.Context, t *verificationdomain.Token) (bool, error)
}

// RoleRepo resolves and assigns roles.
type RoleRepo interface {
	AssignRoleByName(ctx context.Context, userID, roleName string) error
	RolesForUser(ctx context.Context, userID string) ([]*rbacdomain.Role, error)
}

// ChallengeStore holds pending second-factor login challenges.
type ChallengeStore interface {
	Create(ctx context.Context, c *mfadomain.Challenge, ttl time.Duration) error
	Get(ctx context.Context, id string) (*mfadomain.Challenge, error)
	RecordFailure(ctx context.Context, id string, maxAttempts int) (bool, error)
	Consume(ctx context.Context, id string) (bool, error)
}

// Notifier queues outbound email and SMS.
type Notifier interface {
	Send(ctx context.Context, req notificationdomain.Request) (*notificationdomain.Notification, error)
}

// ClientFunc returns the caller's IP and user agent from the request context.
type ClientFunc func(ctx context.Context) (ip, userAgent string)

// Deps are the collaborators of AuthService. Policy, Notifier, Audit, Metrics, Client and Log may be nil.
type Deps struct {
	Users      UserRepo
	Sessions   SessionRepo
	Tokens     TokenRepo
	Roles      RoleRepo
	Challenges ChallengeStore
	Hasher     *security.Hasher
	Issuer     *security.TokenProvider
	TOTP       *mfa.TOTP
	Policy     policyengine.Evaluator
	Notifier   Notifier
	Audit      audit.AuditLogger
	Metrics    *metrics.Metrics
	Client     ClientFunc
	Log        logrus.FieldLogger
}

// Options are the security parameters. Zero values take the defaults.
type Options struct {
	LockoutThreshold     int
	LockoutDuration      time.Duration
	VerificationTTL      time.Duration
	ResetTTL             time.Duration
	ChallengeTTL         time.Duration
	ChallengeMaxAttempts int
	// AppURL prefixes the links in verification and reset emails.
	AppURL string
	// Now overrides the clock (tests).
	Now func() time.Time
}

const (
	DefaultLockoutThreshold     = 5
	DefaultLockoutDuration      = 30 * time.Minute
	DefaultVerificationTTL      = 24 * time.Hour
	DefaultResetTTL             = time.Hour
	DefaultChallengeMaxAttempts = 5
)

// AuthService orchestrates the credential store, token issuer, session ledger and notifications.
// It holds no per-request state.
type AuthService struct {
	users      UserRepo
	sessions   SessionRepo
	tokens     TokenRepo
	roles      RoleRepo
	challenges ChallengeStore
	hasher     *security.Hasher
	issuer     *security.TokenProvider
	totp       *mfa.TOTP
	policy     policyengine.Evaluator
	notifier   Notifier
	audit      audit.AuditLogger
	metrics    *metrics.Metrics
	client     ClientFunc
	log        logrus.FieldLogger
	opts       Options
	now        func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(d Deps, opts Options) *AuthService {
	if opts.LockoutThreshold <= 0 {
		opts.LockoutThreshold = DefaultLockoutThreshold
	}
	if opts.LockoutDuration <= 0 {
		opts.LockoutDuration = DefaultLockoutDuration
	}
	if opts.VerificationTTL <= 0 {
		opts.VerificationTTL = DefaultVerificationTTL
	}
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = DefaultResetTTL
	}
	if opts.ChallengeTTL <= 0 {
		opts.ChallengeTTL = 5 * time.Minute
	}
	if opts.ChallengeMaxAttempts <= 0 {
		opts.ChallengeMaxAttempts = DefaultChallengeMaxAttempts
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		users:      d.Users,
		sessions:   d.Sessions,
		tokens:     d.Tokens,
		roles:      d.Roles,
		challenges: d.Challenges,
		hasher:     d.Hasher,
		issuer:     d.Issuer,
		totp:       d.TOTP,
		policy:     d.Policy,
		notifier:   d.Notifier,
		audit:      d.Audit,
		metrics:    d.Metrics,
		client:     d.Client,
		log:        logging.OrDiscard(d.Log),
		opts:       opts,
		now:        func() time.Time { return now().UTC() },
	}
}

func (s *AuthService) clientOf(ctx context.Context) (ip, userAgent string) {
	if s.client == nil {
		return "unknown", ""
	}
	ip, userAgent = s.client(ctx)
	if ip == "" {
		ip = "unknown"
	}
	return ip, userAgent
}

func (s *AuthService) logEvent(ctx context.Context, userID, action, resourceID string, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.LogEvent(ctx, userID, action, audit.ResourceAuth, resourceID, metadata)
}

// notify queues a message. Failures are logged and never fail the calling operation.
func (s *AuthService) notify(ctx context.Context, req notificationdomain.Request) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Send(ctx, req); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"user_id":  req.UserID,
			"template": req.Template,
		}).Warn("auth: notification not queued")
	}
}

func (s *AuthService) roleNames(ctx context.Context, userID string) ([]string, error) {
	if s.roles == nil {
		return nil, nil
	}
	roles, err := s.roles.RolesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return rbacdomain.RoleNames(roles), nil
}
