package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"enterprise-api/backend/internal/audit"
	mfadomain "enterprise-api/backend/internal/mfa/domain"
	mfarepo "enterprise-api/backend/internal/mfa/repository"
	"enterprise-api/backend/internal/platform/validate"
	policyengine "enterprise-api/backend/internal/policy/engine"
	"enterprise-api/backend/internal/security"
	sessiondomain "enterprise-api/backend/internal/session/domain"
	userdomain "enterprise-api/backend/internal/user/domain"
)

// Auth methods, used as metric labels.
const (
	methodPassword  = "password"
	methodTwoFactor = "2fa"
	methodRefresh   = "refresh"
)

// TokenPair is an issued access and refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64 `json:"expiresIn"`
}

// LoginResult is either a token pair with the user, or a pending second-factor challenge.
type LoginResult struct {
	*TokenPair
	User        *userdomain.PublicUser `json:"user,omitempty"`
	MFARequired bool                   `json:"mfaRequired,omitempty"`
	ChallengeID string                 `json:"challengeId,omitempty"`
}

// ValidateUser checks email and password and applies the lockout policy. Unknown emails and wrong passwords
// both yield ErrInvalidCredentials; a locked account names its unlock time even when the password is right.
func (s *AuthService) ValidateUser(ctx context.Context, email, password string) (*userdomain.User, error) {
	s.metrics.AuthAttempt(methodPassword)
	email = validate.NormalizeEmail(email)
	if email == "" || password == "" {
		s.loginFailed(ctx, "", email, "invalid_credentials")
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.loginFailed(ctx, "", email, "invalid_credentials")
		return nil, ErrInvalidCredentials
	}
	now := s.now()
	if user.IsLocked(now) {
		s.loginFailed(ctx, user.ID, email, "locked")
		return nil, lockedError(user.LockedUntil.UTC().Format(time.RFC3339))
	}
	if !s.hasher.Compare(user.PasswordHash, password) {
		state, err := s.users.RecordFailedLogin(ctx, user.ID, s.opts.LockoutThreshold, now.Add(s.opts.LockoutDuration), now)
		if err != nil {
			return nil, err
		}
		s.loginFailed(ctx, user.ID, email, "invalid_credentials")
		if state.Attempts >= s.opts.LockoutThreshold && state.LockedUntil != nil && state.LockedUntil.After(now) {
			s.logEvent(ctx, user.ID, audit.ActionAccountLocked, user.ID, map[string]any{
				"attempts":    state.Attempts,
				"lockedUntil": state.LockedUntil,
			})
			s.log.WithField("user_id", user.ID).Warn("auth: account locked after repeated failures")
		}
		return nil, ErrInvalidCredentials
	}
	if user.FailedLoginAttempts > 0 || user.LockedUntil != nil {
		if err := s.users.ResetFailedLogins(ctx, user.ID, now); err != nil {
			return nil, err
		}
		user.FailedLoginAttempts = 0
		user.LockedUntil = nil
	}
	return user, nil
}

func (s *AuthService) loginFailed(ctx context.Context, userID, email, reason string) {
	s.metrics.AuthFailed(methodPassword, reason)
	s.logEvent(ctx, userID, audit.ActionLoginFailure, userID, map[string]any{"email": email, "reason": reason})
}

// Authenticate runs ValidateUser and the login policy. Users with 2FA enabled get a challenge instead of
// tokens; CompleteTwoFactorLogin finishes the login.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.ValidateUser(ctx, email, password)
	if err != nil {
		return nil, err
	}
	decision := s.evaluate(ctx, user)
	if !decision.Allow {
		s.metrics.AuthFailed(methodPassword, decision.Reason)
		s.logEvent(ctx, user.ID, audit.ActionLoginFailure, user.ID, map[string]any{"reason": decision.Reason})
		if decision.Reason == policyengine.ReasonEmailNotVerified {
			return nil, ErrEmailNotVerified
		}
		return nil, ErrAccountInactive
	}
	if decision.MFARequired {
		return s.startChallenge(ctx, user)
	}
	return s.Login(ctx, user)
}

func (s *AuthService) evaluate(ctx context.Context, user *userdomain.User) policyengine.LoginDecision {
	if s.policy != nil {
		d, err := s.policy.EvaluateLogin(ctx, user)
		if err == nil {
			return d
		}
		s.log.WithError(err).Warn("auth: login policy evaluation failed, using built-in rules")
	}
	if !user.IsActive {
		return policyengine.LoginDecision{Reason: policyengine.ReasonAccountInactive}
	}
	return policyengine.LoginDecision{Allow: true, MFARequired: user.TwoFactorEnabled}
}

func (s *AuthService) startChallenge(ctx context.Context, user *userdomain.User) (*LoginResult, error) {
	if s.challenges == nil {
		return nil, errors.New("auth: two-factor login is not configured")
	}
	ip, ua := s.clientOf(ctx)
	c := &mfadomain.Challenge{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		IPAddress: ip,
		UserAgent: ua,
		ExpiresAt: s.now().Add(s.opts.ChallengeTTL),
	}
	if err := s.challenges.Create(ctx, c, s.opts.ChallengeTTL); err != nil {
		return nil, err
	}
	return &LoginResult{MFARequired: true, ChallengeID: c.ID}, nil
}

// CompleteTwoFactorLogin redeems a login challenge with a TOTP code. Wrong codes count against the challenge;
// it is discarded after too many.
func (s *AuthService) CompleteTwoFactorLogin(ctx context.Context, challengeID, code string) (*LoginResult, error) {
	s.metrics.AuthAttempt(methodTwoFactor)
	if err := validate.Code(code); err != nil {
		return nil, err
	}
	if s.challenges == nil {
		return nil, ErrInvalidChallenge
	}
	c, err := s.challenges.Get(ctx, challengeID)
	if errors.Is(err, mfarepo.ErrChallengeNotFound) || (err == nil && c == nil) {
		s.metrics.AuthFailed(methodTwoFactor, "invalid_challenge")
		return nil, ErrInvalidChallenge
	}
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, c.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive || !user.TwoFactorEnabled {
		return nil, ErrInvalidChallenge
	}
	if !s.totp.Validate(user.TwoFactorSecret, code) {
		exhausted, err := s.challenges.RecordFailure(ctx, challengeID, s.opts.ChallengeMaxAttempts)
		if err != nil && !errors.Is(err, mfarepo.ErrChallengeNotFound) {
			return nil, err
		}
		s.metrics.AuthFailed(methodTwoFactor, "invalid_code")
		s.logEvent(ctx, user.ID, audit.ActionLoginFailure, user.ID, map[string]any{
			"reason":    "invalid_2fa_code",
			"exhausted": exhausted,
		})
		return nil, ErrInvalidLoginCode
	}
	consumed, err := s.challenges.Consume(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if !consumed {
		return nil, ErrInvalidChallenge
	}
	return s.login(ctx, user, methodTwoFactor)
}

// Login stamps the last login, issues an access and refresh token and records the session.
func (s *AuthService) Login(ctx context.Context, user *userdomain.User) (*LoginResult, error) {
	return s.login(ctx, user, methodPassword)
}

func (s *AuthService) login(ctx context.Context, user *userdomain.User, method string) (*LoginResult, error) {
	ip, ua := s.clientOf(ctx)
	pair, session, err := s.issue(ctx, user, ip, ua)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.users.RecordLogin(ctx, user.ID, now, ip); err != nil {
		return nil, err
	}
	user.LastLoginAt = &now
	user.LastLoginIP = ip
	s.metrics.AuthSucceeded(method)
	s.logEvent(ctx, user.ID, audit.ActionLoginSuccess, session.ID, map[string]any{"method": method})
	public := user.Public()
	return &LoginResult{TokenPair: pair, User: &public}, nil
}

func (s *AuthService) issue(ctx context.Context, user *userdomain.User, ip, ua string) (*TokenPair, *sessiondomain.Session, error) {
	roles, err := s.roleNames(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	access, _, err := s.issuer.IssueAccess(user.ID, user.Email, roles)
	if err != nil {
		return nil, nil, err
	}
	refresh, refreshExp, err := s.issuer.IssueRefresh(user.ID)
	if err != nil {
		return nil, nil, err
	}
	now := s.now()
	hash := security.HashToken(refresh)
	token := &sessiondomain.RefreshToken{
		ID:        uuid.New().String(),
		TokenHash: hash,
		UserID:    user.ID,
		ExpiresAt: refreshExp,
		CreatedAt: now,
	}
	session := &sessiondomain.Session{
		ID:               uuid.New().String(),
		UserID:           user.ID,
		RefreshTokenHash: hash,
		IPAddress:        ip,
		UserAgent:        ua,
		IsActive:         true,
		ExpiresAt:        refreshExp,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.sessions.Create(ctx, token, session); err != nil {
		return nil, nil, err
	}
	return s.pair(access, refresh), session, nil
}

func (s *AuthService) pair(access, refresh string) *TokenPair {
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.issuer.AccessTTL() / time.Second),
	}
}

// Refresh exchanges a refresh token for a new pair. The presented token is revoked; presenting it again
// fails with ErrInvalidRefreshToken.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	s.metrics.AuthAttempt(methodRefresh)
	claims, err := s.issuer.ValidateRefresh(refreshToken)
	if err != nil {
		s.metrics.AuthFailed(methodRefresh, "invalid_token")
		return nil, ErrInvalidRefreshToken
	}
	now := s.now()
	oldHash := security.HashToken(refreshToken)
	stored, err := s.sessions.GetRefreshToken(ctx, oldHash)
	if err != nil {
		return nil, err
	}
	if stored == nil || !stored.Usable(now) || stored.UserID != claims.Subject {
		s.metrics.AuthFailed(methodRefresh, "revoked")
		return nil, ErrInvalidRefreshToken
	}
	user, err := s.users.GetByID(ctx, stored.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, ErrInvalidRefreshToken
	}
	roles, err := s.roleNames(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	access, _, err := s.issuer.IssueAccess(user.ID, user.Email, roles)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.issuer.IssueRefresh(user.ID)
	if err != nil {
		return nil, err
	}
	next := &sessiondomain.RefreshToken{
		ID:        uuid.New().String(),
		TokenHash: security.HashToken(refresh),
		UserID:    user.ID,
		ExpiresAt: refreshExp,
		CreatedAt: now,
	}
	rotated, err := s.sessions.Rotate(ctx, oldHash, next, now)
	if err != nil {
		return nil, err
	}
	if !rotated {
		s.metrics.AuthFailed(methodRefresh, "revoked")
		return nil, ErrInvalidRefreshToken
	}
	s.metrics.AuthSucceeded(methodRefresh)
	s.logEvent(ctx, user.ID, audit.ActionTokenRefreshed, "", nil)
	return s.pair(access, refresh), nil
}

// Logout revokes the refresh token and deactivates its session. Unknown or already revoked tokens succeed.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.sessions.RevokeByToken(ctx, security.HashToken(refreshToken), s.now()); err != nil {
		return err
	}
	if claims, err := s.issuer.ValidateRefresh(refreshToken); err == nil {
		s.logEvent(ctx, claims.Subject, audit.ActionLogout, "", nil)
	}
	return nil
}
