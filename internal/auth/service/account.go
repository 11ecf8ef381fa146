package service

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"enterprise-api/backend/internal/audit"
	notificationdomain "enterprise-api/backend/internal/notification/domain"
	"enterprise-api/backend/internal/platform/rbac"
	"enterprise-api/backend/internal/platform/validate"
	rbacdomain "enterprise-api/backend/internal/rbac/domain"
	"enterprise-api/backend/internal/security"
	userdomain "enterprise-api/backend/internal/user/domain"
	verificationdomain "enterprise-api/backend/internal/verification/domain"
)

// tokenBytes is the entropy of verification and reset tokens.
const tokenBytes = 32

// RegisterInput holds the fields accepted at registration.
type RegisterInput struct {
	Email     string
	Password  string
	Username  string
	FirstName string
	LastName  string
}

// Account is the authenticated user with resolved roles and permissions.
type Account struct {
	userdomain.Profile
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// Register creates a user with the default role, then queues verification and welcome emails.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*userdomain.User, error) {
	email := validate.NormalizeEmail(in.Email)
	if err := validate.Email(email); err != nil {
		return nil, err
	}
	if err := validate.Password(in.Password); err != nil {
		return nil, err
	}
	username := strings.TrimSpace(in.Username)
	if err := validate.Username(username); err != nil {
		return nil, err
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}
	if username != "" {
		taken, err := s.users.GetByUsername(ctx, username)
		if err != nil {
			return nil, err
		}
		if taken != nil {
			return nil, ErrUsernameTaken
		}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	now := s.now()
	user := &userdomain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if username != "" {
		user.Username = &username
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	if s.roles != nil {
		if err := s.roles.AssignRoleByName(ctx, user.ID, rbacdomain.RoleUser); err != nil {
			s.log.WithError(err).WithField("user_id", user.ID).Warn("auth: default role not assigned")
		}
	}

	if err := s.SendEmailVerification(ctx, user.Email, user.DisplayName()); err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Warn("auth: verification token not created")
	}
	s.notify(ctx, notificationdomain.Request{
		UserID:   user.ID,
		Type:     notificationdomain.TypeEmail,
		To:       user.Email,
		Template: notificationdomain.TemplateWelcome,
		Data:     map[string]string{"name": user.DisplayName()},
	})
	s.logEvent(ctx, user.ID, audit.ActionRegister, user.ID, map[string]any{"email": user.Email})
	return user, nil
}

// SendEmailVerification creates a verification token for email and queues the verification email.
func (s *AuthService) SendEmailVerification(ctx context.Context, email, name string) error {
	raw, err := s.newToken(ctx, verificationdomain.PurposeEmailVerification, email, s.opts.VerificationTTL)
	if err != nil {
		return err
	}
	s.notify(ctx, notificationdomain.Request{
		Type:     notificationdomain.TypeEmail,
		To:       email,
		Template: notificationdomain.TemplateEmailVerification,
		Data:     map[string]string{"name": name, "verificationUrl": s.link("/verify-email", raw)},
	})
	return nil
}

// ResendEmailVerification sends a fresh verification email to an unverified user.
func (s *AuthService) ResendEmailVerification(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.IsEmailVerified {
		return ErrEmailAlreadyVerified
	}
	return s.SendEmailVerification(ctx, user.Email, user.DisplayName())
}

// VerifyEmail redeems a verification token and marks the address verified. The token is deleted.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	t, err := s.redeem(ctx, verificationdomain.PurposeEmailVerification, token, ErrInvalidVerificationToken)
	if err != nil {
		return err
	}
	ok, err := s.users.MarkEmailVerified(ctx, t.Email, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidVerificationToken
	}
	var userID string
	if u, err := s.users.GetByEmail(ctx, t.Email); err == nil && u != nil {
		userID = u.ID
	}
	s.logEvent(ctx, userID, audit.ActionEmailVerified, userID, nil)
	return nil
}

// ForgotPassword queues a reset link when the account exists. The result is ForgotPasswordMessage in every
// case, so the response does not reveal whether the email is registered.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) string {
	email = validate.NormalizeEmail(email)
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		s.log.WithError(err).Error("auth: forgot password lookup failed")
		return ForgotPasswordMessage
	}
	if user == nil || !user.IsActive {
		return ForgotPasswordMessage
	}
	raw, err := s.newToken(ctx, verificationdomain.PurposePasswordReset, user.Email, s.opts.ResetTTL)
	if err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Error("auth: reset token not created")
		return ForgotPasswordMessage
	}
	s.notify(ctx, notificationdomain.Request{
		UserID:   user.ID,
		Type:     notificationdomain.TypeEmail,
		To:       user.Email,
		Template: notificationdomain.TemplatePasswordReset,
		Data:     map[string]string{"name": user.DisplayName(), "resetUrl": s.link("/reset-password", raw)},
	})
	s.logEvent(ctx, user.ID, audit.ActionPasswordResetRequested, user.ID, nil)
	return ForgotPasswordMessage
}

// ResetPassword redeems a reset token, replaces the password and revokes every refresh token of the user.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := validate.Password(newPassword); err != nil {
		return err
	}
	t, err := s.lookupToken(ctx, verificationdomain.PurposePasswordReset, token, ErrInvalidResetToken)
	if err != nil {
		return err
	}
	user, err := s.users.GetByEmail(ctx, t.Email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrInvalidResetToken
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	consumed, err := s.tokens.Consume(ctx, t)
	if err != nil {
		return err
	}
	if !consumed {
		return ErrInvalidResetToken
	}
	now := s.now()
	if err := s.users.UpdatePassword(ctx, user.ID, hash, now); err != nil {
		return err
	}
	if err := s.sessions.RevokeAllForUser(ctx, user.ID, now); err != nil {
		return err
	}
	s.notify(ctx, notificationdomain.Request{
		UserID:   user.ID,
		Type:     notificationdomain.TypeEmail,
		To:       user.Email,
		Template: notificationdomain.TemplatePasswordChanged,
		Data:     map[string]string{"name": user.DisplayName()},
	})
	s.logEvent(ctx, user.ID, audit.ActionPasswordReset, user.ID, nil)
	return nil
}

// Me returns the user with role names and the flattened permission set.
func (s *AuthService) Me(ctx context.Context, userID string) (*Account, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	acc := &Account{Profile: user.Profile(), Roles: []string{}, Permissions: []string{}}
	if s.roles == nil {
		return acc, nil
	}
	roles, err := s.roles.RolesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	acc.Roles = rbacdomain.RoleNames(roles)
	for p := range rbac.PermissionSet(roles) {
		acc.Permissions = append(acc.Permissions, p)
	}
	sort.Strings(acc.Permissions)
	return acc, nil
}

func (s *AuthService) newToken(ctx context.Context, purpose verificationdomain.Purpose, email string, ttl time.Duration) (string, error) {
	raw, err := security.GenerateToken(tokenBytes)
	if err != nil {
		return "", err
	}
	now := s.now()
	t := &verificationdomain.Token{
		ID:        uuid.New().String(),
		Purpose:   purpose,
		TokenHash: security.HashToken(raw),
		Email:     email,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.tokens.Create(ctx, t); err != nil {
		return "", err
	}
	return raw, nil
}

// lookupToken returns the stored token when it is still redeemable, else invalid.
func (s *AuthService) lookupToken(ctx context.Context, purpose verificationdomain.Purpose, raw string, invalid error) (*verificationdomain.Token, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, invalid
	}
	t, err := s.tokens.Get(ctx, purpose, security.HashToken(raw))
	if err != nil {
		return nil, err
	}
	if t == nil || !t.Redeemable(s.now()) {
		return nil, invalid
	}
	return t, nil
}

// redeem looks up and consumes a token in one step.
func (s *AuthService) redeem(ctx context.Context, purpose verificationdomain.Purpose, raw string, invalid error) (*verificationdomain.Token, error) {
	t, err := s.lookupToken(ctx, purpose, raw, invalid)
	if err != nil {
		return nil, err
	}
	consumed, err := s.tokens.Consume(ctx, t)
	if err != nil {
		return nil, err
	}
	if !consumed {
		return nil, invalid
	}
	return t, nil
}

func (s *AuthService) link(path, token string) string {
	return strings.TrimRight(s.opts.AppURL, "/") + path + "?token=" + url.QueryEscape(token)
}
