package service

import (
	"context"

	"enterprise-api/backend/internal/audit"
	"enterprise-api/backend/internal/mfa"
	"enterprise-api/backend/internal/platform/validate"
	userdomain "enterprise-api/backend/internal/user/domain"
)

// EnableTwoFactor starts TOTP setup: a new secret is stored as pending and returned with its QR code.
// The confirmed secret, if any, is untouched until VerifyTwoFactor succeeds.
func (s *AuthService) EnableTwoFactor(ctx context.Context, userID string) (*mfa.Enrollment, error) {
	user, err := s.mustUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}
	enrollment, err := s.totp.Generate(user.Email)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetPendingTwoFactorSecret(ctx, user.ID, enrollment.Secret, s.now()); err != nil {
		return nil, err
	}
	return enrollment, nil
}

// VerifyTwoFactor confirms setup with a code from the pending secret and turns 2FA on.
func (s *AuthService) VerifyTwoFactor(ctx context.Context, userID, code string) error {
	if err := validate.Code(code); err != nil {
		return err
	}
	user, err := s.mustUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.TwoFactorPendingSecret == "" {
		return ErrTwoFactorNotStarted
	}
	if !s.totp.Validate(user.TwoFactorPendingSecret, code) {
		return ErrInvalidTwoFactorCode
	}
	ok, err := s.users.ConfirmTwoFactor(ctx, user.ID, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrTwoFactorNotStarted
	}
	s.logEvent(ctx, user.ID, audit.ActionTwoFactorEnabled, user.ID, nil)
	return nil
}

// DisableTwoFactor turns 2FA off after checking a current code.
func (s *AuthService) DisableTwoFactor(ctx context.Context, userID, code string) error {
	if err := validate.Code(code); err != nil {
		return err
	}
	user, err := s.mustUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.TwoFactorEnabled || user.TwoFactorSecret == "" {
		return ErrTwoFactorNotEnabled
	}
	if !s.totp.Validate(user.TwoFactorSecret, code) {
		return ErrInvalidTwoFactorCode
	}
	if err := s.users.DisableTwoFactor(ctx, user.ID, s.now()); err != nil {
		return err
	}
	s.logEvent(ctx, user.ID, audit.ActionTwoFactorDisabled, user.ID, nil)
	return nil
}

// ValidateTwoFactorToken reports whether code is currently valid for the user's confirmed secret.
func (s *AuthService) ValidateTwoFactorToken(ctx context.Context, userID, code string) (bool, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if user == nil || !user.TwoFactorEnabled {
		return false, nil
	}
	return s.totp.Validate(user.TwoFactorSecret, code), nil
}

func (s *AuthService) mustUser(ctx context.Context, userID string) (*userdomain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
