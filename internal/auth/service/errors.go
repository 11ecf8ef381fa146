package service

import "enterprise-api/backend/internal/apperr"

// Sentinel errors for the auth service; the HTTP layer maps their kinds to status codes.
var (
	ErrEmailTaken               = apperr.New(apperr.KindConflict, "User with this email already exists")
	ErrUsernameTaken            = apperr.New(apperr.KindConflict, "Username already taken")
	ErrInvalidCredentials       = apperr.New(apperr.KindUnauthorized, "Invalid credentials")
	ErrAccountInactive          = apperr.New(apperr.KindUnauthorized, "Account is deactivated")
	ErrEmailNotVerified         = apperr.New(apperr.KindUnauthorized, "Email address is not verified")
	ErrInvalidRefreshToken      = apperr.New(apperr.KindUnauthorized, "Invalid refresh token")
	ErrInvalidChallenge         = apperr.New(apperr.KindUnauthorized, "Invalid or expired 2FA challenge")
	ErrInvalidLoginCode         = apperr.New(apperr.KindUnauthorized, "Invalid 2FA code")
	ErrInvalidVerificationToken = apperr.New(apperr.KindBadRequest, "Invalid or expired verification token")
	ErrEmailAlreadyVerified     = apperr.New(apperr.KindBadRequest, "Email is already verified")
	ErrInvalidResetToken        = apperr.New(apperr.KindBadRequest, "Invalid or expired reset token")
	ErrTwoFactorAlreadyEnabled  = apperr.New(apperr.KindBadRequest, "2FA is already enabled")
	ErrTwoFactorNotStarted      = apperr.New(apperr.KindBadRequest, "2FA setup has not been started")
	ErrTwoFactorNotEnabled      = apperr.New(apperr.KindBadRequest, "2FA is not enabled")
	ErrInvalidTwoFactorCode     = apperr.New(apperr.KindBadRequest, "Invalid 2FA code")
	ErrUserNotFound             = apperr.New(apperr.KindNotFound, "User not found")
	ErrSessionNotFound          = apperr.New(apperr.KindNotFound, "Session not found")
)

// ForgotPasswordMessage is returned by ForgotPassword whether or not the account exists.
const ForgotPasswordMessage = "If an account exists with this email, a password reset link has been sent"

// lockedError names the unlock time.
func lockedError(until string) error {
	return apperr.Newf(apperr.KindUnauthorized, "Account is locked until %s", until)
}
