// Package handler exposes the auth orchestrator over REST.
package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"enterprise-api/backend/internal/auth/service"
	"enterprise-api/backend/internal/mfa"
	"enterprise-api/backend/internal/platform/httpx"
	"enterprise-api/backend/internal/platform/rbac"
	sessiondomain "enterprise-api/backend/internal/session/domain"
	userdomain "enterprise-api/backend/internal/user/domain"
)

// AuthService is the subset of *service.AuthService the handler calls.
type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput) (*userdomain.User, error)
	Authenticate(ctx context.Context, email, password string) (*service.LoginResult, error)
	CompleteTwoFactorLogin(ctx context.Context, challengeID, code string) (*service.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*service.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	VerifyEmail(ctx context.Context, token string) error
	ResendEmailVerification(ctx context.Context, userID string) error
	ForgotPassword(ctx context.Context, email string) string
	ResetPassword(ctx context.Context, token, newPassword string) error
	Me(ctx context.Context, userID string) (*service.Account, error)
	EnableTwoFactor(ctx context.Context, userID string) (*mfa.Enrollment, error)
	VerifyTwoFactor(ctx context.Context, userID, code string) error
	DisableTwoFactor(ctx context.Context, userID, code string) error
	GetUserSessions(ctx context.Context, userID string) ([]*sessiondomain.Session, error)
	RevokeSession(ctx context.Context, userID, sessionID string) error
	RevokeAllSessions(ctx context.Context, userID string) error
}

// Handler serves /auth.
type Handler struct {
	auth AuthService
}

// NewHandler returns an auth handler backed by auth.
func NewHandler(auth AuthService) *Handler {
	return &Handler{auth: auth}
}

// Routes mounts the public endpoints on public and the Bearer-protected ones on protected.
// Both groups are expected to already carry the /auth prefix.
func (h *Handler) Routes(public, protected *echo.Group) {
	public.POST("/register", h.Register)
	public.POST("/login", h.Login)
	public.POST("/login/2fa", h.LoginTwoFactor)
	public.POST("/refresh", h.Refresh)
	public.POST("/logout", h.Logout)
	public.POST("/verify-email", h.VerifyEmail)
	public.POST("/forgot-password", h.ForgotPassword)
	public.POST("/reset-password", h.ResetPassword)

	protected.GET("/me", h.Me)
	protected.POST("/verify-email/resend", h.ResendVerification)
	protected.POST("/2fa/enable", h.EnableTwoFactor)
	protected.POST("/2fa/verify", h.VerifyTwoFactor)
	protected.POST("/2fa/disable", h.DisableTwoFactor)
	protected.GET("/sessions", h.ListSessions)
	protected.DELETE("/sessions/:id", h.RevokeSession)
	protected.DELETE("/sessions", h.RevokeAllSessions)
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type twoFactorLoginRequest struct {
	ChallengeID string `json:"challengeId"`
	Code        string `json:"code"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type codeRequest struct {
	Code string `json:"code"`
}

// Register creates an account. Responds 201 with the profile.
func (h *Handler) Register(c echo.Context) error {
	var req registerRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	u, err := h.auth.Register(c.Request().Context(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, u.Profile())
}

// Login checks credentials. The body carries tokens, or a challenge id when a second factor is required.
func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	res, err := h.auth.Authenticate(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// LoginTwoFactor completes a challenged login with a TOTP code.
func (h *Handler) LoginTwoFactor(c echo.Context) error {
	var req twoFactorLoginRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	res, err := h.auth.CompleteTwoFactorLogin(c.Request().Context(), req.ChallengeID, req.Code)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	pair, err := h.auth.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pair)
}

func (h *Handler) Logout(c echo.Context) error {
	var req refreshRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.Logout(c.Request().Context(), req.RefreshToken); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, httpx.Message{Message: "Logged out successfully"})
}

func (h *Handler) VerifyEmail(c echo.Context) error {
	var req tokenRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.VerifyEmail(c.Request().Context(), req.Token); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, httpx.Message{Message: "Email verified successfully"})
}

// ForgotPassword always answers with the same message.
func (h *Handler) ForgotPassword(c echo.Context) error {
	var req emailRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	msg := h.auth.ForgotPassword(c.Request().Context(), req.Email)
	return c.JSON(http.StatusOK, httpx.Message{Message: msg})
}

func (h *Handler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.ResetPassword(c.Request().Context(), req.Token, req.Password); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, httpx.Message{Message: "Password reset successfully"})
}

// Me returns the caller with roles and permissions.
func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := rbac.RequireAuthenticated(ctx)
	if err != nil {
		return err
	}
	acc, err := h.auth.Me(ctx, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, acc)
}

func (h *Handler) ResendVerification(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := rbac.RequireAuthenticated(ctx)
	if err != nil {
		return err
	}
	if err := h.auth.ResendEmailVerification(ctx, userID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, httpx.Message{Message: "Verification email sent"})
}

// EnableTwoFactor starts TOTP setup and returns the secret with its QR code.
func (h *Handler) EnableTwoFactor(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := rbac.RequireAuthenticated(ctx)
	if err != nil {
		return err
	}
	enrollment, err := h.auth.EnableTwoFactor(ctx, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, enrollment)
}

func (h *Handler) VerifyTwoFactor(c echo.Context) error {
	return h.withCode(c, h.auth.VerifyTwoFactor, "Two-factor authentication enabled")
}

func (h *Handler) DisableTwoFactor(c echo.Context) error {
	return h.withCode(c, h.auth.DisableTwoFactor, "Two-factor authentication disabled")
}

func (h *Handler) withCode(c echo.Context, fn func(ctx context.Context, userID, code string) error, msg string) error {
	ctx := c.Request().Context()
	userID, err := rbac.RequireAuthenticated(ctx)
	if err != nil {
		return err
	}
	var req codeRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	if err := fn(ctx, userID, req.Code); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, httpx.Message{Message: msg})
}

func (h *Handler) ListSessions(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := rbac.RequireAuthenticated(ctx)
	if err != nil {
		return err
	}
	sessions, err := h.auth.GetUserSessions(ctx, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessions)
}

func (h *Handler) RevokeSession(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := rbac.RequireAuthenticated(ctx)
	if err != nil {
		return err
	}
	sessionID, err := httpx.UUIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.auth.RevokeSession(ctx, userID, sessionID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, httpx.Message{Message: "Session revoked"})
}

func (h *Handler) RevokeAllSessions(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := rbac.RequireAuthenticated(ctx)
	if err != nil {
		return err
	}
	if err := h.auth.RevokeAllSessions(ctx, userID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, httpx.Message{Message: "All sessions revoked"})
}
