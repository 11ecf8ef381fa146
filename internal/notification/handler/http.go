package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"enterprise-api/backend/internal/notification/domain"
	"enterprise-api/backend/internal/platform/httpx"
	"enterprise-api/backend/internal/platform/rbac"
	"enterprise-api/backend/internal/platform/validate"
	"enterprise-api/backend/internal/server/middleware"
)

// Notifier is implemented by *service.Service.
type Notifier interface {
	SendEmail(ctx context.Context, userID, subject, message string) (*domain.Notification, error)
	SendSMS(ctx context.Context, userID, phone, message, template string, data map[string]string) (*domain.Notification, error)
	List(ctx context.Context, userID string) ([]*domain.Notification, error)
}

// Handler serves /notifications.
type Handler struct {
	svc   Notifier
	roles rbac.RoleLoader
}

// NewHandler returns a notifications handler. roles resolves the caller's permissions.
func NewHandler(svc Notifier, roles rbac.RoleLoader) *Handler {
	return &Handler{svc: svc, roles: roles}
}

// Routes mounts the endpoints on g, which must be Bearer-protected and carry the /notifications prefix.
func (h *Handler) Routes(g *echo.Group) {
	g.POST("/email", h.SendEmail)
	g.POST("/sms", h.SendSMS)
	g.GET("", h.List)
}

type emailRequest struct {
	UserID  string `json:"userId"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

type smsRequest struct {
	UserID   string            `json:"userId"`
	Phone    string            `json:"phone"`
	Message  string            `json:"message"`
	Template string            `json:"template"`
	Data     map[string]string `json:"data"`
}

// SendEmail queues an email to a user. Responds 202 with the pending record.
func (h *Handler) SendEmail(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := rbac.RequirePermissions(ctx, h.roles, "notifications:create"); err != nil {
		return err
	}
	var req emailRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	if err := validate.UUID("userId", req.UserID); err != nil {
		return err
	}
	n, err := h.svc.SendEmail(ctx, req.UserID, req.Subject, req.Message)
	if err != nil {
		return err
	}
	middleware.SetResourceID(c, n.ID)
	return c.JSON(http.StatusAccepted, n)
}

// SendSMS queues a text message. Either message or template must be set.
func (h *Handler) SendSMS(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := rbac.RequirePermissions(ctx, h.roles, "notifications:create"); err != nil {
		return err
	}
	var req smsRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	if req.UserID != "" {
		if err := validate.UUID("userId", req.UserID); err != nil {
			return err
		}
	}
	if err := validate.Phone(req.Phone); err != nil {
		return err
	}
	n, err := h.svc.SendSMS(ctx, req.UserID, req.Phone, req.Message, req.Template, req.Data)
	if err != nil {
		return err
	}
	middleware.SetResourceID(c, n.ID)
	return c.JSON(http.StatusAccepted, n)
}

// List returns the notifications of ?userId=, defaulting to the caller.
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	callerID, err := rbac.RequirePermissions(ctx, h.roles, "notifications:read")
	if err != nil {
		return err
	}
	userID := c.QueryParam("userId")
	if userID == "" {
		userID = callerID
	} else if err := validate.UUID("userId", userID); err != nil {
		return err
	}
	list, err := h.svc.List(ctx, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}
