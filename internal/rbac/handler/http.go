package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"enterprise-api/backend/internal/platform/httpx"
	"enterprise-api/backend/internal/platform/rbac"
	"enterprise-api/backend/internal/rbac/domain"
	"enterprise-api/backend/internal/rbac/service"
	"enterprise-api/backend/internal/server/middleware"
)

// Roles is implemented by *service.RoleService.
type Roles interface {
	ListRoles(ctx context.Context) ([]*domain.Role, error)
	GetRole(ctx context.Context, id string) (*domain.Role, error)
	CreateRole(ctx context.Context, in service.CreateRoleInput) (*domain.Role, error)
	UpdateRole(ctx context.Context, id string, in service.UpdateRoleInput) (*domain.Role, error)
	DeleteRole(ctx context.Context, id string) error
	AssignPermission(ctx context.Context, roleID, permissionName string) (*domain.Role, error)
	ListPermissions(ctx context.Context) ([]*domain.Permission, error)
}

// Handler serves /roles and /permissions.
type Handler struct {
	svc    Roles
	loader rbac.RoleLoader
}

// NewHandler returns a roles handler. loader resolves the caller's permissions.
func NewHandler(svc Roles, loader rbac.RoleLoader) *Handler {
	return &Handler{svc: svc, loader: loader}
}

// Routes mounts /roles on roles and the permission catalogue on permissions. Both groups must be
// Bearer-protected and carry their prefix.
func (h *Handler) Routes(roles, permissions *echo.Group) {
	roles.POST("", h.Create)
	roles.GET("", h.List)
	roles.GET("/:id", h.Get)
	roles.PATCH("/:id", h.Update)
	roles.DELETE("/:id", h.Delete)
	roles.POST("/:id/permissions", h.AssignPermission)
	permissions.GET("", h.ListPermissions)
}

type assignPermissionRequest struct {
	Permission string `json:"permission"`
}

func (h *Handler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := rbac.RequirePermissions(ctx, h.loader, "roles:create"); err != nil {
		return err
	}
	var in service.CreateRoleInput
	if err := httpx.Bind(c, &in); err != nil {
		return err
	}
	role, err := h.svc.CreateRole(ctx, in)
	if err != nil {
		return err
	}
	middleware.SetResourceID(c, role.ID)
	return c.JSON(http.StatusCreated, role)
}

func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := rbac.RequirePermissions(ctx, h.loader, "roles:read"); err != nil {
		return err
	}
	roles, err := h.svc.ListRoles(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, roles)
}

func (h *Handler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := rbac.RequirePermissions(ctx, h.loader, "roles:read"); err != nil {
		return err
	}
	id, err := httpx.UUIDParam(c, "id")
	if err != nil {
		return err
	}
	role, err := h.svc.GetRole(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, role)
}

func (h *Handler) Update(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := rbac.RequirePermissions(ctx, h.loader, "roles:update"); err != nil {
		return err
	}
	id, err := httpx.UUIDParam(c, "id")
	if err != nil {
		return err
	}
	var in service.UpdateRoleInput
	if err := httpx.Bind(c, &in); err != nil {
		return err
	}
	role, err := h.svc.UpdateRole(ctx, id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, role)
}

func (h *Handler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := rbac.RequirePermissions(ctx, h.loader, "roles:delete"); err != nil {
		return err
	}
	id, err := httpx.UUIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteRole(ctx, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, httpx.Message{Message: "Role deleted successfully"})
}

// AssignPermission grants {"permission": "resource:action"} to the role.
func (h *Handler) AssignPermission(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := rbac.RequirePermissions(ctx, h.loader, "roles:update"); err != nil {
		return err
	}
	id, err := httpx.UUIDParam(c, "id")
	if err != nil {
		return err
	}
	var req assignPermissionRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	role, err := h.svc.AssignPermission(ctx, id, req.Permission)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, role)
}

func (h *Handler) ListPermissions(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := rbac.RequirePermissions(ctx, h.loader, "roles:read"); err != nil {
		return err
	}
	perms, err := h.svc.ListPermissions(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, perms)
}
