package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"enterprise-api/backend/internal/platform/httpx"
	"enterprise-api/backend/internal/platform/rbac"
	"enterprise-api/backend/internal/server/middleware"
	"enterprise-api/backend/internal/user/domain"
	"enterprise-api/backend/internal/user/service"
)

// Users is implemented by *service.Service.
type Users interface {
	Create(ctx context.Context, in service.CreateInput) (*domain.Profile, error)
	List(ctx context.Context, q service.ListQuery) (*service.Page, error)
	Get(ctx context.Context, id string) (*domain.Profile, error)
	Update(ctx context.Context, id string, in service.UpdateInput) (*domain.Profile, error)
	Delete(ctx context.Context, id string) error
}

// Handler serves /users.
type Handler struct {
	users Users
	roles rbac.RoleLoader
}

// NewHandler returns a users handler.
func NewHandler(users Users, roles rbac.RoleLoader) *Handler {
	return &Handler{users: users, roles: roles}
}

// Routes mounts the endpoints on g, which must be Bearer-protected and carry the /users prefix.
func (h *Handler) Routes(g *echo.Group) {
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

func (h *Handler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := rbac.RequirePermissions(ctx, h.roles, "users:create"); err != nil {
		return err
	}
	var in service.CreateInput
	if err := httpx.Bind(c, &in); err != nil {
		return err
	}
	p, err := h.users.Create(ctx, in)
	if err != nil {
		return err
	}
	middleware.SetResourceID(c, p.ID)
	return c.JSON(http.StatusCreated, p)
}

// List supports ?page=&limit=&search=.
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := rbac.RequirePermissions(ctx, h.roles, "users:read"); err != nil {
		return err
	}
	page, err := httpx.IntQuery(c, "page", 1)
	if err != nil {
		return err
	}
	limit, err := httpx.IntQuery(c, "limit", service.DefaultLimit)
	if err != nil {
		return err
	}
	out, err := h.users.List(ctx, service.ListQuery{Page: page, Limit: limit, Search: c.QueryParam("search")})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := rbac.RequirePermissions(ctx, h.roles, "users:read"); err != nil {
		return err
	}
	id, err := httpx.UUIDParam(c, "id")
	if err != nil {
		return err
	}
	p, err := h.users.Get(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Update(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := rbac.RequirePermissions(ctx, h.roles, "users:update"); err != nil {
		return err
	}
	id, err := httpx.UUIDParam(c, "id")
	if err != nil {
		return err
	}
	var in service.UpdateInput
	if err := httpx.Bind(c, &in); err != nil {
		return err
	}
	p, err := h.users.Update(ctx, id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// Delete soft-deletes the user.
func (h *Handler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := rbac.RequirePermissions(ctx, h.roles, "users:delete"); err != nil {
		return err
	}
	id, err := httpx.UUIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.users.Delete(ctx, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, httpx.Message{Message: "User deleted successfully"})
}
