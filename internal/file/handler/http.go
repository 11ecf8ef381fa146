package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"enterprise-api/backend/internal/file/domain"
	"enterprise-api/backend/internal/file/service"
	"enterprise-api/backend/internal/platform/httpx"
	"enterprise-api/backend/internal/platform/rbac"
	"enterprise-api/backend/internal/platform/validate"
	"enterprise-api/backend/internal/server/middleware"
)

// formField is the multipart field carrying the upload.
const formField = "file"

// Files is implemented by *service.Service.
type Files interface {
	Upload(ctx context.Context, userID string, in service.Upload) (*domain.File, error)
	List(ctx context.Context, userID string) ([]*domain.File, error)
	Get(ctx context.Context, id string) (*domain.File, error)
	Delete(ctx context.Context, id string) error
}

// Handler serves /files.
type Handler struct {
	files Files
	roles rbac.RoleLoader
}

func NewHandler(files Files, roles rbac.RoleLoader) *Handler {
	return &Handler{files: files, roles: roles}
}

// Routes mounts the endpoints on g, which must be Bearer-protected and carry the /files prefix.
func (h *Handler) Routes(g *echo.Group) {
	g.POST("/upload", h.Upload)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Delete)
}

// Upload stores the multipart "file" field for the caller. Responds 201 with the metadata.
func (h *Handler) Upload(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := rbac.RequirePermissions(ctx, h.roles, "files:create")
	if err != nil {
		return err
	}
	fh, err := c.FormFile(formField)
	if err != nil {
		return service.ErrFileRequired
	}
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	f, err := h.files.Upload(ctx, userID, service.Upload{
		Name:     fh.Filename,
		MimeType: fh.Header.Get(echo.HeaderContentType),
		Size:     fh.Size,
		Body:     src,
	})
	if err != nil {
		return err
	}
	middleware.SetResourceID(c, f.ID)
	return c.JSON(http.StatusCreated, f)
}

// List supports ?userId=; without it every live file is returned.
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := rbac.RequirePermissions(ctx, h.roles, "files:read"); err != nil {
		return err
	}
	userID := c.QueryParam("userId")
	if userID != "" {
		if err := validate.UUID("userId", userID); err != nil {
			return err
		}
	}
	files, err := h.files.List(ctx, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, files)
}

func (h *Handler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := rbac.RequirePermissions(ctx, h.roles, "files:read"); err != nil {
		return err
	}
	id, err := httpx.UUIDParam(c, "id")
	if err != nil {
		return err
	}
	f, err := h.files.Get(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := rbac.RequirePermissions(ctx, h.roles, "files:delete"); err != nil {
		return err
	}
	id, err := httpx.UUIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.files.Delete(ctx, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, httpx.Message{Message: "File deleted successfully"})
}
