package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enterprise-api/backend/internal/apperr"
)

type loggedEvent struct {
	userID, action, resource, resourceID string
	metadata                             map[string]any
}

type recordingAuditLogger struct {
	mu     sync.Mutex
	events []loggedEvent
}

func (r *recordingAuditLogger) LogEvent(_ context.Context, userID, action, resource, resourceID string, metadata map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, loggedEvent{userID, action, resource, resourceID, metadata})
}

func newAuditedEcho(logger *recordingAuditLogger) *echo.Echo {
	e := echo.New()
	withUser := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := WithIdentity(c.Request().Context(), Identity{UserID: "admin-1"})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
	g := e.Group("/api/v1", withUser, Audit(logger))
	g.POST("/users", func(c echo.Context) error {
		SetResourceID(c, "new-user")
		return c.NoContent(http.StatusCreated)
	})
	g.PATCH("/roles/:id", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	g.DELETE("/files/:id", func(echo.Context) error { return apperr.New(apperr.KindNotFound, "File not found") })
	g.GET("/users", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	return e
}

func do(e *echo.Echo, method, path string) {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
}

func TestAudit_RecordsSuccessfulMutations(t *testing.T) {
	logger := &recordingAuditLogger{}
	e := newAuditedEcho(logger)

	do(e, http.MethodPost, "/api/v1/users")
	do(e, http.MethodPatch, "/api/v1/roles/r-9")

	require.Len(t, logger.events, 2)
	assert.Equal(t, "admin-1", logger.events[0].userID)
	assert.Equal(t, "User.created", logger.events[0].action)
	assert.Equal(t, "User", logger.events[0].resource)
	assert.Equal(t, "new-user", logger.events[0].resourceID)
	assert.Equal(t, http.StatusCreated, logger.events[0].metadata["statusCode"])

	assert.Equal(t, "Role.updated", logger.events[1].action)
	assert.Equal(t, "r-9", logger.events[1].resourceID)
}

func TestAudit_SkipsReadsAndFailures(t *testing.T) {
	logger := &recordingAuditLogger{}
	e := newAuditedEcho(logger)

	do(e, http.MethodGet, "/api/v1/users")
	do(e, http.MethodDelete, "/api/v1/files/f-1")

	assert.Empty(t, logger.events)
}

func TestAudit_NilLoggerPassesThrough(t *testing.T) {
	e := echo.New()
	e.POST("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, Audit(nil))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
