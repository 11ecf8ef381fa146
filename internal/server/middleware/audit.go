package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"enterprise-api/backend/internal/audit"
)

const resourceIDKey = "audit.resource_id"

// SetResourceID records the id of the resource a handler created or changed, for the audit entry.
func SetResourceID(c echo.Context, id string) {
	c.Set(resourceIDKey, id)
}

// Audit returns a middleware that writes an audit entry for each successful mutating request
// (POST, PUT, PATCH, DELETE). The resource id is the one set by SetResourceID, else the ":id" path parameter.
// Writes are best-effort and never change the response.
func Audit(logger audit.AuditLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err != nil || logger == nil {
				return err
			}
			status := c.Response().Status
			if status < http.StatusOK || status >= http.StatusBadRequest {
				return nil
			}
			req := c.Request()
			ar, ok := audit.ParseRequest(req.Method, req.URL.Path)
			if !ok {
				return nil
			}
			resourceID, _ := c.Get(resourceIDKey).(string)
			if resourceID == "" {
				resourceID = c.Param("id")
			}
			userID, _ := GetUserID(req.Context())
			logger.LogEvent(req.Context(), userID, ar.Action, ar.Resource, resourceID, map[string]any{
				"method":     req.Method,
				"path":       req.URL.Path,
				"statusCode": status,
			})
			return nil
		}
	}
}
