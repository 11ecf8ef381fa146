package middleware

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"enterprise-api/backend/internal/logging"
)

// ClientInfo stores the caller's IP and user agent on the request context for sessions and audit entries.
// The IP comes from echo's RealIP, so it follows the router's IPExtractor.
func ClientInfo() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			ctx := WithClient(c.Request().Context(), Client{IP: ip, UserAgent: c.Request().UserAgent()})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// ClientFromContext adapts GetClient to the audit logger's extractor signature.
func ClientFromContext(ctx context.Context) (ip, userAgent string) {
	cl := GetClient(ctx)
	return cl.IP, cl.UserAgent
}

// RequestLogger writes one structured entry per request. skip lists paths that are not logged (health,
// metrics).
func RequestLogger(log logrus.FieldLogger, skip ...string) echo.MiddlewareFunc {
	log = logging.OrDiscard(log)
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipped[c.Request().URL.Path] {
				return next(c)
			}
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			fields := logrus.Fields{
				"method":      c.Request().Method,
				"path":        c.Request().URL.Path,
				"route":       c.Path(),
				"status":      c.Response().Status,
				"duration_ms": time.Since(start).Milliseconds(),
				"request_id":  c.Response().Header().Get(echo.HeaderXRequestID),
				"ip":          c.RealIP(),
			}
			if userID, ok := GetUserID(c.Request().Context()); ok {
				fields["user_id"] = userID
			}
			entry := log.WithFields(fields)
			switch {
			case c.Response().Status >= 500:
				entry.Error("request completed")
			case c.Response().Status >= 400:
				entry.Warn("request completed")
			default:
				entry.Info("request completed")
			}
			return nil
		}
	}
}
