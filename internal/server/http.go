// Package server assembles the REST and gRPC servers from the feature handlers.
package server

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"golang.org/x/time/rate"

	"enterprise-api/backend/internal/audit"
	authhandler "enterprise-api/backend/internal/auth/handler"
	filehandler "enterprise-api/backend/internal/file/handler"
	healthhandler "enterprise-api/backend/internal/health/handler"
	"enterprise-api/backend/internal/logging"
	"enterprise-api/backend/internal/metrics"
	notificationhandler "enterprise-api/backend/internal/notification/handler"
	"enterprise-api/backend/internal/platform/httpx"
	rbachandler "enterprise-api/backend/internal/rbac/handler"
	"enterprise-api/backend/internal/server/middleware"
	userhandler "enterprise-api/backend/internal/user/handler"
)

const (
	healthPath  = "/health"
	metricsPath = "/metrics"
)

// HTTPConfig holds the router settings taken from config.
type HTTPConfig struct {
	// APIPrefix is prepended to every feature route (e.g. /api/v1).
	APIPrefix string
	// CORSOrigins are the allowed origins; empty allows "*".
	CORSOrigins []string
	// RateLimitMax requests are allowed per client IP in each RateLimitWindow. Zero disables limiting.
	RateLimitMax    int
	RateLimitWindow time.Duration
	// TrustedProxies are the ranges whose X-Forwarded-For header names the client. Empty means the peer
	// address is the client IP and forwarding headers are ignored.
	TrustedProxies []*net.IPNet
	// BodyLimit caps request bodies (echo size notation, e.g. "12M"). Empty disables the cap.
	BodyLimit string
	// ServiceName names the OTel server spans.
	ServiceName string
}

// Handlers are the feature handlers mounted under APIPrefix. A nil handler is not mounted.
type Handlers struct {
	Auth          *authhandler.Handler
	Users         *userhandler.Handler
	Roles         *rbachandler.Handler
	Notifications *notificationhandler.Handler
	Files         *filehandler.Handler
	Health        *healthhandler.Server
}

// HTTPDeps holds the shared dependencies of the router.
type HTTPDeps struct {
	Log     logrus.FieldLogger
	Metrics *metrics.Metrics
	// Tokens validates Bearer access tokens on protected routes.
	Tokens middleware.AccessValidator
	// Audit receives one entry per successful mutating request on the resource routes. May be nil.
	Audit audit.AuditLogger
	Handlers
}

// NewHTTP returns the REST router.
func NewHTTP(cfg HTTPConfig, deps HTTPDeps) *echo.Echo {
	log := logging.OrDiscard(deps.Log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpx.ErrorHandler(log)
	e.IPExtractor = ipExtractor(cfg.TrustedProxies)

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	if cfg.ServiceName != "" {
		e.Use(otelecho.Middleware(cfg.ServiceName, otelecho.WithSkipper(skipInfra)))
	}
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: corsOrigins(cfg.CORSOrigins),
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
		},
	}))
	if limiter := rateLimiter(cfg); limiter != nil {
		e.Use(limiter)
	}
	if cfg.BodyLimit != "" {
		e.Use(echomw.BodyLimit(cfg.BodyLimit))
	}
	e.Use(deps.Metrics.Middleware())
	e.Use(middleware.RequestLogger(log, healthPath, metricsPath))
	e.Use(middleware.ClientInfo())

	if deps.Health != nil {
		e.GET(healthPath, deps.Health.HTTP)
	}
	if deps.Metrics != nil {
		e.GET(metricsPath, echo.WrapHandler(deps.Metrics.Handler()))
	}

	api := e.Group(strings.TrimSuffix(cfg.APIPrefix, "/"))
	bearer := middleware.JWT(deps.Tokens)
	audited := middleware.Audit(deps.Audit)

	if deps.Auth != nil {
		deps.Auth.Routes(api.Group("/auth"), api.Group("/auth", bearer))
	}
	if deps.Users != nil {
		deps.Users.Routes(api.Group("/users", bearer, audited))
	}
	if deps.Roles != nil {
		deps.Roles.Routes(api.Group("/roles", bearer, audited), api.Group("/permissions", bearer))
	}
	if deps.Notifications != nil {
		deps.Notifications.Routes(api.Group("/notifications", bearer, audited))
	}
	if deps.Files != nil {
		deps.Files.Routes(api.Group("/files", bearer, audited))
	}
	return e
}

func skipInfra(c echo.Context) bool {
	p := c.Request().URL.Path
	return p == healthPath || p == metricsPath
}

func corsOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// ipExtractor decides what c.RealIP returns, which keys rate limiting and is recorded on sessions and audit
// entries.
func ipExtractor(trusted []*net.IPNet) echo.IPExtractor {
	if len(trusted) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, r := range trusted {
		opts = append(opts, echo.TrustIPRange(r))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}

// rateLimiter allows RateLimitMax requests per client IP per window, refilling evenly across the window.
func rateLimiter(cfg HTTPConfig) echo.MiddlewareFunc {
	if cfg.RateLimitMax <= 0 {
		return nil
	}
	window := cfg.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	store := echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(cfg.RateLimitMax) / window.Seconds()),
		Burst:     cfg.RateLimitMax,
		ExpiresIn: window,
	})
	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Skipper: skipInfra,
		Store:   store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
	})
}
