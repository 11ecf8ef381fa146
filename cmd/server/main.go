package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"enterprise-api/backend/internal/audit"
	auditrepo "enterprise-api/backend/internal/audit/repository"
	authhandler "enterprise-api/backend/internal/auth/handler"
	authservice "enterprise-api/backend/internal/auth/service"
	"enterprise-api/backend/internal/config"
	"enterprise-api/backend/internal/db"
	filehandler "enterprise-api/backend/internal/file/handler"
	filerepo "enterprise-api/backend/internal/file/repository"
	fileservice "enterprise-api/backend/internal/file/service"
	healthhandler "enterprise-api/backend/internal/health/handler"
	"enterprise-api/backend/internal/logging"
	"enterprise-api/backend/internal/metrics"
	"enterprise-api/backend/internal/mfa"
	mfarepo "enterprise-api/backend/internal/mfa/repository"
	notificationhandler "enterprise-api/backend/internal/notification/handler"
	"enterprise-api/backend/internal/notification/queue"
	"enterprise-api/backend/internal/notification/render"
	notificationrepo "enterprise-api/backend/internal/notification/repository"
	notificationservice "enterprise-api/backend/internal/notification/service"
	"enterprise-api/backend/internal/notification/worker"
	policyengine "enterprise-api/backend/internal/policy/engine"
	rbachandler "enterprise-api/backend/internal/rbac/handler"
	rbacrepo "enterprise-api/backend/internal/rbac/repository"
	rbacservice "enterprise-api/backend/internal/rbac/service"
	"enterprise-api/backend/internal/security"
	"enterprise-api/backend/internal/server"
	"enterprise-api/backend/internal/server/middleware"
	sessionrepo "enterprise-api/backend/internal/session/repository"
	userhandler "enterprise-api/backend/internal/user/handler"
	userrepo "enterprise-api/backend/internal/user/repository"
	userservice "enterprise-api/backend/internal/user/service"
	verificationrepo "enterprise-api/backend/internal/verification/repository"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.Options{}).WithError(err).Fatal("config")
	}
	log := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: cfg.OTelServiceName})
	if err := cfg.RequireAuthSecrets(); err != nil {
		log.WithError(err).Fatal("config")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := setupTelemetry(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("otel")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("database")
	}
	defer conn.Close()

	rdb, err := db.OpenRedis(cfg.RedisURL)
	if err != nil {
		log.WithError(err).Fatal("redis")
	}
	defer rdb.Close()

	m := metrics.New()

	users := userrepo.NewPostgresRepository(conn)
	sessions := sessionrepo.NewPostgresRepository(conn)
	tokens := verificationrepo.NewPostgresRepository(conn)
	roleRepo := rbacrepo.NewPostgresRepository(conn)
	notifications := notificationrepo.NewPostgresRepository(conn)
	files := filerepo.NewPostgresRepository(conn)

	emitter, closeEmitter := auditEmitter(cfg, providers, log)
	defer closeEmitter()
	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(conn), middleware.ClientFromContext, emitter, log)

	issuer, err := tokenProvider(cfg)
	if err != nil {
		log.WithError(err).Fatal("token provider")
	}
	hasher := security.NewHasher(cfg.BcryptCost)

	policy, err := policyengine.NewOPAEvaluator(ctx, policyengine.Options{RequireVerifiedEmail: cfg.RequireVerifiedEmail}, log)
	if err != nil {
		log.WithError(err).Fatal("login policy")
	}

	renderer, err := render.New(cfg.AppName)
	if err != nil {
		log.WithError(err).Fatal("notification templates")
	}
	notifyQueue := queue.NewRedisQueue(rdb, cfg.NotifyQueuePrefix)
	notifier := notificationservice.NewService(notifications, notifyQueue, renderer, users, log)

	roles := rbacservice.NewRoleService(roleRepo)
	auth := authservice.NewAuthService(authservice.Deps{
		Users:      users,
		Sessions:   sessions,
		Tokens:     tokens,
		Roles:      roles,
		Challenges: mfarepo.NewRedisRepository(rdb),
		Hasher:     hasher,
		Issuer:     issuer,
		TOTP:       mfa.NewTOTP(cfg.TwoFactorAppName, nil),
		Policy:     policy,
		Notifier:   notifier,
		Audit:      auditLogger,
		Metrics:    m,
		Client:     middleware.ClientFromContext,
		Log:        log,
	}, authservice.Options{
		LockoutThreshold:     cfg.LockoutThreshold,
		LockoutDuration:      cfg.LockoutTTL(),
		VerificationTTL:      cfg.VerificationTTL(),
		ResetTTL:             cfg.ResetTTL(),
		ChallengeTTL:         cfg.ChallengeTTL(),
		ChallengeMaxAttempts: cfg.MFAChallengeMaxAttempts,
		AppURL:               cfg.AppURL,
	})

	store, err := fileStorage(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("file storage")
	}
	fileSvc := fileservice.NewService(files, store, m, log, fileservice.Options{
		MaxSize:      cfg.MaxFileSize,
		AllowedTypes: cfg.AllowedFileTypesList(),
	})

	trustedProxies, err := cfg.TrustedProxyRanges()
	if err != nil {
		log.WithError(err).Fatal("trusted proxies")
	}

	health := healthhandler.NewServer(conn, policy)
	health.AddCheck("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })

	e := server.NewHTTP(server.HTTPConfig{
		APIPrefix:       cfg.APIPrefix,
		CORSOrigins:     cfg.CORSOrigins(),
		RateLimitMax:    cfg.RateLimitMax,
		RateLimitWindow: cfg.RateLimitWindow(),
		TrustedProxies:  trustedProxies,
		BodyLimit:       bodyLimit(cfg.MaxFileSize),
		ServiceName:     cfg.OTelServiceName,
	}, server.HTTPDeps{
		Log:     log,
		Metrics: m,
		Tokens:  issuer,
		Audit:   auditLogger,
		Handlers: server.Handlers{
			Auth:          authhandler.NewHandler(auth),
			Users:         userhandler.NewHandler(userservice.NewService(users, roles, sessions, hasher, log), roleRepo),
			Roles:         rbachandler.NewHandler(roles, roleRepo),
			Notifications: notificationhandler.NewHandler(notifier, roleRepo),
			Files:         filehandler.NewHandler(fileSvc, roleRepo),
			Health:        health,
		},
	})

	if cfg.NotifyInlineWorker {
		email, sms, err := senders(cfg, log)
		if err != nil {
			log.WithError(err).Fatal("notification senders")
		}
		w := worker.New(notifications, notifyQueue, email, sms, m, log, worker.Options{
			MaxAttempts: cfg.NotifyMaxAttempts,
			BackoffBase: cfg.NotifyBackoffBase(),
		})
		go func() {
			if err := w.Run(ctx); err != nil {
				log.WithError(err).Error("notification worker exited")
			}
		}()
	}

	go func() {
		log.WithField("addr", cfg.HTTPAddr()).Info("HTTP server listening")
		if err := e.Start(cfg.HTTPAddr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http serve")
		}
	}()

	grpcServer := server.NewGRPC(healthhandler.NewGRPC(health))
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.WithError(err).Fatal("listen")
		}
		defer lis.Close()
		go func() {
			log.WithField("addr", cfg.GRPCAddr).Info("gRPC health server listening")
			if err := grpcServer.Serve(lis); err != nil {
				log.WithError(err).Fatal("grpc serve")
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")
	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	grpcServer.GracefulStop()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("otel shutdown")
	}
	log.Info("server stopped")
}

func bodyLimit(maxFileSize int64) string {
	if maxFileSize <= 0 {
		return ""
	}
	// Multipart framing and form fields on top of the file itself.
	return strconv.FormatInt(maxFileSize+1<<20, 10) + "B"
}
