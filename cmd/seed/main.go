// seed inserts the permission catalogue, the system roles and two sample accounts for local testing.
// Idempotent: existing rows are left as they are, so it is safe to run on every deploy.
package main

import (
	"context"
	"time"

	"enterprise-api/backend/internal/config"
	"enterprise-api/backend/internal/db"
	"enterprise-api/backend/internal/logging"
	rbacrepo "enterprise-api/backend/internal/rbac/repository"
	"enterprise-api/backend/internal/security"
	userrepo "enterprise-api/backend/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.Options{}).WithError(err).Fatal("config")
	}
	log := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "seed"})
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("database")
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	s := &Seeder{
		Roles:  rbacrepo.NewPostgresRepository(conn),
		Users:  userrepo.NewPostgresRepository(conn),
		Hasher: security.NewHasher(cfg.BcryptCost),
		Log:    log,
		Now:    time.Now,
	}
	if err := s.Run(ctx); err != nil {
		log.WithError(err).Fatal("seed")
	}
	log.Info("seed complete")
}
