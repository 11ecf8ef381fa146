// migrate runs DB migrations from embedded SQL; use with go run ./cmd/migrate [-direction up|down].
package main

import (
	"errors"
	"flag"

	"enterprise-api/backend/internal/config"
	"enterprise-api/backend/internal/db/migrate"
	"enterprise-api/backend/internal/logging"
)

func main() {
	direction := flag.String("direction", migrate.Up, "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.Options{}).WithError(err).Fatal("config")
	}
	log := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "migrate"})
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.WithField("direction", *direction).Info("no migrations to apply")
			return
		}
		log.WithError(err).Fatal("migrate")
	}
	log.WithField("direction", *direction).Info("migrations applied")
}
