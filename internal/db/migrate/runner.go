// Package migrate applies the embedded schema migrations with golang-migrate.
package migrate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"enterprise-api/backend/internal/db"
)

// ErrNoChange is returned by Run when the schema is already at the target version.
var ErrNoChange = migrate.ErrNoChange

// Directions accepted by Run.
const (
	Up   = "up"
	Down = "down"
)

// Source opens the migrations embedded in db.MigrationFS.
func Source() (source.Driver, error) {
	return iofs.New(db.MigrationFS, "migrations")
}

// Run applies every pending migration (Up) or reverts all of them (Down) against the Postgres dsn.
func Run(dsn, direction string) error {
	if strings.TrimSpace(dsn) == "" {
		return errors.New("migrate: DATABASE_URL is not set")
	}
	if direction != Up && direction != Down {
		return fmt.Errorf("migrate: direction must be %q or %q, got %q", Up, Down, direction)
	}

	src, err := Source()
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if direction == Up {
		return m.Up()
	}
	return m.Down()
}
