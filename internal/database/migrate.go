package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"
)

// MigrationsTable keeps this service's schema history apart from other
// services sharing the database.
const MigrationsTable = "enricher_schema_migrations"

// Migrate applies every pending migration from sourceURL (e.g. file://db/migrations).
func Migrate(sourceURL, dsn string) error {
	if sourceURL == "" || dsn == "" {
		return fmt.Errorf("migration source and database DSN are required")
	}

	m, err := migrate.New(sourceURL, migrationURL(dsn))
	if err != nil {
		return fmt.Errorf("create migration instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, dirty, _ := m.Version()
	logrus.WithFields(logrus.Fields{"version": version, "dirty": dirty}).Info("database migrations applied")
	return nil
}

func migrationURL(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "x-migrations-table=" + MigrationsTable
}
