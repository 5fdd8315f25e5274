package server

import (
	"fmt"
	"os"

	"github.com/mohammad-safakhou/techbrief/config"
	"github.com/mohammad-safakhou/techbrief/internal/store"
)

// Migrate applies the embedded decision migrations to the configured
// Postgres database. DATABASE_URL is used when no postgres settings exist.
func Migrate(cfg config.PostgresConfig, direction string, steps int) error {
	if !cfg.Configured() {
		cfg.URL = os.Getenv("DATABASE_URL")
	}
	dsn, err := cfg.DSN()
	if err != nil {
		return err
	}
	if err := store.Migrate(dsn, direction, steps); err != nil {
		return fmt.Errorf("migrate %s: %w", direction, err)
	}
	return nil
}
