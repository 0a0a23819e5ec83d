package db

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
)

// DevMode selects the on-disk migrations directory instead of the
// embedded copy so schema work doesn't need a rebuild per edit.
var DevMode = false

//go:embed migrations
var migrationsFS embed.FS

// devMigrationsDir is where the migration files live relative to the
// repository root, for DevMode runs.
const devMigrationsDir = "internal/db/migrations"

// getMigrationsFS returns the filesystem containing the
// NNNNNN_name.{up,down}.sql migration files at its root.
func getMigrationsFS() (fs.FS, error) {
	if DevMode {
		if _, err := os.Stat(devMigrationsDir); err != nil {
			return nil, fmt.Errorf("dev mode: migrations directory not found at %s: %w", devMigrationsDir, err)
		}
		return os.DirFS(devMigrationsDir), nil
	}

	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to access embedded migrations: %w", err)
	}
	return sub, nil
}
