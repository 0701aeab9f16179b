package postgres

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"phenoprofile/internal"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrator handles database schema migrations
type Migrator struct {
	db     *sqlx.DB
	source fs.FS
	logger *internal.Logger
}

// NewMigrator creates a migrator over the embedded schema
func NewMigrator(db *sqlx.DB) *Migrator {
	return &Migrator{db: db, source: migrationFS, logger: internal.DefaultLogger}
}

// MigrationFile is one versioned schema script
type MigrationFile struct {
	Version string
	Path    string
}

// Up executes all pending migrations
func (m *Migrator) Up(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var versions []string
	if err := m.db.SelectContext(ctx, &versions, "SELECT version FROM schema_migrations"); err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}

	files, err := findMigrationFiles(m.source)
	if err != nil {
		return fmt.Errorf("failed to find migration files: %w", err)
	}
	for _, file := range files {
		if applied[file.Version] {
			continue
		}
		if err := m.apply(ctx, file); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file.Version, err)
		}
		m.logger.Info("[Migrator] applied migration %s", file.Version)
	}
	return nil
}

func (m *Migrator) apply(ctx context.Context, file MigrationFile) error {
	script, err := fs.ReadFile(m.source, file.Path)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(script)); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, checksum) VALUES ($1, $2)",
		file.Version, checksum(script)); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}

func checksum(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

// findMigrationFiles lists NNN_name.sql scripts in version order
func findMigrationFiles(source fs.FS) ([]MigrationFile, error) {
	entries, err := fs.ReadDir(source, "migrations")
	if err != nil {
		return nil, err
	}
	var files []MigrationFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		version, _, ok := strings.Cut(e.Name(), "_")
		if !ok {
			continue
		}
		files = append(files, MigrationFile{Version: version, Path: path.Join("migrations", e.Name())})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}
