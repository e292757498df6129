// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/ravlo/cardvault/internal/dbx"
	"github.com/ravlo/cardvault/internal/migrations"
	"github.com/ravlo/cardvault/internal/repositories/auditlogs"
	"github.com/ravlo/cardvault/internal/repositories/photos"
	"github.com/ravlo/cardvault/internal/repositories/sessions"
	"github.com/ravlo/cardvault/internal/repositories/vaultcases"
	"github.com/ravlo/cardvault/internal/repositories/vaultitems"
	"github.com/ravlo/cardvault/internal/repositories/vaultslots"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

// Sessions returns a sessions.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Sessions(db dbx.DBTX) sessions.Repository {
	return sessions.NewPostgresRepository(db)
}

// AuditLogs returns an auditlogs.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) AuditLogs(db dbx.DBTX) auditlogs.Repository {
	return auditlogs.NewPostgresRepository(db)
}

// VaultItems returns a vaultitems.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) VaultItems(db dbx.DBTX) vaultitems.Repository {
	return vaultitems.NewPostgresRepository(db)
}

// VaultSlots returns a vaultslots.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) VaultSlots(db dbx.DBTX) vaultslots.Repository {
	return vaultslots.NewPostgresRepository(db)
}

// VaultCases returns a vaultcases.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) VaultCases(db dbx.DBTX) vaultcases.Repository {
	return vaultcases.NewPostgresRepository(db)
}

// Photos returns a photos.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Photos(db dbx.DBTX) photos.Repository {
	return photos.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}
