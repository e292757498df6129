package repomanager

import (
	"context"
	"database/sql"

	"github.com/ravlo/cardvault/internal/dbx"
	"github.com/ravlo/cardvault/internal/repositories/auditlogs"
	"github.com/ravlo/cardvault/internal/repositories/photos"
	"github.com/ravlo/cardvault/internal/repositories/sessions"
	"github.com/ravlo/cardvault/internal/repositories/vaultcases"
	"github.com/ravlo/cardvault/internal/repositories/vaultitems"
	"github.com/ravlo/cardvault/internal/repositories/vaultslots"
)

// RepositoryManager vends repositories bound to a DBTX, so services can
// re-bind the same repository code to a transaction handle when they need
// atomicity across rows.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Sessions(db dbx.DBTX) sessions.Repository
	AuditLogs(db dbx.DBTX) auditlogs.Repository
	VaultItems(db dbx.DBTX) vaultitems.Repository
	VaultSlots(db dbx.DBTX) vaultslots.Repository
	VaultCases(db dbx.DBTX) vaultcases.Repository
	Photos(db dbx.DBTX) photos.Repository
}
