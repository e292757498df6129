package auditlogs

import (
	"context"

	"github.com/ravlo/cardvault/internal/models"
)

type Repository interface {
	// Insert appends one ledger entry. Entries are never updated or
	// deleted afterwards.
	Insert(ctx context.Context, entry *models.EscrowAuditLog) error
	SelectBySession(ctx context.Context, sessionID string) ([]*models.EscrowAuditLog, error)
}
