// Package auditlogs provides the PostgreSQL-backed repository for the
// append-only escrow audit ledger.
package auditlogs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ravlo/cardvault/internal/dbx"
	"github.com/ravlo/cardvault/internal/models"
)

// PostgresRepository implements audit storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, entry *models.EscrowAuditLog) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("metadata marshal error: %w", err)
	}

	query := `
		INSERT INTO escrow_audit_logs
			(id, session_id, action_type, performed_by_id, performed_by_role,
			 old_status, new_status, metadata, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = r.db.ExecContext(ctx, query,
		entry.ID, entry.SessionID, entry.ActionType, entry.PerformedByID, entry.PerformedByRole,
		entry.OldStatus, entry.NewStatus, metadata, entry.IPAddress, entry.UserAgent, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SelectBySession(ctx context.Context, sessionID string) ([]*models.EscrowAuditLog, error) {
	query := `
		SELECT id, session_id, action_type, performed_by_id, performed_by_role,
		       old_status, new_status, metadata, ip_address, user_agent, created_at
		FROM escrow_audit_logs
		WHERE session_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.EscrowAuditLog
	for rows.Next() {
		var entry models.EscrowAuditLog
		var metadata []byte
		if err := rows.Scan(
			&entry.ID, &entry.SessionID, &entry.ActionType, &entry.PerformedByID, &entry.PerformedByRole,
			&entry.OldStatus, &entry.NewStatus, &metadata, &entry.IPAddress, &entry.UserAgent, &entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("metadata unmarshal error: %w", err)
			}
		}
		result = append(result, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
