// Package vaultslots provides the PostgreSQL-backed repository for physical
// case slots. Occupancy writes are issued by the vault allocator only.
package vaultslots

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ravlo/cardvault/internal/common"
	"github.com/ravlo/cardvault/internal/dbx"
	"github.com/ravlo/cardvault/internal/models"
)

// PostgresRepository implements slot storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const slotColumns = `id, case_id, slot_code, status, qr_token, created_at, updated_at`

func scanSlot(row *sql.Row) (*models.VaultCaseSlot, error) {
	var s models.VaultCaseSlot
	err := row.Scan(&s.ID, &s.CaseID, &s.SlotCode, &s.Status, &s.QRToken, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &s, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.VaultCaseSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM vault_case_slots WHERE id = $1`
	return scanSlot(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*models.VaultCaseSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM vault_case_slots WHERE id = $1 FOR UPDATE`
	return scanSlot(r.db.QueryRowContext(ctx, query, id))
}

// LockPair issues a single locking read for both rows. ORDER BY id keeps the
// lock acquisition order identical for every caller touching the same slots,
// which is what prevents two concurrent moves from deadlocking each other.
func (r *PostgresRepository) LockPair(ctx context.Context, idA, idB string) (map[string]*models.VaultCaseSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM vault_case_slots
		WHERE id IN ($1, $2)
		ORDER BY id
		FOR UPDATE
	`
	rows, err := r.db.QueryContext(ctx, query, idA, idB)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make(map[string]*models.VaultCaseSlot, 2)
	for rows.Next() {
		var s models.VaultCaseSlot
		if err := rows.Scan(&s.ID, &s.CaseID, &s.SlotCode, &s.Status, &s.QRToken, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		result[s.ID] = &s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if _, ok := result[idA]; !ok {
		return nil, fmt.Errorf("slot %s: %w", idA, common.ErrNotFound)
	}
	if _, ok := result[idB]; !ok {
		return nil, fmt.Errorf("slot %s: %w", idB, common.ErrNotFound)
	}
	return result, nil
}

func (r *PostgresRepository) SetStatus(ctx context.Context, id string, status models.SlotStatus) error {
	query := `UPDATE vault_case_slots SET status = $2, updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
