// Package vaultitems provides the PostgreSQL-backed repository for tracked
// physical items. Mutations are issued by the vault allocator only.
package vaultitems

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ravlo/cardvault/internal/common"
	"github.com/ravlo/cardvault/internal/dbx"
	"github.com/ravlo/cardvault/internal/models"
)

// PostgresRepository implements item storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const itemColumns = `id, status, shop_id_current, slot_id, case_id, created_at, updated_at`

func scanItem(row *sql.Row) (*models.VaultItem, error) {
	var it models.VaultItem
	err := row.Scan(&it.ID, &it.Status, &it.ShopIDCurrent, &it.SlotID, &it.CaseID, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &it, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.VaultItem, error) {
	query := `SELECT ` + itemColumns + ` FROM vault_items WHERE id = $1`
	return scanItem(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*models.VaultItem, error) {
	query := `SELECT ` + itemColumns + ` FROM vault_items WHERE id = $1 FOR UPDATE`
	return scanItem(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) PlaceInSlot(ctx context.Context, itemID, slotID, caseID string) error {
	query := `
		UPDATE vault_items
		SET status = $2, slot_id = $3, case_id = $4, updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, query, itemID, models.ItemInCase, slotID, caseID)
}

func (r *PostgresRepository) ReturnToShop(ctx context.Context, itemID string) error {
	query := `
		UPDATE vault_items
		SET status = $2, slot_id = NULL, case_id = NULL, updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, query, itemID, models.ItemAssignedToShop)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
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
