// Package vaultcases provides the PostgreSQL-backed repository for physical
// vault cases.
package vaultcases

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ravlo/cardvault/internal/common"
	"github.com/ravlo/cardvault/internal/dbx"
	"github.com/ravlo/cardvault/internal/models"
)

// PostgresRepository implements case storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.VaultCase, error) {
	query := `SELECT id, authorized_shop_id, status, label, created_at FROM vault_cases WHERE id = $1`
	var c models.VaultCase
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.AuthorizedShopID, &c.Status, &c.Label, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &c, nil
}
