// Package photos provides the PostgreSQL-backed repository for verification
// photo records (the binaries live in object storage).
package photos

import (
	"context"
	"fmt"

	"github.com/ravlo/cardvault/internal/dbx"
	"github.com/ravlo/cardvault/internal/models"
)

// PostgresRepository implements photo record storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, photo *models.VerificationPhoto) error {
	query := `
		INSERT INTO verification_photos (id, session_id, storage_key, uploaded_by_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		photo.ID, photo.SessionID, photo.StorageKey, photo.UploadedByID, photo.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM verification_photos WHERE session_id = $1`
	if err := r.db.QueryRowContext(ctx, query, sessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
