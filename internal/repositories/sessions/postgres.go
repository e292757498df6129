// Package sessions provides the PostgreSQL-backed repository for escrow
// session rows. Status writes go through the escrow transition service only;
// this package just executes them.
package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ravlo/cardvault/internal/common"
	"github.com/ravlo/cardvault/internal/dbx"
	"github.com/ravlo/cardvault/internal/models"
)

// PostgresRepository implements session storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = `id, status, qr_token, created_at, last_activity_at, expires_at`

func scanSession(row *sql.Row) (*models.EscrowSession, error) {
	var s models.EscrowSession
	err := row.Scan(&s.ID, &s.Status, &s.QRToken, &s.CreatedAt, &s.LastActivityAt, &s.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &s, nil
}

func (r *PostgresRepository) Create(ctx context.Context, session *models.EscrowSession) error {
	query := `
		INSERT INTO escrow_sessions (id, status, qr_token, created_at, last_activity_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		session.ID, session.Status, session.QRToken, session.CreatedAt, session.LastActivityAt, session.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.EscrowSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM escrow_sessions WHERE id = $1`
	return scanSession(r.db.QueryRowContext(ctx, query, id))
}

// GetForUpdate blocks until any competing transaction holding the row lock
// commits or rolls back, then returns the fresh row.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*models.EscrowSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM escrow_sessions WHERE id = $1 FOR UPDATE`
	return scanSession(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status models.SessionStatus, lastActivity time.Time) error {
	query := `UPDATE escrow_sessions SET status = $2, last_activity_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, lastActivity)
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

func (r *PostgresRepository) SetQRToken(ctx context.Context, id, token string) error {
	query := `UPDATE escrow_sessions SET qr_token = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, token)
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

func (r *PostgresRepository) QRTokenExists(ctx context.Context, token string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM escrow_sessions WHERE qr_token = $1)`
	if err := r.db.QueryRowContext(ctx, query, token).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) SelectDueForExpiry(ctx context.Context, now time.Time, limit int) ([]string, error) {
	query := `
		SELECT id FROM escrow_sessions
		WHERE status IN ($1, $2) AND expires_at IS NOT NULL AND expires_at < $3
		ORDER BY expires_at
		LIMIT $4
	`
	rows, err := r.db.QueryContext(ctx, query,
		models.SessionBooked, models.SessionCheckinPending, now, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
