package sessions

import (
	"context"
	"time"

	"github.com/ravlo/cardvault/internal/models"
)

type Repository interface {
	Create(ctx context.Context, session *models.EscrowSession) error
	GetByID(ctx context.Context, id string) (*models.EscrowSession, error)

	// GetForUpdate loads the session under a row lock (SELECT ... FOR
	// UPDATE). The caller must be inside a transaction.
	GetForUpdate(ctx context.Context, id string) (*models.EscrowSession, error)

	UpdateStatus(ctx context.Context, id string, status models.SessionStatus, lastActivity time.Time) error
	SetQRToken(ctx context.Context, id, token string) error
	QRTokenExists(ctx context.Context, token string) (bool, error)

	// SelectDueForExpiry returns ids of sessions in BOOKED or
	// CHECKIN_PENDING whose expiry deadline has passed.
	SelectDueForExpiry(ctx context.Context, now time.Time, limit int) ([]string, error)
}
