package photos

import (
	"context"

	"github.com/ravlo/cardvault/internal/models"
)

type Repository interface {
	Insert(ctx context.Context, photo *models.VerificationPhoto) error
	CountBySession(ctx context.Context, sessionID string) (int, error)
}
