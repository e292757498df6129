package vaultslots

import (
	"context"

	"github.com/ravlo/cardvault/internal/models"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*models.VaultCaseSlot, error)

	// GetForUpdate loads the slot under a row lock (SELECT ... FOR
	// UPDATE). The caller must be inside a transaction.
	GetForUpdate(ctx context.Context, id string) (*models.VaultCaseSlot, error)

	// LockPair locks two slots in one statement, ordered by id, so
	// concurrent operations on overlapping slots always request locks in
	// the same global order. Returns the locked slots keyed by id.
	LockPair(ctx context.Context, idA, idB string) (map[string]*models.VaultCaseSlot, error)

	SetStatus(ctx context.Context, id string, status models.SlotStatus) error
}
