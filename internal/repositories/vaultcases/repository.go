package vaultcases

import (
	"context"

	"github.com/ravlo/cardvault/internal/models"
)

type Repository interface {
	// GetByID reads the case row. Cases are not row-locked by the
	// allocator; authorization is re-checked inside the same transaction
	// that holds the item/slot locks.
	GetByID(ctx context.Context, id string) (*models.VaultCase, error)
}
