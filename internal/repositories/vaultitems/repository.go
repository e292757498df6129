package vaultitems

import (
	"context"

	"github.com/ravlo/cardvault/internal/models"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*models.VaultItem, error)

	// GetForUpdate loads the item under a row lock (SELECT ... FOR
	// UPDATE). The caller must be inside a transaction.
	GetForUpdate(ctx context.Context, id string) (*models.VaultItem, error)

	// PlaceInSlot binds the item to a slot: status IN_CASE, slot and case
	// references set.
	PlaceInSlot(ctx context.Context, itemID, slotID, caseID string) error

	// ReturnToShop reverts the item to ASSIGNED_TO_SHOP and clears the
	// slot/case references.
	ReturnToShop(ctx context.Context, itemID string) error
}
