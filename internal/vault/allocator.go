// Package vault implements the slot allocator: the only component that binds
// physical items to case slots.
//
// The load-bearing idiom is lock-then-revalidate. Every operation first
// acquires row locks on the rows it will touch (item first, then slots,
// always through the same code path), then validates business rules against
// the locked rows' current values. Values read before a lock is granted may
// be stale by the time it is; validating on them is a correctness bug, not a
// style choice. Any validation miss aborts the enclosing transaction, so no
// partial slot/item mutation ever survives.
package vault

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ravlo/cardvault/internal/common"
	"github.com/ravlo/cardvault/internal/dbx"
	"github.com/ravlo/cardvault/internal/logging"
	"github.com/ravlo/cardvault/internal/models"
	"github.com/ravlo/cardvault/internal/repositories/repomanager"
	"github.com/ravlo/cardvault/internal/repositories/vaultcases"
)

// Allocator moves vault items into, between, and out of case slots with
// exactly-once occupancy guarantees under concurrent requests.
type Allocator struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	now         func() time.Time
}

// NewAllocator constructs an Allocator.
func NewAllocator(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *Allocator {
	return &Allocator{db: db, repomanager: m, logger: logger, now: time.Now}
}

// AssignResult returns both updated records of an assignment; FreedSlot is
// set when the item was previously bound to a different slot.
type AssignResult struct {
	Item      *models.VaultItem
	Slot      *models.VaultCaseSlot
	FreedSlot *models.VaultCaseSlot
}

// MoveResult returns the three records touched by a move.
type MoveResult struct {
	Item     *models.VaultItem
	FromSlot *models.VaultCaseSlot
	ToSlot   *models.VaultCaseSlot
}

// RemoveResult returns both updated records of a removal.
type RemoveResult struct {
	Item *models.VaultItem
	Slot *models.VaultCaseSlot
}

// AssignItemToSlot binds the item to the slot on behalf of the shop. If the
// item was already bound to a different slot, that slot is freed in the same
// transaction.
func (a *Allocator) AssignItemToSlot(ctx context.Context, itemID, slotID, shopID string) (*AssignResult, error) {
	var result *AssignResult

	err := dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		itemRepo := a.repomanager.VaultItems(tx)
		slotRepo := a.repomanager.VaultSlots(tx)

		item, err := itemRepo.GetForUpdate(ctx, itemID)
		if err != nil {
			return fmt.Errorf("lock item %s: %w", itemID, err)
		}

		var slot, oldSlot *models.VaultCaseSlot
		if item.SlotID.Valid && item.SlotID.String != slotID {
			pair, err := slotRepo.LockPair(ctx, item.SlotID.String, slotID)
			if err != nil {
				return fmt.Errorf("lock slots: %w", err)
			}
			oldSlot = pair[item.SlotID.String]
			slot = pair[slotID]
		} else {
			slot, err = slotRepo.GetForUpdate(ctx, slotID)
			if err != nil {
				return fmt.Errorf("lock slot %s: %w", slotID, err)
			}
		}

		// Validation uses the locked rows only.
		if item.Status != models.ItemAssignedToShop && item.Status != models.ItemInCase {
			return fmt.Errorf("%w: item %s is %s", common.ErrInvalidState, itemID, item.Status)
		}
		if item.ShopIDCurrent != shopID {
			return fmt.Errorf("%w: item %s is held by shop %s", common.ErrOwnershipMismatch, itemID, item.ShopIDCurrent)
		}
		if slot.Status != models.SlotFree {
			return fmt.Errorf("%w: slot %s", common.ErrSlotOccupied, slotID)
		}
		if err := a.checkCase(ctx, a.repomanager.VaultCases(tx), slot.CaseID, shopID); err != nil {
			return err
		}

		if oldSlot != nil {
			if err := slotRepo.SetStatus(ctx, oldSlot.ID, models.SlotFree); err != nil {
				return fmt.Errorf("free old slot %s: %w", oldSlot.ID, err)
			}
			oldSlot.Status = models.SlotFree
		}

		if err := itemRepo.PlaceInSlot(ctx, itemID, slotID, slot.CaseID); err != nil {
			return fmt.Errorf("place item: %w", err)
		}
		if err := slotRepo.SetStatus(ctx, slotID, models.SlotOccupied); err != nil {
			return fmt.Errorf("occupy slot %s: %w", slotID, err)
		}

		item.Status = models.ItemInCase
		item.SlotID = sql.NullString{String: slotID, Valid: true}
		item.CaseID = sql.NullString{String: slot.CaseID, Valid: true}
		item.UpdatedAt = a.now()
		slot.Status = models.SlotOccupied

		result = &AssignResult{Item: item, Slot: slot, FreedSlot: oldSlot}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.logger.Info(ctx, "item assigned to slot", "item_id", itemID, "slot_id", slotID, "shop_id", shopID)
	return result, nil
}

// MoveItemBetweenSlots rebinds the item from one slot to another. Both slots
// are locked in a single ordered batch before any validation.
func (a *Allocator) MoveItemBetweenSlots(ctx context.Context, itemID, fromSlotID, toSlotID, shopID string) (*MoveResult, error) {
	if fromSlotID == toSlotID {
		return nil, fmt.Errorf("%w: source and target slot are the same", common.ErrInvalidState)
	}

	var result *MoveResult

	err := dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		itemRepo := a.repomanager.VaultItems(tx)
		slotRepo := a.repomanager.VaultSlots(tx)
		caseRepo := a.repomanager.VaultCases(tx)

		item, err := itemRepo.GetForUpdate(ctx, itemID)
		if err != nil {
			return fmt.Errorf("lock item %s: %w", itemID, err)
		}
		pair, err := slotRepo.LockPair(ctx, fromSlotID, toSlotID)
		if err != nil {
			return fmt.Errorf("lock slots: %w", err)
		}
		fromSlot, toSlot := pair[fromSlotID], pair[toSlotID]

		if item.Status != models.ItemInCase {
			return fmt.Errorf("%w: item %s is %s, not in a case", common.ErrInvalidState, itemID, item.Status)
		}
		if !item.SlotID.Valid || item.SlotID.String != fromSlotID {
			return fmt.Errorf("%w: item %s is not bound to slot %s", common.ErrInvalidState, itemID, fromSlotID)
		}
		if item.ShopIDCurrent != shopID {
			return fmt.Errorf("%w: item %s is held by shop %s", common.ErrOwnershipMismatch, itemID, item.ShopIDCurrent)
		}
		if fromSlot.Status != models.SlotOccupied {
			return fmt.Errorf("%w: slot %s", common.ErrSlotNotOccupied, fromSlotID)
		}
		if toSlot.Status != models.SlotFree {
			return fmt.Errorf("%w: slot %s", common.ErrSlotOccupied, toSlotID)
		}
		if err := a.checkCase(ctx, caseRepo, fromSlot.CaseID, shopID); err != nil {
			return err
		}
		if toSlot.CaseID != fromSlot.CaseID {
			if err := a.checkCase(ctx, caseRepo, toSlot.CaseID, shopID); err != nil {
				return err
			}
		}

		if err := itemRepo.PlaceInSlot(ctx, itemID, toSlotID, toSlot.CaseID); err != nil {
			return fmt.Errorf("place item: %w", err)
		}
		if err := slotRepo.SetStatus(ctx, fromSlotID, models.SlotFree); err != nil {
			return fmt.Errorf("free slot %s: %w", fromSlotID, err)
		}
		if err := slotRepo.SetStatus(ctx, toSlotID, models.SlotOccupied); err != nil {
			return fmt.Errorf("occupy slot %s: %w", toSlotID, err)
		}

		item.SlotID = sql.NullString{String: toSlotID, Valid: true}
		item.CaseID = sql.NullString{String: toSlot.CaseID, Valid: true}
		item.UpdatedAt = a.now()
		fromSlot.Status = models.SlotFree
		toSlot.Status = models.SlotOccupied

		result = &MoveResult{Item: item, FromSlot: fromSlot, ToSlot: toSlot}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.logger.Info(ctx, "item moved between slots",
		"item_id", itemID, "from_slot_id", fromSlotID, "to_slot_id", toSlotID, "shop_id", shopID)
	return result, nil
}

// RemoveItemFromSlot unbinds the item and reverts it to ASSIGNED_TO_SHOP.
func (a *Allocator) RemoveItemFromSlot(ctx context.Context, itemID, slotID, shopID string) (*RemoveResult, error) {
	var result *RemoveResult

	err := dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		itemRepo := a.repomanager.VaultItems(tx)
		slotRepo := a.repomanager.VaultSlots(tx)

		item, err := itemRepo.GetForUpdate(ctx, itemID)
		if err != nil {
			return fmt.Errorf("lock item %s: %w", itemID, err)
		}
		slot, err := slotRepo.GetForUpdate(ctx, slotID)
		if err != nil {
			return fmt.Errorf("lock slot %s: %w", slotID, err)
		}

		if item.Status != models.ItemInCase {
			return fmt.Errorf("%w: item %s is %s, not in a case", common.ErrInvalidState, itemID, item.Status)
		}
		if !item.SlotID.Valid || item.SlotID.String != slotID {
			return fmt.Errorf("%w: item %s is not bound to slot %s", common.ErrInvalidState, itemID, slotID)
		}
		if item.ShopIDCurrent != shopID {
			return fmt.Errorf("%w: item %s is held by shop %s", common.ErrOwnershipMismatch, itemID, item.ShopIDCurrent)
		}
		if slot.Status != models.SlotOccupied {
			return fmt.Errorf("%w: slot %s", common.ErrSlotNotOccupied, slotID)
		}
		if err := a.checkCase(ctx, a.repomanager.VaultCases(tx), slot.CaseID, shopID); err != nil {
			return err
		}

		if err := itemRepo.ReturnToShop(ctx, itemID); err != nil {
			return fmt.Errorf("return item: %w", err)
		}
		if err := slotRepo.SetStatus(ctx, slotID, models.SlotFree); err != nil {
			return fmt.Errorf("free slot %s: %w", slotID, err)
		}

		item.Status = models.ItemAssignedToShop
		item.SlotID = sql.NullString{}
		item.CaseID = sql.NullString{}
		item.UpdatedAt = a.now()
		slot.Status = models.SlotFree

		result = &RemoveResult{Item: item, Slot: slot}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.logger.Info(ctx, "item removed from slot", "item_id", itemID, "slot_id", slotID, "shop_id", shopID)
	return result, nil
}

// checkCase verifies the slot's owning case is active and authorized to the
// requesting shop. Runs inside the transaction holding the slot lock, so the
// read is consistent with the locked slot row.
func (a *Allocator) checkCase(ctx context.Context, repo vaultcases.Repository, caseID, shopID string) error {
	c, err := repo.GetByID(ctx, caseID)
	if err != nil {
		return fmt.Errorf("load case %s: %w", caseID, err)
	}
	if c.AuthorizedShopID != shopID {
		return fmt.Errorf("%w: case %s is authorized to shop %s", common.ErrOwnershipMismatch, caseID, c.AuthorizedShopID)
	}
	if c.Status != models.CaseInShopActive {
		return fmt.Errorf("%w: case %s is %s", common.ErrInvalidState, caseID, c.Status)
	}
	return nil
}
