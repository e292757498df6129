package vault

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravlo/cardvault/internal/common"
	"github.com/ravlo/cardvault/internal/dbx"
	"github.com/ravlo/cardvault/internal/logging"
	"github.com/ravlo/cardvault/internal/models"
	"github.com/ravlo/cardvault/internal/repositories/auditlogs"
	"github.com/ravlo/cardvault/internal/repositories/photos"
	"github.com/ravlo/cardvault/internal/repositories/sessions"
	"github.com/ravlo/cardvault/internal/repositories/vaultcases"
	"github.com/ravlo/cardvault/internal/repositories/vaultitems"
	"github.com/ravlo/cardvault/internal/repositories/vaultslots"
)

type fakeItemRepo struct {
	items map[string]*models.VaultItem
}

func (f *fakeItemRepo) GetByID(_ context.Context, id string) (*models.VaultItem, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *item
	return &copied, nil
}

func (f *fakeItemRepo) GetForUpdate(ctx context.Context, id string) (*models.VaultItem, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeItemRepo) PlaceInSlot(_ context.Context, itemID, slotID, caseID string) error {
	item, ok := f.items[itemID]
	if !ok {
		return common.ErrNotFound
	}
	item.Status = models.ItemInCase
	item.SlotID = sql.NullString{String: slotID, Valid: true}
	item.CaseID = sql.NullString{String: caseID, Valid: true}
	return nil
}

func (f *fakeItemRepo) ReturnToShop(_ context.Context, itemID string) error {
	item, ok := f.items[itemID]
	if !ok {
		return common.ErrNotFound
	}
	item.Status = models.ItemAssignedToShop
	item.SlotID = sql.NullString{}
	item.CaseID = sql.NullString{}
	return nil
}

type fakeSlotRepo struct {
	slots map[string]*models.VaultCaseSlot
}

func (f *fakeSlotRepo) GetByID(_ context.Context, id string) (*models.VaultCaseSlot, error) {
	slot, ok := f.slots[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *slot
	return &copied, nil
}

func (f *fakeSlotRepo) GetForUpdate(ctx context.Context, id string) (*models.VaultCaseSlot, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeSlotRepo) LockPair(ctx context.Context, idA, idB string) (map[string]*models.VaultCaseSlot, error) {
	a, err := f.GetByID(ctx, idA)
	if err != nil {
		return nil, err
	}
	b, err := f.GetByID(ctx, idB)
	if err != nil {
		return nil, err
	}
	return map[string]*models.VaultCaseSlot{idA: a, idB: b}, nil
}

func (f *fakeSlotRepo) SetStatus(_ context.Context, id string, status models.SlotStatus) error {
	slot, ok := f.slots[id]
	if !ok {
		return common.ErrNotFound
	}
	slot.Status = status
	return nil
}

type fakeCaseRepo struct {
	cases map[string]*models.VaultCase
}

func (f *fakeCaseRepo) GetByID(_ context.Context, id string) (*models.VaultCase, error) {
	c, ok := f.cases[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

type fakeVaultManager struct {
	items *fakeItemRepo
	slots *fakeSlotRepo
	cases *fakeCaseRepo
}

func (m *fakeVaultManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeVaultManager) Sessions(dbx.DBTX) sessions.Repository       { return nil }
func (m *fakeVaultManager) AuditLogs(dbx.DBTX) auditlogs.Repository     { return nil }
func (m *fakeVaultManager) VaultItems(dbx.DBTX) vaultitems.Repository   { return m.items }
func (m *fakeVaultManager) VaultSlots(dbx.DBTX) vaultslots.Repository   { return m.slots }
func (m *fakeVaultManager) VaultCases(dbx.DBTX) vaultcases.Repository   { return m.cases }
func (m *fakeVaultManager) Photos(dbx.DBTX) photos.Repository           { return nil }

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (l nopLogger) With(...any) logging.Logger          { return l }

type allocatorFixture struct {
	mock      sqlmock.Sqlmock
	items     *fakeItemRepo
	slots     *fakeSlotRepo
	cases     *fakeCaseRepo
	allocator *Allocator
}

func newAllocatorFixture(t *testing.T) *allocatorFixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &allocatorFixture{
		mock:  mock,
		items: &fakeItemRepo{items: make(map[string]*models.VaultItem)},
		slots: &fakeSlotRepo{slots: make(map[string]*models.VaultCaseSlot)},
		cases: &fakeCaseRepo{cases: make(map[string]*models.VaultCase)},
	}
	f.allocator = NewAllocator(db, &fakeVaultManager{items: f.items, slots: f.slots, cases: f.cases}, nopLogger{})
	f.allocator.now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }
	return f
}

func (f *allocatorFixture) seedCase(id, shopID string, status models.VaultCaseStatus) {
	f.cases.cases[id] = &models.VaultCase{ID: id, AuthorizedShopID: shopID, Status: status}
}

func (f *allocatorFixture) seedSlot(id, caseID string, status models.SlotStatus) {
	f.slots.slots[id] = &models.VaultCaseSlot{ID: id, CaseID: caseID, Status: status}
}

func (f *allocatorFixture) seedItem(id, shopID string, status models.VaultItemStatus, slotID, caseID string) {
	item := &models.VaultItem{ID: id, ShopIDCurrent: shopID, Status: status}
	if slotID != "" {
		item.SlotID = sql.NullString{String: slotID, Valid: true}
		item.CaseID = sql.NullString{String: caseID, Valid: true}
	}
	f.items.items[id] = item
}

func TestAssignItemToSlot(t *testing.T) {
	f := newAllocatorFixture(t)
	f.seedCase("c1", "shop1", models.CaseInShopActive)
	f.seedSlot("slot1", "c1", models.SlotFree)
	f.seedItem("item1", "shop1", models.ItemAssignedToShop, "", "")

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	res, err := f.allocator.AssignItemToSlot(context.Background(), "item1", "slot1", "shop1")
	require.NoError(t, err)

	assert.Equal(t, models.ItemInCase, res.Item.Status)
	assert.Equal(t, sql.NullString{String: "slot1", Valid: true}, res.Item.SlotID)
	assert.Equal(t, sql.NullString{String: "c1", Valid: true}, res.Item.CaseID)
	assert.Equal(t, models.SlotOccupied, res.Slot.Status)
	assert.Nil(t, res.FreedSlot)

	assert.Equal(t, models.SlotOccupied, f.slots.slots["slot1"].Status)
	assert.Equal(t, models.ItemInCase, f.items.items["item1"].Status)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAssignItemToSlot_RebindFreesOldSlot(t *testing.T) {
	f := newAllocatorFixture(t)
	f.seedCase("c1", "shop1", models.CaseInShopActive)
	f.seedSlot("slot1", "c1", models.SlotOccupied)
	f.seedSlot("slot2", "c1", models.SlotFree)
	f.seedItem("item1", "shop1", models.ItemInCase, "slot1", "c1")

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	res, err := f.allocator.AssignItemToSlot(context.Background(), "item1", "slot2", "shop1")
	require.NoError(t, err)

	require.NotNil(t, res.FreedSlot)
	assert.Equal(t, "slot1", res.FreedSlot.ID)
	assert.Equal(t, models.SlotFree, res.FreedSlot.Status)
	assert.Equal(t, sql.NullString{String: "slot2", Valid: true}, res.Item.SlotID)

	assert.Equal(t, models.SlotFree, f.slots.slots["slot1"].Status)
	assert.Equal(t, models.SlotOccupied, f.slots.slots["slot2"].Status)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAssignItemToSlot_OccupiedSlot(t *testing.T) {
	f := newAllocatorFixture(t)
	f.seedCase("c1", "shop1", models.CaseInShopActive)
	f.seedSlot("slot1", "c1", models.SlotOccupied)
	f.seedItem("item1", "shop1", models.ItemAssignedToShop, "", "")

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.allocator.AssignItemToSlot(context.Background(), "item1", "slot1", "shop1")
	require.ErrorIs(t, err, common.ErrSlotOccupied)

	assert.Equal(t, models.ItemAssignedToShop, f.items.items["item1"].Status)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAssignItemToSlot_OwnershipMismatch(t *testing.T) {
	f := newAllocatorFixture(t)
	f.seedCase("c1", "shop1", models.CaseInShopActive)
	f.seedSlot("slot1", "c1", models.SlotFree)
	f.seedItem("item1", "shop2", models.ItemAssignedToShop, "", "")

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.allocator.AssignItemToSlot(context.Background(), "item1", "slot1", "shop1")
	require.ErrorIs(t, err, common.ErrOwnershipMismatch)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAssignItemToSlot_ItemInTransit(t *testing.T) {
	f := newAllocatorFixture(t)
	f.seedCase("c1", "shop1", models.CaseInShopActive)
	f.seedSlot("slot1", "c1", models.SlotFree)
	f.seedItem("item1", "shop1", models.ItemInTransit, "", "")

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.allocator.AssignItemToSlot(context.Background(), "item1", "slot1", "shop1")
	require.ErrorIs(t, err, common.ErrInvalidState)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAssignItemToSlot_CaseNotActive(t *testing.T) {
	f := newAllocatorFixture(t)
	f.seedCase("c1", "shop1", models.CaseInTransit)
	f.seedSlot("slot1", "c1", models.SlotFree)
	f.seedItem("item1", "shop1", models.ItemAssignedToShop, "", "")

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.allocator.AssignItemToSlot(context.Background(), "item1", "slot1", "shop1")
	require.ErrorIs(t, err, common.ErrInvalidState)
	assert.Equal(t, models.SlotFree, f.slots.slots["slot1"].Status)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAssignItemToSlot_CaseAuthorizedToOtherShop(t *testing.T) {
	f := newAllocatorFixture(t)
	f.seedCase("c1", "shop2", models.CaseInShopActive)
	f.seedSlot("slot1", "c1", models.SlotFree)
	f.seedItem("item1", "shop1", models.ItemAssignedToShop, "", "")

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.allocator.AssignItemToSlot(context.Background(), "item1", "slot1", "shop1")
	require.ErrorIs(t, err, common.ErrOwnershipMismatch)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestMoveItemBetweenSlots(t *testing.T) {
	f := newAllocatorFixture(t)
	f.seedCase("c1", "shop1", models.CaseInShopActive)
	f.seedSlot("slot1", "c1", models.SlotOccupied)
	f.seedSlot("slot2", "c1", models.SlotFree)
	f.seedItem("item1", "shop1", models.ItemInCase, "slot1", "c1")

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	res, err := f.allocator.MoveItemBetweenSlots(context.Background(), "item1", "slot1", "slot2", "shop1")
	require.NoError(t, err)

	assert.Equal(t, sql.NullString{String: "slot2", Valid: true}, res.Item.SlotID)
	assert.Equal(t, models.SlotFree, res.FromSlot.Status)
	assert.Equal(t, models.SlotOccupied, res.ToSlot.Status)

	assert.Equal(t, models.SlotFree, f.slots.slots["slot1"].Status)
	assert.Equal(t, models.SlotOccupied, f.slots.slots["slot2"].Status)
	assert.Equal(t, "slot2", f.items.items["item1"].SlotID.String)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestMoveItemBetweenSlots_SameSlot(t *testing.T) {
	f := newAllocatorFixture(t)

	_, err := f.allocator.MoveItemBetweenSlots(context.Background(), "item1", "slot1", "slot1", "shop1")
	require.ErrorIs(t, err, common.ErrInvalidState)
	// Rejected before any transaction was opened.
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestMoveItemBetweenSlots_ItemNotBoundToSource(t *testing.T) {
	f := newAllocatorFixture(t)
	f.seedCase("c1", "shop1", models.CaseInShopActive)
	f.seedSlot("slot1", "c1", models.SlotOccupied)
	f.seedSlot("slot2", "c1", models.SlotFree)
	f.seedItem("item1", "shop1", models.ItemInCase, "slot9", "c1")

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.allocator.MoveItemBetweenSlots(context.Background(), "item1", "slot1", "slot2", "shop1")
	require.ErrorIs(t, err, common.ErrInvalidState)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestMoveItemBetweenSlots_TargetOccupied(t *testing.T) {
	f := newAllocatorFixture(t)
	f.seedCase("c1", "shop1", models.CaseInShopActive)
	f.seedSlot("slot1", "c1", models.SlotOccupied)
	f.seedSlot("slot2", "c1", models.SlotOccupied)
	f.seedItem("item1", "shop1", models.ItemInCase, "slot1", "c1")

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.allocator.MoveItemBetweenSlots(context.Background(), "item1", "slot1", "slot2", "shop1")
	require.ErrorIs(t, err, common.ErrSlotOccupied)
	assert.Equal(t, models.SlotOccupied, f.slots.slots["slot1"].Status)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestMoveItemBetweenSlots_TargetCaseOtherShop(t *testing.T) {
	f := newAllocatorFixture(t)
	f.seedCase("c1", "shop1", models.CaseInShopActive)
	f.seedCase("c2", "shop2", models.CaseInShopActive)
	f.seedSlot("slot1", "c1", models.SlotOccupied)
	f.seedSlot("slot2", "c2", models.SlotFree)
	f.seedItem("item1", "shop1", models.ItemInCase, "slot1", "c1")

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.allocator.MoveItemBetweenSlots(context.Background(), "item1", "slot1", "slot2", "shop1")
	require.ErrorIs(t, err, common.ErrOwnershipMismatch)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRemoveItemFromSlot(t *testing.T) {
	f := newAllocatorFixture(t)
	f.seedCase("c1", "shop1", models.CaseInShopActive)
	f.seedSlot("slot1", "c1", models.SlotOccupied)
	f.seedItem("item1", "shop1", models.ItemInCase, "slot1", "c1")

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	res, err := f.allocator.RemoveItemFromSlot(context.Background(), "item1", "slot1", "shop1")
	require.NoError(t, err)

	assert.Equal(t, models.ItemAssignedToShop, res.Item.Status)
	assert.False(t, res.Item.SlotID.Valid)
	assert.False(t, res.Item.CaseID.Valid)
	assert.Equal(t, models.SlotFree, res.Slot.Status)

	assert.Equal(t, models.SlotFree, f.slots.slots["slot1"].Status)
	assert.Equal(t, models.ItemAssignedToShop, f.items.items["item1"].Status)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRemoveItemFromSlot_SlotNotOccupied(t *testing.T) {
	f := newAllocatorFixture(t)
	f.seedCase("c1", "shop1", models.CaseInShopActive)
	f.seedSlot("slot1", "c1", models.SlotFree)
	f.seedItem("item1", "shop1", models.ItemInCase, "slot1", "c1")

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.allocator.RemoveItemFromSlot(context.Background(), "item1", "slot1", "shop1")
	require.ErrorIs(t, err, common.ErrSlotNotOccupied)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRemoveItemFromSlot_UnknownItem(t *testing.T) {
	f := newAllocatorFixture(t)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.allocator.RemoveItemFromSlot(context.Background(), "missing", "slot1", "shop1")
	require.ErrorIs(t, err, common.ErrNotFound)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

// Assign, move, remove: the occupancy bookkeeping must round-trip back to two
// free slots and a shop-held item.
func TestAllocator_RoundTrip(t *testing.T) {
	f := newAllocatorFixture(t)
	f.seedCase("c1", "shop1", models.CaseInShopActive)
	f.seedSlot("slot1", "c1", models.SlotFree)
	f.seedSlot("slot2", "c1", models.SlotFree)
	f.seedItem("item1", "shop1", models.ItemAssignedToShop, "", "")

	for i := 0; i < 3; i++ {
		f.mock.ExpectBegin()
		f.mock.ExpectCommit()
	}

	ctx := context.Background()
	_, err := f.allocator.AssignItemToSlot(ctx, "item1", "slot1", "shop1")
	require.NoError(t, err)
	_, err = f.allocator.MoveItemBetweenSlots(ctx, "item1", "slot1", "slot2", "shop1")
	require.NoError(t, err)
	_, err = f.allocator.RemoveItemFromSlot(ctx, "item1", "slot2", "shop1")
	require.NoError(t, err)

	assert.Equal(t, models.SlotFree, f.slots.slots["slot1"].Status)
	assert.Equal(t, models.SlotFree, f.slots.slots["slot2"].Status)

	item := f.items.items["item1"]
	assert.Equal(t, models.ItemAssignedToShop, item.Status)
	assert.False(t, item.SlotID.Valid)
	assert.False(t, item.CaseID.Valid)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}
