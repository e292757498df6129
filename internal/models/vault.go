package models

import (
	"database/sql"
	"time"
)

// VaultCaseStatus labels the deployment state of a physical case.
type VaultCaseStatus string

const (
	CaseInShopActive VaultCaseStatus = "IN_SHOP_ACTIVE"
	CaseInTransit    VaultCaseStatus = "IN_TRANSIT"
	CaseRetired      VaultCaseStatus = "RETIRED"
)

// VaultCase is a physical case with a fixed number of slots, bound to exactly
// one authorized shop while active. Slots under a case may only be
// manipulated while the case is IN_SHOP_ACTIVE and the requesting shop equals
// AuthorizedShopID.
type VaultCase struct {
	ID               string
	AuthorizedShopID string
	Status           VaultCaseStatus
	Label            string
	CreatedAt        time.Time
}

// SlotStatus is the occupancy state of a slot. FREE iff no VaultItem
// currently references the slot.
type SlotStatus string

const (
	SlotFree     SlotStatus = "FREE"
	SlotOccupied SlotStatus = "OCCUPIED"
)

// VaultCaseSlot is one physical compartment of a case.
type VaultCaseSlot struct {
	ID        string
	CaseID    string
	SlotCode  string
	Status    SlotStatus
	QRToken   sql.NullString
	CreatedAt time.Time
	UpdatedAt time.Time
}

// VaultItemStatus labels where a tracked physical card currently is.
type VaultItemStatus string

const (
	ItemAssignedToShop VaultItemStatus = "ASSIGNED_TO_SHOP"
	ItemInCase         VaultItemStatus = "IN_CASE"
	ItemInTransit      VaultItemStatus = "IN_TRANSIT"
	ItemReturned       VaultItemStatus = "RETURNED_TO_OWNER"
)

// VaultItem is a physical card/object tracked through the vault. SlotID is
// non-null iff Status is IN_CASE, and then always points to a slot whose case
// matches CaseID and whose case's authorized shop matches ShopIDCurrent.
// Mutated by the vault allocator only.
type VaultItem struct {
	ID            string
	Status        VaultItemStatus
	ShopIDCurrent string
	SlotID        sql.NullString
	CaseID        sql.NullString
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
