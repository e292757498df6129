// Package models holds the persistent domain records of the escrow and vault
// subsystems. Status enums live next to the records they describe; the legal
// movements between statuses are defined in the escrow package.
package models

import (
	"database/sql"
	"time"
)

// SessionStatus labels the lifecycle state of an escrow session.
type SessionStatus string

const (
	SessionCreated                SessionStatus = "CREATED"
	SessionBooked                 SessionStatus = "BOOKED"
	SessionCheckinPending         SessionStatus = "CHECKIN_PENDING"
	SessionCheckedIn              SessionStatus = "CHECKED_IN"
	SessionVerificationInProgress SessionStatus = "VERIFICATION_IN_PROGRESS"
	SessionVerificationPassed     SessionStatus = "VERIFICATION_PASSED"
	SessionVerificationFailed     SessionStatus = "VERIFICATION_FAILED"
	SessionReleaseRequested       SessionStatus = "RELEASE_REQUESTED"
	SessionReleaseApproved        SessionStatus = "RELEASE_APPROVED"
	SessionCompleted              SessionStatus = "COMPLETED"
	SessionDisputed               SessionStatus = "DISPUTED"
	SessionCancelled              SessionStatus = "CANCELLED"
	SessionExpired                SessionStatus = "EXPIRED"
)

// Terminal reports whether no further status writes are permitted.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

// Role identifies the kind of actor performing an operation. Resolution of a
// request to a role happens in the excluded identity layer; the core only
// checks permissions against it.
type Role string

const (
	RoleBuyer     Role = "BUYER"
	RoleSeller    Role = "SELLER"
	RoleMerchant  Role = "MERCHANT"
	RoleModerator Role = "MODERATOR"
	RoleAdmin     Role = "ADMIN"
	// RoleSystem is used by the expiry sweeper and other internal callers.
	RoleSystem Role = "SYSTEM"
)

// Actor is the resolved identity behind a mutating request.
type Actor struct {
	ID   string
	Role Role
}

// EscrowSession represents one mediated trade. Rows are never hard-deleted;
// they are retained for audit and dispute history. Status is mutated
// exclusively through the escrow transition service.
type EscrowSession struct {
	ID             string
	Status         SessionStatus
	QRToken        sql.NullString
	CreatedAt      time.Time
	LastActivityAt time.Time
	ExpiresAt      sql.NullTime
}
