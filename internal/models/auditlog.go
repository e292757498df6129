package models

import (
	"database/sql"
	"time"
)

// EscrowAuditLog is an append-only ledger entry documenting one mutating
// action on an escrow session. Rows are never updated or deleted after
// insert.
type EscrowAuditLog struct {
	ID              string
	SessionID       string
	ActionType      string
	PerformedByID   string
	PerformedByRole Role
	// OldStatus/NewStatus are null for non-transition actions
	// (messages, photo uploads, ...).
	OldStatus sql.NullString
	NewStatus sql.NullString
	Metadata  map[string]string
	IPAddress sql.NullString
	UserAgent sql.NullString
	CreatedAt time.Time
}

// Provenance carries optional network context recorded with an audit entry.
type Provenance struct {
	IPAddress string
	UserAgent string
}
