package models

import "time"

// VerificationPhoto records one photo taken during verification of a session.
// The binary itself lives in object storage under StorageKey; the row exists
// so the verification guard can count evidence server-side.
type VerificationPhoto struct {
	ID           string
	SessionID    string
	StorageKey   string
	UploadedByID string
	CreatedAt    time.Time
}
