package domain

import "time"

// Device types a session can be bound to. Anything unrecognised is
// treated as a web client.
const (
	DeviceTypeWeb    = "web"
	DeviceTypeMobile = "mobile"
)

// Session models a live refresh-token record. Exactly one session row
// exists per live refresh token; the raw token never touches the DB,
// only its fingerprint.
type Session struct {
	ID         string
	UserID     string
	TokenHash  string // deterministic fingerprint (base64url SHA-256)
	DeviceName string // e.g. "Web App 2", fixed at issuance
	DeviceType string // web or mobile
	LastUsedAt time.Time
	ExpiresAt  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Reasons a refresh token can be retired. Retired fingerprints are kept
// as tombstones so a replayed token is distinguishable from a never
// issued one.
const (
	DeadReasonRotated = "rotated"
	DeadReasonRevoked = "revoked"
)

// DeadToken is a tombstone for a retired refresh token fingerprint.
type DeadToken struct {
	TokenHash string
	UserID    string
	Reason    string // rotated or revoked
	ExpiresAt time.Time
	CreatedAt time.Time
}
