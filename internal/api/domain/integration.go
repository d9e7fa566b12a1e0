package domain

import "time"

// LinkedInIntegration holds the OAuth grant we keep for publishing on a
// user's behalf. One row per (user, member URN) pair.
type LinkedInIntegration struct {
	ID           string
	UserID       string
	MemberURN    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
