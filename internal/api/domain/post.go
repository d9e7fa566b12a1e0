package domain

import "time"

// Platforms a post can be scheduled for.
const (
	PlatformLinkedIn = "linkedin"
	PlatformX        = "x"
	PlatformHashnode = "hashnode"
)

// Post lifecycle states.
const (
	PostStatusPending = "pending"
	PostStatusPosted  = "posted"
	PostStatusFailed  = "failed"
)

// MaxPostLength is the longest content a single post may carry.
const MaxPostLength = 3000

type Post struct {
	ID           string
	UserID       string
	Platform     string
	Content      string
	PostTime     time.Time // when the post is scheduled to publish
	Status       string
	PostedAt     *time.Time
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PostStats summarises a user's scheduled posts by status.
type PostStats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Posted  int `json:"posted"`
	Failed  int `json:"failed"`
}
