package store

import (
	"context"
	"errors"
	"time"

	"github.com/learninpublic/scheduler/internal/api/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
	ErrUnavailable   = errors.New("store: unavailable")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and to actively stop callers from accidentally nesting
// transactions.
type Store interface {
	Users() Users
	Sessions() Sessions
	DeadTokens() DeadTokens
	Posts() Posts
	Integrations() Integrations

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// Use it for multi-step operations that must be atomic (e.g., refresh rotation).
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources (optional for sqlite).
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used during login.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// DeleteUser cascades to sessions and posts (per schema).
	DeleteUser(ctx context.Context, userID string) error
}

type Sessions interface {
	// CreateSession stores a new live session record. The token hash is
	// unique across all sessions.
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSessionByTokenHash returns the live session holding this fingerprint.
	GetSessionByTokenHash(ctx context.Context, hash string) (domain.Session, error)

	// ReplaceSessionToken atomically swaps oldHash for newHash on a live
	// session, updating last_used_at and expires_at. Exactly one caller can
	// win for a given oldHash; losers get ErrNotFound.
	ReplaceSessionToken(ctx context.Context, oldHash, newHash string, expiresAt time.Time) (domain.Session, error)

	// DeleteSessionByTokenHash removes a session by fingerprint. Returns
	// ErrNotFound if no live session holds it.
	DeleteSessionByTokenHash(ctx context.Context, hash string) (domain.Session, error)

	// DeleteUserSessions removes every session for a user and returns the
	// removed records so their fingerprints can be tombstoned.
	DeleteUserSessions(ctx context.Context, userID string) ([]domain.Session, error)

	// ListUserSessions returns a user's sessions, newest first.
	ListUserSessions(ctx context.Context, userID string) ([]domain.Session, error)

	// CountUserSessionsByDeviceType counts a user's sessions for one device
	// type. Used to derive device labels at issuance.
	CountUserSessionsByDeviceType(ctx context.Context, userID, deviceType string) (int, error)

	// TouchSession bumps last_used_at for a live session.
	TouchSession(ctx context.Context, hash string) error

	// DeleteExpiredSessions is housekeeping.
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

type DeadTokens interface {
	// CreateDeadToken writes a tombstone for a retired fingerprint.
	CreateDeadToken(ctx context.Context, t domain.DeadToken) error

	// GetDeadToken returns the tombstone for a fingerprint, if any.
	GetDeadToken(ctx context.Context, hash string) (domain.DeadToken, error)

	// DeleteExpiredDeadTokens prunes tombstones past their expiry.
	DeleteExpiredDeadTokens(ctx context.Context) (int64, error)
}

type Posts interface {
	// CreatePost inserts a new scheduled post.
	CreatePost(ctx context.Context, p domain.Post) error

	// GetPostByID returns one post; callers check ownership.
	GetPostByID(ctx context.Context, id string) (domain.Post, error)

	// ListUserPosts returns a page of a user's posts filtered by status
	// and platform (empty string matches all), ordered by post_time.
	ListUserPosts(ctx context.Context, f PostFilter) ([]domain.Post, int, error)

	// ListRecentPosts returns the user's most recently created posts.
	ListRecentPosts(ctx context.Context, userID string, limit int) ([]domain.Post, error)

	// LastScheduledTime returns the latest pending post_time for a user, or
	// ErrNotFound when nothing is scheduled.
	LastScheduledTime(ctx context.Context, userID string) (time.Time, error)

	// UpdatePostContent replaces content and bumps updated_at.
	UpdatePostContent(ctx context.Context, id, userID, content string) error

	// UpdatePostSchedule moves a pending post to a new time.
	UpdatePostSchedule(ctx context.Context, id, userID string, postTime time.Time) error

	// MarkPostPosted flips status to posted and records posted_at.
	MarkPostPosted(ctx context.Context, id string, postedAt time.Time) error

	// MarkPostFailed flips status to failed and records the error.
	MarkPostFailed(ctx context.Context, id string, errMsg string) error

	// DeletePosts removes the given posts owned by the user, returning how
	// many rows were removed.
	DeletePosts(ctx context.Context, userID string, ids []string) (int64, error)

	// GetUserPostStats aggregates counts by status.
	GetUserPostStats(ctx context.Context, userID string) (domain.PostStats, error)

	// ListDuePosts returns pending posts whose post_time has passed.
	ListDuePosts(ctx context.Context, now time.Time, limit int) ([]domain.Post, error)
}

// PostFilter narrows ListUserPosts. Zero values match everything.
type PostFilter struct {
	UserID   string
	Status   string
	Platform string
	Page     int
	PerPage  int
}

type Integrations interface {
	// UpsertLinkedIn inserts or refreshes the grant for (user, member URN).
	UpsertLinkedIn(ctx context.Context, in domain.LinkedInIntegration) error

	// GetLinkedInByUserID returns the user's LinkedIn grant.
	GetLinkedInByUserID(ctx context.Context, userID string) (domain.LinkedInIntegration, error)

	// DeleteLinkedIn removes the user's LinkedIn grant.
	DeleteLinkedIn(ctx context.Context, userID string) error
}
