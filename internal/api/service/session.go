package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/learninpublic/scheduler/internal/api/domain"
	"github.com/learninpublic/scheduler/internal/api/store"
	"github.com/learninpublic/scheduler/pkg/cryptox"
	"github.com/learninpublic/scheduler/pkg/idx"
	"github.com/learninpublic/scheduler/pkg/jwtx"
	"github.com/learninpublic/scheduler/pkg/slogx"
)

var (
	ErrInvalidRefresh = errors.New("invalid_refresh_token")

	// ErrReusedRefresh means a retired refresh token was presented again.
	// When rotation surfaces it, every session for the owning user has
	// already been revoked; validation only reports it.
	ErrReusedRefresh = errors.New("refresh_token_reused")
)

// deadTokenRetention is how long tombstones outlive the token they
// replace. Reuse older than this window cannot be told apart from a
// never-issued token, which is acceptable once the JWT itself has
// long expired.
const deadTokenRetention = 60 * 24 * time.Hour

// defaultRotationGrace is how long after a rotation the retired token is
// still treated as a concurrent retry losing the swap race rather than a
// replayed theft. Within it the presenter fails invalid and the winner's
// token stays live.
const defaultRotationGrace = 10 * time.Second

// SessionService owns the lifecycle of refresh-token sessions: issuance,
// rotation, revocation, and enumeration. Access tokens are validated
// purely by signature and never touch the store.
type SessionService struct {
	Store store.Store
	Codec *jwtx.Codec

	// RotationGrace overrides defaultRotationGrace when positive.
	RotationGrace time.Duration
}

func (s *SessionService) rotationGrace() time.Duration {
	if s.RotationGrace > 0 {
		return s.RotationGrace
	}
	return defaultRotationGrace
}

// CreateSession mints a token pair for the user and records the refresh
// token's session row, labelled by device type ("Web App 2", "Mobile App 1").
func (s *SessionService) CreateSession(ctx context.Context, user domain.User, deviceType string) (*domain.TokenPair, domain.Session, error) {
	now := time.Now()

	if deviceType != domain.DeviceTypeMobile {
		deviceType = domain.DeviceTypeWeb
	}

	accessToken, err := s.Codec.IssueAccessToken(user.ID, user.Email, now)
	if err != nil {
		return nil, domain.Session{}, err
	}
	refreshToken, err := s.Codec.IssueRefreshToken(user.ID, now)
	if err != nil {
		return nil, domain.Session{}, err
	}

	var session domain.Session
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		count, err := tx.Sessions().CountUserSessionsByDeviceType(ctx, user.ID, deviceType)
		if err != nil {
			return err
		}

		session = domain.Session{
			ID:         idx.New().String(),
			UserID:     user.ID,
			TokenHash:  cryptox.FingerprintToken(refreshToken),
			DeviceName: deviceLabel(deviceType, count+1),
			DeviceType: deviceType,
			LastUsedAt: now,
			ExpiresAt:  now.Add(s.Codec.RefreshTTL()),
		}
		return tx.Sessions().CreateSession(ctx, session)
	})
	if err != nil {
		return nil, domain.Session{}, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.Codec.AccessTTL(),
	}, session, nil
}

// ValidateAccessToken verifies an access token by signature alone.
func (s *SessionService) ValidateAccessToken(token string) (jwtx.Claims, error) {
	return s.Codec.Verify(token, jwtx.KindAccess)
}

// ValidateSession resolves a refresh token to its live session without
// redeeming it. A tombstoned token reports ErrReusedRefresh, anything
// unknown ErrInvalidRefresh; nothing is revoked on this path.
func (s *SessionService) ValidateSession(ctx context.Context, refreshToken string) (domain.Session, error) {
	if _, err := s.Codec.Verify(refreshToken, jwtx.KindRefresh); err != nil {
		return domain.Session{}, ErrInvalidRefresh
	}

	hash := cryptox.FingerprintToken(refreshToken)
	session, err := s.Store.Sessions().GetSessionByTokenHash(ctx, hash)
	if err == nil {
		session.TokenHash = ""
		return session, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Session{}, err
	}

	if _, err := s.Store.DeadTokens().GetDeadToken(ctx, hash); err == nil {
		return domain.Session{}, ErrReusedRefresh
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.Session{}, err
	}
	return domain.Session{}, ErrInvalidRefresh
}

// RotateSession redeems a refresh token for a fresh pair. The swap is a
// compare-and-swap on the stored fingerprint, so of two concurrent calls
// with the same token exactly one wins; the loser observes a tombstone
// younger than the rotation grace and fails with ErrInvalidRefresh.
// Presenting a token retired longer ago, or one revoked by logout, trips
// the reuse alarm and revokes the user's whole session set.
func (s *SessionService) RotateSession(ctx context.Context, refreshToken string) (*domain.TokenPair, domain.Session, error) {
	now := time.Now()
	l := slogx.FromContext(ctx)

	claims, err := s.Codec.Verify(refreshToken, jwtx.KindRefresh)
	if err != nil {
		return nil, domain.Session{}, ErrInvalidRefresh
	}

	oldHash := cryptox.FingerprintToken(refreshToken)

	newRefresh, err := s.Codec.IssueRefreshToken(claims.Subject, now)
	if err != nil {
		return nil, domain.Session{}, err
	}
	newHash := cryptox.FingerprintToken(newRefresh)

	var (
		session      domain.Session
		user         domain.User
		reusedUserID string
	)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		// A tombstoned fingerprint means this token was already used or
		// revoked.
		if dead, err := tx.DeadTokens().GetDeadToken(ctx, oldHash); err == nil {
			if dead.Reason == domain.DeadReasonRotated && now.Sub(dead.CreatedAt) < s.rotationGrace() {
				// Lost the swap race to a concurrent refresh carrying the
				// same token. The winner's replacement stays live.
				return ErrInvalidRefresh
			}
			reusedUserID = dead.UserID
			return ErrReusedRefresh
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		session, err = tx.Sessions().ReplaceSessionToken(ctx, oldHash, newHash, now.Add(s.Codec.RefreshTTL()))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRefresh
			}
			return err
		}

		if err := tx.DeadTokens().CreateDeadToken(ctx, domain.DeadToken{
			TokenHash: oldHash,
			UserID:    session.UserID,
			Reason:    domain.DeadReasonRotated,
			ExpiresAt: now.Add(deadTokenRetention),
			CreatedAt: now,
		}); err != nil {
			return err
		}

		user, err = tx.Users().GetUserByID(ctx, session.UserID)
		return err
	})
	if errors.Is(err, ErrReusedRefresh) {
		// The failed rotation rolled back, so the revocation runs in its
		// own transaction and commits regardless.
		l.Warn("refresh token reuse detected, revoking all sessions",
			slog.String("user_id", reusedUserID),
		)
		rerr := s.Store.WithTx(ctx, func(tx store.Tx) error {
			_, err := revokeAllLocked(ctx, tx, reusedUserID, now)
			return err
		})
		if rerr != nil {
			return nil, domain.Session{}, rerr
		}
		return nil, domain.Session{}, ErrReusedRefresh
	}
	if err != nil {
		return nil, domain.Session{}, err
	}

	accessToken, err := s.Codec.IssueAccessToken(user.ID, user.Email, now)
	if err != nil {
		return nil, domain.Session{}, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		TokenType:    "Bearer",
		ExpiresIn:    s.Codec.AccessTTL(),
	}, session, nil
}

// RevokeSession retires a single refresh token. Returns true if a live
// session was removed, false if the token was unknown or already dead;
// both outcomes leave the store in the same state, so repeating the call
// is harmless.
func (s *SessionService) RevokeSession(ctx context.Context, refreshToken string) (bool, error) {
	now := time.Now()

	hash := cryptox.FingerprintToken(refreshToken)

	var revoked bool
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		session, err := tx.Sessions().DeleteSessionByTokenHash(ctx, hash)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		}

		revoked = true
		return tx.DeadTokens().CreateDeadToken(ctx, domain.DeadToken{
			TokenHash: hash,
			UserID:    session.UserID,
			Reason:    domain.DeadReasonRevoked,
			ExpiresAt: now.Add(deadTokenRetention),
			CreatedAt: now,
		})
	})
	if err != nil {
		return false, err
	}
	return revoked, nil
}

// RevokeAllSessions removes every live session for the user, tombstoning
// each retired fingerprint. Returns how many sessions were removed.
func (s *SessionService) RevokeAllSessions(ctx context.Context, userID string) (int, error) {
	now := time.Now()

	var count int
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		count, err = revokeAllLocked(ctx, tx, userID, now)
		return err
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ListSessions returns the user's live sessions with token material
// stripped; only the opaque session ID identifies each entry.
func (s *SessionService) ListSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	sessions, err := s.Store.Sessions().ListUserSessions(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		sessions[i].TokenHash = ""
	}
	return sessions, nil
}

// revokeAllLocked deletes all of a user's sessions inside an open tx and
// tombstones their fingerprints.
func revokeAllLocked(ctx context.Context, tx store.Tx, userID string, now time.Time) (int, error) {
	sessions, err := tx.Sessions().DeleteUserSessions(ctx, userID)
	if err != nil {
		return 0, err
	}
	for _, sess := range sessions {
		if err := tx.DeadTokens().CreateDeadToken(ctx, domain.DeadToken{
			TokenHash: sess.TokenHash,
			UserID:    userID,
			Reason:    domain.DeadReasonRevoked,
			ExpiresAt: now.Add(deadTokenRetention),
			CreatedAt: now,
		}); err != nil {
			return 0, err
		}
	}
	return len(sessions), nil
}

func deviceLabel(deviceType string, n int) string {
	if deviceType == domain.DeviceTypeMobile {
		return fmt.Sprintf("Mobile App %d", n)
	}
	return fmt.Sprintf("Web App %d", n)
}
