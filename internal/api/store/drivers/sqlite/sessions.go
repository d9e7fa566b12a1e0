package sqlite

import (
	"context"
	"time"

	"github.com/learninpublic/scheduler/internal/api/domain"
	"github.com/learninpublic/scheduler/internal/api/store"
)

type sessionsRepo struct {
	db dbtx
}

const sessionColumns = `id, user_id, token_hash, device_name, device_type, last_used_at, expires_at, created_at, updated_at`

func scanSession(row interface{ Scan(...any) error }) (domain.Session, error) {
	var s domain.Session
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.TokenHash,
		&s.DeviceName,
		&s.DeviceType,
		&s.LastUsedAt,
		&s.ExpiresAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	return s, err
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, token_hash, device_name, device_type, last_used_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.TokenHash, s.DeviceName, s.DeviceType, s.LastUsedAt, s.ExpiresAt)
	return mapErr(err)
}

func (r *sessionsRepo) GetSessionByTokenHash(ctx context.Context, hash string) (domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE token_hash = ?`, hash)
	s, err := scanSession(row)
	if err != nil {
		return domain.Session{}, mapErr(err)
	}
	return s, nil
}

// ReplaceSessionToken performs the rotation swap as a single conditional
// UPDATE. Concurrent callers presenting the same oldHash race on the WHERE
// clause; exactly one matches a row and everyone else sees ErrNotFound.
func (r *sessionsRepo) ReplaceSessionToken(ctx context.Context, oldHash, newHash string, expiresAt time.Time) (domain.Session, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions
		 SET token_hash = ?, last_used_at = CURRENT_TIMESTAMP, expires_at = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE token_hash = ?`,
		newHash, expiresAt, oldHash)
	if err != nil {
		return domain.Session{}, mapErr(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Session{}, mapErr(err)
	}
	if affected == 0 {
		return domain.Session{}, store.ErrNotFound
	}

	return r.GetSessionByTokenHash(ctx, newHash)
}

func (r *sessionsRepo) DeleteSessionByTokenHash(ctx context.Context, hash string) (domain.Session, error) {
	s, err := r.GetSessionByTokenHash(ctx, hash)
	if err != nil {
		return domain.Session{}, err
	}

	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE token_hash = ?`, hash); err != nil {
		return domain.Session{}, mapErr(err)
	}
	return s, nil
}

func (r *sessionsRepo) DeleteUserSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	sessions, err := r.ListUserSessions(ctx, userID)
	if err != nil {
		return nil, err
	}

	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return nil, mapErr(err)
	}
	return sessions, nil
}

func (r *sessionsRepo) ListUserSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		sessions = append(sessions, s)
	}
	return sessions, mapErr(rows.Err())
}

func (r *sessionsRepo) CountUserSessionsByDeviceType(ctx context.Context, userID, deviceType string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE user_id = ? AND device_type = ?`,
		userID, deviceType).Scan(&count)
	if err != nil {
		return 0, mapErr(err)
	}
	return count, nil
}

func (r *sessionsRepo) TouchSession(ctx context.Context, hash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET last_used_at = CURRENT_TIMESTAMP WHERE token_hash = ?`, hash)
	return mapErr(err)
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= CURRENT_TIMESTAMP`)
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}
