package sqlite

import (
	"context"
	"time"

	"github.com/learninpublic/scheduler/internal/api/domain"
)

type deadTokensRepo struct {
	db dbtx
}

func (r *deadTokensRepo) CreateDeadToken(ctx context.Context, t domain.DeadToken) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	// INSERT OR IGNORE keeps tombstoning idempotent when the same
	// fingerprint is retired twice in quick succession. created_at is
	// written explicitly so tombstone age keeps sub-second precision.
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO dead_tokens (token_hash, user_id, reason, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		t.TokenHash, t.UserID, t.Reason, t.ExpiresAt, t.CreatedAt)
	return mapErr(err)
}

func (r *deadTokensRepo) GetDeadToken(ctx context.Context, hash string) (domain.DeadToken, error) {
	var t domain.DeadToken
	err := r.db.QueryRowContext(ctx,
		`SELECT token_hash, user_id, reason, expires_at, created_at
		 FROM dead_tokens WHERE token_hash = ?`, hash).
		Scan(&t.TokenHash, &t.UserID, &t.Reason, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		return domain.DeadToken{}, mapErr(err)
	}
	return t, nil
}

func (r *deadTokensRepo) DeleteExpiredDeadTokens(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM dead_tokens WHERE expires_at <= CURRENT_TIMESTAMP`)
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}
