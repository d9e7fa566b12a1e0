package sqlite

import (
	"context"

	"github.com/learninpublic/scheduler/internal/api/domain"
)

type integrationsRepo struct {
	db dbtx
}

func (r *integrationsRepo) UpsertLinkedIn(ctx context.Context, in domain.LinkedInIntegration) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO linkedin_integrations (id, user_id, member_urn, access_token, refresh_token, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, member_urn) DO UPDATE SET
		     access_token = excluded.access_token,
		     refresh_token = excluded.refresh_token,
		     expires_at = excluded.expires_at,
		     updated_at = CURRENT_TIMESTAMP`,
		in.ID, in.UserID, in.MemberURN, in.AccessToken, in.RefreshToken, in.ExpiresAt)
	return mapErr(err)
}

func (r *integrationsRepo) GetLinkedInByUserID(ctx context.Context, userID string) (domain.LinkedInIntegration, error) {
	var in domain.LinkedInIntegration
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, member_urn, access_token, refresh_token, expires_at, created_at, updated_at
		 FROM linkedin_integrations WHERE user_id = ?
		 ORDER BY updated_at DESC LIMIT 1`, userID).
		Scan(&in.ID, &in.UserID, &in.MemberURN, &in.AccessToken, &in.RefreshToken,
			&in.ExpiresAt, &in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		return domain.LinkedInIntegration{}, mapErr(err)
	}
	return in, nil
}

func (r *integrationsRepo) DeleteLinkedIn(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM linkedin_integrations WHERE user_id = ?`, userID)
	return mapErr(err)
}
