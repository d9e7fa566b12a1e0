package service

import (
	"context"
	"errors"
	"time"

	"github.com/learninpublic/scheduler/internal/api/domain"
	"github.com/learninpublic/scheduler/internal/api/linkedin"
	"github.com/learninpublic/scheduler/internal/api/store"
	"github.com/learninpublic/scheduler/pkg/idx"
	"github.com/learninpublic/scheduler/pkg/slogx"
)

// IntegrationService ties LinkedIn OAuth grants to local users.
type IntegrationService struct {
	Store    store.Store
	LinkedIn *linkedin.Client
}

// LinkedInStatus describes whether a user has a connected account.
type LinkedInStatus struct {
	Connected   bool       `json:"connected"`
	URN         string     `json:"urn,omitempty"`
	ConnectedAt *time.Time `json:"connectedAt,omitempty"`
}

// BeginLinkedInAuth builds the authorization redirect URL for a user.
func (s *IntegrationService) BeginLinkedInAuth(userID string, now time.Time) string {
	state := s.LinkedIn.EncodeState(userID, now)
	return s.LinkedIn.AuthorizeURL(state)
}

// CompleteLinkedInAuth verifies the signed state, redeems the callback
// code, fetches the member profile, and upserts the grant keyed by
// (user, member URN).
func (s *IntegrationService) CompleteLinkedInAuth(ctx context.Context, rawState, code string) error {
	l := slogx.FromContext(ctx)

	state, err := s.LinkedIn.DecodeState(rawState, time.Now())
	if err != nil {
		return err
	}

	tokens, err := s.LinkedIn.ExchangeCode(ctx, code)
	if err != nil {
		return err
	}

	profile, err := s.LinkedIn.GetProfile(ctx, tokens.AccessToken)
	if err != nil {
		return err
	}

	err = s.Store.Integrations().UpsertLinkedIn(ctx, domain.LinkedInIntegration{
		ID:           idx.New().String(),
		UserID:       state.UserID,
		MemberURN:    profile.URN,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second),
	})
	if err != nil {
		return err
	}

	l.Info("linkedin account connected",
		"user_id", state.UserID,
		"member_urn", profile.URN,
	)
	return nil
}

// GetLinkedInStatus reports whether the user has a connected account.
func (s *IntegrationService) GetLinkedInStatus(ctx context.Context, userID string) (LinkedInStatus, error) {
	in, err := s.Store.Integrations().GetLinkedInByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LinkedInStatus{Connected: false}, nil
		}
		return LinkedInStatus{}, err
	}

	connectedAt := in.CreatedAt
	return LinkedInStatus{
		Connected:   true,
		URN:         in.MemberURN,
		ConnectedAt: &connectedAt,
	}, nil
}

// DisconnectLinkedIn drops the user's grant. Safe to call when nothing
// is connected.
func (s *IntegrationService) DisconnectLinkedIn(ctx context.Context, userID string) error {
	return s.Store.Integrations().DeleteLinkedIn(ctx, userID)
}
