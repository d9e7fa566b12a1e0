package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/learninpublic/scheduler/internal/api/domain"
	"github.com/learninpublic/scheduler/internal/api/store"
)

// PostSharer publishes a text post on behalf of a connected member.
// Satisfied by linkedin.Client.
type PostSharer interface {
	SharePost(ctx context.Context, accessToken, memberURN, text string) error
}

// publishBatchSize caps how many due posts a single tick picks up.
const publishBatchSize = 50

// PublisherService drains due pending posts and publishes them through the
// owner's connected platform account. Posts that cannot be published are
// marked failed with the reason, never retried silently.
type PublisherService struct {
	Store    store.Store
	LinkedIn PostSharer
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewPublisherService creates a publisher with the given tick interval.
// If interval is 0 or negative, defaults to 1 minute.
func NewPublisherService(st store.Store, sharer PostSharer, logger *slog.Logger, interval time.Duration) *PublisherService {
	if interval <= 0 {
		interval = time.Minute
	}

	return &PublisherService{
		Store:    st,
		LinkedIn: sharer,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker. Non-blocking; call Stop to shut down.
func (s *PublisherService) Start() {
	go s.run()
	s.Logger.Info("publisher service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
func (s *PublisherService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("publisher service stopped")
}

func (s *PublisherService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.PublishDue(context.Background(), time.Now())
		case <-s.stopCh:
			return
		}
	}
}

// PublishDue publishes every pending post whose scheduled time has passed.
// Each post is handled independently so one failure never blocks the rest.
func (s *PublisherService) PublishDue(ctx context.Context, now time.Time) {
	posts, err := s.Store.Posts().ListDuePosts(ctx, now, publishBatchSize)
	if err != nil {
		s.Logger.Error("failed to list due posts", "error", err)
		return
	}

	for _, post := range posts {
		if err := s.publish(ctx, post, now); err != nil {
			s.Logger.Error("failed to publish post",
				"post_id", post.ID, "user_id", post.UserID, "error", err)
			if err := s.Store.Posts().MarkPostFailed(ctx, post.ID, err.Error()); err != nil {
				s.Logger.Error("failed to mark post failed", "post_id", post.ID, "error", err)
			}
			continue
		}

		if err := s.Store.Posts().MarkPostPosted(ctx, post.ID, now); err != nil {
			s.Logger.Error("failed to mark post posted", "post_id", post.ID, "error", err)
			continue
		}
		s.Logger.Info("post published", "post_id", post.ID, "user_id", post.UserID, "platform", post.Platform)
	}
}

func (s *PublisherService) publish(ctx context.Context, post domain.Post, now time.Time) error {
	if post.Platform != domain.PlatformLinkedIn {
		return errors.New("publishing is not supported for platform " + post.Platform)
	}

	integration, err := s.Store.Integrations().GetLinkedInByUserID(ctx, post.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errors.New("LinkedIn account is not connected")
		}
		return err
	}
	if !integration.ExpiresAt.After(now) {
		return errors.New("LinkedIn access token has expired")
	}

	return s.LinkedIn.SharePost(ctx, integration.AccessToken, integration.MemberURN, post.Content)
}
