package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/learninpublic/scheduler/internal/api/ai"
	"github.com/learninpublic/scheduler/internal/api/domain"
	"github.com/learninpublic/scheduler/internal/api/store"
	"github.com/learninpublic/scheduler/pkg/idx"
)

var (
	ErrPostNotFound    = errors.New("post_not_found")
	ErrPostAlreadyOut  = errors.New("post_already_posted")
	ErrContentTooLong  = errors.New("content_too_long")
	ErrEmptyContent    = errors.New("content_required")
	ErrPromptTooLong   = errors.New("prompt_too_long")
	ErrEmptyPrompt     = errors.New("prompt_required")
	ErrPastSchedule    = errors.New("post_time_in_past")
	ErrInvalidPlatform = errors.New("invalid_platform")
)

// MaxPromptLength bounds the topic given to the generator.
const MaxPromptLength = 1000

// publishHour is the local hour drafts are scheduled at, one per day.
const publishHour = 10

type PostService struct {
	Store     store.Store
	Generator ai.Generator
}

// Pagination describes the page of a ListPosts result.
type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalCount  int  `json:"totalCount"`
	Limit       int  `json:"limit"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

// Generate asks the AI for drafts on a topic and schedules them one per
// day at 10:00 local time starting today.
func (s *PostService) Generate(ctx context.Context, userID, prompt, platform string) ([]domain.Post, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if len(prompt) > MaxPromptLength {
		return nil, ErrPromptTooLong
	}
	if platform == "" {
		platform = domain.PlatformLinkedIn
	}
	if !validPlatform(platform) {
		return nil, ErrInvalidPlatform
	}

	drafts, err := s.Generator.GeneratePosts(ctx, prompt)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	posts := make([]domain.Post, 0, len(drafts))

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		for i, content := range drafts {
			post := domain.Post{
				ID:       idx.New().String(),
				UserID:   userID,
				Platform: platform,
				Content:  content,
				PostTime: publishTime(now, i),
				Status:   domain.PostStatusPending,
			}
			if err := tx.Posts().CreatePost(ctx, post); err != nil {
				return err
			}
			posts = append(posts, post)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// ListPosts returns a page of the user's posts with pagination metadata.
func (s *PostService) ListPosts(ctx context.Context, f store.PostFilter) ([]domain.Post, Pagination, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 10
	}

	posts, total, err := s.Store.Posts().ListUserPosts(ctx, f)
	if err != nil {
		return nil, Pagination{}, err
	}

	totalPages := (total + f.PerPage - 1) / f.PerPage
	return posts, Pagination{
		CurrentPage: f.Page,
		TotalPages:  totalPages,
		TotalCount:  total,
		Limit:       f.PerPage,
		HasNextPage: f.Page < totalPages,
		HasPrevPage: f.Page > 1,
	}, nil
}

// GetPost fetches one post, enforcing ownership.
func (s *PostService) GetPost(ctx context.Context, userID, postID string) (domain.Post, error) {
	post, err := s.Store.Posts().GetPostByID(ctx, postID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Post{}, ErrPostNotFound
		}
		return domain.Post{}, err
	}
	if post.UserID != userID {
		return domain.Post{}, ErrPostNotFound
	}
	return post, nil
}

// UpdateContent replaces a post's content. Posted content is immutable.
func (s *PostService) UpdateContent(ctx context.Context, userID, postID, content string) (domain.Post, error) {
	if strings.TrimSpace(content) == "" {
		return domain.Post{}, ErrEmptyContent
	}
	if len(content) > domain.MaxPostLength {
		return domain.Post{}, ErrContentTooLong
	}

	post, err := s.GetPost(ctx, userID, postID)
	if err != nil {
		return domain.Post{}, err
	}
	if post.Status == domain.PostStatusPosted {
		return domain.Post{}, ErrPostAlreadyOut
	}

	if err := s.Store.Posts().UpdatePostContent(ctx, postID, userID, content); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Post{}, ErrPostNotFound
		}
		return domain.Post{}, err
	}
	return s.GetPost(ctx, userID, postID)
}

// Reschedule moves a pending post to a new future time.
func (s *PostService) Reschedule(ctx context.Context, userID, postID string, postTime time.Time) (domain.Post, error) {
	if postTime.Before(time.Now()) {
		return domain.Post{}, ErrPastSchedule
	}

	post, err := s.GetPost(ctx, userID, postID)
	if err != nil {
		return domain.Post{}, err
	}
	if post.Status == domain.PostStatusPosted {
		return domain.Post{}, ErrPostAlreadyOut
	}

	if err := s.Store.Posts().UpdatePostSchedule(ctx, postID, userID, postTime); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Post{}, ErrPostNotFound
		}
		return domain.Post{}, err
	}
	return s.GetPost(ctx, userID, postID)
}

// Delete removes a post that has not been published yet.
func (s *PostService) Delete(ctx context.Context, userID, postID string) error {
	post, err := s.GetPost(ctx, userID, postID)
	if err != nil {
		return err
	}
	if post.Status == domain.PostStatusPosted {
		return ErrPostAlreadyOut
	}

	_, err = s.Store.Posts().DeletePosts(ctx, userID, []string{postID})
	return err
}

// Stats aggregates the user's posts by status.
func (s *PostService) Stats(ctx context.Context, userID string) (domain.PostStats, error) {
	return s.Store.Posts().GetUserPostStats(ctx, userID)
}

// Recent returns the user's most recently created posts.
func (s *PostService) Recent(ctx context.Context, userID string, limit int) ([]domain.Post, error) {
	if limit < 1 || limit > 20 {
		limit = 5
	}
	return s.Store.Posts().ListRecentPosts(ctx, userID, limit)
}

// publishTime is 10:00 local time, dayOffset days after base.
func publishTime(base time.Time, dayOffset int) time.Time {
	day := base.AddDate(0, 0, dayOffset)
	return time.Date(day.Year(), day.Month(), day.Day(), publishHour, 0, 0, 0, day.Location())
}

func validPlatform(p string) bool {
	switch p {
	case domain.PlatformLinkedIn, domain.PlatformX, domain.PlatformHashnode:
		return true
	}
	return false
}

