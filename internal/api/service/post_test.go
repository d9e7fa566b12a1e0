package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/learninpublic/scheduler/internal/api/domain"
	"github.com/learninpublic/scheduler/internal/api/store"
	"github.com/stretchr/testify/require"
)

// stubGenerator returns canned drafts without calling any API.
type stubGenerator struct {
	drafts []string
	err    error
}

func (g *stubGenerator) GeneratePosts(ctx context.Context, topic string) ([]string, error) {
	return g.drafts, g.err
}

func TestGenerateSchedulesOnePerDay(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	user := seedUser(t, st, "alice@example.com")

	svc := &PostService{
		Store:     st,
		Generator: &stubGenerator{drafts: []string{"first", "second", "third"}},
	}

	posts, err := svc.Generate(ctx, user.ID, "learning Go", "")
	require.NoError(t, err)
	require.Len(t, posts, 3)

	for i, post := range posts {
		require.Equal(t, domain.PostStatusPending, post.Status)
		require.Equal(t, domain.PlatformLinkedIn, post.Platform, "platform defaults to linkedin")
		require.Equal(t, 10, post.PostTime.Hour())
		require.Zero(t, post.PostTime.Minute())

		if i > 0 {
			require.Equal(t, posts[i-1].PostTime.AddDate(0, 0, 1), post.PostTime)
		}
	}
}

func TestGenerateValidation(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	user := seedUser(t, st, "alice@example.com")
	svc := &PostService{Store: st, Generator: &stubGenerator{drafts: []string{"x"}}}

	t.Run("empty prompt", func(t *testing.T) {
		_, err := svc.Generate(ctx, user.ID, "   ", "")
		require.ErrorIs(t, err, ErrEmptyPrompt)
	})

	t.Run("oversized prompt", func(t *testing.T) {
		_, err := svc.Generate(ctx, user.ID, strings.Repeat("a", MaxPromptLength+1), "")
		require.ErrorIs(t, err, ErrPromptTooLong)
	})

	t.Run("unknown platform", func(t *testing.T) {
		_, err := svc.Generate(ctx, user.ID, "topic", "myspace")
		require.ErrorIs(t, err, ErrInvalidPlatform)
	})
}

func TestListPostsPagination(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	user := seedUser(t, st, "alice@example.com")

	drafts := make([]string, 12)
	for i := range drafts {
		drafts[i] = "draft"
	}
	svc := &PostService{Store: st, Generator: &stubGenerator{drafts: drafts}}

	_, err := svc.Generate(ctx, user.ID, "topic", "")
	require.NoError(t, err)

	posts, page, err := svc.ListPosts(ctx, store.PostFilter{UserID: user.ID, Page: 1, PerPage: 5})
	require.NoError(t, err)
	require.Len(t, posts, 5)
	require.Equal(t, 12, page.TotalCount)
	require.Equal(t, 3, page.TotalPages)
	require.True(t, page.HasNextPage)
	require.False(t, page.HasPrevPage)

	posts, page, err = svc.ListPosts(ctx, store.PostFilter{UserID: user.ID, Page: 3, PerPage: 5})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	require.False(t, page.HasNextPage)
	require.True(t, page.HasPrevPage)
}

func TestUpdateContent(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	user := seedUser(t, st, "alice@example.com")
	svc := &PostService{Store: st, Generator: &stubGenerator{drafts: []string{"original"}}}

	posts, err := svc.Generate(ctx, user.ID, "topic", "")
	require.NoError(t, err)
	post := posts[0]

	updated, err := svc.UpdateContent(ctx, user.ID, post.ID, "rewritten")
	require.NoError(t, err)
	require.Equal(t, "rewritten", updated.Content)

	t.Run("rejects oversized content", func(t *testing.T) {
		_, err := svc.UpdateContent(ctx, user.ID, post.ID, strings.Repeat("a", domain.MaxPostLength+1))
		require.ErrorIs(t, err, ErrContentTooLong)
	})

	t.Run("rejects blank content", func(t *testing.T) {
		_, err := svc.UpdateContent(ctx, user.ID, post.ID, "  ")
		require.ErrorIs(t, err, ErrEmptyContent)
	})

	t.Run("other users cannot touch the post", func(t *testing.T) {
		stranger := seedUser(t, st, "bob@example.com")
		_, err := svc.UpdateContent(ctx, stranger.ID, post.ID, "hijacked")
		require.ErrorIs(t, err, ErrPostNotFound)
	})

	t.Run("posted content is immutable", func(t *testing.T) {
		require.NoError(t, st.Posts().MarkPostPosted(ctx, post.ID, time.Now()))
		_, err := svc.UpdateContent(ctx, user.ID, post.ID, "too late")
		require.ErrorIs(t, err, ErrPostAlreadyOut)
	})
}

func TestReschedule(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	user := seedUser(t, st, "alice@example.com")
	svc := &PostService{Store: st, Generator: &stubGenerator{drafts: []string{"draft"}}}

	posts, err := svc.Generate(ctx, user.ID, "topic", "")
	require.NoError(t, err)
	post := posts[0]

	future := time.Now().Add(48 * time.Hour).Truncate(time.Second)
	updated, err := svc.Reschedule(ctx, user.ID, post.ID, future)
	require.NoError(t, err)
	require.WithinDuration(t, future, updated.PostTime, time.Second)

	t.Run("past times rejected", func(t *testing.T) {
		_, err := svc.Reschedule(ctx, user.ID, post.ID, time.Now().Add(-time.Hour))
		require.ErrorIs(t, err, ErrPastSchedule)
	})
}

func TestDeletePost(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	user := seedUser(t, st, "alice@example.com")
	svc := &PostService{Store: st, Generator: &stubGenerator{drafts: []string{"a", "b"}}}

	posts, err := svc.Generate(ctx, user.ID, "topic", "")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, user.ID, posts[0].ID))
	_, err = svc.GetPost(ctx, user.ID, posts[0].ID)
	require.ErrorIs(t, err, ErrPostNotFound)

	t.Run("posted content cannot be deleted", func(t *testing.T) {
		require.NoError(t, st.Posts().MarkPostPosted(ctx, posts[1].ID, time.Now()))
		require.ErrorIs(t, svc.Delete(ctx, user.ID, posts[1].ID), ErrPostAlreadyOut)
	})
}

func TestStatsAndRecent(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	user := seedUser(t, st, "alice@example.com")
	svc := &PostService{Store: st, Generator: &stubGenerator{drafts: []string{"a", "b", "c"}}}

	posts, err := svc.Generate(ctx, user.ID, "topic", "")
	require.NoError(t, err)

	require.NoError(t, st.Posts().MarkPostPosted(ctx, posts[0].ID, time.Now()))
	require.NoError(t, st.Posts().MarkPostFailed(ctx, posts[1].ID, "network error"))

	stats, err := svc.Stats(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, domain.PostStats{Total: 3, Pending: 1, Posted: 1, Failed: 1}, stats)

	recent, err := svc.Recent(ctx, user.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
}
