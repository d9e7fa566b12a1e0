package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/learninpublic/scheduler/internal/api/domain"
	"github.com/learninpublic/scheduler/internal/api/store"
)

type postsRepo struct {
	db dbtx
}

const postColumns = `id, user_id, platform, content, post_time, status, posted_at, error_message, created_at, updated_at`

func scanPost(row interface{ Scan(...any) error }) (domain.Post, error) {
	var (
		p        domain.Post
		postedAt sql.NullTime
		errMsg   sql.NullString
	)
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Platform,
		&p.Content,
		&p.PostTime,
		&p.Status,
		&postedAt,
		&errMsg,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	p.PostedAt = mapNullTimePtr(postedAt)
	p.ErrorMessage = mapNullString(errMsg)
	return p, err
}

func (r *postsRepo) CreatePost(ctx context.Context, p domain.Post) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (id, user_id, platform, content, post_time, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Platform, p.Content, p.PostTime, p.Status)
	return mapErr(err)
}

func (r *postsRepo) GetPostByID(ctx context.Context, id string) (domain.Post, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	p, err := scanPost(row)
	if err != nil {
		return domain.Post{}, mapErr(err)
	}
	return p, nil
}

func (r *postsRepo) ListUserPosts(ctx context.Context, f store.PostFilter) ([]domain.Post, int, error) {
	where := []string{"user_id = ?"}
	args := []any{f.UserID}

	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Platform != "" {
		where = append(where, "platform = ?")
		args = append(args, f.Platform)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}

	page := max(f.Page, 1)
	perPage := f.PerPage
	if perPage <= 0 {
		perPage = 10
	}
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE `+cond+`
		 ORDER BY post_time ASC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, 0, mapErr(err)
		}
		posts = append(posts, p)
	}
	return posts, total, mapErr(rows.Err())
}

func (r *postsRepo) ListRecentPosts(ctx context.Context, userID string, limit int) ([]domain.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE user_id = ?
		 ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		posts = append(posts, p)
	}
	return posts, mapErr(rows.Err())
}

func (r *postsRepo) LastScheduledTime(ctx context.Context, userID string) (time.Time, error) {
	var t sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(post_time) FROM posts WHERE user_id = ? AND status = 'pending'`, userID).
		Scan(&t)
	if err != nil {
		return time.Time{}, mapErr(err)
	}
	if !t.Valid {
		return time.Time{}, store.ErrNotFound
	}
	return t.Time, nil
}

func (r *postsRepo) UpdatePostContent(ctx context.Context, id, userID, content string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE posts SET content = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND user_id = ?`,
		content, id, userID)
	if err != nil {
		return mapErr(err)
	}
	return requireAffected(res)
}

func (r *postsRepo) UpdatePostSchedule(ctx context.Context, id, userID string, postTime time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE posts SET post_time = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND user_id = ? AND status = 'pending'`,
		postTime, id, userID)
	if err != nil {
		return mapErr(err)
	}
	return requireAffected(res)
}

func (r *postsRepo) MarkPostPosted(ctx context.Context, id string, postedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE posts SET status = 'posted', posted_at = ?, error_message = NULL, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`, postedAt, id)
	if err != nil {
		return mapErr(err)
	}
	return requireAffected(res)
}

func (r *postsRepo) MarkPostFailed(ctx context.Context, id string, errMsg string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE posts SET status = 'failed', error_message = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`, errMsg, id)
	if err != nil {
		return mapErr(err)
	}
	return requireAffected(res)
}

func (r *postsRepo) DeletePosts(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}

	res, err := r.db.ExecContext(ctx,
		`DELETE FROM posts WHERE user_id = ? AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}

func (r *postsRepo) GetUserPostStats(ctx context.Context, userID string) (domain.PostStats, error) {
	var stats domain.PostStats
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN status = 'posted' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
		 FROM posts WHERE user_id = ?`, userID).
		Scan(&stats.Total, &stats.Pending, &stats.Posted, &stats.Failed)
	if err != nil {
		return domain.PostStats{}, mapErr(err)
	}
	return stats, nil
}

func (r *postsRepo) ListDuePosts(ctx context.Context, now time.Time, limit int) ([]domain.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts
		 WHERE status = 'pending' AND post_time <= ?
		 ORDER BY post_time ASC LIMIT ?`, now, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		posts = append(posts, p)
	}
	return posts, mapErr(rows.Err())
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return mapErr(err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
