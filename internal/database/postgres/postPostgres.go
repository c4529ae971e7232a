package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/postline/postline/internal/entity"
)

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, owner, content, COALESCE(image_url, ''), COALESCE(image_urls, ''),
		COALESCE(chat_ids, ''), scheduled_time, status, COALESCE(error, ''), created_at, updated_at`

func scanPost(row interface{ Scan(...interface{}) error }) (*entity.Post, error) {
	var post entity.Post
	err := row.Scan(
		&post.ID,
		&post.Owner,
		&post.Content,
		&post.ImageURL,
		&post.ImageURLs,
		&post.ChatIDs,
		&post.ScheduledTime,
		&post.Status,
		&post.Error,
		&post.CreatedAt,
		&post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// Create persists a new scheduled post
func (r *postRepository) Create(ctx context.Context, post *entity.Post) error {
	query := `
		INSERT INTO posts (
			id, owner, content, image_url, image_urls, chat_ids,
			scheduled_time, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	now := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		post.ID,
		post.Owner,
		post.Content,
		post.ImageURL,
		post.ImageURLs,
		post.ChatIDs,
		post.ScheduledTime,
		post.Status,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create post: %v", err)
	}

	post.CreatedAt = now
	post.UpdatedAt = now
	return nil
}

// GetByID retrieves a post by its ID
func (r *postRepository) GetByID(ctx context.Context, id string) (*entity.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %v", err)
	}
	return post, nil
}

func (r *postRepository) GetByOwner(ctx context.Context, owner string) ([]*entity.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE owner = $1 ORDER BY scheduled_time DESC`

	rows, err := r.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to get posts by owner: %v", err)
	}
	defer rows.Close()

	return collectPosts(rows)
}

func (r *postRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %v", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %v", err)
	}
	if affected == 0 {
		return entity.ErrPostNotFound
	}
	return nil
}

// GetDuePosts returns every post with status='scheduled' whose scheduled
// time is at or before now. An empty result is not an error.
func (r *postRepository) GetDuePosts(ctx context.Context, now time.Time) ([]*entity.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts
		WHERE status = 'scheduled' AND scheduled_time <= $1
		ORDER BY scheduled_time ASC
	`

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due posts: %v", err)
	}
	defer rows.Close()

	return collectPosts(rows)
}

// ClaimForDispatch atomically flips scheduled -> sending. The conditional
// UPDATE is the serialization point between overlapping ticks: only the
// caller that sees a row affected owns the post for this cycle.
func (r *postRepository) ClaimForDispatch(ctx context.Context, id string) error {
	query := `
		UPDATE posts
		SET status = 'sending', updated_at = $2
		WHERE id = $1 AND status = 'scheduled'
	`

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to claim post %s: %v", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check claim result: %v", err)
	}
	if affected == 0 {
		return entity.ErrAlreadyClaimed
	}
	return nil
}

func (r *postRepository) MarkSent(ctx context.Context, id string) error {
	return r.updateStatus(ctx, id, entity.PostStatusSent, "")
}

func (r *postRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	return r.updateStatus(ctx, id, entity.PostStatusFailed, reason)
}

func (r *postRepository) updateStatus(ctx context.Context, id string, status entity.PostStatus, reason string) error {
	query := `
		UPDATE posts
		SET status = $2, error = $3, updated_at = $4
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, status, reason, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update post %s status: %v", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check status update result: %v", err)
	}
	if affected == 0 {
		return entity.ErrPostNotFound
	}
	return nil
}

// GetStuckSending returns posts left in 'sending' from before the cutoff,
// i.e. a previous tick crashed between claim and write-back.
func (r *postRepository) GetStuckSending(ctx context.Context, before time.Time) ([]*entity.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts
		WHERE status = 'sending' AND updated_at < $1
		ORDER BY updated_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stuck posts: %v", err)
	}
	defer rows.Close()

	return collectPosts(rows)
}

func (r *postRepository) FailStuckSending(ctx context.Context, before time.Time, reason string) (int64, error) {
	query := `
		UPDATE posts
		SET status = 'failed', error = $2, updated_at = $3
		WHERE status = 'sending' AND updated_at < $1
	`

	result, err := r.db.ExecContext(ctx, query, before, reason, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to expire stuck posts: %v", err)
	}

	return result.RowsAffected()
}

func collectPosts(rows *sql.Rows) ([]*entity.Post, error) {
	posts := make([]*entity.Post, 0)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %v", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %v", err)
	}
	return posts, nil
}
