package repository

import (
	"context"
	"time"

	"github.com/postline/postline/internal/entity"
)

type PostRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, post *entity.Post) error
	GetByID(ctx context.Context, id string) (*entity.Post, error)
	GetByOwner(ctx context.Context, owner string) ([]*entity.Post, error)
	Delete(ctx context.Context, id string) error

	// Dispatch operations
	GetDuePosts(ctx context.Context, now time.Time) ([]*entity.Post, error)
	ClaimForDispatch(ctx context.Context, id string) error
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, reason string) error

	// Reconciliation operations
	GetStuckSending(ctx context.Context, before time.Time) ([]*entity.Post, error)
	FailStuckSending(ctx context.Context, before time.Time, reason string) (int64, error)
}
