package service

import (
	"context"
	"time"

	"github.com/postline/postline/internal/entity"
	"github.com/postline/postline/pkg/telegram"
)

// PostService определяет интерфейс для операций с постами
type PostService interface {
	// Основные операции
	CreatePost(ctx context.Context, req *CreatePostRequest) (*entity.Post, error)
	GetPost(ctx context.Context, id string) (*entity.Post, error)
	GetUserPosts(ctx context.Context, owner string) ([]*entity.Post, error)
	DeletePost(ctx context.Context, id string) error
}

// DispatchService runs one delivery pass over every due post.
type DispatchService interface {
	RunTick(ctx context.Context) (*TickSummary, error)
}

// Sender is the outbound side of a dispatch: the Telegram adapter in
// production, a fake in tests.
type Sender interface {
	Deliver(ctx context.Context, chatID, text string, images []string) (*telegram.Result, error)
}

type CreatePostRequest struct {
	Owner         string    `json:"owner" binding:"required"`
	Content       string    `json:"content"`
	Images        []string  `json:"images"`
	ChatIDs       []string  `json:"chat_ids"`
	ScheduledTime time.Time `json:"scheduled_time" binding:"required"`
}

// ChatResult is the outcome of delivering one post to one chat target.
type ChatResult struct {
	ChatID    string `json:"chat_id"`
	OK        bool   `json:"ok"`
	MessageID int64  `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// DispatchResult is the per-post entry of a tick summary. The persisted
// status stays coarse (all-or-nothing across chats); the per-chat outcomes
// are surfaced here so an operator can see which target failed.
type DispatchResult struct {
	ID        string            `json:"id"`
	Status    entity.PostStatus `json:"status"`
	Error     string            `json:"error,omitempty"`
	MessageID int64             `json:"messageId,omitempty"`
	Chats     []ChatResult      `json:"chats,omitempty"`
}

type TickSummary struct {
	Count   int              `json:"count"`
	Results []DispatchResult `json:"results"`
}
