package service

import (
	"context"
	"encoding/json"
	"time"

	repository "github.com/postline/postline/internal/database/postgres"
	"github.com/postline/postline/internal/entity"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type postService struct {
	postRepo repository.PostRepository
}

func NewPostService(postRepo repository.PostRepository) PostService {
	return &postService{postRepo: postRepo}
}

// CreatePost validates and persists a new scheduled post. Image and chat
// lists are stored as JSON arrays; the dispatcher re-reads them through
// imageref so rows written by older clients stay compatible.
func (s *postService) CreatePost(ctx context.Context, req *CreatePostRequest) (*entity.Post, error) {
	if len(req.Content) > entity.MaxContentLength {
		return nil, entity.ErrContentTooLong
	}
	if len(req.Images) > entity.MaxImagesPerPost {
		return nil, entity.ErrTooManyImages
	}
	if req.Content == "" && len(req.Images) == 0 {
		return nil, entity.ErrEmptyPost
	}
	if req.ScheduledTime.Before(time.Now()) {
		return nil, entity.ErrScheduleInPast
	}

	imageURLs, err := encodeList(req.Images)
	if err != nil {
		return nil, err
	}
	chatIDs, err := encodeList(req.ChatIDs)
	if err != nil {
		return nil, err
	}

	post := &entity.Post{
		ID:            uuid.NewString(),
		Owner:         req.Owner,
		Content:       req.Content,
		ImageURLs:     imageURLs,
		ChatIDs:       chatIDs,
		ScheduledTime: req.ScheduledTime.UTC(),
		Status:        entity.PostStatusScheduled,
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"post_id":        post.ID,
		"owner":          post.Owner,
		"scheduled_time": post.ScheduledTime,
	}).Info("Post scheduled")

	return post, nil
}

func (s *postService) GetPost(ctx context.Context, id string) (*entity.Post, error) {
	return s.postRepo.GetByID(ctx, id)
}

func (s *postService) GetUserPosts(ctx context.Context, owner string) ([]*entity.Post, error) {
	return s.postRepo.GetByOwner(ctx, owner)
}

// DeletePost removes a post while it is still scheduled. Terminal posts are
// kept as delivery history.
func (s *postService) DeletePost(ctx context.Context, id string) error {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if post.Status != entity.PostStatusScheduled {
		return entity.ErrPostNotEditable
	}
	return s.postRepo.Delete(ctx, id)
}

func encodeList(items []string) (string, error) {
	if len(items) == 0 {
		return "", nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
