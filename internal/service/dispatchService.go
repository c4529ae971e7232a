package service

import (
	"context"
	"errors"
	"time"

	repository "github.com/postline/postline/internal/database/postgres"
	"github.com/postline/postline/internal/entity"
	"github.com/postline/postline/internal/imageref"
	"github.com/postline/postline/pkg/deadletter"
	"github.com/postline/postline/pkg/lock"
	"github.com/postline/postline/pkg/retry"
	"github.com/postline/postline/pkg/telegram"

	"github.com/sirupsen/logrus"
)

type dispatchService struct {
	postRepo repository.PostRepository
	sender   Sender
	tickLock *lock.TickLock
	journal  *deadletter.Journal
	retryMgr *retry.RetryManager
}

func NewDispatchService(
	postRepo repository.PostRepository,
	sender Sender,
	tickLock *lock.TickLock,
	journal *deadletter.Journal,
	retryMgr *retry.RetryManager,
) DispatchService {
	return &dispatchService{
		postRepo: postRepo,
		sender:   sender,
		tickLock: tickLock,
		journal:  journal,
		retryMgr: retryMgr,
	}
}

// RunTick выполняет один проход по всем готовым к отправке постам.
// Posts are processed sequentially, in scheduled_time order; a slow
// delivery delays the rest of the tick but never another tick's claims.
func (s *dispatchService) RunTick(ctx context.Context) (*TickSummary, error) {
	if s.sender == nil {
		return nil, entity.ErrMissingToken
	}

	acquired, err := s.tickLock.Acquire(ctx)
	if err != nil {
		logrus.Warnf("Tick lock unavailable, proceeding unlocked: %v", err)
	} else if !acquired {
		return nil, entity.ErrTickInProgress
	} else {
		defer func() {
			if err := s.tickLock.Release(context.Background()); err != nil {
				logrus.Warnf("Failed to release tick lock: %v", err)
			}
		}()
	}

	// A fetch error fails the whole tick: nothing has been claimed yet.
	duePosts, err := s.postRepo.GetDuePosts(ctx, time.Now())
	if err != nil {
		return nil, err
	}

	summary := &TickSummary{Results: make([]DispatchResult, 0, len(duePosts))}
	for _, post := range duePosts {
		result := s.dispatchPost(ctx, post)
		if result == nil {
			// Lost the claim race to a concurrent tick.
			continue
		}
		summary.Results = append(summary.Results, *result)
	}
	summary.Count = len(summary.Results)

	logrus.WithField("count", summary.Count).Info("Dispatch tick completed")
	return summary, nil
}

// dispatchPost runs the scheduled -> {sent, failed} transition for one post.
// Delivery errors are local to the post; only the claim and write-back talk
// to storage.
func (s *dispatchService) dispatchPost(ctx context.Context, post *entity.Post) *DispatchResult {
	if err := s.postRepo.ClaimForDispatch(ctx, post.ID); err != nil {
		if errors.Is(err, entity.ErrAlreadyClaimed) {
			logrus.WithField("post_id", post.ID).Debug("Post claimed by another tick, skipping")
			return nil
		}
		logrus.Errorf("Failed to claim post %s: %v", post.ID, err)
		return nil
	}

	chats := imageref.Resolve(post.ChatIDs)
	if len(chats) == 0 {
		reason := entity.ErrNoDestination.Error()
		s.writeBack(ctx, post.ID, entity.PostStatusFailed, reason, 0)
		return &DispatchResult{ID: post.ID, Status: entity.PostStatusFailed, Error: reason}
	}

	images := imageref.Resolve(post.ImageURLs)
	if len(images) == 0 && post.ImageURL != "" {
		// Legacy rows carry a single image in its own column.
		images = []string{post.ImageURL}
	}

	result := &DispatchResult{ID: post.ID, Chats: make([]ChatResult, 0, len(chats))}
	for _, chatID := range chats {
		deliveryResult, err := s.sender.Deliver(ctx, chatID, post.Content, images)
		if err != nil {
			// Any failed target fails the post overall; remaining targets
			// are still attempted so the summary shows every outcome.
			errText := deliveryErrorText(err)
			result.Chats = append(result.Chats, ChatResult{ChatID: chatID, Error: errText})
			if result.Error == "" {
				result.Error = errText
			}
			continue
		}
		result.Chats = append(result.Chats, ChatResult{
			ChatID:    chatID,
			OK:        true,
			MessageID: deliveryResult.FirstMessageID(),
		})
		if result.MessageID == 0 {
			result.MessageID = deliveryResult.FirstMessageID()
		}
	}

	if result.Error != "" {
		result.Status = entity.PostStatusFailed
		s.writeBack(ctx, post.ID, entity.PostStatusFailed, result.Error, result.MessageID)
	} else {
		result.Status = entity.PostStatusSent
		s.writeBack(ctx, post.ID, entity.PostStatusSent, "", result.MessageID)
	}

	return result
}

// deliveryErrorText keeps the platform's own description when present so
// the stored failure reason reads like Telegram wrote it.
func deliveryErrorText(err error) string {
	var apiErr *telegram.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Description
	}
	return err.Error()
}

// writeBack persists the terminal status, retrying with backoff. A post
// whose write-back keeps failing stays in 'sending' and is journaled so the
// reconcile worker and an operator can see the inconsistent state; leaving
// it 'scheduled' would mean a duplicate send on the next tick.
func (s *dispatchService) writeBack(ctx context.Context, postID string, status entity.PostStatus, reason string, messageID int64) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			if lastErr == nil {
				lastErr = ctx.Err()
			}
			break
		}

		if status == entity.PostStatusSent {
			lastErr = s.postRepo.MarkSent(ctx, postID)
		} else {
			lastErr = s.postRepo.MarkFailed(ctx, postID, reason)
		}
		if lastErr == nil {
			return
		}

		shouldRetry, delay := s.retryMgr.ShouldRetry(attempt, lastErr)
		if !shouldRetry {
			break
		}

		logrus.WithFields(logrus.Fields{
			"post_id": postID,
			"attempt": attempt + 1,
		}).Warnf("Status write-back failed, retrying in %s: %v", delay, lastErr)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
	}

	logrus.WithFields(logrus.Fields{
		"post_id":     postID,
		"max_retries": s.retryMgr.MaxRetries(),
	}).Errorf("Status write-back exhausted, post left in inconsistent state: %v", lastErr)

	record := &deadletter.Record{
		PostID:    postID,
		Outcome:   string(status),
		Error:     reason,
		MessageID: messageID,
		FailedAt:  time.Now(),
		LastDBErr: lastErr.Error(),
	}
	if err := s.journal.Push(context.Background(), record); err != nil {
		logrus.Errorf("Failed to journal write-back failure for post %s: %v", postID, err)
	}
}
