package worker

import (
	"context"
	"time"

	repository "github.com/postline/postline/internal/database/postgres"

	"github.com/sirupsen/logrus"
)

const stuckReason = "stuck in sending: write-back lost after dispatch"

// ReconcileWorker sweeps posts left in 'sending'. A post gets stuck there
// when the process crashed between claim and write-back, or when the
// write-back retries were exhausted. Failing the row keeps it out of the
// due-post fetch, so the message is never delivered twice; the dead letter
// journal holds what actually happened for the operator.
type ReconcileWorker struct {
	postRepo       repository.PostRepository
	interval       time.Duration
	stuckThreshold time.Duration
}

func NewReconcileWorker(postRepo repository.PostRepository, interval, stuckThreshold time.Duration) *ReconcileWorker {
	return &ReconcileWorker{
		postRepo:       postRepo,
		interval:       interval,
		stuckThreshold: stuckThreshold,
	}
}

func (w *ReconcileWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logrus.Info("Reconcile worker started")

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Reconcile worker stopped")
			return
		case <-ticker.C:
			w.reconcileStuckPosts(ctx)
		}
	}
}

// reconcileStuckPosts помечает зависшие в 'sending' посты как failed
func (w *ReconcileWorker) reconcileStuckPosts(ctx context.Context) {
	cutoff := time.Now().Add(-w.stuckThreshold)

	stuck, err := w.postRepo.GetStuckSending(ctx, cutoff)
	if err != nil {
		logrus.Errorf("Failed to get stuck posts: %v", err)
		return
	}

	if len(stuck) == 0 {
		return
	}

	for _, post := range stuck {
		logrus.WithFields(logrus.Fields{
			"post_id":    post.ID,
			"updated_at": post.UpdatedAt,
		}).Warn("Post stuck in sending state")
	}

	failed, err := w.postRepo.FailStuckSending(ctx, cutoff, stuckReason)
	if err != nil {
		logrus.Errorf("Failed to reconcile stuck posts: %v", err)
		return
	}

	logrus.Infof("Reconciled %d stuck posts", failed)
}
