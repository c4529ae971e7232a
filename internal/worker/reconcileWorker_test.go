package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/postline/postline/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReconcileRepo записывает обращения воркера к слою реконсиляции
type fakeReconcileRepo struct {
	mu sync.Mutex

	stuck    []*entity.Post
	fetchErr error
	failErr  error

	fetchCutoffs []time.Time
	failCutoffs  []time.Time
	failReasons  []string
}

func (r *fakeReconcileRepo) Create(ctx context.Context, post *entity.Post) error { return nil }
func (r *fakeReconcileRepo) GetByID(ctx context.Context, id string) (*entity.Post, error) {
	return nil, entity.ErrPostNotFound
}
func (r *fakeReconcileRepo) GetByOwner(ctx context.Context, owner string) ([]*entity.Post, error) {
	return nil, nil
}
func (r *fakeReconcileRepo) Delete(ctx context.Context, id string) error { return nil }
func (r *fakeReconcileRepo) GetDuePosts(ctx context.Context, now time.Time) ([]*entity.Post, error) {
	return nil, nil
}
func (r *fakeReconcileRepo) ClaimForDispatch(ctx context.Context, id string) error { return nil }
func (r *fakeReconcileRepo) MarkSent(ctx context.Context, id string) error        { return nil }
func (r *fakeReconcileRepo) MarkFailed(ctx context.Context, id string, reason string) error {
	return nil
}

func (r *fakeReconcileRepo) GetStuckSending(ctx context.Context, before time.Time) ([]*entity.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchCutoffs = append(r.fetchCutoffs, before)
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	return r.stuck, nil
}

func (r *fakeReconcileRepo) FailStuckSending(ctx context.Context, before time.Time, reason string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failCutoffs = append(r.failCutoffs, before)
	r.failReasons = append(r.failReasons, reason)
	if r.failErr != nil {
		return 0, r.failErr
	}
	return int64(len(r.stuck)), nil
}

func (r *fakeReconcileRepo) fetchCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fetchCutoffs)
}

func TestReconcileFailsStuckPosts(t *testing.T) {
	repo := &fakeReconcileRepo{
		stuck: []*entity.Post{
			{ID: "p1", Status: entity.PostStatusSending},
			{ID: "p2", Status: entity.PostStatusSending},
		},
	}
	w := NewReconcileWorker(repo, time.Minute, 10*time.Minute)

	before := time.Now()
	w.reconcileStuckPosts(context.Background())

	require.Len(t, repo.fetchCutoffs, 1)
	require.Len(t, repo.failCutoffs, 1)

	// Порог отсчитывается от текущего момента назад на stuckThreshold
	assert.WithinDuration(t, before.Add(-10*time.Minute), repo.fetchCutoffs[0], time.Second)
	assert.Equal(t, repo.fetchCutoffs[0], repo.failCutoffs[0])
	assert.Equal(t, stuckReason, repo.failReasons[0])
}

func TestReconcileSkipsWhenNothingStuck(t *testing.T) {
	repo := &fakeReconcileRepo{}
	w := NewReconcileWorker(repo, time.Minute, 10*time.Minute)

	w.reconcileStuckPosts(context.Background())

	assert.Len(t, repo.fetchCutoffs, 1)
	assert.Empty(t, repo.failCutoffs)
}

func TestReconcileFetchErrorSkipsFail(t *testing.T) {
	repo := &fakeReconcileRepo{fetchErr: errors.New("connection refused")}
	w := NewReconcileWorker(repo, time.Minute, 10*time.Minute)

	w.reconcileStuckPosts(context.Background())

	assert.Empty(t, repo.failCutoffs)
}

// Ошибка репозитория не останавливает цикл воркера: следующий тик
// снова обращается к базе.
func TestReconcileLoopSurvivesRepoErrors(t *testing.T) {
	repo := &fakeReconcileRepo{fetchErr: errors.New("connection refused")}
	w := NewReconcileWorker(repo, 20*time.Millisecond, 10*time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	<-ctx.Done()
	<-done

	assert.GreaterOrEqual(t, repo.fetchCalls(), 2)
}
