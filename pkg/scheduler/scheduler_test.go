package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/postline/postline/internal/service"

	"github.com/stretchr/testify/assert"
)

type countingDispatch struct {
	mu    sync.Mutex
	ticks int
}

func (c *countingDispatch) RunTick(ctx context.Context) (*service.TickSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks++
	return &service.TickSummary{}, nil
}

func (c *countingDispatch) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

func TestSchedulerArmedTicks(t *testing.T) {
	dispatch := &countingDispatch{}
	s := NewScheduler(dispatch, 20*time.Millisecond, true)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	s.Start(ctx)

	assert.GreaterOrEqual(t, dispatch.count(), 2)
}

func TestSchedulerDisarmedUntilSetInterval(t *testing.T) {
	dispatch := &countingDispatch{}
	s := NewScheduler(dispatch, 20*time.Millisecond, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx)

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 0, dispatch.count(), "disarmed scheduler must not tick")

	s.SetInterval(20 * time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.GreaterOrEqual(t, dispatch.count(), 1)
}
