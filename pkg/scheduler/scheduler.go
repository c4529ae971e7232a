package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/postline/postline/internal/service"

	"github.com/sirupsen/logrus"
)

// Scheduler is the self-rescheduling dispatch mode: an in-process ticker
// that re-arms after every interval. It lives and dies with the host
// process and keeps no state, so external cron hitting /dispatch/run is
// the recommended production setup. When constructed disarmed it sits idle
// until the first SetInterval call.
type Scheduler struct {
	dispatchService service.DispatchService

	mu       sync.Mutex
	interval time.Duration
	armed    bool
	rearm    chan time.Duration
}

func NewScheduler(dispatchService service.DispatchService, interval time.Duration, armed bool) *Scheduler {
	return &Scheduler{
		dispatchService: dispatchService,
		interval:        interval,
		armed:           armed,
		rearm:           make(chan time.Duration, 1),
	}
}

// SetInterval re-arms the ticker at runtime. Takes effect immediately.
func (s *Scheduler) SetInterval(d time.Duration) {
	s.mu.Lock()
	s.interval = d
	s.armed = true
	s.mu.Unlock()

	select {
	case s.rearm <- d:
	default:
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	interval := s.interval
	armed := s.armed
	s.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if armed {
		logrus.Infof("Dispatch scheduler started with interval %s", interval)
	} else {
		// Idle until the /dispatch/schedule endpoint arms it.
		ticker.Stop()
		logrus.Info("Dispatch scheduler started disarmed")
	}

	for {
		select {
		case <-ticker.C:
			if _, err := s.dispatchService.RunTick(ctx); err != nil {
				logrus.Errorf("Scheduled dispatch tick failed: %v", err)
			}
		case d := <-s.rearm:
			ticker.Reset(d)
			logrus.Infof("Dispatch scheduler re-armed with interval %s", d)
		case <-ctx.Done():
			logrus.Info("Dispatch scheduler stopped")
			return
		}
	}
}
