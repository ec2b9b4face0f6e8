package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/soundlab/soundlab/internal/server/store"
	"github.com/soundlab/soundlab/pkg/httpx"
)

// HousekeepingService periodically prunes aged security events and drops
// rate-limit buckets whose windows have fully drained, so neither store
// grows without bound under a churn of identities.
type HousekeepingService struct {
	Store     store.Store
	Limiter   *httpx.SlidingWindowLimiter
	Logger    *slog.Logger
	Interval  time.Duration
	Retention time.Duration // how long security events are kept

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService builds a sweeper. Interval defaults to 1 hour,
// retention to 30 days.
func NewHousekeepingService(st store.Store, limiter *httpx.SlidingWindowLimiter, logger *slog.Logger, interval, retention time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}

	return &HousekeepingService{
		Store:     st,
		Limiter:   limiter,
		Logger:    logger,
		Interval:  interval,
		Retention: retention,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins the background worker. Non-blocking; call Stop to shut down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping started", "interval", s.Interval, "retention", s.Retention)
}

// Stop shuts the worker down and blocks until any in-progress sweep ends.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.sweep()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

// sweep performs one cleanup pass. The two cleanups are independent; a
// failure in one doesn't stop the other.
func (s *HousekeepingService) sweep() {
	ctx := context.Background()
	now := time.Now().UTC()

	dropped := s.Limiter.Sweep(now)

	pruned, err := s.Store.Events().DeleteBefore(ctx, now.Add(-s.Retention))
	if err != nil {
		s.Logger.Error("failed to prune security events", "error", err)
	}

	s.Logger.Debug("housekeeping sweep complete",
		"buckets_dropped", dropped,
		"events_pruned", pruned,
	)
}
