package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
)

const DefaultHousekeepingInterval = 10 * time.Minute

// HousekeepingService sweeps expired sessions and replay markers out of
// caches that only expire entries lazily.
type HousekeepingService struct {
	Sweeper  store.Sweeper
	Logger   *slog.Logger
	Interval time.Duration

	// OnSweep, when set, receives the count of every successful pass.
	OnSweep func(deleted int64)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHousekeepingService falls back to DefaultHousekeepingInterval for a
// non-positive interval.
func NewHousekeepingService(sweeper store.Sweeper, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = DefaultHousekeepingInterval
	}
	return &HousekeepingService{Sweeper: sweeper, Logger: logger, Interval: interval}
}

// Start sweeps every Interval until ctx ends or Stop is called. Starting a
// running service does nothing.
func (s *HousekeepingService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
	s.Logger.Info("housekeeping started", "interval", s.Interval)
}

// Stop waits for a sweep in progress. It is safe to call without Start.
func (s *HousekeepingService) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.Logger.Info("housekeeping stopped")
}

func (s *HousekeepingService) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass and returns the number of entries removed.
func (s *HousekeepingService) Sweep(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, s.Interval)
	defer cancel()

	n, err := s.Sweeper.Sweep(ctx)
	if err != nil {
		s.Logger.Error("sweep expired cache entries", "err", err)
		return n
	}
	s.Logger.Debug("swept expired cache entries", "deleted", n)
	if s.OnSweep != nil {
		s.OnSweep(n)
	}
	return n
}
