package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/metrics"
	"github.com/IaSoC/sekai-pass-l10n/internal/auth/store"
)

// HousekeepingService periodically deletes expired sessions, authorization
// codes and refresh tokens. Correctness never depends on it; every read
// checks expiry itself.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration
	Now      Clock
	Metrics  *metrics.Metrics

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:    store,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the worker in the background. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until an in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup runs one pass. Each table is independent; a failure in one does
// not stop the others.
func (s *HousekeepingService) Cleanup(ctx context.Context) {
	now := s.Now.now()

	tasks := []struct {
		table string
		purge func(context.Context, time.Time) (int64, error)
	}{
		{"sessions", s.Store.Sessions().DeleteExpiredSessions},
		{"authorization_codes", s.Store.AuthorizationCodes().DeleteExpiredAuthorizationCodes},
		{"refresh_tokens", s.Store.RefreshTokens().DeleteExpiredRefreshTokens},
	}

	var total int64
	for _, task := range tasks {
		n, err := task.purge(ctx, now)
		if err != nil {
			s.Logger.Error("housekeeping failed", "table", task.table, "error", err)
			continue
		}
		s.Metrics.Purged(task.table, n)
		total += n
	}

	s.Logger.Info("housekeeping cleanup completed", "deleted", total)
}
