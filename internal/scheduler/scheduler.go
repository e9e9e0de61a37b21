// Package scheduler runs periodic maintenance of the spatial store.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"geocache/location-server/internal/metrics"
)

// Pruner removes cached records older than maxAge.
type Pruner interface {
	PruneExpired(ctx context.Context, maxAge time.Duration) int64
}

// Scheduler prunes expired cache entries on a fixed interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	pruner    Pruner
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger

	stopOnce sync.Once
}

// New creates a Scheduler. It does nothing until Start.
func New(pruner Pruner, retention, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		pruner:    pruner,
		retention: retention,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the prune job. A non-positive interval schedules nothing.
// The first run happens one interval after Start; the store has already
// pruned itself on open.
func (s *Scheduler) Start() error {
	if s.interval <= 0 || s.pruner == nil {
		s.logger.Info("scheduler: pruning disabled")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).WaitForSchedule().Do(func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler: started", "interval", s.interval, "retention", s.retention)
	return nil
}

// RunOnce performs a single prune pass and returns the rows removed.
func (s *Scheduler) RunOnce(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	removed := s.pruner.PruneExpired(ctx, s.retention)
	metrics.PrunedRowsTotal.Add(float64(removed))
	s.logger.Debug("scheduler: prune pass finished", "removed", removed)
	return removed
}

// Stop cancels future runs. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.scheduler != nil {
			s.scheduler.Stop()
		}
	})
}
