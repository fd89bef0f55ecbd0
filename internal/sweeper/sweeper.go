// Package sweeper runs periodic cleanup jobs: expiring reservations past
// their payment window, reclaiming orphaned holds and refreshing stale
// price summaries.
package sweeper

import (
	"context"
	"sync"
	"time"

	"staybook/pkg/logger"
)

// JobFunc processes everything due at now and reports how many items it touched.
type JobFunc func(ctx context.Context, now time.Time) (int64, error)

type Job struct {
	Name string
	Run  JobFunc
}

type Sweeper struct {
	interval time.Duration
	jobs     []Job
	log      *logger.Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool
}

func New(interval time.Duration, log *logger.Logger, jobs ...Job) *Sweeper {
	if log == nil {
		log = logger.Discard()
	}
	return &Sweeper{
		interval: interval,
		jobs:     jobs,
		log:      log,
		now:      time.Now,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.log.Warn("Sweeper disabled, interval is not positive", "interval", s.interval)
		<-ctx.Done()
		return nil
	}

	s.log.Info("Sweeper started", "interval", s.interval, "jobs", len(s.jobs))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Sweeper stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs every job once. A failing job does not stop the others.
// Overlapping ticks are skipped.
func (s *Sweeper) Tick(ctx context.Context) map[string]int64 {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Debug("Sweep already in progress, skipping tick")
		return nil
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	now := s.now().UTC()
	counts := make(map[string]int64, len(s.jobs))
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			break
		}
		n, err := job.Run(ctx, now)
		counts[job.Name] = n
		if err != nil {
			s.log.Error("Sweep job failed",
				"job", job.Name,
				"processed", n,
				"error", err,
			)
			continue
		}
		if n > 0 {
			s.log.Info("Sweep job completed", "job", job.Name, "processed", n)
		}
	}
	return counts
}
