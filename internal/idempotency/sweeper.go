package idempotency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/MSalah73/zero2prod/internal/config"
	"github.com/MSalah73/zero2prod/internal/metrics"
)

// Sweeper periodically deletes idempotency records older than the retention
// window. Records are an audit/replay log, not a cache, so the default
// retention is generous; a zero retention disables the sweep entirely.
type Sweeper struct {
	cron      *cron.Cron
	store     *Store
	retention time.Duration
	schedule  string
	metrics   *metrics.Metrics
	isRunning bool
	mu        sync.Mutex
}

// NewSweeper creates a sweeper for the given store.
func NewSweeper(store *Store, cfg config.IdempotencyConfig, m *metrics.Metrics) *Sweeper {
	return &Sweeper{
		cron:      cron.New(cron.WithSeconds()),
		store:     store,
		retention: cfg.Retention,
		schedule:  cfg.SweepSchedule,
		metrics:   m,
	}
}

// Start schedules the sweep. A zero retention is a no-op.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.retention == 0 {
		logrus.Info("Idempotency record expiry disabled")
		return nil
	}
	if s.isRunning {
		return fmt.Errorf("sweeper is already running")
	}

	if _, err := s.cron.AddFunc(s.schedule, s.sweepOnce); err != nil {
		return fmt.Errorf("failed to add sweep cron job: %w", err)
	}
	s.cron.Start()
	s.isRunning = true

	logrus.Infof("Idempotency sweeper started with retention %s", s.retention)
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}
	<-s.cron.Stop().Done()
	s.isRunning = false
	logrus.Info("Idempotency sweeper stopped")
}

func (s *Sweeper) sweepOnce() {
	removed, err := s.store.Sweep(context.Background(), s.retention)
	if err != nil {
		logrus.WithError(err).Error("Idempotency sweep failed")
		return
	}
	if removed > 0 {
		s.metrics.IdempotencySwept.Add(float64(removed))
		logrus.Infof("Swept %d expired idempotency records", removed)
	}
}
