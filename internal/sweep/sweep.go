// Package sweep re-drives records that a crash left stranded between
// creation and the sync engine's next natural poll. On a long period it
// scans the durable store for unsynced rows older than one poll interval,
// re-enqueues them as fresh retry jobs, and kicks the engine. This bounds
// staleness; without it a row created just before a crash could starve
// until the next restart happens to pick it up.
package sweep

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/zulandar/timedock/internal/audit"
	"github.com/zulandar/timedock/internal/config"
	"github.com/zulandar/timedock/internal/models"
	"github.com/zulandar/timedock/internal/store"
	"github.com/zulandar/timedock/internal/syncer"
	"gorm.io/gorm"
)

// Sweeper schedules and runs reconciliation passes.
type Sweeper struct {
	db     *gorm.DB
	engine *syncer.Engine
	trail  *audit.Trail
	cfg    *config.Config
	log    *logrus.Logger
	cron   *cron.Cron
}

// NewSweeper wires a reconciliation sweeper.
func NewSweeper(db *gorm.DB, engine *syncer.Engine, trail *audit.Trail, cfg *config.Config, log *logrus.Logger) (*Sweeper, error) {
	if db == nil {
		return nil, fmt.Errorf("sweep: db is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("sweep: engine is required")
	}
	if trail == nil {
		return nil, fmt.Errorf("sweep: audit trail is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("sweep: config is required")
	}
	if log == nil {
		log = logrus.New()
	}
	return &Sweeper{db: db, engine: engine, trail: trail, cfg: cfg, log: log}, nil
}

// Start arms the periodic schedule.
func (s *Sweeper) Start() error {
	s.cron = cron.New()
	spec := fmt.Sprintf("@every %s", s.cfg.ReconcileInterval())
	if _, err := s.cron.AddFunc(spec, func() {
		if _, err := s.SweepOnce(time.Now()); err != nil {
			s.log.WithError(err).Error("sweep: reconciliation pass")
		}
	}); err != nil {
		return fmt.Errorf("sweep: schedule %s: %w", spec, err)
	}
	s.cron.Start()
	s.log.WithField("period", s.cfg.ReconcileInterval()).Info("sweep: reconciliation scheduled")
	return nil
}

// Stop cancels the schedule. A pass in progress completes.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// RunNow performs the immediate check used right after login.
func (s *Sweeper) RunNow() {
	if n, err := s.SweepOnce(time.Now()); err != nil {
		s.log.WithError(err).Error("sweep: immediate check")
	} else if n > 0 {
		s.log.WithField("requeued", n).Info("sweep: immediate check re-enqueued stale records")
	}
}

// SweepOnce re-enqueues every unsynced record older than one poll
// interval as a fresh waiting job in its retry queue, then kicks the
// engine so the normal upload path picks them up oldest-first. Returns
// the number of records re-enqueued.
func (s *Sweeper) SweepOnce(now time.Time) (int, error) {
	cutoff := now.Add(-s.cfg.PollInterval())
	requeued := 0

	timers, err := store.PendingTimerEvents(s.db)
	if err != nil {
		return 0, err
	}
	for _, ev := range timers {
		if ev.CreatedAt.After(cutoff) {
			continue
		}
		s.trail.ClaimOrQueue(models.QueueTimerRetry, fmt.Sprintf(`{"timer_event_id":%d}`, ev.ID), 1)
		requeued++
	}

	samples, err := store.SamplesOlderThan(s.db, cutoff)
	if err != nil {
		return 0, err
	}
	for i := range samples {
		sample := &samples[i]
		s.trail.ClaimOrQueue(models.QueueTimeSlotRetry, syncer.JobPayload(sample), 1)
		requeued++

		shots, err := store.ScreenshotsForSample(s.db, sample.ID)
		if err != nil {
			s.log.WithError(err).WithField("sample", sample.ID).Error("sweep: load screenshots")
			continue
		}
		for j := range shots {
			s.trail.ClaimOrQueue(models.QueueScreenshot, syncer.JobPayloadScreenshot(&shots[j]), 1)
			requeued++
		}
	}

	if requeued > 0 {
		s.log.WithField("requeued", requeued).Info("sweep: stale records re-enqueued")
		s.engine.Kick()
	}
	return requeued, nil
}
