// Package session owns the tracking-session lifecycle: it schedules the
// periodic flush of the activity counter into durable samples and the
// screenshot cadence, and reacts to host suspend/resume by stopping and
// restarting cleanly.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zulandar/timedock/internal/activity"
	"github.com/zulandar/timedock/internal/capture"
	"github.com/zulandar/timedock/internal/config"
	"github.com/zulandar/timedock/internal/events"
	"github.com/zulandar/timedock/internal/models"
	"github.com/zulandar/timedock/internal/store"
	"gorm.io/gorm"
)

// Controller drives one tracking session. At most one session runs per
// process; Start and Stop are idempotent.
type Controller struct {
	db       *gorm.DB
	cfg      *config.Config
	counter  *activity.Counter
	listener activity.Listener
	capturer capture.Capturer
	bus      *events.Bus
	log      *logrus.Logger

	mu               sync.Mutex
	running          bool
	listenerOn       bool
	startedAt        time.Time
	lastFlush        time.Time
	flushesSinceShot int
	cancel           context.CancelFunc
	done             chan struct{}
}

// NewController wires a session controller. The listener may be nil when
// input tracking is unavailable; a no-op listener is substituted.
func NewController(db *gorm.DB, cfg *config.Config, counter *activity.Counter, listener activity.Listener, capturer capture.Capturer, bus *events.Bus, log *logrus.Logger) (*Controller, error) {
	if db == nil {
		return nil, fmt.Errorf("session: db is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("session: config is required")
	}
	if counter == nil {
		return nil, fmt.Errorf("session: counter is required")
	}
	if listener == nil {
		listener = activity.NopListener{}
	}
	if bus == nil {
		bus = events.NewBus()
	}
	if log == nil {
		log = logrus.New()
	}
	return &Controller{
		db:       db,
		cfg:      cfg,
		counter:  counter,
		listener: listener,
		capturer: capturer,
		bus:      bus,
		log:      log,
	}, nil
}

// IsRunning reports whether a session is active.
func (c *Controller) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// StartedAt returns the session start time, zero when not running.
func (c *Controller) StartedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return time.Time{}
	}
	return c.startedAt
}

// StartTracking begins a session: starts the input listener when the
// configuration enables it, records a local timer-start event for later
// replay, and arms the recurring flush timer. No-op if already running.
func (c *Controller) StartTracking(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}

	now := time.Now()
	c.running = true
	c.startedAt = now
	c.lastFlush = now
	c.flushesSinceShot = 0

	if c.cfg.Tracking.TrackInput {
		if err := c.listener.Start(); err != nil {
			// Capture errors never stop the session; the interval just
			// records no input.
			c.log.WithError(err).Error("session: start input listener")
		} else {
			c.listenerOn = true
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(loopCtx, c.done)
	c.mu.Unlock()

	timer := models.TimerEvent{
		StartedAt:      now,
		EmployeeID:     c.cfg.Account.EmployeeID,
		OrganizationID: c.cfg.Account.OrganizationID,
		TenantID:       c.cfg.Account.TenantID,
	}
	if err := store.CreateTimerEvent(c.db, &timer); err != nil {
		c.log.WithError(err).Error("session: record timer start")
	}

	c.bus.Publish(events.KindTrackingStarted, "")
	c.log.WithField("started_at", now.Format(time.RFC3339)).Info("session: tracking started")
	return nil
}

// StopTracking ends the session: cancels the flush timer and stops the
// input listener. Already-persisted samples are untouched. A flush in
// progress completes; only future ticks are prevented. No-op if stopped.
func (c *Controller) StopTracking() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	if c.listenerOn {
		c.listener.Stop()
		c.listenerOn = false
	}
	c.mu.Unlock()

	cancel()
	<-done

	if err := store.CloseTimerEvent(c.db, time.Now()); err != nil {
		c.log.WithError(err).Error("session: record timer stop")
	}

	c.bus.Publish(events.KindTrackingStopped, "")
	c.log.Info("session: tracking stopped")
}

// StartListener enables raw input capture mid-session, used when the
// track-keyboard-mouse preference is switched on.
func (c *Controller) StartListener() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listenerOn {
		return nil
	}
	if err := c.listener.Start(); err != nil {
		return fmt.Errorf("session: start listener: %w", err)
	}
	c.listenerOn = true
	return nil
}

// StopListener disables raw input capture without ending the session.
func (c *Controller) StopListener() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.listenerOn {
		return
	}
	c.listener.Stop()
	c.listenerOn = false
}

// run fires a flush every collection interval until cancelled.
func (c *Controller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.cfg.CollectionInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := c.Flush(now); err != nil {
				c.log.WithError(err).Error("session: flush")
			}
		}
	}
}

// Flush closes the current aggregation window: drains the counter,
// captures screenshots when the screenshot interval has elapsed, and
// persists one closed sample. The counter is drained before any I/O, so a
// persistence failure loses that interval's data instead of risking
// double counting.
func (c *Controller) Flush(now time.Time) error {
	c.mu.Lock()
	start := c.lastFlush
	c.lastFlush = now
	c.flushesSinceShot++
	takeShot := c.flushesSinceShot >= c.cfg.FlushesPerScreenshot()
	if takeShot {
		c.flushesSinceShot = 0
	}
	c.mu.Unlock()

	if !now.After(start) {
		return fmt.Errorf("session: flush window is empty")
	}

	totals := c.counter.Drain()

	var shots []capture.Shot
	if takeShot && c.capturer != nil {
		captured, err := c.capturer.Capture()
		if err != nil {
			// No screenshot for this sample; the sample still persists.
			c.log.WithError(err).Error("session: screenshot capture")
		}
		shots = captured
	}

	sample := models.ActivitySample{
		TimeStart:            start,
		TimeEnd:              now,
		KbPressCount:         totals.KbPressCount,
		MouseLeftClickCount:  totals.MouseLeftClickCount,
		MouseRightClickCount: totals.MouseRightClickCount,
		MouseMovementCount:   totals.MouseMovementCount,
		AfkDurationSeconds:   totals.AfkSeconds,
		KbSequence:           marshalJSON(totals.KbSequence),
		MouseEvents:          marshalJSON(totals.MouseEvents),
		ActiveWindows:        marshalJSON(totals.ActiveWindows),
		UserID:               c.cfg.Account.UserID,
		EmployeeID:           c.cfg.Account.EmployeeID,
		OrganizationID:       c.cfg.Account.OrganizationID,
		TenantID:             c.cfg.Account.TenantID,
	}
	if err := store.CreateSample(c.db, &sample); err != nil {
		return fmt.Errorf("session: persist sample: %w", err)
	}

	for _, shot := range shots {
		row := models.Screenshot{
			SampleID:   sample.ID,
			FilePath:   shot.FilePath,
			Display:    shot.Display,
			RecordedAt: now,
		}
		if err := store.CreateScreenshot(c.db, &row); err != nil {
			c.log.WithError(err).WithField("path", shot.FilePath).Error("session: persist screenshot")
		}
	}

	c.log.WithFields(logrus.Fields{
		"time_start":  start.Format(time.RFC3339),
		"time_end":    now.Format(time.RFC3339),
		"keys":        totals.KbPressCount,
		"screenshots": len(shots),
	}).Debug("session: sample flushed")
	return nil
}

func marshalJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return "[]"
	}
	return string(data)
}
