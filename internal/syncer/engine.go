// Package syncer delivers captured records to the remote time-tracking
// service. The engine polls the durable store for the oldest unsynced
// sample, writes it as a remote time-slot, attaches its screenshots, and
// only then deletes the local rows. A record is never removed before the
// remote write is confirmed.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zulandar/timedock/internal/api"
	"github.com/zulandar/timedock/internal/audit"
	"github.com/zulandar/timedock/internal/config"
	"github.com/zulandar/timedock/internal/events"
	"github.com/zulandar/timedock/internal/models"
	"github.com/zulandar/timedock/internal/store"
	"gorm.io/gorm"
)

// API is the remote service surface the engine depends on. *api.Client
// implements it; tests substitute fakes.
type API interface {
	SaveTimeSlot(ctx context.Context, params api.TimeSlotParams) (*api.TimeSlotResponse, error)
	UploadScreenshot(ctx context.Context, params api.ScreenshotParams, filePath string) (*api.ScreenshotResponse, error)
	StartTimer(ctx context.Context, params api.StartTimerParams) error
}

// Engine is the push side of the pipeline.
type Engine struct {
	db     *gorm.DB
	client API
	cfg    *config.Config
	trail  *audit.Trail
	bus    *events.Bus
	log    *logrus.Logger

	inFlight    atomic.Bool
	paused      atomic.Bool
	networkDown atomic.Bool
	kick        chan struct{}
}

// NewEngine wires a sync engine.
func NewEngine(db *gorm.DB, client API, cfg *config.Config, trail *audit.Trail, bus *events.Bus, log *logrus.Logger) (*Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("syncer: db is required")
	}
	if client == nil {
		return nil, fmt.Errorf("syncer: api client is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("syncer: config is required")
	}
	if trail == nil {
		return nil, fmt.Errorf("syncer: audit trail is required")
	}
	if bus == nil {
		bus = events.NewBus()
	}
	if log == nil {
		log = logrus.New()
	}
	return &Engine{
		db:     db,
		client: client,
		cfg:    cfg,
		trail:  trail,
		bus:    bus,
		log:    log,
		kick:   make(chan struct{}, 1),
	}, nil
}

// Run polls until ctx is cancelled. At most one upload is in flight at a
// time: a tick that fires while the previous one is still running is
// dropped, not queued.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.PollInterval())
	defer ticker.Stop()

	e.log.WithField("interval", e.cfg.PollInterval()).Info("syncer: polling started")
	for {
		select {
		case <-ctx.Done():
			e.log.Info("syncer: polling stopped")
			return
		case <-ticker.C:
			e.tick(ctx)
		case <-e.kick:
			e.tick(ctx)
		}
	}
}

// Kick requests an immediate tick, used by the reconciliation sweeper and
// the post-login check. Dropped if a kick is already pending.
func (e *Engine) Kick() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// Pause suspends delivery; used after a 401 until re-authentication.
func (e *Engine) Pause() {
	e.paused.Store(true)
}

// Resume re-arms delivery after re-authentication and kicks a tick.
func (e *Engine) Resume() {
	e.paused.Store(false)
	e.Kick()
}

// Paused reports whether delivery is suspended.
func (e *Engine) Paused() bool {
	return e.paused.Load()
}

// tick runs one guarded sync attempt.
func (e *Engine) tick(ctx context.Context) {
	if !e.inFlight.CompareAndSwap(false, true) {
		e.log.Debug("syncer: previous upload still in flight, tick skipped")
		return
	}
	defer e.inFlight.Store(false)

	if err := e.SyncOnce(ctx); err != nil {
		e.log.WithError(err).Warn("syncer: sync attempt failed, record left for retry")
	}
}

// SyncOnce performs one delivery pass: replay pending timer starts, then
// upload the single oldest unsynced sample with its screenshots and delete
// it locally. The remote time-slot write carries no client dedup key, so a
// crash between remote accept and local delete can duplicate one remote
// slot on restart; that boundary is accepted.
func (e *Engine) SyncOnce(ctx context.Context) error {
	if e.paused.Load() {
		return nil
	}

	if err := e.pushTimerEvents(ctx); err != nil {
		return err
	}

	sample, err := store.OldestUnsyncedSample(e.db)
	if err != nil {
		return err
	}
	if sample == nil {
		return nil
	}

	jobID := e.trail.ClaimOrQueue(models.QueueTimeSlotRetry, JobPayload(sample), 0)
	e.trail.Running(jobID)

	slot, err := e.client.SaveTimeSlot(ctx, e.timeSlotParams(sample))
	if err != nil {
		e.trail.Failed(jobID, err)
		e.handleRemoteError(err)
		return fmt.Errorf("syncer: save time slot for sample %d: %w", sample.ID, err)
	}
	e.noteNetworkUp()

	// Step 2 is best-effort: a screenshot failure never rolls back the
	// accepted time-slot.
	e.uploadScreenshots(ctx, sample, slot.ID)

	if err := store.DeleteSample(e.db, sample.ID); err != nil {
		e.trail.Failed(jobID, err)
		return err
	}
	e.trail.Succeeded(jobID)

	e.log.WithFields(logrus.Fields{
		"sample":    sample.ID,
		"time_slot": slot.ID,
	}).Info("syncer: sample delivered")
	return nil
}

// pushTimerEvents replays timer starts recorded while offline. An error
// aborts the pass so the sample keeps its place in line behind the timer.
func (e *Engine) pushTimerEvents(ctx context.Context) error {
	pending, err := store.PendingTimerEvents(e.db)
	if err != nil {
		return err
	}
	for _, ev := range pending {
		jobID := e.trail.ClaimOrQueue(models.QueueTimerRetry, fmt.Sprintf(`{"timer_event_id":%d}`, ev.ID), 0)
		e.trail.Running(jobID)

		params := api.StartTimerParams{
			TenantID:       ev.TenantID,
			OrganizationID: ev.OrganizationID,
			StartedAt:      ev.StartedAt.UTC().Format(time.RFC3339),
			Source:         "DESKTOP",
		}
		if ev.StoppedAt != nil {
			params.StoppedAt = ev.StoppedAt.UTC().Format(time.RFC3339)
		}
		err := e.client.StartTimer(ctx, params)
		if err != nil {
			e.trail.Failed(jobID, err)
			e.handleRemoteError(err)
			return fmt.Errorf("syncer: replay timer start %d: %w", ev.ID, err)
		}
		if err := store.DeleteTimerEvent(e.db, ev.ID); err != nil {
			e.trail.Failed(jobID, err)
			return err
		}
		e.trail.Succeeded(jobID)
	}
	return nil
}

// uploadScreenshots attaches the sample's screenshots to its remote
// time-slot. Each upload is audited; failures are logged and skipped.
func (e *Engine) uploadScreenshots(ctx context.Context, sample *models.ActivitySample, timeSlotID string) {
	shots, err := store.ScreenshotsForSample(e.db, sample.ID)
	if err != nil {
		e.log.WithError(err).Error("syncer: load screenshots")
		return
	}

	for _, shot := range shots {
		jobID := e.trail.ClaimOrQueue(models.QueueScreenshot, JobPayloadScreenshot(&shot), 0)
		e.trail.Running(jobID)

		if !fileReadable(shot.FilePath) {
			e.trail.Failed(jobID, fmt.Errorf("file missing or unreadable: %s", shot.FilePath))
			e.log.WithField("path", shot.FilePath).Warn("syncer: screenshot file gone, skipping upload")
			continue
		}

		_, err := e.client.UploadScreenshot(ctx, api.ScreenshotParams{
			TenantID:       sample.TenantID,
			OrganizationID: sample.OrganizationID,
			RecordedAt:     shot.RecordedAt,
			TimeSlotID:     timeSlotID,
		}, shot.FilePath)
		if err != nil {
			e.trail.Failed(jobID, err)
			e.handleRemoteError(err)
			e.log.WithError(err).WithField("path", shot.FilePath).Error("syncer: screenshot upload")
			continue
		}

		if err := os.Remove(shot.FilePath); err != nil && !os.IsNotExist(err) {
			e.log.WithError(err).WithField("path", shot.FilePath).Warn("syncer: remove uploaded screenshot file")
		}
		e.trail.Succeeded(jobID)
	}
}

// handleRemoteError maps remote failures to pipeline state: a 401 pauses
// delivery and raises a logout notification; anything else flips the
// network status once.
func (e *Engine) handleRemoteError(err error) {
	if errors.Is(err, api.ErrUnauthorized) {
		if !e.paused.Swap(true) {
			e.bus.Publish(events.KindLogout, "remote returned 401")
			e.log.Warn("syncer: unauthorized, delivery paused until re-authentication")
		}
		return
	}
	if !e.networkDown.Swap(true) {
		e.bus.Publish(events.KindNetworkDown, err.Error())
	}
}

// noteNetworkUp clears the network-down state after a successful call.
func (e *Engine) noteNetworkUp() {
	if e.networkDown.Swap(false) {
		e.bus.Publish(events.KindNetworkUp, "")
	}
}

func fileReadable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// JobPayload is the audit payload identifying a sample delivery.
func JobPayload(sample *models.ActivitySample) string {
	data, _ := json.Marshal(map[string]interface{}{
		"sample_id":  sample.ID,
		"time_start": sample.TimeStart.UTC().Format(time.RFC3339),
		"time_end":   sample.TimeEnd.UTC().Format(time.RFC3339),
	})
	return string(data)
}

// JobPayloadScreenshot is the audit payload identifying a screenshot
// upload. The time-slot id is deliberately excluded so a sweep-queued job
// matches the later delivery attempt.
func JobPayloadScreenshot(shot *models.Screenshot) string {
	data, _ := json.Marshal(map[string]interface{}{
		"screenshot_id": shot.ID,
		"file_path":     shot.FilePath,
	})
	return string(data)
}
