package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
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

type fakeCapturer struct {
	shots []capture.Shot
	err   error
	calls int
}

func (f *fakeCapturer) Capture() ([]capture.Shot, error) {
	f.calls++
	return f.shots, f.err
}

type fakeListener struct {
	mu     sync.Mutex
	starts int
	stops  int
}

func (f *fakeListener) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return nil
}

func (f *fakeListener) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func testConfig() *config.Config {
	return &config.Config{
		API: config.APIConfig{BaseURL: "http://localhost", Token: "t"},
		Account: config.AccountConfig{
			UserID:         "user-1",
			EmployeeID:     "emp-1",
			OrganizationID: "org-1",
			TenantID:       "tenant-1",
		},
		Tracking: config.TrackingConfig{
			CollectionIntervalSeconds: 60,
			ScreenshotIntervalMinutes: 5,
			TrackInput:                true,
			MonitorMode:               config.MonitorAll,
		},
	}
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := store.AutoMigrate(db); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}

func newTestController(t *testing.T, db *gorm.DB, cfg *config.Config, counter *activity.Counter, listener activity.Listener, capturer capture.Capturer) *Controller {
	t.Helper()
	ctrl, err := NewController(db, cfg, counter, listener, capturer, events.NewBus(), testLogger())
	if err != nil {
		t.Fatalf("NewController() error: %v", err)
	}
	return ctrl
}

func TestStartStopIdempotent(t *testing.T) {
	db := openTestDB(t)
	listener := &fakeListener{}
	ctrl := newTestController(t, db, testConfig(), activity.NewCounter(), listener, nil)

	ctx := context.Background()
	if err := ctrl.StartTracking(ctx); err != nil {
		t.Fatalf("StartTracking() error: %v", err)
	}
	if err := ctrl.StartTracking(ctx); err != nil {
		t.Fatalf("second StartTracking() error: %v", err)
	}
	if !ctrl.IsRunning() {
		t.Error("IsRunning() = false after start")
	}
	if listener.starts != 1 {
		t.Errorf("listener starts = %d, want 1", listener.starts)
	}

	// Exactly one local timer event recorded for later replay.
	pending, err := store.PendingTimerEvents(db)
	if err != nil {
		t.Fatalf("PendingTimerEvents() error: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending timer events = %d, want 1", len(pending))
	}
	if pending[0].EmployeeID != "emp-1" {
		t.Errorf("timer event employee = %q", pending[0].EmployeeID)
	}

	ctrl.StopTracking()
	ctrl.StopTracking()
	if ctrl.IsRunning() {
		t.Error("IsRunning() = true after stop")
	}
	if listener.stops != 1 {
		t.Errorf("listener stops = %d, want 1", listener.stops)
	}

	// The timer record now carries the stop time for the later replay.
	pending, err = store.PendingTimerEvents(db)
	if err != nil {
		t.Fatalf("PendingTimerEvents() error: %v", err)
	}
	if len(pending) != 1 || pending[0].StoppedAt == nil {
		t.Error("timer event not closed on stop")
	}
}

func TestStartPublishesEvent(t *testing.T) {
	db := openTestDB(t)
	bus := events.NewBus()
	ctrl, err := NewController(db, testConfig(), activity.NewCounter(), nil, nil, bus, testLogger())
	if err != nil {
		t.Fatalf("NewController() error: %v", err)
	}

	ch, unsub := bus.Subscribe(4)
	defer unsub()

	if err := ctrl.StartTracking(context.Background()); err != nil {
		t.Fatalf("StartTracking() error: %v", err)
	}
	defer ctrl.StopTracking()

	select {
	case ev := <-ch:
		if ev.Kind != events.KindTrackingStarted {
			t.Errorf("event kind = %v, want tracking started", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("no event published on start")
	}
}

// Five flush intervals at 60s with a 5-minute screenshot interval produce
// five samples and a single screenshot, on the fifth interval.
func TestFlushScreenshotCadence(t *testing.T) {
	db := openTestDB(t)
	counter := activity.NewCounter()
	capturer := &fakeCapturer{shots: []capture.Shot{{FilePath: "/tmp/shot.png", Display: 0}}}
	ctrl := newTestController(t, db, testConfig(), counter, nil, capturer)

	if err := ctrl.StartTracking(context.Background()); err != nil {
		t.Fatalf("StartTracking() error: %v", err)
	}
	defer ctrl.StopTracking()

	base := time.Now()
	for i := 1; i <= 5; i++ {
		counter.KeyPress(30 + i)
		if err := ctrl.Flush(base.Add(time.Duration(i) * time.Minute)); err != nil {
			t.Fatalf("Flush(%d) error: %v", i, err)
		}
	}

	samples, err := store.CountSamples(db)
	if err != nil {
		t.Fatalf("CountSamples() error: %v", err)
	}
	if samples != 5 {
		t.Errorf("samples = %d, want 5", samples)
	}

	shots, err := store.CountScreenshots(db)
	if err != nil {
		t.Fatalf("CountScreenshots() error: %v", err)
	}
	if shots != 1 {
		t.Errorf("screenshot rows = %d, want 1", shots)
	}
	if capturer.calls != 1 {
		t.Errorf("capture calls = %d, want 1", capturer.calls)
	}

	// The screenshot belongs to the last sample of the cadence.
	var row models.Screenshot
	if err := db.First(&row).Error; err != nil {
		t.Fatalf("load screenshot: %v", err)
	}
	var last models.ActivitySample
	if err := db.Order("time_start DESC").First(&last).Error; err != nil {
		t.Fatalf("load last sample: %v", err)
	}
	if row.SampleID != last.ID {
		t.Errorf("screenshot sample = %d, want %d", row.SampleID, last.ID)
	}
}

func TestFlushCaptureFailureStillPersistsSample(t *testing.T) {
	db := openTestDB(t)
	cfg := testConfig()
	cfg.Tracking.ScreenshotIntervalMinutes = 1 // every flush wants a shot
	counter := activity.NewCounter()
	capturer := &fakeCapturer{err: errors.New("display locked")}
	ctrl := newTestController(t, db, cfg, counter, nil, capturer)

	if err := ctrl.StartTracking(context.Background()); err != nil {
		t.Fatalf("StartTracking() error: %v", err)
	}
	defer ctrl.StopTracking()

	counter.KeyPress(42)
	if err := ctrl.Flush(time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}

	samples, err := store.CountSamples(db)
	if err != nil {
		t.Fatalf("CountSamples() error: %v", err)
	}
	if samples != 1 {
		t.Errorf("samples = %d, want 1", samples)
	}
	shots, err := store.CountScreenshots(db)
	if err != nil {
		t.Fatalf("CountScreenshots() error: %v", err)
	}
	if shots != 0 {
		t.Errorf("screenshot rows = %d, want 0", shots)
	}
}

func TestFlushRecordsTotals(t *testing.T) {
	db := openTestDB(t)
	counter := activity.NewCounter()
	ctrl := newTestController(t, db, testConfig(), counter, nil, nil)

	if err := ctrl.StartTracking(context.Background()); err != nil {
		t.Fatalf("StartTracking() error: %v", err)
	}
	defer ctrl.StopTracking()

	now := time.Now()
	counter.KeyPress(30)
	counter.KeyPress(31)
	counter.MouseClick(false, now)
	counter.MouseClick(true, now)
	counter.MouseMove(now)
	counter.AddAfk(12)

	if err := ctrl.Flush(now.Add(time.Minute)); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}

	var sample models.ActivitySample
	if err := db.First(&sample).Error; err != nil {
		t.Fatalf("load sample: %v", err)
	}
	if sample.KbPressCount != 2 {
		t.Errorf("kb presses = %d, want 2", sample.KbPressCount)
	}
	if sample.MouseLeftClickCount != 1 || sample.MouseRightClickCount != 1 {
		t.Errorf("clicks = %d/%d, want 1/1", sample.MouseLeftClickCount, sample.MouseRightClickCount)
	}
	if sample.MouseMovementCount != 1 {
		t.Errorf("moves = %d, want 1", sample.MouseMovementCount)
	}
	if sample.AfkDurationSeconds != 12 {
		t.Errorf("afk seconds = %d, want 12", sample.AfkDurationSeconds)
	}
	if sample.EmployeeID != "emp-1" || sample.TenantID != "tenant-1" {
		t.Errorf("account fields = %q/%q", sample.EmployeeID, sample.TenantID)
	}
	if sample.ActiveWindows != "[]" {
		t.Errorf("active windows = %q, want empty array", sample.ActiveWindows)
	}
}

// A failed persist loses that interval's counts rather than rolling them
// back into the counter, so a later retry cannot double count.
func TestFlushPersistFailureDrainsCounter(t *testing.T) {
	db := openTestDB(t)
	counter := activity.NewCounter()
	ctrl := newTestController(t, db, testConfig(), counter, nil, nil)

	if err := ctrl.StartTracking(context.Background()); err != nil {
		t.Fatalf("StartTracking() error: %v", err)
	}
	defer ctrl.StopTracking()

	if err := db.Migrator().DropTable(&models.ActivitySample{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	counter.KeyPress(30)
	if err := ctrl.Flush(time.Now().Add(time.Minute)); err == nil {
		t.Fatal("Flush() succeeded with samples table missing")
	}

	totals := counter.Drain()
	if totals.KbPressCount != 0 {
		t.Errorf("counter kept %d presses after failed flush", totals.KbPressCount)
	}
}

func TestListenerToggleMidSession(t *testing.T) {
	db := openTestDB(t)
	cfg := testConfig()
	cfg.Tracking.TrackInput = false
	listener := &fakeListener{}
	ctrl := newTestController(t, db, cfg, activity.NewCounter(), listener, nil)

	if err := ctrl.StartTracking(context.Background()); err != nil {
		t.Fatalf("StartTracking() error: %v", err)
	}
	defer ctrl.StopTracking()

	if listener.starts != 0 {
		t.Errorf("listener started despite track_keyboard_mouse=false")
	}

	if err := ctrl.StartListener(); err != nil {
		t.Fatalf("StartListener() error: %v", err)
	}
	if err := ctrl.StartListener(); err != nil {
		t.Fatalf("second StartListener() error: %v", err)
	}
	if listener.starts != 1 {
		t.Errorf("listener starts = %d, want 1", listener.starts)
	}

	ctrl.StopListener()
	if listener.stops != 1 {
		t.Errorf("listener stops = %d, want 1", listener.stops)
	}
}
