package lifecycle

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zulandar/timedock/internal/activity"
	"github.com/zulandar/timedock/internal/config"
	"github.com/zulandar/timedock/internal/events"
	"github.com/zulandar/timedock/internal/session"
	"github.com/zulandar/timedock/internal/store"
)

func newTestHandler(t *testing.T, settle time.Duration) (*Handler, *session.Controller) {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := store.AutoMigrate(db); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := &config.Config{
		API:     config.APIConfig{BaseURL: "http://localhost"},
		Account: config.AccountConfig{EmployeeID: "emp-1", OrganizationID: "org-1", TenantID: "tenant-1"},
		Tracking: config.TrackingConfig{
			CollectionIntervalSeconds: 60,
			ScreenshotIntervalMinutes: 5,
			MonitorMode:               config.MonitorAll,
		},
	}
	ctrl, err := session.NewController(db, cfg, activity.NewCounter(), nil, nil, events.NewBus(), log)
	if err != nil {
		t.Fatalf("NewController() error: %v", err)
	}
	h, err := NewHandler(ctrl, settle, log)
	if err != nil {
		t.Fatalf("NewHandler() error: %v", err)
	}
	return h, ctrl
}

func waitRunning(t *testing.T, ctrl *session.Controller, want bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ctrl.IsRunning() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("controller running = %v, want %v", ctrl.IsRunning(), want)
}

func TestSuspendStopsTracking(t *testing.T) {
	h, ctrl := newTestHandler(t, time.Millisecond)
	ctx := context.Background()

	if err := ctrl.StartTracking(ctx); err != nil {
		t.Fatalf("StartTracking() error: %v", err)
	}

	h.Handle(ctx, SignalSuspend)
	if ctrl.IsRunning() {
		t.Error("tracking still running after suspend")
	}
}

func TestResumeRestartsAfterSettle(t *testing.T) {
	h, ctrl := newTestHandler(t, 20*time.Millisecond)
	ctx := context.Background()

	h.Handle(ctx, SignalResume)
	if ctrl.IsRunning() {
		t.Error("tracking started before the settle delay elapsed")
	}
	waitRunning(t, ctrl, true)
	defer ctrl.StopTracking()
}

func TestLockUnlockCycle(t *testing.T) {
	h, ctrl := newTestHandler(t, 10*time.Millisecond)
	ctx := context.Background()

	if err := ctrl.StartTracking(ctx); err != nil {
		t.Fatalf("StartTracking() error: %v", err)
	}

	h.Handle(ctx, SignalLock)
	if ctrl.IsRunning() {
		t.Fatal("tracking still running after lock")
	}

	h.Handle(ctx, SignalUnlock)
	waitRunning(t, ctrl, true)
	ctrl.StopTracking()
}

// A stop signal inside the settle window cancels the pending restart.
func TestSuspendCancelsPendingRestart(t *testing.T) {
	h, ctrl := newTestHandler(t, 30*time.Millisecond)
	ctx := context.Background()

	h.Handle(ctx, SignalResume)
	h.Handle(ctx, SignalSuspend)

	time.Sleep(80 * time.Millisecond)
	if ctrl.IsRunning() {
		t.Error("cancelled restart still fired")
	}
}

// A settle timer that fires concurrently with a stop signal must not
// restart tracking behind it: whichever order the two resolve in, the
// session is stopped once Handle(suspend) returns.
func TestSuspendRacingSettleTimer(t *testing.T) {
	h, ctrl := newTestHandler(t, time.Millisecond)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		h.Handle(ctx, SignalResume)
		time.Sleep(2 * time.Millisecond)
		h.Handle(ctx, SignalSuspend)
		if ctrl.IsRunning() {
			t.Fatalf("iteration %d: tracking running after suspend was handled", i)
		}
	}
}

// A cancelled context suppresses a settle timer that has already been
// armed, covering shutdown during the settle window.
func TestContextCancelSuppressesRestart(t *testing.T) {
	h, ctrl := newTestHandler(t, 30*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	h.Handle(ctx, SignalResume)
	cancel()

	time.Sleep(80 * time.Millisecond)
	if ctrl.IsRunning() {
		t.Error("restart fired after context cancellation")
	}
}

func TestSignalString(t *testing.T) {
	cases := map[Signal]string{
		SignalShutdown: "shutdown",
		SignalSuspend:  "suspend",
		SignalResume:   "resume",
		SignalLock:     "lock",
		SignalUnlock:   "unlock",
		Signal(99):     "unknown",
	}
	for sig, want := range cases {
		if got := sig.String(); got != want {
			t.Errorf("Signal(%d).String() = %q, want %q", int(sig), got, want)
		}
	}
}
