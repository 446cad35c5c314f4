// Package lifecycle maps host power and screen-lock signals onto the
// tracking session: suspend, lock, and shutdown stop tracking; resume and
// unlock restart it after a short settle delay so the first interval does
// not capture transient login/network-down state.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zulandar/timedock/internal/session"
)

// Signal is one host lifecycle notification.
type Signal int

// Host lifecycle signals.
const (
	SignalShutdown Signal = iota
	SignalSuspend
	SignalResume
	SignalLock
	SignalUnlock
)

// String returns the signal name.
func (s Signal) String() string {
	switch s {
	case SignalShutdown:
		return "shutdown"
	case SignalSuspend:
		return "suspend"
	case SignalResume:
		return "resume"
	case SignalLock:
		return "lock"
	case SignalUnlock:
		return "unlock"
	}
	return "unknown"
}

// Handler routes lifecycle signals to the session controller.
type Handler struct {
	controller *session.Controller
	settle     time.Duration
	log        *logrus.Logger

	mu          sync.Mutex
	settleTimer *time.Timer
	settleGen   uint64
}

// NewHandler creates a lifecycle handler. settle is the delay between a
// resume/unlock signal and the tracking restart.
func NewHandler(controller *session.Controller, settle time.Duration, log *logrus.Logger) (*Handler, error) {
	if controller == nil {
		return nil, fmt.Errorf("lifecycle: controller is required")
	}
	if log == nil {
		log = logrus.New()
	}
	return &Handler{controller: controller, settle: settle, log: log}, nil
}

// Handle applies one signal. Stop signals take effect immediately and
// cancel any pending restart; start signals restart tracking after the
// settle delay.
func (h *Handler) Handle(ctx context.Context, sig Signal) {
	h.log.WithField("signal", sig.String()).Info("lifecycle: host signal")

	switch sig {
	case SignalShutdown, SignalSuspend, SignalLock:
		h.cancelPendingStart()
		h.controller.StopTracking()
	case SignalResume, SignalUnlock:
		h.scheduleStart(ctx)
	}
}

// cancelPendingStart invalidates any armed settle timer. Stopping the
// timer is not enough: it may have already fired and be waiting on the
// mutex, so the generation bump is what actually cancels it.
func (h *Handler) cancelPendingStart() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.settleGen++
	if h.settleTimer != nil {
		h.settleTimer.Stop()
		h.settleTimer = nil
	}
}

func (h *Handler) scheduleStart(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.settleGen++
	gen := h.settleGen
	if h.settleTimer != nil {
		h.settleTimer.Stop()
	}
	h.settleTimer = time.AfterFunc(h.settle, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if gen != h.settleGen || ctx.Err() != nil {
			return
		}
		if err := h.controller.StartTracking(ctx); err != nil {
			h.log.WithError(err).Error("lifecycle: restart tracking")
		}
	})
}
