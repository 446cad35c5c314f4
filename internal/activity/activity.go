// Package activity provides the rolling input-activity counter that the
// session controller drains once per collection interval. The raw OS hook
// feeding it lives behind the Listener interface and is supplied by the
// host application.
package activity

import (
	"sync"
	"time"
)

// MouseEvent is one recorded mouse action.
type MouseEvent struct {
	Kind string    `json:"kind"` // "left", "right", "move"
	At   time.Time `json:"at"`
}

// WindowEvent is one recorded foreground-window interval.
type WindowEvent struct {
	Name     string `json:"name"`
	Duration int    `json:"duration"` // seconds
}

// Totals is a snapshot of accumulated input activity since the last drain.
type Totals struct {
	KbPressCount         int
	MouseLeftClickCount  int
	MouseRightClickCount int
	MouseMovementCount   int
	AfkSeconds           int
	KbSequence           []int
	MouseEvents          []MouseEvent
	ActiveWindows        []WindowEvent
}

// Counter accumulates raw input events between flushes. All methods are
// safe for concurrent use; the OS hook records from its own goroutine
// while the session controller drains on the flush tick.
type Counter struct {
	mu     sync.Mutex
	totals Totals
}

// NewCounter returns an empty counter.
func NewCounter() *Counter {
	return &Counter{}
}

// KeyPress records one key press with its key code.
func (c *Counter) KeyPress(code int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totals.KbPressCount++
	c.totals.KbSequence = append(c.totals.KbSequence, code)
}

// MouseClick records a left or right mouse click.
func (c *Counter) MouseClick(right bool, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if right {
		c.totals.MouseRightClickCount++
		c.totals.MouseEvents = append(c.totals.MouseEvents, MouseEvent{Kind: "right", At: at})
		return
	}
	c.totals.MouseLeftClickCount++
	c.totals.MouseEvents = append(c.totals.MouseEvents, MouseEvent{Kind: "left", At: at})
}

// MouseMove records one mouse movement.
func (c *Counter) MouseMove(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totals.MouseMovementCount++
	c.totals.MouseEvents = append(c.totals.MouseEvents, MouseEvent{Kind: "move", At: at})
}

// AddAfk records seconds spent away from keyboard during the interval.
func (c *Counter) AddAfk(seconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totals.AfkSeconds += seconds
}

// WindowActive records a foreground-window interval.
func (c *Counter) WindowActive(name string, seconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totals.ActiveWindows = append(c.totals.ActiveWindows, WindowEvent{Name: name, Duration: seconds})
}

// Drain returns the accumulated totals and resets the counter. The reset
// happens unconditionally so an interval can never be double-counted.
func (c *Counter) Drain() Totals {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.totals
	c.totals = Totals{}
	return t
}

// Listener is the raw input hook boundary. Implementations start and stop
// OS-level keyboard/mouse capture feeding a Counter.
type Listener interface {
	Start() error
	Stop()
}

// NopListener is a Listener that captures nothing, used when input
// tracking is disabled or unavailable on the platform.
type NopListener struct{}

// Start implements Listener.
func (NopListener) Start() error { return nil }

// Stop implements Listener.
func (NopListener) Stop() {}
