// Package events provides the in-process notification channel between
// pipeline components and their external collaborators (tray, UI bridge).
// Events are enum-tagged and delivered over bounded per-subscriber
// channels; a slow subscriber drops events rather than blocking the
// publisher.
package events

import (
	"sync"
	"time"
)

// Kind identifies an event type.
type Kind int

// Event kinds.
const (
	KindTrackingStarted Kind = iota
	KindTrackingStopped
	KindLogout
	KindNetworkDown
	KindNetworkUp
)

// String returns the event kind name.
func (k Kind) String() string {
	switch k {
	case KindTrackingStarted:
		return "tracking_started"
	case KindTrackingStopped:
		return "tracking_stopped"
	case KindLogout:
		return "logout"
	case KindNetworkDown:
		return "network_down"
	case KindNetworkUp:
		return "network_up"
	}
	return "unknown"
}

// Event is one pipeline notification.
type Event struct {
	Kind   Kind
	At     time.Time
	Reason string
}

// Bus fans events out to subscribers.
type Bus struct {
	mu   sync.Mutex
	subs []chan Event
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a subscriber with the given channel buffer and
// returns the receive channel plus an unsubscribe function.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, sub := range b.subs {
			if sub == ch {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber. Delivery is best-effort:
// a full subscriber channel is skipped.
func (b *Bus) Publish(kind Kind, reason string) {
	ev := Event{Kind: kind, At: time.Now(), Reason: reason}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		select {
		case sub <- ev:
		default:
		}
	}
}
