package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Notification announces a memory mutation to in-process subscribers, e.g.
// so an embedding app can refresh a user's cached prompt context.
type Notification struct {
	UserID string
	Action string
	ItemID string
	AtMS   int64
}

// NotificationBus is a bounded fan-in channel for memory change
// notifications. Publishing never blocks a mutation for more than
// publishTimeout; overflow is counted, not queued.
type NotificationBus struct {
	events  chan Notification
	closed  bool
	dropped atomic.Uint64
	mu      sync.RWMutex
}

const publishTimeout = 100 * time.Millisecond

func NewNotificationBus() *NotificationBus {
	return &NotificationBus{
		events: make(chan Notification, 100),
	}
}

func (nb *NotificationBus) Publish(n Notification) {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	if nb.closed {
		return
	}

	select {
	case nb.events <- n:
	default:
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case nb.events <- n:
		case <-timer.C:
			nb.dropped.Add(1)
		}
	}
}

func (nb *NotificationBus) Subscribe(ctx context.Context) (Notification, bool) {
	select {
	case n, ok := <-nb.events:
		if !ok {
			return Notification{}, false
		}
		return n, true
	case <-ctx.Done():
		return Notification{}, false
	}
}

func (nb *NotificationBus) Close() {
	nb.mu.Lock()
	defer nb.mu.Unlock()
	if nb.closed {
		return
	}
	nb.closed = true
	close(nb.events)
}

func (nb *NotificationBus) Dropped() uint64 {
	return nb.dropped.Load()
}
