package session

import (
	"sync"
	"time"
)

// NotificationType labels a notification for the display surface.
type NotificationType string

const (
	NoticeInfo    NotificationType = "info"
	NoticeSuccess NotificationType = "success"
	NoticeWarning NotificationType = "warning"
	NoticeError   NotificationType = "error"
)

// DefaultDuration applies when a notification does not specify one.
// A zero or negative duration means the notification never auto-expires.
const DefaultDuration = 5 * time.Second

// Notification is a transient user-facing message.
type Notification struct {
	ID       int64            `json:"id"`
	Message  string           `json:"message"`
	Type     NotificationType `json:"type"`
	Duration time.Duration    `json:"duration"`
}

// EventKind tags notification events delivered to subscribers.
type EventKind string

const (
	EventAdded   EventKind = "added"
	EventRemoved EventKind = "removed"
	EventCleared EventKind = "cleared"
)

// Event is fanned out to every active subscriber.
type Event struct {
	Kind         EventKind
	Notification Notification
}

// Center is the ordered notification queue. Add schedules auto-removal
// after the notification's duration; Remove cancels it and is a no-op
// when the id is already gone.
type Center struct {
	mu     sync.Mutex
	items  []Notification
	timers map[int64]*time.Timer
	subs   map[int]chan Event
	nextID int64
	next   int
}

// NewCenter creates an empty notification center.
func NewCenter() *Center {
	return &Center{
		timers: make(map[int64]*time.Timer),
		subs:   make(map[int]chan Event),
	}
}

// Add appends a notification and returns its time-based id immediately.
func (c *Center) Add(message string, kind NotificationType, duration time.Duration) int64 {
	if kind == "" {
		kind = NoticeInfo
	}
	if duration == 0 {
		duration = DefaultDuration
	}

	c.mu.Lock()
	id := time.Now().UnixMilli()
	if id <= c.nextID {
		id = c.nextID + 1
	}
	c.nextID = id

	n := Notification{ID: id, Message: message, Type: kind, Duration: duration}
	c.items = append(c.items, n)
	if duration > 0 {
		c.timers[id] = time.AfterFunc(duration, func() { c.Remove(id) })
	}
	c.broadcast(Event{Kind: EventAdded, Notification: n})
	c.mu.Unlock()
	return id
}

// Remove deletes by id and cancels its expiry timer. Idempotent.
func (c *Center) Remove(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}
	for i, n := range c.items {
		if n.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			c.broadcast(Event{Kind: EventRemoved, Notification: n})
			return
		}
	}
}

// Clear empties the queue and cancels all pending expiries.
func (c *Center) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
	c.items = nil
	c.broadcast(Event{Kind: EventCleared})
}

// List returns the queue in insertion order.
func (c *Center) List() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.items))
	copy(out, c.items)
	return out
}

// Subscribe registers a display surface. The returned cancel func must
// be called when the subscriber goes away. Slow subscribers drop events
// rather than block mutations.
func (c *Center) Subscribe() (<-chan Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.next
	c.next++
	ch := make(chan Event, 16)
	c.subs[id] = ch
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

// broadcast must be called with the lock held.
func (c *Center) broadcast(ev Event) {
	for _, sub := range c.subs {
		select {
		case sub <- ev:
		default:
		}
	}
}
