package telemetry

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MaxNotifications is how many notifications are retained.
const MaxNotifications = 50

type Notification struct {
	ID         string    `json:"id"`
	Level      string    `json:"level"`
	Message    string    `json:"message"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Notifications keeps the most recent notifications, newest first.
type Notifications struct {
	mu           sync.Mutex
	items        []Notification
	listeners    map[int]func([]Notification)
	nextListener int
}

func NewNotifications() *Notifications {
	return &Notifications{listeners: make(map[int]func([]Notification))}
}

// Add prepends n, assigning an ID and timestamp when missing, and drops the
// oldest entries beyond MaxNotifications.
func (n *Notifications) Add(note Notification) {
	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	if note.ReceivedAt.IsZero() {
		note.ReceivedAt = time.Now()
	}
	if note.Level == "" {
		note.Level = "info"
	}

	n.update(func() {
		n.items = append([]Notification{note}, n.items...)
		if len(n.items) > MaxNotifications {
			n.items = n.items[:MaxNotifications]
		}
	})
}

// Clear removes every notification.
func (n *Notifications) Clear() {
	n.update(func() {
		n.items = nil
	})
}

// List returns a copy of the notifications, newest first.
func (n *Notifications) List() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.items...)
}

func (n *Notifications) Subscribe(fn func([]Notification)) func() {
	n.mu.Lock()
	id := n.nextListener
	n.nextListener++
	n.listeners[id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.listeners, id)
		n.mu.Unlock()
	}
}

func (n *Notifications) update(fn func()) {
	n.mu.Lock()
	fn()
	snap := append([]Notification(nil), n.items...)
	listeners := make([]func([]Notification), 0, len(n.listeners))
	for _, l := range n.listeners {
		listeners = append(listeners, l)
	}
	n.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}
