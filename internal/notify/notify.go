package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a user-visible, dismissible message. Sticky notifications
// carry a Key and stay until the condition behind them clears.
type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Key       string    `json:"key,omitempty"`
	Sticky    bool      `json:"sticky"`
	CreatedAt time.Time `json:"createdAt"`
}

// Center keeps the current notifications in arrival order.
type Center struct {
	mu          sync.Mutex
	items       []Notification
	subscribers map[chan Notification]struct{}
	limit       int
}

// NewCenter keeps at most limit non-sticky notifications (0 means 50).
func NewCenter(limit int) *Center {
	if limit <= 0 {
		limit = 50
	}
	return &Center{subscribers: make(map[chan Notification]struct{}), limit: limit}
}

// Push adds a dismissible notification and returns it.
func (c *Center) Push(level Level, message string) Notification {
	n := Notification{
		ID:        uuid.New().String(),
		Level:     level,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	c.mu.Lock()
	c.items = append(c.items, n)
	c.trimLocked()
	c.broadcastLocked(n)
	c.mu.Unlock()
	return n
}

// PushSticky sets the notification for key, replacing an existing one.
func (c *Center) PushSticky(key string, level Level, message string) Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.items {
		if existing.Key == key {
			existing.Level = level
			existing.Message = message
			c.items[i] = existing
			return existing
		}
	}
	n := Notification{
		ID:        uuid.New().String(),
		Level:     level,
		Message:   message,
		Key:       key,
		Sticky:    true,
		CreatedAt: time.Now().UTC(),
	}
	c.items = append(c.items, n)
	c.broadcastLocked(n)
	return n
}

// ClearKey removes the sticky notification for key and reports whether one existed.
func (c *Center) ClearKey(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.items {
		if n.Key == key {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

// Has reports whether a sticky notification for key is active.
func (c *Center) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range c.items {
		if n.Key == key {
			return true
		}
	}
	return false
}

// Dismiss removes a notification by id.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.items {
		if n.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Center) List() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.items))
	copy(out, c.items)
	return out
}

// Subscribe returns a channel receiving new notifications and a cancel func.
// Slow subscribers miss notifications rather than blocking producers.
func (c *Center) Subscribe() (<-chan Notification, func()) {
	ch := make(chan Notification, 16)
	c.mu.Lock()
	c.subscribers[ch] = struct{}{}
	c.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers, ch)
			c.mu.Unlock()
			close(ch)
		})
	}
}

func (c *Center) broadcastLocked(n Notification) {
	for ch := range c.subscribers {
		select {
		case ch <- n:
		default:
		}
	}
}

func (c *Center) trimLocked() {
	transient := 0
	for _, n := range c.items {
		if !n.Sticky {
			transient++
		}
	}
	for i := 0; transient > c.limit && i < len(c.items); {
		if c.items[i].Sticky {
			i++
			continue
		}
		c.items = append(c.items[:i], c.items[i+1:]...)
		transient--
	}
}
