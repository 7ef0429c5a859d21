// Package notify holds transient user notifications in memory.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jsamuelsen/quotesync/internal/domain"
)

const (
	// DefaultTTL is how long a notification stays active.
	DefaultTTL = 3 * time.Second

	// DefaultCapacity bounds the retained history.
	DefaultCapacity = 50
)

// Center implements ports.Notifier. Notifications are active for the TTL
// after they are raised and retained in a bounded history afterwards.
type Center struct {
	mu       sync.Mutex
	entries  []domain.Notification
	ttl      time.Duration
	capacity int
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Center.
type Option func(*Center)

// WithTTL overrides DefaultTTL.
func WithTTL(d time.Duration) Option {
	return func(c *Center) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithCapacity overrides DefaultCapacity.
func WithCapacity(n int) Option {
	return func(c *Center) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithLogger sets the logger notifications are mirrored to.
func WithLogger(l *slog.Logger) Option {
	return func(c *Center) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Center) { c.now = now }
}

// NewCenter creates an empty notification center.
func NewCenter(opts ...Option) *Center {
	c := &Center{
		ttl:      DefaultTTL,
		capacity: DefaultCapacity,
		logger:   slog.Default(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.With(slog.String("component", "notify.Center"))

	return c
}

// Notify implements ports.Notifier.
func (c *Center) Notify(ctx context.Context, n domain.Notification) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = c.now()
	}

	c.mu.Lock()
	c.entries = append(c.entries, n)
	if over := len(c.entries) - c.capacity; over > 0 {
		c.entries = append(c.entries[:0:0], c.entries[over:]...)
	}
	c.mu.Unlock()

	c.logger.Log(ctx, levelFor(n.Level), n.Message, slog.String("notification", string(n.Level)))
}

// Active returns notifications raised within the TTL, oldest first.
func (c *Center) Active() []domain.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.ttl)
	out := make([]domain.Notification, 0)

	for _, n := range c.entries {
		if n.CreatedAt.After(cutoff) {
			out = append(out, n)
		}
	}

	return out
}

// History returns every retained notification, oldest first.
func (c *Center) History() []domain.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.Notification, len(c.entries))
	copy(out, c.entries)

	return out
}

// Latest returns the newest active notification, if any.
func (c *Center) Latest() (domain.Notification, bool) {
	active := c.Active()
	if len(active) == 0 {
		return domain.Notification{}, false
	}

	return active[len(active)-1], true
}

func levelFor(l domain.NotificationLevel) slog.Level {
	switch l {
	case domain.NotificationError:
		return slog.LevelError
	case domain.NotificationWarning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
