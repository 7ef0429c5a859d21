package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quotesync/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.now = f.now.Add(d)
}

func newTestCenter(opts ...Option) (*Center, *fakeClock, *bytes.Buffer) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	opts = append([]Option{WithClock(clock.Now), WithLogger(logger)}, opts...)

	return NewCenter(opts...), clock, buf
}

func TestCenter_ExpiresAfterTTL(t *testing.T) {
	c, clock, _ := newTestCenter()

	c.Notify(context.Background(), domain.Notification{Level: domain.NotificationSuccess, Message: "Quotes synchronized successfully"})

	active := c.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "Quotes synchronized successfully", active[0].Message)
	assert.Equal(t, clock.Now(), active[0].CreatedAt)

	clock.Advance(DefaultTTL - time.Millisecond)
	assert.Len(t, c.Active(), 1)

	clock.Advance(time.Millisecond)
	assert.Empty(t, c.Active())
	assert.Len(t, c.History(), 1, "expired notifications stay in history")

	_, ok := c.Latest()
	assert.False(t, ok)
}

func TestCenter_Latest(t *testing.T) {
	c, clock, _ := newTestCenter()

	c.Notify(context.Background(), domain.Notification{Level: domain.NotificationInfo, Message: "first"})
	clock.Advance(time.Second)
	c.Notify(context.Background(), domain.Notification{Level: domain.NotificationError, Message: "second"})

	latest, ok := c.Latest()
	require.True(t, ok)
	assert.Equal(t, "second", latest.Message)
}

func TestCenter_CapacityDropsOldest(t *testing.T) {
	c, _, _ := newTestCenter(WithCapacity(3))

	for i := range 5 {
		c.Notify(context.Background(), domain.Notification{Level: domain.NotificationInfo, Message: fmt.Sprint(i)})
	}

	history := c.History()
	require.Len(t, history, 3)
	assert.Equal(t, "2", history[0].Message)
	assert.Equal(t, "4", history[2].Message)
}

func TestCenter_KeepsExplicitTimestamp(t *testing.T) {
	c, clock, _ := newTestCenter(WithTTL(time.Minute))
	at := clock.Now().Add(-30 * time.Second)

	c.Notify(context.Background(), domain.Notification{Level: domain.NotificationInfo, Message: "m", CreatedAt: at})

	require.Len(t, c.Active(), 1)
	assert.Equal(t, at, c.Active()[0].CreatedAt)
}

func TestCenter_LogsAtMatchingLevel(t *testing.T) {
	tests := []struct {
		level domain.NotificationLevel
		want  string
	}{
		{domain.NotificationSuccess, "level=INFO"},
		{domain.NotificationInfo, "level=INFO"},
		{domain.NotificationWarning, "level=WARN"},
		{domain.NotificationError, "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			c, _, buf := newTestCenter()

			c.Notify(context.Background(), domain.Notification{Level: tt.level, Message: "hello"})

			assert.Contains(t, buf.String(), tt.want)
			assert.Contains(t, buf.String(), "notification="+string(tt.level))
			assert.Contains(t, buf.String(), "component=notify.Center")
		})
	}
}

func TestCenter_IgnoresInvalidOptions(t *testing.T) {
	c := NewCenter(WithTTL(0), WithCapacity(-1), WithLogger(nil))

	assert.Equal(t, DefaultTTL, c.ttl)
	assert.Equal(t, DefaultCapacity, c.capacity)
	assert.NotNil(t, c.logger)
}

func TestCenter_ConcurrentNotify(t *testing.T) {
	c, _, _ := newTestCenter(WithCapacity(1000))

	var wg sync.WaitGroup
	for range 100 {
		wg.Go(func() {
			c.Notify(context.Background(), domain.Notification{Level: domain.NotificationInfo, Message: "x"})
		})
	}

	wg.Wait()

	assert.Len(t, c.History(), 100)
}
