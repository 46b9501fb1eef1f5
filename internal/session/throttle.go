// ABOUTME: Rate-limited "session still in use" notifications to the backend
// ABOUTME: Best-effort signal; failures are logged and never end the session

package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultActivityInterval is the minimum gap between notifications.
const DefaultActivityInterval = 60 * time.Second

const notifyTimeout = 10 * time.Second

// Notifier tells the backend the session is being used.
type Notifier interface {
	NotifyActivity(ctx context.Context) error
}

// ActivityThrottle sends at most one notification per interval. The
// limiter is driven by caller-supplied timestamps, not the wall clock.
type ActivityThrottle struct {
	notifier Notifier
	limiter  *rate.Limiter

	mu       sync.Mutex
	lastSent time.Time
}

// NewActivityThrottle creates a throttle. An interval <= 0 uses
// DefaultActivityInterval.
func NewActivityThrottle(notifier Notifier, interval time.Duration) *ActivityThrottle {
	if interval <= 0 {
		interval = DefaultActivityInterval
	}
	return &ActivityThrottle{
		notifier: notifier,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
	}
}

// MaybeNotify dispatches a notification when the user has interacted since
// mount, is below the idle threshold, and the interval has elapsed since
// the last one. Returns true when a notification was dispatched. The call
// runs in the background.
func (t *ActivityThrottle) MaybeNotify(now time.Time, hasInteracted bool, secondsIdle, idleTimeoutSeconds float64) bool {
	if t == nil || t.notifier == nil {
		return false
	}
	if !hasInteracted || secondsIdle >= idleTimeoutSeconds {
		return false
	}

	t.mu.Lock()
	if !t.limiter.AllowN(now, 1) {
		t.mu.Unlock()
		return false
	}
	t.lastSent = now
	t.mu.Unlock()

	go t.send()
	return true
}

// LastSent returns when the last notification was dispatched.
func (t *ActivityThrottle) LastSent() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSent
}

func (t *ActivityThrottle) send() {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	if err := t.notifier.NotifyActivity(ctx); err != nil {
		slog.Warn("Activity notification failed", "error", err)
		return
	}
	slog.Debug("Activity notification sent")
}
