// ABOUTME: Idle and token-expiry countdown arithmetic
// ABOUTME: Shared by the lifecycle controller and one-shot status reporting

package session

import (
	"math"
	"time"

	"github.com/markalston/fleet-dashboard/internal/sessionmeta"
)

// maxDurationMs is the largest millisecond count a time.Duration can hold,
// roughly 292 years.
const maxDurationMs = math.MaxInt64 / int64(time.Millisecond)

// Countdown is the time left before each session deadline. Durations
// saturate at about 292 years; the second counts do not.
type Countdown struct {
	IdleElapsed    time.Duration
	IdleRemaining  time.Duration
	TokenRemaining time.Duration
	IdleTimeout    time.Duration

	idleTimeoutMs    int64
	idleRemainingMs  int64
	tokenRemainingMs int64
}

// Evaluate computes the countdowns for meta at now.
func Evaluate(meta sessionmeta.Normalized, now time.Time) Countdown {
	nowMs := now.UnixMilli()
	elapsedMs := subMillis(nowMs, meta.LastActivityAt)
	idleRemainingMs := subMillis(meta.IdleTimeoutMs, elapsedMs)
	tokenRemainingMs := subMillis(meta.ExpiresAtMs, nowMs)

	return Countdown{
		IdleElapsed:      millis(elapsedMs),
		IdleRemaining:    millis(idleRemainingMs),
		TokenRemaining:   millis(tokenRemainingMs),
		IdleTimeout:      millis(meta.IdleTimeoutMs),
		idleTimeoutMs:    meta.IdleTimeoutMs,
		idleRemainingMs:  idleRemainingMs,
		tokenRemainingMs: tokenRemainingMs,
	}
}

// IdleExpired reports whether the idle timeout has been reached.
func (c Countdown) IdleExpired() bool {
	return c.idleRemainingMs <= 0
}

// TokenExpired reports whether the token expiry has been reached.
func (c Countdown) TokenExpired() bool {
	return c.tokenRemainingMs <= 0
}

// SecondsIdle returns the time since the last activity in seconds.
func (c Countdown) SecondsIdle() float64 {
	return c.IdleElapsed.Seconds()
}

// SecondsUntilIdleLogout rounds up, so it reaches 0 only once expired.
func (c Countdown) SecondsUntilIdleLogout() int {
	return ceilSeconds(c.idleRemainingMs)
}

// SecondsUntilTokenExpires rounds up, so it reaches 0 only once expired.
func (c Countdown) SecondsUntilTokenExpires() int {
	return ceilSeconds(c.tokenRemainingMs)
}

// IdleTimeoutSeconds returns the idle window rounded to whole seconds.
func (c Countdown) IdleTimeoutSeconds() int {
	return int((c.idleTimeoutMs + 500) / 1000)
}

func ceilSeconds(ms int64) int {
	if ms <= 0 {
		return 0
	}
	secs := ms / 1000
	if ms%1000 != 0 {
		secs++
	}
	return int(secs)
}

// millis converts ms to a Duration, saturating instead of wrapping.
func millis(ms int64) time.Duration {
	switch {
	case ms > maxDurationMs:
		return time.Duration(maxDurationMs) * time.Millisecond
	case ms < -maxDurationMs:
		return -time.Duration(maxDurationMs) * time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}

// subMillis returns a-b, saturating at the int64 bounds.
func subMillis(a, b int64) int64 {
	d := a - b
	if (a >= 0) != (b >= 0) && (d >= 0) != (a >= 0) {
		if a >= 0 {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return d
}
