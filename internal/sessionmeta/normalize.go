// ABOUTME: Pure normalization of loosely typed session metadata
// ABOUTME: Guarantees finite idle and expiry values so a countdown is always computable

package sessionmeta

import (
	"encoding/json"
	"math"
	"time"
)

const (
	// DefaultIdleMinutes applies when a session is established without a
	// usable idle timeout.
	DefaultIdleMinutes = 30.0

	// RefreshIdleMinutes applies on the renewal path. It sits below the
	// server's intended value so a renewed session is treated conservatively.
	RefreshIdleMinutes = 28.0

	msPerMinute = 60_000

	// maxMillis caps derived durations so now+duration stays within int64.
	// It is about 285,000 years.
	maxMillis = 1 << 53
)

// Normalized is session metadata with every derived field finite.
type Normalized struct {
	LastActivityAt     int64
	IdleTimeoutMinutes float64
	ExpiresAt          Instant
	ExpiresAtMs        int64
	IdleTimeoutMs      int64
}

// Metadata returns the persisted form of n.
func (n Normalized) Metadata() Metadata {
	return Metadata{
		LastActivityAt:     n.LastActivityAt,
		IdleTimeoutMinutes: n.IdleTimeoutMinutes,
		ExpiresAt:          n.ExpiresAt,
	}
}

// Refreshed is the flattened result of normalizing a renewal response.
type Refreshed struct {
	ExpiresAt   Instant
	ExpiresAtMs int64
	IdleMinutes float64
	IdleMs      int64
}

type options struct {
	defaultIdleMinutes float64
}

// Option customizes Normalize.
type Option func(*options)

// WithDefaultIdleMinutes overrides the fallback idle timeout. Non-positive
// or non-finite values are ignored.
func WithDefaultIdleMinutes(minutes float64) Option {
	return func(o *options) {
		if isPositive(minutes) {
			o.defaultIdleMinutes = minutes
		}
	}
}

// NormalizeIdleMinutes returns value when it is a finite number greater
// than zero, otherwise DefaultIdleMinutes. Zero and negative values count
// as absent.
func NormalizeIdleMinutes(value any) float64 {
	return normalizeIdle(value, DefaultIdleMinutes)
}

// NormalizeIdleMinutesForRefresh is NormalizeIdleMinutes with the shorter
// RefreshIdleMinutes fallback.
func NormalizeIdleMinutesForRefresh(value any) float64 {
	return normalizeIdle(value, RefreshIdleMinutes)
}

// NormalizeExpiresAt converts raw to epoch milliseconds. Numbers are taken
// as milliseconds, strings are parsed as dates, and anything unusable
// yields now plus the idle window.
func NormalizeExpiresAt(raw any, idleMinutes float64, now time.Time) int64 {
	if ms, ok := parseExpiresAt(raw); ok {
		return ms
	}
	return idleDeadline(idleMinutes, now)
}

// Normalize turns raw metadata into a record whose derived fields are all
// finite. When the expiry cannot be parsed it is synthesized from the idle
// window and the public ExpiresAt is rewritten to match.
func Normalize(raw Raw, now time.Time, opts ...Option) Normalized {
	o := options{defaultIdleMinutes: DefaultIdleMinutes}
	for _, opt := range opts {
		opt(&o)
	}

	idle := normalizeIdle(raw.IdleTimeoutMinutes, o.defaultIdleMinutes)
	expiresAt, expiresAtMs := normalizeExpiry(raw.ExpiresAt, idle, now)

	lastActivity := now.UnixMilli()
	if n, ok := toNumber(raw.LastActivityAt); ok {
		if ms, ok := floatMillis(n); ok {
			lastActivity = ms
		}
	}

	return Normalized{
		LastActivityAt:     lastActivity,
		IdleTimeoutMinutes: idle,
		ExpiresAt:          expiresAt,
		ExpiresAtMs:        expiresAtMs,
		IdleTimeoutMs:      minutesToMillis(idle),
	}
}

// NormalizeForRefresh normalizes a renewal response. The idle fallback is
// RefreshIdleMinutes.
func NormalizeForRefresh(raw Raw, now time.Time) Refreshed {
	idle := NormalizeIdleMinutesForRefresh(raw.IdleTimeoutMinutes)
	expiresAt, expiresAtMs := normalizeExpiry(raw.ExpiresAt, idle, now)

	return Refreshed{
		ExpiresAt:   expiresAt,
		ExpiresAtMs: expiresAtMs,
		IdleMinutes: idle,
		IdleMs:      minutesToMillis(idle),
	}
}

// normalizeExpiry returns the public and derived expiry, which always agree.
func normalizeExpiry(raw any, idleMinutes float64, now time.Time) (Instant, int64) {
	ms, ok := parseExpiresAt(raw)
	if !ok {
		ms = idleDeadline(idleMinutes, now)
		t := time.UnixMilli(ms)
		if t.Year() > 9999 {
			// ISO text stops at year 9999.
			return InstantFromMillis(ms), ms
		}
		return InstantFromTime(t), ms
	}

	if s, isString := raw.(string); isString {
		return InstantFromString(s), ms
	}
	if inst, isInstant := raw.(Instant); isInstant && inst.IsText() {
		return inst, ms
	}
	if _, isTime := raw.(time.Time); isTime {
		return InstantFromTime(time.UnixMilli(ms)), ms
	}
	return InstantFromMillis(ms), ms
}

// parseExpiresAt extracts epoch milliseconds from the accepted raw forms.
func parseExpiresAt(raw any) (int64, bool) {
	switch v := raw.(type) {
	case nil:
		return 0, false
	case string:
		return parseDateMillis(v)
	case Instant:
		return v.Millis()
	case *Instant:
		if v == nil {
			return 0, false
		}
		return v.Millis()
	case time.Time:
		if v.IsZero() {
			return 0, false
		}
		return v.UnixMilli(), true
	}

	if n, ok := toNumber(raw); ok {
		return floatMillis(n)
	}
	return 0, false
}

func normalizeIdle(value any, fallback float64) float64 {
	if n, ok := toNumber(value); ok && n > 0 {
		return n
	}
	return fallback
}

// toNumber accepts numeric kinds only; numeric-looking strings are rejected.
func toNumber(value any) (float64, bool) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func idleDeadline(idleMinutes float64, now time.Time) int64 {
	if !isPositive(idleMinutes) {
		idleMinutes = DefaultIdleMinutes
	}
	return now.UnixMilli() + minutesToMillis(idleMinutes)
}

func minutesToMillis(minutes float64) int64 {
	ms := math.Round(minutes * msPerMinute)
	if ms >= maxMillis {
		return maxMillis
	}
	return int64(ms)
}

func isPositive(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f > 0
}
