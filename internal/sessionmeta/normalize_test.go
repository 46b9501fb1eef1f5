// ABOUTME: Tests for session metadata normalization
// ABOUTME: Verifies idle fallbacks, expiry parsing, and public/derived expiry agreement

package sessionmeta

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestNormalizeIdleMinutes(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  float64
	}{
		{"positive float", 15.5, 15.5},
		{"positive int", 10, 10},
		{"json number", json.Number("12"), 12},
		{"zero falls back", 0.0, DefaultIdleMinutes},
		{"negative falls back", -5.0, DefaultIdleMinutes},
		{"NaN falls back", math.NaN(), DefaultIdleMinutes},
		{"infinity falls back", math.Inf(1), DefaultIdleMinutes},
		{"numeric string falls back", "20", DefaultIdleMinutes},
		{"nil falls back", nil, DefaultIdleMinutes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeIdleMinutes(tt.value); got != tt.want {
				t.Errorf("NormalizeIdleMinutes(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdleMinutesForRefresh(t *testing.T) {
	if got := NormalizeIdleMinutesForRefresh(nil); got != RefreshIdleMinutes {
		t.Errorf("NormalizeIdleMinutesForRefresh(nil) = %v, want %v", got, RefreshIdleMinutes)
	}
	if got := NormalizeIdleMinutesForRefresh(0.0); got != RefreshIdleMinutes {
		t.Errorf("NormalizeIdleMinutesForRefresh(0) = %v, want %v", got, RefreshIdleMinutes)
	}
	if got := NormalizeIdleMinutesForRefresh(45.0); got != 45 {
		t.Errorf("NormalizeIdleMinutesForRefresh(45) = %v, want 45", got)
	}
	if RefreshIdleMinutes >= DefaultIdleMinutes {
		t.Errorf("refresh default %v should be shorter than general default %v", RefreshIdleMinutes, DefaultIdleMinutes)
	}
}

func TestNormalizeExpiresAt(t *testing.T) {
	idleFallback := fixedNow.UnixMilli() + 10*60_000

	tests := []struct {
		name string
		raw  any
		want int64
	}{
		{"epoch millis", float64(1_800_000_000_000), 1_800_000_000_000},
		{"int64 millis", int64(1_800_000_000_123), 1_800_000_000_123},
		{"RFC3339 string", "2026-03-14T13:00:00Z", fixedNow.Add(time.Hour).UnixMilli()},
		{"RFC3339 with millis", "2026-03-14T13:00:00.250Z", fixedNow.Add(time.Hour + 250*time.Millisecond).UnixMilli()},
		{"offset string", "2026-03-14T14:00:00+01:00", fixedNow.Add(time.Hour).UnixMilli()},
		{"zone-less string read as UTC", "2026-03-14T13:00:00", fixedNow.Add(time.Hour).UnixMilli()},
		{"unparsable string", "next tuesday", idleFallback},
		{"empty string", "", idleFallback},
		{"nil", nil, idleFallback},
		{"NaN", math.NaN(), idleFallback},
		{"boolean", true, idleFallback},
		{"numeric instant", InstantFromMillis(1_700_000_000_000), 1_700_000_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeExpiresAt(tt.raw, 10, fixedNow)
			if got != tt.want {
				t.Errorf("NormalizeExpiresAt(%v) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalize_AllFieldsFinite(t *testing.T) {
	n := Normalize(Raw{}, fixedNow)

	if n.IdleTimeoutMinutes != DefaultIdleMinutes {
		t.Errorf("IdleTimeoutMinutes = %v, want %v", n.IdleTimeoutMinutes, DefaultIdleMinutes)
	}
	if n.IdleTimeoutMs != 30*60_000 {
		t.Errorf("IdleTimeoutMs = %d, want %d", n.IdleTimeoutMs, 30*60_000)
	}
	if n.LastActivityAt != fixedNow.UnixMilli() {
		t.Errorf("LastActivityAt = %d, want now %d", n.LastActivityAt, fixedNow.UnixMilli())
	}
	wantExpiry := fixedNow.UnixMilli() + 30*60_000
	if n.ExpiresAtMs != wantExpiry {
		t.Errorf("ExpiresAtMs = %d, want %d", n.ExpiresAtMs, wantExpiry)
	}
}

func TestNormalize_DefaultIdleOption(t *testing.T) {
	n := Normalize(Raw{}, fixedNow, WithDefaultIdleMinutes(12))
	if n.IdleTimeoutMinutes != 12 {
		t.Errorf("IdleTimeoutMinutes = %v, want 12", n.IdleTimeoutMinutes)
	}

	n = Normalize(Raw{}, fixedNow, WithDefaultIdleMinutes(-1))
	if n.IdleTimeoutMinutes != DefaultIdleMinutes {
		t.Errorf("negative option should be ignored, got %v", n.IdleTimeoutMinutes)
	}
}

func TestNormalize_RewritesPublicExpiryOnFallback(t *testing.T) {
	n := Normalize(Raw{
		LastActivityAt:     float64(fixedNow.UnixMilli() - 5000),
		IdleTimeoutMinutes: 5.0,
		ExpiresAt:          "not a date",
	}, fixedNow)

	publicMs, ok := n.ExpiresAt.Millis()
	if !ok {
		t.Fatalf("public ExpiresAt %q is not parsable", n.ExpiresAt.String())
	}
	if publicMs != n.ExpiresAtMs {
		t.Errorf("public expiry %d disagrees with derived %d", publicMs, n.ExpiresAtMs)
	}
	if n.ExpiresAt.String() == "not a date" {
		t.Error("public ExpiresAt should have been rewritten")
	}
	if n.LastActivityAt != fixedNow.UnixMilli()-5000 {
		t.Errorf("LastActivityAt = %d, want %d", n.LastActivityAt, fixedNow.UnixMilli()-5000)
	}
}

func TestNormalize_KeepsStringExpiry(t *testing.T) {
	n := Normalize(Raw{ExpiresAt: "2026-03-14T13:00:00Z"}, fixedNow)

	if !n.ExpiresAt.IsText() || n.ExpiresAt.String() != "2026-03-14T13:00:00Z" {
		t.Errorf("ExpiresAt = %q, want original string", n.ExpiresAt.String())
	}
	if n.ExpiresAtMs != fixedNow.Add(time.Hour).UnixMilli() {
		t.Errorf("ExpiresAtMs = %d, want %d", n.ExpiresAtMs, fixedNow.Add(time.Hour).UnixMilli())
	}
}

func TestNormalizeForRefresh(t *testing.T) {
	r := NormalizeForRefresh(Raw{ExpiresAt: float64(fixedNow.Add(time.Hour).UnixMilli())}, fixedNow)

	if r.IdleMinutes != RefreshIdleMinutes {
		t.Errorf("IdleMinutes = %v, want %v", r.IdleMinutes, RefreshIdleMinutes)
	}
	if r.IdleMs != 28*60_000 {
		t.Errorf("IdleMs = %d, want %d", r.IdleMs, 28*60_000)
	}
	if r.ExpiresAtMs != fixedNow.Add(time.Hour).UnixMilli() {
		t.Errorf("ExpiresAtMs = %d, want %d", r.ExpiresAtMs, fixedNow.Add(time.Hour).UnixMilli())
	}

	fallback := NormalizeForRefresh(Raw{IdleTimeoutMinutes: 0.0}, fixedNow)
	want := fixedNow.UnixMilli() + 28*60_000
	if fallback.ExpiresAtMs != want {
		t.Errorf("fallback ExpiresAtMs = %d, want %d", fallback.ExpiresAtMs, want)
	}
	if ms, _ := fallback.ExpiresAt.Millis(); ms != want {
		t.Errorf("fallback public expiry = %d, want %d", ms, want)
	}
}

func TestNormalize_LargeIdleTimeout(t *testing.T) {
	tests := []struct {
		name   string
		idle   float64
		wantMs int64
	}{
		{"two hundred million minutes", 2e8, 12_000_000_000_000},
		{"beyond any duration", 1e300, 1 << 53},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeIdleMinutes(tt.idle); got != tt.idle {
				t.Errorf("NormalizeIdleMinutes(%v) = %v, want unchanged", tt.idle, got)
			}

			n := Normalize(Raw{IdleTimeoutMinutes: tt.idle}, fixedNow)
			if n.IdleTimeoutMs != tt.wantMs {
				t.Errorf("IdleTimeoutMs = %d, want %d", n.IdleTimeoutMs, tt.wantMs)
			}
			if n.ExpiresAtMs != fixedNow.UnixMilli()+tt.wantMs {
				t.Errorf("ExpiresAtMs = %d, want %d", n.ExpiresAtMs, fixedNow.UnixMilli()+tt.wantMs)
			}
			if ms, ok := n.ExpiresAt.Millis(); !ok || ms != n.ExpiresAtMs {
				t.Errorf("ExpiresAt = %v, want %d", n.ExpiresAt, n.ExpiresAtMs)
			}
		})
	}
}
