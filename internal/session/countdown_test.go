// ABOUTME: Tests for countdown arithmetic and the activity feed
// ABOUTME: Checks ceiling rounding and subscribe/unsubscribe behavior

package session

import (
	"testing"
	"time"

	"github.com/markalston/fleet-dashboard/internal/sessionmeta"
)

func TestEvaluate(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		lastActivity time.Duration
		idleMinutes  float64
		expiresIn    time.Duration
		wantIdle     int
		wantToken    int
		idleExpired  bool
		tokenExpired bool
	}{
		{"fresh", -10 * time.Second, 5, time.Minute, 290, 60, false, false},
		{"partial seconds round up", -1500 * time.Millisecond, 1, 500 * time.Millisecond, 59, 1, false, false},
		{"idle exactly reached", -time.Minute, 1, time.Hour, 0, 3600, true, false},
		{"idle overshoot clamps", -2 * time.Minute, 1, time.Hour, 0, 3600, true, false},
		{"token exactly reached", 0, 5, 0, 300, 0, false, true},
		{"token past clamps", 0, 5, -time.Minute, 300, 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := sessionmeta.Normalize(sessionmeta.Raw{
				LastActivityAt:     now.Add(tt.lastActivity).UnixMilli(),
				IdleTimeoutMinutes: tt.idleMinutes,
				ExpiresAt:          now.Add(tt.expiresIn).UnixMilli(),
			}, now)

			cd := Evaluate(meta, now)
			if got := cd.SecondsUntilIdleLogout(); got != tt.wantIdle {
				t.Errorf("SecondsUntilIdleLogout() = %d, want %d", got, tt.wantIdle)
			}
			if got := cd.SecondsUntilTokenExpires(); got != tt.wantToken {
				t.Errorf("SecondsUntilTokenExpires() = %d, want %d", got, tt.wantToken)
			}
			if cd.IdleExpired() != tt.idleExpired {
				t.Errorf("IdleExpired() = %v, want %v", cd.IdleExpired(), tt.idleExpired)
			}
			if cd.TokenExpired() != tt.tokenExpired {
				t.Errorf("TokenExpired() = %v, want %v", cd.TokenExpired(), tt.tokenExpired)
			}
		})
	}
}

func TestEvaluate_LargeValues(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	t.Run("long idle timeouts stay active", func(t *testing.T) {
		for _, idle := range []float64{2e8, 1e300} {
			meta := sessionmeta.Normalize(sessionmeta.Raw{
				LastActivityAt:     now.UnixMilli(),
				IdleTimeoutMinutes: idle,
				ExpiresAt:          now.Add(time.Hour).UnixMilli(),
			}, now)

			cd := Evaluate(meta, now)
			if cd.IdleExpired() {
				t.Errorf("idle %v: IdleExpired() = true, want false", idle)
			}
			if cd.SecondsUntilIdleLogout() <= 0 {
				t.Errorf("idle %v: SecondsUntilIdleLogout() = %d, want positive", idle, cd.SecondsUntilIdleLogout())
			}
			if cd.IdleRemaining <= 0 || cd.IdleTimeout <= 0 {
				t.Errorf("idle %v: IdleRemaining = %v, IdleTimeout = %v, want positive", idle, cd.IdleRemaining, cd.IdleTimeout)
			}
		}
	})

	t.Run("idle seconds are exact past the duration range", func(t *testing.T) {
		meta := sessionmeta.Normalize(sessionmeta.Raw{
			LastActivityAt:     now.UnixMilli(),
			IdleTimeoutMinutes: 2e8,
			ExpiresAt:          now.Add(time.Hour).UnixMilli(),
		}, now)

		cd := Evaluate(meta, now)
		if got, want := cd.SecondsUntilIdleLogout(), 12_000_000_000; got != want {
			t.Errorf("SecondsUntilIdleLogout() = %d, want %d", got, want)
		}
		if got, want := cd.IdleTimeoutSeconds(), 12_000_000_000; got != want {
			t.Errorf("IdleTimeoutSeconds() = %d, want %d", got, want)
		}
	})

	t.Run("far expiry", func(t *testing.T) {
		const expiresAt = int64(1e14)
		meta := sessionmeta.Normalize(sessionmeta.Raw{
			LastActivityAt:     now.UnixMilli(),
			IdleTimeoutMinutes: 30,
			ExpiresAt:          expiresAt,
		}, now)

		cd := Evaluate(meta, now)
		if cd.TokenExpired() {
			t.Error("TokenExpired() = true, want false")
		}
		want := int((expiresAt - now.UnixMilli() + 999) / 1000)
		if got := cd.SecondsUntilTokenExpires(); got != want {
			t.Errorf("SecondsUntilTokenExpires() = %d, want %d", got, want)
		}
		if cd.TokenRemaining <= 0 {
			t.Errorf("TokenRemaining = %v, want positive", cd.TokenRemaining)
		}
	})
}

func TestActivityFeed(t *testing.T) {
	feed := NewActivityFeed()

	var got []EventKind
	unsubscribe := feed.Subscribe(func(k EventKind) { got = append(got, k) })
	if feed.Subscribers() != 1 {
		t.Fatalf("Subscribers() = %d, want 1", feed.Subscribers())
	}

	feed.Emit(EventKeyPress)
	feed.Emit(EventScroll)

	unsubscribe()
	unsubscribe()
	feed.Emit(EventClick)

	if len(got) != 2 || got[0] != EventKeyPress || got[1] != EventScroll {
		t.Errorf("received %v, want [key_press scroll]", got)
	}
	if feed.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d after unsubscribe, want 0", feed.Subscribers())
	}
}

func TestActivityFeed_UnsubscribeFromCallback(t *testing.T) {
	feed := NewActivityFeed()

	calls := 0
	var unsubscribe func()
	unsubscribe = feed.Subscribe(func(EventKind) {
		calls++
		unsubscribe()
	})

	feed.Emit(EventClick)
	feed.Emit(EventClick)

	if calls != 1 {
		t.Errorf("callback ran %d times, want 1", calls)
	}
}

func TestEventKind_String(t *testing.T) {
	if EventPointerMove.String() != "pointer_move" {
		t.Errorf("EventPointerMove.String() = %q", EventPointerMove.String())
	}
	if EventManual.String() != "manual" {
		t.Errorf("EventManual.String() = %q", EventManual.String())
	}
	if EventKind(99).String() != "unknown" {
		t.Errorf("EventKind(99).String() = %q", EventKind(99).String())
	}
}
