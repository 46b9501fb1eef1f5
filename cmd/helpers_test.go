// ABOUTME: Shared fixtures for command tests
// ABOUTME: Builds session wiring against an httptest backend with a memory jar

package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/markalston/fleet-dashboard/internal/config"
	"github.com/markalston/fleet-dashboard/internal/cookie"
	"github.com/markalston/fleet-dashboard/internal/sessionmeta"
)

// fakeAuthBackend serves the auth endpoints and counts calls per path.
type fakeAuthBackend struct {
	mu     sync.Mutex
	calls  map[string]int
	server *httptest.Server
}

func newFakeAuthBackend(t *testing.T) *fakeAuthBackend {
	t.Helper()
	b := &fakeAuthBackend{calls: map[string]int{}}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		b.count(r.URL.Path)
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		w.Header().Set("Content-Type", "application/json")
		if req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{"error": "Invalid credentials", "code": 401})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "FLEET_SESSION", Value: "sess-1", Path: "/", HttpOnly: true})
		json.NewEncoder(w).Encode(map[string]any{
			"success":              true,
			"username":             req.Username,
			"expires_at":           time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
			"idle_timeout_minutes": 15,
		})
	})
	mux.HandleFunc("POST /api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		b.count(r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeAuthBackend) count(path string) {
	b.mu.Lock()
	b.calls[path]++
	b.mu.Unlock()
}

func (b *fakeAuthBackend) callCount(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[path]
}

// newTestDeps wires a memory-only jar to baseURL with host-only cookies.
func newTestDeps(t *testing.T, baseURL string) *deps {
	t.Helper()
	d, err := newDeps(&config.Config{
		APIURL:         baseURL,
		RequestTimeout: 5,
		Environment:    cookie.EnvTest,
	})
	if err != nil {
		t.Fatalf("newDeps() error = %v", err)
	}
	return d
}

func storeSession(t *testing.T, d *deps, lastActivity time.Time, idleMinutes float64, expiresAt time.Time) {
	t.Helper()
	err := d.store.Write(sessionmeta.Metadata{
		LastActivityAt:     lastActivity.UnixMilli(),
		IdleTimeoutMinutes: idleMinutes,
		ExpiresAt:          sessionmeta.InstantFromMillis(expiresAt.UnixMilli()),
	})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
}

// withJSONOutput turns on --json for the duration of the test.
func withJSONOutput(t *testing.T) {
	t.Helper()
	jsonOutput = true
	t.Cleanup(func() { jsonOutput = false })
}
