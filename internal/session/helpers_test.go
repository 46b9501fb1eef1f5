// ABOUTME: Shared fakes and fixtures for session package tests
// ABOUTME: Provides a manual clock, a recording jar, and a scripted backend

package session

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/markalston/fleet-dashboard/internal/cookie"
	"github.com/markalston/fleet-dashboard/internal/sessionmeta"
)

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func newManualClock() *manualClock {
	return &manualClock{t: time.Now().Truncate(time.Millisecond)}
}

func (m *manualClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t
}

func (m *manualClock) Advance(d time.Duration) {
	m.mu.Lock()
	m.t = m.t.Add(d)
	m.mu.Unlock()
}

// recordingJar wraps a jar and keeps every cookie passed to SetCookies.
type recordingJar struct {
	http.CookieJar
	mu  sync.Mutex
	set []*http.Cookie
}

func (r *recordingJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	r.mu.Lock()
	for _, c := range cookies {
		copied := *c
		r.set = append(r.set, &copied)
	}
	r.mu.Unlock()
	r.CookieJar.SetCookies(u, cookies)
}

func (r *recordingJar) clears() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.set {
		if c.MaxAge < 0 {
			n++
		}
	}
	return n
}

func (r *recordingJar) last() *http.Cookie {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.set) == 0 {
		return nil
	}
	return r.set[len(r.set)-1]
}

const testSite = "https://acme.fleet.example.com/"

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q) error = %v", raw, err)
	}
	return u
}

func newTestStore(t *testing.T) (*Store, *recordingJar) {
	t.Helper()
	jar, err := cookie.New("")
	if err != nil {
		t.Fatalf("cookie.New() error = %v", err)
	}
	rec := &recordingJar{CookieJar: jar}
	return NewStore(rec, mustURL(t, testSite), cookie.ScopeFor(cookie.EnvTest, "")), rec
}

func writeMeta(t *testing.T, s *Store, lastActivity time.Time, idleMinutes float64, expiresAt time.Time) {
	t.Helper()
	err := s.Write(sessionmeta.Metadata{
		LastActivityAt:     lastActivity.UnixMilli(),
		IdleTimeoutMinutes: idleMinutes,
		ExpiresAt:          sessionmeta.InstantFromMillis(expiresAt.UnixMilli()),
	})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
}

// fakeBackend scripts renewal, activity, and logout responses.
type fakeBackend struct {
	mu          sync.Mutex
	renewCalls  int
	notifyCalls int
	endCalls    int

	renewErr  error
	renewResp sessionmeta.Raw
	notifyErr error

	// renewStarted receives once per renewal when non-nil.
	renewStarted chan struct{}
	// renewGate blocks renewals until closed when non-nil.
	renewGate chan struct{}
	ended     chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{ended: make(chan struct{}, 16)}
}

func (f *fakeBackend) RenewSession(ctx context.Context) (sessionmeta.Raw, error) {
	f.mu.Lock()
	f.renewCalls++
	started, gate := f.renewStarted, f.renewGate
	resp, err := f.renewResp, f.renewErr
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return sessionmeta.Raw{}, ctx.Err()
		}
	}
	return resp, err
}

func (f *fakeBackend) NotifyActivity(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifyCalls++
	return f.notifyErr
}

func (f *fakeBackend) EndSession(ctx context.Context) error {
	f.mu.Lock()
	f.endCalls++
	f.mu.Unlock()
	f.ended <- struct{}{}
	return nil
}

func (f *fakeBackend) counts() (renew, notify, end int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.renewCalls, f.notifyCalls, f.endCalls
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}
