// ABOUTME: Tests for the logout command
// ABOUTME: Verifies local metadata is cleared and the backend is told once

package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/markalston/fleet-dashboard/internal/session"
)

func newLogoutController(d *deps) *session.Controller {
	return session.NewController(session.Config{
		Store: d.store,
		Ender: d.client,
	})
}

func TestRunLogout_ActiveSession(t *testing.T) {
	backend := newFakeAuthBackend(t)
	d := newTestDeps(t, backend.server.URL)
	now := time.Now()
	storeSession(t, d, now, 30, now.Add(time.Hour))

	ctrl := newLogoutController(d)
	var buf bytes.Buffer
	runLogout(&buf, ctrl)

	if _, err := d.store.Load(); !errors.Is(err, session.ErrNoSession) {
		t.Errorf("expected metadata cleared, Load() error = %v", err)
	}
	if got := backend.callCount("/api/v1/auth/logout"); got != 1 {
		t.Errorf("expected 1 backend logout, got %d", got)
	}
	if ctrl.State().Reason != session.ReasonLogout {
		t.Errorf("expected reason logout, got %q", ctrl.State().Reason)
	}
	if !strings.Contains(buf.String(), "Signed out") {
		t.Errorf("expected confirmation, got %q", buf.String())
	}
}

func TestRunLogout_NoLocalSession(t *testing.T) {
	backend := newFakeAuthBackend(t)
	d := newTestDeps(t, backend.server.URL)

	var buf bytes.Buffer
	runLogout(&buf, newLogoutController(d))

	if got := backend.callCount("/api/v1/auth/logout"); got != 1 {
		t.Errorf("expected backend logout even without local metadata, got %d calls", got)
	}
}

func TestRunLogout_BackendDown(t *testing.T) {
	d := newTestDeps(t, "http://127.0.0.1:1")
	now := time.Now()
	storeSession(t, d, now, 30, now.Add(time.Hour))

	var buf bytes.Buffer
	runLogout(&buf, newLogoutController(d))

	if _, ok := d.store.Read(); ok {
		t.Error("expected metadata cleared when the backend is unreachable")
	}
	if !strings.Contains(buf.String(), "Signed out") {
		t.Errorf("expected confirmation, got %q", buf.String())
	}
}

func TestRunLogout_JSON(t *testing.T) {
	withJSONOutput(t)
	backend := newFakeAuthBackend(t)
	d := newTestDeps(t, backend.server.URL)
	now := time.Now()
	storeSession(t, d, now, 30, now.Add(time.Hour))

	var buf bytes.Buffer
	runLogout(&buf, newLogoutController(d))

	var parsed map[string]any
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if parsed["status"] != "invalid" || parsed["reason"] != "logout" {
		t.Errorf("expected invalid/logout, got %v/%v", parsed["status"], parsed["reason"])
	}
}
