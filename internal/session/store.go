// ABOUTME: Persists session metadata as a structured cookie in the shared jar
// ABOUTME: Reads, writes, and clears the record with environment-scoped domain

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/markalston/fleet-dashboard/internal/cookie"
	"github.com/markalston/fleet-dashboard/internal/sessionmeta"
)

// CookieName is the well-known key of the metadata record.
const CookieName = "FLEET_SESSION_META"

var (
	// ErrNoSession indicates no metadata record is stored
	ErrNoSession = errors.New("session not found")
	// ErrCorruptSession indicates the stored record failed decoding or type checks
	ErrCorruptSession = errors.New("invalid session data")
	// ErrStorageUnavailable indicates the store has no jar or site to work with
	ErrStorageUnavailable = errors.New("session storage unavailable")
)

// Store reads and writes the session metadata record as seen from one site.
// The record is always written whole. Read-modify-write updates made through
// one Store are serialized; other processes sharing the jar are not.
type Store struct {
	mu    sync.Mutex
	jar   http.CookieJar
	site  *url.URL
	scope cookie.Scope
	now   func() time.Time
}

// NewStore creates a store for the record visible at site.
func NewStore(jar http.CookieJar, site *url.URL, scope cookie.Scope) *Store {
	return &Store{
		jar:   jar,
		site:  site,
		scope: scope,
		now:   time.Now,
	}
}

func (s *Store) available() bool {
	return s != nil && s.jar != nil && s.site != nil
}

// Load returns the stored record or one of ErrNoSession, ErrCorruptSession,
// ErrStorageUnavailable.
func (s *Store) Load() (sessionmeta.Metadata, error) {
	if !s.available() {
		return sessionmeta.Metadata{}, ErrStorageUnavailable
	}

	var value string
	found := false
	for _, c := range s.jar.Cookies(s.site) {
		if c.Name == CookieName {
			value = c.Value
			found = true
			break
		}
	}
	if !found || value == "" {
		return sessionmeta.Metadata{}, ErrNoSession
	}

	decoded, err := url.QueryUnescape(value)
	if err != nil {
		return sessionmeta.Metadata{}, fmt.Errorf("%w: %v", ErrCorruptSession, err)
	}

	meta, err := sessionmeta.ParseMetadata([]byte(decoded))
	if err != nil {
		return sessionmeta.Metadata{}, fmt.Errorf("%w: %v", ErrCorruptSession, err)
	}
	return meta, nil
}

// Read returns the stored record, or false when it is absent, corrupt, or
// storage is unavailable. A corrupt record is never partially trusted.
func (s *Store) Read() (sessionmeta.Metadata, bool) {
	meta, err := s.Load()
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			slog.Debug("Session metadata unreadable", "error", err)
		}
		return sessionmeta.Metadata{}, false
	}
	return meta, true
}

// Write persists meta. The cookie expires together with the session it
// describes.
func (s *Store) Write(meta sessionmeta.Metadata) error {
	if !s.available() {
		return ErrStorageUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(meta)
}

func (s *Store) write(meta sessionmeta.Metadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode session metadata: %w", err)
	}

	expiresAtMs := sessionmeta.NormalizeExpiresAt(meta.ExpiresAt, meta.IdleTimeoutMinutes, s.now())

	s.jar.SetCookies(s.site, []*http.Cookie{{
		Name:     CookieName,
		Value:    url.QueryEscape(string(data)),
		Path:     "/",
		Domain:   s.scope.Domain(s.site.Host),
		Expires:  time.UnixMilli(expiresAtMs),
		Secure:   s.site.Scheme == "https",
		SameSite: http.SameSiteLaxMode,
	}})
	return nil
}

// UpdateLastActivity rewrites the record with only last_activity_at
// changed. It does nothing when no readable record exists.
func (s *Store) UpdateLastActivity(ts time.Time) error {
	if !s.available() {
		return ErrStorageUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.Load()
	if err != nil {
		return nil
	}

	meta.LastActivityAt = ts.UnixMilli()
	return s.write(meta)
}

// Renew replaces the expiry and idle window and keeps last_activity_at from
// the record as it is at write time, or now when none is readable.
func (s *Store) Renew(expiresAt sessionmeta.Instant, idleMinutes float64) (sessionmeta.Metadata, error) {
	if !s.available() {
		return sessionmeta.Metadata{}, ErrStorageUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	meta := sessionmeta.Metadata{
		LastActivityAt:     s.now().UnixMilli(),
		IdleTimeoutMinutes: idleMinutes,
		ExpiresAt:          expiresAt,
	}
	if existing, err := s.Load(); err == nil {
		meta.LastActivityAt = existing.LastActivityAt
	}
	return meta, s.write(meta)
}

// Clear removes the record unconditionally, under both the scoped domain
// and the bare host so a scope change cannot strand an old copy.
func (s *Store) Clear() error {
	if !s.available() {
		return ErrStorageUnavailable
	}

	expired := func(domain string) *http.Cookie {
		return &http.Cookie{
			Name:     CookieName,
			Value:    "",
			Path:     "/",
			Domain:   domain,
			MaxAge:   -1,
			Secure:   s.site.Scheme == "https",
			SameSite: http.SameSiteLaxMode,
		}
	}

	cookies := []*http.Cookie{expired("")}
	if domain := s.scope.Domain(s.site.Host); domain != "" {
		cookies = append(cookies, expired(domain))
	}
	s.jar.SetCookies(s.site, cookies)
	return nil
}
