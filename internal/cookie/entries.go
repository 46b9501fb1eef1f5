// ABOUTME: Expiry-aware table of cookies recorded for persistence
// ABOUTME: Thread-safe table using sync.Map with eviction on snapshot

package cookie

import (
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// storedCookie is the on-disk form of a cookie plus the URL it was set from.
type storedCookie struct {
	Origin   string        `json:"origin"`
	Name     string        `json:"name"`
	Value    string        `json:"value"`
	Domain   string        `json:"domain,omitempty"`
	Path     string        `json:"path,omitempty"`
	Expires  int64         `json:"expires,omitempty"` // epoch ms, 0 = no expiry
	Secure   bool          `json:"secure,omitempty"`
	HttpOnly bool          `json:"http_only,omitempty"`
	SameSite http.SameSite `json:"same_site,omitempty"`
}

// key identifies a cookie the way a browser does: domain (or origin host
// for host-only cookies), path, and name.
func (c storedCookie) key() string {
	scope := "domain:" + c.Domain
	if c.Domain == "" {
		if u, err := url.Parse(c.Origin); err == nil {
			scope = "host:" + u.Hostname()
		}
	}
	return scope + "|" + c.Path + "|" + c.Name
}

func (c storedCookie) expiresAt() time.Time {
	if c.Expires == 0 {
		return time.Time{}
	}
	return time.UnixMilli(c.Expires)
}

// httpCookie rebuilds the cookie for replay into a jar.
func (c storedCookie) httpCookie() *http.Cookie {
	hc := &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HttpOnly: c.HttpOnly,
		SameSite: c.SameSite,
	}
	if c.Expires != 0 {
		hc.Expires = time.UnixMilli(c.Expires)
	}
	return hc
}

type entry struct {
	data      storedCookie
	expiresAt time.Time // zero means the cookie has no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

type entries struct {
	store sync.Map
}

func newEntries() *entries {
	return &entries{}
}

// Set records a cookie. A cookie already expired at now is removed instead.
func (e *entries) Set(c storedCookie, now time.Time) {
	en := entry{data: c, expiresAt: c.expiresAt()}
	if en.expired(now) {
		e.Clear(c.key())
		return
	}
	e.store.Store(c.key(), en)
	slog.Debug("Cookie recorded", "name", c.Name, "domain", c.Domain, "expires_at", en.expiresAt)
}

func (e *entries) Clear(key string) {
	if _, loaded := e.store.LoadAndDelete(key); loaded {
		slog.Debug("Cookie removed", "key", key)
	}
}

// Snapshot returns unexpired cookies in key order and evicts expired ones.
func (e *entries) Snapshot(now time.Time) []storedCookie {
	var out []storedCookie
	e.store.Range(func(key, val interface{}) bool {
		en := val.(entry)
		if en.expired(now) {
			e.store.Delete(key)
			slog.Debug("Cookie expired", "key", key)
			return true
		}
		out = append(out, en.data)
		return true
	})

	sort.Slice(out, func(i, j int) bool {
		return strings.Compare(out[i].key(), out[j].key()) < 0
	})
	return out
}
