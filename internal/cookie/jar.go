// ABOUTME: Cookie jar shared by the API client and the session metadata store
// ABOUTME: Uses net/http/cookiejar semantics with optional file persistence across runs

package cookie

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/net/publicsuffix"
)

// FileName is the jar file created inside the config directory.
const FileName = "cookies.json"

// Jar implements http.CookieJar. Domain matching, path matching, and
// expiry come from net/http/cookiejar with the public suffix list. When
// backed by a file, every cookie set through the jar is also written to
// disk and replayed on the next open, so cookies outlive the process.
type Jar struct {
	mu      sync.RWMutex
	inner   *cookiejar.Jar
	entries *entries
	path    string
	now     func() time.Time
}

type jarFile struct {
	Cookies []storedCookie `json:"cookies"`
}

// New creates a jar. An empty path gives a memory-only jar.
func New(path string) (*Jar, error) {
	inner, err := newInner()
	if err != nil {
		return nil, err
	}

	j := &Jar{
		inner:   inner,
		entries: newEntries(),
		path:    path,
		now:     time.Now,
	}

	if path != "" {
		if err := j.Reload(); err != nil {
			return nil, err
		}
	}
	return j, nil
}

// DefaultPath returns the jar file location inside configDir.
func DefaultPath(configDir string) string {
	if configDir == "" {
		return ""
	}
	return filepath.Join(configDir, FileName)
}

// Path returns the backing file, or "" for a memory-only jar.
func (j *Jar) Path() string {
	return j.path
}

// SetCookies implements http.CookieJar.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	j.inner.SetCookies(u, cookies)
	for _, c := range cookies {
		sc, deleted := record(u, c, now)
		if deleted {
			j.entries.Clear(sc.key())
			continue
		}
		j.entries.Set(sc, now)
	}

	if j.path != "" {
		if err := j.saveLocked(now); err != nil {
			slog.Warn("Failed to persist cookies", "path", j.path, "error", err)
		}
	}
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.inner.Cookies(u)
}

// Reload replaces the jar contents with the backing file. A missing file
// empties the jar; an unreadable one is treated the same way.
func (j *Jar) Reload() error {
	if j.path == "" {
		return nil
	}

	var file jarFile
	data, err := os.ReadFile(j.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("failed to read cookie jar %s: %w", j.path, err)
	default:
		if err := json.Unmarshal(data, &file); err != nil {
			// Invalid JSON, start fresh
			slog.Warn("Ignoring corrupt cookie jar", "path", j.path, "error", err)
			file = jarFile{}
		}
	}

	inner, err := newInner()
	if err != nil {
		return err
	}
	table := newEntries()

	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	for _, sc := range file.Cookies {
		origin, err := url.Parse(sc.Origin)
		if err != nil || origin.Host == "" {
			slog.Debug("Skipping stored cookie with bad origin", "name", sc.Name, "origin", sc.Origin)
			continue
		}
		if exp := sc.expiresAt(); !exp.IsZero() && !now.Before(exp) {
			continue
		}
		inner.SetCookies(origin, []*http.Cookie{sc.httpCookie()})
		table.Set(sc, now)
	}

	j.inner = inner
	j.entries = table
	slog.Debug("Cookie jar loaded", "path", j.path, "cookies", len(file.Cookies))
	return nil
}

// Watch reloads the jar whenever another process rewrites the backing
// file. It blocks until ctx is done.
func (j *Jar) Watch(ctx context.Context) error {
	if j.path == "" {
		return errors.New("cookie jar is not file-backed")
	}

	dir := filepath.Dir(j.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create cookie jar directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: saves replace the file via rename.
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Clean(j.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				if err := j.Reload(); err != nil {
					slog.Warn("Cookie jar reload failed", "path", j.path, "error", err)
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Cookie jar watcher error", "error", err)
		}
	}
}

// saveLocked writes the unexpired cookies atomically. Must hold j.mu.
func (j *Jar) saveLocked(now time.Time) error {
	if err := os.MkdirAll(filepath.Dir(j.path), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(jarFile{Cookies: j.entries.Snapshot(now)}, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(j.path), ".cookies-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, j.path)
}

func newInner() (*cookiejar.Jar, error) {
	inner, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return inner, nil
}

// record converts a Set-Cookie from u into its stored form. deleted is
// true when the cookie removes an existing one (negative MaxAge or an
// Expires in the past).
func record(u *url.URL, c *http.Cookie, now time.Time) (sc storedCookie, deleted bool) {
	sc = storedCookie{
		Origin:   u.Scheme + "://" + u.Host + "/",
		Name:     c.Name,
		Value:    c.Value,
		Domain:   strings.ToLower(strings.TrimPrefix(c.Domain, ".")),
		Path:     c.Path,
		Secure:   c.Secure,
		HttpOnly: c.HttpOnly,
		SameSite: c.SameSite,
	}
	if sc.Path == "" || sc.Path[0] != '/' {
		sc.Path = defaultPath(u.Path)
	}

	switch {
	case c.MaxAge < 0:
		return sc, true
	case c.MaxAge > 0:
		sc.Expires = now.Add(time.Duration(c.MaxAge) * time.Second).UnixMilli()
	case !c.Expires.IsZero():
		if !c.Expires.After(now) {
			return sc, true
		}
		sc.Expires = c.Expires.UnixMilli()
	}
	return sc, false
}

// defaultPath is the RFC 6265 default-path of a request path.
func defaultPath(path string) string {
	if path == "" || path[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(path, "/")
	if i == 0 {
		return "/"
	}
	return path[:i]
}
