// ABOUTME: Coalesces concurrent session renewals into one backend call
// ABOUTME: Normalizes the renewal response and persists it to the metadata store

package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/markalston/fleet-dashboard/internal/sessionmeta"
	"golang.org/x/sync/singleflight"
)

// DefaultRefreshTimeout bounds one renewal call.
const DefaultRefreshTimeout = 30 * time.Second

// refreshKey is constant: at most one session is managed, so coalescing is
// keyed on "a renewal is in flight", never on request parameters.
const refreshKey = "refresh"

// Renewer extends the authenticated session on the backend.
type Renewer interface {
	RenewSession(ctx context.Context) (sessionmeta.Raw, error)
}

// RefreshCoordinator deduplicates renewal requests. Uses singleflight so
// callers arriving while a renewal is pending share its result, and the
// slot is released as soon as the call settles.
type RefreshCoordinator struct {
	renewer Renewer
	store   *Store
	timeout time.Duration
	now     func() time.Time
	sfGroup singleflight.Group
}

// NewRefreshCoordinator creates a coordinator. A timeout <= 0 uses
// DefaultRefreshTimeout.
func NewRefreshCoordinator(renewer Renewer, store *Store, timeout time.Duration) *RefreshCoordinator {
	if timeout <= 0 {
		timeout = DefaultRefreshTimeout
	}
	return &RefreshCoordinator{
		renewer: renewer,
		store:   store,
		timeout: timeout,
		now:     time.Now,
	}
}

// Refresh renews the session, or joins the renewal already in flight.
// Cancelling ctx stops this caller waiting; the shared call continues.
// Failures are returned as-is; there is no retry.
func (rc *RefreshCoordinator) Refresh(ctx context.Context) (sessionmeta.Refreshed, error) {
	ch := rc.sfGroup.DoChan(refreshKey, func() (interface{}, error) {
		return rc.renew()
	})

	select {
	case <-ctx.Done():
		return sessionmeta.Refreshed{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return sessionmeta.Refreshed{}, res.Err
		}
		if res.Shared {
			slog.Debug("Joined in-flight session renewal")
		}
		return res.Val.(sessionmeta.Refreshed), nil
	}
}

// renew performs one backend call on a context detached from any caller.
func (rc *RefreshCoordinator) renew() (sessionmeta.Refreshed, error) {
	ctx, cancel := context.WithTimeout(context.Background(), rc.timeout)
	defer cancel()

	raw, err := rc.renewer.RenewSession(ctx)
	if err != nil {
		return sessionmeta.Refreshed{}, fmt.Errorf("session renewal failed: %w", err)
	}

	now := rc.now()
	refreshed := sessionmeta.NormalizeForRefresh(raw, now)

	// Renewal replaces expiry and idle window only; the idle baseline is kept.
	if _, err := rc.store.Renew(refreshed.ExpiresAt, refreshed.IdleMinutes); err != nil {
		return sessionmeta.Refreshed{}, fmt.Errorf("failed to store renewed session: %w", err)
	}

	slog.Info("Session renewed",
		"expires_at", refreshed.ExpiresAt.String(),
		"idle_timeout_minutes", refreshed.IdleMinutes,
	)
	return refreshed, nil
}
