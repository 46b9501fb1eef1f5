// ABOUTME: Session lifecycle state machine driving idle and expiry logout
// ABOUTME: Ticks once per interval, renews near expiry, and ends the session exactly once

package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/markalston/fleet-dashboard/internal/sessionmeta"
)

// Status is the lifecycle phase of a controller.
type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusActive        Status = "active"
	StatusInvalid       Status = "invalid"
)

// Reason records why a session became invalid.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonNoSession          Reason = "no_session"
	ReasonCorruptSession     Reason = "corrupt_session"
	ReasonStorageUnavailable Reason = "storage_unavailable"
	ReasonIdleTimeout        Reason = "idle_timeout"
	ReasonTokenExpired       Reason = "token_expired"
	ReasonRenewalFailed      Reason = "renewal_failed"
	ReasonLogout             Reason = "logout"
)

// Message returns a short human description of the reason.
func (r Reason) Message() string {
	switch r {
	case ReasonNoSession:
		return "No session found. Run 'fleet login' to sign in."
	case ReasonCorruptSession:
		return "Stored session was unreadable and has been cleared."
	case ReasonStorageUnavailable:
		return "Session storage is unavailable."
	case ReasonIdleTimeout:
		return "Signed out after a period of inactivity."
	case ReasonTokenExpired:
		return "Session expired."
	case ReasonRenewalFailed:
		return "Session could not be renewed."
	case ReasonLogout:
		return "Signed out."
	default:
		return ""
	}
}

// State is the snapshot published to observers.
type State struct {
	Status                   Status `json:"status"`
	Reason                   Reason `json:"reason,omitempty"`
	SecondsUntilIdleLogout   int    `json:"seconds_until_idle_logout"`
	SecondsUntilTokenExpires int    `json:"seconds_until_token_expires"`
	IdleTimeoutSeconds       int    `json:"idle_timeout_seconds"`
	IsRefreshing             bool   `json:"is_refreshing"`
	Warning                  bool   `json:"warning"`
}

// Refresher renews the session. Satisfied by *RefreshCoordinator.
type Refresher interface {
	Refresh(ctx context.Context) (sessionmeta.Refreshed, error)
}

// Ender terminates the session on the backend.
type Ender interface {
	EndSession(ctx context.Context) error
}

const (
	DefaultTickInterval      = time.Second
	DefaultRenewalWindow     = 5 * time.Minute
	DefaultRenewalIdleLimit  = 60 * time.Second
	DefaultWarningThreshold  = 30 * time.Second
	DefaultEndSessionTimeout = 10 * time.Second
)

// Config wires a controller to its collaborators. Zero durations take the
// package defaults. Refresher, Throttle, Ender, and Activity are optional.
type Config struct {
	Store     *Store
	Refresher Refresher
	Throttle  *ActivityThrottle
	Ender     Ender
	Activity  *ActivityFeed

	TickInterval      time.Duration
	RenewalWindow     time.Duration
	RenewalIdleLimit  time.Duration
	WarningThreshold  time.Duration
	EndSessionTimeout time.Duration

	Now    func() time.Time
	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.RenewalWindow <= 0 {
		c.RenewalWindow = DefaultRenewalWindow
	}
	if c.RenewalIdleLimit <= 0 {
		c.RenewalIdleLimit = DefaultRenewalIdleLimit
	}
	if c.WarningThreshold <= 0 {
		c.WarningThreshold = DefaultWarningThreshold
	}
	if c.EndSessionTimeout <= 0 {
		c.EndSessionTimeout = DefaultEndSessionTimeout
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Controller owns the runtime state of one session. All transitions are
// serialized by mu; backend calls run outside it.
type Controller struct {
	id  string
	cfg Config
	log *slog.Logger

	mu            sync.Mutex
	state         State
	meta          sessionmeta.Normalized
	hasInteracted bool
	stopped       bool
	unsubscribe   func()

	stopCh   chan struct{}
	haltOnce sync.Once
	wg       sync.WaitGroup

	updates chan State
}

// NewController creates a controller in the uninitialized state.
func NewController(cfg Config) *Controller {
	cfg.applyDefaults()
	id := uuid.NewString()

	return &Controller{
		id:      id,
		cfg:     cfg,
		log:     cfg.Logger.With("controller_id", id),
		state:   State{Status: StatusUninitialized},
		stopCh:  make(chan struct{}),
		updates: make(chan State, 1),
	}
}

// ID returns the identifier attached to this controller's log lines.
func (c *Controller) ID() string {
	return c.id
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Updates delivers the latest state after each change. Only the newest
// snapshot is buffered; slow readers skip intermediate ones.
func (c *Controller) Updates() <-chan State {
	return c.updates
}

// Start reads the stored record and either activates the session or
// invalidates it. Calling Start again, or after Stop, returns the current
// state without side effects.
func (c *Controller) Start() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || c.state.Status != StatusUninitialized {
		return c.state
	}

	now := c.cfg.Now()
	stored, err := c.cfg.Store.Load()
	if err != nil {
		c.invalidateLocked(reasonForLoadError(err))
		return c.state
	}

	c.meta = sessionmeta.Normalize(stored.Raw(), now)
	cd := Evaluate(c.meta, now)
	if cd.IdleExpired() {
		c.invalidateLocked(ReasonIdleTimeout)
		return c.state
	}
	if cd.TokenExpired() {
		c.invalidateLocked(ReasonTokenExpired)
		return c.state
	}

	c.state.Status = StatusActive
	c.applyCountdownLocked(cd)

	if c.cfg.Activity != nil {
		c.unsubscribe = c.cfg.Activity.Subscribe(c.RecordActivity)
	}

	c.wg.Add(1)
	go c.run()

	c.log.Info("Session active",
		"seconds_until_idle_logout", c.state.SecondsUntilIdleLogout,
		"seconds_until_token_expires", c.state.SecondsUntilTokenExpires,
	)
	c.publishLocked()
	return c.state
}

// Stop halts the tick loop and releases activity listeners. It does not
// end the session, but waits for a backend logout already in flight. Safe
// to call more than once.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.haltLocked()
	c.mu.Unlock()

	c.wg.Wait()
}

// RecordActivity marks the user as active now.
func (c *Controller) RecordActivity(kind EventKind) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || c.state.Status != StatusActive {
		return
	}

	now := c.cfg.Now()
	c.hasInteracted = true
	if err := c.cfg.Store.UpdateLastActivity(now); err != nil {
		c.log.Warn("Failed to persist activity", "event", kind.String(), "error", err)
	}
	c.meta.LastActivityAt = now.UnixMilli()

	c.applyCountdownLocked(Evaluate(c.meta, now))
	c.publishLocked()
}

// StayActive is the warning's "stay signed in" action.
func (c *Controller) StayActive() {
	c.RecordActivity(EventManual)
}

// ForceLogout ends the session immediately.
func (c *Controller) ForceLogout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked(ReasonLogout)
}

func (c *Controller) run() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

// tick re-reads the store so writes from other processes sharing the jar
// are observed, then checks idle expiry, token expiry, renewal, and the
// activity notification, in that order.
func (c *Controller) tick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || c.state.Status != StatusActive {
		return
	}

	now := c.cfg.Now()
	stored, err := c.cfg.Store.Load()
	if err != nil {
		// An expired record drops out of the jar on its own.
		if errors.Is(err, ErrNoSession) && Evaluate(c.meta, now).TokenExpired() {
			c.invalidateLocked(ReasonTokenExpired)
			return
		}
		c.invalidateLocked(reasonForLoadError(err))
		return
	}

	c.meta = sessionmeta.Normalize(stored.Raw(), now)
	cd := Evaluate(c.meta, now)
	c.applyCountdownLocked(cd)

	if cd.IdleExpired() {
		c.invalidateLocked(ReasonIdleTimeout)
		return
	}
	if cd.TokenExpired() {
		c.invalidateLocked(ReasonTokenExpired)
		return
	}

	if c.renewalDueLocked(cd) {
		c.startRefreshLocked()
	}

	c.cfg.Throttle.MaybeNotify(now, c.hasInteracted, cd.SecondsIdle(), float64(cd.IdleTimeoutSeconds()))
	c.publishLocked()
}

func (c *Controller) renewalDueLocked(cd Countdown) bool {
	return c.cfg.Refresher != nil &&
		!c.state.IsRefreshing &&
		c.hasInteracted &&
		cd.TokenRemaining <= c.cfg.RenewalWindow &&
		cd.IdleElapsed < c.cfg.RenewalIdleLimit
}

func (c *Controller) startRefreshLocked() {
	c.state.IsRefreshing = true
	c.log.Debug("Renewing session", "seconds_until_token_expires", c.state.SecondsUntilTokenExpires)

	go func() {
		refreshed, err := c.cfg.Refresher.Refresh(context.Background())
		c.finishRefresh(refreshed, err)
	}()
}

func (c *Controller) finishRefresh(refreshed sessionmeta.Refreshed, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.IsRefreshing = false
	if c.stopped || c.state.Status != StatusActive {
		return
	}

	if err != nil {
		c.log.Warn("Session renewal failed", "error", err)
		c.invalidateLocked(ReasonRenewalFailed)
		return
	}

	c.meta.ExpiresAt = refreshed.ExpiresAt
	c.meta.ExpiresAtMs = refreshed.ExpiresAtMs
	c.meta.IdleTimeoutMinutes = refreshed.IdleMinutes
	c.meta.IdleTimeoutMs = refreshed.IdleMs

	c.applyCountdownLocked(Evaluate(c.meta, c.cfg.Now()))
	c.publishLocked()
}

// invalidateLocked is the single path to StatusInvalid. It clears the
// store, stops ticking, and fires the backend logout once.
func (c *Controller) invalidateLocked(reason Reason) {
	if c.state.Status == StatusInvalid {
		return
	}

	c.state = State{Status: StatusInvalid, Reason: reason}

	if err := c.cfg.Store.Clear(); err != nil {
		c.log.Warn("Failed to clear session metadata", "error", err)
	}
	c.haltLocked()

	c.log.Info("Session ended", "reason", string(reason))

	if c.cfg.Ender != nil {
		c.wg.Add(1)
		go c.endSession()
	}
	c.publishLocked()
}

// endSession is fire-and-forget; local state is already invalid. Stop
// waits for it, bounded by EndSessionTimeout.
func (c *Controller) endSession() {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.EndSessionTimeout)
	defer cancel()

	if err := c.cfg.Ender.EndSession(ctx); err != nil {
		c.log.Warn("Backend logout failed", "error", err)
		return
	}
	c.log.Debug("Backend logout complete")
}

func (c *Controller) haltLocked() {
	c.haltOnce.Do(func() { close(c.stopCh) })
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}

func (c *Controller) applyCountdownLocked(cd Countdown) {
	wasWarning := c.state.Warning

	c.state.SecondsUntilIdleLogout = cd.SecondsUntilIdleLogout()
	c.state.SecondsUntilTokenExpires = cd.SecondsUntilTokenExpires()
	c.state.IdleTimeoutSeconds = cd.IdleTimeoutSeconds()

	threshold := int(c.cfg.WarningThreshold / time.Second)
	c.state.Warning = c.state.Status == StatusActive &&
		c.state.SecondsUntilIdleLogout > 0 &&
		c.state.SecondsUntilIdleLogout <= threshold

	if c.state.Warning && !wasWarning {
		c.log.Info("Idle logout warning", "seconds_until_idle_logout", c.state.SecondsUntilIdleLogout)
	}
}

// publishLocked replaces any unread snapshot with the current one.
func (c *Controller) publishLocked() {
	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- c.state:
	default:
	}
}

func reasonForLoadError(err error) Reason {
	switch {
	case errors.Is(err, ErrCorruptSession):
		return ReasonCorruptSession
	case errors.Is(err, ErrStorageUnavailable):
		return ReasonStorageUnavailable
	default:
		return ReasonNoSession
	}
}
