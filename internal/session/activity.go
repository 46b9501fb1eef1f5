// ABOUTME: Subscription point for user interaction events
// ABOUTME: UI layers emit events; the lifecycle controller listens while active

package session

import "sync"

// EventKind classifies a user interaction.
type EventKind int

const (
	EventPointerMove EventKind = iota
	EventKeyPress
	EventClick
	EventScroll
	// EventManual is the "stay active" affordance of the idle warning
	EventManual
)

// String returns the event name used in logs.
func (k EventKind) String() string {
	switch k {
	case EventPointerMove:
		return "pointer_move"
	case EventKeyPress:
		return "key_press"
	case EventClick:
		return "click"
	case EventScroll:
		return "scroll"
	case EventManual:
		return "manual"
	default:
		return "unknown"
	}
}

// ActivityFeed fans interaction events out to subscribers.
type ActivityFeed struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(EventKind)
}

// NewActivityFeed creates an empty feed.
func NewActivityFeed() *ActivityFeed {
	return &ActivityFeed{subs: make(map[int]func(EventKind))}
}

// Subscribe registers fn and returns a function that removes it.
// The returned function is safe to call more than once.
func (f *ActivityFeed) Subscribe(fn func(EventKind)) (unsubscribe func()) {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

// Emit delivers kind to every subscriber. Subscribers run outside the
// feed lock so they may unsubscribe from within the callback.
func (f *ActivityFeed) Emit(kind EventKind) {
	f.mu.Lock()
	fns := make([]func(EventKind), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(kind)
	}
}

// Subscribers returns the number of registered listeners.
func (f *ActivityFeed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
