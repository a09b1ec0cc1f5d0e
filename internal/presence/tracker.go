// Package presence tracks which users are online. A user is online while at
// least one of their chat connections is open.
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultTouchInterval is the minimum gap between two activity-only sink
// writes for the same user.
const DefaultTouchInterval = 30 * time.Second

// Sink persists presence transitions.
type Sink interface {
	SetPresence(ctx context.Context, userID string, online bool, at time.Time) error
}

// Record is the in-memory state for one user.
type Record struct {
	Online       bool
	LastActivity time.Time
	Connections  int
}

// entry pairs a user's record with the lock that orders their sink writes.
// rec is guarded by Tracker.mu, lastWrite by pub.
type entry struct {
	pub       sync.Mutex
	rec       Record
	lastWrite time.Time
}

// Tracker is the process-wide presence table. Construct one at startup and
// pass it to whatever flips presence.
//
// The table lock is held only for bookkeeping. Sink writes run under a
// per-user lock, so a slow write for one user never stalls another.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*entry
	sinks   []Sink
	now     func() time.Time

	// TouchInterval throttles Touch sink writes. Zero writes every touch.
	TouchInterval time.Duration
}

func NewTracker(sinks ...Sink) *Tracker {
	return &Tracker{
		entries:       make(map[string]*entry),
		sinks:         sinks,
		now:           time.Now,
		TouchInterval: DefaultTouchInterval,
	}
}

// SetOnline counts a connection opening (online=true) or closing
// (online=false). Sinks only see the first open and the last close.
func (t *Tracker) SetOnline(ctx context.Context, userID string, online bool) {
	if userID == "" {
		return
	}

	e := t.entry(userID)
	e.pub.Lock()
	defer e.pub.Unlock()

	t.mu.Lock()
	now := t.now()
	e.rec.LastActivity = now
	wasOnline := e.rec.Online
	if online {
		e.rec.Connections++
	} else if e.rec.Connections > 0 {
		e.rec.Connections--
	}
	e.rec.Online = e.rec.Connections > 0
	isOnline := e.rec.Online
	t.mu.Unlock()

	if isOnline != wasOnline {
		t.publish(ctx, e, userID, isOnline, now)
	}
}

// Touch records activity without changing online state.
func (t *Tracker) Touch(ctx context.Context, userID string) {
	if userID == "" {
		return
	}

	e := t.entry(userID)
	e.pub.Lock()
	defer e.pub.Unlock()

	t.mu.Lock()
	now := t.now()
	e.rec.LastActivity = now
	online := e.rec.Online
	t.mu.Unlock()

	if t.TouchInterval > 0 && !e.lastWrite.IsZero() && now.Sub(e.lastWrite) < t.TouchInterval {
		return
	}
	t.publish(ctx, e, userID, online, now)
}

// Get returns a copy of the user's record.
func (t *Tracker) Get(userID string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[userID]
	if !ok {
		return Record{}, false
	}
	return e.rec, true
}

func (t *Tracker) IsOnline(userID string) bool {
	rec, _ := t.Get(userID)
	return rec.Online
}

func (t *Tracker) entry(userID string) *entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[userID]
	if !ok {
		e = &entry{}
		t.entries[userID] = e
	}
	return e
}

// publish must be called with e.pub held.
func (t *Tracker) publish(ctx context.Context, e *entry, userID string, online bool, at time.Time) {
	e.lastWrite = at
	for _, s := range t.sinks {
		if err := s.SetPresence(ctx, userID, online, at); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Bool("online", online).Msg("presence sink write failed")
		}
	}
}
