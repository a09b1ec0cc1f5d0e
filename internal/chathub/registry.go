package chathub

import (
	"sync"

	"tutorlink/backend/internal/models"
)

// Registry maps room IDs to the connections currently joined to them.
// Operations on one room are serialized by that room's lock; the registry
// lock only guards the room map, so unrelated rooms never contend.
type Registry struct {
	mu      sync.Mutex
	rooms   map[string]*roomChannel
	metrics *Metrics
}

type roomChannel struct {
	mu      sync.Mutex
	clients map[Client]struct{}
	// retired is set when the last client leaves and the channel is
	// dropped from the map; a retired channel never accepts joins.
	retired bool
}

func NewRegistry(metrics *Metrics) *Registry {
	return &Registry{
		rooms:   make(map[string]*roomChannel),
		metrics: metrics,
	}
}

// Join registers c under roomID. Joining twice is a no-op.
func (r *Registry) Join(roomID string, c Client) bool {
	rc := r.acquire(roomID)
	defer r.release(roomID, rc)

	if _, ok := rc.clients[c]; ok {
		return false
	}
	rc.clients[c] = struct{}{}
	r.metrics.sessionOpened()
	return true
}

// Leave removes c from roomID. It reports whether c was registered.
func (r *Registry) Leave(roomID string, c Client) bool {
	rc := r.lookup(roomID)
	if rc == nil {
		return false
	}
	defer r.release(roomID, rc)

	if _, ok := rc.clients[c]; !ok {
		return false
	}
	delete(rc.clients, c)
	r.metrics.sessionClosed()
	return true
}

// Broadcast delivers ev to every client in roomID except exclude (which may
// be nil) and returns how many accepted it. Clients that refuse delivery are
// removed and closed.
func (r *Registry) Broadcast(roomID string, ev models.OutboundEvent, exclude Client) int {
	rc := r.lookup(roomID)
	if rc == nil {
		return 0
	}

	delivered := 0
	var stale []Client
	for c := range rc.clients {
		if c == exclude {
			continue
		}
		if c.Deliver(ev) {
			delivered++
			continue
		}
		delete(rc.clients, c)
		stale = append(stale, c)
		r.metrics.deliveryFailed()
		r.metrics.sessionClosed()
	}
	r.release(roomID, rc)

	for _, c := range stale {
		c.Close()
	}
	return delivered
}

// Count returns the number of clients joined to roomID.
func (r *Registry) Count(roomID string) int {
	rc := r.lookup(roomID)
	if rc == nil {
		return 0
	}
	defer r.release(roomID, rc)
	return len(rc.clients)
}

// RoomCount returns the number of rooms with at least one client.
func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// CloseAll closes every registered client. Each client's own cleanup
// removes it from the registry.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	rooms := make([]*roomChannel, 0, len(r.rooms))
	for _, rc := range r.rooms {
		rooms = append(rooms, rc)
	}
	r.mu.Unlock()

	var all []Client
	for _, rc := range rooms {
		rc.mu.Lock()
		for c := range rc.clients {
			all = append(all, c)
		}
		rc.mu.Unlock()
	}
	for _, c := range all {
		c.Close()
	}
}

// acquire returns the live channel for roomID, creating it if needed, with
// its lock held.
func (r *Registry) acquire(roomID string) *roomChannel {
	for {
		r.mu.Lock()
		rc, ok := r.rooms[roomID]
		if !ok {
			rc = &roomChannel{clients: make(map[Client]struct{})}
			r.rooms[roomID] = rc
		}
		r.mu.Unlock()

		rc.mu.Lock()
		if !rc.retired {
			return rc
		}
		rc.mu.Unlock()
	}
}

// lookup is acquire without creation. It returns nil if the room has no channel.
func (r *Registry) lookup(roomID string) *roomChannel {
	for {
		r.mu.Lock()
		rc, ok := r.rooms[roomID]
		r.mu.Unlock()
		if !ok {
			return nil
		}

		rc.mu.Lock()
		if !rc.retired {
			return rc
		}
		rc.mu.Unlock()
	}
}

// release unlocks rc, retiring it first if it is empty. The registry lock is
// never held while waiting for a room lock, so taking it here is safe.
func (r *Registry) release(roomID string, rc *roomChannel) {
	if len(rc.clients) == 0 {
		rc.retired = true
		r.mu.Lock()
		if r.rooms[roomID] == rc {
			delete(r.rooms, roomID)
		}
		r.mu.Unlock()
	}
	rc.mu.Unlock()
}
