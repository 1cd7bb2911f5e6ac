package agent

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/nstehr/creep/creep-core/model"
)

// ErrStaleSnapshot is returned when a snapshot is older than the published one.
var ErrStaleSnapshot = errors.New("stale snapshot")

// Registry holds the latest snapshot per room. Snapshots are values, so
// readers get a copy that later publishes cannot change.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]model.RoomSnapshot
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]model.RoomSnapshot)}
}

// Publish supersedes the room's snapshot. Older ticks are rejected; the same
// tick replaces the current one so a host resend is harmless.
func (r *Registry) Publish(snap model.RoomSnapshot) error {
	if snap.IsZero() {
		return fmt.Errorf("publish: %w: empty snapshot", model.ErrInvalidRoom)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.rooms[snap.Name()]; ok && snap.Tick() < cur.Tick() {
		return fmt.Errorf("%w: %s tick %d, have %d", ErrStaleSnapshot, snap.Name(), snap.Tick(), cur.Tick())
	}
	r.rooms[snap.Name()] = snap
	return nil
}

func (r *Registry) Get(room string) (model.RoomSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.rooms[room]
	return snap, ok
}

// Rooms returns the known room names, sorted.
func (r *Registry) Rooms() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.rooms))
	for name := range r.rooms {
		names = append(names, name)
	}
	r.mu.RUnlock()
	slices.Sort(names)
	return names
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
