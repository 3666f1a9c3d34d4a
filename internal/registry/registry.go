// Package registry tracks which device connection currently represents each
// user. The mapping lives only in memory; after a restart every device is
// offline until it registers again.
package registry

import (
	"context"
	"sync"
)

// Conn is a live handle a notification can be addressed to.
// Two handles are the same connection when their IDs are equal.
type Conn interface {
	ID() string
	Send(ctx context.Context, event, payload string) error
}

type Registry struct {
	mu      sync.RWMutex
	devices map[int64]Conn
}

func New() *Registry {
	return &Registry{
		devices: make(map[int64]Conn),
	}
}

// Register maps userID to conn, replacing any previous connection for that
// user. The replaced connection is neither notified nor closed.
func (r *Registry) Register(userID int64, conn Conn) {
	r.mu.Lock()
	r.devices[userID] = conn
	r.mu.Unlock()
}

// Unregister removes the first entry whose connection is conn, scanning users
// in ascending ID order. It reports whether an entry was removed; a stale or
// already replaced handle is a no-op.
func (r *Registry) Unregister(conn Conn) bool {
	if conn == nil {
		return false
	}
	id := conn.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	var match int64
	found := false
	for userID, c := range r.devices {
		if c.ID() == id && (!found || userID < match) {
			match, found = userID, true
		}
	}
	if found {
		delete(r.devices, match)
	}
	return found
}

func (r *Registry) Lookup(userID int64) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.devices[userID]
	return conn, ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}
