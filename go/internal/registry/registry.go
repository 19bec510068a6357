// Package registry tracks live connections and the authenticated identity
// behind each one. It owns the Connection records exclusively: entries are
// created when a transport connection is established and removed on
// disconnect, and all reads hand out copies so callers never share mutable
// state with the registry.
package registry

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Connection is the registry's view of one live transport connection.
// UserID and Username are empty until the connection authenticates.
// RoomID is empty while the connection is not in a room.
type Connection struct {
	ID       string
	UserID   string
	Username string
	RoomID   string
}

// Authenticated reports whether the connection has a verified identity.
func (c Connection) Authenticated() bool {
	return c.UserID != ""
}

// Registry is the live connection table. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

func New() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

// Register adds a new unauthenticated connection under the given id.
func (r *Registry) Register(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[connID] = &Connection{ID: connID}
	log.Debug().Str("connection_id", connID).Int("total", len(r.conns)).Msg("connection registered")
}

// Authenticate records the verified identity for a connection. The token
// check itself happens in the protocol layer before this is called.
func (r *Registry) Authenticate(connID, userID, username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return false
	}
	conn.UserID = userID
	conn.Username = username
	return true
}

// Lookup returns a snapshot of the connection record.
func (r *Registry) Lookup(connID string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[connID]
	if !ok {
		return Connection{}, false
	}
	return *conn, true
}

// SetRoom records which room the connection is in; empty clears it.
func (r *Registry) SetRoom(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conn, ok := r.conns[connID]; ok {
		conn.RoomID = roomID
	}
}

// Remove drops the connection from the table.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conns, connID)
	log.Debug().Str("connection_id", connID).Int("total", len(r.conns)).Msg("connection removed")
}

// Counts returns the total and authenticated connection counts.
func (r *Registry) Counts() (total, authenticated int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total = len(r.conns)
	for _, conn := range r.conns {
		if conn.Authenticated() {
			authenticated++
		}
	}
	return total, authenticated
}
