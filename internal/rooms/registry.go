// Package rooms tracks which connections are watching which auctions.
package rooms

import (
	"sort"
	"sync"
)

type set map[string]struct{}

// Registry is a bidirectional index of connection ids and room ids.
// A connection must be registered before it can join rooms, and once
// disconnected it is forgotten; a late Join for it is a no-op.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]set // connection id -> rooms
	rooms       map[string]set // room id -> connections
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]set),
		rooms:       make(map[string]set),
	}
}

// Register makes a connection known to the registry. It reports false when the id is already registered.
func (r *Registry) Register(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.connections[connID]; ok {
		return false
	}
	r.connections[connID] = make(set)
	return true
}

// Join adds the connection to the room. Joining twice has no further effect.
// It reports whether the membership changed.
func (r *Registry) Join(connID, roomID string) bool {
	if roomID == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	joined, ok := r.connections[connID]
	if !ok {
		return false
	}
	if _, already := joined[roomID]; already {
		return false
	}

	joined[roomID] = struct{}{}
	members, ok := r.rooms[roomID]
	if !ok {
		members = make(set)
		r.rooms[roomID] = members
	}
	members[connID] = struct{}{}
	return true
}

// Leave removes the connection from the room. It reports whether the membership changed.
func (r *Registry) Leave(connID, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined, ok := r.connections[connID]
	if !ok {
		return false
	}
	if _, member := joined[roomID]; !member {
		return false
	}
	delete(joined, roomID)
	r.removeMember(roomID, connID)
	return true
}

// Disconnect forgets the connection and removes it from every room it joined.
// Only the first call for an id reports ok; later calls are no-ops.
func (r *Registry) Disconnect(connID string) (left []string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined, ok := r.connections[connID]
	if !ok {
		return nil, false
	}
	delete(r.connections, connID)

	left = make([]string, 0, len(joined))
	for roomID := range joined {
		r.removeMember(roomID, connID)
		left = append(left, roomID)
	}
	sort.Strings(left)
	return left, true
}

// removeMember must be called with mu held. Empty rooms are dropped.
func (r *Registry) removeMember(roomID, connID string) {
	members, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}

// MembersOf returns a snapshot of the connections in a room
func (r *Registry) MembersOf(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.rooms[roomID])
}

// RoomsOf returns a snapshot of the rooms a connection has joined
func (r *Registry) RoomsOf(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.connections[connID])
}

// IsMember reports whether the connection is in the room
func (r *Registry) IsMember(connID, roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID][connID]
	return ok
}

// Rooms returns the number of rooms with at least one member
func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Connections returns the number of registered connections
func (r *Registry) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

func sortedKeys(s set) []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
