// Package gateway delivers auction events to connected websocket clients.
package gateway

import (
	"errors"
	"fmt"
	"sync"

	"auction-engine/internal/rooms"
	"auction-engine/utils"
)

var (
	ErrPeerClosed    = errors.New("gateway: peer closed")
	ErrSlowPeer      = errors.New("gateway: peer send buffer full")
	ErrDuplicatePeer = errors.New("gateway: peer already connected")
	ErrUnknownPeer   = errors.New("gateway: unknown peer")
)

// Peer is one live connection. Deliver must not block.
type Peer interface {
	ID() string
	Deliver(frame []byte) error
	Close()
}

// Gateway owns the live peers and the room registry. Emission is best effort:
// a peer that cannot take a frame is skipped and the failure is logged.
type Gateway struct {
	registry *rooms.Registry

	mu    sync.RWMutex
	peers map[string]Peer
}

// NewGateway creates a Gateway over the given registry
func NewGateway(registry *rooms.Registry) *Gateway {
	return &Gateway{
		registry: registry,
		peers:    make(map[string]Peer),
	}
}

// Connect registers a new peer
func (g *Gateway) Connect(p Peer) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.peers[p.ID()]; ok || !g.registry.Register(p.ID()) {
		return fmt.Errorf("%w: %s", ErrDuplicatePeer, p.ID())
	}
	g.peers[p.ID()] = p

	utils.Debug("gateway: peer connected", map[string]any{"connection_id": p.ID()})
	return nil
}

// Disconnect releases every subscription of the peer and closes it.
// It reports false when the peer was already disconnected.
func (g *Gateway) Disconnect(connID string) bool {
	g.mu.Lock()
	p, ok := g.peers[connID]
	delete(g.peers, connID)
	g.mu.Unlock()

	left, registered := g.registry.Disconnect(connID)
	if !ok && !registered {
		return false
	}
	if ok {
		p.Close()
	}

	utils.Debug("gateway: peer disconnected", map[string]any{"connection_id": connID, "rooms": left})
	return true
}

// Join subscribes the peer to a room
func (g *Gateway) Join(connID, roomID string) bool {
	return g.registry.Join(connID, roomID)
}

// Leave unsubscribes the peer from a room
func (g *Gateway) Leave(connID, roomID string) bool {
	return g.registry.Leave(connID, roomID)
}

// Emit sends an event to every peer in the room. The payload is marshalled once.
func (g *Gateway) Emit(roomID, event string, payload any) {
	g.EmitCount(roomID, event, payload)
}

// EmitCount is Emit reporting how many peers accepted the frame
func (g *Gateway) EmitCount(roomID, event string, payload any) int {
	members := g.registry.MembersOf(roomID)
	if len(members) == 0 {
		return 0
	}

	frame, err := encode(event, payload)
	if err != nil {
		utils.Error("gateway: failed to encode event", map[string]any{"room": roomID, "event": event, "error": err.Error()})
		return 0
	}

	delivered := 0
	for _, p := range g.lookup(members) {
		if err := p.Deliver(frame); err != nil {
			utils.Warn("gateway: delivery failed", map[string]any{
				"room":          roomID,
				"event":         event,
				"connection_id": p.ID(),
				"error":         err.Error(),
			})
			continue
		}
		delivered++
	}
	return delivered
}

// SendTo delivers an event to a single peer
func (g *Gateway) SendTo(connID, event string, payload any) error {
	g.mu.RLock()
	p, ok := g.peers[connID]
	g.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, connID)
	}

	frame, err := encode(event, payload)
	if err != nil {
		return fmt.Errorf("gateway: encode %q: %w", event, err)
	}
	return p.Deliver(frame)
}

// Peers returns the number of live peers
func (g *Gateway) Peers() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.peers)
}

// Rooms returns the number of rooms with at least one member
func (g *Gateway) Rooms() int {
	return g.registry.Rooms()
}

// Shutdown disconnects every peer
func (g *Gateway) Shutdown() {
	g.mu.RLock()
	ids := make([]string, 0, len(g.peers))
	for id := range g.peers {
		ids = append(ids, id)
	}
	g.mu.RUnlock()

	for _, id := range ids {
		g.Disconnect(id)
	}
}

func (g *Gateway) lookup(ids []string) []Peer {
	g.mu.RLock()
	defer g.mu.RUnlock()

	peers := make([]Peer, 0, len(ids))
	for _, id := range ids {
		if p, ok := g.peers[id]; ok {
			peers = append(peers, p)
		}
	}
	return peers
}
