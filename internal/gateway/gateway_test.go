package gateway

import (
	"encoding/json"
	"sync"
	"testing"

	"auction-engine/internal/rooms"

	"github.com/stretchr/testify/require"
)

// fakePeer records delivered frames
type fakePeer struct {
	id string

	mu     sync.Mutex
	frames [][]byte
	closed int
	full   bool
}

func newFakePeer(id string) *fakePeer { return &fakePeer{id: id} }

func (p *fakePeer) ID() string { return p.id }

func (p *fakePeer) Deliver(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed > 0 {
		return ErrPeerClosed
	}
	if p.full {
		return ErrSlowPeer
	}
	p.frames = append(p.frames, frame)
	return nil
}

func (p *fakePeer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
}

func (p *fakePeer) received() []outboundFrame {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]outboundFrame, 0, len(p.frames))
	for _, f := range p.frames {
		var of outboundFrame
		_ = json.Unmarshal(f, &of)
		out = append(out, of)
	}
	return out
}

type outboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func newTestGateway(t *testing.T, ids ...string) (*Gateway, map[string]*fakePeer) {
	t.Helper()
	g := NewGateway(rooms.NewRegistry())
	peers := make(map[string]*fakePeer, len(ids))
	for _, id := range ids {
		p := newFakePeer(id)
		require.NoError(t, g.Connect(p))
		peers[id] = p
	}
	return g, peers
}

func TestGateway_EmitRoomIsolation(t *testing.T) {
	t.Parallel()

	g, peers := newTestGateway(t, "x", "y", "z")
	g.Join("x", "a1")
	g.Join("y", "a1")
	g.Join("z", "a2")

	delivered := g.EmitCount("a1", EventNewBid, map[string]any{"auction": map[string]any{"_id": "a1"}})
	require.Equal(t, 2, delivered)

	require.Len(t, peers["x"].received(), 1)
	require.Len(t, peers["y"].received(), 1)
	require.Empty(t, peers["z"].received())
	require.Equal(t, EventNewBid, peers["x"].received()[0].Event)
	require.JSONEq(t, `{"auction":{"_id":"a1"}}`, string(peers["x"].received()[0].Data))
}

func TestGateway_EmitSkipsFailingPeers(t *testing.T) {
	t.Parallel()

	g, peers := newTestGateway(t, "x", "slow", "closed")
	for id := range peers {
		g.Join(id, "a1")
	}
	peers["slow"].full = true
	peers["closed"].Close()

	require.Equal(t, 1, g.EmitCount("a1", EventNewBid, struct{}{}))
	require.Len(t, peers["x"].received(), 1)
}

func TestGateway_EmitToEmptyRoom(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t, "x")
	require.Equal(t, 0, g.EmitCount("nobody", EventNewBid, struct{}{}))
}

func TestGateway_EmitUnencodablePayload(t *testing.T) {
	t.Parallel()

	g, peers := newTestGateway(t, "x")
	g.Join("x", "a1")
	require.Equal(t, 0, g.EmitCount("a1", EventNewBid, make(chan int)))
	require.Empty(t, peers["x"].received())
}

func TestGateway_Disconnect(t *testing.T) {
	t.Parallel()

	g, peers := newTestGateway(t, "x", "y")
	g.Join("x", "a1")
	g.Join("y", "a1")

	require.True(t, g.Disconnect("x"))
	require.False(t, g.Disconnect("x"))
	require.Equal(t, 1, peers["x"].closed)
	require.Equal(t, 1, g.Peers())

	g.Emit("a1", EventNewBid, struct{}{})
	require.Empty(t, peers["x"].received())
	require.Len(t, peers["y"].received(), 1)

	// the id can't rejoin once gone
	require.False(t, g.Join("x", "a1"))
}

func TestGateway_ConnectDuplicate(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t, "x")
	require.ErrorIs(t, g.Connect(newFakePeer("x")), ErrDuplicatePeer)
}

func TestGateway_SendTo(t *testing.T) {
	t.Parallel()

	g, peers := newTestGateway(t, "x", "y")
	require.NoError(t, g.SendTo("x", EventError, ErrorPayload{Message: "nope"}))
	require.Len(t, peers["x"].received(), 1)
	require.Empty(t, peers["y"].received())

	require.ErrorIs(t, g.SendTo("ghost", EventError, ErrorPayload{}), ErrUnknownPeer)
}

func TestGateway_Shutdown(t *testing.T) {
	t.Parallel()

	g, peers := newTestGateway(t, "x", "y")
	g.Join("x", "a1")
	g.Shutdown()

	require.Equal(t, 0, g.Peers())
	require.Equal(t, 0, g.Rooms())
	for _, p := range peers {
		require.Equal(t, 1, p.closed)
	}
}

func TestGateway_ConcurrentEmitAndDisconnect(t *testing.T) {
	t.Parallel()

	ids := []string{"a", "b", "c", "d", "e", "f"}
	g, _ := newTestGateway(t, ids...)
	for _, id := range ids {
		g.Join(id, "a1")
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Emit("a1", EventNewBid, struct{}{})
		}()
	}
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			g.Disconnect(id)
		}(id)
	}
	wg.Wait()

	require.Equal(t, 0, g.Peers())
}
