package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"auction-engine/internal/models"
	"auction-engine/internal/rooms"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// newWSServer serves /ws; submitter builds the bid submitter once the gateway exists
func newWSServer(t *testing.T, submitter func(*Gateway) BidSubmitter, settings Settings) (*Gateway, *httptest.Server) {
	t.Helper()

	g := NewGateway(rooms.NewRegistry())
	h := NewHandler(g, NewDispatcher(g, submitter(g)), settings)

	router := gin.New()
	router.GET("/ws", h.ServeWS)

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		g.Shutdown()
		srv.Close()
	})
	return g, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) outboundFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f outboundFrame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func mockSubmitter(t *testing.T) func(*Gateway) BidSubmitter {
	ctrl := gomock.NewController(t)
	return func(*Gateway) BidSubmitter { return NewMockBidSubmitter(ctrl) }
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Envelope{Event: event, Data: raw}))
}

func TestHandler_JoinAndReceive(t *testing.T) {
	t.Parallel()

	g, srv := newWSServer(t, mockSubmitter(t), DefaultSettings())

	x := dial(t, srv)
	z := dial(t, srv)
	require.Equal(t, EventConnected, readFrame(t, x).Event)
	require.Equal(t, EventConnected, readFrame(t, z).Event)

	send(t, x, EventJoinRoom, RoomPayload{Room: "a1"})
	require.Equal(t, EventJoinedRoom, readFrame(t, x).Event)
	send(t, z, EventJoinRoom, RoomPayload{Room: "a2"})
	require.Equal(t, EventJoinedRoom, readFrame(t, z).Event)

	g.Emit("a1", EventNewBid, map[string]any{"auction": models.Auction{ID: "a1"}})

	f := readFrame(t, x)
	require.Equal(t, EventNewBid, f.Event)

	// z is in another room and sees nothing
	require.NoError(t, z.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := z.ReadMessage()
	require.Error(t, err)
}

func TestHandler_BidOverSocket(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	_, srv := newWSServer(t, func(g *Gateway) BidSubmitter {
		submitter := NewMockBidSubmitter(ctrl)
		submitter.EXPECT().SubmitBid(gomock.Any(), "a1", gomock.Any()).
			DoAndReturn(func(_ context.Context, auctionID string, info models.BidInfo) (models.Auction, error) {
				updated := models.Auction{ID: auctionID, Bids: []models.Bid{{Bidder: models.UserRef{ID: info.BidderID}, Amount: info.Amount}}}
				g.Emit(auctionID, EventNewBid, map[string]any{"auction": updated})
				return updated, nil
			})
		return submitter
	}, DefaultSettings())

	x := dial(t, srv)
	require.Equal(t, EventConnected, readFrame(t, x).Event)
	send(t, x, EventJoinRoom, RoomPayload{Room: "a1"})
	require.Equal(t, EventJoinedRoom, readFrame(t, x).Event)

	send(t, x, EventNewBid, BidPayload{Room: "a1", BidInfo: models.BidInfo{BidderID: "u1", Amount: 100}})

	f := readFrame(t, x)
	require.Equal(t, EventNewBid, f.Event)

	var payload struct {
		Auction models.Auction `json:"auction"`
	}
	require.NoError(t, json.Unmarshal(f.Data, &payload))
	require.Equal(t, 100.0, payload.Auction.Bids[0].Amount)
}

func TestHandler_DisconnectCleansUp(t *testing.T) {
	t.Parallel()

	g, srv := newWSServer(t, mockSubmitter(t), DefaultSettings())

	x := dial(t, srv)
	require.Equal(t, EventConnected, readFrame(t, x).Event)
	send(t, x, EventJoinRoom, RoomPayload{Room: "a1"})
	require.Equal(t, EventJoinedRoom, readFrame(t, x).Event)
	require.Equal(t, 1, g.Peers())
	require.Equal(t, 1, g.Rooms())

	require.NoError(t, x.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	x.Close()

	require.Eventually(t, func() bool { return g.Peers() == 0 && g.Rooms() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_RejectsOrigin(t *testing.T) {
	t.Parallel()

	settings := DefaultSettings()
	settings.AllowedOrigins = []string{"https://auctions.example"}
	_, srv := newWSServer(t, mockSubmitter(t), settings)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestOriginChecker(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://a.example")

	require.True(t, originChecker(nil)(req))
	require.True(t, originChecker([]string{"*"})(req))
	require.True(t, originChecker([]string{"https://a.example"})(req))
	require.False(t, originChecker([]string{"https://b.example"})(req))
}
