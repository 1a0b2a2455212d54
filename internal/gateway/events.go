package gateway

import (
	"encoding/json"

	"auction-engine/internal/models"
)

// Inbound events
const (
	EventJoinRoom        = "join room"
	EventLeaveRoom       = "leave room"
	EventJoinAuctionRoom = "join auction room"
	EventLeaveAuction    = "leave auction room"
	EventNewBid          = "new bid"
)

// Outbound events addressed to a single connection. "new bid" is also sent to whole rooms.
const (
	EventConnected   = "connected"
	EventJoinedRoom  = "joined room"
	EventLeftRoom    = "left room"
	EventBidRejected = "bid rejected"
	EventError       = "error"
)

// Envelope is the frame exchanged over the websocket in both directions
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// RoomPayload is the data of join and leave events
type RoomPayload struct {
	Room string `json:"room" validate:"required"`
}

// BidPayload is the data of an inbound "new bid" event; the room is the auction id
type BidPayload struct {
	Room    string         `json:"room" validate:"required"`
	BidInfo models.BidInfo `json:"bidInfo"`
}

// BidRejectedPayload tells the submitter why its bid did not become the leader
type BidRejectedPayload struct {
	Room    string `json:"room"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// ErrorPayload reports a malformed or unknown frame
type ErrorPayload struct {
	Message string `json:"message"`
}

// ConnectedPayload is the first frame sent on a new connection
type ConnectedPayload struct {
	ConnectionID string `json:"connection_id"`
}

// encode marshals an outbound frame once so it can be delivered to many peers
func encode(event string, payload any) ([]byte, error) {
	return json.Marshal(outbound{Event: event, Data: payload})
}
