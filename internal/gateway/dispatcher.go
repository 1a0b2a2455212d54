package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/models"
	"auction-engine/utils"

	"github.com/go-playground/validator/v10"
)

//go:generate mockgen -source=dispatcher.go -destination=mock_dispatcher.go -package=gateway

// BidSubmitter records a bid and broadcasts the new leader on success
type BidSubmitter interface {
	SubmitBid(ctx context.Context, auctionID string, info models.BidInfo) (models.Auction, error)
}

// Dispatcher routes inbound client frames
type Dispatcher struct {
	gateway   *Gateway
	submitter BidSubmitter
	validate  *validator.Validate
}

// NewDispatcher creates a Dispatcher
func NewDispatcher(gateway *Gateway, submitter BidSubmitter) *Dispatcher {
	return &Dispatcher{
		gateway:   gateway,
		submitter: submitter,
		validate:  validator.New(),
	}
}

// Dispatch handles one frame received from connID. Replies go to connID only.
func (d *Dispatcher) Dispatch(ctx context.Context, connID string, frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil || env.Event == "" {
		d.replyError(connID, fmt.Errorf("%w: malformed frame", biddingerrors.ErrInvalidEvent))
		return
	}

	switch env.Event {
	case EventJoinRoom, EventJoinAuctionRoom:
		var p RoomPayload
		if err := d.decode(env.Data, &p); err != nil {
			d.replyError(connID, err)
			return
		}
		d.gateway.Join(connID, p.Room)
		d.reply(connID, EventJoinedRoom, p)

	case EventLeaveRoom, EventLeaveAuction:
		var p RoomPayload
		if err := d.decode(env.Data, &p); err != nil {
			d.replyError(connID, err)
			return
		}
		d.gateway.Leave(connID, p.Room)
		d.reply(connID, EventLeftRoom, p)

	case EventNewBid:
		var p BidPayload
		if err := d.decode(env.Data, &p); err != nil {
			d.reject(connID, p.Room, fmt.Errorf("%w: %w", biddingerrors.ErrInvalidBid, err))
			return
		}
		if _, err := d.submitter.SubmitBid(ctx, p.Room, p.BidInfo); err != nil {
			d.reject(connID, p.Room, err)
		}

	default:
		d.replyError(connID, fmt.Errorf("%w: unknown event %q", biddingerrors.ErrInvalidEvent, env.Event))
	}
}

// decode unmarshals and validates an event payload
func (d *Dispatcher) decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", biddingerrors.ErrInvalidEvent)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", biddingerrors.ErrInvalidEvent, err)
	}
	if err := d.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: field %s failed on %s", biddingerrors.ErrInvalidEvent, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %w", biddingerrors.ErrInvalidEvent, err)
	}
	return nil
}

func (d *Dispatcher) reject(connID, room string, err error) {
	reason := biddingerrors.Reason(err)
	d.reply(connID, EventBidRejected, BidRejectedPayload{
		Room:    room,
		Reason:  reason,
		Message: rejectionMessage(reason),
	})
}

func (d *Dispatcher) replyError(connID string, err error) {
	utils.Debug("dispatcher: bad frame", map[string]any{"connection_id": connID, "error": err.Error()})
	d.reply(connID, EventError, ErrorPayload{Message: err.Error()})
}

func (d *Dispatcher) reply(connID, event string, payload any) {
	if err := d.gateway.SendTo(connID, event, payload); err != nil {
		utils.Warn("dispatcher: reply not delivered", map[string]any{
			"connection_id": connID,
			"event":         event,
			"error":         err.Error(),
		})
	}
}

func rejectionMessage(reason string) string {
	switch reason {
	case biddingerrors.ReasonNotFound:
		return "auction not found"
	case biddingerrors.ReasonInvalidBid:
		return "invalid bid details"
	case biddingerrors.ReasonOutBid:
		return "bid is not higher than the leading bid"
	case biddingerrors.ReasonBelowStartingBid:
		return "bid is below the starting bid"
	case biddingerrors.ReasonBidWindowClosed:
		return "auction is not accepting bids"
	default:
		return "bid could not be recorded, try again"
	}
}
