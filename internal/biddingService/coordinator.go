package bidding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"auction-engine/internal/arbiter"
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/models"
	"auction-engine/internal/repository"
	"auction-engine/utils"
)

//go:generate mockgen -source=coordinator.go -destination=mock_coordinator.go -package=bidding

// EventNewBid is emitted to an auction's room when a bid becomes the new leader
const EventNewBid = "new bid"

// NewBidPayload is the payload of EventNewBid
type NewBidPayload struct {
	Auction models.Auction `json:"auction"`
}

// Broadcaster delivers an event to every connection watching a room
type Broadcaster interface {
	Emit(roomID, event string, payload any)
}

// Policy holds the configurable parts of bid acceptance
type Policy struct {
	EnforceStartingBid bool
	EnforceBidWindow   bool
	// StoreTimeout bounds the conditional write; zero leaves it to the caller's context.
	StoreTimeout time.Duration
}

// Coordinator records one bid against one auction and announces the new leader.
// It holds no lock: the store's conditional write is the only arbitration.
type Coordinator struct {
	store       repository.BidStore
	broadcaster Broadcaster
	policy      Policy
	now         func() time.Time
}

// NewCoordinator creates a Coordinator
func NewCoordinator(store repository.BidStore, broadcaster Broadcaster, policy Policy) *Coordinator {
	return &Coordinator{
		store:       store,
		broadcaster: broadcaster,
		policy:      policy,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SubmitBid attempts to make info the leading bid of the auction. On success the
// updated auction is broadcast to the auction's room before it is returned.
// A lost race returns an error wrapping biddingerrors.ErrOutBid and broadcasts nothing.
func (c *Coordinator) SubmitBid(ctx context.Context, auctionID string, info models.BidInfo) (models.Auction, error) {
	if err := validateBidInfo(auctionID, info); err != nil {
		return models.Auction{}, err
	}

	now := c.now()
	placedAt := info.Timestamp.UTC()
	if info.Timestamp.IsZero() {
		placedAt = now
	}
	bid := models.Bid{
		Bidder: models.UserRef{ID: info.BidderID},
		Amount: info.Amount,
		Time:   placedAt,
	}
	cond := arbiter.NewCondition(info.Amount, now,
		arbiter.WithStartingBid(c.policy.EnforceStartingBid),
		arbiter.WithBidWindow(c.policy.EnforceBidWindow),
	)

	storeCtx := ctx
	if c.policy.StoreTimeout > 0 {
		var cancel context.CancelFunc
		storeCtx, cancel = context.WithTimeout(ctx, c.policy.StoreTimeout)
		defer cancel()
	}

	updated, err := c.store.ConditionalPrependBid(storeCtx, auctionID, bid, cond)
	if err != nil {
		return models.Auction{}, c.classify(auctionID, info, err)
	}

	c.broadcaster.Emit(auctionID, EventNewBid, NewBidPayload{Auction: updated})
	utils.Info("coordinator: bid accepted", map[string]any{
		"auction_id": auctionID,
		"bidder_id":  info.BidderID,
		"amount":     info.Amount,
		"bids":       len(updated.Bids),
	})

	return updated, nil
}

// classify turns a store error into the outcome reported to the submitter
func (c *Coordinator) classify(auctionID string, info models.BidInfo, err error) error {
	fields := map[string]any{
		"auction_id": auctionID,
		"bidder_id":  info.BidderID,
		"amount":     info.Amount,
		"error":      err.Error(),
	}

	switch {
	case errors.Is(err, biddingerrors.ErrAuctionNotFound):
		utils.Warn("coordinator: bid for unknown auction", fields)
		return fmt.Errorf("coordinator: %w", err)
	case errors.Is(err, biddingerrors.ErrNoMatch):
		utils.Warn("coordinator: bid rejected", fields)
		if !errors.Is(err, biddingerrors.ErrOutBid) &&
			!errors.Is(err, biddingerrors.ErrBelowStartingBid) &&
			!errors.Is(err, biddingerrors.ErrBidWindowClosed) {
			return fmt.Errorf("coordinator: %w: %w", err, biddingerrors.ErrOutBid)
		}
		return fmt.Errorf("coordinator: %w", err)
	default:
		utils.Error("coordinator: store failure while recording bid", fields)
		if errors.Is(err, biddingerrors.ErrStoreUnavailable) {
			return fmt.Errorf("coordinator: %w", err)
		}
		return fmt.Errorf("coordinator: %w: %w", biddingerrors.ErrStoreUnavailable, err)
	}
}

// validateBidInfo rejects malformed submissions before the store is involved
func validateBidInfo(auctionID string, info models.BidInfo) error {
	if auctionID == "" || info.BidderID == "" {
		return fmt.Errorf("coordinator: %w - missing auction or bidder", biddingerrors.ErrInvalidBid)
	}
	if math.IsNaN(info.Amount) || math.IsInf(info.Amount, 0) {
		return fmt.Errorf("coordinator: %w - non-finite bid amount", biddingerrors.ErrInvalidBid)
	}
	if info.Amount <= 0 {
		return fmt.Errorf("coordinator: %w - non-positive bid amount", biddingerrors.ErrInvalidBid)
	}
	return nil
}
