package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"auction-engine/internal/arbiter"
	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
)

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=repository

// BidStore is the part of the auction store the bid coordinator depends on
type BidStore interface {
	// ConditionalPrependBid atomically makes bid the new head of the auction's bids,
	// provided cond holds at the moment of the write. When it does not, the returned
	// error wraps biddingerrors.ErrNoMatch together with the reason.
	ConditionalPrependBid(ctx context.Context, auctionID string, bid model.Bid, cond arbiter.Condition) (model.Auction, error)
	FindAuction(ctx context.Context, auctionID string) (model.Auction, error)
}

// AuctionStore defines the full auction storage interface
type AuctionStore interface {
	BidStore
	CreateAuction(ctx context.Context, auction model.Auction) (model.Auction, error)
	UpdateAuction(ctx context.Context, auctionID string, update model.AuctionUpdate) (model.Auction, error)
	DeleteAuction(ctx context.Context, auctionID string) error
	ListAuctions(ctx context.Context) ([]model.Auction, error)
	ListOpenAuctions(ctx context.Context, now time.Time) ([]model.Auction, error)
	ListBySeller(ctx context.Context, sellerID string) ([]model.Auction, error)
	ListByBidder(ctx context.Context, bidderID string) ([]model.Auction, error)
	SaveUser(ctx context.Context, user model.UserRef) error
}

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionStore.
// The write lock makes the check and the prepend of ConditionalPrependBid a single step.
type MemoryRepo struct {
	mu          sync.RWMutex
	auctions    map[string]*model.Auction      // key: auctionID -> value: auction with unresolved user refs
	users       map[string]string              // key: userID -> value: display name
	bidderIndex map[string]map[string]struct{} // key: userID -> value: set of auctionIDs user has bid on
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		auctions:    make(map[string]*model.Auction),
		users:       make(map[string]string),
		bidderIndex: make(map[string]map[string]struct{}),
	}
}

// ConditionalPrependBid records a bid as the new leader if cond holds
func (r *MemoryRepo) ConditionalPrependBid(ctx context.Context, auctionID string, bid model.Bid, cond arbiter.Condition) (model.Auction, error) {
	if err := ctx.Err(); err != nil {
		return model.Auction{}, fmt.Errorf("prepend bid to auction %s: %w: %w", auctionID, biddingerrors.ErrStoreUnavailable, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	auction, ok := r.auctions[auctionID]
	if !ok {
		return model.Auction{}, fmt.Errorf("prepend bid to auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	if err := cond.Check(*auction); err != nil {
		return model.Auction{}, fmt.Errorf("prepend bid to auction %s: %w: %w", auctionID, biddingerrors.ErrNoMatch, err)
	}

	bids := make([]model.Bid, 0, len(auction.Bids)+1)
	bids = append(bids, model.Bid{Bidder: model.UserRef{ID: bid.Bidder.ID}, Amount: bid.Amount, Time: bid.Time})
	auction.Bids = append(bids, auction.Bids...)
	auction.UpdatedAt = time.Now().UTC()

	if r.bidderIndex[bid.Bidder.ID] == nil {
		r.bidderIndex[bid.Bidder.ID] = make(map[string]struct{})
	}
	r.bidderIndex[bid.Bidder.ID][auctionID] = struct{}{}

	return r.resolve(auction), nil
}

// FindAuction returns an auction with seller and bidders resolved
func (r *MemoryRepo) FindAuction(ctx context.Context, auctionID string) (model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	auction, ok := r.auctions[auctionID]
	if !ok {
		return model.Auction{}, fmt.Errorf("find auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return r.resolve(auction), nil
}

// CreateAuction stores a new auction. The auction must carry an id and no bids.
func (r *MemoryRepo) CreateAuction(ctx context.Context, auction model.Auction) (model.Auction, error) {
	if auction.ID == "" {
		return model.Auction{}, fmt.Errorf("create auction: %w - missing id", biddingerrors.ErrInvalidAuction)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.auctions[auction.ID]; exists {
		return model.Auction{}, fmt.Errorf("create auction %s: %w - duplicate id", auction.ID, biddingerrors.ErrInvalidAuction)
	}

	now := time.Now().UTC()
	stored := auction
	stored.Seller = model.UserRef{ID: auction.Seller.ID}
	stored.Bids = nil
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.auctions[auction.ID] = &stored

	return r.resolve(&stored), nil
}

// UpdateAuction applies a metadata update. Bids and starting bid are never touched.
func (r *MemoryRepo) UpdateAuction(ctx context.Context, auctionID string, update model.AuctionUpdate) (model.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	auction, ok := r.auctions[auctionID]
	if !ok {
		return model.Auction{}, fmt.Errorf("update auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}

	if update.ItemName != nil {
		auction.ItemName = *update.ItemName
	}
	if update.Description != nil {
		auction.Description = *update.Description
	}
	if update.BidStart != nil {
		auction.BidStart = *update.BidStart
	}
	if update.BidEnd != nil {
		auction.BidEnd = *update.BidEnd
	}
	auction.UpdatedAt = time.Now().UTC()

	return r.resolve(auction), nil
}

// DeleteAuction removes an auction together with its bids
func (r *MemoryRepo) DeleteAuction(ctx context.Context, auctionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	auction, ok := r.auctions[auctionID]
	if !ok {
		return fmt.Errorf("delete auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	for _, b := range auction.Bids {
		delete(r.bidderIndex[b.Bidder.ID], auctionID)
	}
	delete(r.auctions, auctionID)
	return nil
}

// ListAuctions returns every auction ordered by creation time
func (r *MemoryRepo) ListAuctions(ctx context.Context) ([]model.Auction, error) {
	return r.list(func(*model.Auction) bool { return true }), nil
}

// ListOpenAuctions returns auctions whose bidding window has not ended, earliest start first
func (r *MemoryRepo) ListOpenAuctions(ctx context.Context, now time.Time) ([]model.Auction, error) {
	auctions := r.list(func(a *model.Auction) bool { return a.BidEnd.After(now) })
	sort.SliceStable(auctions, func(i, j int) bool { return auctions[i].BidStart.Before(auctions[j].BidStart) })
	return auctions, nil
}

// ListBySeller returns the auctions a user sells
func (r *MemoryRepo) ListBySeller(ctx context.Context, sellerID string) ([]model.Auction, error) {
	return r.list(func(a *model.Auction) bool { return a.Seller.ID == sellerID }), nil
}

// ListByBidder returns the auctions a user has bid on
func (r *MemoryRepo) ListByBidder(ctx context.Context, bidderID string) ([]model.Auction, error) {
	r.mu.RLock()
	ids := make(map[string]struct{}, len(r.bidderIndex[bidderID]))
	for id := range r.bidderIndex[bidderID] {
		ids[id] = struct{}{}
	}
	r.mu.RUnlock()

	return r.list(func(a *model.Auction) bool {
		_, ok := ids[a.ID]
		return ok
	}), nil
}

// SaveUser creates or renames a user used for display resolution
func (r *MemoryRepo) SaveUser(ctx context.Context, user model.UserRef) error {
	if user.ID == "" {
		return fmt.Errorf("save user: %w - missing id", biddingerrors.ErrInvalidAuction)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user.Name
	return nil
}

func (r *MemoryRepo) list(keep func(*model.Auction) bool) []model.Auction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	auctions := make([]model.Auction, 0, len(r.auctions))
	for _, a := range r.auctions {
		if keep(a) {
			auctions = append(auctions, r.resolve(a))
		}
	}
	sort.Slice(auctions, func(i, j int) bool {
		if auctions[i].CreatedAt.Equal(auctions[j].CreatedAt) {
			return auctions[i].ID < auctions[j].ID
		}
		return auctions[i].CreatedAt.Before(auctions[j].CreatedAt)
	})
	return auctions
}

// resolve returns a copy of the auction with user names filled in. Callers hold r.mu.
func (r *MemoryRepo) resolve(a *model.Auction) model.Auction {
	out := *a
	out.Seller = model.UserRef{ID: a.Seller.ID, Name: r.users[a.Seller.ID]}
	out.Bids = make([]model.Bid, len(a.Bids))
	for i, b := range a.Bids {
		out.Bids[i] = model.Bid{
			Bidder: model.UserRef{ID: b.Bidder.ID, Name: r.users[b.Bidder.ID]},
			Amount: b.Amount,
			Time:   b.Time,
		}
	}
	return out
}
