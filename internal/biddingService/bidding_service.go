package bidding

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/models"
	"auction-engine/internal/repository"
	"auction-engine/utils"
)

// BiddingService defines the business logic around auctions and their bids
type BiddingService struct {
	repo        repository.AuctionStore
	coordinator *Coordinator
	now         func() time.Time
}

// NewBiddingService creates a new BiddingService instance
func NewBiddingService(repo repository.AuctionStore, coordinator *Coordinator) *BiddingService {
	return &BiddingService{
		repo:        repo,
		coordinator: coordinator,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// PlaceBid submits a bid through the coordinator, the only write path for bids
func (s *BiddingService) PlaceBid(ctx context.Context, auctionID string, info models.BidInfo) (models.Auction, error) {
	return s.coordinator.SubmitBid(ctx, auctionID, info)
}

// CreateAuction validates a draft and opens a new auction
func (s *BiddingService) CreateAuction(ctx context.Context, draft models.AuctionDraft) (models.Auction, error) {
	if err := validateDraft(draft); err != nil {
		return models.Auction{}, err
	}

	auction := models.Auction{
		ID:          utils.GenerateID(),
		ItemName:    strings.TrimSpace(draft.ItemName),
		Description: draft.Description,
		Seller:      models.UserRef{ID: draft.SellerID},
		StartingBid: draft.StartingBid,
		BidStart:    draft.BidStart.UTC(),
		BidEnd:      draft.BidEnd.UTC(),
	}

	created, err := s.repo.CreateAuction(ctx, auction)
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to create auction for seller %s: %w", draft.SellerID, err)
	}
	return created, nil
}

// GetAuction returns a single auction with its bid history
func (s *BiddingService) GetAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	if auctionID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidAuction)
	}

	auction, err := s.repo.FindAuction(ctx, auctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
	}
	return auction, nil
}

// UpdateAuction changes an auction's metadata. The starting bid is immutable.
func (s *BiddingService) UpdateAuction(ctx context.Context, auctionID string, update models.AuctionUpdate) (models.Auction, error) {
	if auctionID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidAuction)
	}
	if update.ItemName != nil && strings.TrimSpace(*update.ItemName) == "" {
		return models.Auction{}, fmt.Errorf("service: %w - empty item name", biddingerrors.ErrInvalidAuction)
	}

	if update.BidStart != nil || update.BidEnd != nil {
		current, err := s.repo.FindAuction(ctx, auctionID)
		if err != nil {
			return models.Auction{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
		}
		start, end := current.BidStart, current.BidEnd
		if update.BidStart != nil {
			start = update.BidStart.UTC()
			update.BidStart = &start
		}
		if update.BidEnd != nil {
			end = update.BidEnd.UTC()
			update.BidEnd = &end
		}
		if !end.After(start) {
			return models.Auction{}, fmt.Errorf("service: %w - bid window ends before it starts", biddingerrors.ErrInvalidAuction)
		}
	}

	updated, err := s.repo.UpdateAuction(ctx, auctionID, update)
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to update auction %s: %w", auctionID, err)
	}
	return updated, nil
}

// DeleteAuction removes an auction and its bids
func (s *BiddingService) DeleteAuction(ctx context.Context, auctionID string) error {
	if auctionID == "" {
		return fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidAuction)
	}
	if err := s.repo.DeleteAuction(ctx, auctionID); err != nil {
		return fmt.Errorf("service: failed to delete auction %s: %w", auctionID, err)
	}
	return nil
}

// ListAuctions returns every auction
func (s *BiddingService) ListAuctions(ctx context.Context) ([]models.Auction, error) {
	auctions, err := s.repo.ListAuctions(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list auctions: %w", err)
	}
	return auctions, nil
}

// ListOpenAuctions returns auctions still accepting bids, earliest start first
func (s *BiddingService) ListOpenAuctions(ctx context.Context) ([]models.Auction, error) {
	auctions, err := s.repo.ListOpenAuctions(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("service: failed to list open auctions: %w", err)
	}
	return auctions, nil
}

// GetAuctionsBySeller returns the auctions a user sells
func (s *BiddingService) GetAuctionsBySeller(ctx context.Context, userID string) ([]models.Auction, error) {
	if userID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidAuction)
	}
	auctions, err := s.repo.ListBySeller(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get auctions for seller %s: %w", userID, err)
	}
	return auctions, nil
}

// GetAuctionsByBidder returns the auctions a user has placed bids on
func (s *BiddingService) GetAuctionsByBidder(ctx context.Context, userID string) ([]models.Auction, error) {
	if userID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidAuction)
	}
	auctions, err := s.repo.ListByBidder(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get auctions for bidder %s: %w", userID, err)
	}
	return auctions, nil
}

// RegisterUser records a display name for a user id
func (s *BiddingService) RegisterUser(ctx context.Context, user models.UserRef) error {
	if err := s.repo.SaveUser(ctx, user); err != nil {
		return fmt.Errorf("service: failed to register user %s: %w", user.ID, err)
	}
	return nil
}

// validateDraft checks input validity for a new auction
func validateDraft(d models.AuctionDraft) error {
	if d.SellerID == "" || strings.TrimSpace(d.ItemName) == "" {
		return fmt.Errorf("service: %w - missing seller or item name", biddingerrors.ErrInvalidAuction)
	}
	if math.IsNaN(d.StartingBid) || math.IsInf(d.StartingBid, 0) || d.StartingBid < 0 {
		return fmt.Errorf("service: %w - invalid starting bid", biddingerrors.ErrInvalidAuction)
	}
	if d.BidStart.IsZero() || d.BidEnd.IsZero() {
		return fmt.Errorf("service: %w - missing bid window", biddingerrors.ErrInvalidAuction)
	}
	if !d.BidEnd.After(d.BidStart) {
		return fmt.Errorf("service: %w - bid window ends before it starts", biddingerrors.ErrInvalidAuction)
	}
	return nil
}
