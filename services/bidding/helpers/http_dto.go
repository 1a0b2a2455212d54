package helpers

import (
	"time"

	model "auction-engine/internal/models"
)

// Request/Response DTOs
type PlaceBidRequest struct {
	BidderID  string    `json:"bidder" binding:"required"`
	Amount    float64   `json:"bid" binding:"required,gt=0"`
	Timestamp time.Time `json:"timestamp"`
}

type CreateAuctionRequest struct {
	SellerID    string    `json:"seller" binding:"required"`
	ItemName    string    `json:"itemName" binding:"required"`
	Description string    `json:"description"`
	StartingBid float64   `json:"startingBid" binding:"gte=0"`
	BidStart    time.Time `json:"bidStart" binding:"required"`
	BidEnd      time.Time `json:"bidEnd" binding:"required"`
}

// UpdateAuctionRequest changes auction metadata; omitted fields are left as they are
type UpdateAuctionRequest struct {
	ItemName    *string    `json:"itemName"`
	Description *string    `json:"description"`
	BidStart    *time.Time `json:"bidStart"`
	BidEnd      *time.Time `json:"bidEnd"`
}

type RegisterUserRequest struct {
	Name string `json:"name" binding:"required"`
}

// BidResponse summarizes an auction after an accepted bid
type BidResponse struct {
	AuctionID  string    `json:"auction_id"`
	LeadingBid model.Bid `json:"leading_bid"`
	BidCount   int       `json:"bid_count"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Rooms       int    `json:"rooms"`
}

func (r CreateAuctionRequest) ToDraft() model.AuctionDraft {
	return model.AuctionDraft{
		SellerID:    r.SellerID,
		ItemName:    r.ItemName,
		Description: r.Description,
		StartingBid: r.StartingBid,
		BidStart:    r.BidStart,
		BidEnd:      r.BidEnd,
	}
}

func (r UpdateAuctionRequest) ToUpdate() model.AuctionUpdate {
	return model.AuctionUpdate{
		ItemName:    r.ItemName,
		Description: r.Description,
		BidStart:    r.BidStart,
		BidEnd:      r.BidEnd,
	}
}

func (r PlaceBidRequest) ToBidInfo() model.BidInfo {
	return model.BidInfo{
		BidderID:  r.BidderID,
		Amount:    r.Amount,
		Timestamp: r.Timestamp,
	}
}

// NewBidResponse builds the response for an accepted bid
func NewBidResponse(a model.Auction) BidResponse {
	resp := BidResponse{AuctionID: a.ID, BidCount: len(a.Bids)}
	if len(a.Bids) > 0 {
		resp.LeadingBid = a.Bids[0]
	}
	return resp
}
