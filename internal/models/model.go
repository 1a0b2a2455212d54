package models

import "time"

// UserRef is a user reference resolved for display
type UserRef struct {
	ID   string `json:"_id"`
	Name string `json:"name,omitempty"`
}

// Bid is an accepted bid on an auction. Bids are never edited once accepted.
type Bid struct {
	Bidder UserRef   `json:"bidder"`
	Amount float64   `json:"bid"`
	Time   time.Time `json:"time"`
}

// BidInfo is a bid submission as sent by a client
type BidInfo struct {
	BidderID  string    `json:"bidder" validate:"required"`
	Amount    float64   `json:"bid" validate:"gt=0"`
	Timestamp time.Time `json:"timestamp"`
}

// Auction represents an auctioned item together with its bid history.
// Bids are ordered most recent first; Bids[0] is the leading bid.
type Auction struct {
	ID          string    `json:"_id"`
	ItemName    string    `json:"itemName"`
	Description string    `json:"description,omitempty"`
	Seller      UserRef   `json:"seller"`
	StartingBid float64   `json:"startingBid"`
	BidStart    time.Time `json:"bidStart"`
	BidEnd      time.Time `json:"bidEnd"`
	Bids        []Bid     `json:"bids"`
	CreatedAt   time.Time `json:"created"`
	UpdatedAt   time.Time `json:"updated"`
}

// LeadingAmount returns the amount of the leading bid, or nil when no bid was placed yet
func (a Auction) LeadingAmount() *float64 {
	if len(a.Bids) == 0 {
		return nil
	}
	amount := a.Bids[0].Amount
	return &amount
}

// AuctionUpdate carries the metadata an administrative update may change.
// Starting bid and bids are deliberately absent.
type AuctionUpdate struct {
	ItemName    *string
	Description *string
	BidStart    *time.Time
	BidEnd      *time.Time
}

// AuctionDraft holds what a seller provides to open an auction
type AuctionDraft struct {
	SellerID    string
	ItemName    string
	Description string
	StartingBid float64
	BidStart    time.Time
	BidEnd      time.Time
}
