package biddingerrors

import "errors"

// Store-level errors
var (
	ErrAuctionNotFound  = errors.New("auction not found")
	ErrNoMatch          = errors.New("no auction matched the bid condition")
	ErrStoreUnavailable = errors.New("auction store unavailable")
)

// business logic errors
var (
	ErrInvalidBid       = errors.New("invalid bid")
	ErrOutBid           = errors.New("bid does not exceed the leading bid")
	ErrBelowStartingBid = errors.New("bid does not exceed the starting bid")
	ErrBidWindowClosed  = errors.New("bid outside of the bidding window")
	ErrInvalidAuction   = errors.New("invalid auction")
)

// transport errors
var (
	ErrInvalidEvent = errors.New("invalid event")
)

// Rejection reasons reported to the submitting client
const (
	ReasonNotFound         = "not_found"
	ReasonInvalidBid       = "invalid_bid"
	ReasonOutBid           = "out_bid"
	ReasonBelowStartingBid = "below_starting_bid"
	ReasonBidWindowClosed  = "bid_window_closed"
	ReasonStoreUnavailable = "store_unavailable"
)

// Reason maps a bid submission error to the reason reported to the submitter
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrAuctionNotFound):
		return ReasonNotFound
	case errors.Is(err, ErrInvalidBid):
		return ReasonInvalidBid
	case errors.Is(err, ErrOutBid):
		return ReasonOutBid
	case errors.Is(err, ErrBelowStartingBid):
		return ReasonBelowStartingBid
	case errors.Is(err, ErrBidWindowClosed):
		return ReasonBidWindowClosed
	default:
		return ReasonStoreUnavailable
	}
}
