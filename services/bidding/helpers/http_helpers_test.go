package helpers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"

	"github.com/stretchr/testify/require"
)

func TestMapErrorToHTTP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		reason string
	}{
		{name: "not_found", err: biddingerrors.ErrAuctionNotFound, status: http.StatusNotFound, reason: "not_found"},
		{name: "invalid_bid", err: biddingerrors.ErrInvalidBid, status: http.StatusBadRequest, reason: "invalid_bid"},
		{name: "invalid_auction", err: biddingerrors.ErrInvalidAuction, status: http.StatusBadRequest},
		{name: "out_bid", err: fmt.Errorf("x: %w: %w", biddingerrors.ErrNoMatch, biddingerrors.ErrOutBid), status: http.StatusConflict, reason: "out_bid"},
		{name: "below_starting_bid", err: biddingerrors.ErrBelowStartingBid, status: http.StatusConflict, reason: "below_starting_bid"},
		{name: "window_closed", err: biddingerrors.ErrBidWindowClosed, status: http.StatusConflict, reason: "bid_window_closed"},
		{name: "store_unavailable", err: fmt.Errorf("x: %w", biddingerrors.ErrStoreUnavailable), status: http.StatusServiceUnavailable, reason: "store_unavailable"},
		{name: "unknown", err: errors.New("boom"), status: http.StatusInternalServerError},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			status, message := MapErrorToHTTP(tc.err)
			require.Equal(t, tc.status, status)
			require.NotEmpty(t, message)
			require.Equal(t, tc.reason, RejectionReason(status, tc.err))
		})
	}
}

func TestNewBidResponse(t *testing.T) {
	t.Parallel()

	resp := NewBidResponse(model.Auction{ID: "a1", Bids: []model.Bid{{Amount: 150}, {Amount: 100}}})
	require.Equal(t, "a1", resp.AuctionID)
	require.Equal(t, 150.0, resp.LeadingBid.Amount)
	require.Equal(t, 2, resp.BidCount)

	empty := NewBidResponse(model.Auction{ID: "a2"})
	require.Equal(t, 0, empty.BidCount)
}
