package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"auction-engine/internal/arbiter"
	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"

	"github.com/stretchr/testify/require"
)

// Helper to create a new Auction open for an hour around now
func newAuction(auctionID, sellerID string, startingBid float64) model.Auction {
	now := time.Now().UTC()
	return model.Auction{
		ID:          auctionID,
		ItemName:    fmt.Sprintf("%s item", auctionID),
		Description: fmt.Sprintf("%s description", auctionID),
		Seller:      model.UserRef{ID: sellerID},
		StartingBid: startingBid,
		BidStart:    now.Add(-time.Hour),
		BidEnd:      now.Add(time.Hour),
	}
}

// Helper to create a new Bid
func newBid(bidderID string, amount float64) model.Bid {
	return model.Bid{Bidder: model.UserRef{ID: bidderID}, Amount: amount, Time: time.Now().UTC()}
}

func prepend(ctx context.Context, s AuctionStore, auctionID string, b model.Bid, opts ...arbiter.Option) (model.Auction, error) {
	return s.ConditionalPrependBid(ctx, auctionID, b, arbiter.NewCondition(b.Amount, b.Time, opts...))
}

func amounts(a model.Auction) []float64 {
	out := make([]float64, 0, len(a.Bids))
	for _, b := range a.Bids {
		out = append(out, b.Amount)
	}
	return out
}

// storeContract runs the behaviour every AuctionStore implementation must share
func storeContract(t *testing.T, newStore func(t *testing.T) AuctionStore) {
	ctx := context.Background()

	t.Run("scenario_history_is_prepended", func(t *testing.T) {
		s := newStore(t)
		_, err := s.CreateAuction(ctx, newAuction("a1", "seller1", 50))
		require.NoError(t, err)

		got, err := prepend(ctx, s, "a1", newBid("userA", 100))
		require.NoError(t, err)
		require.Equal(t, []float64{100}, amounts(got))

		_, err = prepend(ctx, s, "a1", newBid("userB", 90))
		require.Error(t, err)
		require.True(t, errors.Is(err, biddingerrors.ErrNoMatch))
		require.True(t, errors.Is(err, biddingerrors.ErrOutBid))

		got, err = s.FindAuction(ctx, "a1")
		require.NoError(t, err)
		require.Equal(t, []float64{100}, amounts(got))

		got, err = prepend(ctx, s, "a1", newBid("userC", 150))
		require.NoError(t, err)
		require.Equal(t, []float64{150, 100}, amounts(got))
		require.Equal(t, "userC", got.Bids[0].Bidder.ID)
		require.Equal(t, "userA", got.Bids[1].Bidder.ID)
	})

	t.Run("tie_is_rejected", func(t *testing.T) {
		s := newStore(t)
		_, err := s.CreateAuction(ctx, newAuction("a1", "seller1", 50))
		require.NoError(t, err)

		_, err = prepend(ctx, s, "a1", newBid("userA", 100))
		require.NoError(t, err)
		_, err = prepend(ctx, s, "a1", newBid("userB", 100))
		require.True(t, errors.Is(err, biddingerrors.ErrOutBid), "got: %v", err)
	})

	t.Run("first_bid_below_starting_bid", func(t *testing.T) {
		s := newStore(t)
		_, err := s.CreateAuction(ctx, newAuction("a1", "seller1", 50))
		require.NoError(t, err)

		_, err = prepend(ctx, s, "a1", newBid("userA", 10), arbiter.WithStartingBid(true))
		require.True(t, errors.Is(err, biddingerrors.ErrBelowStartingBid), "got: %v", err)

		got, err := prepend(ctx, s, "a1", newBid("userA", 10))
		require.NoError(t, err)
		require.Equal(t, []float64{10}, amounts(got))
	})

	t.Run("bid_window_enforced", func(t *testing.T) {
		s := newStore(t)
		_, err := s.CreateAuction(ctx, newAuction("a1", "seller1", 50))
		require.NoError(t, err)

		late := newBid("userA", 100)
		late.Time = time.Now().UTC().Add(2 * time.Hour)
		_, err = prepend(ctx, s, "a1", late, arbiter.WithBidWindow(true))
		require.True(t, errors.Is(err, biddingerrors.ErrBidWindowClosed), "got: %v", err)

		_, err = prepend(ctx, s, "a1", newBid("userA", 100), arbiter.WithBidWindow(true))
		require.NoError(t, err)
	})

	t.Run("zero_window_is_closed", func(t *testing.T) {
		s := newStore(t)
		a := newAuction("a1", "seller1", 0)
		a.BidStart, a.BidEnd = time.Time{}, time.Time{}
		_, err := s.CreateAuction(ctx, a)
		require.NoError(t, err)

		_, err = prepend(ctx, s, "a1", newBid("userA", 100), arbiter.WithBidWindow(true))
		require.True(t, errors.Is(err, biddingerrors.ErrBidWindowClosed), "got: %v", err)
	})

	t.Run("unknown_auction", func(t *testing.T) {
		s := newStore(t)
		_, err := prepend(ctx, s, "missing", newBid("userA", 100))
		require.True(t, errors.Is(err, biddingerrors.ErrAuctionNotFound), "got: %v", err)

		_, err = s.FindAuction(ctx, "missing")
		require.True(t, errors.Is(err, biddingerrors.ErrAuctionNotFound))
	})

	t.Run("names_are_resolved", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.SaveUser(ctx, model.UserRef{ID: "seller1", Name: "Sally"}))
		require.NoError(t, s.SaveUser(ctx, model.UserRef{ID: "userA", Name: "Ann"}))
		_, err := s.CreateAuction(ctx, newAuction("a1", "seller1", 50))
		require.NoError(t, err)

		got, err := prepend(ctx, s, "a1", newBid("userA", 100))
		require.NoError(t, err)
		require.Equal(t, model.UserRef{ID: "seller1", Name: "Sally"}, got.Seller)
		require.Equal(t, model.UserRef{ID: "userA", Name: "Ann"}, got.Bids[0].Bidder)

		require.NoError(t, s.SaveUser(ctx, model.UserRef{ID: "userA", Name: "Annie"}))
		got, err = s.FindAuction(ctx, "a1")
		require.NoError(t, err)
		require.Equal(t, "Annie", got.Bids[0].Bidder.Name)
	})

	t.Run("concurrent_race_exclusivity", func(t *testing.T) {
		s := newStore(t)
		_, err := s.CreateAuction(ctx, newAuction("a1", "seller1", 50))
		require.NoError(t, err)
		_, err = prepend(ctx, s, "a1", newBid("leader", 100))
		require.NoError(t, err)

		var wg sync.WaitGroup
		var accepted int32
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				// every racer sees leader 100 and bids the same amount: at most one may win
				if _, err := prepend(ctx, s, "a1", newBid(fmt.Sprintf("racer-%d", i), 120)); err == nil {
					atomic.AddInt32(&accepted, 1)
				} else {
					require.True(t, errors.Is(err, biddingerrors.ErrOutBid), "got: %v", err)
				}
			}(i)
		}
		wg.Wait()

		require.Equal(t, int32(1), accepted)
		got, err := s.FindAuction(ctx, "a1")
		require.NoError(t, err)
		require.Equal(t, []float64{120, 100}, amounts(got))
	})

	t.Run("concurrent_monotonicity", func(t *testing.T) {
		s := newStore(t)
		_, err := s.CreateAuction(ctx, newAuction("a1", "seller1", 50))
		require.NoError(t, err)

		var wg sync.WaitGroup
		max := 0.0
		for i := 1; i <= 40; i++ {
			amount := float64((i*37)%41 + 1)
			max = math.Max(max, amount)
			wg.Add(1)
			go func(i int, amount float64) {
				defer wg.Done()
				_, _ = prepend(ctx, s, "a1", newBid(fmt.Sprintf("user-%d", i), amount))
			}(i, amount)
		}
		wg.Wait()

		got, err := s.FindAuction(ctx, "a1")
		require.NoError(t, err)
		require.NotEmpty(t, got.Bids)
		require.Equal(t, max, got.Bids[0].Amount)
		for i := 1; i < len(got.Bids); i++ {
			require.Greater(t, got.Bids[i-1].Amount, got.Bids[i].Amount, "bids must strictly decrease from the head")
		}
	})

	t.Run("metadata_update_keeps_bids", func(t *testing.T) {
		s := newStore(t)
		_, err := s.CreateAuction(ctx, newAuction("a1", "seller1", 50))
		require.NoError(t, err)
		_, err = prepend(ctx, s, "a1", newBid("userA", 100))
		require.NoError(t, err)

		name := "renamed"
		got, err := s.UpdateAuction(ctx, "a1", model.AuctionUpdate{ItemName: &name})
		require.NoError(t, err)
		require.Equal(t, "renamed", got.ItemName)
		require.Equal(t, 50.0, got.StartingBid)
		require.Equal(t, []float64{100}, amounts(got))

		_, err = s.UpdateAuction(ctx, "missing", model.AuctionUpdate{ItemName: &name})
		require.True(t, errors.Is(err, biddingerrors.ErrAuctionNotFound))
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		_, err := s.CreateAuction(ctx, newAuction("a1", "seller1", 50))
		require.NoError(t, err)
		_, err = prepend(ctx, s, "a1", newBid("userA", 100))
		require.NoError(t, err)

		require.NoError(t, s.DeleteAuction(ctx, "a1"))
		_, err = s.FindAuction(ctx, "a1")
		require.True(t, errors.Is(err, biddingerrors.ErrAuctionNotFound))
		require.True(t, errors.Is(s.DeleteAuction(ctx, "a1"), biddingerrors.ErrAuctionNotFound))

		byBidder, err := s.ListByBidder(ctx, "userA")
		require.NoError(t, err)
		require.Empty(t, byBidder)
	})

	t.Run("listings", func(t *testing.T) {
		s := newStore(t)
		now := time.Now().UTC()

		later := newAuction("later", "seller1", 10)
		later.BidStart = now.Add(time.Hour)
		later.BidEnd = now.Add(3 * time.Hour)
		sooner := newAuction("sooner", "seller2", 10)
		closed := newAuction("closed", "seller1", 10)
		closed.BidStart = now.Add(-3 * time.Hour)
		closed.BidEnd = now.Add(-time.Hour)

		for _, a := range []model.Auction{later, sooner, closed} {
			_, err := s.CreateAuction(ctx, a)
			require.NoError(t, err)
		}
		_, err := prepend(ctx, s, "sooner", newBid("userA", 20))
		require.NoError(t, err)
		_, err = prepend(ctx, s, "later", newBid("userA", 20))
		require.NoError(t, err)
		_, err = prepend(ctx, s, "later", newBid("userB", 30))
		require.NoError(t, err)

		all, err := s.ListAuctions(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)

		open, err := s.ListOpenAuctions(ctx, now)
		require.NoError(t, err)
		require.Len(t, open, 2)
		require.Equal(t, "sooner", open[0].ID)
		require.Equal(t, "later", open[1].ID)

		selling, err := s.ListBySeller(ctx, "seller1")
		require.NoError(t, err)
		require.Len(t, selling, 2)
		require.ElementsMatch(t, []string{"later", "closed"}, []string{selling[0].ID, selling[1].ID})

		bidding, err := s.ListByBidder(ctx, "userA")
		require.NoError(t, err)
		require.Len(t, bidding, 2)

		bidding, err = s.ListByBidder(ctx, "nobody")
		require.NoError(t, err)
		require.Empty(t, bidding)
	})

	t.Run("create_validation", func(t *testing.T) {
		s := newStore(t)
		_, err := s.CreateAuction(ctx, newAuction("", "seller1", 50))
		require.True(t, errors.Is(err, biddingerrors.ErrInvalidAuction))

		_, err = s.CreateAuction(ctx, newAuction("a1", "seller1", 50))
		require.NoError(t, err)
		_, err = s.CreateAuction(ctx, newAuction("a1", "seller1", 50))
		require.True(t, errors.Is(err, biddingerrors.ErrInvalidAuction), "got: %v", err)
	})
}

func TestMemoryRepo_Contract(t *testing.T) {
	t.Parallel()

	storeContract(t, func(t *testing.T) AuctionStore { return NewMemoryRepo() })
}

func TestMemoryRepo_CanceledContext(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepo()
	_, err := repo.CreateAuction(context.Background(), newAuction("a1", "seller1", 50))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = prepend(ctx, repo, "a1", newBid("userA", 100))
	require.True(t, errors.Is(err, biddingerrors.ErrStoreUnavailable), "got: %v", err)
	require.False(t, errors.Is(err, biddingerrors.ErrOutBid))

	got, err := repo.FindAuction(context.Background(), "a1")
	require.NoError(t, err)
	require.Empty(t, got.Bids)
}

func TestMemoryRepo_ReturnedAuctionIsACopy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewMemoryRepo()
	_, err := repo.CreateAuction(ctx, newAuction("a1", "seller1", 50))
	require.NoError(t, err)

	got, err := prepend(ctx, repo, "a1", newBid("userA", 100))
	require.NoError(t, err)
	got.Bids[0].Amount = 1

	stored, err := repo.FindAuction(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, 100.0, stored.Bids[0].Amount)
}
