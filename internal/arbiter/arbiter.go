// Package arbiter decides whether a proposed bid becomes the new leader of an auction.
//
// The decision is a pure function of the current leading amount and the proposed amount.
// Condition carries the same predicate in a form a store can evaluate at the moment of
// its write, so that the decision and the mutation happen atomically.
package arbiter

import (
	"fmt"
	"time"

	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/models"
)

// Decision is the outcome of evaluating a proposed bid
type Decision int

const (
	Reject Decision = iota
	Accept
)

func (d Decision) String() string {
	if d == Accept {
		return "accept"
	}
	return "reject"
}

// Evaluate accepts the proposed amount when no bid exists yet or when it is strictly
// greater than the current leading amount. Ties lose.
func Evaluate(current *float64, proposed float64) Decision {
	if current == nil || proposed > *current {
		return Accept
	}
	return Reject
}

// Condition is the predicate a store must hold true, atomically, when it prepends a bid
type Condition struct {
	Amount float64
	At     time.Time

	// EnforceStartingBid additionally requires Amount > StartingBid.
	EnforceStartingBid bool
	// EnforceBidWindow additionally requires BidStart <= At < BidEnd.
	EnforceBidWindow bool
}

// NewCondition builds the condition for a bid of amount placed at the given time
func NewCondition(amount float64, at time.Time, opts ...Option) Condition {
	c := Condition{Amount: amount, At: at}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Option configures the optional conjuncts of a Condition
type Option func(*Condition)

// WithStartingBid makes the starting bid a hard floor
func WithStartingBid(enforce bool) Option {
	return func(c *Condition) { c.EnforceStartingBid = enforce }
}

// WithBidWindow rejects bids placed outside of the auction's bidding window
func WithBidWindow(enforce bool) Option {
	return func(c *Condition) { c.EnforceBidWindow = enforce }
}

// Check evaluates the condition against an auction and reports why it does not hold.
// Stores call it under their write lock, or after a conditional write matched nothing
// to classify the rejection.
func (c Condition) Check(a models.Auction) error {
	if c.EnforceBidWindow && !InWindow(a, c.At) {
		return fmt.Errorf("bid at %s: %w", c.At.Format(time.RFC3339), biddingerrors.ErrBidWindowClosed)
	}
	if c.EnforceStartingBid && c.Amount <= a.StartingBid {
		return fmt.Errorf("bid %.2f, starting bid %.2f: %w", c.Amount, a.StartingBid, biddingerrors.ErrBelowStartingBid)
	}
	if Evaluate(a.LeadingAmount(), c.Amount) == Reject {
		return fmt.Errorf("bid %.2f, leading bid %.2f: %w", c.Amount, a.Bids[0].Amount, biddingerrors.ErrOutBid)
	}
	return nil
}

// InWindow reports whether t falls inside [BidStart, BidEnd).
// A zero BidEnd is a window that has already ended, as in the SQL store.
func InWindow(a models.Auction, t time.Time) bool {
	return !t.Before(a.BidStart) && t.Before(a.BidEnd)
}
