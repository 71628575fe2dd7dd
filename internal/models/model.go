package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionState is the lifecycle position of an auction
type AuctionState string

const (
	StateScheduled AuctionState = "scheduled"
	StateActive    AuctionState = "active"
	StateClosed    AuctionState = "closed"
)

// NotificationKind identifies the event a notification reports
type NotificationKind string

const (
	KindOutbid      NotificationKind = "outbid"
	KindAuctionWon  NotificationKind = "auction_won"
	KindAuctionLost NotificationKind = "auction_lost"
)

// Auction is the bidding window attached to one property listing
type Auction struct {
	PropertyID          int64           `json:"property_id"`
	StartTime           time.Time       `json:"start_time"`
	EndTime             time.Time       `json:"end_time"`
	MinimumBid          decimal.Decimal `json:"minimum_bid"`
	MinimumIncrement    decimal.Decimal `json:"minimum_increment"`
	Currency            string          `json:"currency"`
	CurrentHighestBidID *int64          `json:"current_highest_bid_id,omitempty"`
	CurrentHighestBid   decimal.Decimal `json:"current_highest_amount"`
	State               AuctionState    `json:"state"`
	Settled             bool            `json:"settled"`
	CreatedAt           time.Time       `json:"created_at"`
}

// HasBids reports whether a leading bid exists
func (a Auction) HasBids() bool {
	return a.CurrentHighestBidID != nil
}

// EffectiveState derives the state from the window. A stored Closed state is terminal.
func (a Auction) EffectiveState(now time.Time) AuctionState {
	switch {
	case a.State == StateClosed:
		return StateClosed
	case now.Before(a.StartTime):
		return StateScheduled
	case now.Before(a.EndTime):
		return StateActive
	default:
		return StateClosed
	}
}

// Floor is the smallest amount the next bid may carry
func (a Auction) Floor() decimal.Decimal {
	if !a.HasBids() {
		return a.MinimumBid
	}
	return a.CurrentHighestBid.Add(a.MinimumIncrement)
}

// Bid is an immutable accepted offer recorded in the ledger
type Bid struct {
	ID          int64           `json:"bid_id"`
	PropertyID  int64           `json:"property_id"`
	BidderID    int64           `json:"bidder_id"`
	Amount      decimal.Decimal `json:"amount"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

// NotificationPayload is the event body delivered to the recipient
type NotificationPayload struct {
	PropertyID int64           `json:"property_id"`
	BidID      int64           `json:"bid_id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
}

// Notification is a durable record of an outbid, win or loss event
type Notification struct {
	ID              int64               `json:"id"`
	RecipientUserID int64               `json:"recipient_user_id"`
	Kind            NotificationKind    `json:"kind"`
	Payload         NotificationPayload `json:"payload"`
	CreatedAt       time.Time           `json:"created_at"`
	Delivered       bool                `json:"delivered"`
}

// Sale is handed to the transaction recorder when an auction closes with a winner
type Sale struct {
	PropertyID   int64           `json:"property_id"`
	WinningBidID int64           `json:"winning_bid_id"`
	Amount       decimal.Decimal `json:"amount"`
	BuyerID      int64           `json:"buyer_id"`
	RecordedAt   time.Time       `json:"recorded_at"`
}

// AuctionSnapshot is the read-only view served to polling clients
type AuctionSnapshot struct {
	PropertyID          int64            `json:"property_id"`
	State               AuctionState     `json:"state"`
	Currency            string           `json:"currency"`
	StartTime           time.Time        `json:"start_time"`
	EndTime             time.Time        `json:"end_time"`
	MinimumBid          decimal.Decimal  `json:"minimum_bid"`
	MinimumIncrement    decimal.Decimal  `json:"minimum_increment"`
	CurrentHighestBidID *int64           `json:"current_highest_bid_id,omitempty"`
	CurrentHighest      *decimal.Decimal `json:"current_highest_amount,omitempty"`
	HighestBidderID     *int64           `json:"highest_bidder_id,omitempty"`
	NextMinimumBid      decimal.Decimal  `json:"next_minimum_bid"`
	TimeRemaining       time.Duration    `json:"time_remaining_ns"`
	BidCount            int              `json:"bid_count"`
}
