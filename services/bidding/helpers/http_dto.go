package helpers

import (
	"time"

	model "property-auction/internal/models"

	"github.com/shopspring/decimal"
)

// Request/Response DTOs
type CreateAuctionRequest struct {
	PropertyID       int64            `json:"property_id" binding:"required,gt=0"`
	StartTime        time.Time        `json:"start_time" binding:"required"`
	EndTime          time.Time        `json:"end_time" binding:"required"`
	MinimumBid       decimal.Decimal  `json:"minimum_bid"`
	MinimumIncrement *decimal.Decimal `json:"minimum_increment,omitempty"`
	Currency         string           `json:"currency,omitempty" binding:"omitempty,len=3"`
}

type PlaceBidRequest struct {
	BidderID int64           `json:"bidder_id" binding:"required,gt=0"`
	Amount   decimal.Decimal `json:"amount"`
}

type BidResponse struct {
	BidID       int64           `json:"bid_id"`
	PropertyID  int64           `json:"property_id"`
	BidderID    int64           `json:"bidder_id"`
	Amount      decimal.Decimal `json:"amount"`
	SubmittedAt string          `json:"submitted_at"`
}

type AuctionResponse struct {
	PropertyID          int64              `json:"property_id"`
	State               model.AuctionState `json:"state"`
	StartTime           string             `json:"start_time"`
	EndTime             string             `json:"end_time"`
	MinimumBid          decimal.Decimal    `json:"minimum_bid"`
	MinimumIncrement    decimal.Decimal    `json:"minimum_increment"`
	Currency            string             `json:"currency"`
	CurrentHighestBidID *int64             `json:"current_highest_bid_id,omitempty"`
	CurrentHighest      *decimal.Decimal   `json:"current_highest_amount,omitempty"`
}

type CloseAuctionResponse struct {
	Closed   bool                  `json:"closed"`
	Snapshot model.AuctionSnapshot `json:"auction"`
}

// ToBidResponse converts a ledger entry to its wire form
func ToBidResponse(bid model.Bid) BidResponse {
	return BidResponse{
		BidID:       bid.ID,
		PropertyID:  bid.PropertyID,
		BidderID:    bid.BidderID,
		Amount:      bid.Amount,
		SubmittedAt: bid.SubmittedAt.UTC().Format(time.RFC3339Nano),
	}
}

// ToAuctionResponse converts an auction to its wire form with the state derived at now
func ToAuctionResponse(a model.Auction, now time.Time) AuctionResponse {
	resp := AuctionResponse{
		PropertyID:       a.PropertyID,
		State:            a.EffectiveState(now),
		StartTime:        a.StartTime.UTC().Format(time.RFC3339),
		EndTime:          a.EndTime.UTC().Format(time.RFC3339),
		MinimumBid:       a.MinimumBid,
		MinimumIncrement: a.MinimumIncrement,
		Currency:         a.Currency,
	}
	if a.HasBids() {
		amount := a.CurrentHighestBid
		resp.CurrentHighestBidID = a.CurrentHighestBidID
		resp.CurrentHighest = &amount
	}
	return resp
}
