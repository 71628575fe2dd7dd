package bidding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"property-auction/internal/biddingerrors"
	model "property-auction/internal/models"
	"property-auction/internal/repository"
	"property-auction/utils"

	"github.com/shopspring/decimal"
)

// Notifier accepts notifications for durable, asynchronous recording
type Notifier interface {
	Publish(n model.Notification)
}

// Options holds the bidding policy
type Options struct {
	// MaxRetries bounds how often a bid is re-validated after losing a compare-and-swap race.
	MaxRetries       int
	RetryDelay       time.Duration
	DefaultIncrement decimal.Decimal
	Currency         string
}

// CreateAuctionParams describes a new auction window. A nil MinimumIncrement or empty
// Currency falls back to the configured policy.
type CreateAuctionParams struct {
	PropertyID       int64
	StartTime        time.Time
	EndTime          time.Time
	MinimumBid       decimal.Decimal
	MinimumIncrement *decimal.Decimal
	Currency         string
}

// BiddingService is the bid acceptance engine
type BiddingService struct {
	repo      repository.AuctionDB
	directory repository.Directory
	notifier  Notifier
	opts      Options
	sleep     func(time.Duration)
}

// NewBiddingService creates a new BiddingService instance
func NewBiddingService(repo repository.AuctionDB, directory repository.Directory, notifier Notifier, opts Options) *BiddingService {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if !opts.DefaultIncrement.IsPositive() {
		opts.DefaultIncrement = decimal.NewFromInt(1)
	}
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	return &BiddingService{
		repo:      repo,
		directory: directory,
		notifier:  notifier,
		opts:      opts,
		sleep:     time.Sleep,
	}
}

// CreateAuction opens a bidding window for a property
func (s *BiddingService) CreateAuction(ctx context.Context, params CreateAuctionParams, now time.Time) (model.Auction, error) {
	if err := s.requireProperty(ctx, params.PropertyID); err != nil {
		return model.Auction{}, err
	}
	if !params.EndTime.After(params.StartTime) {
		return model.Auction{}, fmt.Errorf("service: %w - end time must be after start time", biddingerrors.ErrInvalidWindow)
	}
	if params.StartTime.Before(now) {
		return model.Auction{}, fmt.Errorf("service: %w - window starts in the past", biddingerrors.ErrInvalidWindow)
	}
	if !params.MinimumBid.IsPositive() {
		return model.Auction{}, fmt.Errorf("service: %w - non-positive minimum bid", biddingerrors.ErrInvalidBid)
	}

	increment := s.opts.DefaultIncrement
	if params.MinimumIncrement != nil {
		increment = *params.MinimumIncrement
	}
	if !increment.IsPositive() {
		return model.Auction{}, fmt.Errorf("service: %w - non-positive minimum increment", biddingerrors.ErrInvalidBid)
	}
	currency := params.Currency
	if currency == "" {
		currency = s.opts.Currency
	}

	auction, err := s.repo.CreateAuction(ctx, model.Auction{
		PropertyID:       params.PropertyID,
		StartTime:        params.StartTime.UTC(),
		EndTime:          params.EndTime.UTC(),
		MinimumBid:       params.MinimumBid,
		MinimumIncrement: increment,
		Currency:         currency,
		State:            model.StateScheduled,
		CreatedAt:        now.UTC(),
	})
	if err != nil {
		return model.Auction{}, fmt.Errorf("service: failed to create auction for property %d: %w", params.PropertyID, err)
	}

	utils.Info("auction created", map[string]any{
		"property_id": auction.PropertyID,
		"start_time":  auction.StartTime,
		"end_time":    auction.EndTime,
		"minimum_bid": auction.MinimumBid.String(),
		"increment":   auction.MinimumIncrement.String(),
	})
	return auction, nil
}

// PlaceBid validates a bid against the auction and commits it as the new highest bid.
// Rule violations come back as *biddingerrors.BidRejection; a lost race that survives
// every retry comes back as biddingerrors.ErrConflict.
func (s *BiddingService) PlaceBid(ctx context.Context, propertyID, bidderID int64, amount decimal.Decimal, now time.Time) (model.Bid, error) {
	// the outcome must not depend on whether the caller is still waiting
	ctx = context.WithoutCancel(ctx)

	if !amount.IsPositive() {
		return model.Bid{}, fmt.Errorf("service: %w - non-positive bid amount", biddingerrors.ErrInvalidBid)
	}
	if err := s.requireProperty(ctx, propertyID); err != nil {
		return model.Bid{}, err
	}
	if err := s.requireUser(ctx, bidderID); err != nil {
		return model.Bid{}, err
	}

	for attempt := 0; ; attempt++ {
		auction, err := s.repo.GetAuction(ctx, propertyID)
		if err != nil {
			return model.Bid{}, fmt.Errorf("service: failed to load auction %d: %w", propertyID, err)
		}

		prior, err := s.validateBid(ctx, auction, bidderID, amount, now)
		if err != nil {
			return model.Bid{}, err
		}

		bid, err := s.repo.CommitBid(ctx, model.Bid{
			PropertyID:  propertyID,
			BidderID:    bidderID,
			Amount:      amount,
			SubmittedAt: now.UTC(),
		}, auction.CurrentHighestBidID)
		if err == nil {
			s.notifyOutbid(prior, bid)
			utils.Info("bid accepted", map[string]any{
				"bid_id":      bid.ID,
				"property_id": propertyID,
				"bidder_id":   bidderID,
				"amount":      amount.String(),
				"attempt":     attempt + 1,
			})
			return bid, nil
		}

		switch {
		case errors.Is(err, biddingerrors.ErrTooLate):
			return model.Bid{}, biddingerrors.Reject(biddingerrors.ErrTooLate, auction.Floor(), currentHighest(auction))
		case !errors.Is(err, biddingerrors.ErrConflict):
			return model.Bid{}, fmt.Errorf("service: failed to commit bid for property %d by user %d: %w", propertyID, bidderID, err)
		case attempt >= s.opts.MaxRetries:
			utils.Warn("bid retries exhausted", map[string]any{
				"property_id": propertyID,
				"bidder_id":   bidderID,
				"amount":      amount.String(),
				"attempts":    attempt + 1,
			})
			return model.Bid{}, fmt.Errorf("service: bid for property %d by user %d after %d attempts: %w", propertyID, bidderID, attempt+1, biddingerrors.ErrConflict)
		}

		utils.Debug("bid lost compare-and-swap, retrying", map[string]any{
			"property_id": propertyID,
			"bidder_id":   bidderID,
			"attempt":     attempt + 1,
		})
		if s.opts.RetryDelay > 0 {
			s.sleep(s.opts.RetryDelay << attempt)
		}
	}
}

// validateBid applies the window and value rules and returns the bid currently leading, if any
func (s *BiddingService) validateBid(ctx context.Context, auction model.Auction, bidderID int64, amount decimal.Decimal, now time.Time) (*model.Bid, error) {
	floor := auction.Floor()
	current := currentHighest(auction)

	switch {
	case auction.State == model.StateClosed:
		return nil, biddingerrors.Reject(biddingerrors.ErrTooLate, floor, current)
	case now.Before(auction.StartTime):
		return nil, biddingerrors.Reject(biddingerrors.ErrTooEarly, floor, current)
	case !now.Before(auction.EndTime):
		return nil, biddingerrors.Reject(biddingerrors.ErrTooLate, floor, current)
	}

	if !auction.HasBids() {
		if amount.LessThan(floor) {
			return nil, biddingerrors.Reject(biddingerrors.ErrBelowMinimum, floor, nil)
		}
		return nil, nil
	}

	if amount.LessThan(floor) {
		return nil, biddingerrors.Reject(biddingerrors.ErrBelowIncrement, floor, current)
	}

	prior, err := s.repo.GetBid(ctx, *auction.CurrentHighestBidID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to load highest bid %d: %w", *auction.CurrentHighestBidID, err)
	}
	if prior.BidderID == bidderID {
		return nil, biddingerrors.Reject(biddingerrors.ErrSelfOutbid, floor, current)
	}
	return &prior, nil
}

func (s *BiddingService) notifyOutbid(prior *model.Bid, bid model.Bid) {
	if prior == nil || prior.BidderID == bid.BidderID || s.notifier == nil {
		return
	}
	s.notifier.Publish(model.Notification{
		RecipientUserID: prior.BidderID,
		Kind:            model.KindOutbid,
		Payload: model.NotificationPayload{
			PropertyID: bid.PropertyID,
			BidID:      bid.ID,
			Amount:     bid.Amount,
		},
		CreatedAt: bid.SubmittedAt,
	})
}

// GetAuctionState returns a read-only snapshot of an auction at now
func (s *BiddingService) GetAuctionState(ctx context.Context, propertyID int64, now time.Time) (model.AuctionSnapshot, error) {
	auction, err := s.repo.GetAuction(ctx, propertyID)
	if err != nil {
		return model.AuctionSnapshot{}, fmt.Errorf("service: failed to load auction %d: %w", propertyID, err)
	}

	history, err := s.repo.History(ctx, propertyID)
	if err != nil {
		return model.AuctionSnapshot{}, fmt.Errorf("service: failed to load history for auction %d: %w", propertyID, err)
	}

	snapshot := model.AuctionSnapshot{
		PropertyID:       auction.PropertyID,
		State:            auction.EffectiveState(now),
		Currency:         auction.Currency,
		StartTime:        auction.StartTime,
		EndTime:          auction.EndTime,
		MinimumBid:       auction.MinimumBid,
		MinimumIncrement: auction.MinimumIncrement,
		NextMinimumBid:   auction.Floor(),
		BidCount:         len(history),
	}
	if snapshot.State != model.StateClosed {
		snapshot.TimeRemaining = auction.EndTime.Sub(now)
	}

	if auction.HasBids() {
		leading, err := s.repo.GetBid(ctx, *auction.CurrentHighestBidID)
		if err != nil {
			return model.AuctionSnapshot{}, fmt.Errorf("service: failed to load highest bid %d: %w", *auction.CurrentHighestBidID, err)
		}
		snapshot.CurrentHighestBidID = auction.CurrentHighestBidID
		snapshot.CurrentHighest = &leading.Amount
		snapshot.HighestBidderID = &leading.BidderID
	}
	return snapshot, nil
}

// GetBidHistory returns the full ledger of accepted bids for a property
func (s *BiddingService) GetBidHistory(ctx context.Context, propertyID int64) ([]model.Bid, error) {
	bids, err := s.repo.History(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for property %d: %w", propertyID, err)
	}
	return bids, nil
}

// GetWinningBid returns the highest bid recorded once the auction has closed
func (s *BiddingService) GetWinningBid(ctx context.Context, propertyID int64, now time.Time) (model.Bid, error) {
	auction, err := s.repo.GetAuction(ctx, propertyID)
	if err != nil {
		return model.Bid{}, fmt.Errorf("service: failed to load auction %d: %w", propertyID, err)
	}
	if auction.EffectiveState(now) != model.StateClosed {
		return model.Bid{}, fmt.Errorf("service: winner of property %d: %w", propertyID, biddingerrors.ErrAuctionOpen)
	}
	if !auction.HasBids() {
		return model.Bid{}, fmt.Errorf("service: winner of property %d: %w", propertyID, biddingerrors.ErrBidNotFound)
	}

	winning, err := s.repo.GetBid(ctx, *auction.CurrentHighestBidID)
	if err != nil {
		return model.Bid{}, fmt.Errorf("service: failed to get winning bid for property %d: %w", propertyID, err)
	}
	return winning, nil
}

// GetAuctionsByBidder returns all auctions a user has placed accepted bids on
func (s *BiddingService) GetAuctionsByBidder(ctx context.Context, userID int64) ([]model.Auction, error) {
	auctions, err := s.repo.AuctionsByBidder(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get auctions for user %d: %w", userID, err)
	}
	return auctions, nil
}

func (s *BiddingService) requireProperty(ctx context.Context, propertyID int64) error {
	ok, err := s.directory.PropertyExists(ctx, propertyID)
	if err != nil {
		return fmt.Errorf("service: failed to look up property %d: %w", propertyID, err)
	}
	if !ok {
		return fmt.Errorf("service: property %d: %w", propertyID, biddingerrors.ErrPropertyNotFound)
	}
	return nil
}

func (s *BiddingService) requireUser(ctx context.Context, userID int64) error {
	ok, err := s.directory.UserExists(ctx, userID)
	if err != nil {
		return fmt.Errorf("service: failed to look up user %d: %w", userID, err)
	}
	if !ok {
		return fmt.Errorf("service: user %d: %w", userID, biddingerrors.ErrUserNotFound)
	}
	return nil
}

func currentHighest(a model.Auction) *decimal.Decimal {
	if !a.HasBids() {
		return nil
	}
	amount := a.CurrentHighestBid
	return &amount
}
