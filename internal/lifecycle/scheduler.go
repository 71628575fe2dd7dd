package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"property-auction/internal/biddingerrors"
	model "property-auction/internal/models"
	"property-auction/internal/repository"
	"property-auction/utils"
)

// Notifier records win/loss notifications. Enqueue stores synchronously; Publish retries in the background.
type Notifier interface {
	Enqueue(ctx context.Context, n model.Notification) (model.Notification, error)
	Publish(n model.Notification)
}

// settleLease bounds how long a crashed settler blocks the next attempt
const settleLease = time.Minute

// SweepResult counts what a single sweep did
type SweepResult struct {
	Activated int
	Closed    int
	Settled   int
	Failed    int
}

// Scheduler drives auctions through Scheduled -> Active -> Closed as time passes.
// Every step is idempotent so a sweep can be interrupted and re-run at any point.
type Scheduler struct {
	repo     repository.AuctionDB
	sales    repository.SaleRecorder
	notifier Notifier
	interval time.Duration
	now      func() time.Time
}

// NewScheduler creates a scheduler sweeping every interval
func NewScheduler(repo repository.AuctionDB, sales repository.SaleRecorder, notifier Notifier, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Scheduler{
		repo:     repo,
		sales:    sales,
		notifier: notifier,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps immediately and then on every tick until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	utils.Info("lifecycle scheduler started", map[string]any{"interval": s.interval.String()})
	for {
		if _, err := s.Sweep(ctx, s.now()); err != nil {
			utils.Error("lifecycle sweep finished with errors", map[string]any{"error": err.Error()})
		}

		select {
		case <-ctx.Done():
			utils.Info("lifecycle scheduler stopped", nil)
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep advances every auction that is due at now. A failure on one auction does not stop the others.
func (s *Scheduler) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult

	due, err := s.repo.ListDue(ctx, now)
	if err != nil {
		return result, fmt.Errorf("lifecycle: list due auctions: %w", err)
	}

	var errs []error
	for _, auction := range due {
		if err := s.advance(ctx, auction, now, &result); err != nil {
			result.Failed++
			errs = append(errs, err)
			utils.Error("lifecycle: failed to advance auction", map[string]any{
				"property_id": auction.PropertyID,
				"state":       auction.State,
				"error":       err.Error(),
			})
		}
	}

	if len(due) > 0 {
		utils.Debug("lifecycle sweep done", map[string]any{
			"due":       len(due),
			"activated": result.Activated,
			"closed":    result.Closed,
			"settled":   result.Settled,
			"failed":    result.Failed,
		})
	}
	return result, errors.Join(errs...)
}

func (s *Scheduler) advance(ctx context.Context, auction model.Auction, now time.Time, result *SweepResult) error {
	switch {
	case auction.State == model.StateClosed:
		settled, err := s.settle(ctx, auction, now)
		if settled {
			result.Settled++
		}
		return err

	case !now.Before(auction.EndTime):
		closed, settled, err := s.close(ctx, auction.PropertyID, now)
		if closed {
			result.Closed++
		}
		if settled {
			result.Settled++
		}
		return err

	case auction.State == model.StateScheduled && !now.Before(auction.StartTime):
		activated, err := s.repo.ActivateAuction(ctx, auction.PropertyID)
		if err != nil {
			return fmt.Errorf("lifecycle: activate auction %d: %w", auction.PropertyID, err)
		}
		if activated {
			result.Activated++
			utils.Info("auction activated", map[string]any{"property_id": auction.PropertyID})
		}
	}
	return nil
}

// CloseAuction closes one auction whose window has ended. It reports false when the
// auction had already been closed, in which case nothing is emitted or recorded again.
func (s *Scheduler) CloseAuction(ctx context.Context, propertyID int64, now time.Time) (bool, error) {
	auction, err := s.repo.GetAuction(ctx, propertyID)
	if err != nil {
		return false, fmt.Errorf("lifecycle: load auction %d: %w", propertyID, err)
	}

	if auction.State == model.StateClosed {
		return false, nil
	}
	if now.Before(auction.EndTime) {
		return false, fmt.Errorf("lifecycle: close auction %d: %w", propertyID, biddingerrors.ErrAuctionOpen)
	}

	closed, _, err := s.close(ctx, propertyID, now)
	return closed, err
}

func (s *Scheduler) close(ctx context.Context, propertyID int64, now time.Time) (closed, settled bool, err error) {
	closed, err = s.repo.CloseAuction(ctx, propertyID)
	if err != nil {
		return false, false, fmt.Errorf("lifecycle: close auction %d: %w", propertyID, err)
	}
	if !closed {
		return false, false, nil
	}

	// the leading pointer is frozen once the state is closed
	final, err := s.repo.GetAuction(ctx, propertyID)
	if err != nil {
		return true, false, fmt.Errorf("lifecycle: reload closed auction %d: %w", propertyID, err)
	}
	if !final.HasBids() {
		utils.Info("auction closed without bids", map[string]any{"property_id": propertyID})
		return true, false, nil
	}

	winning, err := s.repo.GetBid(ctx, *final.CurrentHighestBidID)
	if err != nil {
		return true, false, fmt.Errorf("lifecycle: load winning bid of auction %d: %w", propertyID, err)
	}

	utils.Info("auction closed", map[string]any{
		"property_id":    propertyID,
		"winning_bid_id": winning.ID,
		"winner_id":      winning.BidderID,
		"amount":         winning.Amount.String(),
	})

	if err := s.notifyOutcome(ctx, winning); err != nil {
		utils.Error("lifecycle: failed to notify auction outcome", map[string]any{
			"property_id": propertyID,
			"error":       err.Error(),
		})
	}

	settled, err = s.recordSale(ctx, final, winning, now)
	return true, settled, err
}

func (s *Scheduler) notifyOutcome(ctx context.Context, winning model.Bid) error {
	if s.notifier == nil {
		return nil
	}

	payload := model.NotificationPayload{
		PropertyID: winning.PropertyID,
		BidID:      winning.ID,
		Amount:     winning.Amount,
	}
	s.deliver(ctx, model.Notification{RecipientUserID: winning.BidderID, Kind: model.KindAuctionWon, Payload: payload})

	history, err := s.repo.History(ctx, winning.PropertyID)
	if err != nil {
		return fmt.Errorf("lifecycle: load history of auction %d: %w", winning.PropertyID, err)
	}

	notified := map[int64]bool{winning.BidderID: true}
	for _, bid := range history {
		if notified[bid.BidderID] {
			continue
		}
		notified[bid.BidderID] = true
		s.deliver(ctx, model.Notification{RecipientUserID: bid.BidderID, Kind: model.KindAuctionLost, Payload: payload})
	}
	return nil
}

// deliver stores n before returning and hands it to the background retry path only if that fails
func (s *Scheduler) deliver(ctx context.Context, n model.Notification) {
	if _, err := s.notifier.Enqueue(ctx, n); err != nil {
		utils.Warn("lifecycle: outcome notification not stored, retrying in background", map[string]any{
			"property_id":  n.Payload.PropertyID,
			"recipient_id": n.RecipientUserID,
			"kind":         n.Kind,
			"error":        err.Error(),
		})
		s.notifier.Publish(n)
	}
}

// settle retries the sale hand-off for a closed auction that has a winner but no recorded sale
func (s *Scheduler) settle(ctx context.Context, auction model.Auction, now time.Time) (bool, error) {
	if auction.Settled || !auction.HasBids() {
		return false, nil
	}
	winning, err := s.repo.GetBid(ctx, *auction.CurrentHighestBidID)
	if err != nil {
		return false, fmt.Errorf("lifecycle: load winning bid of auction %d: %w", auction.PropertyID, err)
	}
	return s.recordSale(ctx, auction, winning, now)
}

func (s *Scheduler) recordSale(ctx context.Context, auction model.Auction, winning model.Bid, now time.Time) (bool, error) {
	if auction.Settled {
		return false, nil
	}

	claimed, err := s.repo.ClaimSettlement(ctx, auction.PropertyID, now, settleLease)
	if err != nil {
		return false, fmt.Errorf("lifecycle: claim settlement of auction %d: %w", auction.PropertyID, err)
	}
	if !claimed {
		return false, nil
	}

	err = s.sales.RecordSale(ctx, model.Sale{
		PropertyID:   auction.PropertyID,
		WinningBidID: winning.ID,
		Amount:       winning.Amount,
		BuyerID:      winning.BidderID,
		RecordedAt:   now.UTC(),
	})
	if err != nil {
		if relErr := s.repo.ReleaseSettlement(ctx, auction.PropertyID); relErr != nil {
			err = errors.Join(err, relErr)
		}
		return false, fmt.Errorf("lifecycle: record sale of auction %d: %w", auction.PropertyID, err)
	}
	if err := s.repo.MarkSettled(ctx, auction.PropertyID); err != nil {
		return false, fmt.Errorf("lifecycle: mark auction %d settled: %w", auction.PropertyID, err)
	}

	utils.Info("sale recorded", map[string]any{
		"property_id":    auction.PropertyID,
		"winning_bid_id": winning.ID,
		"buyer_id":       winning.BidderID,
		"amount":         winning.Amount.String(),
	})
	return true, nil
}
