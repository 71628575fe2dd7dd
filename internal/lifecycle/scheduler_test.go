package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"property-auction/internal/biddingerrors"
	model "property-auction/internal/models"
	"property-auction/internal/notification"
	"property-auction/internal/repository"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []model.Notification
}

func (r *recordingNotifier) Enqueue(_ context.Context, n model.Notification) (model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.ID = int64(len(r.sent) + 1)
	r.sent = append(r.sent, n)
	return n, nil
}

func (r *recordingNotifier) Publish(n model.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) byKind(kind model.NotificationKind) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var recipients []int64
	for _, n := range r.sent {
		if n.Kind == kind {
			recipients = append(recipients, n.RecipientUserID)
		}
	}
	return recipients
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

// flakyInbox fails the first write addressed to failFor
type flakyInbox struct {
	*repository.MemoryRepo
	failFor int64

	mu     sync.Mutex
	failed bool
}

func (f *flakyInbox) InsertNotification(ctx context.Context, n model.Notification) (int64, error) {
	f.mu.Lock()
	fail := n.RecipientUserID == f.failFor && !f.failed
	if fail {
		f.failed = true
	}
	f.mu.Unlock()

	if fail {
		return 0, errors.New("database is locked")
	}
	return f.MemoryRepo.InsertNotification(ctx, n)
}

func createAuction(t *testing.T, repo *repository.MemoryRepo, propertyID int64) {
	t.Helper()
	_, err := repo.CreateAuction(context.Background(), model.Auction{
		PropertyID:       propertyID,
		StartTime:        t0,
		EndTime:          t0.Add(time.Hour),
		MinimumBid:       decimal.NewFromInt(1000),
		MinimumIncrement: decimal.NewFromInt(50),
		Currency:         "USD",
	})
	require.NoError(t, err)
}

// commitChain commits the bids in order, each one outbidding the last
func commitChain(t *testing.T, repo *repository.MemoryRepo, propertyID int64, bids ...[2]int64) model.Bid {
	t.Helper()
	var (
		prior *int64
		last  model.Bid
	)
	for i, b := range bids {
		committed, err := repo.CommitBid(context.Background(), model.Bid{
			PropertyID:  propertyID,
			BidderID:    b[0],
			Amount:      decimal.NewFromInt(b[1]),
			SubmittedAt: t0.Add(time.Duration(i+1) * time.Minute),
		}, prior)
		require.NoError(t, err)
		id := committed.ID
		prior = &id
		last = committed
	}
	return last
}

func TestScheduler_SweepLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := repository.NewMemoryRepo()
	notifier := &recordingNotifier{}
	scheduler := NewScheduler(repo, repo, notifier, time.Second)
	createAuction(t, repo, 1)

	result, err := scheduler.Sweep(ctx, t0.Add(-time.Second))
	require.NoError(t, err)
	require.Equal(t, SweepResult{}, result)

	result, err = scheduler.Sweep(ctx, t0)
	require.NoError(t, err)
	require.Equal(t, SweepResult{Activated: 1}, result)

	auction, err := repo.GetAuction(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, model.StateActive, auction.State)

	// bidder 1 bids twice, bidder 3 once, bidder 2 wins
	winning := commitChain(t, repo, 1, [2]int64{1, 1000}, [2]int64{3, 1050}, [2]int64{1, 1100}, [2]int64{2, 1200})

	result, err = scheduler.Sweep(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, SweepResult{Closed: 1, Settled: 1}, result)

	auction, err = repo.GetAuction(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, model.StateClosed, auction.State)
	require.True(t, auction.Settled)

	require.Equal(t, []int64{2}, notifier.byKind(model.KindAuctionWon))
	require.ElementsMatch(t, []int64{1, 3}, notifier.byKind(model.KindAuctionLost))

	sales := repo.Sales()
	require.Len(t, sales, 1)
	require.Equal(t, winning.ID, sales[0].WinningBidID)
	require.Equal(t, int64(2), sales[0].BuyerID)
	require.Equal(t, "1200", sales[0].Amount.String())

	// a second close is a no-op
	sent := notifier.count()
	closed, err := scheduler.CloseAuction(ctx, 1, t0.Add(2*time.Hour))
	require.NoError(t, err)
	require.False(t, closed)

	result, err = scheduler.Sweep(ctx, t0.Add(2*time.Hour))
	require.NoError(t, err)
	require.Equal(t, SweepResult{}, result)
	require.Equal(t, sent, notifier.count())
	require.Len(t, repo.Sales(), 1)
}

func TestScheduler_CloseWithoutBids(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := repository.NewMemoryRepo()
	notifier := &recordingNotifier{}
	scheduler := NewScheduler(repo, repo, notifier, time.Second)
	createAuction(t, repo, 1)

	// a scheduled auction whose whole window passed between sweeps closes directly
	result, err := scheduler.Sweep(ctx, t0.Add(2*time.Hour))
	require.NoError(t, err)
	require.Equal(t, SweepResult{Closed: 1}, result)

	require.Zero(t, notifier.count())
	require.Empty(t, repo.Sales())

	due, err := repo.ListDue(ctx, t0.Add(3*time.Hour))
	require.NoError(t, err)
	require.Empty(t, due)
}

func TestScheduler_CloseAuction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		propertyID int64
		now        time.Time
		wantClosed bool
		wantErr    error
	}{
		{name: "still_open", propertyID: 1, now: t0.Add(30 * time.Minute), wantErr: biddingerrors.ErrAuctionOpen},
		{name: "window_ended", propertyID: 1, now: t0.Add(time.Hour), wantClosed: true},
		{name: "unknown_auction", propertyID: 9, now: t0.Add(time.Hour), wantErr: biddingerrors.ErrAuctionNotFound},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			repo := repository.NewMemoryRepo()
			notifier := &recordingNotifier{}
			scheduler := NewScheduler(repo, repo, notifier, time.Second)
			createAuction(t, repo, 1)
			commitChain(t, repo, 1, [2]int64{1, 1000}, [2]int64{2, 1100})

			closed, err := scheduler.CloseAuction(context.Background(), tc.propertyID, tc.now)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				require.False(t, closed)
				require.Zero(t, notifier.count())
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantClosed, closed)
			require.Equal(t, []int64{2}, notifier.byKind(model.KindAuctionWon))
			require.Equal(t, []int64{1}, notifier.byKind(model.KindAuctionLost))
		})
	}
}

func TestScheduler_ConcurrentCloseIsExactlyOnce(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	repo := repository.NewMemoryRepo()
	sales := repository.NewMockSaleRecorder(ctrl)
	notifier := &recordingNotifier{}
	scheduler := NewScheduler(repo, sales, notifier, time.Second)
	createAuction(t, repo, 1)
	commitChain(t, repo, 1, [2]int64{1, 1000}, [2]int64{2, 1100})

	// a slow recorder widens the window in which other closers could settle again
	sales.EXPECT().RecordSale(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, model.Sale) error {
			time.Sleep(20 * time.Millisecond)
			return nil
		}).
		Times(1)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		closes  int
		settled int
	)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			closed, err := scheduler.CloseAuction(ctx, 1, t0.Add(time.Hour))
			require.NoError(t, err)
			if closed {
				mu.Lock()
				closes++
				mu.Unlock()
			}
		}()
		go func() {
			defer wg.Done()
			result, err := scheduler.Sweep(ctx, t0.Add(time.Hour))
			require.NoError(t, err)
			mu.Lock()
			closes += result.Closed
			settled += result.Settled
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Equal(t, 1, closes)
	require.LessOrEqual(t, settled, 1)
	require.Len(t, notifier.byKind(model.KindAuctionWon), 1)
	require.Len(t, notifier.byKind(model.KindAuctionLost), 1)

	auction, err := repo.GetAuction(ctx, 1)
	require.NoError(t, err)
	require.True(t, auction.Settled)
}

func TestScheduler_ManualCloseOfClosedAuctionRecordsNothing(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	repo := repository.NewMemoryRepo()
	sales := repository.NewMockSaleRecorder(ctrl)
	scheduler := NewScheduler(repo, sales, &recordingNotifier{}, time.Second)
	createAuction(t, repo, 1)
	commitChain(t, repo, 1, [2]int64{1, 1000})

	// closed but not yet settled
	_, err := repo.CloseAuction(ctx, 1)
	require.NoError(t, err)

	closed, err := scheduler.CloseAuction(ctx, 1, t0.Add(time.Hour))
	require.NoError(t, err)
	require.False(t, closed)

	sales.EXPECT().RecordSale(gomock.Any(), gomock.Any()).Return(nil).Times(1)
	result, err := scheduler.Sweep(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, SweepResult{Settled: 1}, result)
}

func TestScheduler_OutcomeNotificationsAreStoredBeforeCloseReturns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := repository.NewMemoryRepo()
	inbox := &flakyInbox{MemoryRepo: repo, failFor: 1}
	dispatcher := notification.NewDispatcher(inbox, notification.Options{Workers: 1, MaxAttempts: 3})
	t.Cleanup(dispatcher.Close)

	scheduler := NewScheduler(repo, repo, dispatcher, time.Second)
	createAuction(t, repo, 1)
	commitChain(t, repo, 1, [2]int64{1, 1000}, [2]int64{3, 1050}, [2]int64{2, 1100})

	closed, err := scheduler.CloseAuction(ctx, 1, t0.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, closed)

	// stored synchronously despite the failed write for bidder 1
	won, err := repo.PendingFor(ctx, 2)
	require.NoError(t, err)
	require.Len(t, won, 1)
	require.Equal(t, model.KindAuctionWon, won[0].Kind)

	lost, err := repo.PendingFor(ctx, 3)
	require.NoError(t, err)
	require.Len(t, lost, 1)
	require.Equal(t, model.KindAuctionLost, lost[0].Kind)

	// the failed one is retried in the background
	dispatcher.Flush()
	retried, err := repo.PendingFor(ctx, 1)
	require.NoError(t, err)
	require.Len(t, retried, 1)
	require.Equal(t, model.KindAuctionLost, retried[0].Kind)
	require.Equal(t, int64(1), retried[0].Payload.PropertyID)
}

func TestScheduler_SettlementRetry(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	repo := repository.NewMemoryRepo()
	sales := repository.NewMockSaleRecorder(ctrl)
	notifier := &recordingNotifier{}
	scheduler := NewScheduler(repo, sales, notifier, time.Second)
	createAuction(t, repo, 1)
	winning := commitChain(t, repo, 1, [2]int64{1, 1000}, [2]int64{2, 1100})

	gomock.InOrder(
		sales.EXPECT().RecordSale(gomock.Any(), gomock.Any()).Return(errors.New("ledger service unavailable")),
		sales.EXPECT().RecordSale(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, sale model.Sale) error {
			require.Equal(t, winning.ID, sale.WinningBidID)
			require.Equal(t, int64(2), sale.BuyerID)
			require.True(t, sale.Amount.Equal(decimal.NewFromInt(1100)))
			return nil
		}),
	)

	result, err := scheduler.Sweep(ctx, t0.Add(time.Hour))
	require.Error(t, err)
	require.Equal(t, SweepResult{Closed: 1, Failed: 1}, result)

	auction, err := repo.GetAuction(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, model.StateClosed, auction.State)
	require.False(t, auction.Settled)
	sent := notifier.count()
	require.Equal(t, 2, sent)

	result, err = scheduler.Sweep(ctx, t0.Add(time.Hour+time.Second))
	require.NoError(t, err)
	require.Equal(t, SweepResult{Settled: 1}, result)
	require.Equal(t, sent, notifier.count())

	result, err = scheduler.Sweep(ctx, t0.Add(time.Hour+2*time.Second))
	require.NoError(t, err)
	require.Equal(t, SweepResult{}, result)
}

func TestScheduler_ListDueFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := repository.NewMockAuctionDB(ctrl)
	repo.EXPECT().ListDue(gomock.Any(), t0).Return(nil, errors.New("connection reset"))

	scheduler := NewScheduler(repo, repository.NewMockSaleRecorder(ctrl), nil, time.Second)
	_, err := scheduler.Sweep(context.Background(), t0)
	require.Error(t, err)
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	repo := repository.NewMemoryRepo()
	scheduler := NewScheduler(repo, repo, nil, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- scheduler.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
