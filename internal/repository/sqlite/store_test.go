package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"property-auction/internal/biddingerrors"
	model "property-auction/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "auction.db")
	store, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func createAuction(t *testing.T, store *Store, propertyID int64) model.Auction {
	t.Helper()
	a, err := store.CreateAuction(context.Background(), model.Auction{
		PropertyID:       propertyID,
		StartTime:        t0,
		EndTime:          t0.Add(time.Hour),
		MinimumBid:       decimal.RequireFromString("1000.00"),
		MinimumIncrement: decimal.RequireFromString("50.00"),
		Currency:         "USD",
		CreatedAt:        t0.Add(-time.Hour),
	})
	require.NoError(t, err)
	return a
}

func bid(propertyID, bidderID int64, amount string, at time.Time) model.Bid {
	return model.Bid{
		PropertyID:  propertyID,
		BidderID:    bidderID,
		Amount:      decimal.RequireFromString(amount),
		SubmittedAt: at,
	}
}

func TestStore_CreateAndGetAuction(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := openTestStore(t)

	created := createAuction(t, store, 1)
	require.Equal(t, model.StateScheduled, created.State)
	require.True(t, created.StartTime.Equal(t0))
	require.True(t, created.EndTime.Equal(t0.Add(time.Hour)))
	require.Equal(t, "1000", created.MinimumBid.String())
	require.False(t, created.HasBids())
	require.False(t, created.Settled)

	_, err := store.CreateAuction(ctx, model.Auction{PropertyID: 1, StartTime: t0, EndTime: t0.Add(time.Hour), Currency: "USD"})
	require.ErrorIs(t, err, biddingerrors.ErrAuctionExists)

	_, err = store.GetAuction(ctx, 2)
	require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
}

func TestStore_CommitBid(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := openTestStore(t)
	createAuction(t, store, 1)

	first, err := store.CommitBid(ctx, bid(1, 10, "1000.00", t0.Add(time.Minute)), nil)
	require.NoError(t, err)
	require.NotZero(t, first.ID)

	tests := []struct {
		name    string
		bid     model.Bid
		prior   *int64
		wantErr error
	}{
		{name: "stale_nil_prior", bid: bid(1, 11, "1100", t0.Add(2*time.Minute)), prior: nil, wantErr: biddingerrors.ErrConflict},
		{name: "wrong_prior", bid: bid(1, 11, "1100", t0.Add(2*time.Minute)), prior: ptr(first.ID + 100), wantErr: biddingerrors.ErrConflict},
		{name: "not_higher", bid: bid(1, 11, "1000", t0.Add(2*time.Minute)), prior: ptr(first.ID), wantErr: biddingerrors.ErrConflict},
		{name: "unknown_auction", bid: bid(9, 11, "1100", t0.Add(2*time.Minute)), prior: nil, wantErr: biddingerrors.ErrAuctionNotFound},
	}
	for _, tc := range tests {
		_, err := store.CommitBid(ctx, tc.bid, tc.prior)
		require.ErrorIs(t, err, tc.wantErr, tc.name)
	}

	// rejected commits leave nothing behind
	history, err := store.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)

	second, err := store.CommitBid(ctx, bid(1, 11, "1100.50", t0.Add(3*time.Minute)), ptr(first.ID))
	require.NoError(t, err)

	auction, err := store.GetAuction(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, second.ID, *auction.CurrentHighestBidID)
	require.Equal(t, "1100.5", auction.CurrentHighestBid.String())
	require.Equal(t, "1150.5", auction.Floor().String())

	closed, err := store.CloseAuction(ctx, 1)
	require.NoError(t, err)
	require.True(t, closed)

	_, err = store.CommitBid(ctx, bid(1, 10, "5000", t0.Add(4*time.Minute)), ptr(second.ID))
	require.ErrorIs(t, err, biddingerrors.ErrTooLate)

	err = store.UpdateHighestBid(ctx, 1, second.ID, decimal.NewFromInt(9000), ptr(second.ID))
	require.ErrorIs(t, err, biddingerrors.ErrTooLate)
}

func TestStore_ConcurrentCommits(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := openTestStore(t)
	createAuction(t, store, 1)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			_, err := store.CommitBid(ctx, bid(1, int64(100+i), decimal.NewFromInt(int64(1000+i)).String(), t0.Add(time.Minute)), nil)
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, accepted)
	history, err := store.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestStore_CommitBid_HistoryFollowsCommitOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := openTestStore(t)
	createAuction(t, store, 1)

	var prior *int64
	for i, amount := range []string{"1000", "1100", "1200.25", "1300"} {
		// each caller's clock is behind the previous one
		committed, err := store.CommitBid(ctx, bid(1, int64(10+i), amount, t0.Add(time.Duration(10-i)*time.Minute)), prior)
		require.NoError(t, err)
		require.True(t, committed.SubmittedAt.Equal(t0.Add(10*time.Minute)))
		prior = ptr(committed.ID)
	}

	history, err := store.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 4)
	for i := 1; i < len(history); i++ {
		require.True(t, history[i].Amount.GreaterThan(history[i-1].Amount), "history[%d]", i)
		require.Greater(t, history[i].ID, history[i-1].ID)
	}
}

func TestStore_ClaimSettlement(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := openTestStore(t)
	createAuction(t, store, 1)

	claimed, err := store.ClaimSettlement(ctx, 1, t0, time.Minute)
	require.NoError(t, err)
	require.False(t, claimed, "open auctions cannot be settled")

	_, err = store.CloseAuction(ctx, 1)
	require.NoError(t, err)

	claimed, err = store.ClaimSettlement(ctx, 1, t0, time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	claimed, err = store.ClaimSettlement(ctx, 1, t0.Add(30*time.Second), time.Minute)
	require.NoError(t, err)
	require.False(t, claimed, "lease still held")

	claimed, err = store.ClaimSettlement(ctx, 1, t0.Add(time.Minute), time.Minute)
	require.NoError(t, err)
	require.True(t, claimed, "expired lease is taken over")

	require.NoError(t, store.ReleaseSettlement(ctx, 1))
	claimed, err = store.ClaimSettlement(ctx, 1, t0.Add(time.Minute), time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, store.MarkSettled(ctx, 1))
	claimed, err = store.ClaimSettlement(ctx, 1, t0.Add(time.Hour), time.Minute)
	require.NoError(t, err)
	require.False(t, claimed)

	_, err = store.ClaimSettlement(ctx, 9, t0, time.Minute)
	require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
}

func TestStore_TransitionsAndListDue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := openTestStore(t)
	for id := int64(1); id <= 3; id++ {
		createAuction(t, store, id)
	}

	activated, err := store.ActivateAuction(ctx, 2)
	require.NoError(t, err)
	require.True(t, activated)
	activated, err = store.ActivateAuction(ctx, 2)
	require.NoError(t, err)
	require.False(t, activated)

	_, err = store.CommitBid(ctx, bid(3, 10, "1000", t0.Add(time.Minute)), nil)
	require.NoError(t, err)
	closed, err := store.CloseAuction(ctx, 3)
	require.NoError(t, err)
	require.True(t, closed)
	closed, err = store.CloseAuction(ctx, 3)
	require.NoError(t, err)
	require.False(t, closed)

	ids := func(now time.Time) []int64 {
		due, err := store.ListDue(ctx, now)
		require.NoError(t, err)
		out := make([]int64, 0, len(due))
		for _, a := range due {
			out = append(out, a.PropertyID)
		}
		return out
	}

	require.Equal(t, []int64{3}, ids(t0.Add(-time.Minute)))
	require.Equal(t, []int64{1, 3}, ids(t0))
	require.Equal(t, []int64{1, 2, 3}, ids(t0.Add(time.Hour)))

	require.NoError(t, store.MarkSettled(ctx, 3))
	require.Equal(t, []int64{1}, ids(t0))

	_, err = store.CloseAuction(ctx, 42)
	require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
	require.ErrorIs(t, store.MarkSettled(ctx, 42), biddingerrors.ErrAuctionNotFound)
}

func TestStore_HistoryAndBidders(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := openTestStore(t)
	createAuction(t, store, 1)
	createAuction(t, store, 2)

	lateID, err := store.AppendBid(ctx, bid(1, 10, "1100", t0.Add(3*time.Minute)))
	require.NoError(t, err)
	_, err = store.AppendBid(ctx, bid(1, 11, "1000", t0.Add(time.Minute)))
	require.NoError(t, err)
	_, err = store.AppendBid(ctx, bid(2, 10, "1000", t0.Add(2*time.Minute)))
	require.NoError(t, err)

	history, err := store.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, int64(11), history[0].BidderID)
	require.Equal(t, lateID, history[1].ID)
	require.True(t, history[1].SubmittedAt.Equal(t0.Add(3*time.Minute)))

	got, err := store.GetBid(ctx, lateID)
	require.NoError(t, err)
	require.Equal(t, "1100", got.Amount.String())

	_, err = store.GetBid(ctx, 999)
	require.ErrorIs(t, err, biddingerrors.ErrBidNotFound)

	_, err = store.History(ctx, 7)
	require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)

	auctions, err := store.AuctionsByBidder(ctx, 10)
	require.NoError(t, err)
	require.Len(t, auctions, 2)
	require.Equal(t, int64(1), auctions[0].PropertyID)

	none, err := store.AuctionsByBidder(ctx, 99)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestStore_Notifications(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := openTestStore(t)

	id, err := store.InsertNotification(ctx, model.Notification{
		RecipientUserID: 5,
		Kind:            model.KindOutbid,
		Payload:         model.NotificationPayload{PropertyID: 1, BidID: 2, Amount: decimal.RequireFromString("1100.00")},
		CreatedAt:       t0,
	})
	require.NoError(t, err)

	pending, err := store.PendingFor(ctx, 5)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, id, pending[0].ID)
	require.Equal(t, model.KindOutbid, pending[0].Kind)
	require.True(t, pending[0].Payload.Amount.Equal(decimal.NewFromInt(1100)))
	require.Equal(t, int64(2), pending[0].Payload.BidID)
	require.True(t, pending[0].CreatedAt.Equal(t0))

	require.NoError(t, store.MarkDelivered(ctx, id))
	require.NoError(t, store.MarkDelivered(ctx, id))
	require.ErrorIs(t, store.MarkDelivered(ctx, id+1), biddingerrors.ErrNotificationNotFound)

	pending, err = store.PendingFor(ctx, 5)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestStore_DirectoryAndSales(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, path := openTestStore(t)

	require.NoError(t, store.AddProperty(ctx, 1))
	require.NoError(t, store.AddProperty(ctx, 1))
	require.NoError(t, store.AddUser(ctx, 2))

	ok, err := store.PropertyExists(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = store.PropertyExists(ctx, 2)
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = store.UserExists(ctx, 2)
	require.NoError(t, err)
	require.True(t, ok)

	sale := model.Sale{PropertyID: 1, WinningBidID: 4, Amount: decimal.NewFromInt(1100), BuyerID: 2, RecordedAt: t0}
	require.NoError(t, store.RecordSale(ctx, sale))
	sale.Amount = decimal.NewFromInt(1)
	require.NoError(t, store.RecordSale(ctx, sale))

	sales, err := store.Sales(ctx)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	require.Equal(t, "1100", sales[0].Amount.String())

	// data survives a reopen
	require.NoError(t, store.Close())
	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	ok, err = reopened.PropertyExists(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	sales, err = reopened.Sales(ctx)
	require.NoError(t, err)
	require.Len(t, sales, 1)
}

func ptr(id int64) *int64 { return &id }
