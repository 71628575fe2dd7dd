package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"property-auction/internal/biddingerrors"
	model "property-auction/internal/models"
	"property-auction/internal/repository"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func outbid(recipient int64) model.Notification {
	return model.Notification{
		RecipientUserID: recipient,
		Kind:            model.KindOutbid,
		Payload:         model.NotificationPayload{PropertyID: 1, BidID: 2, Amount: decimal.NewFromInt(1100)},
	}
}

func TestDispatcher_Enqueue(t *testing.T) {
	t.Parallel()

	repo := repository.NewMemoryRepo()
	d := NewDispatcher(repo, Options{Workers: 1, MaxAttempts: 1})
	defer d.Close()

	stored, err := d.Enqueue(context.Background(), outbid(7))
	require.NoError(t, err)
	require.Equal(t, int64(1), stored.ID)
	require.False(t, stored.CreatedAt.IsZero())
	require.False(t, stored.Delivered)

	pending, err := d.PendingFor(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, model.KindOutbid, pending[0].Kind)

	require.NoError(t, d.MarkDelivered(context.Background(), stored.ID))
	err = d.MarkDelivered(context.Background(), 99)
	require.ErrorIs(t, err, biddingerrors.ErrNotificationNotFound)

	pending, err = d.PendingFor(context.Background(), 7)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestDispatcher_PublishRetries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		maxAttempts int
		failures    int
		wantCalls   int
	}{
		{name: "first_attempt_succeeds", maxAttempts: 3, failures: 0, wantCalls: 1},
		{name: "succeeds_after_transient_failures", maxAttempts: 3, failures: 2, wantCalls: 3},
		{name: "gives_up_after_max_attempts", maxAttempts: 3, failures: 5, wantCalls: 3},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			store := repository.NewMockNotificationStore(ctrl)
			calls := 0
			store.EXPECT().InsertNotification(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, n model.Notification) (int64, error) {
					calls++
					require.Equal(t, int64(7), n.RecipientUserID)
					if calls <= tc.failures {
						return 0, errors.New("database is locked")
					}
					return int64(calls), nil
				}).
				Times(tc.wantCalls)

			d := NewDispatcher(store, Options{Workers: 1, QueueLength: 4, MaxAttempts: tc.maxAttempts, RetryDelay: time.Millisecond})
			d.Publish(outbid(7))
			d.Close()

			require.Equal(t, tc.wantCalls, calls)
		})
	}
}

func TestDispatcher_PublishMany(t *testing.T) {
	t.Parallel()

	repo := repository.NewMemoryRepo()
	d := NewDispatcher(repo, Options{Workers: 4, QueueLength: 16, MaxAttempts: 2})

	for i := 0; i < 100; i++ {
		d.Publish(outbid(int64(i%5 + 1)))
	}
	d.Flush()

	total := 0
	for user := int64(1); user <= 5; user++ {
		pending, err := d.PendingFor(context.Background(), user)
		require.NoError(t, err)
		require.Len(t, pending, 20)
		total += len(pending)
	}
	require.Equal(t, 100, total)
	d.Close()
}
