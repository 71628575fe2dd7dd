package biddingerrors

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestBidRejection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		reason  error
		floor   string
		wantMsg string
	}{
		{name: "whole_amount", reason: ErrBelowMinimum, floor: "1000", wantMsg: "bid below minimum bid (minimum acceptable bid 1000)"},
		{name: "sub_cent_floor_is_not_rounded", reason: ErrBelowIncrement, floor: "1100.255", wantMsg: "bid below minimum increment (minimum acceptable bid 1100.255)"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			floor := decimal.RequireFromString(tc.floor)
			err := fmt.Errorf("service: %w", Reject(tc.reason, floor, nil))

			require.ErrorIs(t, err, tc.reason)
			rejection, ok := AsRejection(err)
			require.True(t, ok)
			require.Equal(t, tc.wantMsg, rejection.Error())
			require.Contains(t, rejection.Error(), floor.String())
		})
	}

	_, ok := AsRejection(ErrConflict)
	require.False(t, ok)
}
