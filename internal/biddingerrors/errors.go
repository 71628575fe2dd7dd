package biddingerrors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Repository-level errors
var (
	ErrAuctionNotFound      = errors.New("auction not found")
	ErrAuctionExists        = errors.New("auction already exists for property")
	ErrBidNotFound          = errors.New("bid not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrConflict             = errors.New("highest bid changed concurrently")
)

// Directory errors
var (
	ErrPropertyNotFound = errors.New("property not found")
	ErrUserNotFound     = errors.New("user not found")
)

// window violations
var (
	ErrTooEarly      = errors.New("auction has not started")
	ErrTooLate       = errors.New("auction has ended")
	ErrInvalidWindow = errors.New("invalid auction window")
	ErrAuctionOpen   = errors.New("auction is still open")
)

// value violations
var (
	ErrInvalidBid     = errors.New("invalid bid")
	ErrBelowMinimum   = errors.New("bid below minimum bid")
	ErrBelowIncrement = errors.New("bid below minimum increment")
	ErrSelfOutbid     = errors.New("bidder already holds the highest bid")
)

// IsNotFound reports whether err is one of the non-retryable lookup failures
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAuctionNotFound) ||
		errors.Is(err, ErrPropertyNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrBidNotFound) ||
		errors.Is(err, ErrNotificationNotFound)
}

// BidRejection is returned when a bid fails a window or value rule.
// Floor is the smallest amount that would currently be accepted.
type BidRejection struct {
	Reason         error
	Floor          decimal.Decimal
	CurrentHighest *decimal.Decimal
}

func (r *BidRejection) Error() string {
	return fmt.Sprintf("%s (minimum acceptable bid %s)", r.Reason, r.Floor.String())
}

func (r *BidRejection) Unwrap() error {
	return r.Reason
}

// Reject builds a BidRejection for reason
func Reject(reason error, floor decimal.Decimal, current *decimal.Decimal) *BidRejection {
	return &BidRejection{Reason: reason, Floor: floor, CurrentHighest: current}
}

// AsRejection extracts the BidRejection carried by err, if any
func AsRejection(err error) (*BidRejection, bool) {
	var r *BidRejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
