package helpers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"property-auction/internal/biddingerrors"
	"property-auction/utils"

	"github.com/gin-gonic/gin"
)

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	utils.JSONError(c, http.StatusBadRequest, wrappedErr, "invalid request payload")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// ParseIDParam reads a positive integer path parameter. On failure it has already answered 400.
func ParseIDParam(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		utils.JSONError(c, http.StatusBadRequest, fmt.Errorf("invalid %s %q", name, raw), "invalid "+name)
		return 0, false
	}
	return id, true
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message
func MapErrorToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, biddingerrors.ErrAuctionNotFound):
		return http.StatusNotFound, "auction not found"
	case errors.Is(err, biddingerrors.ErrPropertyNotFound):
		return http.StatusNotFound, "property not found"
	case errors.Is(err, biddingerrors.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, biddingerrors.ErrBidNotFound):
		return http.StatusNotFound, "bid not found"
	case errors.Is(err, biddingerrors.ErrNotificationNotFound):
		return http.StatusNotFound, "notification not found"
	case errors.Is(err, biddingerrors.ErrTooEarly):
		return http.StatusConflict, "auction has not started"
	case errors.Is(err, biddingerrors.ErrTooLate):
		return http.StatusConflict, "auction has ended"
	case errors.Is(err, biddingerrors.ErrAuctionOpen):
		return http.StatusConflict, "auction is still open"
	case errors.Is(err, biddingerrors.ErrAuctionExists):
		return http.StatusConflict, "auction already exists"
	case errors.Is(err, biddingerrors.ErrConflict):
		return http.StatusConflict, "highest bid changed, please retry"
	case errors.Is(err, biddingerrors.ErrBelowMinimum):
		return http.StatusUnprocessableEntity, "bid below minimum bid"
	case errors.Is(err, biddingerrors.ErrBelowIncrement):
		return http.StatusUnprocessableEntity, "bid below minimum increment"
	case errors.Is(err, biddingerrors.ErrSelfOutbid):
		return http.StatusUnprocessableEntity, "you already hold the highest bid"
	case errors.Is(err, biddingerrors.ErrInvalidBid):
		return http.StatusBadRequest, "invalid bid details"
	case errors.Is(err, biddingerrors.ErrInvalidWindow):
		return http.StatusBadRequest, "invalid auction window"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// RespondError writes err with the mapped status. Bid rejections carry the floor so the
// client can correct the amount; lost races are flagged retryable.
func RespondError(c *gin.Context, err error) {
	status, message := MapErrorToHTTP(err)

	if rejection, ok := biddingerrors.AsRejection(err); ok {
		details := gin.H{
			"reason":                 ReasonCode(rejection.Reason),
			"minimum_acceptable_bid": rejection.Floor,
		}
		if rejection.CurrentHighest != nil {
			details["current_highest_amount"] = *rejection.CurrentHighest
		}
		utils.JSONRejection(c, status, err, message, details)
		return
	}
	if errors.Is(err, biddingerrors.ErrConflict) {
		utils.JSONRejection(c, status, err, message, gin.H{"reason": ReasonCode(biddingerrors.ErrConflict), "retryable": true})
		return
	}
	utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
}

// ReasonCode is the stable machine-readable name of a rejection reason
func ReasonCode(err error) string {
	switch {
	case errors.Is(err, biddingerrors.ErrTooEarly):
		return "too_early"
	case errors.Is(err, biddingerrors.ErrTooLate):
		return "too_late"
	case errors.Is(err, biddingerrors.ErrBelowMinimum):
		return "below_minimum"
	case errors.Is(err, biddingerrors.ErrBelowIncrement):
		return "below_increment"
	case errors.Is(err, biddingerrors.ErrSelfOutbid):
		return "self_outbid"
	case errors.Is(err, biddingerrors.ErrConflict):
		return "conflict"
	default:
		return "invalid"
	}
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}
