package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	bidding "property-auction/internal/biddingService"
	"property-auction/internal/biddingerrors"
	model "property-auction/internal/models"
	"property-auction/services/bidding/helpers"
	"property-auction/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=bidding_handler.go -destination=mock_bidding_handler.go -package=handler

type BiddingServiceInterface interface {
	CreateAuction(ctx context.Context, params bidding.CreateAuctionParams, now time.Time) (model.Auction, error)
	PlaceBid(ctx context.Context, propertyID, bidderID int64, amount decimal.Decimal, now time.Time) (model.Bid, error)
	GetAuctionState(ctx context.Context, propertyID int64, now time.Time) (model.AuctionSnapshot, error)
	GetBidHistory(ctx context.Context, propertyID int64) ([]model.Bid, error)
	GetWinningBid(ctx context.Context, propertyID int64, now time.Time) (model.Bid, error)
	GetAuctionsByBidder(ctx context.Context, userID int64) ([]model.Auction, error)
}

type LifecycleInterface interface {
	CloseAuction(ctx context.Context, propertyID int64, now time.Time) (bool, error)
}

type NotificationServiceInterface interface {
	PendingFor(ctx context.Context, userID int64) ([]model.Notification, error)
	MarkDelivered(ctx context.Context, notificationID int64) error
}

type BiddingHandler struct {
	service       BiddingServiceInterface
	lifecycle     LifecycleInterface
	notifications NotificationServiceInterface
	now           func() time.Time
}

func NewBiddingHandler(service BiddingServiceInterface, lifecycle LifecycleInterface, notifications NotificationServiceInterface) *BiddingHandler {
	return &BiddingHandler{
		service:       service,
		lifecycle:     lifecycle,
		notifications: notifications,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// CreateAuctionHandler handles POST /auctions
func (h *BiddingHandler) CreateAuctionHandler(c *gin.Context) {
	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	auction, err := h.service.CreateAuction(c.Request.Context(), bidding.CreateAuctionParams{
		PropertyID:       req.PropertyID,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		MinimumBid:       req.MinimumBid,
		MinimumIncrement: req.MinimumIncrement,
		Currency:         req.Currency,
	}, h.now())
	if err != nil {
		helpers.RespondError(c, err)
		utils.Warn("CreateAuctionHandler: failed to create auction", map[string]any{
			"property_id": req.PropertyID,
			"error":       err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.ToAuctionResponse(auction, h.now()), "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"property_id": auction.PropertyID,
		"start_time":  auction.StartTime,
		"end_time":    auction.EndTime,
	})
}

// PlaceBidHandler handles POST /auctions/:property_id/bids
func (h *BiddingHandler) PlaceBidHandler(c *gin.Context) {
	propertyID, ok := helpers.ParseIDParam(c, "property_id")
	if !ok {
		return
	}

	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}

	bid, err := h.service.PlaceBid(c.Request.Context(), propertyID, req.BidderID, req.Amount, h.now())
	if err != nil {
		helpers.RespondError(c, err)
		fields := map[string]any{
			"handler":     "PlaceBidHandler",
			"property_id": propertyID,
			"bidder_id":   req.BidderID,
			"amount":      req.Amount.String(),
			"error":       err.Error(),
		}
		if _, rejected := biddingerrors.AsRejection(err); rejected || errors.Is(err, biddingerrors.ErrConflict) {
			utils.Info("PlaceBidHandler: bid rejected", fields)
		} else {
			utils.Error("PlaceBidHandler: failed to place bid", fields)
		}
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.ToBidResponse(bid), "bid placed successfully")
	helpers.LogSuccess("PlaceBidHandler", "bid placed successfully", map[string]any{
		"bid_id":      bid.ID,
		"property_id": bid.PropertyID,
		"bidder_id":   bid.BidderID,
		"amount":      bid.Amount.String(),
	})
}

// GetAuctionHandler handles GET /auctions/:property_id
func (h *BiddingHandler) GetAuctionHandler(c *gin.Context) {
	propertyID, ok := helpers.ParseIDParam(c, "property_id")
	if !ok {
		return
	}

	snapshot, err := h.service.GetAuctionState(c.Request.Context(), propertyID, h.now())
	if err != nil {
		helpers.RespondError(c, err)
		utils.Warn("GetAuctionHandler: error retrieving auction", map[string]any{"property_id": propertyID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, snapshot, "auction retrieved successfully")
}

// GetBidsByAuctionHandler handles GET /auctions/:property_id/bids
func (h *BiddingHandler) GetBidsByAuctionHandler(c *gin.Context) {
	propertyID, ok := helpers.ParseIDParam(c, "property_id")
	if !ok {
		return
	}

	bids, err := h.service.GetBidHistory(c.Request.Context(), propertyID)
	if err != nil {
		helpers.RespondError(c, err)
		utils.Warn("GetBidsByAuctionHandler: error retrieving bids", map[string]any{"property_id": propertyID, "error": err.Error()})
		return
	}

	resp := make([]helpers.BidResponse, 0, len(bids))
	for _, bid := range bids {
		resp = append(resp, helpers.ToBidResponse(bid))
	}

	utils.JSONResponse(c, http.StatusOK, resp, "bids retrieved successfully")
	helpers.LogSuccess("GetBidsByAuctionHandler", "bids retrieved successfully", map[string]any{
		"property_id": propertyID,
		"count":       len(resp),
	})
}

// GetWinningBidHandler handles GET /auctions/:property_id/winner
func (h *BiddingHandler) GetWinningBidHandler(c *gin.Context) {
	propertyID, ok := helpers.ParseIDParam(c, "property_id")
	if !ok {
		return
	}

	bid, err := h.service.GetWinningBid(c.Request.Context(), propertyID, h.now())
	if err != nil {
		// closed without any bid
		if errors.Is(err, biddingerrors.ErrBidNotFound) {
			utils.JSONError(c, http.StatusNotFound, err, "no winning bid found")
			utils.Info("GetWinningBidHandler: no winning bid found", map[string]any{"property_id": propertyID})
			return
		}
		helpers.RespondError(c, err)
		utils.Warn("GetWinningBidHandler: winning bid error", map[string]any{"property_id": propertyID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.ToBidResponse(bid), "winning bid retrieved successfully")
	helpers.LogSuccess("GetWinningBidHandler", "winning bid retrieved successfully", map[string]any{
		"bid_id":      bid.ID,
		"property_id": bid.PropertyID,
		"bidder_id":   bid.BidderID,
		"amount":      bid.Amount.String(),
	})
}

// CloseAuctionHandler handles POST /auctions/:property_id/close
func (h *BiddingHandler) CloseAuctionHandler(c *gin.Context) {
	propertyID, ok := helpers.ParseIDParam(c, "property_id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	now := h.now()
	closed, err := h.lifecycle.CloseAuction(ctx, propertyID, now)
	if err != nil {
		helpers.RespondError(c, err)
		utils.Warn("CloseAuctionHandler: failed to close auction", map[string]any{"property_id": propertyID, "error": err.Error()})
		return
	}

	snapshot, err := h.service.GetAuctionState(ctx, propertyID, now)
	if err != nil {
		helpers.RespondError(c, err)
		utils.Error("CloseAuctionHandler: failed to load closed auction", map[string]any{"property_id": propertyID, "error": err.Error()})
		return
	}

	message := "auction closed successfully"
	if !closed {
		message = "auction was already closed"
	}
	utils.JSONResponse(c, http.StatusOK, helpers.CloseAuctionResponse{Closed: closed, Snapshot: snapshot}, message)
	helpers.LogSuccess("CloseAuctionHandler", message, map[string]any{"property_id": propertyID})
}

// GetAuctionsByUserHandler handles GET /users/:user_id/auctions
func (h *BiddingHandler) GetAuctionsByUserHandler(c *gin.Context) {
	userID, ok := helpers.ParseIDParam(c, "user_id")
	if !ok {
		return
	}

	auctions, err := h.service.GetAuctionsByBidder(c.Request.Context(), userID)
	if err != nil {
		helpers.RespondError(c, err)
		utils.Warn("GetAuctionsByUserHandler: error retrieving auctions", map[string]any{"user_id": userID, "error": err.Error()})
		return
	}

	now := h.now()
	resp := make([]helpers.AuctionResponse, 0, len(auctions))
	for _, a := range auctions {
		resp = append(resp, helpers.ToAuctionResponse(a, now))
	}

	utils.JSONResponse(c, http.StatusOK, resp, "auctions retrieved successfully")
	helpers.LogSuccess("GetAuctionsByUserHandler", "auctions retrieved successfully", map[string]any{
		"user_id":        userID,
		"auctions_count": len(resp),
	})
}

// GetNotificationsHandler handles GET /users/:user_id/notifications
func (h *BiddingHandler) GetNotificationsHandler(c *gin.Context) {
	userID, ok := helpers.ParseIDParam(c, "user_id")
	if !ok {
		return
	}

	pending, err := h.notifications.PendingFor(c.Request.Context(), userID)
	if err != nil {
		helpers.RespondError(c, err)
		utils.Warn("GetNotificationsHandler: error retrieving notifications", map[string]any{"user_id": userID, "error": err.Error()})
		return
	}
	if pending == nil {
		pending = []model.Notification{}
	}

	utils.JSONResponse(c, http.StatusOK, pending, "notifications retrieved successfully")
}

// MarkDeliveredHandler handles POST /notifications/:notification_id/delivered
func (h *BiddingHandler) MarkDeliveredHandler(c *gin.Context) {
	notificationID, ok := helpers.ParseIDParam(c, "notification_id")
	if !ok {
		return
	}

	if err := h.notifications.MarkDelivered(c.Request.Context(), notificationID); err != nil {
		helpers.RespondError(c, err)
		utils.Warn("MarkDeliveredHandler: failed to acknowledge notification", map[string]any{
			"notification_id": notificationID,
			"error":           err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, gin.H{"id": notificationID, "delivered": true}, fmt.Sprintf("notification %d acknowledged", notificationID))
}
