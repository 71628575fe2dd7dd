package server

import (
	handler "property-auction/services/bidding/handler"

	"github.com/gin-gonic/gin"
)

// SetupRouter configures all Gin routes for the application
func SetupRouter(service handler.BiddingServiceInterface, lifecycle handler.LifecycleInterface, notifications handler.NotificationServiceInterface) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestIDMiddleware)     // tag every request
	router.Use(RequestLoggerMiddleware) // custom request logging

	biddingHandler := handler.NewBiddingHandler(service, lifecycle, notifications)

	auctions := router.Group("/auctions")
	{
		auctions.POST("", biddingHandler.CreateAuctionHandler)
		auctions.GET("/:property_id", biddingHandler.GetAuctionHandler)
		auctions.POST("/:property_id/bids", biddingHandler.PlaceBidHandler)
		auctions.GET("/:property_id/bids", biddingHandler.GetBidsByAuctionHandler)
		auctions.GET("/:property_id/winner", biddingHandler.GetWinningBidHandler)
		auctions.POST("/:property_id/close", biddingHandler.CloseAuctionHandler)
	}

	users := router.Group("/users")
	{
		users.GET("/:user_id/auctions", biddingHandler.GetAuctionsByUserHandler)
		users.GET("/:user_id/notifications", biddingHandler.GetNotificationsHandler)
	}

	inbox := router.Group("/notifications")
	{
		inbox.POST("/:notification_id/delivered", biddingHandler.MarkDeliveredHandler)
	}

	return router
}
