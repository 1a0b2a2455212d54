package server

import (
	"net/http"

	"auction-engine/internal/gateway"
	"auction-engine/services/bidding/handler"
	"auction-engine/services/bidding/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

// LiveStats reports the live websocket population
type LiveStats interface {
	Peers() int
	Rooms() int
}

// SetupRouter configures all Gin routes for the application
func SetupRouter(biddingService handler.BiddingServiceInterface, ws *gateway.Handler, stats LiveStats) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging

	biddingHandler := handler.NewBiddingHandler(biddingService)

	router.GET("/healthz", func(c *gin.Context) {
		utils.JSONResponse(c, http.StatusOK, helpers.HealthResponse{
			Status:      "ok",
			Connections: stats.Peers(),
			Rooms:       stats.Rooms(),
		}, "healthy")
	})
	router.GET("/ws", ws.ServeWS)

	auctions := router.Group("/auctions")
	{
		auctions.POST("", biddingHandler.CreateAuctionHandler)
		auctions.GET("", biddingHandler.ListAuctionsHandler)
		auctions.GET("/open", biddingHandler.ListOpenAuctionsHandler)
		auctions.GET("/:auction_id", biddingHandler.GetAuctionHandler)
		auctions.PUT("/:auction_id", biddingHandler.UpdateAuctionHandler)
		auctions.DELETE("/:auction_id", biddingHandler.DeleteAuctionHandler)
		auctions.POST("/:auction_id/bids", biddingHandler.PlaceBidHandler)
	}

	users := router.Group("/users")
	{
		users.PUT("/:user_id", biddingHandler.RegisterUserHandler)
		users.GET("/:user_id/auctions", biddingHandler.GetAuctionsBySellerHandler)
		users.GET("/:user_id/bids", biddingHandler.GetAuctionsByBidderHandler)
	}

	return router
}
