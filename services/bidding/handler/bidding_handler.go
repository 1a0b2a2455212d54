package handler

import (
	"context"
	"net/http"

	model "auction-engine/internal/models"
	"auction-engine/services/bidding/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

//go:generate mockgen -source=bidding_handler.go -destination=mock_bidding_handler.go -package=handler

type BiddingServiceInterface interface {
	PlaceBid(ctx context.Context, auctionID string, info model.BidInfo) (model.Auction, error)
	CreateAuction(ctx context.Context, draft model.AuctionDraft) (model.Auction, error)
	GetAuction(ctx context.Context, auctionID string) (model.Auction, error)
	UpdateAuction(ctx context.Context, auctionID string, update model.AuctionUpdate) (model.Auction, error)
	DeleteAuction(ctx context.Context, auctionID string) error
	ListAuctions(ctx context.Context) ([]model.Auction, error)
	ListOpenAuctions(ctx context.Context) ([]model.Auction, error)
	GetAuctionsBySeller(ctx context.Context, userID string) ([]model.Auction, error)
	GetAuctionsByBidder(ctx context.Context, userID string) ([]model.Auction, error)
	RegisterUser(ctx context.Context, user model.UserRef) error
}

type BiddingHandler struct {
	service BiddingServiceInterface
}

func NewBiddingHandler(service BiddingServiceInterface) *BiddingHandler {
	return &BiddingHandler{service: service}
}

// PlaceBidHandler handles POST /auctions/:auction_id/bids
func (h *BiddingHandler) PlaceBidHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}

	auction, err := h.service.PlaceBid(c.Request.Context(), auctionID, req.ToBidInfo())
	if err != nil {
		helpers.RespondError(c, "PlaceBidHandler", err, map[string]any{
			"auction_id": auctionID,
			"bidder_id":  req.BidderID,
			"amount":     req.Amount,
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewBidResponse(auction), "bid recorded successfully")
	helpers.LogSuccess("PlaceBidHandler", "bid recorded successfully", map[string]any{
		"auction_id": auctionID,
		"bidder_id":  req.BidderID,
		"amount":     req.Amount,
	})
}

// CreateAuctionHandler handles POST /auctions
func (h *BiddingHandler) CreateAuctionHandler(c *gin.Context) {
	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	auction, err := h.service.CreateAuction(c.Request.Context(), req.ToDraft())
	if err != nil {
		helpers.RespondError(c, "CreateAuctionHandler", err, map[string]any{"seller_id": req.SellerID})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, auction, "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"auction_id": auction.ID,
		"seller_id":  req.SellerID,
	})
}

// GetAuctionHandler handles GET /auctions/:auction_id
func (h *BiddingHandler) GetAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	auction, err := h.service.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, "GetAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, auction, "auction retrieved successfully")
}

// UpdateAuctionHandler handles PUT /auctions/:auction_id
func (h *BiddingHandler) UpdateAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	var req helpers.UpdateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "UpdateAuctionHandler", err)
		return
	}

	auction, err := h.service.UpdateAuction(c.Request.Context(), auctionID, req.ToUpdate())
	if err != nil {
		helpers.RespondError(c, "UpdateAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, auction, "auction updated successfully")
	helpers.LogSuccess("UpdateAuctionHandler", "auction updated successfully", map[string]any{"auction_id": auctionID})
}

// DeleteAuctionHandler handles DELETE /auctions/:auction_id
func (h *BiddingHandler) DeleteAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	if err := h.service.DeleteAuction(c.Request.Context(), auctionID); err != nil {
		helpers.RespondError(c, "DeleteAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, gin.H{"_id": auctionID}, "auction deleted successfully")
	helpers.LogSuccess("DeleteAuctionHandler", "auction deleted successfully", map[string]any{"auction_id": auctionID})
}

// ListAuctionsHandler handles GET /auctions
func (h *BiddingHandler) ListAuctionsHandler(c *gin.Context) {
	h.respondList(c, "ListAuctionsHandler", nil, func(ctx context.Context) ([]model.Auction, error) {
		return h.service.ListAuctions(ctx)
	})
}

// ListOpenAuctionsHandler handles GET /auctions/open
func (h *BiddingHandler) ListOpenAuctionsHandler(c *gin.Context) {
	h.respondList(c, "ListOpenAuctionsHandler", nil, func(ctx context.Context) ([]model.Auction, error) {
		return h.service.ListOpenAuctions(ctx)
	})
}

// GetAuctionsBySellerHandler handles GET /users/:user_id/auctions
func (h *BiddingHandler) GetAuctionsBySellerHandler(c *gin.Context) {
	userID := c.Param("user_id")
	h.respondList(c, "GetAuctionsBySellerHandler", map[string]any{"user_id": userID}, func(ctx context.Context) ([]model.Auction, error) {
		return h.service.GetAuctionsBySeller(ctx, userID)
	})
}

// GetAuctionsByBidderHandler handles GET /users/:user_id/bids
func (h *BiddingHandler) GetAuctionsByBidderHandler(c *gin.Context) {
	userID := c.Param("user_id")
	h.respondList(c, "GetAuctionsByBidderHandler", map[string]any{"user_id": userID}, func(ctx context.Context) ([]model.Auction, error) {
		return h.service.GetAuctionsByBidder(ctx, userID)
	})
}

// RegisterUserHandler handles PUT /users/:user_id
func (h *BiddingHandler) RegisterUserHandler(c *gin.Context) {
	userID := c.Param("user_id")

	var req helpers.RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "RegisterUserHandler", err)
		return
	}

	user := model.UserRef{ID: userID, Name: req.Name}
	if err := h.service.RegisterUser(c.Request.Context(), user); err != nil {
		helpers.RespondError(c, "RegisterUserHandler", err, map[string]any{"user_id": userID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, user, "user registered successfully")
}

func (h *BiddingHandler) respondList(c *gin.Context, handlerName string, fields map[string]any, list func(context.Context) ([]model.Auction, error)) {
	auctions, err := list(c.Request.Context())
	if err != nil {
		helpers.RespondError(c, handlerName, err, fields)
		return
	}

	if auctions == nil {
		auctions = []model.Auction{}
	}

	utils.JSONResponse(c, http.StatusOK, auctions, "auctions retrieved successfully")
	if fields == nil {
		fields = map[string]any{}
	}
	fields["count"] = len(auctions)
	helpers.LogSuccess(handlerName, "auctions retrieved successfully", fields)
}
