package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/config"
	"auction-engine/internal/gateway"
	model "auction-engine/internal/models"
	"auction-engine/internal/relay"
	"auction-engine/internal/repository"
	"auction-engine/internal/rooms"
	"auction-engine/internal/server"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		utils.Fatal("failed to load configuration", map[string]any{"error": err.Error()})
	}
	utils.ConfigureLogger(cfg.Log.Level, cfg.Log.Format)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		utils.Fatal("failed to open auction store", map[string]any{"driver": cfg.Store.Driver, "error": err.Error()})
	}
	defer closeStore()

	gw := gateway.NewGateway(rooms.NewRegistry())

	var broadcaster bidding.Broadcaster = gw
	if cfg.Redis.Enabled {
		rel, err := relay.NewRedisRelay(ctx, relay.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
		}, gw)
		if err != nil {
			utils.Fatal("failed to start redis relay", map[string]any{"addr": cfg.Redis.Addr, "error": err.Error()})
		}
		defer rel.Close()

		go func() {
			if err := rel.Subscribe(ctx); err != nil && !errors.Is(err, context.Canceled) {
				utils.Error("redis relay stopped", map[string]any{"error": err.Error()})
			}
		}()
		broadcaster = rel
	}

	coordinator := bidding.NewCoordinator(store, broadcaster, bidding.Policy{
		EnforceStartingBid: cfg.Bidding.EnforceStartingBid,
		EnforceBidWindow:   cfg.Bidding.EnforceBidWindow,
		StoreTimeout:       cfg.Store.Timeout,
	})
	biddingSvc := bidding.NewBiddingService(store, coordinator)

	if cfg.Seed.Demo {
		prepopulateAuctions(ctx, biddingSvc)
	}

	wsHandler := gateway.NewHandler(gw, gateway.NewDispatcher(gw, coordinator), gateway.Settings{
		SendBuffer:     cfg.Gateway.SendBuffer,
		WriteWait:      cfg.Gateway.WriteWait,
		PongWait:       cfg.Gateway.PongWait,
		MaxMessageSize: cfg.Gateway.MaxMessageSize,
		AllowedOrigins: cfg.Gateway.AllowedOrigins,
	})
	router := server.SetupRouter(biddingSvc, wsHandler, gw)

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	go func() {
		utils.Info("starting auction server", map[string]any{"addr": srv.Addr, "store": cfg.Store.Driver, "redis": cfg.Redis.Enabled})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Fatal("failed to start server", map[string]any{"error": err.Error()})
		}
	}()

	<-ctx.Done()
	utils.Info("shutting down server", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	gw.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Error("server shutdown failed", map[string]any{"error": err.Error()})
	}
	utils.Info("server exited properly", nil)
}

// openStore builds the configured auction store and returns its cleanup
func openStore(ctx context.Context, cfg config.StoreConfig) (repository.AuctionStore, func(), error) {
	if cfg.Driver == config.DriverMemory {
		return repository.NewMemoryRepo(), func() {}, nil
	}

	db, err := repository.OpenDB(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	store := repository.NewGormStore(db)
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return store, func() {
		if err := store.Close(); err != nil {
			utils.Warn("failed to close auction store", map[string]any{"error": err.Error()})
		}
	}, nil
}

// prepopulateAuctions adds sample users and auctions
func prepopulateAuctions(ctx context.Context, svc *bidding.BiddingService) {
	users := []model.UserRef{
		{ID: "seller1", Name: "Sally Seller"},
		{ID: "user1", Name: "Ann"},
		{ID: "user2", Name: "Ben"},
	}
	for _, u := range users {
		if err := svc.RegisterUser(ctx, u); err != nil {
			utils.Warn("seed: failed to register user", map[string]any{"user_id": u.ID, "error": err.Error()})
		}
	}

	now := time.Now().UTC()
	drafts := []model.AuctionDraft{
		{SellerID: "seller1", ItemName: "title1", Description: "description1", StartingBid: 100, BidStart: now, BidEnd: now.Add(24 * time.Hour)},
		{SellerID: "seller1", ItemName: "title2", Description: "Description2", StartingBid: 200, BidStart: now, BidEnd: now.Add(48 * time.Hour)},
		{SellerID: "seller1", ItemName: "title3", Description: "Description3", StartingBid: 150, BidStart: now.Add(time.Hour), BidEnd: now.Add(72 * time.Hour)},
	}
	for _, d := range drafts {
		a, err := svc.CreateAuction(ctx, d)
		if err != nil {
			utils.Warn("seed: failed to create auction", map[string]any{"item": d.ItemName, "error": err.Error()})
			continue
		}
		utils.Info("seed: auction created", map[string]any{"auction_id": a.ID, "item": a.ItemName})
	}
}
