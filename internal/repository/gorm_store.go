package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-engine/internal/arbiter"
	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Supported SQL drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type userRecord struct {
	ID   string `gorm:"primaryKey;size:64"`
	Name string `gorm:"size:255"`
}

func (userRecord) TableName() string { return "users" }

type auctionRecord struct {
	ID            string     `gorm:"primaryKey;size:64"`
	ItemName      string     `gorm:"size:255;not null"`
	Description   string     `gorm:"type:text"`
	SellerID      string     `gorm:"size:64;index;not null"`
	Seller        userRecord `gorm:"foreignKey:SellerID;references:ID"`
	StartingBid   float64    `gorm:"not null"`
	BidStart      time.Time  `gorm:"not null"`
	BidEnd        time.Time  `gorm:"index;not null"`
	LeadingAmount *float64
	BidCount      int         `gorm:"not null;default:0"`
	Bids          []bidRecord `gorm:"foreignKey:AuctionID;references:ID"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (auctionRecord) TableName() string { return "auctions" }

// bidRecord rows are insert-only. Seq is the acceptance position, 1 for the first bid.
type bidRecord struct {
	ID        uint       `gorm:"primaryKey"`
	AuctionID string     `gorm:"size:64;not null;uniqueIndex:idx_bids_auction_seq,priority:1"`
	Seq       int        `gorm:"not null;uniqueIndex:idx_bids_auction_seq,priority:2"`
	BidderID  string     `gorm:"size:64;index;not null"`
	Bidder    userRecord `gorm:"foreignKey:BidderID;references:ID"`
	Amount    float64    `gorm:"not null"`
	PlacedAt  time.Time  `gorm:"not null"`
}

func (bidRecord) TableName() string { return "bids" }

// GormStore is an AuctionStore backed by a SQL database through gorm.
// A bid is accepted by a single conditional UPDATE on the auction row: the row's
// leading_amount acts as the compare-and-swap slot, so two racing bids cannot both match.
type GormStore struct {
	db *gorm.DB
}

// OpenDB opens a gorm connection for the given driver and DSN
func OpenDB(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	}

	switch driver {
	case DriverSQLite:
		db, err := gorm.Open(sqlite.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
		}
		// sqlite allows a single writer; one connection keeps writers queued instead of failing busy
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	case DriverPostgres:
		db, err := gorm.Open(postgres.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("open database: unsupported driver %q", driver)
	}
}

// NewGormStore creates a store on top of an open gorm connection
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the auction tables
func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&userRecord{}, &auctionRecord{}, &bidRecord{}); err != nil {
		return fmt.Errorf("migrate auction tables: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ConditionalPrependBid records a bid as the new leader if cond holds.
// The returned auction is read inside the same transaction, so it is exactly the
// state this write produced; if that read fails the bid is rolled back.
func (s *GormStore) ConditionalPrependBid(ctx context.Context, auctionID string, bid model.Bid, cond arbiter.Condition) (model.Auction, error) {
	matched := false
	var current auctionRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&auctionRecord{}).
			Where("id = ?", auctionID).
			Where("(leading_amount IS NULL OR leading_amount < ?)", cond.Amount)
		if cond.EnforceStartingBid {
			q = q.Where("starting_bid < ?", cond.Amount)
		}
		if cond.EnforceBidWindow {
			q = q.Where("bid_start <= ? AND bid_end > ?", cond.At, cond.At)
		}

		result := q.Updates(map[string]any{
			"leading_amount": cond.Amount,
			"bid_count":      gorm.Expr("bid_count + 1"),
			"updated_at":     time.Now().UTC(),
		})
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected > 0 {
			matched = true

			var seq int
			if err := tx.Model(&auctionRecord{}).Select("bid_count").Where("id = ?", auctionID).Scan(&seq).Error; err != nil {
				return err
			}
			err := tx.Omit(clause.Associations).Create(&bidRecord{
				AuctionID: auctionID,
				Seq:       seq,
				BidderID:  bid.Bidder.ID,
				Amount:    bid.Amount,
				PlacedAt:  bid.Time,
			}).Error
			if err != nil {
				return err
			}
		}

		return withAssociations(tx).First(&current, "id = ?", auctionID).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Auction{}, fmt.Errorf("prepend bid to auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return model.Auction{}, fmt.Errorf("prepend bid to auction %s: %w: %w", auctionID, biddingerrors.ErrStoreUnavailable, err)
	}

	auction := current.toModel()
	if matched {
		return auction, nil
	}

	// Nothing matched: classify against the state read in the same transaction.
	// If the condition holds there, a racer committed in between; the bid still lost.
	reason := cond.Check(auction)
	if reason == nil {
		reason = biddingerrors.ErrOutBid
	}
	return model.Auction{}, fmt.Errorf("prepend bid to auction %s: %w: %w", auctionID, biddingerrors.ErrNoMatch, reason)
}

// FindAuction returns an auction with seller and bidders resolved, most recent bid first
func (s *GormStore) FindAuction(ctx context.Context, auctionID string) (model.Auction, error) {
	var rec auctionRecord
	err := s.preloaded(ctx).First(&rec, "id = ?", auctionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Auction{}, fmt.Errorf("find auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return model.Auction{}, fmt.Errorf("find auction %s: %w: %w", auctionID, biddingerrors.ErrStoreUnavailable, err)
	}
	return rec.toModel(), nil
}

// CreateAuction stores a new auction. The auction must carry an id; bids are ignored.
func (s *GormStore) CreateAuction(ctx context.Context, auction model.Auction) (model.Auction, error) {
	if auction.ID == "" {
		return model.Auction{}, fmt.Errorf("create auction: %w - missing id", biddingerrors.ErrInvalidAuction)
	}

	rec := auctionRecord{
		ID:          auction.ID,
		ItemName:    auction.ItemName,
		Description: auction.Description,
		SellerID:    auction.Seller.ID,
		StartingBid: auction.StartingBid,
		BidStart:    auction.BidStart,
		BidEnd:      auction.BidEnd,
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return model.Auction{}, fmt.Errorf("create auction %s: %w - duplicate id", auction.ID, biddingerrors.ErrInvalidAuction)
		}
		return model.Auction{}, fmt.Errorf("create auction %s: %w: %w", auction.ID, biddingerrors.ErrStoreUnavailable, err)
	}
	return s.FindAuction(ctx, auction.ID)
}

// UpdateAuction applies a metadata update. Bids and starting bid are never touched.
func (s *GormStore) UpdateAuction(ctx context.Context, auctionID string, update model.AuctionUpdate) (model.Auction, error) {
	changes := map[string]any{"updated_at": time.Now().UTC()}
	if update.ItemName != nil {
		changes["item_name"] = *update.ItemName
	}
	if update.Description != nil {
		changes["description"] = *update.Description
	}
	if update.BidStart != nil {
		changes["bid_start"] = *update.BidStart
	}
	if update.BidEnd != nil {
		changes["bid_end"] = *update.BidEnd
	}

	result := s.db.WithContext(ctx).Model(&auctionRecord{}).Where("id = ?", auctionID).Updates(changes)
	if result.Error != nil {
		return model.Auction{}, fmt.Errorf("update auction %s: %w: %w", auctionID, biddingerrors.ErrStoreUnavailable, result.Error)
	}
	if result.RowsAffected == 0 {
		return model.Auction{}, fmt.Errorf("update auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return s.FindAuction(ctx, auctionID)
}

// DeleteAuction removes an auction together with its bids
func (s *GormStore) DeleteAuction(ctx context.Context, auctionID string) error {
	found := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", auctionID).Delete(&auctionRecord{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		found = true
		return tx.Where("auction_id = ?", auctionID).Delete(&bidRecord{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete auction %s: %w: %w", auctionID, biddingerrors.ErrStoreUnavailable, err)
	}
	if !found {
		return fmt.Errorf("delete auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return nil
}

// ListAuctions returns every auction ordered by creation time
func (s *GormStore) ListAuctions(ctx context.Context) ([]model.Auction, error) {
	return s.list(s.preloaded(ctx).Order("created_at ASC, id ASC"), "list auctions")
}

// ListOpenAuctions returns auctions whose bidding window has not ended, earliest start first
func (s *GormStore) ListOpenAuctions(ctx context.Context, now time.Time) ([]model.Auction, error) {
	return s.list(s.preloaded(ctx).Where("bid_end > ?", now).Order("bid_start ASC, id ASC"), "list open auctions")
}

// ListBySeller returns the auctions a user sells
func (s *GormStore) ListBySeller(ctx context.Context, sellerID string) ([]model.Auction, error) {
	return s.list(s.preloaded(ctx).Where("seller_id = ?", sellerID).Order("created_at ASC, id ASC"), "list auctions by seller")
}

// ListByBidder returns the auctions a user has bid on
func (s *GormStore) ListByBidder(ctx context.Context, bidderID string) ([]model.Auction, error) {
	sub := s.db.WithContext(ctx).Model(&bidRecord{}).Select("auction_id").Where("bidder_id = ?", bidderID)
	return s.list(s.preloaded(ctx).Where("id IN (?)", sub).Order("created_at ASC, id ASC"), "list auctions by bidder")
}

// SaveUser creates or renames a user used for display resolution
func (s *GormStore) SaveUser(ctx context.Context, user model.UserRef) error {
	if user.ID == "" {
		return fmt.Errorf("save user: %w - missing id", biddingerrors.ErrInvalidAuction)
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoUpdates: clause.AssignmentColumns([]string{"name"})}).
		Create(&userRecord{ID: user.ID, Name: user.Name}).Error
	if err != nil {
		return fmt.Errorf("save user %s: %w: %w", user.ID, biddingerrors.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *GormStore) preloaded(ctx context.Context) *gorm.DB {
	return withAssociations(s.db.WithContext(ctx))
}

// withAssociations loads seller and bidders, most recent bid first
func withAssociations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Seller").
		Preload("Bids", func(db *gorm.DB) *gorm.DB { return db.Order("seq DESC") }).
		Preload("Bids.Bidder")
}

func (s *GormStore) list(q *gorm.DB, op string) ([]model.Auction, error) {
	var recs []auctionRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, biddingerrors.ErrStoreUnavailable, err)
	}
	auctions := make([]model.Auction, 0, len(recs))
	for _, rec := range recs {
		auctions = append(auctions, rec.toModel())
	}
	return auctions, nil
}

func (rec auctionRecord) toModel() model.Auction {
	bids := make([]model.Bid, 0, len(rec.Bids))
	for _, b := range rec.Bids {
		bids = append(bids, model.Bid{
			Bidder: model.UserRef{ID: b.BidderID, Name: b.Bidder.Name},
			Amount: b.Amount,
			Time:   b.PlacedAt.UTC(),
		})
	}
	return model.Auction{
		ID:          rec.ID,
		ItemName:    rec.ItemName,
		Description: rec.Description,
		Seller:      model.UserRef{ID: rec.SellerID, Name: rec.Seller.Name},
		StartingBid: rec.StartingBid,
		BidStart:    rec.BidStart.UTC(),
		BidEnd:      rec.BidEnd.UTC(),
		Bids:        bids,
		CreatedAt:   rec.CreatedAt.UTC(),
		UpdatedAt:   rec.UpdatedAt.UTC(),
	}
}
