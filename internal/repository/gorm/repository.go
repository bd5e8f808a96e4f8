package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"carbid/internal/models"
	"carbid/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- users / wallet ---------------------------------------------------------

func (s *Store) GetUser(ctx context.Context, id uint64) (*models.User, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	return getUser(s.db.WithContext(ctx), id)
}

func (s *Store) GetUserTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.User, error) {
	if tx == nil {
		return nil, nil
	}
	return getUser(tx.WithContext(ctx), id)
}

func getUser(q *gorm.DB, id uint64) (*models.User, error) {
	var item models.User
	if err := q.First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// AdjustBalanceTx is the single write path for user balances. The guarded
// form is a compare-and-set: the WHERE clause re-checks available_balance so
// two bids racing on the same wallet cannot both spend the same funds.
func (s *Store) AdjustBalanceTx(ctx context.Context, tx *gorm.DB, userID uint64, availableDelta, heldDelta decimal.Decimal, requireAvailable bool) (bool, error) {
	if tx == nil {
		return false, nil
	}
	q := tx.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID)
	if requireAvailable {
		q = q.Where("available_balance + ? >= 0", availableDelta)
	}
	res := q.Updates(map[string]any{
		"available_balance": gorm.Expr("available_balance + ?", availableDelta),
		"held_amount":       gorm.Expr("held_amount + ?", heldDelta),
		"updated_at":        time.Now().UTC(),
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) InsertWalletTransactionTx(ctx context.Context, tx *gorm.DB, item *models.WalletTransaction) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (s *Store) ListWalletTransactions(ctx context.Context, params repository.ListWalletTransactionsParams) ([]models.WalletTransaction, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.WalletTransaction{})
	if params.UserID != nil {
		query = query.Where("user_id = ?", *params.UserID)
	}
	if params.Type != nil && strings.TrimSpace(*params.Type) != "" {
		query = query.Where("type = ?", strings.TrimSpace(*params.Type))
	}
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.WalletTransaction
	if err := query.Order("created_at desc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- auctions ----------------------------------------------------------------

func (s *Store) GetAuction(ctx context.Context, id uint64) (*models.Auction, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Auction
	if err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) LockAuctionTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Auction, error) {
	if tx == nil {
		return nil, nil
	}
	var item models.Auction
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&item, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) SaveAuctionTx(ctx context.Context, tx *gorm.DB, item *models.Auction) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Save(item).Error
}

func (s *Store) ListAuctions(ctx context.Context, params repository.ListAuctionsParams) ([]models.Auction, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Auction{})
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.SellerID != nil {
		query = query.Where("seller_id = ?", *params.SellerID)
	}
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.Auction
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListScheduledDue(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	return s.listAuctionIDs(ctx, limit, "status = ? AND start_time <= ?", models.AuctionStatusScheduled, now)
}

func (s *Store) ListLiveDue(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	return s.listAuctionIDs(ctx, limit, "status = ? AND end_time <= ?", models.AuctionStatusLive, now)
}

func (s *Store) ListSettlementOverdue(ctx context.Context, cutoff time.Time, limit int) ([]uint64, error) {
	statuses := []string{
		models.AuctionStatusEnded,
		models.AuctionStatusSoldPending70,
		models.AuctionStatusSoldPendingValidation,
	}
	return s.listAuctionIDs(ctx, limit, "status IN ? AND end_time < ?", statuses, cutoff)
}

func (s *Store) listAuctionIDs(ctx context.Context, limit int, cond string, args ...any) ([]uint64, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	limit = normalizeLimit(limit, 200)
	var ids []uint64
	err := s.db.WithContext(ctx).
		Model(&models.Auction{}).
		Where(cond, args...).
		Order("end_time asc").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// --- bids --------------------------------------------------------------------

func (s *Store) InsertBidTx(ctx context.Context, tx *gorm.DB, item *models.Bid) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (s *Store) GetWinningBidTx(ctx context.Context, tx *gorm.DB, auctionID uint64) (*models.Bid, error) {
	if tx == nil {
		return nil, nil
	}
	var item models.Bid
	err := tx.WithContext(ctx).
		Where("auction_id = ? AND is_winning = ?", auctionID, true).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) ClearWinningBidTx(ctx context.Context, tx *gorm.DB, bidID uint64) error {
	if tx == nil {
		return nil
	}
	return tx.WithContext(ctx).
		Model(&models.Bid{}).
		Where("id = ?", bidID).
		Update("is_winning", false).Error
}

func (s *Store) ListBidsByAuction(ctx context.Context, auctionID uint64, limit int) ([]models.Bid, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	limit = normalizeLimit(limit, 100)
	var items []models.Bid
	err := s.db.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order("created_at desc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- escrows -----------------------------------------------------------------

func (s *Store) InsertEscrowTx(ctx context.Context, tx *gorm.DB, item *models.Escrow) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (s *Store) GetEscrow(ctx context.Context, id uint64) (*models.Escrow, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Escrow
	if err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetEscrowTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Escrow, error) {
	if tx == nil {
		return nil, nil
	}
	var item models.Escrow
	if err := tx.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) LockEscrowTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Escrow, error) {
	if tx == nil {
		return nil, nil
	}
	var item models.Escrow
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&item, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetEscrowByAuctionTx(ctx context.Context, tx *gorm.DB, auctionID uint64) (*models.Escrow, error) {
	if tx == nil {
		return nil, nil
	}
	var item models.Escrow
	err := tx.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) SaveEscrowTx(ctx context.Context, tx *gorm.DB, item *models.Escrow) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Save(item).Error
}

// --- vehicles / certifications -----------------------------------------------

func (s *Store) GetVehicleTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Vehicle, error) {
	if tx == nil {
		return nil, nil
	}
	var item models.Vehicle
	if err := tx.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) SetVehicleStatusTx(ctx context.Context, tx *gorm.DB, vehicleID uint64, status string) error {
	if tx == nil {
		return nil
	}
	return tx.WithContext(ctx).
		Model(&models.Vehicle{}).
		Where("id = ?", vehicleID).
		Update("status", status).Error
}

func (s *Store) GetCertificationByVehicleTx(ctx context.Context, tx *gorm.DB, vehicleID uint64) (*models.Certification, error) {
	if tx == nil {
		return nil, nil
	}
	var item models.Certification
	err := tx.WithContext(ctx).
		Where("vehicle_id = ?", vehicleID).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// --- helpers -----------------------------------------------------------------

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
