package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"carbid/internal/models"
)

// Repository is the persistence surface shared by the wallet ledger, the
// bid engine, the escrow engine and the sweeps. Methods suffixed Tx run
// inside a transaction previously opened with InTx; Lock*Tx variants take a
// FOR UPDATE row lock so concurrent writers to the same auction or escrow
// serialize at the storage layer.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Users and wallet.
	GetUser(ctx context.Context, id uint64) (*models.User, error)
	GetUserTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.User, error)
	// AdjustBalanceTx applies availableDelta/heldDelta to one user row. When
	// requireAvailable is set, the update only lands if the resulting
	// available balance stays non-negative; the bool reports whether it did.
	AdjustBalanceTx(ctx context.Context, tx *gorm.DB, userID uint64, availableDelta, heldDelta decimal.Decimal, requireAvailable bool) (bool, error)
	InsertWalletTransactionTx(ctx context.Context, tx *gorm.DB, item *models.WalletTransaction) error
	ListWalletTransactions(ctx context.Context, params ListWalletTransactionsParams) ([]models.WalletTransaction, error)

	// Auctions.
	GetAuction(ctx context.Context, id uint64) (*models.Auction, error)
	LockAuctionTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Auction, error)
	SaveAuctionTx(ctx context.Context, tx *gorm.DB, item *models.Auction) error
	ListAuctions(ctx context.Context, params ListAuctionsParams) ([]models.Auction, error)
	// Sweep candidate queries: plain reads of due auction IDs. The sweep
	// re-locks and re-checks each row, so staleness here is harmless.
	ListScheduledDue(ctx context.Context, now time.Time, limit int) ([]uint64, error)
	ListLiveDue(ctx context.Context, now time.Time, limit int) ([]uint64, error)
	ListSettlementOverdue(ctx context.Context, cutoff time.Time, limit int) ([]uint64, error)

	// Bids.
	InsertBidTx(ctx context.Context, tx *gorm.DB, item *models.Bid) error
	GetWinningBidTx(ctx context.Context, tx *gorm.DB, auctionID uint64) (*models.Bid, error)
	ClearWinningBidTx(ctx context.Context, tx *gorm.DB, bidID uint64) error
	ListBidsByAuction(ctx context.Context, auctionID uint64, limit int) ([]models.Bid, error)

	// Escrows.
	InsertEscrowTx(ctx context.Context, tx *gorm.DB, item *models.Escrow) error
	GetEscrow(ctx context.Context, id uint64) (*models.Escrow, error)
	GetEscrowTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Escrow, error)
	LockEscrowTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Escrow, error)
	GetEscrowByAuctionTx(ctx context.Context, tx *gorm.DB, auctionID uint64) (*models.Escrow, error)
	SaveEscrowTx(ctx context.Context, tx *gorm.DB, item *models.Escrow) error

	// Vehicles and certifications.
	GetVehicleTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Vehicle, error)
	SetVehicleStatusTx(ctx context.Context, tx *gorm.DB, vehicleID uint64, status string) error
	GetCertificationByVehicleTx(ctx context.Context, tx *gorm.DB, vehicleID uint64) (*models.Certification, error)
}

type ListWalletTransactionsParams struct {
	Limit  int
	Offset int
	UserID *uint64
	Type   *string
}

type ListAuctionsParams struct {
	Limit    int
	Offset   int
	Status   *string
	SellerID *uint64
	OrderBy  string
	Asc      *bool
}
