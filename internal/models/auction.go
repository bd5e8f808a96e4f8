package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	AuctionStatusScheduled             = "scheduled"
	AuctionStatusLive                  = "live"
	AuctionStatusEnded                 = "ended"
	AuctionStatusUnsold                = "unsold"
	AuctionStatusSoldPending70         = "sold_pending_70"
	AuctionStatusSoldPendingValidation = "sold_pending_validation"
	AuctionStatusSettled               = "settled"
	AuctionStatusCancelled             = "cancelled"
)

// Auction is the principal contended row: every bid placement and escrow
// stage transition takes a row-level lock on it before reading
// current_price or the winner.
type Auction struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	VehicleID uint64 `gorm:"not null;index"`
	SellerID  uint64 `gorm:"not null;index"`

	StartPrice   decimal.Decimal  `gorm:"type:numeric(30,2);not null"`
	ReservePrice *decimal.Decimal `gorm:"type:numeric(30,2)"`
	CurrentPrice decimal.Decimal  `gorm:"type:numeric(30,2);not null"`
	BidIncrement decimal.Decimal  `gorm:"type:numeric(30,2);not null"`

	// Percentage of the bid amount held as a deposit, e.g. 20 for 20%.
	DepositPct int64 `gorm:"not null;default:10"`

	StartTime time.Time `gorm:"type:timestamptz;not null;index"`
	EndTime   time.Time `gorm:"type:timestamptz;not null;index"`

	Status              string  `gorm:"type:varchar(30);not null;default:'scheduled';index"`
	WinnerID            *uint64 `gorm:"index"`
	BidCount            int64   `gorm:"not null;default:0"`
	SnipeExtensionCount int64   `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Auction) TableName() string {
	return "auctions"
}
