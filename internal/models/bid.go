package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bid is append-only. Rows are never updated after insert except the
// is_winning flip when a later bid supersedes them: at most one row per
// auction carries is_winning=true at any instant.
type Bid struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	AuctionID uint64 `gorm:"not null;index"`
	UserID    uint64 `gorm:"not null;index"`

	Amount    decimal.Decimal `gorm:"type:numeric(30,2);not null"`
	IsWinning bool            `gorm:"not null;default:false;index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (Bid) TableName() string {
	return "bids"
}
