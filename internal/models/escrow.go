package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	EscrowStageCommitment10 = "commitment_10"
	EscrowStage70           = "escrow_70"
	EscrowStageCompleted    = "completed"

	EscrowStatusActive    = "active"
	EscrowStatusDisputed  = "disputed"
	EscrowStatusReleased  = "released"
	EscrowStatusForfeited = "forfeited"
)

// Escrow is the custody record for one won auction. HeldAmount never
// exceeds TotalDealAmount and is non-decreasing until the terminal release
// or forfeiture, which zeroes it. Rows are never deleted; terminal escrows
// remain for audit.
type Escrow struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	AuctionID uint64 `gorm:"not null;uniqueIndex"`
	BuyerID   uint64 `gorm:"not null;index"`
	SellerID  uint64 `gorm:"not null;index"`

	TotalDealAmount decimal.Decimal `gorm:"type:numeric(30,2);not null"`
	HeldAmount      decimal.Decimal `gorm:"type:numeric(30,2);not null;default:0"`

	Stage  string `gorm:"type:varchar(20);not null;default:'commitment_10';index"`
	Status string `gorm:"type:varchar(20);not null;default:'active';index"`

	DisputeMeta datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Escrow) TableName() string {
	return "escrows"
}
