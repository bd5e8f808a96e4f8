package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID    uint64 `gorm:"primaryKey;autoIncrement"`
	Email string `gorm:"type:varchar(255);not null;uniqueIndex"`
	Name  string `gorm:"type:varchar(100)"`

	// Mutated only through wallet ledger entries, never written directly.
	AvailableBalance decimal.Decimal `gorm:"type:numeric(30,2);not null;default:0"`
	HeldAmount       decimal.Decimal `gorm:"type:numeric(30,2);not null;default:0"`

	KYCVerified bool `gorm:"column:kyc_verified;not null;default:false"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}
