package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	WalletTransactionStatusCompleted = "completed"
)

// WalletTransaction is an immutable ledger entry. ExternalRef, when set, is
// globally unique: the storage-level idempotency anchor for retried
// payment-gateway callbacks.
type WalletTransaction struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	UserID uint64 `gorm:"not null;index"`

	Type         string          `gorm:"type:varchar(30);not null;index"`
	Amount       decimal.Decimal `gorm:"type:numeric(30,2);not null"`
	BalanceAfter decimal.Decimal `gorm:"type:numeric(30,2);not null"`

	Status      string  `gorm:"type:varchar(20);not null;default:'completed'"`
	ExternalRef *string `gorm:"type:varchar(100);uniqueIndex"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}
