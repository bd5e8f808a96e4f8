package models

import "time"

const (
	VehicleStatusAvailable         = "available"
	VehicleStatusInAuction         = "in_auction"
	VehicleStatusPendingSettlement = "pending_settlement"
	VehicleStatusSold              = "sold"
)

type Vehicle struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	SellerID uint64 `gorm:"not null;index"`

	Make  string `gorm:"type:varchar(100)"`
	Model string `gorm:"type:varchar(100)"`
	Year  int    `gorm:"not null;default:0"`

	Status string `gorm:"type:varchar(30);not null;default:'available';index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Vehicle) TableName() string {
	return "vehicles"
}
