package models

import (
	"time"

	"gorm.io/datatypes"
)

// Certification is the per-vehicle forensic record. It is owned by the
// inspection pipeline; the dispute resolver reads it and never writes it.
type Certification struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	VehicleID uint64 `gorm:"not null;uniqueIndex"`

	Score  float64 `gorm:"not null;default:0"`
	Status string  `gorm:"type:varchar(20);not null;default:'pending'"`

	// Pre-disclosed fault flags, a JSON array of strings. A non-empty list
	// means mechanical issues were disclosed before sale.
	FaultFlags datatypes.JSON `gorm:"type:jsonb"`
	MediaPack  datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Certification) TableName() string {
	return "certifications"
}
