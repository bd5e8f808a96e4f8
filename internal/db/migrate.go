package db

import (
	"carbid/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.User{},
		&models.Vehicle{},
		&models.Certification{},
		&models.Auction{},
		&models.Bid{},
		&models.WalletTransaction{},
		&models.Escrow{},
	)
}
