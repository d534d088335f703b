package repository

import (
	"fmt"

	"github.com/amirphl/humanflow/models"
	"gorm.io/gorm"
)

// Migrate creates or updates the tables of every persisted model
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Upload{},
		&models.Contact{},
		&models.MessageTemplate{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
