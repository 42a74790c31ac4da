package database

import (
	"fmt"

	"creatorhub/internal/models"
	chatmodels "creatorhub/internal/models/chat"

	"gorm.io/gorm"
)

// AutoMigrate creates or updates the chat schema.
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&chatmodels.Room{},
		&chatmodels.Presence{},
		&chatmodels.Message{},
		&chatmodels.DirectMessage{},
		&chatmodels.Reaction{},
		&chatmodels.ReadReceipt{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
