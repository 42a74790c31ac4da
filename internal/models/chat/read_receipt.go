package chat

import (
	"time"

	"creatorhub/internal/models"
)

type ReadReceipt struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	MessageID uint      `gorm:"not null;uniqueIndex:idx_receipt_message_user,priority:1"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_receipt_message_user,priority:2;index"`
	ReadAt    time.Time `gorm:"not null"`

	User *models.User `gorm:"foreignKey:UserID"`
}

func (ReadReceipt) TableName() string {
	return "chat_read_receipts"
}
