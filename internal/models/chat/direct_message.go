package chat

import (
	"time"

	"creatorhub/internal/models"
)

type DirectMessage struct {
	ID          uint               `gorm:"primaryKey;autoIncrement"`
	SenderID    uint               `gorm:"not null;index:idx_dm_pair,priority:1"`
	RecipientID uint               `gorm:"not null;index:idx_dm_pair,priority:2;index"`
	Content     string             `gorm:"type:text"`
	Kind        models.MessageKind `gorm:"type:varchar(10);not null;default:'text'"`
	Attachment  Attachment         `gorm:"embedded;embeddedPrefix:attachment_"`
	ReadAt      *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime"`

	Sender    *models.User `gorm:"foreignKey:SenderID"`
	Recipient *models.User `gorm:"foreignKey:RecipientID"`
}

func (DirectMessage) TableName() string {
	return "chat_direct_messages"
}

// Peer returns the other side of the conversation for userID.
func (m *DirectMessage) Peer(userID uint) uint {
	if m.SenderID == userID {
		return m.RecipientID
	}
	return m.SenderID
}
