package chat

import (
	"time"

	"creatorhub/internal/models"
)

type Attachment struct {
	URL      string `gorm:"type:varchar(500)"`
	Name     string `gorm:"type:varchar(255)"`
	Size     int64
	MimeType string `gorm:"type:varchar(100)"`
}

func (a Attachment) IsZero() bool {
	return a.URL == ""
}

type Message struct {
	ID         uint               `gorm:"primaryKey;autoIncrement"`
	RoomID     uint               `gorm:"not null;index:idx_message_room_id,priority:1"`
	SenderID   uint               `gorm:"not null;index"`
	Content    string             `gorm:"type:text"`
	Kind       models.MessageKind `gorm:"type:varchar(10);not null;default:'text'"`
	ReplyToID  *uint              `gorm:"index"`
	Attachment Attachment         `gorm:"embedded;embeddedPrefix:attachment_"`
	CreatedAt  time.Time          `gorm:"autoCreateTime;index:idx_message_room_id,priority:2"`

	Sender  *models.User `gorm:"foreignKey:SenderID"`
	ReplyTo *Message     `gorm:"foreignKey:ReplyToID"`
}

func (Message) TableName() string {
	return "chat_messages"
}
