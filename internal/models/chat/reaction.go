package chat

import (
	"time"

	"creatorhub/internal/models"
)

type Reaction struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	MessageID uint      `gorm:"not null;uniqueIndex:idx_reaction_natural_key,priority:1"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_reaction_natural_key,priority:2;index"`
	Emoji     string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_reaction_natural_key,priority:3"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	User *models.User `gorm:"foreignKey:UserID"`
}

func (Reaction) TableName() string {
	return "chat_reactions"
}
