package chat

import (
	"creatorhub/internal/models"
)

type Room struct {
	models.BaseModel
	Name        string          `gorm:"type:varchar(100);not null"`
	Kind        models.RoomKind `gorm:"type:varchar(20);not null;index"`
	Category    string          `gorm:"type:varchar(50);not null;index"`
	IsPrivate   bool            `gorm:"not null;default:false"`
	MaxUsers    int             `gorm:"not null"`
	OnlineCount int             `gorm:"not null;default:0"`
	CreatorID   uint            `gorm:"not null;index"`

	Creator *models.User `gorm:"foreignKey:CreatorID"`
}

func (Room) TableName() string {
	return "chat_rooms"
}

func (r *Room) IsFull() bool {
	return r.OnlineCount >= r.MaxUsers
}
