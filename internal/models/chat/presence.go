package chat

import (
	"time"

	"creatorhub/internal/models"
)

// Presence is the (user, room) association. LeftAt is set by an explicit leave
// and cleared by the next join; a disconnect leaves it untouched.
type Presence struct {
	models.BaseModel
	UserID   uint                  `gorm:"not null;uniqueIndex:idx_presence_user_room"`
	RoomID   uint                  `gorm:"not null;uniqueIndex:idx_presence_user_room;index"`
	Status   models.PresenceStatus `gorm:"type:varchar(10);not null;default:'offline';index"`
	LastSeen time.Time             `gorm:"not null"`
	LeftAt   *time.Time

	User *models.User `gorm:"foreignKey:UserID"`
	Room *Room        `gorm:"foreignKey:RoomID"`
}

func (Presence) TableName() string {
	return "chat_presences"
}
