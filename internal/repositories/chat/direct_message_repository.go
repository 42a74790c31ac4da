package chat

import (
	"errors"
	"time"

	chatmodels "creatorhub/internal/models/chat"

	"gorm.io/gorm"
)

type UnreadCount struct {
	PeerID uint
	Unread int64
}

type DirectMessageRepository interface {
	Create(db *gorm.DB, message *chatmodels.DirectMessage) error
	FindByID(db *gorm.DB, id uint) (*chatmodels.DirectMessage, error)
	// FindConversation returns messages between a and b, newest first.
	FindConversation(db *gorm.DB, a, b uint, limit, offset int) ([]chatmodels.DirectMessage, int64, error)
	// FindLatestPerPeer returns the last message of every conversation of userID, newest first.
	FindLatestPerPeer(db *gorm.DB, userID uint) ([]chatmodels.DirectMessage, error)
	CountUnreadByPeer(db *gorm.DB, userID uint) ([]UnreadCount, error)
	MarkRead(db *gorm.DB, id uint, now time.Time) (bool, error)
}

type DirectMessageRepositoryImpl struct{}

func NewDirectMessageRepository() DirectMessageRepository {
	return &DirectMessageRepositoryImpl{}
}

func (r *DirectMessageRepositoryImpl) Create(db *gorm.DB, message *chatmodels.DirectMessage) error {
	return db.Create(message).Error
}

func (r *DirectMessageRepositoryImpl) FindByID(db *gorm.DB, id uint) (*chatmodels.DirectMessage, error) {
	var message chatmodels.DirectMessage
	if err := db.First(&message, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDirectMessageNotFound
		}
		return nil, err
	}
	return &message, nil
}

func (r *DirectMessageRepositoryImpl) FindConversation(db *gorm.DB, a, b uint, limit, offset int) ([]chatmodels.DirectMessage, int64, error) {
	const pair = "(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)"

	var total int64
	if err := db.Model(&chatmodels.DirectMessage{}).Where(pair, a, b, b, a).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var messages []chatmodels.DirectMessage
	err := db.Where(pair, a, b, b, a).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	return messages, total, err
}

func (r *DirectMessageRepositoryImpl) FindLatestPerPeer(db *gorm.DB, userID uint) ([]chatmodels.DirectMessage, error) {
	var messages []chatmodels.DirectMessage
	err := db.Raw(`SELECT * FROM chat_direct_messages WHERE id IN (
		SELECT MAX(id) FROM chat_direct_messages
		WHERE sender_id = ? OR recipient_id = ?
		GROUP BY CASE WHEN sender_id = ? THEN recipient_id ELSE sender_id END
	) ORDER BY id DESC`, userID, userID, userID).Scan(&messages).Error
	return messages, err
}

func (r *DirectMessageRepositoryImpl) CountUnreadByPeer(db *gorm.DB, userID uint) ([]UnreadCount, error) {
	var counts []UnreadCount
	err := db.Model(&chatmodels.DirectMessage{}).
		Select("sender_id AS peer_id, COUNT(*) AS unread").
		Where("recipient_id = ? AND read_at IS NULL", userID).
		Group("sender_id").
		Scan(&counts).Error
	return counts, err
}

// MarkRead sets read_at once; later calls leave the first timestamp.
func (r *DirectMessageRepositoryImpl) MarkRead(db *gorm.DB, id uint, now time.Time) (bool, error) {
	result := db.Model(&chatmodels.DirectMessage{}).
		Where("id = ? AND read_at IS NULL", id).
		Update("read_at", now)
	return result.RowsAffected == 1, result.Error
}
