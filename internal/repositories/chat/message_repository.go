package chat

import (
	"errors"

	chatmodels "creatorhub/internal/models/chat"

	"gorm.io/gorm"
)

type MessageRepository interface {
	Create(db *gorm.DB, message *chatmodels.Message) error
	FindByID(db *gorm.DB, id uint) (*chatmodels.Message, error)
	FindInRoom(db *gorm.DB, roomID, id uint) (*chatmodels.Message, error)
	// FindByRoom returns the newest messages first.
	FindByRoom(db *gorm.DB, roomID uint, limit, offset int) ([]chatmodels.Message, int64, error)
	FindByIDs(db *gorm.DB, ids []uint) ([]chatmodels.Message, error)
}

type MessageRepositoryImpl struct{}

func NewMessageRepository() MessageRepository {
	return &MessageRepositoryImpl{}
}

func (r *MessageRepositoryImpl) Create(db *gorm.DB, message *chatmodels.Message) error {
	return db.Create(message).Error
}

func (r *MessageRepositoryImpl) FindByID(db *gorm.DB, id uint) (*chatmodels.Message, error) {
	var message chatmodels.Message
	if err := db.First(&message, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &message, nil
}

func (r *MessageRepositoryImpl) FindInRoom(db *gorm.DB, roomID, id uint) (*chatmodels.Message, error) {
	var message chatmodels.Message
	err := db.Where("id = ? AND room_id = ?", id, roomID).First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &message, nil
}

func (r *MessageRepositoryImpl) FindByRoom(db *gorm.DB, roomID uint, limit, offset int) ([]chatmodels.Message, int64, error) {
	var total int64
	if err := db.Model(&chatmodels.Message{}).Where("room_id = ?", roomID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var messages []chatmodels.Message
	err := db.Where("room_id = ?", roomID).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	return messages, total, err
}

func (r *MessageRepositoryImpl) FindByIDs(db *gorm.DB, ids []uint) ([]chatmodels.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var messages []chatmodels.Message
	err := db.Where("id IN ?", ids).Find(&messages).Error
	return messages, err
}
