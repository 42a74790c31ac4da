package chat

import (
	chatmodels "creatorhub/internal/models/chat"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReactionRepository interface {
	// Add inserts the (message, user, emoji) triple; false means it already existed.
	Add(db *gorm.DB, reaction *chatmodels.Reaction) (bool, error)
	// Remove deletes the triple; false means there was nothing to delete.
	Remove(db *gorm.DB, messageID, userID uint, emoji string) (bool, error)
	// FindByMessages returns reactions with users, in insertion order.
	FindByMessages(db *gorm.DB, messageIDs []uint) ([]chatmodels.Reaction, error)
}

type ReactionRepositoryImpl struct{}

func NewReactionRepository() ReactionRepository {
	return &ReactionRepositoryImpl{}
}

func (r *ReactionRepositoryImpl) Add(db *gorm.DB, reaction *chatmodels.Reaction) (bool, error) {
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}, {Name: "emoji"}},
		DoNothing: true,
	}).Create(reaction)
	if result.Error != nil {
		if IsUniqueViolation(result.Error) {
			return false, nil
		}
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *ReactionRepositoryImpl) Remove(db *gorm.DB, messageID, userID uint, emoji string) (bool, error) {
	result := db.Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
		Delete(&chatmodels.Reaction{})
	return result.RowsAffected > 0, result.Error
}

func (r *ReactionRepositoryImpl) FindByMessages(db *gorm.DB, messageIDs []uint) ([]chatmodels.Reaction, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	var reactions []chatmodels.Reaction
	err := db.Preload("User").
		Where("message_id IN ?", messageIDs).
		Order("id ASC").
		Find(&reactions).Error
	return reactions, err
}
