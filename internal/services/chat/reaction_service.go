package chat

import (
	"context"
	"strings"

	chatmodels "creatorhub/internal/models/chat"
	"creatorhub/internal/services/dto"
	"creatorhub/pkg/apperrors"

	"gorm.io/gorm"
)

const maxEmojiBytes = 32

type ReactionService interface {
	// AddReaction is idempotent per (message, user, emoji).
	AddReaction(ctx context.Context, db *gorm.DB, userID, messageID uint, emoji string) (*dto.MessageReactionsResponse, error)
	// RemoveReaction is a no-op when the reaction does not exist.
	RemoveReaction(ctx context.Context, db *gorm.DB, userID, messageID uint, emoji string) (*dto.MessageReactionsResponse, error)
	GetReactions(ctx context.Context, db *gorm.DB, messageID uint) (*dto.MessageReactionsResponse, error)
}

type reactionService struct {
	*enricher
}

func NewReactionService(repos Repositories) ReactionService {
	return &reactionService{enricher: newEnricher(repos)}
}

func normalizeEmoji(emoji string) (string, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return "", apperrors.ValidationError(map[string]string{"emoji": "This field is required"})
	}
	if len(emoji) > maxEmojiBytes {
		return "", apperrors.ValidationError(map[string]string{"emoji": "Must be at most 32 bytes"})
	}
	return emoji, nil
}

func (s *reactionService) AddReaction(ctx context.Context, db *gorm.DB, userID, messageID uint, emoji string) (*dto.MessageReactionsResponse, error) {
	emoji, err := normalizeEmoji(emoji)
	if err != nil {
		return nil, err
	}
	db = db.WithContext(ctx)

	message, err := s.messageRepo.FindByID(db, messageID)
	if err != nil {
		return nil, handleChatError(err)
	}

	if _, err := s.reactionRepo.Add(db, &chatmodels.Reaction{
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
	}); err != nil {
		return nil, handleChatError(err)
	}
	return s.view(db, message)
}

func (s *reactionService) RemoveReaction(ctx context.Context, db *gorm.DB, userID, messageID uint, emoji string) (*dto.MessageReactionsResponse, error) {
	emoji, err := normalizeEmoji(emoji)
	if err != nil {
		return nil, err
	}
	db = db.WithContext(ctx)

	message, err := s.messageRepo.FindByID(db, messageID)
	if err != nil {
		return nil, handleChatError(err)
	}

	if _, err := s.reactionRepo.Remove(db, messageID, userID, emoji); err != nil {
		return nil, handleChatError(err)
	}
	return s.view(db, message)
}

func (s *reactionService) GetReactions(ctx context.Context, db *gorm.DB, messageID uint) (*dto.MessageReactionsResponse, error) {
	db = db.WithContext(ctx)

	message, err := s.messageRepo.FindByID(db, messageID)
	if err != nil {
		return nil, handleChatError(err)
	}
	return s.view(db, message)
}

func (s *reactionService) view(db *gorm.DB, message *chatmodels.Message) (*dto.MessageReactionsResponse, error) {
	grouped, err := s.reactionsFor(db, []uint{message.ID})
	if err != nil {
		return nil, handleChatError(err)
	}
	return &dto.MessageReactionsResponse{
		MessageID: message.ID,
		RoomID:    message.RoomID,
		Reactions: grouped[message.ID],
	}, nil
}
