package chat

import (
	"context"
	"time"

	chatmodels "creatorhub/internal/models/chat"
	chatrepo "creatorhub/internal/repositories/chat"
	"creatorhub/internal/services/dto"
	"creatorhub/pkg/apperrors"

	"gorm.io/gorm"
)

type DirectMessageService interface {
	SendDirectMessage(ctx context.Context, db *gorm.DB, input *dto.AppendDirectInput) (*dto.DirectMessageResponse, error)
	// GetConversation returns the messages between userID and peerID, oldest first.
	GetConversation(ctx context.Context, db *gorm.DB, userID, peerID uint, page, pageSize int) (*dto.PaginatedResponse[dto.DirectMessageResponse], error)
	ListConversations(ctx context.Context, db *gorm.DB, userID uint) ([]dto.ConversationResponse, error)
	// MarkRead stamps read_at once. Only the recipient may mark; repeated calls
	// return the stored state and false.
	MarkRead(ctx context.Context, db *gorm.DB, userID, messageID uint) (*dto.DirectMessageResponse, bool, error)
}

type directMessageService struct {
	*enricher
	dmRepo    chatrepo.DirectMessageRepository
	maxLength int
	now       func() time.Time
}

func NewDirectMessageService(repos Repositories, maxLength int) DirectMessageService {
	return &directMessageService{
		enricher:  newEnricher(repos),
		dmRepo:    repos.DirectMessages,
		maxLength: maxLength,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *directMessageService) SendDirectMessage(ctx context.Context, db *gorm.DB, input *dto.AppendDirectInput) (*dto.DirectMessageResponse, error) {
	if input.RecipientID == input.SenderID {
		return nil, apperrors.ErrMessageToSelf
	}
	content, kind, err := validateContent(input.Content, input.Kind, input.Attachment != nil, s.maxLength)
	if err != nil {
		return nil, err
	}

	db = db.WithContext(ctx)

	exists, err := s.userRepo.Exists(db, input.RecipientID)
	if err != nil {
		return nil, handleChatError(err)
	}
	if !exists {
		return nil, apperrors.ErrRecipientNotFound
	}

	message := &chatmodels.DirectMessage{
		SenderID:    input.SenderID,
		RecipientID: input.RecipientID,
		Content:     content,
		Kind:        kind,
		Attachment:  toAttachment(input.Attachment),
	}
	if err := s.dmRepo.Create(db, message); err != nil {
		return nil, handleChatError(err)
	}

	enriched, err := s.enrichDirect(db, []chatmodels.DirectMessage{*message})
	if err != nil {
		return nil, handleChatError(err)
	}
	return &enriched[0], nil
}

func (s *directMessageService) GetConversation(ctx context.Context, db *gorm.DB, userID, peerID uint, page, pageSize int) (*dto.PaginatedResponse[dto.DirectMessageResponse], error) {
	db = db.WithContext(ctx)
	page, pageSize = normalizePage(page, pageSize, 50)

	exists, err := s.userRepo.Exists(db, peerID)
	if err != nil {
		return nil, handleChatError(err)
	}
	if !exists {
		return nil, apperrors.ErrUserNotFound
	}

	messages, total, err := s.dmRepo.FindConversation(db, userID, peerID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, handleChatError(err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	items, err := s.enrichDirect(db, messages)
	if err != nil {
		return nil, handleChatError(err)
	}
	return &dto.PaginatedResponse[dto.DirectMessageResponse]{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}, nil
}

func (s *directMessageService) ListConversations(ctx context.Context, db *gorm.DB, userID uint) ([]dto.ConversationResponse, error) {
	db = db.WithContext(ctx)

	latest, err := s.dmRepo.FindLatestPerPeer(db, userID)
	if err != nil {
		return nil, handleChatError(err)
	}
	unread, err := s.dmRepo.CountUnreadByPeer(db, userID)
	if err != nil {
		return nil, handleChatError(err)
	}
	unreadByPeer := make(map[uint]int64, len(unread))
	for _, u := range unread {
		unreadByPeer[u.PeerID] = u.Unread
	}

	messages, err := s.enrichDirect(db, latest)
	if err != nil {
		return nil, handleChatError(err)
	}

	conversations := make([]dto.ConversationResponse, 0, len(messages))
	for i, m := range messages {
		peerID := latest[i].Peer(userID)
		peerName := m.RecipientName
		if peerID == m.SenderID {
			peerName = m.SenderName
		}
		conversations = append(conversations, dto.ConversationResponse{
			Peer:        dto.UserSummary{ID: peerID, Name: peerName},
			LastMessage: m,
			UnreadCount: unreadByPeer[peerID],
		})
	}
	return conversations, nil
}

func (s *directMessageService) MarkRead(ctx context.Context, db *gorm.DB, userID, messageID uint) (*dto.DirectMessageResponse, bool, error) {
	db = db.WithContext(ctx)

	message, err := s.dmRepo.FindByID(db, messageID)
	if err != nil {
		return nil, false, handleChatError(err)
	}
	if message.RecipientID != userID {
		return nil, false, apperrors.ErrNotRecipient
	}

	changed, err := s.dmRepo.MarkRead(db, messageID, s.now())
	if err != nil {
		return nil, false, handleChatError(err)
	}
	if changed {
		if message, err = s.dmRepo.FindByID(db, messageID); err != nil {
			return nil, false, handleChatError(err)
		}
	}

	enriched, err := s.enrichDirect(db, []chatmodels.DirectMessage{*message})
	if err != nil {
		return nil, false, handleChatError(err)
	}
	return &enriched[0], changed, nil
}
