package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"creatorhub/internal/models"
	chatmodels "creatorhub/internal/models/chat"
	chatrepo "creatorhub/internal/repositories/chat"
	"creatorhub/internal/services/dto"
	"creatorhub/pkg/apperrors"

	"gorm.io/gorm"
)

// PublishFunc receives a committed message. It is called while the room's
// append lock is held, so it must only enqueue.
type PublishFunc func(msg *dto.MessageResponse)

type MessageService interface {
	SendRoomMessage(ctx context.Context, db *gorm.DB, input *dto.AppendMessageInput, publish PublishFunc) (*dto.MessageResponse, error)
	GetHistory(ctx context.Context, db *gorm.DB, userID, roomID uint, page, pageSize int) (*dto.PaginatedResponse[dto.MessageResponse], error)
	GetMessage(ctx context.Context, db *gorm.DB, messageID uint) (*dto.MessageResponse, error)
}

type messageService struct {
	*enricher
	roomRepo     chatrepo.RoomRepository
	presenceRepo chatrepo.PresenceRepository
	maxLength    int
	roomLocks    *stripedMutex
}

func NewMessageService(repos Repositories, maxLength int) MessageService {
	return &messageService{
		enricher:     newEnricher(repos),
		roomRepo:     repos.Rooms,
		presenceRepo: repos.Presence,
		maxLength:    maxLength,
		roomLocks:    newStripedMutex(64),
	}
}

// validateContent checks kind and content length; an attachment may stand in
// for empty content.
func validateContent(content, kind string, hasAttachment bool, maxLength int) (string, models.MessageKind, error) {
	if kind == "" {
		kind = string(models.MessageKindText)
	}
	k := models.MessageKind(kind)
	if !k.IsValid() {
		return "", "", apperrors.ValidationError(map[string]string{"kind": "Must be one of: text, image, file"})
	}

	content = strings.TrimSpace(content)
	if content == "" && !hasAttachment {
		return "", "", apperrors.ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > maxLength {
		return "", "", apperrors.ErrMessageTooLong
	}
	return content, k, nil
}

func toAttachment(in *dto.AttachmentInput) chatmodels.Attachment {
	if in == nil {
		return chatmodels.Attachment{}
	}
	return chatmodels.Attachment{
		URL:      in.URL,
		Name:     in.Name,
		Size:     in.Size,
		MimeType: in.MimeType,
	}
}

func (s *messageService) SendRoomMessage(ctx context.Context, db *gorm.DB, input *dto.AppendMessageInput, publish PublishFunc) (*dto.MessageResponse, error) {
	content, kind, err := validateContent(input.Content, input.Kind, input.Attachment != nil, s.maxLength)
	if err != nil {
		return nil, err
	}

	db = db.WithContext(ctx)

	exists, err := s.roomRepo.Exists(db, input.RoomID)
	if err != nil {
		return nil, handleChatError(err)
	}
	if !exists {
		return nil, apperrors.ErrRoomNotFound
	}

	message := &chatmodels.Message{
		RoomID:     input.RoomID,
		SenderID:   input.SenderID,
		Content:    content,
		Kind:       kind,
		ReplyToID:  input.ReplyToID,
		Attachment: toAttachment(input.Attachment),
	}

	// Insert and publish under one per-room lock so local fan-out order matches
	// id order.
	unlock := s.roomLocks.Lock(input.RoomID)
	defer unlock()

	// The presence check and the insert commit together: a concurrent leave
	// either lands before (and the send fails) or after the message.
	err = db.Transaction(func(tx *gorm.DB) error {
		live, err := s.presenceRepo.LockLive(tx, input.SenderID, input.RoomID)
		if err != nil {
			return err
		}
		if !live {
			return apperrors.ErrNotInRoom
		}

		if input.ReplyToID != nil {
			if _, err := s.messageRepo.FindInRoom(tx, input.RoomID, *input.ReplyToID); err != nil {
				if errors.Is(err, chatrepo.ErrMessageNotFound) {
					return apperrors.ErrInvalidReply
				}
				return err
			}
		}

		return s.messageRepo.Create(tx, message)
	})
	if err != nil {
		return nil, handleChatError(err)
	}

	enriched, err := s.enrichMessages(db, []chatmodels.Message{*message})
	if err != nil {
		return nil, handleChatError(err)
	}
	resp := &enriched[0]

	if publish != nil {
		publish(resp)
	}
	return resp, nil
}

func (s *messageService) GetHistory(ctx context.Context, db *gorm.DB, userID, roomID uint, page, pageSize int) (*dto.PaginatedResponse[dto.MessageResponse], error) {
	db = db.WithContext(ctx)
	page, pageSize = normalizePage(page, pageSize, 50)

	room, err := s.roomRepo.FindByID(db, roomID)
	if err != nil {
		return nil, handleChatError(err)
	}
	if room.IsPrivate && room.CreatorID != userID {
		if _, err := s.presenceRepo.Find(db, userID, roomID); err != nil {
			if errors.Is(err, chatrepo.ErrPresenceNotFound) {
				return nil, apperrors.ErrNotInRoom
			}
			return nil, handleChatError(err)
		}
	}

	messages, total, err := s.messageRepo.FindByRoom(db, roomID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, handleChatError(err)
	}

	// Stored newest first; clients read oldest first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	items, err := s.enrichMessages(db, messages)
	if err != nil {
		return nil, handleChatError(err)
	}

	return &dto.PaginatedResponse[dto.MessageResponse]{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}, nil
}

func (s *messageService) GetMessage(ctx context.Context, db *gorm.DB, messageID uint) (*dto.MessageResponse, error) {
	db = db.WithContext(ctx)

	message, err := s.messageRepo.FindByID(db, messageID)
	if err != nil {
		return nil, handleChatError(err)
	}
	enriched, err := s.enrichMessages(db, []chatmodels.Message{*message})
	if err != nil {
		return nil, handleChatError(err)
	}
	return &enriched[0], nil
}

// stripedMutex serializes work per key over a fixed set of locks.
type stripedMutex struct {
	stripes []sync.Mutex
}

func newStripedMutex(n int) *stripedMutex {
	return &stripedMutex{stripes: make([]sync.Mutex, n)}
}

func (m *stripedMutex) Lock(key uint) func() {
	mu := &m.stripes[int(key%uint(len(m.stripes)))]
	mu.Lock()
	return mu.Unlock
}
