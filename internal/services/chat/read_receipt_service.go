package chat

import (
	"context"
	"time"

	chatmodels "creatorhub/internal/models/chat"
	chatrepo "creatorhub/internal/repositories/chat"
	"creatorhub/internal/services/dto"

	"gorm.io/gorm"
)

type ReadReceiptService interface {
	// MarkRead upserts the receipt. The stored read_at never moves backwards.
	MarkRead(ctx context.Context, db *gorm.DB, userID, messageID uint) (*dto.ReceiptResponse, error)
	GetReceipts(ctx context.Context, db *gorm.DB, messageID uint) ([]dto.ReceiptResponse, error)
}

type readReceiptService struct {
	messageRepo chatrepo.MessageRepository
	receiptRepo chatrepo.ReadReceiptRepository
	now         func() time.Time
}

func NewReadReceiptService(repos Repositories) ReadReceiptService {
	return &readReceiptService{
		messageRepo: repos.Messages,
		receiptRepo: repos.Receipts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *readReceiptService) MarkRead(ctx context.Context, db *gorm.DB, userID, messageID uint) (*dto.ReceiptResponse, error) {
	db = db.WithContext(ctx)

	message, err := s.messageRepo.FindByID(db, messageID)
	if err != nil {
		return nil, handleChatError(err)
	}

	if err := s.receiptRepo.Upsert(db, &chatmodels.ReadReceipt{
		MessageID: messageID,
		UserID:    userID,
		ReadAt:    s.now(),
	}); err != nil {
		return nil, handleChatError(err)
	}

	stored, err := s.receiptRepo.Find(db, messageID, userID)
	if err != nil {
		return nil, handleChatError(err)
	}

	return &dto.ReceiptResponse{
		MessageID: messageID,
		RoomID:    message.RoomID,
		UserID:    userID,
		ReadAt:    stored.ReadAt,
	}, nil
}

func (s *readReceiptService) GetReceipts(ctx context.Context, db *gorm.DB, messageID uint) ([]dto.ReceiptResponse, error) {
	db = db.WithContext(ctx)

	message, err := s.messageRepo.FindByID(db, messageID)
	if err != nil {
		return nil, handleChatError(err)
	}

	receipts, err := s.receiptRepo.FindByMessage(db, messageID)
	if err != nil {
		return nil, handleChatError(err)
	}

	items := make([]dto.ReceiptResponse, 0, len(receipts))
	for _, r := range receipts {
		name := ""
		if r.User != nil {
			name = r.User.Name
		}
		items = append(items, dto.ReceiptResponse{
			MessageID: r.MessageID,
			RoomID:    message.RoomID,
			UserID:    r.UserID,
			Name:      name,
			ReadAt:    r.ReadAt,
		})
	}
	return items, nil
}
