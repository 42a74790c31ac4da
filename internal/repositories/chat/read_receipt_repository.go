package chat

import (
	"errors"

	chatmodels "creatorhub/internal/models/chat"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReadReceiptRepository interface {
	// Upsert stores the receipt; an existing read_at only moves forward.
	Upsert(db *gorm.DB, receipt *chatmodels.ReadReceipt) error
	Find(db *gorm.DB, messageID, userID uint) (*chatmodels.ReadReceipt, error)
	FindByMessage(db *gorm.DB, messageID uint) ([]chatmodels.ReadReceipt, error)
	CountByMessages(db *gorm.DB, messageIDs []uint) (map[uint]int64, error)
}

type ReadReceiptRepositoryImpl struct{}

func NewReadReceiptRepository() ReadReceiptRepository {
	return &ReadReceiptRepositoryImpl{}
}

func (r *ReadReceiptRepositoryImpl) Upsert(db *gorm.DB, receipt *chatmodels.ReadReceipt) error {
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"read_at": gorm.Expr("excluded.read_at"),
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			gorm.Expr("chat_read_receipts.read_at < excluded.read_at"),
		}},
	}).Create(receipt).Error
}

func (r *ReadReceiptRepositoryImpl) Find(db *gorm.DB, messageID, userID uint) (*chatmodels.ReadReceipt, error) {
	var receipt chatmodels.ReadReceipt
	err := db.Where("message_id = ? AND user_id = ?", messageID, userID).First(&receipt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReceiptNotFound
		}
		return nil, err
	}
	return &receipt, nil
}

func (r *ReadReceiptRepositoryImpl) FindByMessage(db *gorm.DB, messageID uint) ([]chatmodels.ReadReceipt, error) {
	var receipts []chatmodels.ReadReceipt
	err := db.Preload("User").
		Where("message_id = ?", messageID).
		Order("read_at ASC, id ASC").
		Find(&receipts).Error
	return receipts, err
}

func (r *ReadReceiptRepositoryImpl) CountByMessages(db *gorm.DB, messageIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(messageIDs))
	if len(messageIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		MessageID uint
		Total     int64
	}
	err := db.Model(&chatmodels.ReadReceipt{}).
		Select("message_id, COUNT(*) AS total").
		Where("message_id IN ?", messageIDs).
		Group("message_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.MessageID] = row.Total
	}
	return counts, nil
}
