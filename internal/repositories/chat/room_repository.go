package chat

import (
	"errors"
	"strings"

	"creatorhub/internal/models"
	chatmodels "creatorhub/internal/models/chat"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RoomFilter struct {
	Kind     string
	Category string
	Search   string
	ViewerID uint
	Page     int
	PageSize int
}

type RoomRepository interface {
	Create(db *gorm.DB, room *chatmodels.Room) error
	FindByID(db *gorm.DB, id uint) (*chatmodels.Room, error)
	Exists(db *gorm.DB, id uint) (bool, error)
	List(db *gorm.DB, filter RoomFilter) ([]chatmodels.Room, int64, error)
	UpdateDetails(db *gorm.DB, roomID uint, updates map[string]interface{}) error
	UpdateCapacity(db *gorm.DB, roomID uint, maxUsers int) (bool, error)

	// Counter primitives used by admission. Each is one conditional statement.
	IncrementOnline(db *gorm.DB, roomID uint) (bool, error)
	DecrementOnline(db *gorm.DB, roomID uint) error

	ResetOnlineCounts(db *gorm.DB) error
	ReconcileOnlineCount(db *gorm.DB, roomID uint) (int, error)
	FindAllIDs(db *gorm.DB) ([]uint, error)
}

type RoomRepositoryImpl struct{}

func NewRoomRepository() RoomRepository {
	return &RoomRepositoryImpl{}
}

func (r *RoomRepositoryImpl) Create(db *gorm.DB, room *chatmodels.Room) error {
	return db.Create(room).Error
}

func (r *RoomRepositoryImpl) FindByID(db *gorm.DB, id uint) (*chatmodels.Room, error) {
	var room chatmodels.Room
	err := db.Preload("Creator").First(&room, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

func (r *RoomRepositoryImpl) Exists(db *gorm.DB, id uint) (bool, error) {
	var count int64
	err := db.Model(&chatmodels.Room{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// List hides private rooms unless the viewer created them or holds presence there.
func (r *RoomRepositoryImpl) List(db *gorm.DB, filter RoomFilter) ([]chatmodels.Room, int64, error) {
	query := db.Model(&chatmodels.Room{}).
		Where("is_private = ? OR creator_id = ? OR id IN (?)",
			false, filter.ViewerID,
			db.Model(&chatmodels.Presence{}).Select("room_id").Where("user_id = ?", filter.ViewerID),
		)

	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(filter.Search)+"%")
	}

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rooms []chatmodels.Room
	err := query.Preload("Creator").
		Order("online_count DESC, id ASC").
		Limit(filter.PageSize).
		Offset((filter.Page - 1) * filter.PageSize).
		Find(&rooms).Error
	return rooms, total, err
}

func (r *RoomRepositoryImpl) UpdateDetails(db *gorm.DB, roomID uint, updates map[string]interface{}) error {
	result := db.Model(&chatmodels.Room{}).Where("id = ?", roomID).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// UpdateCapacity refuses to shrink below the current online count.
func (r *RoomRepositoryImpl) UpdateCapacity(db *gorm.DB, roomID uint, maxUsers int) (bool, error) {
	result := db.Model(&chatmodels.Room{}).
		Where("id = ? AND online_count <= ?", roomID, maxUsers).
		UpdateColumn("max_users", maxUsers)
	return result.RowsAffected == 1, result.Error
}

// IncrementOnline takes one slot if one is free. The row lock held by the
// UPDATE until commit serializes concurrent admissions to the same room.
func (r *RoomRepositoryImpl) IncrementOnline(db *gorm.DB, roomID uint) (bool, error) {
	result := db.Model(&chatmodels.Room{}).
		Where("id = ? AND online_count < max_users", roomID).
		UpdateColumn("online_count", gorm.Expr("online_count + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *RoomRepositoryImpl) DecrementOnline(db *gorm.DB, roomID uint) error {
	return db.Model(&chatmodels.Room{}).
		Where("id = ? AND online_count > 0", roomID).
		UpdateColumn("online_count", gorm.Expr("online_count - 1")).Error
}

func (r *RoomRepositoryImpl) ResetOnlineCounts(db *gorm.DB) error {
	return db.Session(&gorm.Session{AllowGlobalUpdate: true}).
		Model(&chatmodels.Room{}).
		UpdateColumn("online_count", 0).Error
}

// ReconcileOnlineCount recomputes online_count from presence rows. Run it in a
// transaction: on postgres the room row is locked first, so admissions still in
// flight apply their relative increments on top of the recomputed value.
func (r *RoomRepositoryImpl) ReconcileOnlineCount(db *gorm.DB, roomID uint) (int, error) {
	var room chatmodels.Room
	query := db.Select("id", "online_count")
	if isPostgres(db) {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := query.First(&room, roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrRoomNotFound
		}
		return 0, err
	}

	var live int64
	err := db.Model(&chatmodels.Presence{}).
		Where("room_id = ? AND status <> ?", roomID, models.PresenceOffline).
		Count(&live).Error
	if err != nil {
		return 0, err
	}

	if int(live) != room.OnlineCount {
		err = db.Model(&chatmodels.Room{}).Where("id = ?", roomID).
			UpdateColumn("online_count", live).Error
		if err != nil {
			return 0, err
		}
	}
	return int(live), nil
}

func (r *RoomRepositoryImpl) FindAllIDs(db *gorm.DB) ([]uint, error) {
	var ids []uint
	err := db.Model(&chatmodels.Room{}).Order("id").Pluck("id", &ids).Error
	return ids, err
}
