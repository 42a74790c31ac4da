package chat

import (
	"errors"
	"time"

	"creatorhub/internal/models"
	chatmodels "creatorhub/internal/models/chat"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PresenceRepository interface {
	// EnsureExists inserts an offline row for (user, room) unless one exists.
	EnsureExists(db *gorm.DB, userID, roomID uint, now time.Time) error
	// MarkLive flips an offline row to status; false means it was already live.
	MarkLive(db *gorm.DB, userID, roomID uint, status models.PresenceStatus, now time.Time) (bool, error)
	// MarkOffline flips a live row to offline; false means it was already offline.
	MarkOffline(db *gorm.DB, userID, roomID uint, now time.Time, explicit bool) (bool, error)
	Touch(db *gorm.DB, userID, roomID uint, now time.Time, fields map[string]interface{}) error

	Find(db *gorm.DB, userID, roomID uint) (*chatmodels.Presence, error)
	IsLive(db *gorm.DB, userID, roomID uint) (bool, error)
	// LockLive is IsLive that also holds the row against concurrent release
	// until the surrounding transaction ends (postgres).
	LockLive(db *gorm.DB, userID, roomID uint) (bool, error)
	FindLiveRoomIDs(db *gorm.DB, userID uint) ([]uint, error)
	FindRestorableRoomIDs(db *gorm.DB, userID uint) ([]uint, error)
	UpdateLiveStatus(db *gorm.DB, userID uint, status models.PresenceStatus, now time.Time) error
	ListOnline(db *gorm.DB, roomID *uint) ([]chatmodels.Presence, error)
	ResetAll(db *gorm.DB, now time.Time) (int64, error)
}

type PresenceRepositoryImpl struct{}

func NewPresenceRepository() PresenceRepository {
	return &PresenceRepositoryImpl{}
}

func (r *PresenceRepositoryImpl) EnsureExists(db *gorm.DB, userID, roomID uint, now time.Time) error {
	presence := &chatmodels.Presence{
		UserID:   userID,
		RoomID:   roomID,
		Status:   models.PresenceOffline,
		LastSeen: now,
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "room_id"}},
		DoNothing: true,
	}).Create(presence).Error
}

func (r *PresenceRepositoryImpl) MarkLive(db *gorm.DB, userID, roomID uint, status models.PresenceStatus, now time.Time) (bool, error) {
	result := db.Model(&chatmodels.Presence{}).
		Where("user_id = ? AND room_id = ? AND status = ?", userID, roomID, models.PresenceOffline).
		Updates(map[string]interface{}{
			"status":    status,
			"last_seen": now,
			"left_at":   nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *PresenceRepositoryImpl) MarkOffline(db *gorm.DB, userID, roomID uint, now time.Time, explicit bool) (bool, error) {
	updates := map[string]interface{}{
		"status":    models.PresenceOffline,
		"last_seen": now,
	}
	if explicit {
		updates["left_at"] = now
	}
	result := db.Model(&chatmodels.Presence{}).
		Where("user_id = ? AND room_id = ? AND status <> ?", userID, roomID, models.PresenceOffline).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Touch refreshes last_seen and applies extra column updates without a status transition.
func (r *PresenceRepositoryImpl) Touch(db *gorm.DB, userID, roomID uint, now time.Time, fields map[string]interface{}) error {
	updates := map[string]interface{}{"last_seen": now}
	for k, v := range fields {
		updates[k] = v
	}
	return db.Model(&chatmodels.Presence{}).
		Where("user_id = ? AND room_id = ?", userID, roomID).
		Updates(updates).Error
}

func (r *PresenceRepositoryImpl) Find(db *gorm.DB, userID, roomID uint) (*chatmodels.Presence, error) {
	var presence chatmodels.Presence
	err := db.Where("user_id = ? AND room_id = ?", userID, roomID).First(&presence).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPresenceNotFound
		}
		return nil, err
	}
	return &presence, nil
}

func (r *PresenceRepositoryImpl) IsLive(db *gorm.DB, userID, roomID uint) (bool, error) {
	var count int64
	err := db.Model(&chatmodels.Presence{}).
		Where("user_id = ? AND room_id = ? AND status <> ?", userID, roomID, models.PresenceOffline).
		Count(&count).Error
	return count > 0, err
}

func (r *PresenceRepositoryImpl) LockLive(db *gorm.DB, userID, roomID uint) (bool, error) {
	query := db.Model(&chatmodels.Presence{}).Select("id")
	if isPostgres(db) {
		query = query.Clauses(clause.Locking{Strength: "SHARE"})
	}

	var ids []uint
	err := query.
		Where("user_id = ? AND room_id = ? AND status <> ?", userID, roomID, models.PresenceOffline).
		Limit(1).
		Pluck("id", &ids).Error
	return len(ids) > 0, err
}

func (r *PresenceRepositoryImpl) FindLiveRoomIDs(db *gorm.DB, userID uint) ([]uint, error) {
	var ids []uint
	err := db.Model(&chatmodels.Presence{}).
		Where("user_id = ? AND status <> ?", userID, models.PresenceOffline).
		Order("room_id").
		Pluck("room_id", &ids).Error
	return ids, err
}

// FindRestorableRoomIDs lists rooms the user joined and never explicitly left.
func (r *PresenceRepositoryImpl) FindRestorableRoomIDs(db *gorm.DB, userID uint) ([]uint, error) {
	var ids []uint
	err := db.Model(&chatmodels.Presence{}).
		Where("user_id = ? AND left_at IS NULL", userID).
		Order("room_id").
		Pluck("room_id", &ids).Error
	return ids, err
}

// UpdateLiveStatus moves every live row of the user to status. Offline rows are untouched.
func (r *PresenceRepositoryImpl) UpdateLiveStatus(db *gorm.DB, userID uint, status models.PresenceStatus, now time.Time) error {
	return db.Model(&chatmodels.Presence{}).
		Where("user_id = ? AND status <> ?", userID, models.PresenceOffline).
		Updates(map[string]interface{}{
			"status":    status,
			"last_seen": now,
		}).Error
}

func (r *PresenceRepositoryImpl) ListOnline(db *gorm.DB, roomID *uint) ([]chatmodels.Presence, error) {
	query := db.Preload("User").Where("status <> ?", models.PresenceOffline)
	if roomID != nil {
		query = query.Where("room_id = ?", *roomID)
	}

	var presences []chatmodels.Presence
	err := query.Order("room_id ASC, last_seen DESC").Find(&presences).Error
	return presences, err
}

func (r *PresenceRepositoryImpl) ResetAll(db *gorm.DB, now time.Time) (int64, error) {
	result := db.Model(&chatmodels.Presence{}).
		Where("status <> ?", models.PresenceOffline).
		Updates(map[string]interface{}{
			"status":    models.PresenceOffline,
			"last_seen": now,
		})
	return result.RowsAffected, result.Error
}
