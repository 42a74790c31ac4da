package chat

import (
	"context"
	"errors"
	"time"

	"creatorhub/internal/logger"
	"creatorhub/internal/models"
	chatrepo "creatorhub/internal/repositories/chat"
	"creatorhub/internal/services/dto"
	"creatorhub/pkg/apperrors"

	"gorm.io/gorm"
)

type PresenceService interface {
	// Join admits the user to the room. Fails with CapacityExceeded when the
	// room is full and NotFound when it does not exist.
	Join(ctx context.Context, db *gorm.DB, userID, roomID uint) (*dto.JoinResult, error)
	// Leave marks the user offline in the room. Returns whether the user was live.
	Leave(ctx context.Context, db *gorm.DB, userID, roomID uint) (bool, error)
	// Restore re-admits the user to every room joined and not explicitly left.
	// Full rooms are skipped. Returns the rooms where the user is now live.
	Restore(ctx context.Context, db *gorm.DB, userID uint) ([]uint, error)
	// ChangeStatus applies status to every room the user is live in.
	ChangeStatus(ctx context.Context, db *gorm.DB, userID uint, status models.PresenceStatus) ([]uint, error)
	// DisconnectAll marks the user offline everywhere except rooms in keep.
	// Returns the released rooms. Safe to repeat.
	DisconnectAll(ctx context.Context, db *gorm.DB, userID uint, keep map[uint]struct{}) ([]uint, error)

	IsInRoom(ctx context.Context, db *gorm.DB, userID, roomID uint) (bool, error)
	ListOnline(ctx context.Context, db *gorm.DB, roomID *uint) ([]dto.PresenceResponse, error)

	ResetAll(ctx context.Context, db *gorm.DB) error
	Reconcile(ctx context.Context, db *gorm.DB) (int, error)
}

type presenceService struct {
	roomRepo     chatrepo.RoomRepository
	presenceRepo chatrepo.PresenceRepository
	now          func() time.Time
}

func NewPresenceService(repos Repositories) PresenceService {
	return newPresenceService(repos)
}

func newPresenceService(repos Repositories) *presenceService {
	return &presenceService{
		roomRepo:     repos.Rooms,
		presenceRepo: repos.Presence,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// admit is the atomic admission step and must run inside tx. The presence
// flip and the conditional counter increment commit or roll back together.
func (s *presenceService) admit(tx *gorm.DB, userID, roomID uint) (bool, error) {
	exists, err := s.roomRepo.Exists(tx, roomID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, chatrepo.ErrRoomNotFound
	}

	now := s.now()
	if err := s.presenceRepo.EnsureExists(tx, userID, roomID, now); err != nil {
		return false, err
	}

	flipped, err := s.presenceRepo.MarkLive(tx, userID, roomID, models.PresenceOnline, now)
	if err != nil {
		return false, err
	}
	if !flipped {
		// Already live from another connection: refresh only.
		return false, s.presenceRepo.Touch(tx, userID, roomID, now, map[string]interface{}{"left_at": nil})
	}

	ok, err := s.roomRepo.IncrementOnline(tx, roomID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, apperrors.ErrRoomFull
	}
	return true, nil
}

// release is the inverse of admit and must run inside tx.
func (s *presenceService) release(tx *gorm.DB, userID, roomID uint, explicit bool) (bool, error) {
	now := s.now()
	flipped, err := s.presenceRepo.MarkOffline(tx, userID, roomID, now, explicit)
	if err != nil {
		return false, err
	}
	if flipped {
		return true, s.roomRepo.DecrementOnline(tx, roomID)
	}

	fields := map[string]interface{}{}
	if explicit {
		fields["left_at"] = now
	}
	return false, s.presenceRepo.Touch(tx, userID, roomID, now, fields)
}

func (s *presenceService) Join(ctx context.Context, db *gorm.DB, userID, roomID uint) (*dto.JoinResult, error) {
	db = db.WithContext(ctx)

	tx := db.Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	admitted, err := s.admit(tx, userID, roomID)
	if err != nil {
		if errors.Is(err, apperrors.ErrRoomFull) {
			logger.CtxInfo(ctx, "room admission rejected", "room_id", roomID, "user_id", userID)
		}
		return nil, handleChatError(err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, apperrors.InternalError(err)
	}

	room, err := s.roomRepo.FindByID(db, roomID)
	if err != nil {
		return nil, handleChatError(err)
	}
	online, err := s.ListOnline(ctx, db, &roomID)
	if err != nil {
		return nil, err
	}

	return &dto.JoinResult{
		Room:     toRoomResponse(room),
		Online:   online,
		Admitted: admitted,
	}, nil
}

func (s *presenceService) Leave(ctx context.Context, db *gorm.DB, userID, roomID uint) (bool, error) {
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return false, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	exists, err := s.roomRepo.Exists(tx, roomID)
	if err != nil {
		return false, handleChatError(err)
	}
	if !exists {
		return false, apperrors.ErrRoomNotFound
	}

	// Leaving a room never joined still records presence.
	if err := s.presenceRepo.EnsureExists(tx, userID, roomID, s.now()); err != nil {
		return false, handleChatError(err)
	}

	wasLive, err := s.release(tx, userID, roomID, true)
	if err != nil {
		return false, handleChatError(err)
	}
	if err := tx.Commit().Error; err != nil {
		return false, apperrors.InternalError(err)
	}
	return wasLive, nil
}

func (s *presenceService) Restore(ctx context.Context, db *gorm.DB, userID uint) ([]uint, error) {
	db = db.WithContext(ctx)

	roomIDs, err := s.presenceRepo.FindRestorableRoomIDs(db, userID)
	if err != nil {
		return nil, handleChatError(err)
	}

	restored := make([]uint, 0, len(roomIDs))
	for _, roomID := range roomIDs {
		err := db.Transaction(func(tx *gorm.DB) error {
			_, err := s.admit(tx, userID, roomID)
			return err
		})
		if err != nil {
			if errors.Is(err, apperrors.ErrRoomFull) {
				logger.CtxInfo(ctx, "room full, presence not restored", "room_id", roomID)
				continue
			}
			return restored, handleChatError(err)
		}
		restored = append(restored, roomID)
	}
	return restored, nil
}

func (s *presenceService) ChangeStatus(ctx context.Context, db *gorm.DB, userID uint, status models.PresenceStatus) ([]uint, error) {
	if !status.IsLive() {
		return nil, apperrors.ValidationError(map[string]string{"status": "Must be one of: online, away, busy"})
	}

	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	roomIDs, err := s.presenceRepo.FindLiveRoomIDs(tx, userID)
	if err != nil {
		return nil, handleChatError(err)
	}
	if err := s.presenceRepo.UpdateLiveStatus(tx, userID, status, s.now()); err != nil {
		return nil, handleChatError(err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, apperrors.InternalError(err)
	}
	return roomIDs, nil
}

func (s *presenceService) DisconnectAll(ctx context.Context, db *gorm.DB, userID uint, keep map[uint]struct{}) ([]uint, error) {
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	roomIDs, err := s.presenceRepo.FindLiveRoomIDs(tx, userID)
	if err != nil {
		return nil, handleChatError(err)
	}

	released := make([]uint, 0, len(roomIDs))
	for _, roomID := range roomIDs {
		if _, ok := keep[roomID]; ok {
			continue
		}
		wasLive, err := s.release(tx, userID, roomID, false)
		if err != nil {
			return nil, handleChatError(err)
		}
		if wasLive {
			released = append(released, roomID)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, apperrors.InternalError(err)
	}
	return released, nil
}

func (s *presenceService) IsInRoom(ctx context.Context, db *gorm.DB, userID, roomID uint) (bool, error) {
	live, err := s.presenceRepo.IsLive(db.WithContext(ctx), userID, roomID)
	if err != nil {
		return false, handleChatError(err)
	}
	return live, nil
}

func (s *presenceService) ListOnline(ctx context.Context, db *gorm.DB, roomID *uint) ([]dto.PresenceResponse, error) {
	presences, err := s.presenceRepo.ListOnline(db.WithContext(ctx), roomID)
	if err != nil {
		return nil, handleChatError(err)
	}

	items := make([]dto.PresenceResponse, 0, len(presences))
	for _, p := range presences {
		items = append(items, toPresenceResponse(p))
	}
	return items, nil
}

// ResetAll marks everyone offline and zeroes counters. Used at startup, when
// no connection can still be open.
func (s *presenceService) ResetAll(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.presenceRepo.ResetAll(tx, s.now()); err != nil {
			return err
		}
		return s.roomRepo.ResetOnlineCounts(tx)
	})
}

// Reconcile recomputes every room's online counter from presence rows and
// returns how many rooms were checked.
func (s *presenceService) Reconcile(ctx context.Context, db *gorm.DB) (int, error) {
	db = db.WithContext(ctx)

	roomIDs, err := s.roomRepo.FindAllIDs(db)
	if err != nil {
		return 0, err
	}

	checked := 0
	for _, roomID := range roomIDs {
		if ctx.Err() != nil {
			return checked, ctx.Err()
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			_, err := s.roomRepo.ReconcileOnlineCount(tx, roomID)
			return err
		})
		if err != nil && !errors.Is(err, chatrepo.ErrRoomNotFound) {
			return checked, err
		}
		checked++
	}
	return checked, nil
}
