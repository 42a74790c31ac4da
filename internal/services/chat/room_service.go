package chat

import (
	"context"
	"fmt"
	"strings"

	"creatorhub/internal/models"
	chatmodels "creatorhub/internal/models/chat"
	chatrepo "creatorhub/internal/repositories/chat"
	"creatorhub/internal/services/dto"
	"creatorhub/pkg/apperrors"

	"gorm.io/gorm"
)

// RoomLimits bounds room capacity at creation and update.
type RoomLimits struct {
	MinCapacity int
	MaxCapacity int
}

type RoomService interface {
	// CreateRoom stores the room and admits the creator to it.
	CreateRoom(ctx context.Context, db *gorm.DB, creatorID uint, req *dto.CreateRoomRequest) (*dto.RoomResponse, error)
	GetRoom(ctx context.Context, db *gorm.DB, roomID uint) (*dto.RoomResponse, error)
	ListRooms(ctx context.Context, db *gorm.DB, viewerID uint, req *dto.RoomListRequest) (*dto.PaginatedResponse[dto.RoomResponse], error)
	UpdateRoom(ctx context.Context, db *gorm.DB, userID, roomID uint, req *dto.UpdateRoomRequest) (*dto.RoomResponse, error)
}

type roomService struct {
	roomRepo chatrepo.RoomRepository
	presence *presenceService
	limits   RoomLimits
}

func NewRoomService(repos Repositories, limits RoomLimits) RoomService {
	return &roomService{
		roomRepo: repos.Rooms,
		presence: newPresenceService(repos),
		limits:   limits,
	}
}

func (s *roomService) checkCapacity(capacity int) error {
	if capacity < s.limits.MinCapacity || capacity > s.limits.MaxCapacity {
		return apperrors.ValidationError(map[string]string{
			"maxUsers": fmt.Sprintf("Must be between %d and %d", s.limits.MinCapacity, s.limits.MaxCapacity),
		})
	}
	return nil
}

// roomText trims name and category and rejects values that end up empty.
// A nil pointer means the field is not being set.
func roomText(name, category *string) error {
	fields := map[string]string{}
	if name != nil {
		*name = strings.TrimSpace(*name)
		if *name == "" {
			fields["name"] = "This field cannot be blank"
		}
	}
	if category != nil {
		*category = strings.TrimSpace(*category)
		if *category == "" {
			fields["category"] = "This field cannot be blank"
		}
	}
	if len(fields) > 0 {
		return apperrors.ValidationError(fields)
	}
	return nil
}

func (s *roomService) CreateRoom(ctx context.Context, db *gorm.DB, creatorID uint, req *dto.CreateRoomRequest) (*dto.RoomResponse, error) {
	if err := s.checkCapacity(req.MaxUsers); err != nil {
		return nil, err
	}
	if !models.RoomKind(req.Kind).IsValid() {
		return nil, apperrors.ValidationError(map[string]string{"kind": "Must be one of: topic, region"})
	}
	name, category := req.Name, req.Category
	if err := roomText(&name, &category); err != nil {
		return nil, err
	}

	db = db.WithContext(ctx)
	room := &chatmodels.Room{
		Name:      name,
		Kind:      models.RoomKind(req.Kind),
		Category:  category,
		IsPrivate: req.IsPrivate,
		MaxUsers:  req.MaxUsers,
		CreatorID: creatorID,
	}

	// The creator takes the first slot.
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := s.roomRepo.Create(tx, room); err != nil {
			return err
		}
		_, err := s.presence.admit(tx, creatorID, room.ID)
		return err
	})
	if err != nil {
		return nil, handleChatError(err)
	}

	return s.GetRoom(ctx, db, room.ID)
}

func (s *roomService) GetRoom(ctx context.Context, db *gorm.DB, roomID uint) (*dto.RoomResponse, error) {
	room, err := s.roomRepo.FindByID(db.WithContext(ctx), roomID)
	if err != nil {
		return nil, handleChatError(err)
	}
	resp := toRoomResponse(room)
	return &resp, nil
}

func (s *roomService) ListRooms(ctx context.Context, db *gorm.DB, viewerID uint, req *dto.RoomListRequest) (*dto.PaginatedResponse[dto.RoomResponse], error) {
	page, pageSize := normalizePage(req.Page, req.PageSize, 20)

	rooms, total, err := s.roomRepo.List(db.WithContext(ctx), chatrepo.RoomFilter{
		Kind:     req.Kind,
		Category: req.Category,
		Search:   req.Search,
		ViewerID: viewerID,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return nil, handleChatError(err)
	}

	items := make([]dto.RoomResponse, 0, len(rooms))
	for i := range rooms {
		items = append(items, toRoomResponse(&rooms[i]))
	}
	return &dto.PaginatedResponse[dto.RoomResponse]{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}, nil
}

func (s *roomService) UpdateRoom(ctx context.Context, db *gorm.DB, userID, roomID uint, req *dto.UpdateRoomRequest) (*dto.RoomResponse, error) {
	var name, category *string
	if req.Name != nil {
		v := *req.Name
		name = &v
	}
	if req.Category != nil {
		v := *req.Category
		category = &v
	}
	if err := roomText(name, category); err != nil {
		return nil, err
	}
	if req.MaxUsers != nil {
		if err := s.checkCapacity(*req.MaxUsers); err != nil {
			return nil, err
		}
	}

	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	room, err := s.roomRepo.FindByID(tx, roomID)
	if err != nil {
		return nil, handleChatError(err)
	}
	if room.CreatorID != userID {
		return nil, apperrors.ErrNotRoomCreator
	}

	updates := map[string]interface{}{}
	if name != nil {
		updates["name"] = *name
	}
	if category != nil {
		updates["category"] = *category
	}
	if len(updates) > 0 {
		if err := s.roomRepo.UpdateDetails(tx, roomID, updates); err != nil {
			return nil, handleChatError(err)
		}
	}

	if req.MaxUsers != nil {
		ok, err := s.roomRepo.UpdateCapacity(tx, roomID, *req.MaxUsers)
		if err != nil {
			return nil, handleChatError(err)
		}
		if !ok {
			return nil, apperrors.ErrCapacityBelowOnline
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, apperrors.InternalError(err)
	}
	return s.GetRoom(ctx, db, roomID)
}

// normalizePage applies the handler pagination rules: page from 1, size capped at 100.
func normalizePage(page, pageSize, defaultSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultSize
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
