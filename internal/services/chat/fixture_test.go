package chat

import (
	"context"
	"testing"

	"creatorhub/internal/models"
	chatmodels "creatorhub/internal/models/chat"
	"creatorhub/internal/services/dto"
	"creatorhub/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	ctx       context.Context
	db        *gorm.DB
	rooms     RoomService
	presence  PresenceService
	messages  MessageService
	dms       DirectMessageService
	reactions ReactionService
	receipts  ReadReceiptService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repos := NewRepositories()
	return &fixture{
		ctx:       context.Background(),
		db:        testutil.NewDB(t),
		rooms:     NewRoomService(repos, RoomLimits{MinCapacity: 2, MaxCapacity: 1000}),
		presence:  NewPresenceService(repos),
		messages:  NewMessageService(repos, 4000),
		dms:       NewDirectMessageService(repos, 4000),
		reactions: NewReactionService(repos),
		receipts:  NewReadReceiptService(repos),
	}
}

func (f *fixture) user(t *testing.T, name string) *models.User {
	return testutil.CreateUser(t, f.db, name)
}

// room creates a room through the service, so the creator is admitted.
func (f *fixture) room(t *testing.T, creator *models.User, name string, maxUsers int) *dto.RoomResponse {
	t.Helper()

	room, err := f.rooms.CreateRoom(f.ctx, f.db, creator.ID, &dto.CreateRoomRequest{
		Name:     name,
		Kind:     string(models.RoomKindTopic),
		Category: "general",
		MaxUsers: maxUsers,
	})
	require.NoError(t, err)
	return room
}

func (f *fixture) send(t *testing.T, sender *models.User, roomID uint, content string) *dto.MessageResponse {
	t.Helper()

	msg, err := f.messages.SendRoomMessage(f.ctx, f.db, &dto.AppendMessageInput{
		RoomID:   roomID,
		SenderID: sender.ID,
		Content:  content,
	}, nil)
	require.NoError(t, err)
	return msg
}

func (f *fixture) presenceRow(t *testing.T, userID, roomID uint) chatmodels.Presence {
	t.Helper()

	var p chatmodels.Presence
	require.NoError(t, f.db.Where("user_id = ? AND room_id = ?", userID, roomID).First(&p).Error)
	return p
}

func (f *fixture) onlineCount(t *testing.T, roomID uint) int {
	t.Helper()

	var room chatmodels.Room
	require.NoError(t, f.db.First(&room, roomID).Error)
	return room.OnlineCount
}

func (f *fixture) liveRows(t *testing.T, roomID uint) int64 {
	t.Helper()

	var n int64
	require.NoError(t, f.db.Model(&chatmodels.Presence{}).
		Where("room_id = ? AND status <> ?", roomID, models.PresenceOffline).
		Count(&n).Error)
	return n
}
