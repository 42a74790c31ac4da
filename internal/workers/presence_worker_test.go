package workers

import (
	"context"
	"testing"
	"time"

	"creatorhub/internal/models"
	chatmodels "creatorhub/internal/models/chat"
	"creatorhub/internal/services/chat"
	"creatorhub/internal/services/dto"
	"creatorhub/internal/testutil"
	"creatorhub/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceWorker_ResetOnStartup(t *testing.T) {
	db := testutil.NewDB(t)
	ann := testutil.CreateUser(t, db, "ann")
	room := testutil.CreateRoom(t, db, ann, "lobby", 10)

	presence := chat.NewPresenceService(chat.NewRepositories())
	_, err := presence.Join(context.Background(), db, ann.ID, room.ID)
	require.NoError(t, err)

	w := NewPresenceWorker(db, presence, time.Minute, false)
	require.NoError(t, w.ResetOnStartup(context.Background()))

	var stored chatmodels.Room
	require.NoError(t, db.First(&stored, room.ID).Error)
	assert.Zero(t, stored.OnlineCount)

	var p chatmodels.Presence
	require.NoError(t, db.Where("user_id = ? AND room_id = ?", ann.ID, room.ID).First(&p).Error)
	assert.Equal(t, models.PresenceOffline, p.Status)
}

func TestPresenceWorker_SharedStartupKeepsPeerPresence(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	ann := testutil.CreateUser(t, db, "ann")
	bob := testutil.CreateUser(t, db, "bob")
	cat := testutil.CreateUser(t, db, "cat")
	room := testutil.CreateRoom(t, db, ann, "lobby", 2)

	repos := chat.NewRepositories()
	presence := chat.NewPresenceService(repos)
	messages := chat.NewMessageService(repos, 4000)

	// ann and bob are connected through a peer instance.
	for _, u := range []uint{ann.ID, bob.ID} {
		_, err := presence.Join(ctx, db, u, room.ID)
		require.NoError(t, err)
	}
	// Drift the counter so the startup pass has something to repair.
	require.NoError(t, db.Model(&chatmodels.Room{}).Where("id = ?", room.ID).Update("online_count", 7).Error)

	// This instance restarts.
	w := NewPresenceWorker(db, presence, time.Minute, true)
	require.NoError(t, w.ResetOnStartup(ctx))

	var stored chatmodels.Room
	require.NoError(t, db.First(&stored, room.ID).Error)
	assert.Equal(t, 2, stored.OnlineCount)

	_, err := messages.SendRoomMessage(ctx, db, &dto.AppendMessageInput{
		RoomID:   room.ID,
		SenderID: ann.ID,
		Content:  "still here",
	}, nil)
	require.NoError(t, err)

	_, err = presence.Join(ctx, db, cat.ID, room.ID)
	assert.ErrorIs(t, err, apperrors.ErrRoomFull)
}

func TestPresenceWorker_RunReconcilesUntilCancelled(t *testing.T) {
	db := testutil.NewDB(t)
	ann := testutil.CreateUser(t, db, "ann")
	room := testutil.CreateRoom(t, db, ann, "lobby", 10)

	presence := chat.NewPresenceService(chat.NewRepositories())
	_, err := presence.Join(context.Background(), db, ann.ID, room.ID)
	require.NoError(t, err)

	// Drift the counter away from the presence rows.
	require.NoError(t, db.Model(&chatmodels.Room{}).Where("id = ?", room.ID).Update("online_count", 5).Error)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewPresenceWorker(db, presence, 10*time.Millisecond, false).Run(ctx) }()

	require.Eventually(t, func() bool {
		var stored chatmodels.Room
		if err := db.First(&stored, room.ID).Error; err != nil {
			return false
		}
		return stored.OnlineCount == 1
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
