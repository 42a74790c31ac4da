package chat

import (
	"strings"
	"testing"

	"creatorhub/internal/models"
	chatmodels "creatorhub/internal/models/chat"
	"creatorhub/internal/services/dto"
	"creatorhub/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupReactions_KeepsFirstSeenOrder(t *testing.T) {
	ann := &models.User{ID: 1, Name: "ann"}
	bob := &models.User{ID: 2, Name: "bob"}

	groups := groupReactions([]chatmodels.Reaction{
		{ID: 1, UserID: 1, Emoji: "🔥", User: ann},
		{ID: 2, UserID: 2, Emoji: "👍", User: bob},
		{ID: 3, UserID: 2, Emoji: "🔥", User: bob},
	})

	assert.Equal(t, []dto.ReactionGroup{
		{Emoji: "🔥", Count: 2, Users: []string{"ann", "bob"}, UserIDs: []uint{1, 2}},
		{Emoji: "👍", Count: 1, Users: []string{"bob"}, UserIDs: []uint{2}},
	}, groups)

	assert.NotNil(t, groupReactions(nil))
}

func TestReactionService_DuplicateAddIsNoop(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "ann")
	room := f.room(t, u, "room", 5)
	msg := f.send(t, u, room.ID, "react to me")

	_, err := f.reactions.AddReaction(f.ctx, f.db, u.ID, msg.ID, "👍")
	require.NoError(t, err)
	_, err = f.reactions.AddReaction(f.ctx, f.db, u.ID, msg.ID, "👍")
	require.NoError(t, err)
	view, err := f.reactions.AddReaction(f.ctx, f.db, u.ID, msg.ID, "❤️")
	require.NoError(t, err)

	assert.Equal(t, msg.ID, view.MessageID)
	assert.Equal(t, room.ID, view.RoomID)
	assert.Equal(t, []dto.ReactionGroup{
		{Emoji: "👍", Count: 1, Users: []string{"ann"}, UserIDs: []uint{u.ID}},
		{Emoji: "❤️", Count: 1, Users: []string{"ann"}, UserIDs: []uint{u.ID}},
	}, view.Reactions)

	var rows int64
	require.NoError(t, f.db.Model(&chatmodels.Reaction{}).
		Where("message_id = ? AND user_id = ? AND emoji = ?", msg.ID, u.ID, "👍").
		Count(&rows).Error)
	assert.EqualValues(t, 1, rows)

	history, err := f.messages.GetHistory(f.ctx, f.db, u.ID, room.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, history.Items, 1)
	assert.Equal(t, view.Reactions, history.Items[0].Reactions, "history uses the same grouped view")
}

func TestReactionService_Remove(t *testing.T) {
	f := newFixture(t)
	ann := f.user(t, "ann")
	bob := f.user(t, "bob")
	room := f.room(t, ann, "room", 5)
	msg := f.send(t, ann, room.ID, "hi")

	_, err := f.reactions.AddReaction(f.ctx, f.db, ann.ID, msg.ID, "👍")
	require.NoError(t, err)
	_, err = f.reactions.AddReaction(f.ctx, f.db, bob.ID, msg.ID, "👍")
	require.NoError(t, err)

	view, err := f.reactions.RemoveReaction(f.ctx, f.db, bob.ID, msg.ID, "🎉")
	require.NoError(t, err, "removing a missing reaction is a no-op")
	require.Len(t, view.Reactions, 1)
	assert.Equal(t, 2, view.Reactions[0].Count)

	view, err = f.reactions.RemoveReaction(f.ctx, f.db, ann.ID, msg.ID, "👍")
	require.NoError(t, err)
	require.Len(t, view.Reactions, 1)
	assert.Equal(t, []uint{bob.ID}, view.Reactions[0].UserIDs)

	view, err = f.reactions.RemoveReaction(f.ctx, f.db, bob.ID, msg.ID, "👍")
	require.NoError(t, err)
	assert.Empty(t, view.Reactions)
}

func TestReactionService_Validation(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "u")
	room := f.room(t, u, "room", 5)
	msg := f.send(t, u, room.ID, "hi")

	_, err := f.reactions.AddReaction(f.ctx, f.db, u.ID, msg.ID, " ")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeValidationFailed, appErr.Code)

	_, err = f.reactions.AddReaction(f.ctx, f.db, u.ID, msg.ID, strings.Repeat("x", 33))
	appErr, ok = apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeValidationFailed, appErr.Code)

	_, err = f.reactions.AddReaction(f.ctx, f.db, u.ID, 9999, "👍")
	assert.ErrorIs(t, err, apperrors.ErrMessageNotFound)
}
