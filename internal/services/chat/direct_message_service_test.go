package chat

import (
	"testing"

	"creatorhub/internal/services/dto"
	"creatorhub/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectMessageService_OfflineRecipientReadsHistoryLater(t *testing.T) {
	f := newFixture(t)
	u1 := f.user(t, "u1")
	u2 := f.user(t, "u2")

	var sent []uint
	for _, m := range []struct {
		from, to uint
		text     string
	}{
		{u1.ID, u2.ID, "are you there?"},
		{u1.ID, u2.ID, "ping"},
		{u2.ID, u1.ID, "now I am"},
	} {
		dm, err := f.dms.SendDirectMessage(f.ctx, f.db, &dto.AppendDirectInput{
			SenderID: m.from, RecipientID: m.to, Content: m.text,
		})
		require.NoError(t, err)
		sent = append(sent, dm.ID)
	}

	page, err := f.dms.GetConversation(f.ctx, f.db, u2.ID, u1.ID, 1, 50)
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	require.Len(t, page.Items, 3)
	for i, item := range page.Items {
		assert.Equal(t, sent[i], item.ID)
	}
	assert.Equal(t, "are you there?", page.Items[0].Content)
	assert.Equal(t, "u1", page.Items[0].SenderName)
	assert.Equal(t, "u2", page.Items[0].RecipientName)
}

func TestDirectMessageService_SendValidation(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "u")

	_, err := f.dms.SendDirectMessage(f.ctx, f.db, &dto.AppendDirectInput{SenderID: u.ID, RecipientID: u.ID, Content: "me"})
	assert.ErrorIs(t, err, apperrors.ErrMessageToSelf)

	_, err = f.dms.SendDirectMessage(f.ctx, f.db, &dto.AppendDirectInput{SenderID: u.ID, RecipientID: 777, Content: "hi"})
	assert.ErrorIs(t, err, apperrors.ErrRecipientNotFound)

	_, err = f.dms.GetConversation(f.ctx, f.db, u.ID, 777, 1, 10)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestDirectMessageService_ConversationsAndRead(t *testing.T) {
	f := newFixture(t)
	me := f.user(t, "me")
	ann := f.user(t, "ann")
	bob := f.user(t, "bob")

	send := func(from, to uint, text string) *dto.DirectMessageResponse {
		dm, err := f.dms.SendDirectMessage(f.ctx, f.db, &dto.AppendDirectInput{SenderID: from, RecipientID: to, Content: text})
		require.NoError(t, err)
		return dm
	}
	fromAnn := send(ann.ID, me.ID, "hi from ann")
	send(ann.ID, me.ID, "again")
	send(me.ID, bob.ID, "hi bob")

	conversations, err := f.dms.ListConversations(f.ctx, f.db, me.ID)
	require.NoError(t, err)
	require.Len(t, conversations, 2)

	assert.Equal(t, bob.ID, conversations[0].Peer.ID, "newest conversation first")
	assert.Equal(t, "bob", conversations[0].Peer.Name)
	assert.Zero(t, conversations[0].UnreadCount)
	assert.Equal(t, ann.ID, conversations[1].Peer.ID)
	assert.Equal(t, "again", conversations[1].LastMessage.Content)
	assert.EqualValues(t, 2, conversations[1].UnreadCount)

	_, _, err = f.dms.MarkRead(f.ctx, f.db, bob.ID, fromAnn.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotRecipient)

	read, changed, err := f.dms.MarkRead(f.ctx, f.db, me.ID, fromAnn.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	require.NotNil(t, read.ReadAt)

	_, changed, err = f.dms.MarkRead(f.ctx, f.db, me.ID, fromAnn.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	conversations, err = f.dms.ListConversations(f.ctx, f.db, me.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, conversations[1].UnreadCount)
}
