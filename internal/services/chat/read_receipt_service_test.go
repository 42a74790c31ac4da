package chat

import (
	"testing"
	"time"

	"creatorhub/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadReceiptService_ReadAtNeverMovesBackwards(t *testing.T) {
	f := newFixture(t)
	ann := f.user(t, "ann")
	bob := f.user(t, "bob")
	room := f.room(t, ann, "room", 5)
	msg := f.send(t, ann, room.ID, "read me")

	svc := f.receipts.(*readReceiptService)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	svc.now = func() time.Time { return base }
	first, err := f.receipts.MarkRead(f.ctx, f.db, bob.ID, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, room.ID, first.RoomID)
	assert.True(t, base.Equal(first.ReadAt))

	svc.now = func() time.Time { return base.Add(-time.Hour) }
	second, err := f.receipts.MarkRead(f.ctx, f.db, bob.ID, msg.ID)
	require.NoError(t, err)
	assert.True(t, base.Equal(second.ReadAt), "an older mark keeps the stored time")

	later := base.Add(time.Hour)
	svc.now = func() time.Time { return later }
	third, err := f.receipts.MarkRead(f.ctx, f.db, bob.ID, msg.ID)
	require.NoError(t, err)
	assert.True(t, later.Equal(third.ReadAt))

	receipts, err := f.receipts.GetReceipts(f.ctx, f.db, msg.ID)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, bob.ID, receipts[0].UserID)
	assert.Equal(t, "bob", receipts[0].Name)
	assert.True(t, later.Equal(receipts[0].ReadAt))

	got, err := f.messages.GetMessage(f.ctx, f.db, msg.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.ReadCount)
}

func TestReadReceiptService_UnknownMessage(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "u")

	_, err := f.receipts.MarkRead(f.ctx, f.db, u.ID, 42)
	assert.ErrorIs(t, err, apperrors.ErrMessageNotFound)
}
