package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"creatorhub/internal/auth"
	"creatorhub/internal/config"
	"creatorhub/internal/models"
	chatmodels "creatorhub/internal/models/chat"
	"creatorhub/internal/repositories"
	"creatorhub/internal/services"
	"creatorhub/internal/services/dto"
	"creatorhub/internal/storage"
	"creatorhub/internal/testutil"
	"creatorhub/internal/throttle"
	"creatorhub/internal/validator"
	"creatorhub/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type harness struct {
	ctx    context.Context
	db     *gorm.DB
	svc    *services.ServiceContainer
	tokens *auth.TokenManager
	coord  *Coordinator
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()

	cfg := &config.Config{}
	cfg.ApplyDefaults()

	store, err := storage.NewStorage(storage.Config{Type: "local", BasePath: t.TempDir()})
	require.NoError(t, err)

	db := testutil.NewDB(t)
	svc := services.NewServiceContainer(cfg, store)
	tokens := auth.NewTokenManager("test-secret", "creatorhub")
	resolver := auth.NewJWTResolver(tokens, repositories.NewUserRepository())

	return &harness{
		ctx:    context.Background(),
		db:     db,
		svc:    svc,
		tokens: tokens,
		coord:  NewCoordinator(db, svc, resolver, NewManager(nil), throttle.NewMemoryStore(), validator.New(), opts),
	}
}

func defaultOptions() Options {
	return Options{SendBuffer: 64, TypingInterval: 2 * time.Second}
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (h *harness) user(t *testing.T, name string) *models.User {
	return testutil.CreateUser(t, h.db, name)
}

func (h *harness) room(t *testing.T, creator *models.User, maxUsers int) *dto.RoomResponse {
	t.Helper()

	room, err := h.svc.RoomService.CreateRoom(h.ctx, h.db, creator.ID, &dto.CreateRoomRequest{
		Name:     "lobby",
		Kind:     string(models.RoomKindTopic),
		Category: "general",
		MaxUsers: maxUsers,
	})
	require.NoError(t, err)
	return room
}

func (h *harness) emit(t *testing.T, s *Session, event string, data any) {
	t.Helper()

	raw, err := json.Marshal(map[string]any{"event": event, "data": data})
	require.NoError(t, err)
	s.Handle(h.ctx, raw)
}

// connect opens an authenticated session for u and consumes the
// authenticated frame.
func (h *harness) connect(t *testing.T, u *models.User) (*Session, AuthenticatedEvent) {
	t.Helper()

	token, err := h.tokens.GenerateToken(u.ID, u.Name, time.Hour)
	require.NoError(t, err)

	s := h.coord.NewSession(h.ctx)
	h.emit(t, s, EventAuthenticate, map[string]any{"token": token})

	var ev AuthenticatedEvent
	expectEvent(t, s, EventAuthenticated, &ev)
	require.Equal(t, StateAuthenticated, s.State())
	return s, ev
}

// joined connects u and joins roomID, draining the room_joined frame.
func (h *harness) joined(t *testing.T, u *models.User, roomID uint) *Session {
	t.Helper()

	s, _ := h.connect(t, u)
	h.emit(t, s, EventJoinRoom, map[string]any{"roomId": roomID})
	expectEvent(t, s, EventRoomJoined, nil)
	return s
}

func nextFrame(t *testing.T, s *Session) frame {
	t.Helper()

	select {
	case raw := <-s.send:
		var f frame
		require.NoError(t, json.Unmarshal(raw, &f))
		return f
	case <-time.After(time.Second):
		t.Fatal("expected a frame, got none")
		return frame{}
	}
}

func expectEvent(t *testing.T, s *Session, event string, into any) frame {
	t.Helper()

	f := nextFrame(t, s)
	require.Equal(t, event, f.Event, "data: %s", string(f.Data))
	if into != nil {
		require.NoError(t, json.Unmarshal(f.Data, into))
	}
	return f
}

func expectError(t *testing.T, s *Session, code string) ErrorEvent {
	t.Helper()

	var ev ErrorEvent
	expectEvent(t, s, EventError, &ev)
	assert.Equal(t, code, ev.Code, ev.Message)
	return ev
}

func expectNothing(t *testing.T, s *Session) {
	t.Helper()

	select {
	case raw := <-s.send:
		t.Fatalf("unexpected frame: %s", raw)
	default:
	}
}

func TestSession_RequiresAuthentication(t *testing.T) {
	h := newHarness(t, defaultOptions())
	s := h.coord.NewSession(h.ctx)

	h.emit(t, s, EventJoinRoom, map[string]any{"roomId": 7})

	ev := expectError(t, s, apperrors.RealtimeUnauthenticated)
	assert.Equal(t, EventJoinRoom, ev.Event)
	require.NotNil(t, ev.RoomID)
	assert.Equal(t, uint(7), *ev.RoomID)
	assert.Equal(t, StateUnauthenticated, s.State())
}

func TestSession_AuthenticateFailures(t *testing.T) {
	h := newHarness(t, defaultOptions())

	s := h.coord.NewSession(h.ctx)
	h.emit(t, s, EventAuthenticate, map[string]any{"token": "garbage"})
	expectError(t, s, apperrors.RealtimeUnauthenticated)
	assert.Equal(t, StateUnauthenticated, s.State())

	h.emit(t, s, EventAuthenticate, map[string]any{})
	expectError(t, s, apperrors.RealtimeValidation)

	ann := h.user(t, "ann")
	authed, _ := h.connect(t, ann)
	h.emit(t, authed, EventAuthenticate, map[string]any{"token": "anything"})
	expectError(t, authed, apperrors.RealtimeConflict)
}

func TestSession_MalformedFrames(t *testing.T) {
	h := newHarness(t, defaultOptions())
	s := h.coord.NewSession(h.ctx)

	s.Handle(h.ctx, []byte("{not json"))
	expectError(t, s, apperrors.RealtimeValidation)

	h.emit(t, s, "fly_away", map[string]any{})
	ev := expectError(t, s, apperrors.RealtimeValidation)
	assert.Equal(t, "fly_away", ev.Event)

	s.Handle(h.ctx, []byte(`{"event":"authenticate","data":"nope"}`))
	expectError(t, s, apperrors.RealtimeValidation)
}

func TestSession_JoinRoomAnnouncesToOthers(t *testing.T) {
	h := newHarness(t, defaultOptions())
	ann := h.user(t, "ann")
	bob := h.user(t, "bob")
	room := h.room(t, ann, 10)

	annSession, authed := h.connect(t, ann)
	assert.Equal(t, []uint{room.ID}, authed.Rooms)

	bobSession, _ := h.connect(t, bob)
	h.emit(t, bobSession, EventJoinRoom, map[string]any{"roomId": room.ID})

	var joined dto.JoinResult
	expectEvent(t, bobSession, EventRoomJoined, &joined)
	assert.Equal(t, room.ID, joined.Room.ID)
	assert.Equal(t, 2, joined.Room.OnlineCount)
	assert.Len(t, joined.Online, 2)
	expectNothing(t, bobSession)

	var presence PresenceEvent
	expectEvent(t, annSession, EventUserJoined, &presence)
	assert.Equal(t, bob.ID, presence.UserID)
	assert.Equal(t, "bob", presence.Name)
	assert.Equal(t, room.ID, presence.RoomID)
}

func TestSession_JoinFullRoom(t *testing.T) {
	h := newHarness(t, defaultOptions())
	ann := h.user(t, "ann")
	bob := h.user(t, "bob")
	cat := h.user(t, "cat")
	room := h.room(t, ann, 2)

	h.joined(t, bob, room.ID)

	catSession, _ := h.connect(t, cat)
	h.emit(t, catSession, EventJoinRoom, map[string]any{"roomId": room.ID})

	ev := expectError(t, catSession, apperrors.RealtimeCapacityExceeded)
	require.NotNil(t, ev.RoomID)
	assert.Equal(t, room.ID, *ev.RoomID)
	assert.False(t, h.coord.manager.IsSubscribed(catSession, RoomChannel(room.ID)))

	h.emit(t, catSession, EventJoinRoom, map[string]any{"roomId": 999})
	expectError(t, catSession, apperrors.RealtimeNotFound)
}

func TestSession_RoomMessageReachesEveryoneIncludingSender(t *testing.T) {
	h := newHarness(t, defaultOptions())
	ann := h.user(t, "ann")
	bob := h.user(t, "bob")
	room := h.room(t, ann, 10)

	annSession, _ := h.connect(t, ann)
	bobSession := h.joined(t, bob, room.ID)
	expectEvent(t, annSession, EventUserJoined, nil)

	h.emit(t, annSession, EventSendRoomMessage, map[string]any{"roomId": room.ID, "content": "hello"})

	for _, s := range []*Session{annSession, bobSession} {
		var msg dto.MessageResponse
		expectEvent(t, s, EventNewMessage, &msg)
		assert.Equal(t, "hello", msg.Content)
		assert.Equal(t, "ann", msg.SenderName)
		assert.Equal(t, room.ID, msg.RoomID)
		expectNothing(t, s)
	}
}

func TestSession_ErrorsGoToOriginOnly(t *testing.T) {
	h := newHarness(t, defaultOptions())
	ann := h.user(t, "ann")
	bob := h.user(t, "bob")
	room := h.room(t, ann, 10)

	annSession, _ := h.connect(t, ann)
	bobSession := h.joined(t, bob, room.ID)
	expectEvent(t, annSession, EventUserJoined, nil)

	h.emit(t, bobSession, EventSendRoomMessage, map[string]any{"roomId": room.ID, "content": "   "})

	ev := expectError(t, bobSession, apperrors.RealtimeValidation)
	assert.Equal(t, EventSendRoomMessage, ev.Event)
	expectNothing(t, annSession)

	var count int64
	require.NoError(t, h.db.Model(&chatmodels.Message{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSession_SendWithoutPresence(t *testing.T) {
	h := newHarness(t, defaultOptions())
	ann := h.user(t, "ann")
	bob := h.user(t, "bob")
	room := h.room(t, ann, 10)

	bobSession, _ := h.connect(t, bob)
	h.emit(t, bobSession, EventSendRoomMessage, map[string]any{"roomId": room.ID, "content": "hi"})
	expectError(t, bobSession, apperrors.RealtimePermission)
}

func TestSession_SendRateLimited(t *testing.T) {
	h := newHarness(t, Options{SendBuffer: 64, SendInterval: time.Hour})
	ann := h.user(t, "ann")
	room := h.room(t, ann, 10)
	annSession, _ := h.connect(t, ann)

	h.emit(t, annSession, EventSendRoomMessage, map[string]any{"roomId": room.ID, "content": "one"})
	expectEvent(t, annSession, EventNewMessage, nil)

	h.emit(t, annSession, EventSendRoomMessage, map[string]any{"roomId": room.ID, "content": "two"})
	expectError(t, annSession, apperrors.RealtimeRateLimited)
}

func TestSession_DirectMessageDelivery(t *testing.T) {
	h := newHarness(t, defaultOptions())
	ann := h.user(t, "ann")
	bob := h.user(t, "bob")

	annSession, _ := h.connect(t, ann)
	bobSession, _ := h.connect(t, bob)

	h.emit(t, annSession, EventSendDirectMessage, map[string]any{"recipientId": bob.ID, "content": "psst"})

	var sent, received dto.DirectMessageResponse
	expectEvent(t, annSession, EventDirectMessageSent, &sent)
	expectEvent(t, bobSession, EventNewDirectMessage, &received)
	assert.Equal(t, sent.ID, received.ID)
	assert.Equal(t, "psst", received.Content)
	expectNothing(t, annSession)
	expectNothing(t, bobSession)

	h.emit(t, bobSession, EventMarkDMRead, map[string]any{"directMessageId": received.ID})
	var read DirectReadEvent
	expectEvent(t, annSession, EventDirectMessageRead, &read)
	assert.Equal(t, received.ID, read.ID)
	assert.False(t, read.ReadAt.IsZero())
	expectEvent(t, bobSession, EventDirectMessageRead, nil)

	h.emit(t, annSession, EventSendDirectMessage, map[string]any{"recipientId": ann.ID, "content": "me"})
	ev := expectError(t, annSession, apperrors.RealtimeValidation)
	require.NotNil(t, ev.RecipientID)
	assert.Equal(t, ann.ID, *ev.RecipientID)
}

func TestSession_TypingIsThrottledAndExcludesSelf(t *testing.T) {
	h := newHarness(t, defaultOptions())
	ann := h.user(t, "ann")
	bob := h.user(t, "bob")
	room := h.room(t, ann, 10)

	annSession, _ := h.connect(t, ann)
	bobSession := h.joined(t, bob, room.ID)
	expectEvent(t, annSession, EventUserJoined, nil)

	h.emit(t, bobSession, EventTyping, map[string]any{"roomId": room.ID, "isTyping": true})
	h.emit(t, bobSession, EventTyping, map[string]any{"roomId": room.ID, "isTyping": true})
	h.emit(t, bobSession, EventTyping, map[string]any{"roomId": room.ID, "isTyping": false})

	var ev TypingEvent
	expectEvent(t, annSession, EventUserTyping, &ev)
	assert.True(t, ev.IsTyping)
	expectEvent(t, annSession, EventUserTyping, &ev)
	assert.False(t, ev.IsTyping)
	expectNothing(t, annSession)
	expectNothing(t, bobSession)

	h.emit(t, bobSession, EventTyping, map[string]any{"roomId": room.ID, "recipientId": ann.ID, "isTyping": true})
	expectError(t, bobSession, apperrors.RealtimeValidation)

	h.emit(t, bobSession, EventTyping, map[string]any{"recipientId": ann.ID, "isTyping": true})
	expectEvent(t, annSession, EventUserTyping, &ev)
	assert.Equal(t, ann.ID, ev.RecipientID)
}

func TestSession_LeaveRoom(t *testing.T) {
	h := newHarness(t, defaultOptions())
	ann := h.user(t, "ann")
	bob := h.user(t, "bob")
	room := h.room(t, ann, 10)

	annSession, _ := h.connect(t, ann)
	bobSession, _ := h.connect(t, bob)

	h.emit(t, bobSession, EventLeaveRoom, map[string]any{"roomId": room.ID})
	expectError(t, bobSession, apperrors.RealtimePermission)

	h.emit(t, bobSession, EventJoinRoom, map[string]any{"roomId": room.ID})
	expectEvent(t, bobSession, EventRoomJoined, nil)
	expectEvent(t, annSession, EventUserJoined, nil)

	h.emit(t, bobSession, EventLeaveRoom, map[string]any{"roomId": room.ID})
	var left RoomLeftEvent
	expectEvent(t, bobSession, EventRoomLeft, &left)
	assert.Equal(t, room.ID, left.RoomID)
	expectNothing(t, bobSession)

	var presence PresenceEvent
	expectEvent(t, annSession, EventUserLeft, &presence)
	assert.Equal(t, bob.ID, presence.UserID)
	assert.Equal(t, string(models.PresenceOffline), presence.Status)
}

func TestSession_DisconnectReleasesPresence(t *testing.T) {
	h := newHarness(t, defaultOptions())
	ann := h.user(t, "ann")
	bob := h.user(t, "bob")
	room := h.room(t, ann, 10)

	annSession, _ := h.connect(t, ann)
	bobSession := h.joined(t, bob, room.ID)
	expectEvent(t, annSession, EventUserJoined, nil)

	h.emit(t, bobSession, EventDisconnect, nil)
	assert.Equal(t, StateClosed, bobSession.State())

	var presence PresenceEvent
	expectEvent(t, annSession, EventUserOffline, &presence)
	assert.Equal(t, bob.ID, presence.UserID)

	var stored chatmodels.Room
	require.NoError(t, h.db.First(&stored, room.ID).Error)
	assert.Equal(t, 1, stored.OnlineCount)

	// Closing again is a no-op.
	bobSession.Close(h.ctx)
	expectNothing(t, annSession)

	// Reconnecting restores the room and announces it.
	_, authed := h.connect(t, bob)
	assert.Equal(t, []uint{room.ID}, authed.Rooms)
	expectEvent(t, annSession, EventUserOnline, &presence)
	assert.Equal(t, bob.ID, presence.UserID)
}

func TestSession_OtherConnectionKeepsRoom(t *testing.T) {
	h := newHarness(t, defaultOptions())
	ann := h.user(t, "ann")
	bob := h.user(t, "bob")
	room := h.room(t, ann, 10)

	annSession, _ := h.connect(t, ann)
	first := h.joined(t, bob, room.ID)
	expectEvent(t, annSession, EventUserJoined, nil)

	second, authed := h.connect(t, bob)
	assert.Equal(t, []uint{room.ID}, authed.Rooms)
	expectEvent(t, annSession, EventUserOnline, nil)

	first.Close(h.ctx)
	expectNothing(t, annSession)

	var stored chatmodels.Room
	require.NoError(t, h.db.First(&stored, room.ID).Error)
	assert.Equal(t, 2, stored.OnlineCount)

	second.Close(h.ctx)
	expectEvent(t, annSession, EventUserOffline, nil)
}

func TestSession_UnauthenticatedDisconnectIsNoop(t *testing.T) {
	h := newHarness(t, defaultOptions())
	s := h.coord.NewSession(h.ctx)

	s.Close(h.ctx)

	assert.Equal(t, StateClosed, s.State())
	assert.Zero(t, h.coord.manager.SessionCount())
	h.emit(t, s, EventAuthenticate, map[string]any{"token": "x"})
	expectNothing(t, s)
}

func TestSession_ReactionsAndReceipts(t *testing.T) {
	h := newHarness(t, defaultOptions())
	ann := h.user(t, "ann")
	bob := h.user(t, "bob")
	room := h.room(t, ann, 10)

	annSession, _ := h.connect(t, ann)
	bobSession := h.joined(t, bob, room.ID)
	expectEvent(t, annSession, EventUserJoined, nil)

	h.emit(t, annSession, EventSendRoomMessage, map[string]any{"roomId": room.ID, "content": "vote"})
	var msg dto.MessageResponse
	expectEvent(t, annSession, EventNewMessage, &msg)
	expectEvent(t, bobSession, EventNewMessage, nil)

	h.emit(t, bobSession, EventAddReaction, map[string]any{"messageId": msg.ID, "emoji": "👍"})
	h.emit(t, bobSession, EventAddReaction, map[string]any{"messageId": msg.ID, "emoji": "👍"})

	var view dto.MessageReactionsResponse
	for i := 0; i < 2; i++ {
		expectEvent(t, annSession, EventReactionUpdated, &view)
		expectEvent(t, bobSession, EventReactionUpdated, nil)
	}
	require.Len(t, view.Reactions, 1)
	assert.Equal(t, 1, view.Reactions[0].Count)
	assert.Equal(t, []uint{bob.ID}, view.Reactions[0].UserIDs)

	h.emit(t, bobSession, EventMarkAsRead, map[string]any{"messageId": msg.ID})
	var receipt dto.ReceiptResponse
	expectEvent(t, annSession, EventMessageRead, &receipt)
	assert.Equal(t, bob.ID, receipt.UserID)
	assert.Equal(t, room.ID, receipt.RoomID)
	expectEvent(t, bobSession, EventMessageRead, nil)

	h.emit(t, bobSession, EventMarkAsRead, map[string]any{"messageId": 999})
	ev := expectError(t, bobSession, apperrors.RealtimeNotFound)
	require.NotNil(t, ev.MessageID)
	assert.Equal(t, uint(999), *ev.MessageID)
}

func TestSession_ChangeStatus(t *testing.T) {
	h := newHarness(t, defaultOptions())
	ann := h.user(t, "ann")
	bob := h.user(t, "bob")
	room := h.room(t, ann, 10)

	annSession, _ := h.connect(t, ann)
	bobSession := h.joined(t, bob, room.ID)
	expectEvent(t, annSession, EventUserJoined, nil)

	h.emit(t, bobSession, EventChangeStatus, map[string]any{"status": "away"})
	var ev PresenceEvent
	expectEvent(t, annSession, EventUserStatusChanged, &ev)
	assert.Equal(t, "away", ev.Status)
	expectEvent(t, bobSession, EventUserStatusChanged, nil)

	h.emit(t, bobSession, EventChangeStatus, map[string]any{"status": "offline"})
	expectError(t, bobSession, apperrors.RealtimeValidation)
}

func TestSession_CallSignalingRelaysToRoom(t *testing.T) {
	h := newHarness(t, defaultOptions())
	ann := h.user(t, "ann")
	bob := h.user(t, "bob")
	cat := h.user(t, "cat")
	room := h.room(t, ann, 10)

	annSession, _ := h.connect(t, ann)
	bobSession := h.joined(t, bob, room.ID)
	expectEvent(t, annSession, EventUserJoined, nil)

	h.emit(t, annSession, EventCallUser, map[string]any{
		"roomId":  room.ID,
		"payload": map[string]any{"sdp": "offer"},
	})

	var signal SignalEvent
	expectEvent(t, bobSession, EventCallUser, &signal)
	assert.Equal(t, ann.ID, signal.FromUserID)
	assert.JSONEq(t, `{"sdp":"offer"}`, string(signal.Payload))
	expectNothing(t, annSession)

	catSession, _ := h.connect(t, cat)
	h.emit(t, catSession, EventEndCall, map[string]any{"roomId": room.ID})
	expectError(t, catSession, apperrors.RealtimePermission)
}
