package ws

import (
	"context"
	"fmt"
	"time"

	"creatorhub/internal/auth"
	"creatorhub/internal/logger"
	"creatorhub/internal/models"
	"creatorhub/internal/services"
	"creatorhub/internal/services/dto"
	"creatorhub/internal/throttle"
	"creatorhub/internal/validator"
	"creatorhub/pkg/apperrors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Options struct {
	SendBuffer     int
	SendInterval   time.Duration
	TypingInterval time.Duration
}

// Coordinator owns the dispatch table and everything a session handler needs.
type Coordinator struct {
	db        *gorm.DB
	services  *services.ServiceContainer
	resolver  auth.Resolver
	manager   *Manager
	throttle  throttle.Store
	validator *validator.Validator
	opts      Options
	routes    map[string]route
}

func NewCoordinator(
	db *gorm.DB,
	svc *services.ServiceContainer,
	resolver auth.Resolver,
	manager *Manager,
	store throttle.Store,
	v *validator.Validator,
	opts Options,
) *Coordinator {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	if store == nil {
		store = throttle.Noop{}
	}

	c := &Coordinator{
		db:        db,
		services:  svc,
		resolver:  resolver,
		manager:   manager,
		throttle:  store,
		validator: v,
		opts:      opts,
	}

	c.routes = map[string]route{
		EventAuthenticate:      on(false, c.authenticate),
		EventJoinRoom:          on(true, c.joinRoom),
		EventLeaveRoom:         on(true, c.leaveRoom),
		EventSendRoomMessage:   on(true, c.sendRoomMessage),
		EventSendDirectMessage: on(true, c.sendDirectMessage),
		EventTyping:            on(true, c.typing),
		EventAddReaction:       on(true, c.addReaction),
		EventRemoveReaction:    on(true, c.removeReaction),
		EventMarkAsRead:        on(true, c.markAsRead),
		EventMarkDMRead:        on(true, c.markDMRead),
		EventChangeStatus:      on(true, c.changeStatus),
		EventCallUser:          on(true, c.signal(EventCallUser)),
		EventAcceptCall:        on(true, c.signal(EventAcceptCall)),
		EventEndCall:           on(true, c.signal(EventEndCall)),
		EventDisconnect:        on(false, c.clientDisconnect),
	}
	return c
}

func (c *Coordinator) Manager() *Manager {
	return c.manager
}

// NewSession registers an unauthenticated session.
func (c *Coordinator) NewSession(ctx context.Context) *Session {
	id := uuid.NewString()
	s := &Session{
		ID:    id,
		ctx:   logger.WithSessionID(ctx, id),
		coord: c,
		send:  make(chan []byte, c.opts.SendBuffer),
		done:  make(chan struct{}),
	}
	c.manager.Register(s)
	return s
}

// Resolve checks a credential presented at upgrade.
func (c *Coordinator) Resolve(ctx context.Context, credential string) (*auth.Identity, error) {
	return c.resolver.Resolve(ctx, c.db, credential)
}

// Bind authenticates s as identity: restores the user's rooms, subscribes to
// them and announces the user there.
func (c *Coordinator) Bind(ctx context.Context, s *Session, identity *auth.Identity) error {
	if s.State() != StateUnauthenticated {
		return apperrors.ErrAlreadyAuthenticated
	}
	s.userID = identity.UserID
	s.name = identity.Name
	if !s.state.CompareAndSwap(int32(StateUnauthenticated), int32(StateAuthenticated)) {
		return apperrors.ErrAlreadyAuthenticated
	}
	ctx = logger.WithUserID(ctx, s.userID)

	c.manager.BindUser(s, s.userID)
	c.manager.Subscribe(s, UserChannel(s.userID))

	rooms, err := c.services.PresenceService.Restore(ctx, c.db, s.userID)
	if err != nil {
		// Keep what was restored; the connection stays usable.
		logger.CtxWithError(ctx, "failed to restore presence", err)
	}
	for _, roomID := range rooms {
		c.manager.Subscribe(s, RoomChannel(roomID))
	}

	s.sendEvent(EventAuthenticated, AuthenticatedEvent{
		UserID: s.userID,
		Name:   s.name,
		Rooms:  rooms,
	})

	for _, roomID := range rooms {
		c.manager.Publish(ctx, RoomChannel(roomID), EventUserOnline,
			NewPresenceEvent(s.userID, s.name, roomID, string(models.PresenceOnline)), s)
	}
	return nil
}

func (c *Coordinator) authenticate(ctx context.Context, s *Session, p *AuthenticatePayload) error {
	if s.State() == StateAuthenticated {
		return apperrors.ErrAlreadyAuthenticated
	}
	identity, err := c.Resolve(ctx, p.Token)
	if err != nil {
		return err
	}
	return c.Bind(ctx, s, identity)
}

func (c *Coordinator) joinRoom(ctx context.Context, s *Session, p *RoomPayload) error {
	result, err := c.services.PresenceService.Join(ctx, c.db, s.userID, p.RoomID)
	if err != nil {
		return err
	}

	channel := RoomChannel(p.RoomID)
	c.manager.Subscribe(s, channel)
	s.sendEvent(EventRoomJoined, result)

	if result.Admitted {
		c.manager.Publish(ctx, channel, EventUserJoined,
			NewPresenceEvent(s.userID, s.name, p.RoomID, string(models.PresenceOnline)), s)
	}
	return nil
}

func (c *Coordinator) leaveRoom(ctx context.Context, s *Session, p *RoomPayload) error {
	channel := RoomChannel(p.RoomID)
	if !c.manager.IsSubscribed(s, channel) {
		return apperrors.ErrNotInRoom
	}

	wasLive, err := c.services.PresenceService.Leave(ctx, c.db, s.userID, p.RoomID)
	if err != nil {
		return err
	}

	// Leaving is per user, so every local session of the user stops listening.
	c.manager.UnsubscribeUser(s.userID, channel)
	s.sendEvent(EventRoomLeft, RoomLeftEvent{RoomID: p.RoomID})

	if wasLive {
		c.manager.Publish(ctx, channel, EventUserLeft,
			NewPresenceEvent(s.userID, s.name, p.RoomID, string(models.PresenceOffline)), nil)
	}
	return nil
}

func (c *Coordinator) sendRoomMessage(ctx context.Context, s *Session, p *SendRoomMessagePayload) error {
	if err := c.allowSend(ctx, s.userID); err != nil {
		return err
	}

	channel := RoomChannel(p.RoomID)
	msg, err := c.services.MessageService.SendRoomMessage(ctx, c.db, &dto.AppendMessageInput{
		RoomID:    p.RoomID,
		SenderID:  s.userID,
		Content:   p.Content,
		Kind:      p.Kind,
		ReplyToID: p.ReplyToID,
	}, func(m *dto.MessageResponse) {
		c.manager.Publish(ctx, channel, EventNewMessage, m, nil)
	})
	if err != nil {
		return err
	}

	if !c.manager.IsSubscribed(s, channel) {
		s.sendEvent(EventNewMessage, msg)
	}
	return nil
}

func (c *Coordinator) sendDirectMessage(ctx context.Context, s *Session, p *SendDirectMessagePayload) error {
	dm, err := c.services.DirectMessageService.SendDirectMessage(ctx, c.db, &dto.AppendDirectInput{
		SenderID:    s.userID,
		RecipientID: p.RecipientID,
		Content:     p.Content,
		Kind:        p.Kind,
	})
	if err != nil {
		return err
	}

	c.manager.Publish(ctx, UserChannel(p.RecipientID), EventNewDirectMessage, dm, nil)
	s.sendEvent(EventDirectMessageSent, dm)
	return nil
}

func (c *Coordinator) typing(ctx context.Context, s *Session, p *TypingPayload) error {
	event := TypingEvent{UserID: s.userID, Name: s.name, IsTyping: p.IsTyping}

	if p.RoomID != 0 {
		channel := RoomChannel(p.RoomID)
		if !c.manager.IsSubscribed(s, channel) {
			return apperrors.ErrNotInRoom
		}
		if p.IsTyping && !c.allowTyping(ctx, fmt.Sprintf("typing:%d:room:%d", s.userID, p.RoomID)) {
			return nil
		}
		event.RoomID = p.RoomID
		c.manager.Publish(ctx, channel, EventUserTyping, event, s)
		return nil
	}

	if p.RecipientID == s.userID {
		return apperrors.ErrMessageToSelf
	}
	if p.IsTyping && !c.allowTyping(ctx, fmt.Sprintf("typing:%d:user:%d", s.userID, p.RecipientID)) {
		return nil
	}
	event.RecipientID = p.RecipientID
	c.manager.Publish(ctx, UserChannel(p.RecipientID), EventUserTyping, event, nil)
	return nil
}

func (c *Coordinator) addReaction(ctx context.Context, s *Session, p *ReactionPayload) error {
	view, err := c.services.ReactionService.AddReaction(ctx, c.db, s.userID, p.MessageID, p.Emoji)
	if err != nil {
		return err
	}
	c.publishRoom(ctx, s, view.RoomID, EventReactionUpdated, view)
	return nil
}

func (c *Coordinator) removeReaction(ctx context.Context, s *Session, p *ReactionPayload) error {
	view, err := c.services.ReactionService.RemoveReaction(ctx, c.db, s.userID, p.MessageID, p.Emoji)
	if err != nil {
		return err
	}
	c.publishRoom(ctx, s, view.RoomID, EventReactionUpdated, view)
	return nil
}

func (c *Coordinator) markAsRead(ctx context.Context, s *Session, p *MarkReadPayload) error {
	receipt, err := c.services.ReadReceiptService.MarkRead(ctx, c.db, s.userID, p.MessageID)
	if err != nil {
		return err
	}
	c.publishRoom(ctx, s, receipt.RoomID, EventMessageRead, receipt)
	return nil
}

func (c *Coordinator) markDMRead(ctx context.Context, s *Session, p *MarkDMReadPayload) error {
	dm, changed, err := c.services.DirectMessageService.MarkRead(ctx, c.db, s.userID, p.DirectMessageID)
	if err != nil {
		return err
	}

	event := NewDirectReadEvent(dm)
	if changed {
		c.manager.Publish(ctx, UserChannel(dm.SenderID), EventDirectMessageRead, event, nil)
	}
	s.sendEvent(EventDirectMessageRead, event)
	return nil
}

func (c *Coordinator) changeStatus(ctx context.Context, s *Session, p *ChangeStatusPayload) error {
	rooms, err := c.services.PresenceService.ChangeStatus(ctx, c.db, s.userID, models.PresenceStatus(p.Status))
	if err != nil {
		return err
	}
	for _, roomID := range rooms {
		c.manager.Publish(ctx, RoomChannel(roomID), EventUserStatusChanged,
			NewPresenceEvent(s.userID, s.name, roomID, p.Status), nil)
	}
	return nil
}

// signal relays WebRTC negotiation to the rest of the room untouched.
func (c *Coordinator) signal(event string) func(context.Context, *Session, *SignalPayload) error {
	return func(ctx context.Context, s *Session, p *SignalPayload) error {
		channel := RoomChannel(p.RoomID)
		if !c.manager.IsSubscribed(s, channel) {
			return apperrors.ErrNotInRoom
		}
		c.manager.Publish(ctx, channel, event, SignalEvent{
			RoomID:     p.RoomID,
			FromUserID: s.userID,
			Payload:    p.Payload,
		}, s)
		return nil
	}
}

func (c *Coordinator) clientDisconnect(ctx context.Context, s *Session, _ *struct{}) error {
	s.Close(ctx)
	return nil
}

// disconnect releases the user's presence except in rooms another local
// session still holds, then tells those rooms.
func (c *Coordinator) disconnect(ctx context.Context, s *Session, keep map[uint]struct{}) {
	released, err := c.services.PresenceService.DisconnectAll(ctx, c.db, s.userID, keep)
	if err != nil {
		logger.CtxWithError(ctx, "failed to release presence on disconnect", err)
		return
	}
	for _, roomID := range released {
		c.manager.Publish(ctx, RoomChannel(roomID), EventUserOffline,
			NewPresenceEvent(s.userID, s.name, roomID, string(models.PresenceOffline)), nil)
	}
	logger.CtxInfo(ctx, "session closed", "released_rooms", len(released))
}

// publishRoom broadcasts to the room and makes sure the actor sees the result
// even when not subscribed to it.
func (c *Coordinator) publishRoom(ctx context.Context, s *Session, roomID uint, event string, data any) {
	channel := RoomChannel(roomID)
	c.manager.Publish(ctx, channel, event, data, nil)
	if !c.manager.IsSubscribed(s, channel) {
		s.sendEvent(event, data)
	}
}

func (c *Coordinator) allowSend(ctx context.Context, userID uint) error {
	if c.opts.SendInterval <= 0 {
		return nil
	}
	ok, err := c.throttle.Allow(ctx, fmt.Sprintf("send:%d", userID), c.opts.SendInterval)
	if err != nil {
		logger.CtxWarn(ctx, "throttle unavailable, allowing send", "error", err)
		return nil
	}
	if !ok {
		return apperrors.ErrSendTooFast
	}
	return nil
}

func (c *Coordinator) allowTyping(ctx context.Context, key string) bool {
	if c.opts.TypingInterval <= 0 {
		return true
	}
	ok, err := c.throttle.Allow(ctx, key, c.opts.TypingInterval)
	if err != nil {
		logger.CtxWarn(ctx, "throttle unavailable, allowing typing", "error", err)
		return true
	}
	return ok
}
