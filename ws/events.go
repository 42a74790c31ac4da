package ws

import (
	"encoding/json"
	"time"

	"creatorhub/internal/services/dto"
	"creatorhub/pkg/apperrors"
)

// Client events.
const (
	EventAuthenticate      = "authenticate"
	EventJoinRoom          = "join_room"
	EventLeaveRoom         = "leave_room"
	EventSendRoomMessage   = "send_room_message"
	EventSendDirectMessage = "send_direct_message"
	EventTyping            = "typing"
	EventAddReaction       = "add_reaction"
	EventRemoveReaction    = "remove_reaction"
	EventMarkAsRead        = "mark_as_read"
	EventMarkDMRead        = "mark_dm_read"
	EventChangeStatus      = "change_status"
	EventCallUser          = "call_user"
	EventAcceptCall        = "accept_call"
	EventEndCall           = "end_call"
	EventDisconnect        = "disconnect"
)

// Server events.
const (
	EventAuthenticated      = "authenticated"
	EventRoomJoined         = "room_joined"
	EventRoomLeft           = "room_left"
	EventUserOnline         = "user_online"
	EventUserOffline        = "user_offline"
	EventUserJoined         = "user_joined"
	EventUserLeft           = "user_left"
	EventUserStatusChanged  = "user_status_changed"
	EventNewMessage         = "new_message"
	EventNewDirectMessage   = "new_direct_message"
	EventDirectMessageSent  = "direct_message_sent"
	EventDirectMessageRead  = "direct_message_read"
	EventUserTyping         = "user_typing"
	EventReactionUpdated    = "reaction_updated"
	EventMessageRead        = "message_read"
	EventError              = "error"
)

// Envelope is the frame format in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func encodeFrame(event string, data any) ([]byte, error) {
	return json.Marshal(outbound{Event: event, Data: data})
}

// --- client payloads ---

type AuthenticatePayload struct {
	Token string `json:"token" validate:"required"`
}

type RoomPayload struct {
	RoomID uint `json:"roomId" validate:"required"`
}

type SendRoomMessagePayload struct {
	RoomID    uint   `json:"roomId" validate:"required"`
	Content   string `json:"content"`
	Kind      string `json:"kind" validate:"omitempty,is-message-kind"`
	ReplyToID *uint  `json:"replyToId" validate:"omitempty,gt=0"`
}

type SendDirectMessagePayload struct {
	RecipientID uint   `json:"recipientId" validate:"required"`
	Content     string `json:"content"`
	Kind        string `json:"kind" validate:"omitempty,is-message-kind"`
}

// TypingPayload targets either a room or a recipient, never both.
type TypingPayload struct {
	RoomID      uint `json:"roomId" validate:"required_without=RecipientID,excluded_with=RecipientID"`
	RecipientID uint `json:"recipientId" validate:"required_without=RoomID"`
	IsTyping    bool `json:"isTyping"`
}

type ReactionPayload struct {
	MessageID uint   `json:"messageId" validate:"required"`
	Emoji     string `json:"emoji" validate:"required,max=32"`
}

type MarkReadPayload struct {
	MessageID uint `json:"messageId" validate:"required"`
}

type MarkDMReadPayload struct {
	DirectMessageID uint `json:"directMessageId" validate:"required"`
}

type ChangeStatusPayload struct {
	Status string `json:"status" validate:"required,is-live-status"`
}

// SignalPayload carries an opaque WebRTC offer, answer or hangup.
type SignalPayload struct {
	RoomID  uint            `json:"roomId" validate:"required"`
	Payload json.RawMessage `json:"payload"`
}

// --- server payloads ---

type AuthenticatedEvent struct {
	UserID uint   `json:"userId"`
	Name   string `json:"name"`
	Rooms  []uint `json:"rooms"`
}

type PresenceEvent struct {
	UserID uint   `json:"userId"`
	Name   string `json:"name"`
	RoomID uint   `json:"roomId"`
	Status string `json:"status"`
}

type RoomLeftEvent struct {
	RoomID uint `json:"roomId"`
}

type TypingEvent struct {
	UserID      uint   `json:"userId"`
	Name        string `json:"name"`
	RoomID      uint   `json:"roomId,omitempty"`
	RecipientID uint   `json:"recipientId,omitempty"`
	IsTyping    bool   `json:"isTyping"`
}

type SignalEvent struct {
	RoomID     uint            `json:"roomId"`
	FromUserID uint            `json:"fromUserId"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

type DirectReadEvent struct {
	ID          uint      `json:"id"`
	SenderID    uint      `json:"senderId"`
	RecipientID uint      `json:"recipientId"`
	ReadAt      time.Time `json:"readAt"`
}

// ErrorEvent is sent to the originating connection only.
type ErrorEvent struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Event       string `json:"event,omitempty"`
	RoomID      *uint  `json:"roomId,omitempty"`
	MessageID   *uint  `json:"messageId,omitempty"`
	RecipientID *uint  `json:"recipientId,omitempty"`
	Details     any    `json:"details,omitempty"`
}

// correlation holds the intent fields echoed back on errors.
type correlation struct {
	RoomID          *uint `json:"roomId"`
	MessageID       *uint `json:"messageId"`
	RecipientID     *uint `json:"recipientId"`
	DirectMessageID *uint `json:"directMessageId"`
}

func correlationOf(data json.RawMessage) correlation {
	var c correlation
	if len(data) > 0 {
		_ = json.Unmarshal(data, &c)
	}
	if c.MessageID == nil {
		c.MessageID = c.DirectMessageID
	}
	return c
}

func newErrorEvent(event string, err error, ref correlation) ErrorEvent {
	appErr := apperrors.Normalize(err)

	message := appErr.Message
	var details any = appErr.Details
	if appErr.HTTPCode >= 500 {
		message = "Internal server error"
		details = nil
	}
	return ErrorEvent{
		Code:        appErr.RealtimeCode(),
		Message:     message,
		Event:       event,
		RoomID:      ref.RoomID,
		MessageID:   ref.MessageID,
		RecipientID: ref.RecipientID,
		Details:     details,
	}
}

func NewPresenceEvent(userID uint, name string, roomID uint, status string) PresenceEvent {
	return PresenceEvent{UserID: userID, Name: name, RoomID: roomID, Status: status}
}

func NewDirectReadEvent(m *dto.DirectMessageResponse) DirectReadEvent {
	ev := DirectReadEvent{ID: m.ID, SenderID: m.SenderID, RecipientID: m.RecipientID}
	if m.ReadAt != nil {
		ev.ReadAt = *m.ReadAt
	}
	return ev
}
