package dto

import (
	"time"
)

// --- Requests ---

type CreateRoomRequest struct {
	Name      string `json:"name" validate:"required,notblank,max=100"`
	Kind      string `json:"kind" validate:"required,is-room-kind"`
	Category  string `json:"category" validate:"required,notblank,max=50"`
	IsPrivate bool   `json:"isPrivate"`
	MaxUsers  int    `json:"maxUsers" validate:"required"`
}

type UpdateRoomRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,notblank,max=100"`
	Category *string `json:"category,omitempty" validate:"omitempty,notblank,max=50"`
	MaxUsers *int    `json:"maxUsers,omitempty"`
}

type RoomListRequest struct {
	Kind     string `form:"kind" validate:"omitempty,is-room-kind"`
	Category string `form:"category" validate:"omitempty,max=50"`
	Search   string `form:"search" validate:"omitempty,max=100"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

type SendMessageRequest struct {
	Content   string `json:"content"`
	Kind      string `json:"kind" validate:"omitempty,is-message-kind"`
	ReplyToID *uint  `json:"replyToId,omitempty"`
}

type SendDirectMessageRequest struct {
	RecipientID uint   `json:"recipientId" validate:"required"`
	Content     string `json:"content"`
	Kind        string `json:"kind" validate:"omitempty,is-message-kind"`
}

type ReactionRequest struct {
	Emoji string `json:"emoji" form:"emoji" validate:"required,max=32"`
}

type AttachmentInput struct {
	URL      string
	Name     string
	Size     int64
	MimeType string
}

// AppendMessageInput is the transport-independent form of a room message intent.
type AppendMessageInput struct {
	RoomID     uint
	SenderID   uint
	Content    string
	Kind       string
	ReplyToID  *uint
	Attachment *AttachmentInput
}

type AppendDirectInput struct {
	SenderID    uint
	RecipientID uint
	Content     string
	Kind        string
	Attachment  *AttachmentInput
}

// --- Responses ---

type UserSummary struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type RoomResponse struct {
	ID          uint         `json:"id"`
	Name        string       `json:"name"`
	Kind        string       `json:"kind"`
	Category    string       `json:"category"`
	IsPrivate   bool         `json:"isPrivate"`
	MaxUsers    int          `json:"maxUsers"`
	OnlineCount int          `json:"onlineCount"`
	CreatorID   uint         `json:"creatorId"`
	Creator     *UserSummary `json:"creator,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

type AttachmentResponse struct {
	URL      string `json:"url"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType,omitempty"`
}

// ReactionGroup is the per-emoji view of a message's reactions.
type ReactionGroup struct {
	Emoji   string   `json:"emoji"`
	Count   int      `json:"count"`
	Users   []string `json:"users"`
	UserIDs []uint   `json:"userIds"`
}

type ReplyPreview struct {
	ID         uint      `json:"id"`
	SenderID   uint      `json:"senderId"`
	SenderName string    `json:"senderName"`
	Content    string    `json:"content"`
	Kind       string    `json:"kind"`
	CreatedAt  time.Time `json:"createdAt"`
}

type MessageResponse struct {
	ID         uint                `json:"id"`
	RoomID     uint                `json:"roomId"`
	SenderID   uint                `json:"senderId"`
	SenderName string              `json:"senderName"`
	Content    string              `json:"content"`
	Kind       string              `json:"kind"`
	ReplyToID  *uint               `json:"replyToId,omitempty"`
	ReplyTo    *ReplyPreview       `json:"replyTo,omitempty"`
	Attachment *AttachmentResponse `json:"attachment,omitempty"`
	Reactions  []ReactionGroup     `json:"reactions"`
	ReadCount  int64               `json:"readCount"`
	CreatedAt  time.Time           `json:"createdAt"`
}

type DirectMessageResponse struct {
	ID            uint                `json:"id"`
	SenderID      uint                `json:"senderId"`
	SenderName    string              `json:"senderName"`
	RecipientID   uint                `json:"recipientId"`
	RecipientName string              `json:"recipientName"`
	Content       string              `json:"content"`
	Kind          string              `json:"kind"`
	Attachment    *AttachmentResponse `json:"attachment,omitempty"`
	ReadAt        *time.Time          `json:"readAt,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
}

type ConversationResponse struct {
	Peer        UserSummary           `json:"peer"`
	LastMessage DirectMessageResponse `json:"lastMessage"`
	UnreadCount int64                 `json:"unreadCount"`
}

type PresenceResponse struct {
	UserID   uint      `json:"userId"`
	Name     string    `json:"name"`
	RoomID   uint      `json:"roomId"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"lastSeen"`
}

type MessageReactionsResponse struct {
	MessageID uint            `json:"messageId"`
	RoomID    uint            `json:"roomId"`
	Reactions []ReactionGroup `json:"reactions"`
}

type ReceiptResponse struct {
	MessageID uint      `json:"messageId"`
	RoomID    uint      `json:"roomId"`
	UserID    uint      `json:"userId"`
	Name      string    `json:"name,omitempty"`
	ReadAt    time.Time `json:"readAt"`
}

// JoinResult describes a successful admission. Admitted is false when the user
// was already live in the room.
type JoinResult struct {
	Room     RoomResponse       `json:"room"`
	Online   []PresenceResponse `json:"online"`
	Admitted bool               `json:"-"`
}

type PaginatedResponse[T any] struct {
	Items    []T   `json:"items"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}
