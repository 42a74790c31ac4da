package handlers

import (
	"net/http"
	"strconv"

	"creatorhub/internal/models"
	"creatorhub/internal/services"
	"creatorhub/internal/services/chat"
	"creatorhub/internal/services/dto"
	"creatorhub/pkg/apperrors"
	"creatorhub/ws"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	*BaseHandler
	roomService        chat.RoomService
	presenceService    chat.PresenceService
	messageService     chat.MessageService
	directService      chat.DirectMessageService
	reactionService    chat.ReactionService
	readReceiptService chat.ReadReceiptService
	attachmentService  chat.AttachmentService
	hub                *ws.Manager
	historyPageSize    int
}

func NewChatHandler(base *BaseHandler, svc *services.ServiceContainer, hub *ws.Manager, historyPageSize int) *ChatHandler {
	return &ChatHandler{
		BaseHandler:        base,
		roomService:        svc.RoomService,
		presenceService:    svc.PresenceService,
		messageService:     svc.MessageService,
		directService:      svc.DirectMessageService,
		reactionService:    svc.ReactionService,
		readReceiptService: svc.ReadReceiptService,
		attachmentService:  svc.AttachmentService,
		hub:                hub,
		historyPageSize:    historyPageSize,
	}
}

func (h *ChatHandler) RegisterRoutes(r *gin.RouterGroup, auth gin.HandlerFunc) {
	chatGroup := r.Group("/chat")
	chatGroup.Use(auth)
	{
		chatGroup.GET("/rooms", h.ListRooms)
		chatGroup.POST("/rooms", h.CreateRoom)
		chatGroup.GET("/rooms/:roomId", h.GetRoom)
		chatGroup.PATCH("/rooms/:roomId", h.UpdateRoom)
		chatGroup.GET("/rooms/:roomId/messages", h.GetHistory)
		chatGroup.POST("/rooms/:roomId/messages", h.PostMessage)
		chatGroup.POST("/rooms/:roomId/join", h.JoinRoom)
		chatGroup.POST("/rooms/:roomId/leave", h.LeaveRoom)
		chatGroup.POST("/rooms/:roomId/files", h.UploadFile)

		chatGroup.GET("/online", h.ListOnline)

		chatGroup.GET("/conversations", h.ListConversations)
		chatGroup.GET("/conversations/:userId", h.GetConversation)
		chatGroup.POST("/direct-messages", h.SendDirectMessage)
		chatGroup.POST("/direct-messages/:messageId/read", h.MarkDirectRead)

		chatGroup.GET("/messages/:messageId/reactions", h.GetReactions)
		chatGroup.POST("/messages/:messageId/reactions", h.AddReaction)
		chatGroup.DELETE("/messages/:messageId/reactions", h.RemoveReaction)
		chatGroup.POST("/messages/:messageId/read", h.MarkRead)
		chatGroup.GET("/messages/:messageId/receipts", h.GetReceipts)
	}
}

// --- Rooms ---

func (h *ChatHandler) ListRooms(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	var req dto.RoomListRequest
	if !h.BindAndValidate_Query(c, &req) {
		return
	}
	req.Page, req.PageSize = ParsePagination(c, 20)

	rooms, err := h.roomService.ListRooms(c.Request.Context(), h.GetDB(c), userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, rooms)
}

func (h *ChatHandler) CreateRoom(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	var req dto.CreateRoomRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), h.GetDB(c), userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	// The creator is admitted; open sockets start listening right away.
	h.hub.SubscribeUser(userID, ws.RoomChannel(room.ID))
	c.JSON(http.StatusCreated, room)
}

func (h *ChatHandler) GetRoom(c *gin.Context) {
	roomID, err := ParseParamID(c, "roomId")
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	room, err := h.roomService.GetRoom(c.Request.Context(), h.GetDB(c), roomID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *ChatHandler) UpdateRoom(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	roomID, err := ParseParamID(c, "roomId")
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	var req dto.UpdateRoomRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	room, err := h.roomService.UpdateRoom(c.Request.Context(), h.GetDB(c), userID, roomID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *ChatHandler) JoinRoom(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	roomID, err := ParseParamID(c, "roomId")
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	ctx := c.Request.Context()
	result, err := h.presenceService.Join(ctx, h.GetDB(c), identity.UserID, roomID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	channel := ws.RoomChannel(roomID)
	h.hub.SubscribeUser(identity.UserID, channel)
	if result.Admitted {
		h.hub.Publish(ctx, channel, ws.EventUserJoined,
			ws.NewPresenceEvent(identity.UserID, identity.Name, roomID, string(models.PresenceOnline)), nil)
	}
	c.JSON(http.StatusOK, result)
}

func (h *ChatHandler) LeaveRoom(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	roomID, err := ParseParamID(c, "roomId")
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	ctx := c.Request.Context()
	wasLive, err := h.presenceService.Leave(ctx, h.GetDB(c), identity.UserID, roomID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	channel := ws.RoomChannel(roomID)
	h.hub.UnsubscribeUser(identity.UserID, channel)
	if wasLive {
		h.hub.Publish(ctx, channel, ws.EventUserLeft,
			ws.NewPresenceEvent(identity.UserID, identity.Name, roomID, string(models.PresenceOffline)), nil)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Left room", "roomId": roomID})
}

func (h *ChatHandler) ListOnline(c *gin.Context) {
	var roomID *uint
	if raw := c.Query("room_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			h.HandleServiceError(c, apperrors.NewBadRequestError("Invalid query parameter: room_id"))
			return
		}
		v := uint(id)
		roomID = &v
	}

	online, err := h.presenceService.ListOnline(c.Request.Context(), h.GetDB(c), roomID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"online": online, "total": len(online)})
}

// --- Messages ---

func (h *ChatHandler) GetHistory(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	roomID, err := ParseParamID(c, "roomId")
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	page, pageSize := ParsePagination(c, h.historyPageSize)

	history, err := h.messageService.GetHistory(c.Request.Context(), h.GetDB(c), userID, roomID, page, pageSize)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// PostMessage is the HTTP fallback for send_room_message.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	roomID, err := ParseParamID(c, "roomId")
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	var req dto.SendMessageRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	msg, err := h.messageService.SendRoomMessage(ctx, h.GetDB(c), &dto.AppendMessageInput{
		RoomID:    roomID,
		SenderID:  userID,
		Content:   req.Content,
		Kind:      req.Kind,
		ReplyToID: req.ReplyToID,
	}, h.publishMessage(c))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// UploadFile stores a multipart "file" and posts it as an image or file
// message. Optional form fields: content, replyToId.
func (h *ChatHandler) UploadFile(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	roomID, err := ParseParamID(c, "roomId")
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	ctx := c.Request.Context()
	db := h.GetDB(c)

	// Refuse before storing anything.
	if _, err := h.roomService.GetRoom(ctx, db, roomID); err != nil {
		h.HandleServiceError(c, err)
		return
	}
	inRoom, err := h.presenceService.IsInRoom(ctx, db, userID, roomID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	if !inRoom {
		h.HandleServiceError(c, apperrors.ErrNotInRoom)
		return
	}

	var replyToID *uint
	if raw := c.PostForm("replyToId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			h.HandleServiceError(c, apperrors.NewBadRequestError("Invalid form field: replyToId"))
			return
		}
		v := uint(id)
		replyToID = &v
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.HandleServiceError(c, apperrors.NewBadRequestError("File is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		h.HandleServiceError(c, apperrors.InternalError(err))
		return
	}
	defer file.Close()

	attachment, kind, err := h.attachmentService.Store(ctx, roomID, fileHeader.Filename, fileHeader.Size, file)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	msg, err := h.messageService.SendRoomMessage(ctx, db, &dto.AppendMessageInput{
		RoomID:     roomID,
		SenderID:   userID,
		Content:    c.PostForm("content"),
		Kind:       string(kind),
		ReplyToID:  replyToID,
		Attachment: attachment,
	}, h.publishMessage(c))
	if err != nil {
		h.attachmentService.Discard(ctx, attachment.URL)
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *ChatHandler) publishMessage(c *gin.Context) chat.PublishFunc {
	ctx := c.Request.Context()
	return func(m *dto.MessageResponse) {
		h.hub.Publish(ctx, ws.RoomChannel(m.RoomID), ws.EventNewMessage, m, nil)
	}
}

// --- Direct messages ---

func (h *ChatHandler) ListConversations(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	conversations, err := h.directService.ListConversations(c.Request.Context(), h.GetDB(c), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations, "total": len(conversations)})
}

func (h *ChatHandler) GetConversation(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	peerID, err := ParseParamID(c, "userId")
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	page, pageSize := ParsePagination(c, h.historyPageSize)

	history, err := h.directService.GetConversation(c.Request.Context(), h.GetDB(c), userID, peerID, page, pageSize)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *ChatHandler) SendDirectMessage(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	var req dto.SendDirectMessageRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	dm, err := h.directService.SendDirectMessage(ctx, h.GetDB(c), &dto.AppendDirectInput{
		SenderID:    userID,
		RecipientID: req.RecipientID,
		Content:     req.Content,
		Kind:        req.Kind,
	})
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	h.hub.Publish(ctx, ws.UserChannel(dm.RecipientID), ws.EventNewDirectMessage, dm, nil)
	c.JSON(http.StatusCreated, dm)
}

func (h *ChatHandler) MarkDirectRead(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	messageID, err := ParseParamID(c, "messageId")
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	ctx := c.Request.Context()
	dm, changed, err := h.directService.MarkRead(ctx, h.GetDB(c), userID, messageID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	if changed {
		h.hub.Publish(ctx, ws.UserChannel(dm.SenderID), ws.EventDirectMessageRead, ws.NewDirectReadEvent(dm), nil)
	}
	c.JSON(http.StatusOK, dm)
}

// --- Reactions and receipts ---

func (h *ChatHandler) GetReactions(c *gin.Context) {
	messageID, err := ParseParamID(c, "messageId")
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	view, err := h.reactionService.GetReactions(c.Request.Context(), h.GetDB(c), messageID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *ChatHandler) AddReaction(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	messageID, err := ParseParamID(c, "messageId")
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	var req dto.ReactionRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	view, err := h.reactionService.AddReaction(ctx, h.GetDB(c), userID, messageID, req.Emoji)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.hub.Publish(ctx, ws.RoomChannel(view.RoomID), ws.EventReactionUpdated, view, nil)
	c.JSON(http.StatusOK, view)
}

func (h *ChatHandler) RemoveReaction(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	messageID, err := ParseParamID(c, "messageId")
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	var req dto.ReactionRequest
	if !h.BindAndValidate_Query(c, &req) {
		return
	}

	ctx := c.Request.Context()
	view, err := h.reactionService.RemoveReaction(ctx, h.GetDB(c), userID, messageID, req.Emoji)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.hub.Publish(ctx, ws.RoomChannel(view.RoomID), ws.EventReactionUpdated, view, nil)
	c.JSON(http.StatusOK, view)
}

func (h *ChatHandler) MarkRead(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	messageID, err := ParseParamID(c, "messageId")
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	ctx := c.Request.Context()
	receipt, err := h.readReceiptService.MarkRead(ctx, h.GetDB(c), userID, messageID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.hub.Publish(ctx, ws.RoomChannel(receipt.RoomID), ws.EventMessageRead, receipt, nil)
	c.JSON(http.StatusOK, receipt)
}

func (h *ChatHandler) GetReceipts(c *gin.Context) {
	messageID, err := ParseParamID(c, "messageId")
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	receipts, err := h.readReceiptService.GetReceipts(c.Request.Context(), h.GetDB(c), messageID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"receipts": receipts, "total": len(receipts)})
}
