package chat

import (
	"creatorhub/internal/models"
	chatmodels "creatorhub/internal/models/chat"
	"creatorhub/internal/repositories"
	chatrepo "creatorhub/internal/repositories/chat"
	"creatorhub/internal/services/dto"

	"gorm.io/gorm"
)

// enricher turns stored messages into the client view: sender names, reply
// preview, grouped reactions and read counts. Every read path goes through it.
type enricher struct {
	userRepo     repositories.UserRepository
	messageRepo  chatrepo.MessageRepository
	reactionRepo chatrepo.ReactionRepository
	receiptRepo  chatrepo.ReadReceiptRepository
}

func newEnricher(repos Repositories) *enricher {
	return &enricher{
		userRepo:     repos.Users,
		messageRepo:  repos.Messages,
		reactionRepo: repos.Reactions,
		receiptRepo:  repos.Receipts,
	}
}

// groupReactions groups rows by emoji. Groups keep the order in which each
// emoji first appeared; rows must be sorted by insertion (id ascending).
func groupReactions(reactions []chatmodels.Reaction) []dto.ReactionGroup {
	groups := make([]dto.ReactionGroup, 0)
	index := make(map[string]int)

	for _, r := range reactions {
		i, ok := index[r.Emoji]
		if !ok {
			i = len(groups)
			index[r.Emoji] = i
			groups = append(groups, dto.ReactionGroup{
				Emoji:   r.Emoji,
				Users:   []string{},
				UserIDs: []uint{},
			})
		}

		name := ""
		if r.User != nil {
			name = r.User.Name
		}
		groups[i].Count++
		groups[i].Users = append(groups[i].Users, name)
		groups[i].UserIDs = append(groups[i].UserIDs, r.UserID)
	}
	return groups
}

func (e *enricher) reactionsFor(db *gorm.DB, messageIDs []uint) (map[uint][]dto.ReactionGroup, error) {
	reactions, err := e.reactionRepo.FindByMessages(db, messageIDs)
	if err != nil {
		return nil, err
	}

	byMessage := make(map[uint][]chatmodels.Reaction, len(messageIDs))
	for _, r := range reactions {
		byMessage[r.MessageID] = append(byMessage[r.MessageID], r)
	}

	grouped := make(map[uint][]dto.ReactionGroup, len(messageIDs))
	for _, id := range messageIDs {
		grouped[id] = groupReactions(byMessage[id])
	}
	return grouped, nil
}

func (e *enricher) enrichMessages(db *gorm.DB, messages []chatmodels.Message) ([]dto.MessageResponse, error) {
	if len(messages) == 0 {
		return []dto.MessageResponse{}, nil
	}

	messageIDs := make([]uint, 0, len(messages))
	userIDs := make([]uint, 0, len(messages))
	var replyIDs []uint
	for _, m := range messages {
		messageIDs = append(messageIDs, m.ID)
		userIDs = append(userIDs, m.SenderID)
		if m.ReplyToID != nil {
			replyIDs = append(replyIDs, *m.ReplyToID)
		}
	}

	replies, err := e.messageRepo.FindByIDs(db, replyIDs)
	if err != nil {
		return nil, err
	}
	repliesByID := make(map[uint]chatmodels.Message, len(replies))
	for _, r := range replies {
		repliesByID[r.ID] = r
		userIDs = append(userIDs, r.SenderID)
	}

	users, err := e.userRepo.FindByIDs(db, uniqueIDs(userIDs))
	if err != nil {
		return nil, err
	}

	reactions, err := e.reactionsFor(db, messageIDs)
	if err != nil {
		return nil, err
	}

	readCounts, err := e.receiptRepo.CountByMessages(db, messageIDs)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.MessageResponse, 0, len(messages))
	for _, m := range messages {
		resp := toMessageResponse(m, users)
		if m.ReplyToID != nil {
			if reply, ok := repliesByID[*m.ReplyToID]; ok {
				resp.ReplyTo = &dto.ReplyPreview{
					ID:         reply.ID,
					SenderID:   reply.SenderID,
					SenderName: userName(users, reply.SenderID),
					Content:    reply.Content,
					Kind:       string(reply.Kind),
					CreatedAt:  reply.CreatedAt,
				}
			}
		}
		resp.Reactions = reactions[m.ID]
		resp.ReadCount = readCounts[m.ID]
		responses = append(responses, resp)
	}
	return responses, nil
}

func (e *enricher) enrichDirect(db *gorm.DB, messages []chatmodels.DirectMessage) ([]dto.DirectMessageResponse, error) {
	userIDs := make([]uint, 0, len(messages)*2)
	for _, m := range messages {
		userIDs = append(userIDs, m.SenderID, m.RecipientID)
	}

	users, err := e.userRepo.FindByIDs(db, uniqueIDs(userIDs))
	if err != nil {
		return nil, err
	}

	responses := make([]dto.DirectMessageResponse, 0, len(messages))
	for _, m := range messages {
		responses = append(responses, toDirectMessageResponse(m, users))
	}
	return responses, nil
}

func toMessageResponse(m chatmodels.Message, users map[uint]*models.User) dto.MessageResponse {
	return dto.MessageResponse{
		ID:         m.ID,
		RoomID:     m.RoomID,
		SenderID:   m.SenderID,
		SenderName: userName(users, m.SenderID),
		Content:    m.Content,
		Kind:       string(m.Kind),
		ReplyToID:  m.ReplyToID,
		Attachment: toAttachmentResponse(m.Attachment),
		Reactions:  []dto.ReactionGroup{},
		CreatedAt:  m.CreatedAt,
	}
}

func toDirectMessageResponse(m chatmodels.DirectMessage, users map[uint]*models.User) dto.DirectMessageResponse {
	return dto.DirectMessageResponse{
		ID:            m.ID,
		SenderID:      m.SenderID,
		SenderName:    userName(users, m.SenderID),
		RecipientID:   m.RecipientID,
		RecipientName: userName(users, m.RecipientID),
		Content:       m.Content,
		Kind:          string(m.Kind),
		Attachment:    toAttachmentResponse(m.Attachment),
		ReadAt:        m.ReadAt,
		CreatedAt:     m.CreatedAt,
	}
}

func toAttachmentResponse(a chatmodels.Attachment) *dto.AttachmentResponse {
	if a.IsZero() {
		return nil
	}
	return &dto.AttachmentResponse{
		URL:      a.URL,
		Name:     a.Name,
		Size:     a.Size,
		MimeType: a.MimeType,
	}
}

func toRoomResponse(room *chatmodels.Room) dto.RoomResponse {
	resp := dto.RoomResponse{
		ID:          room.ID,
		Name:        room.Name,
		Kind:        string(room.Kind),
		Category:    room.Category,
		IsPrivate:   room.IsPrivate,
		MaxUsers:    room.MaxUsers,
		OnlineCount: room.OnlineCount,
		CreatorID:   room.CreatorID,
		CreatedAt:   room.CreatedAt,
	}
	if room.Creator != nil {
		resp.Creator = &dto.UserSummary{ID: room.Creator.ID, Name: room.Creator.Name}
	}
	return resp
}

func toPresenceResponse(p chatmodels.Presence) dto.PresenceResponse {
	name := ""
	if p.User != nil {
		name = p.User.Name
	}
	return dto.PresenceResponse{
		UserID:   p.UserID,
		Name:     name,
		RoomID:   p.RoomID,
		Status:   string(p.Status),
		LastSeen: p.LastSeen,
	}
}

func userName(users map[uint]*models.User, id uint) string {
	if u, ok := users[id]; ok {
		return u.Name
	}
	return ""
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
