package chat

import (
	"creatorhub/internal/repositories"
	chatrepo "creatorhub/internal/repositories/chat"
)

// Repositories groups the stateless repositories the chat services share.
type Repositories struct {
	Users          repositories.UserRepository
	Rooms          chatrepo.RoomRepository
	Presence       chatrepo.PresenceRepository
	Messages       chatrepo.MessageRepository
	DirectMessages chatrepo.DirectMessageRepository
	Reactions      chatrepo.ReactionRepository
	Receipts       chatrepo.ReadReceiptRepository
}

func NewRepositories() Repositories {
	return Repositories{
		Users:          repositories.NewUserRepository(),
		Rooms:          chatrepo.NewRoomRepository(),
		Presence:       chatrepo.NewPresenceRepository(),
		Messages:       chatrepo.NewMessageRepository(),
		DirectMessages: chatrepo.NewDirectMessageRepository(),
		Reactions:      chatrepo.NewReactionRepository(),
		Receipts:       chatrepo.NewReadReceiptRepository(),
	}
}
