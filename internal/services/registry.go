package services

import (
	"creatorhub/internal/config"
	"creatorhub/internal/services/chat"
	"creatorhub/internal/storage"
)

// ServiceContainer holds the application services.
type ServiceContainer struct {
	RoomService          chat.RoomService
	PresenceService      chat.PresenceService
	MessageService       chat.MessageService
	DirectMessageService chat.DirectMessageService
	ReactionService      chat.ReactionService
	ReadReceiptService   chat.ReadReceiptService
	AttachmentService    chat.AttachmentService
}

func NewServiceContainer(cfg *config.Config, store storage.Storage) *ServiceContainer {
	repos := chat.NewRepositories()

	return &ServiceContainer{
		RoomService: chat.NewRoomService(repos, chat.RoomLimits{
			MinCapacity: cfg.Chat.MinRoomCapacity,
			MaxCapacity: cfg.Chat.MaxRoomCapacity,
		}),
		PresenceService:      chat.NewPresenceService(repos),
		MessageService:       chat.NewMessageService(repos, cfg.Chat.MaxMessageLength),
		DirectMessageService: chat.NewDirectMessageService(repos, cfg.Chat.MaxMessageLength),
		ReactionService:      chat.NewReactionService(repos),
		ReadReceiptService:   chat.NewReadReceiptService(repos),
		AttachmentService: chat.NewAttachmentService(store, chat.UploadLimits{
			MaxSize:      cfg.Upload.MaxSize,
			AllowedTypes: cfg.Upload.AllowedTypes,
		}),
	}
}
