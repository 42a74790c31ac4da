package handlers

import (
	"creatorhub/internal/services"
	"creatorhub/internal/validator"
	"creatorhub/ws"

	"gorm.io/gorm"
)

// AppHandlers holds the application's HTTP handlers.
type AppHandlers struct {
	ChatHandler   *ChatHandler
	HealthHandler *HealthHandler
}

func NewAppHandlers(v *validator.Validator, svc *services.ServiceContainer, hub *ws.Manager, db *gorm.DB, historyPageSize int) *AppHandlers {
	base := NewBaseHandler(v)
	return &AppHandlers{
		ChatHandler:   NewChatHandler(base, svc, hub, historyPageSize),
		HealthHandler: NewHealthHandler(db, hub),
	}
}
