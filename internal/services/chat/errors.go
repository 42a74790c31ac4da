package chat

import (
	"errors"

	"creatorhub/internal/repositories"
	chatrepo "creatorhub/internal/repositories/chat"
	"creatorhub/pkg/apperrors"

	"gorm.io/gorm"
)

// handleChatError maps repository errors onto the application taxonomy.
// AppErrors pass through untouched.
func handleChatError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, chatrepo.ErrRoomNotFound):
		return apperrors.ErrRoomNotFound.WithError(err)
	case errors.Is(err, chatrepo.ErrMessageNotFound):
		return apperrors.ErrMessageNotFound.WithError(err)
	case errors.Is(err, chatrepo.ErrDirectMessageNotFound):
		return apperrors.ErrDirectMessageNotFound.WithError(err)
	case errors.Is(err, repositories.ErrUserNotFound):
		return apperrors.ErrUserNotFound.WithError(err)
	case errors.Is(err, chatrepo.ErrPresenceNotFound), errors.Is(err, chatrepo.ErrReceiptNotFound):
		return apperrors.ErrNotFound(err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.ErrNotFound(err)
	case chatrepo.IsForeignKeyViolation(err):
		return apperrors.ErrNotFound(err)
	case chatrepo.IsUniqueViolation(err):
		return apperrors.ErrConflict(err, "chat", "Duplicate operation")
	}
	return apperrors.InternalError(err)
}
