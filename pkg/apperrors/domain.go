package apperrors

import (
	"net/http"
)

// ErrNotFound wraps a repository miss.
func ErrNotFound(err error) *AppError {
	return Wrap(err, CodeNotFound, "resource", "Resource not found", http.StatusNotFound)
}

func ErrConflict(err error, domain, message string) *AppError {
	return Wrap(err, CodeConflict, domain, message, http.StatusConflict)
}

// --- Auth ---

var ErrMissingToken = NewUnauthenticatedError("Authorization token is required")

var ErrInvalidToken = NewUnauthenticatedError("Invalid or expired token")

var ErrNotAuthenticated = NewUnauthenticatedError("Connection is not authenticated")

var ErrAlreadyAuthenticated = NewConflictError("auth", "Connection is already authenticated")

// --- Rooms ---

var ErrRoomNotFound = NewNotFoundError("room", "Room not found")

var ErrRoomFull = NewCapacityExceededError("room", "Room is full")

var ErrNotRoomCreator = NewPermissionError("room", "Only the room creator can change this room")

var ErrCapacityBelowOnline = NewConflictError("room", "Capacity cannot be lower than the number of users online")

var ErrNotInRoom = NewPermissionError("room", "You are not in this room")

// --- Messages ---

var ErrMessageNotFound = NewNotFoundError("message", "Message not found")

var ErrInvalidReply = NewValidationError("message", "Replied message does not exist in this room")

var ErrEmptyMessage = NewValidationError("message", "Message content is required")

var ErrMessageTooLong = NewValidationError("message", "Message content is too long")

var ErrSendTooFast = NewRateLimitedError("message", "You are sending messages too fast")

// --- Direct messages ---

var ErrRecipientNotFound = NewNotFoundError("direct_message", "Recipient not found")

var ErrMessageToSelf = NewValidationError("direct_message", "Cannot send a direct message to yourself")

var ErrDirectMessageNotFound = NewNotFoundError("direct_message", "Direct message not found")

var ErrNotRecipient = NewPermissionError("direct_message", "Only the recipient can mark this message as read")

// --- Users ---

var ErrUserNotFound = NewNotFoundError("user", "User not found")

// --- Uploads ---

var ErrFileTooLarge = New(
	CodeValidationFailed,
	"upload",
	"File size exceeds the allowed limit",
	http.StatusRequestEntityTooLarge,
)

var ErrInvalidFileType = New(
	CodeValidationFailed,
	"upload",
	"The provided file type is not allowed",
	http.StatusUnsupportedMediaType,
)
