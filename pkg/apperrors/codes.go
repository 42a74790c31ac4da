package apperrors

// ErrorCode identifies an error class across HTTP and realtime surfaces.
type ErrorCode string

const (
	CodeUnauthenticated  ErrorCode = "UNAUTHENTICATED"
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	CodeForbidden        ErrorCode = "FORBIDDEN"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeCapacityExceeded ErrorCode = "CAPACITY_EXCEEDED"
	CodeConflict         ErrorCode = "CONFLICT"
	CodeRateLimited      ErrorCode = "RATE_LIMITED"
	CodeInternalError    ErrorCode = "INTERNAL_ERROR"
)

// Realtime error codes carried by the socket "error" event.
const (
	RealtimeUnauthenticated  = "unauthenticated"
	RealtimeValidation       = "validation"
	RealtimePermission       = "permission"
	RealtimeNotFound         = "not_found"
	RealtimeCapacityExceeded = "capacity_exceeded"
	RealtimeConflict         = "conflict"
	RealtimeRateLimited      = "rate_limited"
	RealtimeInternal         = "internal"
)

var realtimeCodes = map[ErrorCode]string{
	CodeUnauthenticated:  RealtimeUnauthenticated,
	CodeValidationFailed: RealtimeValidation,
	CodeForbidden:        RealtimePermission,
	CodeNotFound:         RealtimeNotFound,
	CodeCapacityExceeded: RealtimeCapacityExceeded,
	CodeConflict:         RealtimeConflict,
	CodeRateLimited:      RealtimeRateLimited,
	CodeInternalError:    RealtimeInternal,
}
