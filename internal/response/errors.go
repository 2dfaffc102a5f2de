package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrLoginDisabled      ErrCode = "LOGIN_DISABLED"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrAttemptAccessOnly ErrCode = "ATTEMPT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Exam session ──────────────────────────────────────────────────
	ErrSessionNotLive    ErrCode = "SESSION_NOT_LIVE"
	ErrSessionStart      ErrCode = "SESSION_START_FAILED"
	ErrSessionNotStarted ErrCode = "SESSION_NOT_STARTED"
	ErrSessionFinished   ErrCode = "SESSION_FINISHED"
	ErrQuestionFetch     ErrCode = "QUESTION_FETCH_FAILED"
	ErrNoCurrentQuestion ErrCode = "NO_CURRENT_QUESTION"
	ErrResponseSave      ErrCode = "RESPONSE_SAVE_FAILED"
	ErrResponseExists    ErrCode = "RESPONSE_EXISTS"
	ErrAttemptFinish     ErrCode = "ATTEMPT_FINISH_FAILED"
	ErrImageRequired     ErrCode = "IMAGE_REQUIRED"
	ErrPackRequired      ErrCode = "PACK_REQUIRED"

	// ─── Media ─────────────────────────────────────────────────────────
	ErrFileRequired    ErrCode = "FILE_REQUIRED"
	ErrUnsupportedFile ErrCode = "UNSUPPORTED_FILE_TYPE"
	ErrFileTooLarge    ErrCode = "FILE_TOO_LARGE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Incorrect password."
	case ErrLoginDisabled:
		return "Admin login is not configured on this server."
	case ErrSessionInvalidated:
		return "Your session has ended. Please log in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid or expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You are not allowed to access this resource."
	case ErrAttemptAccessOnly:
		return "This token does not control this attempt."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	// ─── Exam session ──────────────────────────────────────────────────
	case ErrSessionNotLive:
		return "This attempt has no live exam session."
	case ErrSessionStart:
		return "The exam could not be started. Please try again."
	case ErrSessionNotStarted:
		return "The exam has not started yet."
	case ErrSessionFinished:
		return "The exam is already finished."
	case ErrQuestionFetch:
		return "The next questions could not be loaded. Please try again."
	case ErrNoCurrentQuestion:
		return "There is no question to answer."
	case ErrResponseSave:
		return "The response could not be saved. Please try again."
	case ErrResponseExists:
		return "A response for this question was already recorded."
	case ErrAttemptFinish:
		return "The exam could not be finished. Please try again."
	case ErrImageRequired:
		return "An image is required for this part."
	case ErrPackRequired:
		return "Part 1.1 and 1.2 questions need a pack ID and a pack order."

	// ─── Media ─────────────────────────────────────────────────────────
	case ErrFileRequired:
		return "A file upload is required."
	case ErrUnsupportedFile:
		return "Unsupported file type."
	case ErrFileTooLarge:
		return "The file exceeds the size limit."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
