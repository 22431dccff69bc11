package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidRecipient      = fmt.Errorf("recipient is not a valid email address")
	ErrSelfConversation      = fmt.Errorf("cannot start a conversation with yourself")
	ErrDuplicateConversation = fmt.Errorf("conversation already exists")
	ErrConversationNotFound  = fmt.Errorf("conversation not found")
	ErrNotParticipant        = fmt.Errorf("user is not a participant of the conversation")
	ErrEmptyMessage          = fmt.Errorf("message is empty")
	ErrUnauthenticated       = fmt.Errorf("user is not authenticated")
	ErrTokenRevoked          = fmt.Errorf("token has been revoked")
	ErrStoreUnavailable      = fmt.Errorf("document store unavailable")
	ErrSubscriptionClosed    = fmt.Errorf("subscription closed")
	ErrUnknownCollection     = fmt.Errorf("unknown collection")
	ErrWorkerPanic           = fmt.Errorf("worker panicked")
)

// MapToHTTPStatus translates a service error into the status code returned to the browser.
// Anything unknown is treated as a store failure so the UI can offer a retry.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrTokenRevoked):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, ErrConversationNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidRecipient),
		errors.Is(err, ErrSelfConversation),
		errors.Is(err, ErrDuplicateConversation),
		errors.Is(err, ErrEmptyMessage):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusServiceUnavailable
	}
}
