package services

import (
	"chatline/domain"
	chaterrors "chatline/errors"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var validate = validator.New()

type recipientRequest struct {
	Email string `validate:"required,email"`
}

// ConversationGuard decides whether a new conversation may be created.
// The duplicate check only sees the conversations already loaded by the
// caller, so two concurrent creations for the same pair can both pass.
type ConversationGuard struct{}

// Check runs the validations in order and returns the first failure.
func (ConversationGuard) Check(currentUser, candidate string, existing []domain.Conversation) error {
	if err := validate.Struct(recipientRequest{Email: candidate}); err != nil {
		return chaterrors.ErrInvalidRecipient
	}
	if candidate == currentUser {
		return chaterrors.ErrSelfConversation
	}
	if lo.ContainsBy(existing, func(c domain.Conversation) bool {
		return c.HasParticipant(candidate)
	}) {
		return chaterrors.ErrDuplicateConversation
	}
	return nil
}

type Rejection string

const (
	RejectedInvalid   Rejection = "invalid_recipient"
	RejectedSelf      Rejection = "self_conversation"
	RejectedDuplicate Rejection = "duplicate_conversation"
)

// RejectionOf names a guard failure for the UI; empty when err is not a guard failure.
func RejectionOf(err error) Rejection {
	switch err {
	case chaterrors.ErrInvalidRecipient:
		return RejectedInvalid
	case chaterrors.ErrSelfConversation:
		return RejectedSelf
	case chaterrors.ErrDuplicateConversation:
		return RejectedDuplicate
	default:
		return ""
	}
}
