package services

import (
	"chatline/domain"
	chaterrors "chatline/errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConversationGuard_Check(t *testing.T) {
	existing := []domain.Conversation{domain.NewConversation("c1", "alice@x.io", "bob@x.io")}
	guard := ConversationGuard{}

	tests := []struct {
		name      string
		candidate string
		want      error
		rejection Rejection
	}{
		{name: "existing recipient", candidate: "bob@x.io", want: chaterrors.ErrDuplicateConversation, rejection: RejectedDuplicate},
		{name: "self", candidate: "alice@x.io", want: chaterrors.ErrSelfConversation, rejection: RejectedSelf},
		{name: "not an email", candidate: "not-an-email", want: chaterrors.ErrInvalidRecipient, rejection: RejectedInvalid},
		{name: "empty", candidate: "", want: chaterrors.ErrInvalidRecipient, rejection: RejectedInvalid},
		{name: "new recipient", candidate: "carol@x.io"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			err := guard.Check("alice@x.io", tt.candidate, existing)
			if tt.want == nil {
				req.NoError(err)
			} else {
				req.ErrorIs(err, tt.want)
			}
			req.Equal(tt.rejection, RejectionOf(err))
		})
	}
}

func TestConversationGuard_Validation_Runs_Before_Self_Check(t *testing.T) {
	// An invalid current user typed as recipient reports the format problem first
	err := ConversationGuard{}.Check("alice", "alice", nil)
	require.ErrorIs(t, err, chaterrors.ErrInvalidRecipient)
}
