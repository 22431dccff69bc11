package domain

import "slices"

// Conversation is a two-party chat thread. Its participant set never changes.
type Conversation struct {
	ID    string   `json:"id"`
	Users []string `json:"users"`
}

func NewConversation(id string, users ...string) Conversation {
	return Conversation{ID: id, Users: users}
}

// HasParticipant reports whether user belongs to the conversation.
func (c Conversation) HasParticipant(user string) bool {
	return slices.Contains(c.Users, user)
}

// Recipient returns the participant shown to currentUser.
func (c Conversation) Recipient(currentUser string) string {
	return RecipientOf(c.Users, currentUser)
}
