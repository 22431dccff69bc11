package domain

import "strings"

type SendMessageCommand struct {
	ConversationID string
	Sender         string
	Text           string
}

// Empty reports whether there is nothing to send.
func (c SendMessageCommand) Empty() bool {
	return strings.TrimSpace(c.Text) == ""
}

type CreateConversationCommand struct {
	CurrentUser string
	Recipient   string
}
