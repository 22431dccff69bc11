// Package domain contains core concepts of the chat system.
// This file defines Message values as rendered by the application.
// Messages are immutable once committed by the store.
package domain

// Message is the application model of a stored message.
// SentAt is nil while the store has not committed the server timestamp.
type Message struct {
	ID             string  `json:"id"`
	ConversationID string  `json:"conversation_id"`
	Sender         string  `json:"user"`
	Body           string  `json:"text"`
	SentAt         *string `json:"sent_at"`
}

// Pending reports whether the server timestamp is still missing.
func (m Message) Pending() bool {
	return m.SentAt == nil
}
