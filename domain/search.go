package domain

type SearchHit struct {
	MessageID      string  `json:"message_id"`
	ConversationID string  `json:"conversation_id"`
	Sender         string  `json:"user"`
	Text           string  `json:"text"`
	Score          float64 `json:"score"`
}
