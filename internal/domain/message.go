package domain

import "time"

type MessageID int64

type Message struct {
	ID             MessageID      `json:"id"`
	ConversationID ConversationID `json:"conversationId"`
	AuthorID       UserID         `json:"authorId"`
	Text           string         `json:"text"`
	Timestamp      time.Time      `json:"timestamp"`
	Edited         bool           `json:"edited"`
}
