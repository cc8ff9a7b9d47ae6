package model

import (
	"encoding/json"
	"time"
)

// Message types accepted by the messages table.
const (
	MessageTypeText   = "text"
	MessageTypeImage  = "image"
	MessageTypeFile   = "file"
	MessageTypeSystem = "system"
)

// Chat is a conversation between a user and, optionally, a psychologist.
type Chat struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	PsychologistID *string    `json:"psychologist_id"`
	Title          *string    `json:"title"`
	IsActive       bool       `json:"is_active"`
	LastMessageAt  *time.Time `json:"last_message_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Participants returns the non-empty participant ids.
func (c Chat) Participants() []string {
	ids := []string{c.UserID}
	if c.PsychologistID != nil && *c.PsychologistID != "" {
		ids = append(ids, *c.PsychologistID)
	}
	return ids
}

// Message is a single chat message.
type Message struct {
	ID          string          `json:"id"`
	ChatID      string          `json:"chat_id"`
	SenderID    string          `json:"sender_id"`
	SenderName  *string         `json:"sender_name"`
	Content     string          `json:"content"`
	MessageType string          `json:"message_type"`
	Metadata    json.RawMessage `json:"metadata"`
	IsRead      bool            `json:"is_read"`
	CreatedAt   time.Time       `json:"created_at"`
}

// AttachmentMetadata is stored in messages.metadata for image and file messages.
type AttachmentMetadata struct {
	StoragePath string `json:"storage_path"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}
