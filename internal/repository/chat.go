package repository

import (
	"context"
	"time"

	"comfyguardians/internal/model"
)

// ChatFilter narrows ListActive.
type ChatFilter struct {
	// ParticipantID keeps chats where the id is the user or the psychologist.
	ParticipantID string
	// WithMessagesOnly drops chats without any message.
	WithMessagesOnly bool
	// OrderByLastMessage sorts by last_message_at instead of created_at.
	OrderByLastMessage bool
	// Limit caps the result; zero means no limit.
	Limit int
}

// ChatRepository persists chats.
type ChatRepository interface {
	// FindActiveByPair returns the active chat for the pair. A nil psychologistID matches chats without one.
	FindActiveByPair(ctx context.Context, userID string, psychologistID *string) (*model.Chat, error)

	Create(ctx context.Context, c *model.Chat) (*model.Chat, error)

	// FindByID returns a chat; with activeOnly set, inactive chats are reported as missing.
	FindByID(ctx context.Context, id string, activeOnly bool) (*model.Chat, error)

	ListActive(ctx context.Context, f ChatFilter) ([]model.Chat, error)

	// Recent returns the newest chats regardless of state.
	Recent(ctx context.Context, limit int) ([]model.Chat, error)

	TouchLastMessage(ctx context.Context, id string, at time.Time) error
}

// MessageRepository persists chat messages.
type MessageRepository interface {
	Create(ctx context.Context, m *model.Message) (*model.Message, error)

	FindByID(ctx context.Context, id string) (*model.Message, error)

	// SetRead updates is_read and returns the updated message.
	SetRead(ctx context.Context, id string, isRead bool) (*model.Message, error)

	// ListByChat returns a page of messages, newest first, with the chat's total count.
	ListByChat(ctx context.Context, chatID string, pq PageQuery) (*PageResult[model.Message], error)

	// ListByChats returns every message of the given chats, newest first.
	ListByChats(ctx context.Context, chatIDs []string) ([]model.Message, error)

	// Recent returns the newest messages across all chats.
	Recent(ctx context.Context, limit int) ([]model.Message, error)
}
