package postgres

import (
	"context"
	"database/sql"

	"comfyguardians/internal/model"
	"comfyguardians/internal/repository"
)

const messageColumns = `id, chat_id, sender_id, sender_name, content, message_type, metadata::text, is_read, created_at`

// MessagePostgres is a PostgreSQL implementation of repository.MessageRepository.
type MessagePostgres struct {
	db *sql.DB
}

// NewMessagePostgres creates a new MessagePostgres repository.
func NewMessagePostgres(db *sql.DB) *MessagePostgres {
	return &MessagePostgres{db: db}
}

var _ repository.MessageRepository = (*MessagePostgres)(nil)

func scanMessage(row rowScanner) (*model.Message, error) {
	var (
		m          model.Message
		senderName sql.NullString
		metadata   sql.NullString
	)
	if err := row.Scan(
		&m.ID,
		&m.ChatID,
		&m.SenderID,
		&senderName,
		orEmpty(&m.Content),
		&m.MessageType,
		&metadata,
		&m.IsRead,
		&m.CreatedAt,
	); err != nil {
		return nil, err
	}
	m.SenderName = stringPtr(senderName)
	if metadata.Valid {
		m.Metadata = []byte(metadata.String)
	}
	return &m, nil
}

func scanMessages(rows *sql.Rows) ([]model.Message, error) {
	defer rows.Close()

	items := make([]model.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Create inserts a message and returns the stored row.
func (r *MessagePostgres) Create(ctx context.Context, m *model.Message) (*model.Message, error) {
	var metadata any
	if len(m.Metadata) > 0 {
		metadata = string(m.Metadata)
	}
	q := `
		INSERT INTO messages (chat_id, sender_id, sender_name, content, message_type, metadata, is_read)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, false)
		RETURNING ` + messageColumns
	return scanMessage(r.db.QueryRowContext(ctx, q,
		m.ChatID,
		m.SenderID,
		nullable(m.SenderName),
		m.Content,
		m.MessageType,
		metadata,
	))
}

// FindByID fetches a message by id.
func (r *MessagePostgres) FindByID(ctx context.Context, id string) (*model.Message, error) {
	q := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	return scanMessage(r.db.QueryRowContext(ctx, q, id))
}

// SetRead updates the read flag.
func (r *MessagePostgres) SetRead(ctx context.Context, id string, isRead bool) (*model.Message, error) {
	q := `UPDATE messages SET is_read = $2 WHERE id = $1 RETURNING ` + messageColumns
	return scanMessage(r.db.QueryRowContext(ctx, q, id, isRead))
}

// ListByChat returns a page of messages, newest first.
func (r *MessagePostgres) ListByChat(ctx context.Context, chatID string, pq repository.PageQuery) (*repository.PageResult[model.Message], error) {
	const countQ = `SELECT COUNT(*) FROM messages WHERE chat_id = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, countQ, chatID).Scan(&total); err != nil {
		return nil, err
	}

	q := `SELECT ` + messageColumns + ` FROM messages WHERE chat_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, q, chatID, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	items, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Message]{
		Items: items,
		Total: total,
	}, nil
}

// ListByChats returns all messages of the given chats, newest first.
func (r *MessagePostgres) ListByChats(ctx context.Context, chatIDs []string) ([]model.Message, error) {
	if len(chatIDs) == 0 {
		return []model.Message{}, nil
	}
	q := `SELECT ` + messageColumns + ` FROM messages WHERE chat_id IN (` + placeholders(1, len(chatIDs)) + `) ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, anyArgs(chatIDs)...)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

// Recent returns the newest messages.
func (r *MessagePostgres) Recent(ctx context.Context, limit int) ([]model.Message, error) {
	q := `SELECT ` + messageColumns + ` FROM messages ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}
