package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"comfyguardians/internal/model"
	"comfyguardians/internal/repository"
)

const chatColumns = `id, user_id, psychologist_id, title, is_active, last_message_at, created_at, updated_at`

// ChatPostgres is a PostgreSQL implementation of repository.ChatRepository.
type ChatPostgres struct {
	db *sql.DB
}

// NewChatPostgres creates a new ChatPostgres repository.
func NewChatPostgres(db *sql.DB) *ChatPostgres {
	return &ChatPostgres{db: db}
}

var _ repository.ChatRepository = (*ChatPostgres)(nil)

func scanChat(row rowScanner) (*model.Chat, error) {
	var (
		c              model.Chat
		psychologistID sql.NullString
		title          sql.NullString
		lastMessageAt  sql.NullTime
	)
	if err := row.Scan(
		&c.ID,
		&c.UserID,
		&psychologistID,
		&title,
		&c.IsActive,
		&lastMessageAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.PsychologistID = stringPtr(psychologistID)
	c.Title = stringPtr(title)
	c.LastMessageAt = timePtr(lastMessageAt)
	return &c, nil
}

func scanChats(rows *sql.Rows) ([]model.Chat, error) {
	defer rows.Close()

	items := make([]model.Chat, 0)
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// FindActiveByPair returns the active chat between userID and psychologistID.
func (r *ChatPostgres) FindActiveByPair(ctx context.Context, userID string, psychologistID *string) (*model.Chat, error) {
	if psychologistID == nil {
		q := `SELECT ` + chatColumns + ` FROM chats WHERE user_id = $1 AND psychologist_id IS NULL AND is_active = true LIMIT 1`
		return scanChat(r.db.QueryRowContext(ctx, q, userID))
	}
	q := `SELECT ` + chatColumns + ` FROM chats WHERE user_id = $1 AND psychologist_id = $2 AND is_active = true LIMIT 1`
	return scanChat(r.db.QueryRowContext(ctx, q, userID, *psychologistID))
}

// Create inserts a new active chat.
func (r *ChatPostgres) Create(ctx context.Context, c *model.Chat) (*model.Chat, error) {
	q := `
		INSERT INTO chats (user_id, psychologist_id, title, is_active)
		VALUES ($1, $2, $3, true)
		RETURNING ` + chatColumns
	stored, err := scanChat(r.db.QueryRowContext(ctx, q, c.UserID, nullable(c.PsychologistID), nullable(c.Title)))
	if err != nil {
		return nil, translateError(err)
	}
	return stored, nil
}

// FindByID fetches a chat by id.
func (r *ChatPostgres) FindByID(ctx context.Context, id string, activeOnly bool) (*model.Chat, error) {
	q := `SELECT ` + chatColumns + ` FROM chats WHERE id = $1`
	if activeOnly {
		q += ` AND is_active = true`
	}
	return scanChat(r.db.QueryRowContext(ctx, q, id))
}

// ListActive lists active chats matching f.
func (r *ChatPostgres) ListActive(ctx context.Context, f repository.ChatFilter) ([]model.Chat, error) {
	var (
		b    strings.Builder
		args []any
	)
	b.WriteString(`SELECT ` + chatColumns + ` FROM chats c WHERE c.is_active = true`)

	if f.ParticipantID != "" {
		args = append(args, f.ParticipantID)
		fmt.Fprintf(&b, ` AND (c.user_id = $%d OR c.psychologist_id = $%d)`, len(args), len(args))
	}
	if f.WithMessagesOnly {
		b.WriteString(` AND EXISTS (SELECT 1 FROM messages m WHERE m.chat_id = c.id)`)
	}
	if f.OrderByLastMessage {
		b.WriteString(` ORDER BY c.last_message_at DESC NULLS LAST`)
	} else {
		b.WriteString(` ORDER BY c.created_at DESC`)
	}
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&b, ` LIMIT $%d`, len(args))
	}

	rows, err := r.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	return scanChats(rows)
}

// Recent returns the newest chats.
func (r *ChatPostgres) Recent(ctx context.Context, limit int) ([]model.Chat, error) {
	q := `SELECT ` + chatColumns + ` FROM chats ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	return scanChats(rows)
}

// TouchLastMessage sets last_message_at and updated_at.
func (r *ChatPostgres) TouchLastMessage(ctx context.Context, id string, at time.Time) error {
	const q = `UPDATE chats SET last_message_at = $2, updated_at = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id, at)
	return err
}
