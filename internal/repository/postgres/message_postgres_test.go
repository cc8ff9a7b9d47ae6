package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comfyguardians/internal/model"
	"comfyguardians/internal/repository"
)

var messageCols = []string{"id", "chat_id", "sender_id", "sender_name", "content", "message_type", "metadata", "is_read", "created_at"}

func TestMessagePostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewMessagePostgres(db)
	now := time.Now().UTC()
	name := "Ana"

	t.Run("text message", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO messages").
			WithArgs("chat-1", "user-1", "Ana", "hello", model.MessageTypeText, nil).
			WillReturnRows(sqlmock.NewRows(messageCols).
				AddRow("m1", "chat-1", "user-1", "Ana", "hello", "text", nil, false, now))

		m, err := repo.Create(context.Background(), &model.Message{
			ChatID:      "chat-1",
			SenderID:    "user-1",
			SenderName:  &name,
			Content:     "hello",
			MessageType: model.MessageTypeText,
		})

		require.NoError(t, err)
		assert.Equal(t, "m1", m.ID)
		assert.Nil(t, m.Metadata)
	})

	t.Run("attachment metadata", func(t *testing.T) {
		meta := `{"storage_path":"chats/chat-1/x.png","filename":"x.png","size":3,"content_type":"image/png"}`
		mock.ExpectQuery(`INSERT INTO messages (.+)\$6::jsonb`).
			WithArgs("chat-1", "user-1", nil, "x.png", model.MessageTypeImage, meta).
			WillReturnRows(sqlmock.NewRows(messageCols).
				AddRow("m2", "chat-1", "user-1", nil, "x.png", "image", meta, false, now))

		m, err := repo.Create(context.Background(), &model.Message{
			ChatID:      "chat-1",
			SenderID:    "user-1",
			Content:     "x.png",
			MessageType: model.MessageTypeImage,
			Metadata:    json.RawMessage(meta),
		})

		require.NoError(t, err)
		var got model.AttachmentMetadata
		require.NoError(t, json.Unmarshal(m.Metadata, &got))
		assert.Equal(t, "chats/chat-1/x.png", got.StoragePath)
		assert.Nil(t, m.SenderName)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessagePostgres_SetRead(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewMessagePostgres(db)
	now := time.Now().UTC()

	t.Run("updated", func(t *testing.T) {
		mock.ExpectQuery(`UPDATE messages SET is_read = \$2 WHERE id = \$1`).
			WithArgs("m1", true).
			WillReturnRows(sqlmock.NewRows(messageCols).AddRow("m1", "chat-1", "user-1", nil, "hi", "text", nil, true, now))

		m, err := repo.SetRead(context.Background(), "m1", true)

		require.NoError(t, err)
		assert.True(t, m.IsRead)
	})

	t.Run("missing", func(t *testing.T) {
		mock.ExpectQuery(`UPDATE messages SET is_read`).
			WithArgs("nope", false).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.SetRead(context.Background(), "nope", false)

		assert.ErrorIs(t, err, sql.ErrNoRows)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessagePostgres_ListByChat(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM messages WHERE chat_id = \$1`).
		WithArgs("chat-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`FROM messages WHERE chat_id = \$1 ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("chat-1", 2, 0).
		WillReturnRows(sqlmock.NewRows(messageCols).
			AddRow("m3", "chat-1", "user-1", nil, "third", "text", nil, false, now).
			AddRow("m2", "chat-1", "user-1", nil, "second", "text", nil, false, now.Add(-time.Minute)))

	res, err := NewMessagePostgres(db).ListByChat(context.Background(), "chat-1", repository.PageQuery{Limit: 2})

	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "m3", res.Items[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessagePostgres_FindByID_NullContent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM messages WHERE id = \$1`).
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows(messageCols).
			AddRow("m1", "chat-1", "user-1", nil, nil, "system", nil, false, time.Now().UTC()))

	m, err := NewMessagePostgres(db).FindByID(context.Background(), "m1")

	require.NoError(t, err)
	assert.Empty(t, m.Content)
	assert.Nil(t, m.SenderName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessagePostgres_ListByChats(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewMessagePostgres(db)

	items, err := repo.ListByChats(context.Background(), []string{})
	require.NoError(t, err)
	assert.Empty(t, items)

	mock.ExpectQuery(`WHERE chat_id IN \(\$1, \$2\) ORDER BY created_at DESC`).
		WithArgs("chat-1", "chat-2").
		WillReturnRows(sqlmock.NewRows(messageCols))

	items, err = repo.ListByChats(context.Background(), []string{"chat-1", "chat-2"})

	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}
