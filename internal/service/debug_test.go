package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"comfyguardians/internal/model"
	"comfyguardians/internal/repository"
	repoMocks "comfyguardians/internal/repository/mocks"
	"comfyguardians/internal/storage"
)

func newDebugService(env EnvironmentFlags) (DebugService, chatMocks) {
	m := chatMocks{
		chats:    new(repoMocks.MockChatRepository),
		messages: new(repoMocks.MockMessageRepository),
		profiles: new(repoMocks.MockProfileRepository),
	}
	return NewDebugService(m.profiles, m.chats, m.messages, storage.Disabled{}, env, zerolog.Nop()), m
}

func TestDebugService_Probe(t *testing.T) {
	ctx := context.Background()

	t.Run("reports each source", func(t *testing.T) {
		svc, m := newDebugService(EnvironmentFlags{DatabaseURL: true})
		m.profiles.On("Count", ctx).Return(4, nil)
		m.chats.On("Recent", ctx, 10).Return([]model.Chat{{ID: "c1"}, {ID: "c2"}}, nil)
		m.messages.On("Recent", ctx, 10).Return(nil, errors.New("permission denied for table messages"))
		m.profiles.On("List", ctx, 10).Return([]model.ProfileSummary{{ID: "p1"}}, nil)
		m.chats.On("ListActive", ctx, repository.ChatFilter{WithMessagesOnly: true, OrderByLastMessage: true, Limit: 5}).
			Return([]model.Chat{{ID: "c1"}}, nil)
		m.chats.On("Recent", ctx, 3).Return([]model.Chat{{ID: "c1"}}, nil)
		m.messages.On("Recent", ctx, 3).Return(nil, errors.New("permission denied for table messages"))

		report, err := svc.Probe(ctx)

		require.NoError(t, err)
		assert.Equal(t, "SUCCESS", report.Status)
		assert.Equal(t, "OK", report.Connection)
		assert.Equal(t, Probe{Accessible: true, Count: 2}, report.DataAccess["chats"])
		assert.False(t, report.DataAccess["messages"].Accessible)
		assert.Equal(t, "permission denied for table messages", *report.DataAccess["messages"].Error)
		assert.Equal(t, 1, report.DataAccess["profiles"].Count)
		assert.Equal(t, 1, report.DataAccess["complex_query"].Count)
		assert.False(t, report.DataAccess["storage"].Accessible)
		assert.Len(t, report.RecentData.Chats, 1)
		assert.Empty(t, report.RecentData.Messages)
		assert.Equal(t, map[string]string{"database_url": "SET", "anon_key": "NOT_SET"}, report.Environment)
	})

	t.Run("connection failure", func(t *testing.T) {
		svc, m := newDebugService(EnvironmentFlags{})
		m.profiles.On("Count", ctx).Return(0, errors.New("dial tcp: connection refused"))

		report, err := svc.Probe(ctx)

		assert.Nil(t, report)
		var up *UpstreamError
		require.ErrorAs(t, err, &up)
		assert.Equal(t, "dial tcp: connection refused", up.Message)
	})
}

func TestDebugService_TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("create chat", func(t *testing.T) {
		svc, m := newDebugService(EnvironmentFlags{})
		m.chats.On("Create", ctx, mock.MatchedBy(func(c *model.Chat) bool {
			return c.UserID == userID && c.PsychologistID != nil && *c.Title == "Debug test chat"
		})).Return(&model.Chat{ID: chatID}, nil)

		res, err := svc.TestCreate(ctx, TestCreateInput{Action: ActionTestCreateChat, UserID: userID})

		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Nil(t, res.Error)
		assert.Equal(t, &model.Chat{ID: chatID}, res.Data)
	})

	t.Run("create message reports database error", func(t *testing.T) {
		svc, m := newDebugService(EnvironmentFlags{})
		m.messages.On("Create", ctx, mock.MatchedBy(func(msg *model.Message) bool {
			return msg.ChatID == chatID && msg.MessageType == model.MessageTypeText
		})).Return(nil, errors.New(`insert or update on table "messages" violates foreign key constraint`))

		res, err := svc.TestCreate(ctx, TestCreateInput{Action: ActionTestCreateMessage, ChatID: chatID})

		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Nil(t, res.Data)
		require.NotNil(t, res.Error)
		assert.Contains(t, *res.Error, "foreign key")
	})

	t.Run("unknown action", func(t *testing.T) {
		svc, _ := newDebugService(EnvironmentFlags{})

		res, err := svc.TestCreate(ctx, TestCreateInput{Action: "drop_tables"})

		assert.Nil(t, res)
		assert.ErrorIs(t, err, ErrUnknownAction)
	})
}
