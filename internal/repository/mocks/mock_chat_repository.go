package mocks

import (
	"context"
	"time"

	"comfyguardians/internal/model"
	"comfyguardians/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) FindActiveByPair(ctx context.Context, userID string, psychologistID *string) (*model.Chat, error) {
	args := m.Called(ctx, userID, psychologistID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Chat), args.Error(1)
}

func (m *MockChatRepository) Create(ctx context.Context, c *model.Chat) (*model.Chat, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Chat), args.Error(1)
}

func (m *MockChatRepository) FindByID(ctx context.Context, id string, activeOnly bool) (*model.Chat, error) {
	args := m.Called(ctx, id, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Chat), args.Error(1)
}

func (m *MockChatRepository) ListActive(ctx context.Context, f repository.ChatFilter) ([]model.Chat, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Chat), args.Error(1)
}

func (m *MockChatRepository) Recent(ctx context.Context, limit int) ([]model.Chat, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Chat), args.Error(1)
}

func (m *MockChatRepository) TouchLastMessage(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	if f, ok := args.Get(0).(func(*model.Message) *model.Message); ok {
		return f(msg), args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockMessageRepository) FindByID(ctx context.Context, id string) (*model.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockMessageRepository) SetRead(ctx context.Context, id string, isRead bool) (*model.Message, error) {
	args := m.Called(ctx, id, isRead)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockMessageRepository) ListByChat(ctx context.Context, chatID string, pq repository.PageQuery) (*repository.PageResult[model.Message], error) {
	args := m.Called(ctx, chatID, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Message]), args.Error(1)
}

func (m *MockMessageRepository) ListByChats(ctx context.Context, chatIDs []string) ([]model.Message, error) {
	args := m.Called(ctx, chatIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}

func (m *MockMessageRepository) Recent(ctx context.Context, limit int) ([]model.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}
