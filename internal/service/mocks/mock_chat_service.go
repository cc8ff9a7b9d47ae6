package mocks

import (
	"context"

	"comfyguardians/internal/model"
	"comfyguardians/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) CreateChat(ctx context.Context, in service.CreateChatInput) (*model.Chat, bool, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.Chat), args.Bool(1), args.Error(2)
}

func (m *MockChatService) ListChats(ctx context.Context, currentUserID string, adminMode bool) ([]service.ChatView, error) {
	args := m.Called(ctx, currentUserID, adminMode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.ChatView), args.Error(1)
}

func (m *MockChatService) ListChatUsers(ctx context.Context) (*service.ChatUsers, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ChatUsers), args.Error(1)
}

func (m *MockChatService) ListMessages(ctx context.Context, chatID string, page, limit int) (*service.MessagePage, error) {
	args := m.Called(ctx, chatID, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.MessagePage), args.Error(1)
}

func (m *MockChatService) UserChats(ctx context.Context, userID string) ([]service.ChatView, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.ChatView), args.Error(1)
}

func (m *MockChatService) SendMessage(ctx context.Context, in service.SendMessageInput) (*model.Message, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockChatService) MarkRead(ctx context.Context, messageID string, isRead bool) (*model.Message, error) {
	args := m.Called(ctx, messageID, isRead)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockChatService) UploadAttachment(ctx context.Context, in service.AttachmentInput) (*model.Message, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockChatService) AttachmentURL(ctx context.Context, messageID string) (*service.AttachmentURL, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AttachmentURL), args.Error(1)
}
