package mocks

import (
	"context"

	"comfyguardians/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockAuthorizationService struct {
	mock.Mock
}

func (m *MockAuthorizationService) Authorize(ctx context.Context, in service.AuthorizeInput) (*service.DecisionResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DecisionResult), args.Error(1)
}

func (m *MockAuthorizationService) Reject(ctx context.Context, in service.RejectInput) (*service.DecisionResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DecisionResult), args.Error(1)
}

func (m *MockAuthorizationService) ChildStatus(ctx context.Context, id string) (*service.ChildStatus, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ChildStatus), args.Error(1)
}
