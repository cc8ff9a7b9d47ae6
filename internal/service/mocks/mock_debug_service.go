package mocks

import (
	"context"

	"comfyguardians/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockDebugService struct {
	mock.Mock
}

func (m *MockDebugService) Probe(ctx context.Context) (*service.DebugReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DebugReport), args.Error(1)
}

func (m *MockDebugService) TestCreate(ctx context.Context, in service.TestCreateInput) (*service.TestCreateResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.TestCreateResult), args.Error(1)
}
