package mocks

import (
	"context"

	"comfyguardians/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockGuardianRepository struct {
	mock.Mock
}

func (m *MockGuardianRepository) FindByEmail(ctx context.Context, email string) (*model.ChildrenGuardian, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ChildrenGuardian), args.Error(1)
}

func (m *MockGuardianRepository) Create(ctx context.Context, g *model.ChildrenGuardian) (*model.ChildrenGuardian, error) {
	args := m.Called(ctx, g)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ChildrenGuardian), args.Error(1)
}

func (m *MockGuardianRepository) SaveViaProcedure(ctx context.Context, g *model.ChildrenGuardian) (*model.ProcedureResult, error) {
	args := m.Called(ctx, g)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ProcedureResult), args.Error(1)
}
