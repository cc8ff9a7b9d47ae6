package mocks

import (
	"context"

	"comfyguardians/internal/model"
	"comfyguardians/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Profile), args.Error(1)
}

func (m *MockProfileRepository) FindSummaries(ctx context.Context, ids []string) ([]model.ProfileSummary, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ProfileSummary), args.Error(1)
}

func (m *MockProfileRepository) ListAuthorized(ctx context.Context) ([]model.ProfileSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ProfileSummary), args.Error(1)
}

func (m *MockProfileRepository) List(ctx context.Context, limit int) ([]model.ProfileSummary, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ProfileSummary), args.Error(1)
}

func (m *MockProfileRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockProfileRepository) Reject(ctx context.Context, p repository.RejectParams) (*model.Profile, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Profile), args.Error(1)
}

func (m *MockProfileRepository) AuthorizeAccount(ctx context.Context, p repository.AuthorizeParams) (*model.ProcedureResult, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ProcedureResult), args.Error(1)
}
