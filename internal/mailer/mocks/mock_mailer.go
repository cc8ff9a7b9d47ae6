package mocks

import (
	"context"

	"comfyguardians/internal/mailer"
	"github.com/stretchr/testify/mock"
)

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) GuardianAuthorized(ctx context.Context, n mailer.Notice) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockMailer) GuardianRejected(ctx context.Context, n mailer.Notice) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}
