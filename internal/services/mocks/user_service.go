package mocks

import (
	"context"

	"webstore-backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// UserService is a testify mock of service.UserService.
type UserService struct {
	mock.Mock
}

func (m *UserService) UpdateCurrency(ctx context.Context, userID uuid.UUID, currency string) (*models.User, error) {
	args := m.Called(ctx, userID, currency)
	if user, ok := args.Get(0).(*models.User); ok {
		return user, args.Error(1)
	}

	return nil, args.Error(1)
}
