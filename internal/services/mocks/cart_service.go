package mocks

import (
	"context"

	"webstore-backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// CartService is a testify mock of service.CartService.
type CartService struct {
	mock.Mock
}

func (m *CartService) GetCart(ctx context.Context, userID uuid.UUID) (*models.CartView, error) {
	args := m.Called(ctx, userID)
	if cart, ok := args.Get(0).(*models.CartView); ok {
		return cart, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *CartService) AddProduct(ctx context.Context, userID, productID uuid.UUID) (*models.LineItemView, error) {
	args := m.Called(ctx, userID, productID)
	if item, ok := args.Get(0).(*models.LineItemView); ok {
		return item, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *CartService) RemoveProduct(ctx context.Context, userID, productID uuid.UUID) (*models.LineItemView, error) {
	args := m.Called(ctx, userID, productID)
	if item, ok := args.Get(0).(*models.LineItemView); ok {
		return item, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *CartService) ToggleSelect(ctx context.Context, userID, itemID uuid.UUID) (*models.LineItemView, error) {
	args := m.Called(ctx, userID, itemID)
	if item, ok := args.Get(0).(*models.LineItemView); ok {
		return item, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *CartService) Checkout(ctx context.Context, userID uuid.UUID) ([]models.LineItemView, error) {
	args := m.Called(ctx, userID)
	if items, ok := args.Get(0).([]models.LineItemView); ok {
		return items, args.Error(1)
	}

	return nil, args.Error(1)
}
