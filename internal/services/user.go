package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	apperrors "webstore-backend/internal/errors"
	"webstore-backend/internal/models"
	repository "webstore-backend/internal/repositories"

	"github.com/google/uuid"
)

type UserService interface {
	UpdateCurrency(ctx context.Context, userID uuid.UUID, currency string) (*models.User, error)
}

type userService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

// UpdateCurrency sets the currency the user's cart is displayed in. Currency
// codes are stored uppercase; whether a code is actually convertible is
// decided at display time against the current rate snapshot.
func (s *userService) UpdateCurrency(ctx context.Context, userID uuid.UUID, currency string) (*models.User, error) {

	currency = strings.ToUpper(currency)

	err := s.userRepo.UpdateRegionalCurrency(ctx, userID, currency)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundError("User not found").WithError(err)
		}

		return nil, apperrors.DatabaseError("Failed to update regional currency").WithError(err)
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, apperrors.DatabaseError("Failed to load user").WithError(err)
	}

	return user, nil
}
