package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"webstore-backend/internal/models"
	"webstore-backend/internal/utils"

	"github.com/google/uuid"
)

type UserRepository interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateRegionalCurrency(ctx context.Context, id uuid.UUID, currency string) error
}

type userRepository struct {
	DB *sql.DB
}

func NewUserRepo(db *sql.DB) UserRepository {
	return &userRepository{DB: db}
}

func (r *userRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {

	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	user := &models.User{}

	query := `
		SELECT id, name, email, email_confirmed, regional_currency, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	err := r.DB.QueryRowContext(dbCtx, query, id).Scan(&user.ID, &user.Name, &user.Email, &user.EmailConfirmed, &user.RegionalCurrency, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("querying database: %w", err)
	}

	return user, nil
}

func (r *userRepository) UpdateRegionalCurrency(ctx context.Context, id uuid.UUID, currency string) error {

	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE users
		SET regional_currency = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.DB.ExecContext(dbCtx, query, id, currency)
	if err != nil {
		return fmt.Errorf("failed to update regional currency: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}
