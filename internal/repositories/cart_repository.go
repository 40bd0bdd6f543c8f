package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"webstore-backend/internal/models"
	"webstore-backend/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrInsufficientStock is returned when a stock guard rejects an increment or
// a checkout decrement that would drive stock below zero.
var ErrInsufficientStock = errors.New("insufficient stock")

type CartRepository interface {
	GetOrCreateCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	GetItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.LineItem, error)
	AddItem(ctx context.Context, cartID, productID uuid.UUID, unitCost decimal.Decimal, stockLimit int64) (*models.LineItem, error)
	RemoveItemUnit(ctx context.Context, cartID, productID uuid.UUID) (*models.LineItem, bool, error)
	SetItemSelected(ctx context.Context, cartID, itemID uuid.UUID, selected bool) (*models.LineItem, error)
	CompletePurchase(ctx context.Context, cartID uuid.UUID) ([]models.LineItem, error)
}

type cartRepository struct {
	DB *sql.DB
}

func NewCartRepo(db *sql.DB) CartRepository {
	return &cartRepository{DB: db}
}

const lineItemColumns = `id, cart_id, product_id, quantity, cost, selected, created_at, updated_at`

func scanLineItem(row interface{ Scan(...any) error }) (*models.LineItem, error) {
	item := &models.LineItem{}

	err := row.Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.Cost, &item.Selected, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return item, nil
}

// GetOrCreateCart loads the user's cart with its line items, creating the cart
// lazily on first access. The unique constraint on user_id keeps the cart 1:1
// per user even under concurrent first requests.
func (r *cartRepository) GetOrCreateCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	insertQuery := `
		INSERT INTO carts (id, user_id, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
	`

	if _, err := r.DB.ExecContext(dbCtx, insertQuery, uuid.New(), userID); err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	cart := &models.Cart{}

	query := `
		SELECT id, user_id, created_at, updated_at
		FROM carts
		WHERE user_id = $1
	`

	err := r.DB.QueryRowContext(dbCtx, query, userID).Scan(&cart.ID, &cart.UserID, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("querying database: %w", err)
	}

	itemsQuery := `
		SELECT ` + lineItemColumns + `
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY created_at
	`

	rows, err := r.DB.QueryContext(dbCtx, itemsQuery, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}

	defer rows.Close()

	for rows.Next() {
		item, err := scanLineItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}

		cart.Items = append(cart.Items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return cart, nil
}

func (r *cartRepository) GetItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.LineItem, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT ` + lineItemColumns + `
		FROM cart_items
		WHERE cart_id = $1 AND id = $2
	`

	item, err := scanLineItem(r.DB.QueryRowContext(dbCtx, query, cartID, itemID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("querying database: %w", err)
	}

	return item, nil
}

// AddItem inserts a fresh line item with quantity 1, or atomically increments
// the existing row for the same product and accumulates one unit's cost onto
// it. The increment is guarded so the held quantity never exceeds stockLimit;
// a rejected increment surfaces as ErrInsufficientStock.
func (r *cartRepository) AddItem(ctx context.Context, cartID, productID uuid.UUID, unitCost decimal.Decimal, stockLimit int64) (*models.LineItem, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO cart_items (id, cart_id, product_id, quantity, cost, selected, created_at, updated_at)
		VALUES ($1, $2, $3, 1, $4, FALSE, NOW(), NOW())
		ON CONFLICT (cart_id, product_id) DO UPDATE
		SET quantity = cart_items.quantity + 1,
		    cost = cart_items.cost + EXCLUDED.cost,
		    updated_at = NOW()
		WHERE cart_items.quantity < $5
		RETURNING ` + lineItemColumns + `
	`

	item, err := scanLineItem(r.DB.QueryRowContext(dbCtx, query, uuid.New(), cartID, productID, unitCost, stockLimit))
	if err != nil {
		// The conditional upsert returns no row when the guard fails.
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInsufficientStock
		}

		return nil, fmt.Errorf("failed to upsert cart item: %w", err)
	}

	return item, nil
}

// RemoveItemUnit decrements the line's quantity by one, deleting the row when
// the quantity would reach zero. The accumulated cost is left untouched on
// decrement. The returned bool reports whether the row was deleted.
func (r *cartRepository) RemoveItemUnit(ctx context.Context, cartID, productID uuid.UUID) (*models.LineItem, bool, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	tx, err := r.DB.BeginTx(dbCtx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer tx.Rollback()

	lockQuery := `
		SELECT ` + lineItemColumns + `
		FROM cart_items
		WHERE cart_id = $1 AND product_id = $2
		FOR UPDATE
	`

	item, err := scanLineItem(tx.QueryRowContext(dbCtx, lockQuery, cartID, productID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, err
		}

		return nil, false, fmt.Errorf("querying database: %w", err)
	}

	deleted := false

	if item.Quantity > 1 {
		updateQuery := `
			UPDATE cart_items
			SET quantity = quantity - 1, updated_at = NOW()
			WHERE id = $1
			RETURNING quantity, updated_at
		`

		if err := tx.QueryRowContext(dbCtx, updateQuery, item.ID).Scan(&item.Quantity, &item.UpdatedAt); err != nil {
			return nil, false, fmt.Errorf("failed to decrement cart item: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(dbCtx, `DELETE FROM cart_items WHERE id = $1`, item.ID); err != nil {
			return nil, false, fmt.Errorf("failed to delete cart item: %w", err)
		}

		item.Quantity = 0
		deleted = true
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return item, deleted, nil
}

func (r *cartRepository) SetItemSelected(ctx context.Context, cartID, itemID uuid.UUID, selected bool) (*models.LineItem, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE cart_items
		SET selected = $3, updated_at = NOW()
		WHERE cart_id = $1 AND id = $2
		RETURNING ` + lineItemColumns + `
	`

	item, err := scanLineItem(r.DB.QueryRowContext(dbCtx, query, cartID, itemID, selected))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to update cart item selection: %w", err)
	}

	return item, nil
}

// CompletePurchase commits a checkout in a single transaction: the selected
// lines are read and row-locked, every line's stock decrement and deletion
// succeed together or not at all, and the purchased lines are returned as
// they were at commit time. The FOR UPDATE lock serializes checkout against
// concurrent add/remove on the same lines, so the decremented quantity is
// never stale. Stock decrements are compare-and-set; a decrement that would
// drive stock negative aborts the transaction with ErrInsufficientStock.
// An empty selection returns no items and commits nothing.
func (r *cartRepository) CompletePurchase(ctx context.Context, cartID uuid.UUID) ([]models.LineItem, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	tx, err := r.DB.BeginTx(dbCtx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer tx.Rollback()

	selectQuery := `
		SELECT ` + lineItemColumns + `
		FROM cart_items
		WHERE cart_id = $1 AND selected = TRUE
		ORDER BY created_at
		FOR UPDATE
	`

	rows, err := tx.QueryContext(dbCtx, selectQuery, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to query selected items: %w", err)
	}

	var items []models.LineItem

	for rows.Next() {
		item, err := scanLineItem(rows)
		if err != nil {
			rows.Close()

			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}

		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		rows.Close()

		return nil, err
	}

	rows.Close()

	if len(items) == 0 {
		return nil, nil
	}

	decrementQuery := `
		UPDATE products
		SET stock_quantity = stock_quantity - $2, updated_at = NOW()
		WHERE id = $1 AND stock_quantity >= $2
	`

	deleteQuery := `DELETE FROM cart_items WHERE cart_id = $1 AND id = $2`

	for _, item := range items {
		result, err := tx.ExecContext(dbCtx, decrementQuery, item.ProductID, item.Quantity)
		if err != nil {
			return nil, fmt.Errorf("failed to decrement stock: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to get affected rows: %w", err)
		}

		if affected == 0 {
			return nil, ErrInsufficientStock
		}

		if _, err := tx.ExecContext(dbCtx, deleteQuery, cartID, item.ID); err != nil {
			return nil, fmt.Errorf("failed to remove purchased item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return items, nil
}
