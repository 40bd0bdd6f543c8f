package repository_test

import (
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"webstore-backend/internal/models"
	repository "webstore-backend/internal/repositories"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCartRepoTest(t *testing.T) (repository.CartRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err, "Failed to create sqlmock")

	t.Cleanup(func() {
		db.Close()
	})

	repo := repository.NewCartRepo(db)
	require.NotNil(t, repo, "NewCartRepo should return a non-nil repository")

	return repo, mock
}

func lineItemRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "cart_id", "product_id", "quantity", "cost", "selected", "created_at", "updated_at"})
}

func newSelectedItem(cartID uuid.UUID, quantity int64) models.LineItem {
	return models.LineItem{
		ID:        uuid.New(),
		CartID:    cartID,
		ProductID: uuid.New(),
		Quantity:  quantity,
		Cost:      decimal.NewFromInt(quantity).Mul(decimal.RequireFromString("10.50")),
		Selected:  true,
	}
}

func TestNewCartRepo(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := repository.NewCartRepo(db)
	assert.NotNil(t, repo, "NewCartRepo should return a non-nil repository")
}

func TestCartRepository(t *testing.T) {
	repo, mock := setupCartRepoTest(t)
	ctx := t.Context()

	insertCartSQL := regexp.QuoteMeta(`
		INSERT INTO carts (id, user_id, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
	`)
	selectCartSQL := regexp.QuoteMeta(`
		SELECT id, user_id, created_at, updated_at
		FROM carts
		WHERE user_id = $1
	`)
	selectItemsSQL := regexp.QuoteMeta(`
		SELECT id, cart_id, product_id, quantity, cost, selected, created_at, updated_at
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY created_at
	`)

	t.Run("GetOrCreateCart", func(t *testing.T) {
		userID := uuid.New()
		cartID := uuid.New()
		productID := uuid.New()
		now := time.Now()

		t.Run("Success - Existing Cart With Items", func(t *testing.T) {
			// Arrange
			mock.ExpectExec(insertCartSQL).
				WithArgs(sqlmock.AnyArg(), userID).
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectQuery(selectCartSQL).
				WithArgs(userID).
				WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "created_at", "updated_at"}).
					AddRow(cartID, userID, now, now))
			mock.ExpectQuery(selectItemsSQL).
				WithArgs(cartID).
				WillReturnRows(lineItemRows().
					AddRow(uuid.New(), cartID, productID, 2, "21.00", false, now, now))

			// Act
			cart, err := repo.GetOrCreateCart(ctx, userID)

			// Assert
			require.NoError(t, err, "GetOrCreateCart should not return an error on success")
			assert.Equal(t, cartID, cart.ID)
			require.Len(t, cart.Items, 1)
			assert.Equal(t, productID, cart.Items[0].ProductID)
			assert.EqualValues(t, 2, cart.Items[0].Quantity)
			assert.True(t, decimal.RequireFromString("21.00").Equal(cart.Items[0].Cost))
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})

		t.Run("Success - Fresh Cart Has No Items", func(t *testing.T) {
			// Arrange
			mock.ExpectExec(insertCartSQL).
				WithArgs(sqlmock.AnyArg(), userID).
				WillReturnResult(sqlmock.NewResult(1, 1))
			mock.ExpectQuery(selectCartSQL).
				WithArgs(userID).
				WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "created_at", "updated_at"}).
					AddRow(cartID, userID, now, now))
			mock.ExpectQuery(selectItemsSQL).
				WithArgs(cartID).
				WillReturnRows(lineItemRows())

			// Act
			cart, err := repo.GetOrCreateCart(ctx, userID)

			// Assert
			require.NoError(t, err, "GetOrCreateCart should not return an error on success")
			assert.Empty(t, cart.Items, "A freshly created cart should have no items")
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})

		t.Run("Failure - Insert Error", func(t *testing.T) {
			// Arrange
			dbError := errors.New("database insertion error")
			mock.ExpectExec(insertCartSQL).
				WithArgs(sqlmock.AnyArg(), userID).
				WillReturnError(dbError)

			// Act
			cart, err := repo.GetOrCreateCart(ctx, userID)

			// Assert
			require.Error(t, err, "GetOrCreateCart should return an error on DB failure")
			assert.Nil(t, cart)
			assert.ErrorContains(t, err, "failed to create cart")
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})
	})

	t.Run("GetItem", func(t *testing.T) {
		cartID := uuid.New()
		itemID := uuid.New()
		now := time.Now()

		expectedSQL := regexp.QuoteMeta(`
			SELECT id, cart_id, product_id, quantity, cost, selected, created_at, updated_at
			FROM cart_items
			WHERE cart_id = $1 AND id = $2
		`)

		t.Run("Success", func(t *testing.T) {
			// Arrange
			mock.ExpectQuery(expectedSQL).
				WithArgs(cartID, itemID).
				WillReturnRows(lineItemRows().
					AddRow(itemID, cartID, uuid.New(), 1, "10.50", true, now, now))

			// Act
			item, err := repo.GetItem(ctx, cartID, itemID)

			// Assert
			require.NoError(t, err)
			assert.Equal(t, itemID, item.ID)
			assert.True(t, item.Selected)
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})

		t.Run("Failure - Not Found", func(t *testing.T) {
			// Arrange
			mock.ExpectQuery(expectedSQL).
				WithArgs(cartID, itemID).
				WillReturnError(sql.ErrNoRows)

			// Act
			item, err := repo.GetItem(ctx, cartID, itemID)

			// Assert
			require.Error(t, err)
			assert.Nil(t, item)
			assert.ErrorIs(t, err, sql.ErrNoRows, "A missing item should surface as sql.ErrNoRows")
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})
	})

	t.Run("AddItem", func(t *testing.T) {
		cartID := uuid.New()
		productID := uuid.New()
		unitCost := decimal.RequireFromString("10.50")
		now := time.Now()

		expectedSQL := regexp.QuoteMeta(`
			INSERT INTO cart_items (id, cart_id, product_id, quantity, cost, selected, created_at, updated_at)
			VALUES ($1, $2, $3, 1, $4, FALSE, NOW(), NOW())
			ON CONFLICT (cart_id, product_id) DO UPDATE
			SET quantity = cart_items.quantity + 1,
			    cost = cart_items.cost + EXCLUDED.cost,
			    updated_at = NOW()
			WHERE cart_items.quantity < $5
			RETURNING id, cart_id, product_id, quantity, cost, selected, created_at, updated_at
		`)

		t.Run("Success - Fresh Line", func(t *testing.T) {
			// Arrange
			mock.ExpectQuery(expectedSQL).
				WithArgs(sqlmock.AnyArg(), cartID, productID, unitCost, int64(5)).
				WillReturnRows(lineItemRows().
					AddRow(uuid.New(), cartID, productID, 1, "10.50", false, now, now))

			// Act
			item, err := repo.AddItem(ctx, cartID, productID, unitCost, 5)

			// Assert
			require.NoError(t, err)
			assert.EqualValues(t, 1, item.Quantity)
			assert.True(t, unitCost.Equal(item.Cost))
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})

		t.Run("Success - Increment Accumulates Cost", func(t *testing.T) {
			// Arrange
			mock.ExpectQuery(expectedSQL).
				WithArgs(sqlmock.AnyArg(), cartID, productID, unitCost, int64(5)).
				WillReturnRows(lineItemRows().
					AddRow(uuid.New(), cartID, productID, 3, "31.50", false, now, now))

			// Act
			item, err := repo.AddItem(ctx, cartID, productID, unitCost, 5)

			// Assert
			require.NoError(t, err)
			assert.EqualValues(t, 3, item.Quantity)
			assert.True(t, decimal.RequireFromString("31.50").Equal(item.Cost))
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})

		t.Run("Failure - Stock Guard Rejects", func(t *testing.T) {
			// Arrange
			mock.ExpectQuery(expectedSQL).
				WithArgs(sqlmock.AnyArg(), cartID, productID, unitCost, int64(1)).
				WillReturnError(sql.ErrNoRows)

			// Act
			item, err := repo.AddItem(ctx, cartID, productID, unitCost, 1)

			// Assert
			require.Error(t, err)
			assert.Nil(t, item)
			assert.ErrorIs(t, err, repository.ErrInsufficientStock, "A rejected upsert should surface as ErrInsufficientStock")
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})
	})

	t.Run("RemoveItemUnit", func(t *testing.T) {
		cartID := uuid.New()
		productID := uuid.New()
		itemID := uuid.New()
		now := time.Now()

		lockSQL := regexp.QuoteMeta(`
			SELECT id, cart_id, product_id, quantity, cost, selected, created_at, updated_at
			FROM cart_items
			WHERE cart_id = $1 AND product_id = $2
			FOR UPDATE
		`)
		decrementSQL := regexp.QuoteMeta(`
			UPDATE cart_items
			SET quantity = quantity - 1, updated_at = NOW()
			WHERE id = $1
			RETURNING quantity, updated_at
		`)
		deleteSQL := regexp.QuoteMeta(`DELETE FROM cart_items WHERE id = $1`)

		t.Run("Success - Decrement Keeps Cost", func(t *testing.T) {
			// Arrange
			mock.ExpectBegin()
			mock.ExpectQuery(lockSQL).
				WithArgs(cartID, productID).
				WillReturnRows(lineItemRows().
					AddRow(itemID, cartID, productID, 2, "21.00", false, now, now))
			mock.ExpectQuery(decrementSQL).
				WithArgs(itemID).
				WillReturnRows(sqlmock.NewRows([]string{"quantity", "updated_at"}).AddRow(1, now))
			mock.ExpectCommit()

			// Act
			item, deleted, err := repo.RemoveItemUnit(ctx, cartID, productID)

			// Assert
			require.NoError(t, err)
			assert.False(t, deleted)
			assert.EqualValues(t, 1, item.Quantity)
			assert.True(t, decimal.RequireFromString("21.00").Equal(item.Cost), "Decrementing must not touch the accumulated cost")
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})

		t.Run("Success - Last Unit Deletes Row", func(t *testing.T) {
			// Arrange
			mock.ExpectBegin()
			mock.ExpectQuery(lockSQL).
				WithArgs(cartID, productID).
				WillReturnRows(lineItemRows().
					AddRow(itemID, cartID, productID, 1, "10.50", false, now, now))
			mock.ExpectExec(deleteSQL).
				WithArgs(itemID).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()

			// Act
			item, deleted, err := repo.RemoveItemUnit(ctx, cartID, productID)

			// Assert
			require.NoError(t, err)
			assert.True(t, deleted)
			assert.EqualValues(t, 0, item.Quantity)
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})

		t.Run("Failure - Item Not Found", func(t *testing.T) {
			// Arrange
			mock.ExpectBegin()
			mock.ExpectQuery(lockSQL).
				WithArgs(cartID, productID).
				WillReturnError(sql.ErrNoRows)
			mock.ExpectRollback()

			// Act
			item, deleted, err := repo.RemoveItemUnit(ctx, cartID, productID)

			// Assert
			require.Error(t, err)
			assert.Nil(t, item)
			assert.False(t, deleted)
			assert.ErrorIs(t, err, sql.ErrNoRows)
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})
	})

	t.Run("SetItemSelected", func(t *testing.T) {
		cartID := uuid.New()
		itemID := uuid.New()
		now := time.Now()

		expectedSQL := regexp.QuoteMeta(`
			UPDATE cart_items
			SET selected = $3, updated_at = NOW()
			WHERE cart_id = $1 AND id = $2
			RETURNING id, cart_id, product_id, quantity, cost, selected, created_at, updated_at
		`)

		t.Run("Success", func(t *testing.T) {
			// Arrange
			mock.ExpectQuery(expectedSQL).
				WithArgs(cartID, itemID, true).
				WillReturnRows(lineItemRows().
					AddRow(itemID, cartID, uuid.New(), 2, "21.00", true, now, now))

			// Act
			item, err := repo.SetItemSelected(ctx, cartID, itemID, true)

			// Assert
			require.NoError(t, err)
			assert.True(t, item.Selected)
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})

		t.Run("Failure - Not Found", func(t *testing.T) {
			// Arrange
			mock.ExpectQuery(expectedSQL).
				WithArgs(cartID, itemID, false).
				WillReturnError(sql.ErrNoRows)

			// Act
			item, err := repo.SetItemSelected(ctx, cartID, itemID, false)

			// Assert
			require.Error(t, err)
			assert.Nil(t, item)
			assert.ErrorIs(t, err, sql.ErrNoRows)
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})
	})

	t.Run("CompletePurchase", func(t *testing.T) {
		cartID := uuid.New()
		now := time.Now()

		lockSQL := regexp.QuoteMeta(`
			SELECT id, cart_id, product_id, quantity, cost, selected, created_at, updated_at
			FROM cart_items
			WHERE cart_id = $1 AND selected = TRUE
			ORDER BY created_at
			FOR UPDATE
		`)
		decrementSQL := regexp.QuoteMeta(`
			UPDATE products
			SET stock_quantity = stock_quantity - $2, updated_at = NOW()
			WHERE id = $1 AND stock_quantity >= $2
		`)
		deleteSQL := regexp.QuoteMeta(`DELETE FROM cart_items WHERE cart_id = $1 AND id = $2`)

		t.Run("Success - Locked Read Through Commit", func(t *testing.T) {
			// Arrange
			first := newSelectedItem(cartID, 2)
			second := newSelectedItem(cartID, 1)

			mock.ExpectBegin()
			mock.ExpectQuery(lockSQL).
				WithArgs(cartID).
				WillReturnRows(lineItemRows().
					AddRow(first.ID, cartID, first.ProductID, first.Quantity, first.Cost.String(), true, now, now).
					AddRow(second.ID, cartID, second.ProductID, second.Quantity, second.Cost.String(), true, now, now))
			mock.ExpectExec(decrementSQL).
				WithArgs(first.ProductID, first.Quantity).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec(deleteSQL).
				WithArgs(cartID, first.ID).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec(decrementSQL).
				WithArgs(second.ProductID, second.Quantity).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec(deleteSQL).
				WithArgs(cartID, second.ID).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()

			// Act
			items, err := repo.CompletePurchase(ctx, cartID)

			// Assert
			require.NoError(t, err, "CompletePurchase should not return an error on success")
			require.Len(t, items, 2)
			assert.Equal(t, first.ID, items[0].ID)
			assert.Equal(t, second.ID, items[1].ID)
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})

		t.Run("Success - Nothing Selected Commits Nothing", func(t *testing.T) {
			// Arrange
			mock.ExpectBegin()
			mock.ExpectQuery(lockSQL).
				WithArgs(cartID).
				WillReturnRows(lineItemRows())
			mock.ExpectRollback()

			// Act
			items, err := repo.CompletePurchase(ctx, cartID)

			// Assert
			require.NoError(t, err)
			assert.Empty(t, items)
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})

		t.Run("Failure - Insufficient Stock Aborts Transaction", func(t *testing.T) {
			// Arrange
			item := newSelectedItem(cartID, 5)

			mock.ExpectBegin()
			mock.ExpectQuery(lockSQL).
				WithArgs(cartID).
				WillReturnRows(lineItemRows().
					AddRow(item.ID, cartID, item.ProductID, item.Quantity, item.Cost.String(), true, now, now))
			mock.ExpectExec(decrementSQL).
				WithArgs(item.ProductID, item.Quantity).
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectRollback()

			// Act
			items, err := repo.CompletePurchase(ctx, cartID)

			// Assert
			require.Error(t, err)
			assert.Nil(t, items)
			assert.ErrorIs(t, err, repository.ErrInsufficientStock)
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})

		t.Run("Failure - Commit Error", func(t *testing.T) {
			// Arrange
			item := newSelectedItem(cartID, 1)
			commitErr := errors.New("commit failed")

			mock.ExpectBegin()
			mock.ExpectQuery(lockSQL).
				WithArgs(cartID).
				WillReturnRows(lineItemRows().
					AddRow(item.ID, cartID, item.ProductID, item.Quantity, item.Cost.String(), true, now, now))
			mock.ExpectExec(decrementSQL).
				WithArgs(item.ProductID, item.Quantity).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec(deleteSQL).
				WithArgs(cartID, item.ID).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit().WillReturnError(commitErr)

			// Act
			items, err := repo.CompletePurchase(ctx, cartID)

			// Assert
			require.Error(t, err)
			assert.Nil(t, items)
			assert.ErrorContains(t, err, "failed to commit transaction")
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})
	})
}
