package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"webstore-backend/internal/api/handlers"
	"webstore-backend/internal/api/middleware"
	appErrors "webstore-backend/internal/errors"
	"webstore-backend/internal/models"
	"webstore-backend/internal/services/mocks"
	"webstore-backend/internal/utils/response"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// setupCartTest -> creates common test dependencies
func setupCartTest() (*mocks.CartService, *handlers.CartHandler) {
	mockCartService := new(mocks.CartService)
	cartHandler := handlers.NewCartHandler(mockCartService)

	return mockCartService, cartHandler
}

// createAuthenticatedRequest -> creates a request with authentication context
func createAuthenticatedRequest(method, url string, body []byte) (*http.Request, *models.Claims) {
	req := httptest.NewRequest(method, url, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	claims := &models.Claims{
		UserID: uuid.New(),
		Email:  "test@example.com",
	}

	ctx := context.WithValue(req.Context(), middleware.UserContextKey, claims)
	req = req.WithContext(ctx)

	return req, claims
}

func TestGetCart(t *testing.T) {
	t.Run("Success - Retrieve Cart", func(t *testing.T) {
		// Arrange
		mockCartService, cartHandler := setupCartTest()
		req, claims := createAuthenticatedRequest("GET", "/api/v1/carts", nil)
		recorder := httptest.NewRecorder()

		mockCart := &models.CartView{
			ID:       uuid.New(),
			UserID:   claims.UserID,
			Currency: "USD",
			Total:    decimal.RequireFromString("21.00"),
		}

		mockCartService.On("GetCart", mock.Anything, claims.UserID).Return(mockCart, nil).Once()

		// Act
		handler := cartHandler.GetCart()
		handler(recorder, req)

		// Assert
		assert.Equal(t, http.StatusOK, recorder.Code)

		var resp *response.APIResponse
		err := json.Unmarshal(recorder.Body.Bytes(), &resp)
		assert.NoError(t, err)
		assert.True(t, resp.Success)
		assert.NotNil(t, resp.Data)

		mockCartService.AssertExpectations(t)
	})

	t.Run("Failure - Unauthorized", func(t *testing.T) {
		// Arrange
		_, cartHandler := setupCartTest()

		req := httptest.NewRequest("GET", "/api/v1/carts", nil)
		req.Header.Set("Content-Type", "application/json")
		recorder := httptest.NewRecorder()

		// Act
		handler := cartHandler.GetCart()
		handler(recorder, req)

		// Assert
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)

		var resp *response.APIResponse
		err := json.Unmarshal(recorder.Body.Bytes(), &resp)
		assert.NoError(t, err)
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Error.Message, "Authentication required")
	})
}

func TestAddProduct(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		mockCartService, cartHandler := setupCartTest()
		productID := uuid.New()
		req, claims := createAuthenticatedRequest("POST", "/api/v1/carts/items/"+productID.String(), nil)
		req.SetPathValue("productId", productID.String())
		recorder := httptest.NewRecorder()

		item := &models.LineItemView{
			ID:        uuid.New(),
			ProductID: productID,
			Quantity:  1,
			Cost:      decimal.RequireFromString("10.50"),
			Currency:  "USD",
		}

		mockCartService.On("AddProduct", mock.Anything, claims.UserID, productID).Return(item, nil).Once()

		// Act
		handler := cartHandler.AddProduct()
		handler(recorder, req)

		// Assert
		assert.Equal(t, http.StatusOK, recorder.Code)

		var resp *response.APIResponse
		err := json.Unmarshal(recorder.Body.Bytes(), &resp)
		assert.NoError(t, err)
		assert.True(t, resp.Success)

		mockCartService.AssertExpectations(t)
	})

	t.Run("Failure - Invalid Product ID", func(t *testing.T) {
		// Arrange
		mockCartService, cartHandler := setupCartTest()
		req, _ := createAuthenticatedRequest("POST", "/api/v1/carts/items/not-a-uuid", nil)
		req.SetPathValue("productId", "not-a-uuid")
		recorder := httptest.NewRecorder()

		// Act
		handler := cartHandler.AddProduct()
		handler(recorder, req)

		// Assert
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		mockCartService.AssertNotCalled(t, "AddProduct", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Failure - Product Not Found", func(t *testing.T) {
		// Arrange
		mockCartService, cartHandler := setupCartTest()
		productID := uuid.New()
		req, claims := createAuthenticatedRequest("POST", "/api/v1/carts/items/"+productID.String(), nil)
		req.SetPathValue("productId", productID.String())
		recorder := httptest.NewRecorder()

		mockCartService.On("AddProduct", mock.Anything, claims.UserID, productID).
			Return(nil, appErrors.NotFoundError("Product not found")).Once()

		// Act
		handler := cartHandler.AddProduct()
		handler(recorder, req)

		// Assert
		assert.Equal(t, http.StatusNotFound, recorder.Code)

		var resp *response.APIResponse
		err := json.Unmarshal(recorder.Body.Bytes(), &resp)
		assert.NoError(t, err)
		assert.False(t, resp.Success)
		assert.Equal(t, appErrors.ErrCodeNotFound, resp.Error.Code)

		mockCartService.AssertExpectations(t)
	})
}

func TestRemoveProduct(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		mockCartService, cartHandler := setupCartTest()
		productID := uuid.New()
		req, claims := createAuthenticatedRequest("DELETE", "/api/v1/carts/items/"+productID.String(), nil)
		req.SetPathValue("productId", productID.String())
		recorder := httptest.NewRecorder()

		item := &models.LineItemView{
			ID:        uuid.New(),
			ProductID: productID,
			Quantity:  0,
			Cost:      decimal.RequireFromString("10.50"),
			Currency:  "USD",
		}

		mockCartService.On("RemoveProduct", mock.Anything, claims.UserID, productID).Return(item, nil).Once()

		// Act
		handler := cartHandler.RemoveProduct()
		handler(recorder, req)

		// Assert
		assert.Equal(t, http.StatusOK, recorder.Code)
		mockCartService.AssertExpectations(t)
	})

	t.Run("Failure - Item Not In Cart", func(t *testing.T) {
		// Arrange
		mockCartService, cartHandler := setupCartTest()
		productID := uuid.New()
		req, claims := createAuthenticatedRequest("DELETE", "/api/v1/carts/items/"+productID.String(), nil)
		req.SetPathValue("productId", productID.String())
		recorder := httptest.NewRecorder()

		mockCartService.On("RemoveProduct", mock.Anything, claims.UserID, productID).
			Return(nil, appErrors.NotFoundError("Item not found in the cart")).Once()

		// Act
		handler := cartHandler.RemoveProduct()
		handler(recorder, req)

		// Assert
		assert.Equal(t, http.StatusNotFound, recorder.Code)
		mockCartService.AssertExpectations(t)
	})
}

func TestToggleSelect(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		mockCartService, cartHandler := setupCartTest()
		itemID := uuid.New()
		req, claims := createAuthenticatedRequest("PATCH", "/api/v1/carts/items/"+itemID.String()+"/select", nil)
		req.SetPathValue("itemId", itemID.String())
		recorder := httptest.NewRecorder()

		item := &models.LineItemView{
			ID:       itemID,
			Quantity: 2,
			Cost:     decimal.RequireFromString("21.00"),
			Currency: "USD",
			Selected: true,
		}

		mockCartService.On("ToggleSelect", mock.Anything, claims.UserID, itemID).Return(item, nil).Once()

		// Act
		handler := cartHandler.ToggleSelect()
		handler(recorder, req)

		// Assert
		assert.Equal(t, http.StatusOK, recorder.Code)
		mockCartService.AssertExpectations(t)
	})
}

func TestCheckout(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		mockCartService, cartHandler := setupCartTest()
		req, claims := createAuthenticatedRequest("POST", "/api/v1/carts/checkout", nil)
		recorder := httptest.NewRecorder()

		items := []models.LineItemView{
			{ID: uuid.New(), ProductID: uuid.New(), Quantity: 2, Cost: decimal.RequireFromString("21.00"), Currency: "USD", Selected: true},
		}

		mockCartService.On("Checkout", mock.Anything, claims.UserID).Return(items, nil).Once()

		// Act
		handler := cartHandler.Checkout()
		handler(recorder, req)

		// Assert
		assert.Equal(t, http.StatusOK, recorder.Code)

		var resp *response.APIResponse
		err := json.Unmarshal(recorder.Body.Bytes(), &resp)
		assert.NoError(t, err)
		assert.True(t, resp.Success)

		mockCartService.AssertExpectations(t)
	})

	t.Run("Failure - Unconfirmed Email", func(t *testing.T) {
		// Arrange
		mockCartService, cartHandler := setupCartTest()
		req, claims := createAuthenticatedRequest("POST", "/api/v1/carts/checkout", nil)
		recorder := httptest.NewRecorder()

		mockCartService.On("Checkout", mock.Anything, claims.UserID).
			Return(nil, appErrors.BadRequestError("Email address must be confirmed before checkout")).Once()

		// Act
		handler := cartHandler.Checkout()
		handler(recorder, req)

		// Assert
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		mockCartService.AssertExpectations(t)
	})

	t.Run("Failure - Concurrent Modification", func(t *testing.T) {
		// Arrange
		mockCartService, cartHandler := setupCartTest()
		req, claims := createAuthenticatedRequest("POST", "/api/v1/carts/checkout", nil)
		recorder := httptest.NewRecorder()

		mockCartService.On("Checkout", mock.Anything, claims.UserID).
			Return(nil, appErrors.ConflictError("Cart was modified concurrently, please retry")).Once()

		// Act
		handler := cartHandler.Checkout()
		handler(recorder, req)

		// Assert
		assert.Equal(t, http.StatusConflict, recorder.Code)

		var resp *response.APIResponse
		err := json.Unmarshal(recorder.Body.Bytes(), &resp)
		assert.NoError(t, err)
		assert.Equal(t, appErrors.ErrCodeConflict, resp.Error.Code)

		mockCartService.AssertExpectations(t)
	})
}
