package handlers

import (
	"log/slog"
	"net/http"

	"webstore-backend/internal/api/middleware"
	"webstore-backend/internal/metrics"
	service "webstore-backend/internal/services"
	"webstore-backend/internal/utils/response"
)

type CartHandler struct {
	cartService service.CartService
}

func NewCartHandler(cartService service.CartService) *CartHandler {
	return &CartHandler{cartService: cartService}
}

func (h *CartHandler) GetCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		claims, ok := claimsFromContext(w, r)
		if !ok {
			return
		}

		cart, err := h.cartService.GetCart(r.Context(), claims.UserID)
		if err != nil {
			middleware.LoggerFromContext(r.Context()).Error("Failed to load cart", slog.String("error", err.Error()))
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, cart)
	}
}

func (h *CartHandler) AddProduct() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		claims, ok := claimsFromContext(w, r)
		if !ok {
			return
		}

		productID, ok := pathUUID(w, r, "productId")
		if !ok {
			return
		}

		logger := middleware.LoggerFromContext(r.Context())

		item, err := h.cartService.AddProduct(r.Context(), claims.UserID, productID)
		if err != nil {
			logger.Warn("Failed to add product to cart",
				slog.String("productId", productID.String()),
				slog.String("error", err.Error()),
			)
			response.Error(w, err)

			return
		}

		logger.Info("Product added to cart", slog.String("productId", productID.String()))
		response.Success(w, http.StatusOK, item)
	}
}

func (h *CartHandler) RemoveProduct() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		claims, ok := claimsFromContext(w, r)
		if !ok {
			return
		}

		productID, ok := pathUUID(w, r, "productId")
		if !ok {
			return
		}

		logger := middleware.LoggerFromContext(r.Context())

		item, err := h.cartService.RemoveProduct(r.Context(), claims.UserID, productID)
		if err != nil {
			logger.Warn("Failed to remove product from cart",
				slog.String("productId", productID.String()),
				slog.String("error", err.Error()),
			)
			response.Error(w, err)

			return
		}

		logger.Info("Product removed from cart", slog.String("productId", productID.String()))
		response.Success(w, http.StatusOK, item)
	}
}

func (h *CartHandler) ToggleSelect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		claims, ok := claimsFromContext(w, r)
		if !ok {
			return
		}

		itemID, ok := pathUUID(w, r, "itemId")
		if !ok {
			return
		}

		item, err := h.cartService.ToggleSelect(r.Context(), claims.UserID, itemID)
		if err != nil {
			middleware.LoggerFromContext(r.Context()).Warn("Failed to toggle item selection",
				slog.String("itemId", itemID.String()),
				slog.String("error", err.Error()),
			)
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, item)
	}
}

func (h *CartHandler) Checkout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		claims, ok := claimsFromContext(w, r)
		if !ok {
			return
		}

		logger := middleware.LoggerFromContext(r.Context())

		items, err := h.cartService.Checkout(r.Context(), claims.UserID)
		if err != nil {
			metrics.CheckoutsTotal.WithLabelValues("failure").Inc()
			logger.Warn("Checkout failed", slog.String("error", err.Error()))
			response.Error(w, err)

			return
		}

		metrics.CheckoutsTotal.WithLabelValues("success").Inc()
		logger.Info("Checkout completed", slog.Int("items", len(items)))
		response.Success(w, http.StatusOK, items)
	}
}
