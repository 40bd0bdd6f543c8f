package handlers

import (
	"log/slog"
	"net/http"

	"webstore-backend/internal/api/middleware"
	"webstore-backend/internal/models"
	service "webstore-backend/internal/services"
	"webstore-backend/internal/utils"
	"webstore-backend/internal/utils/response"

	"github.com/go-playground/validator/v10"
)

type UserHandler struct {
	userService service.UserService
	validator   *validator.Validate
}

func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService, validator: validator.New()}
}

func (h *UserHandler) UpdateCurrency() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		claims, ok := claimsFromContext(w, r)
		if !ok {
			return
		}

		var req models.UpdateCurrencyRequest

		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			return
		}

		logger := middleware.LoggerFromContext(r.Context())

		user, err := h.userService.UpdateCurrency(r.Context(), claims.UserID, req.Currency)
		if err != nil {
			logger.Warn("Failed to update regional currency",
				slog.String("currency", req.Currency),
				slog.String("error", err.Error()),
			)
			response.Error(w, err)

			return
		}

		logger.Info("Regional currency updated", slog.String("currency", user.RegionalCurrency))
		response.Success(w, http.StatusOK, user)
	}
}
