package handlers

import (
	"net/http"

	"webstore-backend/internal/api/middleware"
	apperrors "webstore-backend/internal/errors"
	"webstore-backend/internal/models"
	"webstore-backend/internal/utils/response"

	"github.com/google/uuid"
)

// claimsFromContext pulls the authenticated caller out of the request context.
// Writes an Unauthorized response and returns false when the middleware did
// not run.
func claimsFromContext(w http.ResponseWriter, r *http.Request) (*models.Claims, bool) {
	claims, ok := r.Context().Value(middleware.UserContextKey).(*models.Claims)
	if !ok {
		response.Error(w, apperrors.UnauthorizedError("Authentication required"))

		return nil, false
	}

	return claims, true
}

// pathUUID parses the named path segment as a UUID.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		response.Error(w, apperrors.BadRequestError("Invalid "+name))

		return uuid.Nil, false
	}

	return id, true
}
