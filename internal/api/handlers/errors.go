package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"zawj-chat/internal/api/middleware"
	"zawj-chat/internal/models"
	"zawj-chat/internal/services"
)

func respondError(c *gin.Context, status int, message, details string) {
	c.JSON(status, models.ErrorResponse{
		Code:    status,
		Message: message,
		Details: details,
	})
}

// respondServiceError maps a service error to its HTTP status. Unknown
// errors become 500 without leaking details.
func respondServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrInvalidRequest), errors.Is(err, services.ErrSelfAction):
		respondError(c, http.StatusBadRequest, "Invalid request", err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, services.ErrNotParticipant),
		errors.Is(err, services.ErrForbidden),
		errors.Is(err, services.ErrNotAddressee):
		respondError(c, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrConversationNotFound),
		errors.Is(err, services.ErrConnectionNotFound),
		errors.Is(err, services.ErrMessageNotFound),
		errors.Is(err, services.ErrNoAttachment):
		respondError(c, http.StatusNotFound, "Not found", err.Error())
	case errors.Is(err, services.ErrUserAlreadyExists), errors.Is(err, services.ErrAlreadyConnected):
		respondError(c, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, services.ErrStorageDisabled):
		respondError(c, http.StatusServiceUnavailable, "Unavailable", err.Error())
	default:
		respondError(c, http.StatusInternalServerError, fallback, "An unexpected error occurred.")
	}
}

// currentUser reads the authenticated user id, writing a 401 when missing.
func currentUser(c *gin.Context) (string, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Unauthorized", "missing user in context")
	}
	return userID, ok
}
