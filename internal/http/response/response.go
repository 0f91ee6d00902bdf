package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/BlindPI/arccm-backend/internal/pkg/errors"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func OK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func Created(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

func Error(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: code}})
}

// FromError maps service-layer sentinels onto HTTP statuses.
func FromError(c *gin.Context, err error) {
	switch {
	case apperrors.Is(err, apperrors.ErrValidation):
		Error(c, http.StatusBadRequest, "validation_failed", err)
	case apperrors.Is(err, apperrors.ErrUnauthorized):
		Error(c, http.StatusUnauthorized, "unauthorized", err)
	case apperrors.Is(err, apperrors.ErrNotFound):
		Error(c, http.StatusNotFound, "not_found", err)
	case apperrors.Is(err, apperrors.ErrConflict):
		Error(c, http.StatusConflict, "conflict", err)
	case apperrors.Is(err, apperrors.ErrInvalidState):
		Error(c, http.StatusUnprocessableEntity, "invalid_state", err)
	default:
		Error(c, http.StatusInternalServerError, "internal", err)
	}
}
