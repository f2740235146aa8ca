package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Veraticus/tally/internal/common"
	"github.com/gin-gonic/gin"
)

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNoModel), errors.Is(err, common.ErrNoPrediction):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		loggerFrom(c).Error("Request failed", slog.String("error", err.Error()))
		c.AbortWithStatusJSON(status, ErrorResponse{Error: "internal server error"})
		return
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error()})
}

func respondBadRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
}
