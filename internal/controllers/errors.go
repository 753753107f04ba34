package controllers

import (
	"errors"
	"net/http"

	"github.com/osvaldoandrade/flowdb/internal/services"
	"github.com/osvaldoandrade/flowdb/pkg/domain"
	"github.com/osvaldoandrade/flowdb/pkg/persistence"

	"github.com/gin-gonic/gin"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, persistence.ErrNotFound),
		errors.Is(err, domain.ErrIndexOutOfRange),
		errors.Is(err, services.ErrNoFile),
		errors.Is(err, services.ErrNoStructure):
		return http.StatusNotFound
	case errors.Is(err, services.ErrBadPath):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
