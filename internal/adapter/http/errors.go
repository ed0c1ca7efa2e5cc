package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dcastano/store-api/internal/usecase"
)

// respondError maps the usecase error taxonomy onto HTTP statuses:
// validation/business-rule → 400, already-processed → 409, not-found → 404,
// ownership mismatch → 403, gateway failures → 502 with upstream detail.
func respondError(c *gin.Context, err error) {
	var ve *usecase.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "field": ve.Field})
		return
	}
	var se *usecase.InsufficientStockError
	if errors.As(err, &se) {
		c.JSON(http.StatusBadRequest, gin.H{"error": se.Error()})
		return
	}
	var ge *usecase.GatewayError
	if errors.As(err, &ge) {
		detail := ge.Body
		if detail == "" && ge.Err != nil {
			detail = ge.Err.Error()
		}
		c.JSON(http.StatusBadGateway, gin.H{
			"error":           "payment gateway error",
			"upstream_status": ge.StatusCode,
			"detail":          detail,
		})
		return
	}

	switch {
	case errors.Is(err, usecase.ErrProductUnavailable):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, usecase.ErrOrderNotFound), errors.Is(err, usecase.ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, usecase.ErrAlreadyProcessed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, usecase.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
