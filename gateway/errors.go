package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/example/neomart/pkg/apperr"
	"github.com/example/neomart/pkg/cart"
	"github.com/example/neomart/pkg/checkout"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusClientClosedRequest is reported when the caller went away mid-request.
const statusClientClosedRequest = 499

func (g *Gateway) writeError(c *gin.Context, err error) {
	var (
		unauth *apperr.NotAuthenticatedError
		valid  *apperr.ValidationError
		dup    *apperr.DuplicateIDError
	)
	switch {
	case errors.As(err, &unauth):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "redirect": unauth.Redirect})
	case errors.Is(err, apperr.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.As(err, &valid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "fields": valid.Fields})
	case apperr.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &dup):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, cart.ErrEmptyCart),
		errors.Is(err, checkout.ErrNoPendingCheckout),
		errors.Is(err, checkout.ErrMethodNotSelected):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled):
		c.JSON(statusClientClosedRequest, gin.H{"error": "request cancelled"})
	default:
		g.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// bindJSON reports malformed bodies as a plain 400.
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}
