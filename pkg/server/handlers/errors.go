package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/recall/pkg/types"
)

// abortWith maps domain errors onto HTTP status codes.
func abortWith(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var verr *types.ValidationError
	switch {
	case errors.Is(err, types.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, types.ErrProviderUnavailable):
		status = http.StatusServiceUnavailable
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
