// Package response renders JSON error bodies for the HTTP API.
package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aimd54/wellness-rewards/internal/apperr"
	"github.com/aimd54/wellness-rewards/pkg/logger"
)

// Error writes an error body and aborts the chain.
func Error(c *gin.Context, statusCode int, message string) {
	c.AbortWithStatusJSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotEligible:
		return http.StatusUnprocessableEntity
	case apperr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// FromError writes the response for a service error. Classified errors
// report their own message and code, never the wrapping context; anything
// else is logged and reported opaquely.
func FromError(c *gin.Context, log *logger.Logger, err error) {
	kind := apperr.KindOf(err)
	status := StatusFor(kind)

	if kind == apperr.KindInternal {
		log.Error().
			Err(err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("Request failed")
		c.AbortWithStatusJSON(status, gin.H{
			"error":     "Internal server error",
			"code":      apperr.CodeOf(err),
			"timestamp": time.Now().UTC(),
		})
		return
	}

	c.AbortWithStatusJSON(status, gin.H{
		"error":     apperr.MessageOf(err),
		"code":      apperr.CodeOf(err),
		"timestamp": time.Now().UTC(),
	})
}
