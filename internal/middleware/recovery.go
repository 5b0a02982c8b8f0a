package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/darasahq/darasa/pkg/logger"
	"github.com/darasahq/darasa/pkg/response"
)

// Recovery converts handler panics into a 500 envelope. The panic value and
// stack stay in the logs, never in the response body.
func Recovery() gin.HandlerFunc {
	log := logger.WithModule("http")
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			log.Error("handler panic",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Envelope{
				Success: false,
				Error: &response.ErrorInfo{
					Code:    "INTERNAL_SERVER_ERROR",
					Message: "Internal server error",
				},
			})
		}()
		c.Next()
	}
}

// NotFoundHandler answers unknown routes with the standard envelope.
func NotFoundHandler(c *gin.Context) {
	response.Success(c, http.StatusNotFound, gin.H{"error": fmt.Sprintf("route %s not found", c.Request.URL.Path)})
}
