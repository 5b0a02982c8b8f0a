package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
)

// requestContext extracts the caller's context, tolerating handlers invoked
// without a request attached (direct calls in tests).
func requestContext(c *gin.Context) context.Context {
	if c == nil || c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}
