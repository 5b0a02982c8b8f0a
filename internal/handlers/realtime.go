package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/darasahq/darasa/internal/auth"
	"github.com/darasahq/darasa/internal/realtime"
	apperrors "github.com/darasahq/darasa/pkg/errors"
	"github.com/darasahq/darasa/pkg/response"
)

// RealtimeHandler upgrades clients onto the notification event stream.
type RealtimeHandler struct {
	hub *realtime.Hub
	jwt *iauth.JWTService
}

// NewRealtimeHandler constructs a realtime handler.
func NewRealtimeHandler(hub *realtime.Hub, jwt *iauth.JWTService) (*RealtimeHandler, error) {
	if hub == nil {
		return nil, errors.New("realtime handler: hub is required")
	}
	if jwt == nil {
		return nil, errors.New("realtime handler: jwt service is required")
	}
	return &RealtimeHandler{hub: hub, jwt: jwt}, nil
}

// Stream upgrades the connection to a WebSocket for live notification events.
// Browsers cannot set headers on WebSocket dials, so the token may arrive as a
// query parameter instead of an Authorization header.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		authz := c.GetHeader("Authorization")
		if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			token = strings.TrimSpace(authz[7:])
		}
	}

	if token == "" {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	claims, err := h.jwt.ValidateAccessToken(token)
	if err != nil {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	h.hub.Serve(claims.UserID, c.Writer, c.Request)
}
