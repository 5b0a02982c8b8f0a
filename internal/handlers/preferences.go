package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/darasahq/darasa/internal/middleware"
	"github.com/darasahq/darasa/internal/notify"
	"github.com/darasahq/darasa/internal/services"
	"github.com/darasahq/darasa/pkg/errors"
	"github.com/darasahq/darasa/pkg/response"
)

// PreferenceHandler exposes HTTP endpoints for notification preferences.
type PreferenceHandler struct {
	service *services.PreferenceService
}

// NewPreferenceHandler constructs a preference handler.
func NewPreferenceHandler(store *notify.Store) (*PreferenceHandler, error) {
	service, err := services.NewPreferenceService(store)
	if err != nil {
		return nil, err
	}
	return &PreferenceHandler{service: service}, nil
}

// GetEffective resolves the preference governing a notification type for the
// current user, including fallbacks to tenant and global defaults.
func (h *PreferenceHandler) GetEffective(c *gin.Context) {
	tenantID := c.GetString(middleware.CtxTenantIDKey)
	userID := c.GetString(middleware.CtxUserIDKey)
	if tenantID == "" || userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	// Admins may inspect another user's effective preference.
	if override := strings.TrimSpace(c.Query("user_id")); override != "" {
		userID = override
	}

	dto, err := h.service.GetEffective(requestContext(c),
		tenantID, userID, c.Param("type"), strings.TrimSpace(c.Query("template_type")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, dto)
}

// Put replaces one preference record for the current user.
func (h *PreferenceHandler) Put(c *gin.Context) {
	tenantID := c.GetString(middleware.CtxTenantIDKey)
	userID := c.GetString(middleware.CtxUserIDKey)
	if tenantID == "" || userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload services.PutPreferenceInput
	if !bindAndValidate(c, &payload) {
		return
	}
	payload.TenantID = tenantID
	payload.UserID = userID
	payload.NotificationType = c.Param("type")

	dto, err := h.service.Put(requestContext(c), payload)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, dto)
}

// PutTenantDefault replaces a tenant-wide default preference record.
func (h *PreferenceHandler) PutTenantDefault(c *gin.Context) {
	tenantID := c.GetString(middleware.CtxTenantIDKey)
	if tenantID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload services.PutPreferenceInput
	if !bindAndValidate(c, &payload) {
		return
	}
	payload.TenantID = tenantID
	payload.UserID = "" // tenant scope
	payload.NotificationType = c.Param("type")

	dto, err := h.service.Put(requestContext(c), payload)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, dto)
}

// BulkPut applies several preference writes for the current user, reporting
// per-entry outcomes.
func (h *PreferenceHandler) BulkPut(c *gin.Context) {
	tenantID := c.GetString(middleware.CtxTenantIDKey)
	userID := c.GetString(middleware.CtxUserIDKey)
	if tenantID == "" || userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload struct {
		Preferences []services.PutPreferenceInput `json:"preferences" validate:"required,min=1"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}

	for i := range payload.Preferences {
		payload.Preferences[i].TenantID = tenantID
		payload.Preferences[i].UserID = userID
	}

	results := h.service.BulkPut(requestContext(c), payload.Preferences)
	response.Success(c, http.StatusOK, gin.H{"results": results})
}
