package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/darasahq/darasa/internal/middleware"
	"github.com/darasahq/darasa/internal/notify"
	"github.com/darasahq/darasa/internal/realtime"
	"github.com/darasahq/darasa/internal/services"
	"github.com/darasahq/darasa/pkg/errors"
	"github.com/darasahq/darasa/pkg/response"
)

// NotificationHandler exposes HTTP endpoints for the delivery engine:
// submission, history, lifecycle reports and cancellation.
type NotificationHandler struct {
	service *services.NotificationService
}

// NewNotificationHandler constructs a notification handler. hub may be nil
// when no realtime stream is mounted.
func NewNotificationHandler(db *gorm.DB, engine *notify.Engine, hub *realtime.Hub) (*NotificationHandler, error) {
	service, err := services.NewNotificationService(db, engine, hub)
	if err != nil {
		return nil, err
	}
	return &NotificationHandler{service: service}, nil
}

// Submit accepts a notification for eligibility evaluation and delivery.
func (h *NotificationHandler) Submit(c *gin.Context) {
	var payload services.SubmitNotificationInput
	if !bindAndValidate(c, &payload) {
		return
	}

	dto, err := h.service.Submit(requestContext(c), payload)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusAccepted, dto)
}

// Get returns one delivery instance within the caller's tenant.
func (h *NotificationHandler) Get(c *gin.Context) {
	tenantID := c.GetString(middleware.CtxTenantIDKey)
	if tenantID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	dto, err := h.service.Get(requestContext(c), tenantID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, dto)
}

// List returns the tenant's delivery history with filters and pagination.
func (h *NotificationHandler) List(c *gin.Context) {
	tenantID := c.GetString(middleware.CtxTenantIDKey)
	if tenantID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	from, err := parseTimeQuery(c, "from")
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := parseTimeQuery(c, "to")
	if err != nil {
		response.Error(c, err)
		return
	}

	page := parseIntQuery(c, "page", 1)
	pageSize := parseIntQuery(c, "page_size", 25)

	items, total, err := h.service.List(requestContext(c), services.ListNotificationsInput{
		TenantID: tenantID,
		UserID:   strings.TrimSpace(c.Query("user_id")),
		Type:     strings.TrimSpace(c.Query("type")),
		Status:   strings.TrimSpace(c.Query("status")),
		Priority: strings.TrimSpace(c.Query("priority")),
		From:     from,
		To:       to,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, items, response.NewMeta(page, pageSize, total))
}

// ReportOutcome records a transport acknowledgment for a sent instance.
func (h *NotificationHandler) ReportOutcome(c *gin.Context) {
	var payload struct {
		Outcome string `json:"outcome" validate:"required"`
		Detail  string `json:"detail,omitempty"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}

	dto, err := h.service.ReportOutcome(requestContext(c), c.Param("id"), payload.Outcome, payload.Detail)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, dto)
}

// MarkRead records a read receipt from the authenticated recipient.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload struct {
		ReadAt *time.Time `json:"read_at,omitempty"`
	}
	if c.Request != nil && c.Request.ContentLength > 0 {
		if !bindAndValidate(c, &payload) {
			return
		}
	}

	at := time.Time{}
	if payload.ReadAt != nil {
		at = *payload.ReadAt
	}

	dto, err := h.service.MarkRead(requestContext(c), userID, c.Param("id"), at)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, dto)
}

// Cancel suppresses an instance that has not yet reached a transport.
func (h *NotificationHandler) Cancel(c *gin.Context) {
	tenantID := c.GetString(middleware.CtxTenantIDKey)
	if tenantID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload struct {
		Reason string `json:"reason,omitempty"`
	}
	if c.Request != nil && c.Request.ContentLength > 0 {
		if !bindAndValidate(c, &payload) {
			return
		}
	}

	dto, err := h.service.Cancel(requestContext(c), tenantID, c.Param("id"), payload.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, dto)
}
