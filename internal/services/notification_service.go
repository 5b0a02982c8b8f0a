package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/darasahq/darasa/internal/models"
	"github.com/darasahq/darasa/internal/notify"
	"github.com/darasahq/darasa/internal/realtime"
	apperrors "github.com/darasahq/darasa/pkg/errors"
)

// NotificationDTO is the API-friendly view of a delivery instance.
type NotificationDTO struct {
	ID            string         `json:"id"`
	TenantID      string         `json:"tenant_id"`
	UserID        string         `json:"user_id"`
	Type          string         `json:"type"`
	Priority      string         `json:"priority"`
	Status        string         `json:"status"`
	Subject       string         `json:"subject,omitempty"`
	Content       string         `json:"content"`
	Channel       string         `json:"channel,omitempty"`
	Channels      []string       `json:"channels"`
	Timezone      string         `json:"timezone,omitempty"`
	ScheduledFor  *time.Time     `json:"scheduled_for,omitempty"`
	SentAt        *time.Time     `json:"sent_at,omitempty"`
	DeliveredAt   *time.Time     `json:"delivered_at,omitempty"`
	ReadAt        *time.Time     `json:"read_at,omitempty"`
	FailureReason string         `json:"failure_reason,omitempty"`
	RetryCount    int            `json:"retry_count"`
	DigestKey     string         `json:"digest_key,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Terminal      bool           `json:"terminal"`
}

// ListNotificationsInput defines filters for the delivery history surface.
type ListNotificationsInput struct {
	TenantID string
	UserID   string
	Type     string
	Status   string
	Priority string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// SubmitNotificationInput carries one submission from the API layer.
type SubmitNotificationInput struct {
	UserID       string         `json:"user_id" validate:"required"`
	Type         string         `json:"type" validate:"required"`
	TemplateID   string         `json:"template_id,omitempty"`
	TemplateType string         `json:"template_type,omitempty"`
	Priority     string         `json:"priority,omitempty"`
	Channels     []string       `json:"channels,omitempty"`
	Subject      string         `json:"subject,omitempty"`
	Content      string         `json:"content" validate:"required"`
	ScheduledFor *time.Time     `json:"scheduled_for,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// NotificationService fronts the delivery engine for the API layer: submission,
// lifecycle reports and the tenant-scoped history surface. When a hub is
// attached, read receipts fan out to the recipient's other live connections.
type NotificationService struct {
	db     *gorm.DB
	engine *notify.Engine
	hub    *realtime.Hub
}

// NewNotificationService constructs a NotificationService. hub may be nil when
// no realtime stream is mounted.
func NewNotificationService(db *gorm.DB, engine *notify.Engine, hub *realtime.Hub) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	if engine == nil {
		return nil, errors.New("notification service: engine is required")
	}
	return &NotificationService{db: db, engine: engine, hub: hub}, nil
}

// Submit runs eligibility and accepts the notification for delivery.
func (s *NotificationService) Submit(ctx context.Context, input SubmitNotificationInput) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)
	n, err := s.engine.Submit(ctx, notify.SubmitInput{
		UserID:       strings.TrimSpace(input.UserID),
		Type:         input.Type,
		TemplateID:   input.TemplateID,
		TemplateType: input.TemplateType,
		Priority:     input.Priority,
		Channels:     input.Channels,
		Subject:      strings.TrimSpace(input.Subject),
		Content:      input.Content,
		ScheduledFor: input.ScheduledFor,
		Metadata:     input.Metadata,
	})
	if err != nil {
		return nil, err
	}
	dto := mapNotification(*n)
	return &dto, nil
}

// Get returns one instance scoped to its tenant.
func (s *NotificationService) Get(ctx context.Context, tenantID, instanceID string) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)
	var n models.Notification
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", strings.TrimSpace(instanceID), strings.TrimSpace(tenantID)).
		First(&n).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("notification service: load instance: %w", err)
	}
	dto := mapNotification(n)
	return &dto, nil
}

// List returns the delivery history matching the filters, newest first,
// together with the total match count for pagination.
func (s *NotificationService) List(ctx context.Context, input ListNotificationsInput) ([]NotificationDTO, int64, error) {
	ctx = ensureContext(ctx)
	tenantID := strings.TrimSpace(input.TenantID)
	if tenantID == "" {
		return nil, 0, apperrors.NewBadRequest("tenant id is required")
	}

	query := s.db.WithContext(ctx).Model(&models.Notification{}).Where("tenant_id = ?", tenantID)
	if userID := strings.TrimSpace(input.UserID); userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if t := strings.TrimSpace(input.Type); t != "" {
		query = query.Where("type = ?", t)
	}
	if status := strings.TrimSpace(input.Status); status != "" {
		if _, err := notify.ParseStatus(status); err != nil {
			return nil, 0, apperrors.NewBadRequest(err.Error())
		}
		query = query.Where("status = ?", status)
	}
	if priority := strings.TrimSpace(input.Priority); priority != "" {
		if _, err := notify.ParsePriority(priority); err != nil {
			return nil, 0, apperrors.NewBadRequest(err.Error())
		}
		query = query.Where("priority = ?", priority)
	}
	if input.From != nil {
		query = query.Where("created_at >= ?", *input.From)
	}
	if input.To != nil {
		query = query.Where("created_at < ?", *input.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("notification service: count instances: %w", err)
	}

	limit, offset := clampPage(input.Page, input.PageSize)
	var rows []models.Notification
	err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("notification service: list instances: %w", err)
	}

	return mapNotificationRows(rows), total, nil
}

// ReportOutcome applies a transport acknowledgment.
func (s *NotificationService) ReportOutcome(ctx context.Context, instanceID, outcome, detail string) (*NotificationDTO, error) {
	n, err := s.engine.ReportOutcome(ensureContext(ctx), instanceID, outcome, detail)
	if err != nil {
		return nil, err
	}
	dto := mapNotification(*n)
	return &dto, nil
}

// MarkRead applies a recipient read receipt, scoped to the recipient.
func (s *NotificationService) MarkRead(ctx context.Context, userID, instanceID string, at time.Time) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)

	var n models.Notification
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", strings.TrimSpace(instanceID), strings.TrimSpace(userID)).
		First(&n).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("notification service: load instance: %w", err)
	}

	updated, err := s.engine.ReportRead(ctx, n.ID, at)
	if err != nil {
		return nil, err
	}
	dto := mapNotification(*updated)
	s.broadcast(updated.UserID, realtime.EventRead, &dto)
	return &dto, nil
}

func (s *NotificationService) broadcast(userID, event string, payload *NotificationDTO) {
	if s.hub == nil {
		return
	}
	message := realtime.Message{Event: event}
	if payload != nil {
		message.Data = payload
	}
	s.hub.BroadcastToUser(userID, message)
}

// Cancel suppresses an instance that has not yet been handed to a transport.
func (s *NotificationService) Cancel(ctx context.Context, tenantID, instanceID, reason string) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)

	var n models.Notification
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", strings.TrimSpace(instanceID), strings.TrimSpace(tenantID)).
		First(&n).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("notification service: load instance: %w", err)
	}

	cancelled, err := s.engine.Cancel(ctx, n.ID, reason)
	if err != nil {
		return nil, err
	}
	dto := mapNotification(*cancelled)
	return &dto, nil
}

func mapNotificationRows(rows []models.Notification) []NotificationDTO {
	items := make([]NotificationDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapNotification(row))
	}
	return items
}

func mapNotification(row models.Notification) NotificationDTO {
	return NotificationDTO{
		ID:            row.ID,
		TenantID:      row.TenantID,
		UserID:        row.UserID,
		Type:          row.Type,
		Priority:      defaultIfEmpty(row.Priority, string(notify.PriorityNormal)),
		Status:        row.Status,
		Subject:       row.Subject,
		Content:       row.Content,
		Channel:       row.Channel,
		Channels:      row.Channels,
		Timezone:      row.Timezone,
		ScheduledFor:  row.ScheduledFor,
		SentAt:        row.SentAt,
		DeliveredAt:   row.DeliveredAt,
		ReadAt:        row.ReadAt,
		FailureReason: row.FailureReason,
		RetryCount:    row.RetryCount,
		DigestKey:     row.DigestKey,
		Metadata:      row.Metadata,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
		Terminal:      notify.Status(row.Status).Terminal(),
	}
}
