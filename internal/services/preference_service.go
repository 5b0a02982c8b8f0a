package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/darasahq/darasa/internal/models"
	"github.com/darasahq/darasa/internal/notify"
	apperrors "github.com/darasahq/darasa/pkg/errors"
)

// PreferenceDTO is the API-friendly view of a notification preference.
type PreferenceDTO struct {
	ID               string    `json:"id,omitempty"`
	TenantID         string    `json:"tenant_id"`
	UserID           string    `json:"user_id,omitempty"`
	NotificationType string    `json:"notification_type"`
	TemplateType     string    `json:"template_type,omitempty"`
	IsEnabled        bool      `json:"is_enabled"`
	Channels         []string  `json:"channels"`
	QuietHoursStart  string    `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd    string    `json:"quiet_hours_end,omitempty"`
	Timezone         string    `json:"timezone,omitempty"`
	Frequency        string    `json:"frequency"`
	Default          bool      `json:"default"`
	UpdatedAt        time.Time `json:"updated_at,omitempty"`
}

// PutPreferenceInput carries one preference write. The record replaces the
// stored one in full; omitted fields become their zero values.
type PutPreferenceInput struct {
	TenantID         string   `json:"tenant_id,omitempty"`
	UserID           string   `json:"user_id,omitempty"`
	NotificationType string   `json:"notification_type,omitempty"`
	TemplateType     string   `json:"template_type,omitempty"`
	IsEnabled        bool     `json:"is_enabled"`
	Channels         []string `json:"channels,omitempty"`
	QuietHoursStart  string   `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd    string   `json:"quiet_hours_end,omitempty"`
	Timezone         string   `json:"timezone,omitempty"`
	Frequency        string   `json:"frequency,omitempty"`
}

// BulkPutResult reports the outcome of one entry in a bulk write.
type BulkPutResult struct {
	NotificationType string `json:"notification_type"`
	TemplateType     string `json:"template_type,omitempty"`
	Error            string `json:"error,omitempty"`
}

// PreferenceService fronts the preference store for the API layer.
type PreferenceService struct {
	store *notify.Store
}

// NewPreferenceService constructs a PreferenceService.
func NewPreferenceService(store *notify.Store) (*PreferenceService, error) {
	if store == nil {
		return nil, errors.New("preference service: store is required")
	}
	return &PreferenceService{store: store}, nil
}

// GetEffective resolves the preference that would govern a notification of the
// given type for the user, walking the precedence ladder down to the global
// default.
func (s *PreferenceService) GetEffective(ctx context.Context, tenantID, userID, notificationType, templateType string) (*PreferenceDTO, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(notificationType) == "" {
		return nil, apperrors.NewBadRequest("notification type is required")
	}

	pref, err := s.store.Resolve(ctx, notify.PreferenceKey{
		TenantID:         strings.TrimSpace(tenantID),
		UserID:           strings.TrimSpace(userID),
		NotificationType: strings.TrimSpace(notificationType),
		TemplateType:     strings.TrimSpace(templateType),
	})
	if err != nil {
		return nil, err
	}
	dto := mapPreference(*pref)
	return &dto, nil
}

// Put replaces the preference record identified by the input's key.
func (s *PreferenceService) Put(ctx context.Context, input PutPreferenceInput) (*PreferenceDTO, error) {
	pref, err := s.store.Upsert(ensureContext(ctx), preferenceFromInput(input))
	if err != nil {
		return nil, err
	}
	dto := mapPreference(*pref)
	return &dto, nil
}

// BulkPut applies each entry independently and reports per-entry outcomes.
func (s *PreferenceService) BulkPut(ctx context.Context, inputs []PutPreferenceInput) []BulkPutResult {
	records := make([]models.NotificationPreference, 0, len(inputs))
	for _, input := range inputs {
		records = append(records, preferenceFromInput(input))
	}

	results := s.store.BulkUpsert(ensureContext(ctx), records)
	out := make([]BulkPutResult, 0, len(results))
	for _, result := range results {
		entry := BulkPutResult{
			NotificationType: result.Key.NotificationType,
			TemplateType:     result.Key.TemplateType,
		}
		if result.Err != nil {
			entry.Error = result.Err.Error()
		}
		out = append(out, entry)
	}
	return out
}

func preferenceFromInput(input PutPreferenceInput) models.NotificationPreference {
	return models.NotificationPreference{
		TenantID:         strings.TrimSpace(input.TenantID),
		UserID:           strings.TrimSpace(input.UserID),
		NotificationType: strings.TrimSpace(input.NotificationType),
		TemplateType:     strings.TrimSpace(input.TemplateType),
		IsEnabled:        input.IsEnabled,
		Channels:         input.Channels,
		QuietHoursStart:  strings.TrimSpace(input.QuietHoursStart),
		QuietHoursEnd:    strings.TrimSpace(input.QuietHoursEnd),
		Timezone:         strings.TrimSpace(input.Timezone),
		Frequency:        strings.TrimSpace(input.Frequency),
	}
}

func mapPreference(row models.NotificationPreference) PreferenceDTO {
	return PreferenceDTO{
		ID:               row.ID,
		TenantID:         row.TenantID,
		UserID:           row.UserID,
		NotificationType: row.NotificationType,
		TemplateType:     row.TemplateType,
		IsEnabled:        row.IsEnabled,
		Channels:         row.Channels,
		QuietHoursStart:  row.QuietHoursStart,
		QuietHoursEnd:    row.QuietHoursEnd,
		Timezone:         row.Timezone,
		Frequency:        defaultIfEmpty(row.Frequency, string(notify.FrequencyImmediate)),
		Default:          row.ID == "",
		UpdatedAt:        row.UpdatedAt,
	}
}
