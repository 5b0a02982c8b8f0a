package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/darasahq/darasa/internal/models"
	apperrors "github.com/darasahq/darasa/pkg/errors"
)

// PreferenceKey identifies one preference record. TemplateType may be empty,
// meaning the record applies to every template of the notification type.
type PreferenceKey struct {
	TenantID         string
	UserID           string
	NotificationType string
	TemplateType     string
}

func (k PreferenceKey) String() string {
	return k.TenantID + "/" + k.UserID + "/" + k.NotificationType + "/" + k.TemplateType
}

// UpsertResult reports the outcome of one entry in a bulk update.
type UpsertResult struct {
	Key PreferenceKey `json:"key"`
	Err error         `json:"-"`
}

// Store resolves and persists notification preferences. Reads may run
// concurrently; writes are serialized per key so a concurrent resolution
// observes either the old or the new complete record, never a mix.
type Store struct {
	db   *gorm.DB
	keys keyedMutex
}

// NewStore constructs a preference store.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("preference store: db is required")
	}
	return &Store{db: db}, nil
}

// Resolve returns the effective preference for the key, walking an explicit
// ladder of progressively less specific lookups:
//
//  1. (tenant, user, type, template)
//  2. (tenant, user, type, —)
//  3. (tenant, —, type, —) tenant default
//  4. hard-coded global default: enabled, all valid channels, immediate,
//     no quiet hours
//
// Falling through to the global default is a documented fallback, not an error.
func (s *Store) Resolve(ctx context.Context, key PreferenceKey) (*models.NotificationPreference, error) {
	lookups := make([]PreferenceKey, 0, 3)
	if key.TemplateType != "" {
		lookups = append(lookups, key)
	}
	lookups = append(lookups,
		PreferenceKey{TenantID: key.TenantID, UserID: key.UserID, NotificationType: key.NotificationType},
		PreferenceKey{TenantID: key.TenantID, NotificationType: key.NotificationType},
	)

	for _, lookup := range lookups {
		var pref models.NotificationPreference
		err := s.db.WithContext(ctx).
			Where("tenant_id = ? AND user_id = ? AND notification_type = ? AND template_type = ?",
				lookup.TenantID, lookup.UserID, lookup.NotificationType, lookup.TemplateType).
			First(&pref).Error
		if err == nil {
			return &pref, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("preference store: resolve %s: %w", lookup, err)
		}
	}

	return DefaultPreference(key), nil
}

// DefaultPreference builds the global fallback record for a key.
func DefaultPreference(key PreferenceKey) *models.NotificationPreference {
	return &models.NotificationPreference{
		TenantID:         key.TenantID,
		UserID:           key.UserID,
		NotificationType: key.NotificationType,
		TemplateType:     key.TemplateType,
		IsEnabled:        true,
		Channels:         channelsToStrings(ValidChannels(key.NotificationType)),
		Frequency:        string(FrequencyImmediate),
	}
}

// Upsert replaces the record identified by the preference's key atomically.
// The incoming record supersedes the stored one in full; fields absent from
// the input become their zero values, never a merge of old and new.
func (s *Store) Upsert(ctx context.Context, pref models.NotificationPreference) (*models.NotificationPreference, error) {
	if err := validatePreference(&pref); err != nil {
		return nil, err
	}

	key := PreferenceKey{
		TenantID:         pref.TenantID,
		UserID:           pref.UserID,
		NotificationType: pref.NotificationType,
		TemplateType:     pref.TemplateType,
	}

	unlock := s.keys.lock(key.String())
	defer unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tenant_id = ? AND user_id = ? AND notification_type = ? AND template_type = ?",
			key.TenantID, key.UserID, key.NotificationType, key.TemplateType).
			Delete(&models.NotificationPreference{}).Error; err != nil {
			return err
		}
		pref.BaseModel = models.BaseModel{}
		return tx.Create(&pref).Error
	})
	if err != nil {
		return nil, fmt.Errorf("preference store: upsert %s: %w", key, err)
	}

	return &pref, nil
}

// BulkUpsert applies each entry independently: a failing entry is reported in
// its result and does not prevent the remaining entries from applying.
func (s *Store) BulkUpsert(ctx context.Context, prefs []models.NotificationPreference) []UpsertResult {
	results := make([]UpsertResult, 0, len(prefs))
	for _, pref := range prefs {
		key := PreferenceKey{
			TenantID:         pref.TenantID,
			UserID:           pref.UserID,
			NotificationType: pref.NotificationType,
			TemplateType:     pref.TemplateType,
		}
		_, err := s.Upsert(ctx, pref)
		results = append(results, UpsertResult{Key: key, Err: err})
	}
	return results
}

func validatePreference(pref *models.NotificationPreference) error {
	pref.NotificationType = strings.TrimSpace(pref.NotificationType)
	if pref.NotificationType == "" {
		return apperrors.NewBadRequest("notification type is required")
	}

	for _, raw := range pref.Channels {
		ch, err := ParseChannel(raw)
		if err != nil {
			return apperrors.ErrInvalidChannel.WithInternal(err)
		}
		if !IsValidChannel(pref.NotificationType, ch) {
			return apperrors.ErrInvalidChannel.WithInternal(
				fmt.Errorf("channel %q is not valid for type %q", ch, pref.NotificationType))
		}
	}

	if _, err := ParseFrequency(pref.Frequency); err != nil {
		return apperrors.NewBadRequest(err.Error())
	}
	if pref.Frequency == "" {
		pref.Frequency = string(FrequencyImmediate)
	}

	if (pref.QuietHoursStart == "") != (pref.QuietHoursEnd == "") {
		return apperrors.NewBadRequest("quiet hours require both start and end")
	}
	if pref.QuietHoursStart != "" {
		if _, err := parseClock(pref.QuietHoursStart); err != nil {
			return apperrors.NewBadRequest(err.Error())
		}
		if _, err := parseClock(pref.QuietHoursEnd); err != nil {
			return apperrors.NewBadRequest(err.Error())
		}
	}

	if zone := strings.TrimSpace(pref.Timezone); zone != "" {
		if _, err := time.LoadLocation(zone); err != nil {
			return apperrors.NewBadRequest(fmt.Sprintf("unknown timezone %q", zone))
		}
	}

	return nil
}
