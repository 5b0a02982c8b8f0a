package models

import "gorm.io/datatypes"

// NotificationPreference stores one preference record. Three shapes share the
// table, matched most-specific first during resolution:
//
//   - (tenant, user, type, template) — template-specific user preference
//   - (tenant, user, type, "")      — user preference for all templates of a type
//   - (tenant, "",   type, "")      — tenant-level default
//
// Updates replace the whole record they target; records are never merged.
type NotificationPreference struct {
	BaseModel

	TenantID         string `gorm:"type:uuid;index;uniqueIndex:idx_pref_identity" json:"tenant_id"`
	UserID           string `gorm:"type:uuid;index;uniqueIndex:idx_pref_identity" json:"user_id"`
	NotificationType string `gorm:"type:varchar(64);uniqueIndex:idx_pref_identity;not null" json:"notification_type"`
	TemplateType     string `gorm:"type:varchar(64);uniqueIndex:idx_pref_identity" json:"template_type"`

	// No column default: a zero value here must persist as false, or a
	// disabled preference would silently re-enable itself on insert.
	IsEnabled       bool                        `json:"is_enabled"`
	Channels        datatypes.JSONSlice[string] `json:"channels"`
	QuietHoursStart string                      `gorm:"type:varchar(5)" json:"quiet_hours_start"` // "HH:MM", empty = none
	QuietHoursEnd   string                      `gorm:"type:varchar(5)" json:"quiet_hours_end"`
	Timezone        string                      `gorm:"type:varchar(64)" json:"timezone"`
	Frequency       string                      `gorm:"type:varchar(16);default:'immediate'" json:"frequency"`
	Metadata        datatypes.JSONMap           `json:"metadata"`
}

// IsTenantDefault reports whether the record is the tenant-level fallback rung.
func (p *NotificationPreference) IsTenantDefault() bool {
	return p.UserID == ""
}
