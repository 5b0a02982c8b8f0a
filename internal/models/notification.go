package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is a single delivery instance tracked through the lifecycle
// state machine. Rows are never deleted; terminal instances remain available
// to the history surface.
type Notification struct {
	BaseModel

	TenantID   string `gorm:"type:uuid;index" json:"tenant_id"`
	UserID     string `gorm:"type:uuid;index:idx_notification_user_created" json:"user_id"`
	Type       string `gorm:"type:varchar(64);index;not null" json:"type"`
	TemplateID string `gorm:"type:uuid" json:"template_id,omitempty"`
	Priority   string `gorm:"type:varchar(16);default:'normal';index" json:"priority"`
	Status     string `gorm:"type:varchar(24);index;not null" json:"status"`

	Subject string `gorm:"type:varchar(255)" json:"subject,omitempty"`
	Content string `gorm:"type:text" json:"content"`

	// Channel is the transport chosen at dispatch; Channels is the allowed
	// set captured when eligibility was decided, in preference order.
	Channel  string                      `gorm:"type:varchar(16)" json:"channel,omitempty"`
	Channels datatypes.JSONSlice[string] `json:"channels"`

	RecipientEmail string `gorm:"type:varchar(255)" json:"recipient_email,omitempty"`
	RecipientPhone string `gorm:"type:varchar(32)" json:"recipient_phone,omitempty"`
	PushToken      string `gorm:"type:text" json:"-"`

	// Timezone is the IANA zone captured at decision time. Quiet-hours
	// deferrals are not recomputed if the user later changes zones.
	Timezone string `gorm:"type:varchar(64)" json:"timezone,omitempty"`

	ScheduledFor  *time.Time `gorm:"index" json:"scheduled_for,omitempty"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
	ReadAt        *time.Time `json:"read_at,omitempty"`
	FailureReason string     `gorm:"type:text" json:"failure_reason,omitempty"`
	RetryCount    int        `gorm:"default:0" json:"retry_count"`

	// DigestKey marks membership in a pending digest bucket; empty for
	// immediate deliveries.
	DigestKey string `gorm:"type:varchar(160);index" json:"digest_key,omitempty"`

	Metadata datatypes.JSONMap `json:"metadata,omitempty"`
}
