package models

import "time"

// Digest bucket states.
const (
	DigestPending = "pending"
	DigestFlushed = "flushed"
)

// DigestBucket accumulates notifications for one (user, type, period) until
// the period elapses and the sweep dispatches the members as one delivery.
type DigestBucket struct {
	BaseModel

	Key              string     `gorm:"type:varchar(160);uniqueIndex;not null" json:"key"`
	TenantID         string     `gorm:"type:uuid;index" json:"tenant_id"`
	UserID           string     `gorm:"type:uuid;index" json:"user_id"`
	NotificationType string     `gorm:"type:varchar(64)" json:"notification_type"`
	Frequency        string     `gorm:"type:varchar(16)" json:"frequency"`
	PeriodStart      time.Time  `json:"period_start"`
	PeriodEnd        time.Time  `gorm:"index" json:"period_end"`
	Status           string     `gorm:"type:varchar(16);default:'pending';index" json:"status"`
	FlushedAt        *time.Time `json:"flushed_at,omitempty"`
}
