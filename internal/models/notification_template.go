package models

// NotificationTemplate identifies a reusable message template. Rendering is
// an external concern; the engine only records which template an instance
// referenced and uses TemplateType for preference matching.
type NotificationTemplate struct {
	BaseModel

	TenantID         string `gorm:"type:uuid;index" json:"tenant_id"`
	NotificationType string `gorm:"type:varchar(64);index;not null" json:"notification_type"`
	TemplateType     string `gorm:"type:varchar(64);index;not null" json:"template_type"`
	Name             string `gorm:"type:varchar(255);not null" json:"name"`
	Subject          string `gorm:"type:varchar(255)" json:"subject"`
	Body             string `gorm:"type:text" json:"body"`
	IsActive         bool   `gorm:"default:true" json:"is_active"`
}
