package models

// User represents a notification recipient: a parent, student or staff member.
// Account management itself lives in the identity service; this engine only
// needs the contact surface and the profile timezone.
type User struct {
	BaseModel

	TenantID  string `gorm:"type:uuid;index;not null" json:"tenant_id"`
	Username  string `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	Email     string `gorm:"type:varchar(255);index" json:"email"`
	Phone     string `gorm:"type:varchar(32)" json:"phone"`
	FullName  string `gorm:"type:varchar(255)" json:"full_name"`
	Timezone  string `gorm:"type:varchar(64)" json:"timezone"`
	IsActive  bool   `gorm:"default:true" json:"is_active"`
	PushToken string `gorm:"type:text" json:"-"`
}
