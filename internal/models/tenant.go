package models

// Tenant represents a single school on the platform.
type Tenant struct {
	BaseModel

	Name     string `gorm:"type:varchar(255);not null" json:"name"`
	Slug     string `gorm:"type:varchar(64);uniqueIndex;not null" json:"slug"`
	Timezone string `gorm:"type:varchar(64)" json:"timezone"`
	IsActive bool   `gorm:"default:true" json:"is_active"`
}
