package database

import (
	"gorm.io/gorm"

	"github.com/darasahq/darasa/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Tenant{},
		&models.User{},
		&models.NotificationTemplate{},
		&models.NotificationPreference{},
		&models.Notification{},
		&models.DigestBucket{},
	)
}

// SeedData populates the default tenant and its notification defaults.
func SeedData(db *gorm.DB) error {
	tenant := models.Tenant{
		Name:     "Default School",
		Slug:     "default",
		Timezone: "UTC",
		IsActive: true,
	}
	if err := db.Where(models.Tenant{Slug: tenant.Slug}).Attrs(tenant).FirstOrCreate(&tenant).Error; err != nil {
		return err
	}

	// Tenant-level defaults: billing notices go to email only and are never
	// batched; everything else inherits the global default.
	billingDefault := models.NotificationPreference{
		TenantID:         tenant.ID,
		NotificationType: "billing.invoice",
		IsEnabled:        true,
		Channels:         []string{"email"},
		Frequency:        "immediate",
	}
	err := db.Where(models.NotificationPreference{
		TenantID:         billingDefault.TenantID,
		UserID:           "",
		NotificationType: billingDefault.NotificationType,
		TemplateType:     "",
	}).Attrs(billingDefault).FirstOrCreate(&models.NotificationPreference{}).Error
	if err != nil {
		return err
	}

	return nil
}
