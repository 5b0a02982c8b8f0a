package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darasahq/darasa/internal/database/testutil"
	"github.com/darasahq/darasa/internal/models"
	apperrors "github.com/darasahq/darasa/pkg/errors"
)

func TestResolvePrecedence(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store, err := NewStore(db)
	require.NoError(t, err)
	ctx := context.Background()

	tenantDefault := models.NotificationPreference{
		TenantID:         "t-1",
		NotificationType: TypeGradePosted,
		IsEnabled:        true,
		Channels:         []string{"email"},
		Frequency:        "immediate",
	}
	userPref := models.NotificationPreference{
		TenantID:         "t-1",
		UserID:           "u-1",
		NotificationType: TypeGradePosted,
		IsEnabled:        true,
		Channels:         []string{"email", "push"},
		Frequency:        "daily_digest",
	}
	templatePref := models.NotificationPreference{
		TenantID:         "t-1",
		UserID:           "u-1",
		NotificationType: TypeGradePosted,
		TemplateType:     "final_grade",
		IsEnabled:        false,
		Frequency:        "immediate",
	}

	for _, pref := range []models.NotificationPreference{tenantDefault, userPref, templatePref} {
		_, err := store.Upsert(ctx, pref)
		require.NoError(t, err)
	}

	// Most specific record wins.
	got, err := store.Resolve(ctx, PreferenceKey{TenantID: "t-1", UserID: "u-1", NotificationType: TypeGradePosted, TemplateType: "final_grade"})
	require.NoError(t, err)
	assert.False(t, got.IsEnabled)

	// Template without its own record falls back to the user record.
	got, err = store.Resolve(ctx, PreferenceKey{TenantID: "t-1", UserID: "u-1", NotificationType: TypeGradePosted, TemplateType: "midterm_grade"})
	require.NoError(t, err)
	assert.Equal(t, "daily_digest", got.Frequency)

	// A user without records falls back to the tenant default.
	got, err = store.Resolve(ctx, PreferenceKey{TenantID: "t-1", UserID: "u-2", NotificationType: TypeGradePosted})
	require.NoError(t, err)
	assert.Equal(t, []string{"email"}, []string(got.Channels))
	assert.True(t, got.IsTenantDefault())
}

func TestResolveGlobalDefault(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store, err := NewStore(db)
	require.NoError(t, err)

	got, err := store.Resolve(context.Background(), PreferenceKey{TenantID: "t-9", UserID: "u-9", NotificationType: TypeAnnouncement})
	require.NoError(t, err)
	assert.True(t, got.IsEnabled)
	assert.Equal(t, string(FrequencyImmediate), got.Frequency)
	assert.Empty(t, got.QuietHoursStart)
	assert.ElementsMatch(t, channelsToStrings(ValidChannels(TypeAnnouncement)), []string(got.Channels))
}

func TestUpsertPersistsDisabled(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store, err := NewStore(db)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Upsert(ctx, models.NotificationPreference{
		TenantID:         "t-1",
		UserID:           "u-1",
		NotificationType: TypeAnnouncement,
		IsEnabled:        false,
		Channels:         []string{"email"},
	})
	require.NoError(t, err)

	// Read through a fresh query, not the returned struct, so a column
	// default flipping the stored value would be caught here.
	var row models.NotificationPreference
	require.NoError(t, db.Where("tenant_id = ? AND user_id = ? AND notification_type = ?",
		"t-1", "u-1", TypeAnnouncement).First(&row).Error)
	assert.False(t, row.IsEnabled)
}

func TestUpsertReplacesWholeRecord(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store, err := NewStore(db)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Upsert(ctx, models.NotificationPreference{
		TenantID:         "t-1",
		UserID:           "u-1",
		NotificationType: TypeAnnouncement,
		IsEnabled:        true,
		Channels:         []string{"email", "push"},
		QuietHoursStart:  "22:00",
		QuietHoursEnd:    "08:00",
		Timezone:         "UTC",
		Frequency:        "immediate",
	})
	require.NoError(t, err)

	// The update omits quiet hours: they must be gone, not inherited.
	_, err = store.Upsert(ctx, models.NotificationPreference{
		TenantID:         "t-1",
		UserID:           "u-1",
		NotificationType: TypeAnnouncement,
		IsEnabled:        true,
		Channels:         []string{"sms"},
		Frequency:        "weekly_digest",
	})
	require.NoError(t, err)

	got, err := store.Resolve(ctx, PreferenceKey{TenantID: "t-1", UserID: "u-1", NotificationType: TypeAnnouncement})
	require.NoError(t, err)
	assert.Equal(t, []string{"sms"}, []string(got.Channels))
	assert.Empty(t, got.QuietHoursStart)
	assert.Equal(t, "weekly_digest", got.Frequency)

	var count int64
	require.NoError(t, db.Model(&models.NotificationPreference{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestUpsertRejectsInvalidChannel(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store, err := NewStore(db)
	require.NoError(t, err)

	_, err = store.Upsert(context.Background(), models.NotificationPreference{
		TenantID:         "t-1",
		UserID:           "u-1",
		NotificationType: TypeBillingInvoice,
		IsEnabled:        true,
		Channels:         []string{"push"}, // not valid for billing
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidChannel)
}

func TestUpsertValidation(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store, err := NewStore(db)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Upsert(ctx, models.NotificationPreference{
		TenantID:         "t-1",
		UserID:           "u-1",
		NotificationType: TypeAnnouncement,
		QuietHoursStart:  "22:00", // missing end
	})
	require.Error(t, err)

	_, err = store.Upsert(ctx, models.NotificationPreference{
		TenantID:         "t-1",
		UserID:           "u-1",
		NotificationType: TypeAnnouncement,
		Timezone:         "Mars/Olympus_Mons",
	})
	require.Error(t, err)

	_, err = store.Upsert(ctx, models.NotificationPreference{
		TenantID:         "t-1",
		UserID:           "u-1",
		NotificationType: TypeAnnouncement,
		Frequency:        "hourly",
	})
	require.Error(t, err)
}

func TestBulkUpsertAppliesEntriesIndependently(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store, err := NewStore(db)
	require.NoError(t, err)
	ctx := context.Background()

	results := store.BulkUpsert(ctx, []models.NotificationPreference{
		{
			TenantID:         "t-1",
			UserID:           "u-1",
			NotificationType: TypeAnnouncement,
			IsEnabled:        true,
			Channels:         []string{"email"},
		},
		{
			TenantID:         "t-1",
			UserID:           "u-1",
			NotificationType: TypeBillingInvoice,
			IsEnabled:        true,
			Channels:         []string{"websocket"}, // invalid for billing
		},
		{
			TenantID:         "t-1",
			UserID:           "u-1",
			NotificationType: TypeAttendanceAlert,
			IsEnabled:        false,
		},
	})

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, apperrors.ErrInvalidChannel)
	assert.NoError(t, results[2].Err)

	// The failing middle entry must not block the last one.
	got, err := store.Resolve(ctx, PreferenceKey{TenantID: "t-1", UserID: "u-1", NotificationType: TypeAttendanceAlert})
	require.NoError(t, err)
	assert.False(t, got.IsEnabled)
}
