package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/darasahq/darasa/internal/database/testutil"
	"github.com/darasahq/darasa/internal/models"
	"github.com/darasahq/darasa/internal/notify"
	apperrors "github.com/darasahq/darasa/pkg/errors"
)

type serviceHarness struct {
	db      *gorm.DB
	svc     *NotificationService
	prefSvc *PreferenceService
	engine  *notify.Engine
	user    models.User
	now     time.Time
}

type sinkTransport struct {
	channel    notify.Channel
	deliveries []notify.Delivery
}

func (t *sinkTransport) Channel() notify.Channel { return t.channel }

func (t *sinkTransport) Send(_ context.Context, d notify.Delivery) error {
	t.deliveries = append(t.deliveries, d)
	return nil
}

func newServiceHarness(t *testing.T) *serviceHarness {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	store, err := notify.NewStore(db)
	require.NoError(t, err)
	resolver, err := notify.NewResolver(store, "UTC")
	require.NoError(t, err)
	scheduler, err := notify.NewScheduler(db, notify.SchedulerConfig{})
	require.NoError(t, err)

	h := &serviceHarness{
		db:  db,
		now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}

	engine, err := notify.NewEngine(db, store, resolver, scheduler,
		notify.WithClock(func() time.Time { return h.now }),
		notify.WithTransport(&sinkTransport{channel: notify.ChannelEmail}),
	)
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	h.engine = engine

	h.svc, err = NewNotificationService(db, engine, nil)
	require.NoError(t, err)
	h.prefSvc, err = NewPreferenceService(store)
	require.NoError(t, err)

	h.user = models.User{
		TenantID: "t-1",
		Username: "jdoe",
		Email:    "jdoe@example.com",
		Timezone: "UTC",
	}
	require.NoError(t, db.Create(&h.user).Error)

	return h
}

func TestNotificationServiceSubmitAndGet(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()

	dto, err := h.svc.Submit(ctx, SubmitNotificationInput{
		UserID:  h.user.ID,
		Type:    notify.TypeAnnouncement,
		Subject: "Sports day",
		Content: "Sports day moved to Friday.",
	})
	require.NoError(t, err)
	assert.Equal(t, "scheduled", dto.Status)
	assert.Equal(t, "t-1", dto.TenantID)
	assert.False(t, dto.Terminal)

	got, err := h.svc.Get(ctx, "t-1", dto.ID)
	require.NoError(t, err)
	assert.Equal(t, dto.ID, got.ID)

	// Tenant scoping: another tenant cannot see the instance.
	_, err = h.svc.Get(ctx, "t-2", dto.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestNotificationServiceListFilters(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()

	for _, typ := range []string{notify.TypeAnnouncement, notify.TypeAnnouncement, notify.TypeGradePosted} {
		_, err := h.svc.Submit(ctx, SubmitNotificationInput{
			UserID:  h.user.ID,
			Type:    typ,
			Content: "body",
		})
		require.NoError(t, err)
	}

	rows, total, err := h.svc.List(ctx, ListNotificationsInput{TenantID: "t-1"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, rows, 3)

	rows, total, err = h.svc.List(ctx, ListNotificationsInput{
		TenantID: "t-1",
		Type:     notify.TypeAnnouncement,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	for _, row := range rows {
		assert.Equal(t, notify.TypeAnnouncement, row.Type)
	}

	rows, total, err = h.svc.List(ctx, ListNotificationsInput{
		TenantID: "t-1",
		Status:   "scheduled",
		Page:     1,
		PageSize: 2,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total, "total counts all matches, not the page")
	assert.Len(t, rows, 2)

	_, _, err = h.svc.List(ctx, ListNotificationsInput{TenantID: "t-1", Status: "bogus"})
	require.Error(t, err)

	_, _, err = h.svc.List(ctx, ListNotificationsInput{})
	require.Error(t, err, "tenant id is mandatory")
}

func TestNotificationServiceListDateRange(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()

	dto, err := h.svc.Submit(ctx, SubmitNotificationInput{
		UserID:  h.user.ID,
		Type:    notify.TypeAnnouncement,
		Content: "body",
	})
	require.NoError(t, err)

	var row models.Notification
	require.NoError(t, h.db.Where("id = ?", dto.ID).First(&row).Error)

	from := row.CreatedAt.Add(-time.Minute)
	to := row.CreatedAt.Add(time.Minute)
	_, total, err := h.svc.List(ctx, ListNotificationsInput{TenantID: "t-1", From: &from, To: &to})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	before := row.CreatedAt.Add(-time.Hour)
	_, total, err = h.svc.List(ctx, ListNotificationsInput{TenantID: "t-1", To: &before})
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
}

func TestNotificationServiceLifecycleReports(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()

	dto, err := h.svc.Submit(ctx, SubmitNotificationInput{
		UserID:  h.user.ID,
		Type:    notify.TypeAnnouncement,
		Content: "body",
	})
	require.NoError(t, err)

	h.engine.DispatchNow(dto.ID)

	updated, err := h.svc.ReportOutcome(ctx, dto.ID, notify.OutcomeDelivered, "")
	require.NoError(t, err)
	assert.Equal(t, "delivered", updated.Status)

	// Read receipts are scoped to the recipient.
	_, err = h.svc.MarkRead(ctx, "someone-else", dto.ID, time.Time{})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	read, err := h.svc.MarkRead(ctx, h.user.ID, dto.ID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "read", read.Status)
	assert.True(t, read.Terminal)
}

func TestNotificationServiceCancel(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()

	future := h.now.Add(time.Hour)
	dto, err := h.svc.Submit(ctx, SubmitNotificationInput{
		UserID:       h.user.ID,
		Type:         notify.TypeAnnouncement,
		Content:      "body",
		ScheduledFor: &future,
	})
	require.NoError(t, err)

	_, err = h.svc.Cancel(ctx, "t-2", dto.ID, "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	cancelled, err := h.svc.Cancel(ctx, "t-1", dto.ID, "event moved")
	require.NoError(t, err)
	assert.Equal(t, "suppressed", cancelled.Status)
	assert.Equal(t, "event moved", cancelled.FailureReason)
}
