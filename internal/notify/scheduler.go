package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/darasahq/darasa/internal/database"
	"github.com/darasahq/darasa/internal/models"
)

// Scheduling defaults; overridable through SchedulerConfig.
const (
	DefaultMaxAttempts = 5
	DefaultBackoffBase = 30 * time.Second
	DefaultBackoffMax  = time.Hour
)

// SchedulerConfig tunes retry and backoff behaviour.
type SchedulerConfig struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

func (c *SchedulerConfig) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = DefaultBackoffMax
	}
}

// Scheduler computes dispatch times and accumulates digest buckets. Bucket
// appends are guarded per bucket key, not by a global lock, so concurrent
// submissions for different buckets never contend.
type Scheduler struct {
	db      *gorm.DB
	cfg     SchedulerConfig
	buckets keyedMutex
}

// NewScheduler constructs a Scheduler.
func NewScheduler(db *gorm.DB, cfg SchedulerConfig) (*Scheduler, error) {
	if db == nil {
		return nil, errors.New("scheduler: db is required")
	}
	cfg.applyDefaults()
	return &Scheduler{db: db, cfg: cfg}, nil
}

// MaxAttempts exposes the configured retry cap.
func (s *Scheduler) MaxAttempts() int {
	return s.cfg.MaxAttempts
}

// DispatchTime computes the effective dispatch instant for an immediate
// delivery: the latest of now, the caller's requested time and any
// quiet-hours deferral boundary.
func (s *Scheduler) DispatchTime(decision Decision, requestedAt *time.Time, now time.Time) time.Time {
	at := now
	if requestedAt != nil && requestedAt.After(at) {
		at = *requestedAt
	}
	if decision.Deferred && decision.DeferUntil.After(at) {
		at = decision.DeferUntil
	}
	return at
}

// RetryDelay computes the exponential backoff before the given attempt,
// capped at the configured maximum. attempt is 1-based.
func (s *Scheduler) RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := s.cfg.BackoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= s.cfg.BackoffMax {
			return s.cfg.BackoffMax
		}
	}
	if delay > s.cfg.BackoffMax {
		return s.cfg.BackoffMax
	}
	return delay
}

// digestPeriod returns the bucket period containing now: the calendar day or
// the ISO week (Monday-start) in the given location.
func digestPeriod(freq Frequency, now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	if freq == FrequencyWeekly {
		weekday := int(midnight.Weekday())
		if weekday == 0 { // Sunday belongs to the week that started the previous Monday
			weekday = 7
		}
		start := midnight.AddDate(0, 0, -(weekday - 1))
		return start, start.AddDate(0, 0, 7)
	}

	return midnight, midnight.AddDate(0, 0, 1)
}

// DigestKeyFor builds the stable identity of a digest bucket.
func DigestKeyFor(userID, notificationType string, freq Frequency, periodStart time.Time) string {
	return strings.Join([]string{
		userID,
		notificationType,
		string(freq),
		periodStart.UTC().Format("20060102T150405Z"),
	}, "|")
}

// AppendToDigest places the instance into its (user, type, period) bucket,
// creating the bucket row on first use. The append runs under the bucket's
// lock so concurrent submissions accumulate without lost updates. The caller
// persists the instance afterwards.
func (s *Scheduler) AppendToDigest(ctx context.Context, n *models.Notification, decision Decision, now time.Time) (*models.DigestBucket, error) {
	loc := time.UTC
	if decision.Timezone != "" {
		if parsed, err := time.LoadLocation(decision.Timezone); err == nil {
			loc = parsed
		}
	}

	start, end := digestPeriod(decision.Frequency, now, loc)
	key := DigestKeyFor(n.UserID, n.Type, decision.Frequency, start)

	unlock := s.buckets.lock(key)
	defer unlock()

	var bucket models.DigestBucket
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&bucket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		bucket = models.DigestBucket{
			Key:              key,
			TenantID:         n.TenantID,
			UserID:           n.UserID,
			NotificationType: n.Type,
			Frequency:        string(decision.Frequency),
			PeriodStart:      start,
			PeriodEnd:        end,
			Status:           models.DigestPending,
		}
		err = s.db.WithContext(ctx).Create(&bucket).Error
		if database.IsUniqueViolation(err) {
			// Another replica won the insert; adopt its bucket.
			err = s.db.WithContext(ctx).Where("key = ?", key).First(&bucket).Error
		}
	}
	if err != nil {
		return nil, fmt.Errorf("scheduler: digest bucket %s: %w", key, err)
	}

	// The member row persists inside the bucket's critical section so a
	// flush cannot mark the bucket done between the append and the insert.
	if bucket.Status == models.DigestPending {
		dispatchAt := bucket.PeriodEnd
		n.DigestKey = key
		n.ScheduledFor = &dispatchAt
	} else {
		// An adopted bucket may have flushed already on another replica;
		// the instance dispatches on its own instead of waiting a period.
		n.DigestKey = ""
		dispatchAt := now
		n.ScheduledFor = &dispatchAt
	}
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, fmt.Errorf("scheduler: append digest member %s: %w", key, err)
	}
	return &bucket, nil
}

// DueBuckets returns pending buckets whose period has elapsed.
func (s *Scheduler) DueBuckets(ctx context.Context, now time.Time) ([]models.DigestBucket, error) {
	var buckets []models.DigestBucket
	err := s.db.WithContext(ctx).
		Where("status = ? AND period_end <= ?", models.DigestPending, now).
		Order("period_end ASC").
		Find(&buckets).Error
	if err != nil {
		return nil, fmt.Errorf("scheduler: due buckets: %w", err)
	}
	return buckets, nil
}

// BucketMembers returns the bucket's undispatched members in the order they
// must appear in the aggregated payload: ascending createdAt, ties by id.
func (s *Scheduler) BucketMembers(ctx context.Context, key string) ([]models.Notification, error) {
	var members []models.Notification
	err := s.db.WithContext(ctx).
		Where("digest_key = ? AND status = ?", key, string(StatusScheduled)).
		Order("created_at ASC, id ASC").
		Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("scheduler: bucket members %s: %w", key, err)
	}
	return members, nil
}

// lockBucket exposes per-bucket exclusion to the engine's flush path.
func (s *Scheduler) lockBucket(key string) func() {
	return s.buckets.lock(key)
}
