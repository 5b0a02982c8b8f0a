package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/darasahq/darasa/internal/models"
	apperrors "github.com/darasahq/darasa/pkg/errors"
	"github.com/darasahq/darasa/pkg/logger"
	"github.com/darasahq/darasa/pkg/metrics"
)

// Clock abstracts time.Now for deterministic tests.
type Clock func() time.Time

// Transport outcome identifiers accepted by ReportOutcome.
const (
	OutcomeDelivered        = "delivered"
	OutcomeRetryableFailure = "retryable_failure"
	OutcomeFinalFailure     = "final_failure"
)

// SubmitInput describes a notification request from a producing subsystem.
type SubmitInput struct {
	UserID       string
	Type         string
	TemplateID   string
	TemplateType string
	Priority     string
	Channels     []string
	Subject      string
	Content      string
	ScheduledFor *time.Time
	Metadata     map[string]any
}

// Engine drives notification instances from submission through their terminal
// state. Each instance's transitions are independent; only digest bucket
// members move together, under the bucket's lock.
type Engine struct {
	db         *gorm.DB
	store      *Store
	resolver   *Resolver
	scheduler  *Scheduler
	transports map[Channel]Transport
	clock      Clock
	log        *zap.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// EngineOption customises the engine.
type EngineOption func(*Engine)

// WithClock overrides the engine clock, primarily for tests.
func WithClock(clock Clock) EngineOption {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithTransport registers a transport for its channel.
func WithTransport(t Transport) EngineOption {
	return func(e *Engine) {
		if t != nil {
			e.transports[t.Channel()] = t
		}
	}
}

// NewEngine constructs the delivery engine.
func NewEngine(db *gorm.DB, store *Store, resolver *Resolver, scheduler *Scheduler, opts ...EngineOption) (*Engine, error) {
	if db == nil {
		return nil, errors.New("engine: db is required")
	}
	if store == nil || resolver == nil || scheduler == nil {
		return nil, errors.New("engine: store, resolver and scheduler are required")
	}

	e := &Engine{
		db:         db,
		store:      store,
		resolver:   resolver,
		scheduler:  scheduler,
		transports: make(map[Channel]Transport),
		clock:      time.Now,
		log:        logger.WithModule("engine"),
		timers:     make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Start re-arms dispatch timers for instances left in scheduled by a previous
// process. Digest members are excluded; the sweep owns them.
func (e *Engine) Start(ctx context.Context) error {
	var pending []models.Notification
	err := e.db.WithContext(ctx).
		Where("status = ? AND digest_key = ''", string(StatusScheduled)).
		Find(&pending).Error
	if err != nil {
		return fmt.Errorf("engine: recover scheduled instances: %w", err)
	}

	now := e.clock()
	for _, n := range pending {
		at := now
		if n.ScheduledFor != nil {
			at = *n.ScheduledFor
		}
		e.armTimer(n.ID, at)
	}

	if len(pending) > 0 {
		e.log.Info("recovered scheduled instances", zap.Int("count", len(pending)))
	}
	return nil
}

// Close stops every pending dispatch timer. In-flight dispatches finish.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	for id, timer := range e.timers {
		timer.Stop()
		delete(e.timers, id)
		metrics.ScheduledInstances.Dec()
	}
}

// Submit evaluates eligibility and accepts the request for possible delivery.
// An instance is recorded even when immediately suppressed, so every decision
// is auditable through the history surface.
func (e *Engine) Submit(ctx context.Context, input SubmitInput) (*models.Notification, error) {
	notificationType := strings.TrimSpace(input.Type)
	if notificationType == "" {
		return nil, apperrors.NewBadRequest("notification type is required")
	}
	if strings.TrimSpace(input.UserID) == "" {
		return nil, apperrors.NewBadRequest("user id is required")
	}

	priority, err := ParsePriority(input.Priority)
	if err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}

	requested := make([]Channel, 0, len(input.Channels))
	for _, raw := range input.Channels {
		ch, err := ParseChannel(raw)
		if err != nil {
			return nil, apperrors.NewBadRequest(err.Error())
		}
		requested = append(requested, ch)
	}

	var user models.User
	if err := e.db.WithContext(ctx).Where("id = ?", input.UserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("engine: load recipient: %w", err)
	}

	now := e.clock()
	decision, err := e.resolver.Evaluate(ctx, Request{
		TenantID:         user.TenantID,
		UserID:           user.ID,
		NotificationType: notificationType,
		TemplateType:     input.TemplateType,
		Priority:         priority,
		Channels:         requested,
		ProfileTimezone:  user.Timezone,
	}, now)
	if err != nil {
		return nil, err
	}

	n := &models.Notification{
		TenantID:       user.TenantID,
		UserID:         user.ID,
		Type:           notificationType,
		TemplateID:     input.TemplateID,
		Priority:       string(priority),
		Status:         string(StatusPending),
		Subject:        input.Subject,
		Content:        input.Content,
		Channels:       channelsToStrings(decision.Channels),
		RecipientEmail: user.Email,
		RecipientPhone: user.Phone,
		PushToken:      user.PushToken,
		Timezone:       decision.Timezone,
	}
	if input.Metadata != nil {
		n.Metadata = datatypes.JSONMap(input.Metadata)
	}

	metrics.NotificationsSubmitted.WithLabelValues(notificationType, string(priority)).Inc()

	if !decision.ShouldSend {
		n.FailureReason = decision.Reason
		if err := Transition(n, StatusSuppressed, now); err != nil {
			return nil, e.wrapTransition(err)
		}
		if err := e.db.WithContext(ctx).Create(n).Error; err != nil {
			return nil, fmt.Errorf("engine: record suppressed instance: %w", err)
		}
		metrics.NotificationsSuppressed.WithLabelValues(notificationType, decision.Reason).Inc()
		return n, nil
	}

	if decision.Frequency != FrequencyImmediate {
		if err := Transition(n, StatusScheduled, now); err != nil {
			return nil, e.wrapTransition(err)
		}
		if _, err := e.scheduler.AppendToDigest(ctx, n, decision, now); err != nil {
			return nil, err
		}
		if n.DigestKey == "" {
			// The bucket flushed mid-append; this instance rides alone.
			e.armTimer(n.ID, *n.ScheduledFor)
		}
		return n, nil
	}

	at := e.scheduler.DispatchTime(decision, input.ScheduledFor, now)
	n.ScheduledFor = &at
	if err := Transition(n, StatusScheduled, now); err != nil {
		return nil, e.wrapTransition(err)
	}
	if err := e.db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, fmt.Errorf("engine: record scheduled instance: %w", err)
	}

	e.armTimer(n.ID, at)
	return n, nil
}

// ReportOutcome applies a transport acknowledgment to an instance.
func (e *Engine) ReportOutcome(ctx context.Context, instanceID, outcome, detail string) (*models.Notification, error) {
	n, err := e.loadInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	now := e.clock()
	switch strings.ToLower(strings.TrimSpace(outcome)) {
	case OutcomeDelivered:
		if err := Transition(n, StatusDelivered, now); err != nil {
			return nil, e.wrapTransition(err)
		}
		if err := e.save(ctx, n); err != nil {
			return nil, err
		}
	case OutcomeRetryableFailure:
		if err := e.retryOrFail(ctx, n, detail, true); err != nil {
			return nil, err
		}
	case OutcomeFinalFailure:
		if err := e.retryOrFail(ctx, n, detail, false); err != nil {
			return nil, err
		}
	default:
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown outcome %q", outcome))
	}

	return n, nil
}

// ReportRead applies a recipient read receipt. A zero timestamp means "now".
func (e *Engine) ReportRead(ctx context.Context, instanceID string, at time.Time) (*models.Notification, error) {
	n, err := e.loadInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	if at.IsZero() {
		at = e.clock()
	}
	if err := Transition(n, StatusRead, at); err != nil {
		return nil, e.wrapTransition(err)
	}
	if err := e.save(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// Cancel intercepts an instance before transport hand-off and suppresses it.
// Instances already sent cannot be cancelled; their fate belongs to the
// transport outcome.
func (e *Engine) Cancel(ctx context.Context, instanceID, reason string) (*models.Notification, error) {
	n, err := e.loadInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	e.stopTimer(instanceID)

	if reason == "" {
		reason = "cancelled"
	}
	n.FailureReason = reason
	if err := Transition(n, StatusSuppressed, e.clock()); err != nil {
		return nil, e.wrapTransition(err)
	}
	if err := e.save(ctx, n); err != nil {
		return nil, err
	}
	metrics.NotificationsSuppressed.WithLabelValues(n.Type, reason).Inc()
	return n, nil
}

// FlushDueDigests dispatches every digest bucket whose period has elapsed.
// Per-bucket failures are aggregated; one bad bucket never blocks the rest.
func (e *Engine) FlushDueDigests(ctx context.Context, now time.Time) error {
	buckets, err := e.scheduler.DueBuckets(ctx, now)
	if err != nil {
		return err
	}

	var errs error
	for _, bucket := range buckets {
		if err := e.flushBucket(ctx, bucket, now); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("bucket %s: %w", bucket.Key, err))
			metrics.DigestFlushes.WithLabelValues(bucket.Frequency, "error").Inc()
			continue
		}
		metrics.DigestFlushes.WithLabelValues(bucket.Frequency, "success").Inc()
	}
	return errs
}

// flushBucket moves every member to sent in one atomic statement, marks the
// bucket flushed and hands the aggregated payload to the transport once.
func (e *Engine) flushBucket(ctx context.Context, bucket models.DigestBucket, now time.Time) error {
	unlock := e.scheduler.lockBucket(bucket.Key)
	defer unlock()

	members, err := e.scheduler.BucketMembers(ctx, bucket.Key)
	if err != nil {
		return err
	}

	flushedAt := now
	if len(members) == 0 {
		return e.db.WithContext(ctx).Model(&models.DigestBucket{}).
			Where("key = ?", bucket.Key).
			Updates(map[string]any{"status": models.DigestFlushed, "flushed_at": flushedAt}).Error
	}

	head := members[0]
	channel := e.chooseChannel(&head)
	if channel == "" {
		return e.failBucket(ctx, bucket, members, now, "no usable transport for allowed channels")
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Notification{}).
			Where("digest_key = ? AND status = ?", bucket.Key, string(StatusScheduled)).
			Updates(map[string]any{"status": string(StatusSent), "sent_at": now, "channel": string(channel)})
		if res.Error != nil {
			return res.Error
		}
		return tx.Model(&models.DigestBucket{}).
			Where("key = ?", bucket.Key).
			Updates(map[string]any{"status": models.DigestFlushed, "flushed_at": flushedAt}).Error
	})
	if err != nil {
		return fmt.Errorf("mark bucket sent: %w", err)
	}

	items := make([]DigestItem, len(members))
	for i, m := range members {
		items[i] = DigestItem{
			InstanceID: m.ID,
			Subject:    m.Subject,
			Content:    m.Content,
			CreatedAt:  m.CreatedAt,
		}
	}

	delivery := Delivery{
		InstanceID: head.ID,
		TenantID:   head.TenantID,
		UserID:     head.UserID,
		Type:       head.Type,
		Channel:    channel,
		Priority:   Priority(head.Priority),
		Subject:    fmt.Sprintf("%d new notifications", len(items)),
		Content:    head.Content,
		To:         e.addressFor(&head, channel),
		Batch:      items,
	}

	if err := e.transports[channel].Send(ctx, delivery); err != nil {
		// A failed digest dispatch degrades to individual retries: each
		// member leaves its bucket and re-enters the retry cycle alone.
		for i := range members {
			members[i].Status = string(StatusSent)
			sentAt := now
			members[i].SentAt = &sentAt
			members[i].DigestKey = ""
			if ferr := e.handleSendFailure(ctx, &members[i], err); ferr != nil {
				e.log.Error("digest fallback failed", zap.String("instance_id", members[i].ID), zap.Error(ferr))
			}
		}
		metrics.NotificationsDispatched.WithLabelValues(string(channel), "error").Inc()
		return nil
	}

	metrics.NotificationsDispatched.WithLabelValues(string(channel), "success").Inc()
	return nil
}

func (e *Engine) failBucket(ctx context.Context, bucket models.DigestBucket, members []models.Notification, now time.Time, reason string) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Notification{}).
			Where("digest_key = ? AND status = ?", bucket.Key, string(StatusScheduled)).
			Updates(map[string]any{
				"status":         string(StatusSuppressed),
				"failure_reason": reason,
			})
		if res.Error != nil {
			return res.Error
		}
		return tx.Model(&models.DigestBucket{}).
			Where("key = ?", bucket.Key).
			Updates(map[string]any{"status": models.DigestFlushed, "flushed_at": now}).Error
	})
}

// dispatch fires when an instance's timer elapses. The scheduled → sent move
// is guarded by a conditional update so each attempt hands off exactly once.
func (e *Engine) dispatch(instanceID string) {
	e.mu.Lock()
	if _, ok := e.timers[instanceID]; ok {
		delete(e.timers, instanceID)
		metrics.ScheduledInstances.Dec()
	}
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return
	}

	ctx := context.Background()
	n, err := e.loadInstance(ctx, instanceID)
	if err != nil {
		e.log.Error("dispatch: load instance", zap.String("instance_id", instanceID), zap.Error(err))
		return
	}
	if Status(n.Status) != StatusScheduled {
		return // cancelled or already handled
	}

	now := e.clock()
	channel := e.chooseChannel(n)
	if channel == "" {
		if err := Transition(n, StatusSent, now); err == nil {
			n.FailureReason = "no usable transport for allowed channels"
			_ = Transition(n, StatusFailedFinal, now)
			if err := e.save(ctx, n); err != nil {
				e.log.Error("dispatch: persist failure", zap.String("instance_id", n.ID), zap.Error(err))
			}
		}
		return
	}

	res := e.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND status = ?", n.ID, string(StatusScheduled)).
		Updates(map[string]any{
			"status":  string(StatusSent),
			"sent_at": now,
			"channel": string(channel),
		})
	if res.Error != nil {
		e.log.Error("dispatch: mark sent", zap.String("instance_id", n.ID), zap.Error(res.Error))
		return
	}
	if res.RowsAffected == 0 {
		return // lost the race to a concurrent cancel or dispatch
	}
	n.Status = string(StatusSent)
	sentAt := now
	n.SentAt = &sentAt
	n.Channel = string(channel)

	delivery := Delivery{
		InstanceID: n.ID,
		TenantID:   n.TenantID,
		UserID:     n.UserID,
		Type:       n.Type,
		Channel:    channel,
		Priority:   Priority(n.Priority),
		Subject:    n.Subject,
		Content:    n.Content,
		To:         e.addressFor(n, channel),
		Metadata:   n.Metadata,
	}

	if err := e.transports[channel].Send(context.Background(), delivery); err != nil {
		metrics.NotificationsDispatched.WithLabelValues(string(channel), "error").Inc()
		if ferr := e.handleSendFailure(ctx, n, err); ferr != nil {
			e.log.Error("dispatch: handle failure", zap.String("instance_id", n.ID), zap.Error(ferr))
		}
		return
	}
	metrics.NotificationsDispatched.WithLabelValues(string(channel), "success").Inc()
}

// handleSendFailure classifies a transport error and either schedules a retry
// or finalises the failure.
func (e *Engine) handleSendFailure(ctx context.Context, n *models.Notification, sendErr error) error {
	if isRetryable(sendErr) {
		return e.retryOrFail(ctx, n, sendErr.Error(), true)
	}
	return e.retryOrFail(ctx, n, sendErr.Error(), false)
}

// retryOrFail advances a failed sent instance: back to scheduled with backoff
// while attempts remain, failed_final otherwise. retryCount only ever grows.
func (e *Engine) retryOrFail(ctx context.Context, n *models.Notification, reason string, retryable bool) error {
	now := e.clock()

	if !retryable || n.RetryCount >= e.scheduler.MaxAttempts() {
		n.FailureReason = reason
		if retryable {
			n.FailureReason = fmt.Sprintf("retry limit reached (%d attempts): %s", e.scheduler.MaxAttempts(), reason)
		}
		if err := Transition(n, StatusFailedFinal, now); err != nil {
			return e.wrapTransition(err)
		}
		return e.save(ctx, n)
	}

	if err := Transition(n, StatusFailedRetrying, now); err != nil {
		return e.wrapTransition(err)
	}
	n.RetryCount++
	n.FailureReason = reason

	delay := e.scheduler.RetryDelay(n.RetryCount)
	at := now.Add(delay)
	n.ScheduledFor = &at
	if err := Transition(n, StatusScheduled, now); err != nil {
		return e.wrapTransition(err)
	}
	if err := e.save(ctx, n); err != nil {
		return err
	}

	metrics.NotificationRetries.Inc()
	e.armTimer(n.ID, at)
	return nil
}

// chooseChannel picks the first allowed channel with a registered transport
// and, where the medium needs one, a recipient address.
func (e *Engine) chooseChannel(n *models.Notification) Channel {
	for _, ch := range channelsFromStrings(n.Channels) {
		if _, ok := e.transports[ch]; !ok {
			continue
		}
		switch ch {
		case ChannelEmail:
			if n.RecipientEmail == "" {
				continue
			}
		case ChannelSMS:
			if n.RecipientPhone == "" {
				continue
			}
		case ChannelPush:
			if n.PushToken == "" {
				continue
			}
		}
		return ch
	}
	return ""
}

func (e *Engine) addressFor(n *models.Notification, ch Channel) string {
	switch ch {
	case ChannelEmail:
		return n.RecipientEmail
	case ChannelSMS:
		return n.RecipientPhone
	case ChannelPush:
		return n.PushToken
	default:
		return ""
	}
}

func (e *Engine) armTimer(instanceID string, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	if existing, ok := e.timers[instanceID]; ok {
		existing.Stop()
		metrics.ScheduledInstances.Dec()
	}

	delay := at.Sub(e.clock())
	if delay < 0 {
		delay = 0
	}
	e.timers[instanceID] = time.AfterFunc(delay, func() {
		e.dispatch(instanceID)
	})
	metrics.ScheduledInstances.Inc()
}

func (e *Engine) stopTimer(instanceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if timer, ok := e.timers[instanceID]; ok {
		timer.Stop()
		delete(e.timers, instanceID)
		metrics.ScheduledInstances.Dec()
	}
}

// DispatchNow forces an immediate dispatch attempt for a scheduled instance,
// bypassing its timer. Used by tests and administrative tooling.
func (e *Engine) DispatchNow(instanceID string) {
	e.stopTimer(instanceID)
	e.dispatch(instanceID)
}

func (e *Engine) loadInstance(ctx context.Context, instanceID string) (*models.Notification, error) {
	instanceID = strings.TrimSpace(instanceID)
	if instanceID == "" {
		return nil, apperrors.NewBadRequest("instance id is required")
	}

	var n models.Notification
	if err := e.db.WithContext(ctx).Where("id = ?", instanceID).First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("engine: load instance: %w", err)
	}
	return &n, nil
}

func (e *Engine) save(ctx context.Context, n *models.Notification) error {
	if err := e.db.WithContext(ctx).Save(n).Error; err != nil {
		return fmt.Errorf("engine: persist instance %s: %w", n.ID, err)
	}
	return nil
}

func (e *Engine) wrapTransition(err error) error {
	var invalid *InvalidTransitionError
	if errors.As(err, &invalid) {
		if invalid.From.Terminal() {
			return apperrors.ErrAlreadyTerminal.WithInternal(err)
		}
		return apperrors.ErrInvalidTransition.WithInternal(err)
	}
	var early *ReadBeforeDeliveredError
	if errors.As(err, &early) {
		return apperrors.NewBadRequest(err.Error())
	}
	return err
}
