package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/darasahq/darasa/internal/models"
	"github.com/darasahq/darasa/pkg/logger"
)

// Suppression and deferral reasons surfaced on decisions and instances.
const (
	ReasonDisabled   = "disabled by user preference"
	ReasonNoChannel  = "no allowed channel for this notification"
	ReasonQuietHours = "deferred: quiet hours"
)

// Request describes one evaluation of a pending notification.
type Request struct {
	TenantID         string
	UserID           string
	NotificationType string
	TemplateType     string
	Priority         Priority
	Channels         []Channel // requested; empty means any channel the preference allows
	ProfileTimezone  string    // recipient's profile zone, used when the preference has none
}

// Decision is the outcome of an eligibility evaluation. It is derived state,
// computed fresh per request and never cached across preference changes.
type Decision struct {
	ShouldSend bool
	Channels   []Channel // allowed, in dispatch order
	Reason     string
	Deferred   bool
	DeferUntil time.Time
	Frequency  Frequency
	Timezone   string // IANA zone captured at decision time

	Preference *models.NotificationPreference
}

// Resolver computes eligibility decisions from the preference store. Evaluate
// is pure given its snapshot of preference data and the supplied clock; it
// performs no writes.
type Resolver struct {
	store       *Store
	defaultZone *time.Location
	log         *zap.Logger
}

// NewResolver constructs a Resolver. defaultZone is the process-wide fallback
// applied when a preference has no timezone or names an unknown one.
func NewResolver(store *Store, defaultZone string) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("eligibility resolver: preference store is required")
	}

	zone := time.UTC
	if name := strings.TrimSpace(defaultZone); name != "" {
		loc, err := time.LoadLocation(name)
		if err != nil {
			return nil, fmt.Errorf("eligibility resolver: default timezone %q: %w", name, err)
		}
		zone = loc
	}

	return &Resolver{
		store:       store,
		defaultZone: zone,
		log:         logger.WithModule("eligibility"),
	}, nil
}

// Evaluate decides whether a notification should be sent, over which channels,
// and whether dispatch is deferred across a quiet-hours window.
func (r *Resolver) Evaluate(ctx context.Context, req Request, now time.Time) (Decision, error) {
	pref, err := r.store.Resolve(ctx, PreferenceKey{
		TenantID:         req.TenantID,
		UserID:           req.UserID,
		NotificationType: req.NotificationType,
		TemplateType:     req.TemplateType,
	})
	if err != nil {
		return Decision{}, err
	}

	zone := pref.Timezone
	if strings.TrimSpace(zone) == "" {
		zone = req.ProfileTimezone
	}
	loc, zoneName := r.location(zone)
	decision := Decision{
		Frequency:  FrequencyImmediate,
		Timezone:   zoneName,
		Preference: pref,
	}
	if freq, err := ParseFrequency(pref.Frequency); err == nil {
		decision.Frequency = freq
	}

	if !pref.IsEnabled {
		decision.Reason = ReasonDisabled
		return decision, nil
	}

	allowed := intersectChannels(req.Channels, channelsFromStrings(pref.Channels))
	if len(allowed) == 0 {
		decision.Reason = ReasonNoChannel
		return decision, nil
	}

	decision.ShouldSend = true
	decision.Channels = allowed

	window, ok := parseQuietWindow(pref.QuietHoursStart, pref.QuietHoursEnd)
	if ok && req.Priority != PriorityUrgent {
		local := now.In(loc)
		if window.contains(local.Hour()*60 + local.Minute()) {
			decision.Deferred = true
			decision.DeferUntil = window.nextEnd(now, loc)
			decision.Reason = ReasonQuietHours
		}
	}

	return decision, nil
}

// location resolves a zone name with the process-wide fallback. Unknown zones
// are logged and fall back, never fail the evaluation.
func (r *Resolver) location(zone string) (*time.Location, string) {
	zone = strings.TrimSpace(zone)
	if zone == "" {
		return r.defaultZone, r.defaultZone.String()
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		r.log.Warn("unknown timezone, using default",
			zap.String("zone", zone),
			zap.String("default", r.defaultZone.String()),
		)
		return r.defaultZone, r.defaultZone.String()
	}
	return loc, zone
}

// intersectChannels returns requested ∩ allowed in dispatch order. An empty
// request means the caller takes whatever the preference allows.
func intersectChannels(requested, allowed []Channel) []Channel {
	if len(requested) == 0 {
		return sortByDispatchOrder(allowed)
	}

	allowedSet := make(map[Channel]struct{}, len(allowed))
	for _, ch := range allowed {
		allowedSet[ch] = struct{}{}
	}

	var out []Channel
	for _, ch := range requested {
		if _, ok := allowedSet[ch]; ok {
			out = append(out, ch)
		}
	}
	return sortByDispatchOrder(out)
}

// quietWindow is a local-time window in minutes of day. start > end means the
// window wraps midnight (22:00-08:00).
type quietWindow struct {
	start int
	end   int
}

// parseQuietWindow returns the window and whether one is configured. Equal
// boundaries mean no window.
func parseQuietWindow(startStr, endStr string) (quietWindow, bool) {
	if startStr == "" || endStr == "" {
		return quietWindow{}, false
	}
	start, err := parseClock(startStr)
	if err != nil {
		return quietWindow{}, false
	}
	end, err := parseClock(endStr)
	if err != nil {
		return quietWindow{}, false
	}
	if start == end {
		return quietWindow{}, false
	}
	return quietWindow{start: start, end: end}, true
}

// contains tests window membership for a minute-of-day, handling both the
// non-wrapping (start <= t < end) and wrapping (t >= start OR t < end) cases.
func (w quietWindow) contains(minute int) bool {
	if w.start < w.end {
		return minute >= w.start && minute < w.end
	}
	return minute >= w.start || minute < w.end
}

// nextEnd returns the next instant at which the window's end boundary occurs
// in the given location, strictly after now.
func (w quietWindow) nextEnd(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	end := time.Date(local.Year(), local.Month(), local.Day(), w.end/60, w.end%60, 0, 0, loc)
	if !end.After(local) {
		end = end.AddDate(0, 0, 1)
	}
	return end
}

// parseClock parses "HH:MM" into minutes of day.
func parseClock(value string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q, expected HH:MM", value)
	}
	return t.Hour()*60 + t.Minute(), nil
}
