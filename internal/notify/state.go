package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/darasahq/darasa/internal/models"
)

// Status tracks a notification instance through its delivery lifecycle.
type Status string

// Lifecycle states.
const (
	StatusPending        Status = "pending"
	StatusSuppressed     Status = "suppressed"
	StatusScheduled      Status = "scheduled"
	StatusSent           Status = "sent"
	StatusDelivered      Status = "delivered"
	StatusRead           Status = "read"
	StatusFailedRetrying Status = "failed_retrying"
	StatusFailedFinal    Status = "failed_final"
)

// transitions enumerates every legal move; anything absent is rejected.
var transitions = map[Status][]Status{
	StatusPending:        {StatusSuppressed, StatusScheduled},
	StatusScheduled:      {StatusSent, StatusSuppressed},
	StatusSent:           {StatusDelivered, StatusFailedRetrying, StatusFailedFinal},
	StatusFailedRetrying: {StatusScheduled, StatusFailedFinal},
	StatusDelivered:      {StatusRead},
}

// ParseStatus normalises a lifecycle status string.
func ParseStatus(value string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(value)))
	switch s {
	case StatusPending, StatusSuppressed, StatusScheduled, StatusSent,
		StatusDelivered, StatusRead, StatusFailedRetrying, StatusFailedFinal:
		return s, nil
	default:
		return "", fmt.Errorf("unknown status %q", value)
	}
}

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuppressed, StatusRead, StatusFailedFinal:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to target is a legal move.
func (s Status) CanTransition(target Status) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// InvalidTransitionError names the current and attempted states of a rejected move.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %q to %q", e.From, e.To)
}

// ReadBeforeDeliveredError rejects read receipts that predate delivery.
type ReadBeforeDeliveredError struct {
	ReadAt      time.Time
	DeliveredAt time.Time
}

func (e *ReadBeforeDeliveredError) Error() string {
	return fmt.Sprintf("read receipt at %s predates delivery at %s",
		e.ReadAt.Format(time.RFC3339), e.DeliveredAt.Format(time.RFC3339))
}

// Transition validates and applies a state change, stamping the lifecycle
// timestamp belonging to the target state. Timestamps are set exactly once
// and kept monotonic: a delivery acknowledgment arriving with a clock behind
// sentAt is clamped, while a read receipt before deliveredAt is an error
// (it comes from an external caller and indicates bad input).
func Transition(n *models.Notification, target Status, at time.Time) error {
	current := Status(n.Status)
	if !current.CanTransition(target) {
		return &InvalidTransitionError{From: current, To: target}
	}

	switch target {
	case StatusSent:
		if n.SentAt == nil {
			stamped := at
			n.SentAt = &stamped
		}
	case StatusDelivered:
		if n.SentAt != nil && at.Before(*n.SentAt) {
			at = *n.SentAt
		}
		if n.DeliveredAt == nil {
			stamped := at
			n.DeliveredAt = &stamped
		}
	case StatusRead:
		if n.DeliveredAt != nil && at.Before(*n.DeliveredAt) {
			return &ReadBeforeDeliveredError{ReadAt: at, DeliveredAt: *n.DeliveredAt}
		}
		if n.ReadAt == nil {
			stamped := at
			n.ReadAt = &stamped
		}
	}

	n.Status = string(target)
	return nil
}
