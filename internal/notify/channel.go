package notify

import (
	"fmt"
	"strings"
)

// Channel identifies a delivery medium.
type Channel string

// Supported delivery channels.
const (
	ChannelPush      Channel = "push"
	ChannelEmail     Channel = "email"
	ChannelSMS       Channel = "sms"
	ChannelInApp     Channel = "in_app"
	ChannelWebsocket Channel = "websocket"
)

// dispatchOrder fixes the preferred-channel ordering handed to callers so the
// first allowed channel is always the same for identical inputs.
var dispatchOrder = []Channel{ChannelPush, ChannelEmail, ChannelSMS, ChannelInApp, ChannelWebsocket}

// AllChannels returns every supported channel in dispatch order.
func AllChannels() []Channel {
	out := make([]Channel, len(dispatchOrder))
	copy(out, dispatchOrder)
	return out
}

// ParseChannel normalises a channel string.
func ParseChannel(value string) (Channel, error) {
	ch := Channel(strings.ToLower(strings.TrimSpace(value)))
	switch ch {
	case ChannelPush, ChannelEmail, ChannelSMS, ChannelInApp, ChannelWebsocket:
		return ch, nil
	default:
		return "", fmt.Errorf("unknown channel %q", value)
	}
}

// Priority orders notifications for quiet-hours handling.
type Priority string

// Notification priorities.
const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority normalises a priority string, defaulting empty input to normal.
func ParsePriority(value string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(value)))
	switch p {
	case "":
		return PriorityNormal, nil
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return p, nil
	default:
		return "", fmt.Errorf("unknown priority %q", value)
	}
}

// Frequency controls immediate versus digest delivery.
type Frequency string

// Delivery frequencies.
const (
	FrequencyImmediate   Frequency = "immediate"
	FrequencyDailyDigest Frequency = "daily_digest"
	FrequencyWeekly      Frequency = "weekly_digest"
)

// ParseFrequency normalises a frequency string, defaulting empty input to immediate.
func ParseFrequency(value string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(value)))
	switch f {
	case "":
		return FrequencyImmediate, nil
	case FrequencyImmediate, FrequencyDailyDigest, FrequencyWeekly:
		return f, nil
	default:
		return "", fmt.Errorf("unknown frequency %q", value)
	}
}

// Notification types produced across the platform.
const (
	TypeAnnouncement         = "announcement"
	TypeAssignmentDue        = "assignment.due"
	TypeGradePosted          = "grade.posted"
	TypeAttendanceAlert      = "attendance.alert"
	TypeBillingInvoice       = "billing.invoice"
	TypeBillingPaymentFailed = "billing.payment_failed"
	TypeScheduleChange       = "class.schedule_change"
	TypeEnrollment           = "enrollment"
	TypeSystem               = "system"
)

// typeChannels restricts which channels each notification type may use.
// Types not listed here accept every channel.
var typeChannels = map[string][]Channel{
	TypeAssignmentDue:        {ChannelPush, ChannelEmail, ChannelInApp, ChannelWebsocket},
	TypeGradePosted:          {ChannelPush, ChannelEmail, ChannelInApp, ChannelWebsocket},
	TypeBillingInvoice:       {ChannelEmail, ChannelSMS, ChannelInApp},
	TypeBillingPaymentFailed: {ChannelEmail, ChannelSMS, ChannelInApp},
	TypeEnrollment:           {ChannelEmail, ChannelInApp},
	TypeSystem:               {ChannelEmail, ChannelInApp, ChannelWebsocket},
}

// ValidChannels returns the channels permitted for the notification type, in
// dispatch order. Unknown types fall back to all channels.
func ValidChannels(notificationType string) []Channel {
	if channels, ok := typeChannels[strings.TrimSpace(notificationType)]; ok {
		out := make([]Channel, len(channels))
		copy(out, channels)
		return out
	}
	return AllChannels()
}

// IsValidChannel reports whether the channel may carry the notification type.
func IsValidChannel(notificationType string, ch Channel) bool {
	for _, valid := range ValidChannels(notificationType) {
		if valid == ch {
			return true
		}
	}
	return false
}

// sortByDispatchOrder returns the subset of dispatchOrder present in chs,
// dropping duplicates.
func sortByDispatchOrder(chs []Channel) []Channel {
	present := make(map[Channel]struct{}, len(chs))
	for _, ch := range chs {
		present[ch] = struct{}{}
	}

	var out []Channel
	for _, ch := range dispatchOrder {
		if _, ok := present[ch]; ok {
			out = append(out, ch)
		}
	}
	return out
}

func channelsToStrings(chs []Channel) []string {
	out := make([]string, len(chs))
	for i, ch := range chs {
		out[i] = string(ch)
	}
	return out
}

func channelsFromStrings(values []string) []Channel {
	out := make([]Channel, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		out = append(out, Channel(v))
	}
	return out
}
