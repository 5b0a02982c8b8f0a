package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/darasahq/darasa/internal/realtime"
	"github.com/darasahq/darasa/pkg/logger"
	"github.com/darasahq/darasa/pkg/mail"
)

// DigestItem is one member of an aggregated digest delivery, in dispatch order.
type DigestItem struct {
	InstanceID string    `json:"instance_id"`
	Subject    string    `json:"subject,omitempty"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// Delivery is the dispatch-ready event handed to a transport when an instance
// (or digest bucket) crosses scheduled → sent.
type Delivery struct {
	InstanceID string         `json:"instance_id"`
	TenantID   string         `json:"tenant_id"`
	UserID     string         `json:"user_id"`
	Type       string         `json:"type"`
	Channel    Channel        `json:"channel"`
	Priority   Priority       `json:"priority"`
	Subject    string         `json:"subject,omitempty"`
	Content    string         `json:"content"`
	To         string         `json:"to,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Batch      []DigestItem   `json:"batch,omitempty"` // non-empty for digest dispatches
}

// Transport hands a delivery to an external medium. Implementations classify
// their failures through TransportError; a plain error counts as retryable.
type Transport interface {
	Channel() Channel
	Send(ctx context.Context, d Delivery) error
}

// TransportError carries the retryability classification of a failed send.
type TransportError struct {
	Retryable bool
	Err       error
}

func (e *TransportError) Error() string {
	kind := "final"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("transport failure (%s): %v", kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RetryableFailure wraps an error as a retryable transport failure.
func RetryableFailure(err error) error {
	return &TransportError{Retryable: true, Err: err}
}

// FinalFailure wraps an error as a non-retryable transport failure.
func FinalFailure(err error) error {
	return &TransportError{Retryable: false, Err: err}
}

// isRetryable classifies an error from a transport. Unclassified errors are
// treated as retryable; only an explicit final classification short-circuits
// the retry cycle.
func isRetryable(err error) bool {
	var terr *TransportError
	if errors.As(err, &terr) {
		return terr.Retryable
	}
	return true
}

// EmailTransport delivers over SMTP via the shared mailer.
type EmailTransport struct {
	mailer mail.Mailer
	from   string
}

// NewEmailTransport constructs the email transport.
func NewEmailTransport(mailer mail.Mailer, from string) (*EmailTransport, error) {
	if mailer == nil {
		return nil, errors.New("email transport: mailer is required")
	}
	return &EmailTransport{mailer: mailer, from: from}, nil
}

func (t *EmailTransport) Channel() Channel { return ChannelEmail }

func (t *EmailTransport) Send(ctx context.Context, d Delivery) error {
	if strings.TrimSpace(d.To) == "" {
		return FinalFailure(errors.New("recipient has no email address"))
	}

	body := d.Content
	if len(d.Batch) > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "You have %d notifications:\n\n", len(d.Batch))
		for _, item := range d.Batch {
			fmt.Fprintf(&b, "- %s\n", item.Content)
		}
		body = b.String()
	}

	err := t.mailer.Send(ctx, mail.Message{
		From:    t.from,
		To:      []string{d.To},
		Subject: d.Subject,
		Body:    body,
	})
	if err != nil {
		if errors.Is(err, mail.ErrSMTPDisabled) {
			return FinalFailure(err)
		}
		return RetryableFailure(err)
	}
	return nil
}

// HubTransport delivers in_app and websocket notifications to the recipient's
// live connections. The instance row itself is the durable in-app record, so
// a recipient with no open connection is still a successful hand-off.
type HubTransport struct {
	hub     *realtime.Hub
	channel Channel
}

// NewHubTransport constructs a hub-backed transport for in_app or websocket.
func NewHubTransport(hub *realtime.Hub, channel Channel) (*HubTransport, error) {
	if hub == nil {
		return nil, errors.New("hub transport: hub is required")
	}
	if channel != ChannelInApp && channel != ChannelWebsocket {
		return nil, fmt.Errorf("hub transport: unsupported channel %q", channel)
	}
	return &HubTransport{hub: hub, channel: channel}, nil
}

func (t *HubTransport) Channel() Channel { return t.channel }

func (t *HubTransport) Send(ctx context.Context, d Delivery) error {
	event := realtime.EventDispatched
	if len(d.Batch) > 0 {
		event = realtime.EventDigest
	}
	t.hub.BroadcastToUser(d.UserID, realtime.Message{Event: event, Data: d})
	return nil
}

// LogTransport is a development adapter for channels whose gateway integration
// lives outside this service (SMS, push). It records the hand-off and succeeds.
type LogTransport struct {
	channel Channel
	log     *zap.Logger
}

// NewLogTransport constructs a logging transport for the channel.
func NewLogTransport(channel Channel) *LogTransport {
	return &LogTransport{
		channel: channel,
		log:     logger.WithModule("transport." + string(channel)),
	}
}

func (t *LogTransport) Channel() Channel { return t.channel }

func (t *LogTransport) Send(ctx context.Context, d Delivery) error {
	t.log.Info("dispatch",
		zap.String("instance_id", d.InstanceID),
		zap.String("user_id", d.UserID),
		zap.String("type", d.Type),
		zap.String("to", d.To),
		zap.Int("batch_size", len(d.Batch)),
	)
	return nil
}
