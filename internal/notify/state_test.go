package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darasahq/darasa/internal/models"
)

func TestLegalLifecyclePath(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	n := &models.Notification{Status: string(StatusPending)}

	require.NoError(t, Transition(n, StatusScheduled, now))
	require.NoError(t, Transition(n, StatusSent, now.Add(time.Minute)))
	require.NoError(t, Transition(n, StatusDelivered, now.Add(2*time.Minute)))
	require.NoError(t, Transition(n, StatusRead, now.Add(3*time.Minute)))

	assert.Equal(t, string(StatusRead), n.Status)
	require.NotNil(t, n.SentAt)
	require.NotNil(t, n.DeliveredAt)
	require.NotNil(t, n.ReadAt)
	assert.True(t, !n.DeliveredAt.Before(*n.SentAt))
	assert.True(t, !n.ReadAt.Before(*n.DeliveredAt))
}

func TestIllegalTransitionsRejected(t *testing.T) {
	now := time.Now()

	cases := []struct {
		from Status
		to   Status
	}{
		{StatusPending, StatusSent},
		{StatusPending, StatusDelivered},
		{StatusScheduled, StatusDelivered},
		{StatusScheduled, StatusRead},
		{StatusSent, StatusRead},
		{StatusSuppressed, StatusScheduled},
		{StatusRead, StatusDelivered},
		{StatusFailedFinal, StatusScheduled},
		{StatusDelivered, StatusSent},
	}

	for _, tc := range cases {
		n := &models.Notification{Status: string(tc.from)}
		err := Transition(n, tc.to, now)
		require.Error(t, err, "expected %s -> %s to fail", tc.from, tc.to)

		var invalid *InvalidTransitionError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, tc.from, invalid.From)
		assert.Equal(t, tc.to, invalid.To)
		assert.Equal(t, string(tc.from), n.Status, "state must not change on a rejected move")
	}
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, StatusSuppressed.Terminal())
	assert.True(t, StatusRead.Terminal())
	assert.True(t, StatusFailedFinal.Terminal())

	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusScheduled.Terminal())
	assert.False(t, StatusSent.Terminal())
	assert.False(t, StatusDelivered.Terminal())
	assert.False(t, StatusFailedRetrying.Terminal())
}

func TestDeliveredClampedToSentAt(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	n := &models.Notification{Status: string(StatusPending)}
	require.NoError(t, Transition(n, StatusScheduled, now))
	require.NoError(t, Transition(n, StatusSent, now))

	// Acknowledgment arriving with a clock slightly behind sentAt.
	require.NoError(t, Transition(n, StatusDelivered, now.Add(-time.Second)))
	assert.True(t, n.DeliveredAt.Equal(*n.SentAt))
}

func TestTransitionReadBeforeDelivered(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	n := &models.Notification{Status: string(StatusPending)}
	require.NoError(t, Transition(n, StatusScheduled, now))
	require.NoError(t, Transition(n, StatusSent, now))
	require.NoError(t, Transition(n, StatusDelivered, now.Add(time.Minute)))

	err := Transition(n, StatusRead, now)
	require.Error(t, err)

	var early *ReadBeforeDeliveredError
	assert.ErrorAs(t, err, &early)
	assert.Equal(t, string(StatusDelivered), n.Status)
}

func TestRetryCycleTransitions(t *testing.T) {
	now := time.Now()
	n := &models.Notification{Status: string(StatusSent), SentAt: &now}

	require.NoError(t, Transition(n, StatusFailedRetrying, now))
	require.NoError(t, Transition(n, StatusScheduled, now))
	assert.Equal(t, string(StatusScheduled), n.Status)

	// The next cycle's sent keeps the original sentAt stamp.
	require.NoError(t, Transition(n, StatusSent, now.Add(time.Minute)))
	assert.True(t, n.SentAt.Equal(now))
}
