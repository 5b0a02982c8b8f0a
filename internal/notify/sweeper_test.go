package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeperRunOnceFlushesDueBuckets(t *testing.T) {
	h := newEngineHarness(t, SchedulerConfig{})
	submitDigestPreference(t, h, FrequencyDailyDigest)

	h.submit(t, SubmitInput{Type: TypeGradePosted, Content: "swept"})

	sweepAt := time.Date(2026, 3, 11, 0, 0, 30, 0, time.UTC)
	sweeper, err := NewSweeper(h.engine, WithNow(func() time.Time { return sweepAt }))
	require.NoError(t, err)

	require.NoError(t, sweeper.RunOnce(context.Background()))

	deliveries := h.email.sent()
	require.Len(t, deliveries, 1)
	require.Len(t, deliveries[0].Batch, 1)
	assert.Equal(t, "swept", deliveries[0].Batch[0].Content)
}

func TestSweeperRunOnceBeforeDueIsNoop(t *testing.T) {
	h := newEngineHarness(t, SchedulerConfig{})
	submitDigestPreference(t, h, FrequencyDailyDigest)

	h.submit(t, SubmitInput{Type: TypeGradePosted, Content: "too early"})

	sweeper, err := NewSweeper(h.engine, WithNow(func() time.Time { return h.now }))
	require.NoError(t, err)

	require.NoError(t, sweeper.RunOnce(context.Background()))
	assert.Empty(t, h.email.sent())
}

func TestSweeperRequiresEngine(t *testing.T) {
	_, err := NewSweeper(nil)
	require.Error(t, err)
}

func TestSweeperStartStop(t *testing.T) {
	h := newEngineHarness(t, SchedulerConfig{})

	sweeper, err := NewSweeper(h.engine, WithSweepSchedule("@every 1h"))
	require.NoError(t, err)

	require.NoError(t, sweeper.Start())
	<-sweeper.Stop().Done()
}
