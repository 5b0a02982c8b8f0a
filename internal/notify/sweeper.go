package notify

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/darasahq/darasa/pkg/logger"
)

const defaultSweepSpec = "@every 1m"

// Sweeper periodically flushes elapsed digest buckets. The engine owns the
// dispatch semantics; the sweeper only provides the scheduling trigger.
type Sweeper struct {
	engine *Engine
	cron   *cron.Cron
	spec   string
	now    func() time.Time
	log    *zap.Logger
}

// SweeperOption customises the Sweeper.
type SweeperOption func(*Sweeper)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) SweeperOption {
	return func(s *Sweeper) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock used when collecting due buckets.
func WithNow(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSweepSchedule overrides the cron specification for the digest sweep.
func WithSweepSchedule(spec string) SweeperOption {
	return func(s *Sweeper) {
		if spec != "" {
			s.spec = spec
		}
	}
}

// NewSweeper constructs a Sweeper with sensible defaults.
func NewSweeper(engine *Engine, opts ...SweeperOption) (*Sweeper, error) {
	if engine == nil {
		return nil, errors.New("sweeper: engine is required")
	}

	s := &Sweeper{
		engine: engine,
		spec:   defaultSweepSpec,
		now:    time.Now,
		log:    logger.WithModule("sweeper"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cron == nil {
		s.cron = cron.New()
	}
	return s, nil
}

// Start registers the sweep job and starts the scheduler.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		if err := s.RunOnce(context.Background()); err != nil {
			s.log.Error("digest sweep", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info("digest sweeper started", zap.String("schedule", s.spec))
	return nil
}

// Stop halts the scheduler and returns a context that closes once running
// jobs complete.
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce flushes every currently due bucket. Exposed for tests and for
// administrative triggers.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	return s.engine.FlushDueDigests(ctx, s.now())
}
