package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/creditera/cobranza/internal/clock"
	paymentdomain "github.com/creditera/cobranza/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler requires logger, clock, and payment service")

// Config controls the sweep interval and per-job timeout.
type Config struct {
	RunInterval time.Duration
	JobTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Hour,
		JobTimeout:  5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	PaymentSvc paymentdomain.Service
	Config     Config `optional:"true"`
}

// Scheduler drives the daily penalty accrual. The sweep is idempotent
// per calendar day, so running it every interval is safe; the hourly
// cadence exists so installments crossing the cutoff hour get charged
// the same day.
type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	clock      clock.Clock
	paymentSvc paymentdomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.PaymentSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		clock:      p.Clock,
		paymentSvc: p.PaymentSvc,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	log := s.log.With(zap.String("job", name))
	log.Debug("job started")

	err := fn(ctx)
	duration := time.Since(start)

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	log.Debug("job finished", zap.Duration("duration", duration))
	return nil
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	return s.runJob(parent, "penalty_sweep", s.cfg.JobTimeout, s.PenaltySweepJob)
}

func (s *Scheduler) PenaltySweepJob(ctx context.Context) error {
	result, err := s.paymentSvc.AssessPenalties(ctx, 0)
	if err != nil {
		return err
	}
	if len(result.InstallmentsUpdated) > 0 {
		s.log.Info("penalty sweep applied increments",
			zap.Int("installments", len(result.InstallmentsUpdated)),
		)
	}
	return nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
