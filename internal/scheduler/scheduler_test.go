package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/creditera/cobranza/internal/clock"
	paymentdomain "github.com/creditera/cobranza/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePaymentService struct {
	assessCalls int
	result      *paymentdomain.AssessResult
	err         error
}

func (f *fakePaymentService) ProcessPayment(ctx context.Context, input paymentdomain.ProcessPaymentInput) (*paymentdomain.PaymentResult, error) {
	return nil, errors.New("not expected in sweep")
}

func (f *fakePaymentService) AssessPenalties(ctx context.Context, loanID snowflake.ID) (*paymentdomain.AssessResult, error) {
	f.assessCalls++
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &paymentdomain.AssessResult{}, nil
}

func newTestScheduler(t *testing.T, svc paymentdomain.Service) *Scheduler {
	t.Helper()
	sched, err := New(Params{
		Log:        zap.NewNop(),
		Clock:      clock.NewFakeClock(time.Date(2026, 3, 5, 15, 0, 0, 0, time.UTC)),
		PaymentSvc: svc,
	})
	require.NoError(t, err)
	return sched
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunOnce_SweepsPenalties(t *testing.T) {
	svc := &fakePaymentService{}
	sched := newTestScheduler(t, svc)

	require.NoError(t, sched.RunOnce(context.Background()))
	assert.Equal(t, 1, svc.assessCalls)
}

func TestRunOnce_WrapsJobError(t *testing.T) {
	svc := &fakePaymentService{err: errors.New("db down")}
	sched := newTestScheduler(t, svc)

	err := sched.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "penalty_sweep")
}

func TestRunOnce_TimeoutIsSoft(t *testing.T) {
	svc := &fakePaymentService{err: context.DeadlineExceeded}
	sched := newTestScheduler(t, svc)

	assert.NoError(t, sched.RunOnce(context.Background()))
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, time.Hour, cfg.RunInterval)
	assert.Equal(t, 5*time.Minute, cfg.JobTimeout)
}
