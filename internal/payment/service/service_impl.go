package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/creditera/cobranza/internal/allocation"
	"github.com/creditera/cobranza/internal/clock"
	"github.com/creditera/cobranza/internal/config"
	loandomain "github.com/creditera/cobranza/internal/loan/domain"
	ledgerdomain "github.com/creditera/cobranza/internal/ledger/domain"
	"github.com/creditera/cobranza/internal/lock"
	"github.com/creditera/cobranza/internal/money"
	obsmetrics "github.com/creditera/cobranza/internal/observability/metrics"
	"github.com/creditera/cobranza/internal/payment/domain"
	"github.com/creditera/cobranza/internal/penalty"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Policy     *config.PolicyHolder
	Repo       loandomain.Repository
	LoanSvc    loandomain.Service
	LedgerSvc  ledgerdomain.Service
	Locker     *lock.LoanLocker    `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	policy     *config.PolicyHolder
	repo       loandomain.Repository
	loanSvc    loandomain.Service
	ledgerSvc  ledgerdomain.Service
	locker     *lock.LoanLocker
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		policy:     p.Policy,
		repo:       p.Repo,
		loanSvc:    p.LoanSvc,
		ledgerSvc:  p.LedgerSvc,
		locker:     p.Locker,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) ProcessPayment(ctx context.Context, input domain.ProcessPaymentInput) (*domain.PaymentResult, error) {
	amount := money.Round2(input.Amount)
	if !amount.IsPositive() {
		s.obsMetrics.RecordPaymentRejected(ctx, "invalid_amount")
		return nil, loandomain.ErrInvalidAmount
	}
	if !input.Method.Valid() {
		s.obsMetrics.RecordPaymentRejected(ctx, "invalid_method")
		return nil, loandomain.ErrInvalidMethod
	}

	token, ok, err := s.locker.TryLock(ctx, input.LoanID, lock.DefaultTTL)
	if err != nil {
		// The row lock below still serializes; the distributed lock is
		// an optimization, not a correctness requirement.
		s.log.Warn("loan lock unavailable, relying on row lock",
			zap.String("loan_id", input.LoanID.String()), zap.Error(err))
	} else if !ok {
		s.obsMetrics.RecordPaymentRejected(ctx, "concurrency_conflict")
		return nil, domain.ErrConcurrencyConflict
	}
	defer func() {
		if releaseErr := s.locker.Release(context.WithoutCancel(ctx), input.LoanID, token); releaseErr != nil {
			s.log.Warn("failed to release loan lock", zap.Error(releaseErr))
		}
	}()

	policy := s.policy.Get()
	now := s.clock.Now()

	var (
		result       *domain.PaymentResult
		penaltyCount int
		sliceCount   int
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loan, err := s.repo.FindByIDForUpdate(ctx, tx, input.LoanID)
		if err != nil {
			return err
		}
		if loan == nil {
			return loandomain.ErrLoanNotFound
		}
		if !loan.Status.Payable() {
			return loandomain.ErrLoanNotPayable
		}

		installments, err := s.repo.ListInstallments(ctx, tx, loan.ID)
		if err != nil {
			return err
		}

		// Accrue penalties before allocating so the waterfall sees
		// today's penalty_accrued.
		warnings, accrued := s.accrue(ctx, tx, now, policy, installments)
		penaltyCount = accrued

		anyOutstanding := false
		for _, inst := range installments {
			if inst.Outstanding().IsPositive() {
				anyOutstanding = true
				break
			}
		}
		if !anyOutstanding {
			return loandomain.ErrNoOutstandingInstallments
		}

		alloc := allocation.Allocate(amount, installments)
		sliceCount = len(alloc.Slices)

		byID := make(map[snowflake.ID]*loandomain.Installment, len(installments))
		for _, inst := range installments {
			byID[inst.ID] = inst
		}

		res := &domain.PaymentResult{
			LoanID:           loan.ID,
			UnappliedSurplus: alloc.Surplus,
			PenaltyWarnings:  warnings,
		}

		for _, slice := range alloc.Slices {
			inst := byID[slice.InstallmentID]
			if err := s.repo.UpdateInstallment(ctx, tx, inst); err != nil {
				return err
			}

			entryID, err := s.recordSlice(ctx, tx, loan, input, now, policy.Currency, paymentSlice{
				installmentID: slice.InstallmentID,
				week:          slice.Week,
				amount:        slice.Applied,
				penalty:       slice.PenaltyPaid,
				interest:      slice.InterestPaid,
				capital:       slice.CapitalPaid,
			})
			if err != nil {
				return err
			}

			res.JournalEntryIDs = append(res.JournalEntryIDs, entryID)
			res.InstallmentsAffected = append(res.InstallmentsAffected, domain.InstallmentResult{
				Week:         slice.Week,
				PenaltyPaid:  slice.PenaltyPaid,
				InterestPaid: slice.InterestPaid,
				CapitalPaid:  slice.CapitalPaid,
				NewStatus:    slice.NewStatus,
			})
		}

		// Over-payment: the allocator never swallows leftovers. The
		// caller either takes the surplus back or books it as a capital
		// pre-payment against the final installment.
		if alloc.Surplus.IsPositive() && input.ApplyExtraTo == domain.SurplusToCapital && len(installments) > 0 {
			last := installments[len(installments)-1]
			entryID, err := s.recordSlice(ctx, tx, loan, input, now, policy.Currency, paymentSlice{
				installmentID: last.ID,
				week:          last.Week,
				amount:        alloc.Surplus,
				penalty:       decimal.Zero,
				interest:      decimal.Zero,
				capital:       alloc.Surplus,
				prepayment:    true,
			})
			if err != nil {
				return err
			}
			res.JournalEntryIDs = append(res.JournalEntryIDs, entryID)
			res.InstallmentsAffected = append(res.InstallmentsAffected, domain.InstallmentResult{
				Week:         last.Week,
				PenaltyPaid:  decimal.Zero,
				InterestPaid: decimal.Zero,
				CapitalPaid:  alloc.Surplus,
				NewStatus:    last.Status,
			})
			res.UnappliedSurplus = decimal.Zero
		}

		settled, err := s.loanSvc.SettleIfComplete(ctx, tx, loan.ID)
		if err != nil {
			return err
		}
		res.LoanSettled = settled

		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.obsMetrics.RecordPayment(ctx, string(input.Method))
	s.obsMetrics.RecordPenaltyIncrements(ctx, penaltyCount)
	s.log.Info("payment processed",
		zap.String("loan_id", input.LoanID.String()),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("method", string(input.Method)),
		zap.Int("slices", sliceCount),
		zap.String("surplus", result.UnappliedSurplus.StringFixed(2)),
		zap.Bool("settled", result.LoanSettled),
	)
	return result, nil
}

type paymentSlice struct {
	installmentID snowflake.ID
	week          int
	amount        decimal.Decimal
	penalty       decimal.Decimal
	interest      decimal.Decimal
	capital       decimal.Decimal
	prepayment    bool
}

// recordSlice persists one payment slice and posts its balanced journal
// entry. One slice, one payment row, one entry: every ledger line
// traces back to exactly one installment's share of the money.
func (s *Service) recordSlice(ctx context.Context, tx *gorm.DB, loan *loandomain.Loan, input domain.ProcessPaymentInput, now time.Time, currency string, slice paymentSlice) (snowflake.ID, error) {
	meta := map[string]any{}
	if input.ReceivedBy != "" {
		meta["received_by"] = input.ReceivedBy
	}
	if input.WeekHint > 0 {
		meta["week_hint"] = input.WeekHint
	}
	if slice.prepayment {
		meta["prepayment"] = true
	}
	metadata, err := json.Marshal(meta)
	if err != nil {
		return 0, err
	}

	payment := &loandomain.Payment{
		ID:            s.genID.Generate(),
		LoanID:        loan.ID,
		InstallmentID: slice.installmentID,
		Week:          slice.week,
		Amount:        slice.amount,
		PenaltyPart:   slice.penalty,
		InterestPart:  slice.interest,
		CapitalPart:   slice.capital,
		Method:        input.Method,
		Metadata:      datatypes.JSON(metadata),
		ReceivedAt:    now.UTC(),
		CreatedAt:     now.UTC(),
	}
	if err := s.repo.InsertPayment(ctx, tx, payment); err != nil {
		return 0, err
	}

	entryID, err := s.ledgerSvc.Post(ctx, tx, ledgerdomain.Entry{
		SourceType:  ledgerdomain.SourceTypePayment,
		SourceID:    payment.ID,
		Currency:    currency,
		Description: fmt.Sprintf("payment on loan %s, week %d", loan.ID, slice.week),
		CreatedBy:   input.ReceivedBy,
		OccurredAt:  now,
		Lines:       ledgerdomain.PaymentLines(input.Method, slice.week, slice.amount, slice.capital, slice.interest, slice.penalty),
	})
	if err != nil {
		return 0, err
	}
	return entryID, nil
}

// accrue applies today's penalty increments inside the payment
// transaction. A failure on one installment is logged and skipped; the
// business keeps collecting even when penalty bookkeeping on one row
// misbehaves.
func (s *Service) accrue(ctx context.Context, tx *gorm.DB, now time.Time, policy config.PenaltyPolicy, installments []*loandomain.Installment) ([]string, int) {
	increments := penalty.Assess(now, policy, installments)
	if len(increments) == 0 {
		return nil, 0
	}

	byID := make(map[snowflake.ID]*loandomain.Installment, len(installments))
	for _, inst := range installments {
		byID[inst.ID] = inst
	}

	day := clock.StartOfDay(now)
	var warnings []string
	applied := 0
	for _, inc := range increments {
		inst := byID[inc.InstallmentID]

		prevAccrued := inst.PenaltyAccrued
		prevDate := inst.LastPenaltyDate
		inst.PenaltyAccrued = money.Round2(inst.PenaltyAccrued.Add(inc.Amount))
		inst.LastPenaltyDate = &day

		if err := s.repo.UpdateInstallment(ctx, tx, inst); err != nil {
			inst.PenaltyAccrued = prevAccrued
			inst.LastPenaltyDate = prevDate
			s.log.Warn("penalty accrual failed for installment",
				zap.String("installment_id", inc.InstallmentID.String()),
				zap.Int("week", inc.Week),
				zap.Error(err),
			)
			warnings = append(warnings, fmt.Sprintf("week %d: penalty accrual failed", inc.Week))
			continue
		}
		applied++
	}
	return warnings, applied
}

func (s *Service) AssessPenalties(ctx context.Context, loanID snowflake.ID) (*domain.AssessResult, error) {
	if loanID != 0 {
		return s.assessLoan(ctx, loanID)
	}

	// Batch sweep: every loan carrying a pending/partial installment due
	// on or before today. Installments due today are included; the
	// per-loan assessment applies the cutoff-hour rule.
	bound := clock.StartOfDay(s.clock.Now()).AddDate(0, 0, 1).Format("2006-01-02")
	ids, err := s.repo.ListLoanIDsWithOverdueInstallments(ctx, s.db, bound)
	if err != nil {
		return nil, err
	}

	result := &domain.AssessResult{}
	for _, id := range ids {
		loanResult, err := s.assessLoan(ctx, id)
		if err != nil {
			s.log.Warn("penalty sweep failed for loan",
				zap.String("loan_id", id.String()), zap.Error(err))
			continue
		}
		result.InstallmentsUpdated = append(result.InstallmentsUpdated, loanResult.InstallmentsUpdated...)
	}
	return result, nil
}

func (s *Service) assessLoan(ctx context.Context, loanID snowflake.ID) (*domain.AssessResult, error) {
	policy := s.policy.Get()
	now := s.clock.Now()

	result := &domain.AssessResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loan, err := s.repo.FindByIDForUpdate(ctx, tx, loanID)
		if err != nil {
			return err
		}
		if loan == nil {
			return loandomain.ErrLoanNotFound
		}
		if !loan.Status.Payable() {
			return nil
		}

		installments, err := s.repo.ListInstallments(ctx, tx, loan.ID)
		if err != nil {
			return err
		}

		increments := penalty.Assess(now, policy, installments)
		byID := make(map[snowflake.ID]*loandomain.Installment, len(installments))
		for _, inst := range installments {
			byID[inst.ID] = inst
		}

		day := clock.StartOfDay(now)
		for _, inc := range increments {
			inst := byID[inc.InstallmentID]
			inst.PenaltyAccrued = money.Round2(inst.PenaltyAccrued.Add(inc.Amount))
			inst.LastPenaltyDate = &day
			if err := s.repo.UpdateInstallment(ctx, tx, inst); err != nil {
				s.log.Warn("penalty accrual failed for installment",
					zap.String("installment_id", inc.InstallmentID.String()),
					zap.Error(err),
				)
				continue
			}
			result.InstallmentsUpdated = append(result.InstallmentsUpdated, domain.PenaltyUpdate{
				LoanID:         loan.ID,
				Week:           inc.Week,
				Amount:         inc.Amount,
				PenaltyAccrued: inst.PenaltyAccrued,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.obsMetrics.RecordPenaltyIncrements(ctx, len(result.InstallmentsUpdated))
	return result, nil
}
