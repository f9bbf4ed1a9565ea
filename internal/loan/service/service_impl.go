package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/creditera/cobranza/internal/clock"
	ledgerdomain "github.com/creditera/cobranza/internal/ledger/domain"
	"github.com/creditera/cobranza/internal/loan/domain"
	"github.com/creditera/cobranza/internal/money"
	"github.com/creditera/cobranza/pkg/db/pagination"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	LedgerSvc ledgerdomain.Service
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	ledgerSvc ledgerdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("loan.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		ledgerSvc: p.LedgerSvc,
	}
}

// CreateLoan stores the loan and its weekly amortization schedule.
// Capital and total interest are split evenly across the term with
// money.Split, so the schedule sums exactly to principal and to
// principal*rate regardless of term length.
func (s *Service) CreateLoan(ctx context.Context, input domain.CreateLoanInput) (*domain.Loan, []*domain.Installment, error) {
	if strings.TrimSpace(input.CustomerRef) == "" {
		return nil, nil, domain.ErrInvalidSchedule
	}
	if !input.Principal.IsPositive() || input.TermWeeks < 1 {
		return nil, nil, domain.ErrInvalidSchedule
	}
	if input.InterestRate.IsNegative() {
		return nil, nil, domain.ErrInvalidSchedule
	}
	if input.FirstDueDate.IsZero() {
		return nil, nil, domain.ErrInvalidSchedule
	}

	status := input.Status
	if status == "" {
		status = domain.LoanStatusPending
	}

	now := s.clock.Now().UTC()
	loan := &domain.Loan{
		ID:          s.genID.Generate(),
		CustomerRef: strings.TrimSpace(input.CustomerRef),
		Principal:   money.Round2(input.Principal),
		TermWeeks:   input.TermWeeks,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	installments, err := s.buildSchedule(loan, input)
	if err != nil {
		return nil, nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, loan); err != nil {
			return err
		}
		return s.repo.InsertInstallments(ctx, tx, installments)
	})
	if err != nil {
		return nil, nil, err
	}

	s.log.Info("loan created",
		zap.String("loan_id", loan.ID.String()),
		zap.String("customer_ref", loan.CustomerRef),
		zap.Int("term_weeks", loan.TermWeeks),
	)
	return loan, installments, nil
}

func (s *Service) buildSchedule(loan *domain.Loan, input domain.CreateLoanInput) ([]*domain.Installment, error) {
	ws := make([]decimal.Decimal, loan.TermWeeks)
	for i := range ws {
		ws[i] = decimal.New(1, 0)
	}

	capitalParts, err := money.Split(loan.Principal, ws...)
	if err != nil {
		return nil, domain.ErrInvalidSchedule
	}
	totalInterest := money.Round2(loan.Principal.Mul(input.InterestRate))
	interestParts, err := money.Split(totalInterest, ws...)
	if err != nil {
		return nil, domain.ErrInvalidSchedule
	}

	now := s.clock.Now().UTC()
	installments := make([]*domain.Installment, loan.TermWeeks)
	for i := 0; i < loan.TermWeeks; i++ {
		installments[i] = &domain.Installment{
			ID:             s.genID.Generate(),
			LoanID:         loan.ID,
			Week:           i + 1,
			DueDate:        input.FirstDueDate.AddDate(0, 0, 7*i),
			CapitalDue:     capitalParts[i],
			InterestDue:    interestParts[i],
			PenaltyAccrued: money.Zero,
			CapitalPaid:    money.Zero,
			InterestPaid:   money.Zero,
			PenaltyPaid:    money.Zero,
			Status:         domain.InstallmentStatusPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	}
	return installments, nil
}

func (s *Service) GetLoan(ctx context.Context, id snowflake.ID) (*domain.Loan, error) {
	loan, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, domain.ErrLoanNotFound
	}
	return loan, nil
}

func (s *Service) ListLoans(ctx context.Context, req domain.ListLoanRequest) (domain.ListLoanResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, domain.ListLoanFilter{
		Status:      req.Status,
		CustomerRef: strings.TrimSpace(req.CustomerRef),
	}, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListLoanResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(loan *domain.Loan) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        loan.ID.String(),
			CreatedAt: loan.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	return domain.ListLoanResponse{PageInfo: *pageInfo, Loans: items}, nil
}

func (s *Service) GetInstallments(ctx context.Context, loanID snowflake.ID) ([]*domain.Installment, error) {
	loan, err := s.repo.FindByID(ctx, s.db, loanID)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, domain.ErrLoanNotFound
	}
	return s.repo.ListInstallments(ctx, s.db, loanID)
}

func (s *Service) GetPayments(ctx context.Context, loanID snowflake.ID) ([]*domain.Payment, error) {
	loan, err := s.repo.FindByID(ctx, s.db, loanID)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, domain.ErrLoanNotFound
	}
	return s.repo.ListPayments(ctx, s.db, loanID)
}

func (s *Service) SettleIfComplete(ctx context.Context, tx *gorm.DB, loanID snowflake.ID) (bool, error) {
	loan, err := s.repo.FindByID(ctx, tx, loanID)
	if err != nil {
		return false, err
	}
	if loan == nil {
		return false, domain.ErrLoanNotFound
	}
	if loan.Status != domain.LoanStatusDelivered && loan.Status != domain.LoanStatusApproved {
		return false, nil
	}

	installments, err := s.repo.ListInstallments(ctx, tx, loanID)
	if err != nil {
		return false, err
	}
	if len(installments) == 0 {
		return false, nil
	}
	for _, inst := range installments {
		if inst.Status != domain.InstallmentStatusPaid {
			return false, nil
		}
	}

	if err := s.repo.UpdateStatus(ctx, tx, loanID, domain.LoanStatusSettled); err != nil {
		return false, err
	}
	s.log.Info("loan settled", zap.String("loan_id", loanID.String()))
	return true, nil
}

func (s *Service) Approve(ctx context.Context, id snowflake.ID) error {
	loan, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if loan == nil {
		return domain.ErrLoanNotFound
	}
	if loan.Status != domain.LoanStatusPending {
		return domain.ErrInvalidTransition
	}
	return s.repo.UpdateStatus(ctx, s.db, id, domain.LoanStatusApproved)
}

func (s *Service) Deliver(ctx context.Context, id snowflake.ID, cost decimal.Decimal) error {
	if cost.IsNegative() {
		return domain.ErrInvalidSchedule
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loan, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if loan == nil {
			return domain.ErrLoanNotFound
		}
		if loan.Status != domain.LoanStatusApproved {
			return domain.ErrInvalidTransition
		}

		if err := s.repo.UpdateStatus(ctx, tx, id, domain.LoanStatusDelivered); err != nil {
			return err
		}

		_, err = s.ledgerSvc.Post(ctx, tx, ledgerdomain.Entry{
			SourceType:  ledgerdomain.SourceTypeDelivery,
			SourceID:    loan.ID,
			Currency:    loan.Currency,
			Description: fmt.Sprintf("delivery of loan %s", loan.ID),
			OccurredAt:  s.clock.Now(),
			Lines:       ledgerdomain.DeliveryLines(loan.Principal, money.Round2(cost)),
		})
		if err != nil {
			return err
		}

		s.log.Info("loan delivered",
			zap.String("loan_id", loan.ID.String()),
			zap.String("principal", loan.Principal.StringFixed(2)),
			zap.String("cost", cost.StringFixed(2)),
		)
		return nil
	})
}

func (s *Service) WriteOff(ctx context.Context, id snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loan, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if loan == nil {
			return domain.ErrLoanNotFound
		}
		if loan.Status == domain.LoanStatusSettled || loan.Status == domain.LoanStatusWrittenOff {
			return domain.ErrInvalidTransition
		}

		installments, err := s.repo.ListInstallments(ctx, tx, id)
		if err != nil {
			return err
		}
		outstanding := decimal.Zero
		for _, inst := range installments {
			outstanding = outstanding.Add(inst.Outstanding())
		}

		if err := s.repo.UpdateStatus(ctx, tx, id, domain.LoanStatusWrittenOff); err != nil {
			return err
		}

		if outstanding.IsPositive() {
			_, err = s.ledgerSvc.Post(ctx, tx, ledgerdomain.Entry{
				SourceType:  ledgerdomain.SourceTypeWriteOff,
				SourceID:    loan.ID,
				Currency:    loan.Currency,
				Description: fmt.Sprintf("write-off of loan %s", loan.ID),
				OccurredAt:  s.clock.Now(),
				Lines:       ledgerdomain.WriteOffLines(outstanding),
			})
			if err != nil {
				return err
			}
		}

		s.log.Info("loan written off",
			zap.String("loan_id", loan.ID.String()),
			zap.String("outstanding", outstanding.StringFixed(2)),
		)
		return nil
	})
}
