package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/creditera/cobranza/internal/loan/domain"
	"github.com/creditera/cobranza/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, loan *domain.Loan) error {
	return db.WithContext(ctx).Create(loan).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Loan, error) {
	var loan domain.Loan
	err := db.WithContext(ctx).First(&loan, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Loan, error) {
	q := db.WithContext(ctx)
	if db.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var loan domain.Loan
	err := q.First(&loan, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.LoanStatus) error {
	return db.WithContext(ctx).
		Model(&domain.Loan{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListLoanFilter, page pagination.Pagination) ([]*domain.Loan, error) {
	var loans []*domain.Loan
	stmt := db.WithContext(ctx).Model(&domain.Loan{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.CustomerRef != "" {
		stmt = stmt.Where("customer_ref = ?", filter.CustomerRef)
	}
	stmt, err := page.Apply(stmt)
	if err != nil {
		return nil, err
	}
	if err := stmt.Order("created_at desc, id desc").Find(&loans).Error; err != nil {
		return nil, err
	}
	return loans, nil
}

func (r *repo) InsertInstallments(ctx context.Context, db *gorm.DB, installments []*domain.Installment) error {
	if len(installments) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(installments).Error
}

func (r *repo) ListInstallments(ctx context.Context, db *gorm.DB, loanID snowflake.ID) ([]*domain.Installment, error) {
	var installments []*domain.Installment
	err := db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("week asc").
		Find(&installments).Error
	if err != nil {
		return nil, err
	}
	return installments, nil
}

func (r *repo) UpdateInstallment(ctx context.Context, db *gorm.DB, installment *domain.Installment) error {
	return db.WithContext(ctx).
		Model(&domain.Installment{}).
		Where("id = ?", installment.ID).
		Updates(map[string]any{
			"penalty_accrued":   installment.PenaltyAccrued,
			"capital_paid":      installment.CapitalPaid,
			"interest_paid":     installment.InterestPaid,
			"penalty_paid":      installment.PenaltyPaid,
			"last_penalty_date": installment.LastPenaltyDate,
			"status":            installment.Status,
			"updated_at":        gorm.Expr("CURRENT_TIMESTAMP"),
		}).Error
}

func (r *repo) InsertPayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Create(payment).Error
}

func (r *repo) ListPayments(ctx context.Context, db *gorm.DB, loanID snowflake.ID) ([]*domain.Payment, error) {
	var payments []*domain.Payment
	err := db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("received_at asc, id asc").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repo) ListLoanIDsWithOverdueInstallments(ctx context.Context, db *gorm.DB, dueOnOrBefore string) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).
		Model(&domain.Installment{}).
		Distinct("loan_id").
		Where("status IN ? AND due_date <= ?", []domain.InstallmentStatus{
			domain.InstallmentStatusPending,
			domain.InstallmentStatusPartial,
		}, dueOnOrBefore).
		Pluck("loan_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
