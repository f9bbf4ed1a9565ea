package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/creditera/cobranza/pkg/db/pagination"
	"gorm.io/gorm"
)

// Repository is the persistence port for loans, installments, and
// payment slices. Methods take the *gorm.DB they should run on so one
// transaction can span penalty accrual, allocation, payment inserts,
// and ledger postings.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, loan *Loan) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Loan, error)
	// FindByIDForUpdate locks the loan row for the duration of the
	// surrounding transaction. Concurrent payments against the same
	// loan serialize on this lock.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Loan, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status LoanStatus) error
	List(ctx context.Context, db *gorm.DB, filter ListLoanFilter, page pagination.Pagination) ([]*Loan, error)

	InsertInstallments(ctx context.Context, db *gorm.DB, installments []*Installment) error
	// ListInstallments returns the loan's installments ordered by week
	// ascending. The waterfall depends on this order.
	ListInstallments(ctx context.Context, db *gorm.DB, loanID snowflake.ID) ([]*Installment, error)
	UpdateInstallment(ctx context.Context, db *gorm.DB, installment *Installment) error

	InsertPayment(ctx context.Context, db *gorm.DB, payment *Payment) error
	ListPayments(ctx context.Context, db *gorm.DB, loanID snowflake.ID) ([]*Payment, error)

	// ListLoanIDsWithOverdueInstallments supports the batch penalty
	// sweep: every loan holding a pending/partial installment due on or
	// before the given date.
	ListLoanIDsWithOverdueInstallments(ctx context.Context, db *gorm.DB, dueOnOrBefore string) ([]snowflake.ID, error)
}

type ListLoanFilter struct {
	Status      LoanStatus
	CustomerRef string
}
