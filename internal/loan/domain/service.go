package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/creditera/cobranza/pkg/db/pagination"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrLoanNotFound              = errors.New("loan not found")
	ErrLoanNotPayable            = errors.New("loan is not in a payable status")
	ErrNoOutstandingInstallments = errors.New("loan has no outstanding installments")
	ErrInvalidAmount             = errors.New("payment amount must be positive")
	ErrInvalidMethod             = errors.New("unknown payment method")
	ErrInvalidSchedule           = errors.New("invalid installment schedule")
	ErrInvalidTransition         = errors.New("invalid loan status transition")
)

// Service covers loan and schedule lifecycle around the payment core:
// creating a loan with its weekly schedule, reads for the API surface,
// and the settlement transition.
type Service interface {
	CreateLoan(ctx context.Context, input CreateLoanInput) (*Loan, []*Installment, error)
	GetLoan(ctx context.Context, id snowflake.ID) (*Loan, error)
	ListLoans(ctx context.Context, req ListLoanRequest) (ListLoanResponse, error)
	GetInstallments(ctx context.Context, loanID snowflake.ID) ([]*Installment, error)
	GetPayments(ctx context.Context, loanID snowflake.ID) ([]*Payment, error)

	// Approve moves a pending loan to approved.
	Approve(ctx context.Context, id snowflake.ID) error

	// Deliver moves an approved loan to delivered and books the
	// merchandise handover: receivable against sales revenue for the
	// principal, cost of goods sold against inventory for the cost.
	Deliver(ctx context.Context, id snowflake.ID, cost decimal.Decimal) error

	// SettleIfComplete flips a delivered loan to settled when every
	// installment is paid. Runs on the caller's transaction; returns
	// true when the transition happened.
	SettleIfComplete(ctx context.Context, tx *gorm.DB, loanID snowflake.ID) (bool, error)

	// WriteOff marks the loan written_off and books the outstanding
	// balance to write-off expense. Terminal; no further payments are
	// accepted.
	WriteOff(ctx context.Context, id snowflake.ID) error
}

type ListLoanRequest struct {
	Status      LoanStatus
	CustomerRef string
	PageToken   string
	PageSize    int
}

type ListLoanResponse struct {
	pagination.PageInfo
	Loans []*Loan `json:"loans"`
}

type CreateLoanInput struct {
	CustomerRef  string
	Principal    decimal.Decimal
	InterestRate decimal.Decimal
	TermWeeks    int
	FirstDueDate time.Time
	Status       LoanStatus
}
