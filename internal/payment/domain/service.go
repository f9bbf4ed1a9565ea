package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Service is the payment core's public surface. Both operations are
// transactional: the caller sees either the full result or a typed
// error with nothing persisted.
type Service interface {
	// ProcessPayment accrues due penalties, allocates the amount across
	// outstanding installments oldest-first, records payment slices,
	// posts balanced journal entries, and settles the loan when the
	// last installment is cleared. All in one transaction.
	ProcessPayment(ctx context.Context, input ProcessPaymentInput) (*PaymentResult, error)

	// AssessPenalties runs the daily penalty accrual for one loan, or
	// for every loan with overdue installments when loanID is zero.
	// Idempotent within a calendar day.
	AssessPenalties(ctx context.Context, loanID snowflake.ID) (*AssessResult, error)
}
