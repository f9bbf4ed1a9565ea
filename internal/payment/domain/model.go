package domain

import (
	"errors"

	"github.com/bwmarrin/snowflake"
	loandomain "github.com/creditera/cobranza/internal/loan/domain"
	"github.com/shopspring/decimal"
)

// ErrConcurrencyConflict signals lock contention on the loan; the
// caller retries, nothing was written.
var ErrConcurrencyConflict = errors.New("payment already in progress for this loan")

// SurplusDisposition is the caller's choice for money left over after
// every installment is satisfied.
type SurplusDisposition string

const (
	// SurplusReport returns the leftover to the caller untouched.
	SurplusReport SurplusDisposition = "report"
	// SurplusToCapital books the leftover as a principal pre-payment.
	SurplusToCapital SurplusDisposition = "capital"
)

type ProcessPaymentInput struct {
	LoanID snowflake.ID
	Amount decimal.Decimal
	Method loandomain.PaymentMethod
	// WeekHint is the installment week the payer believes they are
	// paying. Advisory: allocation is always oldest-first; the hint is
	// kept on the payment record for reconciliation.
	WeekHint     int
	ApplyExtraTo SurplusDisposition
	ReceivedBy   string
}

// InstallmentResult is one installment's share of a processed payment.
type InstallmentResult struct {
	Week         int                          `json:"week"`
	PenaltyPaid  decimal.Decimal              `json:"penalty_paid"`
	InterestPaid decimal.Decimal              `json:"interest_paid"`
	CapitalPaid  decimal.Decimal              `json:"capital_paid"`
	NewStatus    loandomain.InstallmentStatus `json:"new_status"`
}

// PaymentResult is the complete outcome of one payment event. The
// caller either receives this or a typed error; there is no partially
// applied state in between.
type PaymentResult struct {
	LoanID               snowflake.ID        `json:"loan_id"`
	InstallmentsAffected []InstallmentResult `json:"installments_affected"`
	UnappliedSurplus     decimal.Decimal     `json:"unapplied_surplus"`
	JournalEntryIDs      []snowflake.ID      `json:"journal_entry_ids"`
	PenaltyWarnings      []string            `json:"penalty_warnings,omitempty"`
	LoanSettled          bool                `json:"loan_settled"`
}

// PenaltyUpdate reports one accrued increment from a penalty sweep.
type PenaltyUpdate struct {
	LoanID         snowflake.ID    `json:"loan_id"`
	Week           int             `json:"week"`
	Amount         decimal.Decimal `json:"amount"`
	PenaltyAccrued decimal.Decimal `json:"penalty_accrued"`
}

type AssessResult struct {
	InstallmentsUpdated []PenaltyUpdate `json:"installments_updated"`
}
