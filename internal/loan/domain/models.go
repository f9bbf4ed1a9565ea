package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type LoanStatus string

const (
	LoanStatusPending    LoanStatus = "pending"
	LoanStatusApproved   LoanStatus = "approved"
	LoanStatusDelivered  LoanStatus = "delivered"
	LoanStatusSettled    LoanStatus = "settled"
	LoanStatusWrittenOff LoanStatus = "written_off"
)

// Payable reports whether the loan may receive payments.
func (s LoanStatus) Payable() bool {
	return s == LoanStatusApproved || s == LoanStatusDelivered
}

type InstallmentStatus string

const (
	InstallmentStatusPending InstallmentStatus = "pending"
	InstallmentStatusPartial InstallmentStatus = "partial"
	InstallmentStatusPaid    InstallmentStatus = "paid"
)

type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "efectivo"
	PaymentMethodTransfer PaymentMethod = "transferencia"
	PaymentMethodCard     PaymentMethod = "tarjeta"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodTransfer, PaymentMethodCard:
		return true
	}
	return false
}

// Loan is a borrower's credit line. This core mutates only Status, and
// only to flip delivered loans to settled once the last installment is
// fully paid.
type Loan struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	CustomerRef string          `gorm:"type:text;not null;index"`
	Principal   decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	TermWeeks   int             `gorm:"not null"`
	Currency    string          `gorm:"type:text;not null;default:'MXN'"`
	Status      LoanStatus      `gorm:"type:text;not null;index"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Loan) TableName() string { return "loans" }

// Installment is one scheduled week of a loan's amortization. Dues are
// fixed at schedule creation; paid amounts and penalty accrual only
// ever grow.
type Installment struct {
	ID     snowflake.ID `gorm:"primaryKey"`
	LoanID snowflake.ID `gorm:"not null;index;uniqueIndex:ux_installments_loan_week,priority:1"`
	Week   int          `gorm:"not null;uniqueIndex:ux_installments_loan_week,priority:2"`

	DueDate        time.Time       `gorm:"not null;index"`
	CapitalDue     decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	InterestDue    decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	PenaltyAccrued decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	CapitalPaid    decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	InterestPaid   decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	PenaltyPaid    decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`

	// LastPenaltyDate guards the one-increment-per-calendar-day rule.
	LastPenaltyDate *time.Time        `gorm:"type:date"`
	Status          InstallmentStatus `gorm:"type:text;not null;default:'pending';index"`
	CreatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Installment) TableName() string { return "installments" }

// OutstandingPenalty returns penalty accrued but not yet paid.
func (i Installment) OutstandingPenalty() decimal.Decimal {
	return i.PenaltyAccrued.Sub(i.PenaltyPaid)
}

// OutstandingInterest returns interest due but not yet paid.
func (i Installment) OutstandingInterest() decimal.Decimal {
	return i.InterestDue.Sub(i.InterestPaid)
}

// OutstandingCapital returns capital due but not yet paid.
func (i Installment) OutstandingCapital() decimal.Decimal {
	return i.CapitalDue.Sub(i.CapitalPaid)
}

// Outstanding is the installment's total unpaid amount across all three
// components.
func (i Installment) Outstanding() decimal.Decimal {
	return i.OutstandingCapital().Add(i.OutstandingInterest()).Add(i.OutstandingPenalty())
}

// Settled reports whether every component is fully paid.
func (i Installment) Settled() bool {
	return !i.Outstanding().IsPositive()
}

// Payment is an immutable record of money received against one
// installment. A single incoming payment that spans installments is
// stored as one row per installment slice so every ledger line traces
// back to an exact slice.
type Payment struct {
	ID            snowflake.ID    `gorm:"primaryKey"`
	LoanID        snowflake.ID    `gorm:"not null;index"`
	InstallmentID snowflake.ID    `gorm:"not null;index"`
	Week          int             `gorm:"not null"`
	Amount        decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	PenaltyPart   decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	InterestPart  decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	CapitalPart   decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	Method        PaymentMethod   `gorm:"type:text;not null"`
	Metadata      datatypes.JSON  `gorm:"type:jsonb"`
	ReceivedAt    time.Time       `gorm:"not null"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Payment) TableName() string { return "payments" }
