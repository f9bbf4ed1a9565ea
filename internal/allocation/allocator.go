// Package allocation implements the payment waterfall: a payment is
// applied to outstanding installments oldest week first, and within
// each installment in the fixed order penalty, then interest, then
// capital. The allocator is pure and deterministic; it never touches
// the database and never depends on map iteration order.
package allocation

import (
	"github.com/bwmarrin/snowflake"
	loandomain "github.com/creditera/cobranza/internal/loan/domain"
	"github.com/creditera/cobranza/internal/money"
	"github.com/shopspring/decimal"
)

// Slice is the portion of a payment applied to one installment, broken
// into waterfall components. PenaltyPaid + InterestPaid + CapitalPaid
// always equals Applied exactly.
type Slice struct {
	InstallmentID snowflake.ID
	Week          int
	Applied       decimal.Decimal
	PenaltyPaid   decimal.Decimal
	InterestPaid  decimal.Decimal
	CapitalPaid   decimal.Decimal
	NewStatus     loandomain.InstallmentStatus
}

// Result is a full allocation of one payment. Surplus is whatever the
// installments could not absorb; it is always reported, never dropped.
type Result struct {
	Slices  []Slice
	Surplus decimal.Decimal
}

// Total returns the amount absorbed by installments.
func (r Result) Total() decimal.Decimal {
	total := decimal.Zero
	for _, s := range r.Slices {
		total = total.Add(s.Applied)
	}
	return total
}

// Allocate distributes amount across the installments, which must be
// ordered by week ascending. Installment paid amounts and statuses are
// mutated in place; the returned result mirrors those mutations.
//
// One payment may clear several installments: the loop continues while
// money remains, so catch-up and lump-sum payments settle consecutive
// weeks in a single call.
func Allocate(amount decimal.Decimal, installments []*loandomain.Installment) Result {
	remaining := money.Round2(amount)
	result := Result{Surplus: decimal.Zero}

	for _, inst := range installments {
		if !remaining.IsPositive() {
			break
		}

		outstanding := inst.Outstanding()
		if !outstanding.IsPositive() {
			continue
		}

		apply := money.Min(remaining, outstanding)

		penaltyNow := money.Min(apply, inst.OutstandingPenalty())
		afterPenalty := apply.Sub(penaltyNow)

		interestNow := money.Min(afterPenalty, inst.OutstandingInterest())
		capitalNow := afterPenalty.Sub(interestNow)

		inst.PenaltyPaid = inst.PenaltyPaid.Add(penaltyNow)
		inst.InterestPaid = inst.InterestPaid.Add(interestNow)
		inst.CapitalPaid = inst.CapitalPaid.Add(capitalNow)

		if inst.Settled() {
			inst.Status = loandomain.InstallmentStatusPaid
		} else {
			inst.Status = loandomain.InstallmentStatusPartial
		}

		result.Slices = append(result.Slices, Slice{
			InstallmentID: inst.ID,
			Week:          inst.Week,
			Applied:       apply,
			PenaltyPaid:   penaltyNow,
			InterestPaid:  interestNow,
			CapitalPaid:   capitalNow,
			NewStatus:     inst.Status,
		})

		remaining = remaining.Sub(apply)
	}

	result.Surplus = remaining
	return result
}
