// Package penalty computes daily late-penalty increments for overdue
// installments. The engine is pure: it reads the clock and the policy
// and returns increments; persisting them is the payment service's job.
package penalty

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/creditera/cobranza/internal/clock"
	"github.com/creditera/cobranza/internal/config"
	loandomain "github.com/creditera/cobranza/internal/loan/domain"
	"github.com/creditera/cobranza/internal/money"
	"github.com/shopspring/decimal"
)

// Increment is one daily penalty charge against one installment.
type Increment struct {
	InstallmentID snowflake.ID
	Week          int
	Amount        decimal.Decimal
}

// DailyAmount is the policy formula: a flat charge for small
// installments, a percentage of capital+interest due otherwise.
func DailyAmount(policy config.PenaltyPolicy, inst *loandomain.Installment) decimal.Decimal {
	totalDue := inst.CapitalDue.Add(inst.InterestDue)
	if totalDue.LessThan(policy.FlatThresholdDecimal()) {
		return money.Round2(policy.FlatAmountDecimal())
	}
	return money.Round2(totalDue.Mul(policy.RateDecimal()))
}

// Overdue reports whether an installment due on dueDate is overdue at
// now. The due date itself counts once local time passes the cutoff
// hour; every later day is overdue outright.
func Overdue(now time.Time, policy config.PenaltyPolicy, dueDate time.Time) bool {
	today := clock.StartOfDay(now)
	dueDay := clock.StartOfDay(dueDate.In(now.Location()))
	if today.After(dueDay) {
		return true
	}
	if today.Equal(dueDay) {
		return now.Hour() >= policy.CutoffHour
	}
	return false
}

// Assess returns the penalty increments owed at now, at most one per
// installment per calendar day. Installments already charged today
// (LastPenaltyDate == today) are skipped, which makes the operation
// idempotent within a day: payment retries and standalone sweeps can
// both run it safely.
func Assess(now time.Time, policy config.PenaltyPolicy, installments []*loandomain.Installment) []Increment {
	var increments []Increment
	for _, inst := range installments {
		if inst.Status == loandomain.InstallmentStatusPaid {
			continue
		}
		if !Overdue(now, policy, inst.DueDate) {
			continue
		}
		if inst.LastPenaltyDate != nil && clock.SameDay(now, *inst.LastPenaltyDate) {
			continue
		}
		amount := DailyAmount(policy, inst)
		if !amount.IsPositive() {
			continue
		}
		increments = append(increments, Increment{
			InstallmentID: inst.ID,
			Week:          inst.Week,
			Amount:        amount,
		})
	}
	return increments
}

// Apply mutates the installment set with the given increments, stamping
// LastPenaltyDate with now's calendar day.
func Apply(now time.Time, installments []*loandomain.Installment, increments []Increment) {
	byID := make(map[snowflake.ID]*loandomain.Installment, len(installments))
	for _, inst := range installments {
		byID[inst.ID] = inst
	}
	day := clock.StartOfDay(now)
	for _, inc := range increments {
		inst, ok := byID[inc.InstallmentID]
		if !ok {
			continue
		}
		inst.PenaltyAccrued = money.Round2(inst.PenaltyAccrued.Add(inc.Amount))
		inst.LastPenaltyDate = &day
	}
}
