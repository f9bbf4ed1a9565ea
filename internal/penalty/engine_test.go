package penalty

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/creditera/cobranza/internal/config"
	loandomain "github.com/creditera/cobranza/internal/loan/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newInstallment(t *testing.T, node *snowflake.Node, week int, due time.Time, capital, interest string) *loandomain.Installment {
	t.Helper()
	return &loandomain.Installment{
		ID:          node.Generate(),
		Week:        week,
		DueDate:     due,
		CapitalDue:  dec(capital),
		InterestDue: dec(interest),
		Status:      loandomain.InstallmentStatusPending,
	}
}

func TestDailyAmount_FlatBelowThreshold(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	policy := config.DefaultPenaltyPolicy()

	small := newInstallment(t, node, 1, time.Now(), "300", "100") // 400 < 500
	assert.True(t, DailyAmount(policy, small).Equal(dec("50")))

	large := newInstallment(t, node, 2, time.Now(), "400", "100") // 500, at threshold
	assert.True(t, DailyAmount(policy, large).Equal(dec("50")),
		"10%% of 500 is 50")

	larger := newInstallment(t, node, 3, time.Now(), "900", "100") // 1000
	assert.True(t, DailyAmount(policy, larger).Equal(dec("100")))
}

func TestOverdue_CutoffSemantics(t *testing.T) {
	policy := config.DefaultPenaltyPolicy() // cutoff 14:00
	due := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	beforeCutoff := time.Date(2024, 3, 4, 13, 59, 0, 0, time.UTC)
	assert.False(t, Overdue(beforeCutoff, policy, due))

	atCutoff := time.Date(2024, 3, 4, 14, 0, 0, 0, time.UTC)
	assert.True(t, Overdue(atCutoff, policy, due))

	nextDayMorning := time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)
	assert.True(t, Overdue(nextDayMorning, policy, due))

	dayBefore := time.Date(2024, 3, 3, 23, 0, 0, 0, time.UTC)
	assert.False(t, Overdue(dayBefore, policy, due))
}

func TestAssess_OneIncrementPerDay(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	policy := config.DefaultPenaltyPolicy()

	due := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	inst := newInstallment(t, node, 1, due, "300", "100")
	installments := []*loandomain.Installment{inst}

	first := Assess(now, policy, installments)
	require.Len(t, first, 1)
	assert.True(t, first[0].Amount.Equal(dec("50")))
	Apply(now, installments, first)
	assert.True(t, inst.PenaltyAccrued.Equal(dec("50")))

	// Second assessment the same day is a no-op.
	second := Assess(now.Add(2*time.Hour), policy, installments)
	assert.Empty(t, second)
	assert.True(t, inst.PenaltyAccrued.Equal(dec("50")))

	// The next day accrues again.
	nextDay := now.AddDate(0, 0, 1)
	third := Assess(nextDay, policy, installments)
	require.Len(t, third, 1)
	Apply(nextDay, installments, third)
	assert.True(t, inst.PenaltyAccrued.Equal(dec("100")))
}

func TestAssess_SkipsPaidAndNotYetDue(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	policy := config.DefaultPenaltyPolicy()
	now := time.Date(2024, 3, 10, 16, 0, 0, 0, time.UTC)

	paid := newInstallment(t, node, 1, now.AddDate(0, 0, -7), "100", "20")
	paid.Status = loandomain.InstallmentStatusPaid

	future := newInstallment(t, node, 2, now.AddDate(0, 0, 7), "100", "20")

	overdue := newInstallment(t, node, 3, now.AddDate(0, 0, -1), "100", "20")

	increments := Assess(now, policy, []*loandomain.Installment{paid, future, overdue})
	require.Len(t, increments, 1)
	assert.Equal(t, overdue.ID, increments[0].InstallmentID)
	assert.Equal(t, 3, increments[0].Week)
}
