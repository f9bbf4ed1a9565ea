package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/creditera/cobranza/internal/clock"
	ledgerdomain "github.com/creditera/cobranza/internal/ledger/domain"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db   *gorm.DB
	node *snowflake.Node
	svc  ledgerdomain.Service
}

func newFixture(t *testing.T, name string) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&ledgerdomain.Account{},
		&ledgerdomain.JournalEntry{},
		&ledgerdomain.JournalLine{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	accounts := []ledgerdomain.Account{
		{ID: node.Generate(), Code: ledgerdomain.AccountCodeCash, Name: "Cash", Type: ledgerdomain.Assets},
		{ID: node.Generate(), Code: ledgerdomain.AccountCodeLoansReceivable, Name: "Loans receivable", Type: ledgerdomain.Assets},
		{ID: node.Generate(), Code: ledgerdomain.AccountCodeInterestIncome, Name: "Interest income", Type: ledgerdomain.Income},
	}
	for _, acc := range accounts {
		require.NoError(t, db.Create(&acc).Error)
	}

	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)),
	})

	return &fixture{db: db, node: node, svc: svc}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (f *fixture) paymentEntry(sourceID snowflake.ID) ledgerdomain.Entry {
	return ledgerdomain.Entry{
		SourceType: ledgerdomain.SourceTypePayment,
		SourceID:   sourceID,
		Currency:   "MXN",
		OccurredAt: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
		Lines: []ledgerdomain.Line{
			{AccountCode: ledgerdomain.AccountCodeCash, Debit: dec("130")},
			{AccountCode: ledgerdomain.AccountCodeLoansReceivable, Credit: dec("100")},
			{AccountCode: ledgerdomain.AccountCodeInterestIncome, Credit: dec("30")},
		},
	}
}

func TestPost_WritesEntryAndLines(t *testing.T) {
	f := newFixture(t, "ledger_post")
	ctx := context.Background()

	entryID, err := f.svc.Post(ctx, f.db, f.paymentEntry(f.node.Generate()))
	require.NoError(t, err)
	require.NotZero(t, entryID)

	lines, err := f.svc.Lines(ctx, entryID)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.True(t, lines[0].Debit.Equal(dec("130")))
	assert.True(t, lines[1].Credit.Equal(dec("100")))
	assert.True(t, lines[2].Credit.Equal(dec("30")))
}

func TestPost_IdempotentPerSource(t *testing.T) {
	f := newFixture(t, "ledger_idem")
	ctx := context.Background()
	sourceID := f.node.Generate()

	first, err := f.svc.Post(ctx, f.db, f.paymentEntry(sourceID))
	require.NoError(t, err)

	second, err := f.svc.Post(ctx, f.db, f.paymentEntry(sourceID))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var count int64
	require.NoError(t, f.db.Model(&ledgerdomain.JournalEntry{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	lines, err := f.svc.Lines(ctx, first)
	require.NoError(t, err)
	assert.Len(t, lines, 3)
}

func TestPost_RejectsInvalidEntries(t *testing.T) {
	f := newFixture(t, "ledger_invalid")
	ctx := context.Background()

	unbalanced := f.paymentEntry(f.node.Generate())
	unbalanced.Lines[1].Credit = dec("90")
	_, err := f.svc.Post(ctx, f.db, unbalanced)
	assert.ErrorIs(t, err, ledgerdomain.ErrUnbalancedEntry)

	missingSource := f.paymentEntry(f.node.Generate())
	missingSource.SourceID = 0
	_, err = f.svc.Post(ctx, f.db, missingSource)
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidSourceID)

	var count int64
	require.NoError(t, f.db.Model(&ledgerdomain.JournalEntry{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestPost_UnknownAccount(t *testing.T) {
	f := newFixture(t, "ledger_unknown_account")
	ctx := context.Background()

	entry := f.paymentEntry(f.node.Generate())
	entry.Lines[2].AccountCode = ledgerdomain.AccountCodePenaltyIncome // not seeded here
	_, err := f.svc.Post(ctx, f.db, entry)
	assert.ErrorIs(t, err, ledgerdomain.ErrUnknownAccount)
}

func TestReverse_MirrorsLines(t *testing.T) {
	f := newFixture(t, "ledger_reverse")
	ctx := context.Background()

	entryID, err := f.svc.Post(ctx, f.db, f.paymentEntry(f.node.Generate()))
	require.NoError(t, err)

	reversalID, err := f.svc.Reverse(ctx, f.db, entryID, "correction")
	require.NoError(t, err)
	require.NotEqual(t, entryID, reversalID)

	lines, err := f.svc.Lines(ctx, reversalID)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.True(t, lines[0].Credit.Equal(dec("130")))
	assert.True(t, lines[1].Debit.Equal(dec("100")))
	assert.True(t, lines[2].Debit.Equal(dec("30")))

	// Reversing the same entry again resolves to the existing reversal.
	again, err := f.svc.Reverse(ctx, f.db, entryID, "correction")
	require.NoError(t, err)
	assert.Equal(t, reversalID, again)
}

func TestReverse_EntryNotFound(t *testing.T) {
	f := newFixture(t, "ledger_reverse_missing")

	_, err := f.svc.Reverse(context.Background(), f.db, f.node.Generate(), "correction")
	assert.ErrorIs(t, err, ledgerdomain.ErrEntryNotFound)
}

func TestTrialBalance_GroupsByAccount(t *testing.T) {
	f := newFixture(t, "ledger_trial_balance")
	ctx := context.Background()

	_, err := f.svc.Post(ctx, f.db, f.paymentEntry(f.node.Generate()))
	require.NoError(t, err)
	_, err = f.svc.Post(ctx, f.db, f.paymentEntry(f.node.Generate()))
	require.NoError(t, err)

	balances, err := f.svc.TrialBalance(ctx)
	require.NoError(t, err)
	require.Len(t, balances, 3)

	byCode := make(map[ledgerdomain.AccountCode]ledgerdomain.AccountBalance, len(balances))
	totalDebits := decimal.Zero
	totalCredits := decimal.Zero
	for _, b := range balances {
		byCode[b.AccountCode] = b
		totalDebits = totalDebits.Add(b.Debits)
		totalCredits = totalCredits.Add(b.Credits)
	}

	assert.True(t, byCode[ledgerdomain.AccountCodeCash].Debits.Equal(dec("260")))
	assert.True(t, byCode[ledgerdomain.AccountCodeLoansReceivable].Credits.Equal(dec("200")))
	assert.True(t, byCode[ledgerdomain.AccountCodeInterestIncome].Credits.Equal(dec("60")))
	assert.True(t, totalDebits.Equal(totalCredits))
}
