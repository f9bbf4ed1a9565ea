package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrUnknownAccount = errors.New("ledger: account code not in chart of accounts")
	ErrEntryNotFound  = errors.New("ledger: journal entry not found")
)

// Service is the single writer of financial facts. Everything that
// moves money posts through it; reporting reads are derived from the
// journal, never maintained separately.
type Service interface {
	// Post writes one balanced journal entry on the caller's
	// transaction. Idempotent per (source type, source id): re-posting
	// the same event returns the existing entry's id without writing.
	Post(ctx context.Context, tx *gorm.DB, entry Entry) (snowflake.ID, error)

	// Reverse posts a mirror-image entry for a previously posted one.
	// The original is never mutated.
	Reverse(ctx context.Context, tx *gorm.DB, entryID snowflake.ID, description string) (snowflake.ID, error)

	// Lines returns the posted lines of an entry.
	Lines(ctx context.Context, entryID snowflake.ID) ([]JournalLine, error)

	// TrialBalance sums debits and credits per account. Debits always
	// equal credits in aggregate; the report exists for reconciliation.
	TrialBalance(ctx context.Context) ([]AccountBalance, error)
}

type AccountBalance struct {
	AccountCode AccountCode     `json:"account_code"`
	Debits      decimal.Decimal `json:"debits"`
	Credits     decimal.Decimal `json:"credits"`
}
