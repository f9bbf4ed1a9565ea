package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSourceType = errors.New("ledger: source type is required")
	ErrInvalidSourceID   = errors.New("ledger: source id is required")
	ErrInvalidCurrency   = errors.New("ledger: currency is required")
	ErrInvalidOccurredAt = errors.New("ledger: occurred_at is required")
	ErrInvalidEntryLines = errors.New("ledger: an entry needs at least two lines")
	ErrInvalidAccount    = errors.New("ledger: line is missing an account code")
	ErrInvalidLineAmount = errors.New("ledger: line must carry exactly one positive side")
	ErrUnbalancedEntry   = errors.New("ledger: debits do not equal credits")
)

// ValidateBalanced checks the double-entry invariant: every line has
// exactly one positive side, and total debits equal total credits.
// Posting never proceeds past a failure here; an unbalanced entry is
// fatal for the surrounding transaction.
func ValidateBalanced(lines []Line) error {
	if len(lines) < 2 {
		return ErrInvalidEntryLines
	}

	debits := decimal.Zero
	credits := decimal.Zero
	for _, line := range lines {
		if line.AccountCode == "" {
			return ErrInvalidAccount
		}
		debitSet := line.Debit.IsPositive()
		creditSet := line.Credit.IsPositive()
		if debitSet == creditSet {
			return ErrInvalidLineAmount
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return ErrInvalidLineAmount
		}
		debits = debits.Add(line.Debit)
		credits = credits.Add(line.Credit)
	}

	if !debits.Equal(credits) {
		return ErrUnbalancedEntry
	}
	return nil
}

// Validate checks the entry header and its lines.
func (e Entry) Validate() error {
	if e.SourceType == "" {
		return ErrInvalidSourceType
	}
	if e.SourceID == 0 {
		return ErrInvalidSourceID
	}
	if e.Currency == "" {
		return ErrInvalidCurrency
	}
	if e.OccurredAt.IsZero() {
		return ErrInvalidOccurredAt
	}
	return ValidateBalanced(e.Lines)
}
