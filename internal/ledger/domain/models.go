package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type AccountType string

const (
	Assets    AccountType = "assets"
	Liability AccountType = "liability"
	Income    AccountType = "income"
	Expense   AccountType = "expense"
	Equity    AccountType = "equity"
)

type AccountCode string

const (
	// Assets
	AccountCodeCash            AccountCode = "cash"
	AccountCodeBank            AccountCode = "bank"
	AccountCodeLoansReceivable AccountCode = "loans_receivable"
	AccountCodeInventory       AccountCode = "inventory"

	// Income
	AccountCodeInterestIncome AccountCode = "interest_income"
	AccountCodePenaltyIncome  AccountCode = "penalty_income"
	AccountCodeSalesRevenue   AccountCode = "sales_revenue"

	// Expenses
	AccountCodeCostOfGoodsSold AccountCode = "cogs"
	AccountCodeWriteOffExpense AccountCode = "write_off_expense"
)

type SourceType string

const (
	SourceTypePayment    SourceType = "payment"
	SourceTypePenalty    SourceType = "penalty"
	SourceTypeDelivery   SourceType = "delivery"
	SourceTypeWriteOff   SourceType = "write_off"
	SourceTypeReversal   SourceType = "reversal"
	SourceTypeAdjustment SourceType = "adjustment"
)

// Account is a chart-of-accounts entry. Static reference data: seeded
// at startup, read by the poster, never mutated by the core.
type Account struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Code      AccountCode  `gorm:"type:text;not null;uniqueIndex:ux_accounts_code"`
	Name      string       `gorm:"type:text;not null"`
	Type      AccountType  `gorm:"type:text;not null"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Account) TableName() string { return "accounts" }

// JournalEntry is the immutable header for one posted financial event.
// Corrections are posted as reversing entries, never as updates.
type JournalEntry struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	SourceType  SourceType   `gorm:"type:text;not null;index;uniqueIndex:ux_journal_entries_source,priority:1"`
	SourceID    snowflake.ID `gorm:"not null;uniqueIndex:ux_journal_entries_source,priority:2"`
	Currency    string       `gorm:"type:text;not null"`
	Description string       `gorm:"type:text"`
	CreatedBy   string       `gorm:"type:text"`
	OccurredAt  time.Time    `gorm:"not null"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (JournalEntry) TableName() string { return "journal_entries" }

// JournalLine is one leg of a double-entry posting. Exactly one of
// Debit and Credit is non-zero.
type JournalLine struct {
	ID             snowflake.ID    `gorm:"primaryKey"`
	JournalEntryID snowflake.ID    `gorm:"not null;index"`
	AccountCode    AccountCode     `gorm:"type:text;not null;index"`
	Debit          decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	Credit         decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	Description    string          `gorm:"type:text"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (JournalLine) TableName() string { return "journal_lines" }

// Line is the posting input before IDs are assigned.
type Line struct {
	AccountCode AccountCode
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

// Entry is the input to the generic posting primitive.
type Entry struct {
	SourceType  SourceType
	SourceID    snowflake.ID
	Currency    string
	Description string
	CreatedBy   string
	OccurredAt  time.Time
	Lines       []Line
}
