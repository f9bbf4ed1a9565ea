package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/creditera/cobranza/internal/ledger/domain"
	loandomain "github.com/creditera/cobranza/internal/loan/domain"
	pkgdb "github.com/creditera/cobranza/pkg/db"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const demoCustomerRef = "demo-customer"

// EnsureChartOfAccounts seeds the accounts the posting rules reference.
// Safe to run on every startup.
func EnsureChartOfAccounts(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	defaults := []ledgerdomain.Account{
		{Code: ledgerdomain.AccountCodeCash, Name: "Cash on hand", Type: ledgerdomain.Assets},
		{Code: ledgerdomain.AccountCodeBank, Name: "Bank", Type: ledgerdomain.Assets},
		{Code: ledgerdomain.AccountCodeLoansReceivable, Name: "Loans receivable", Type: ledgerdomain.Assets},
		{Code: ledgerdomain.AccountCodeInventory, Name: "Inventory", Type: ledgerdomain.Assets},
		{Code: ledgerdomain.AccountCodeInterestIncome, Name: "Interest income", Type: ledgerdomain.Income},
		{Code: ledgerdomain.AccountCodePenaltyIncome, Name: "Penalty income", Type: ledgerdomain.Income},
		{Code: ledgerdomain.AccountCodeSalesRevenue, Name: "Sales revenue", Type: ledgerdomain.Income},
		{Code: ledgerdomain.AccountCodeCostOfGoodsSold, Name: "Cost of goods sold", Type: ledgerdomain.Expense},
		{Code: ledgerdomain.AccountCodeWriteOffExpense, Name: "Write-off expense", Type: ledgerdomain.Expense},
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, account := range defaults {
			var existing ledgerdomain.Account
			err := tx.Where("code = ?", account.Code).First(&existing).Error
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			account.ID = node.Generate()
			if err := tx.Create(&account).Error; err != nil {
				// Another instance may have seeded concurrently.
				if pkgdb.IsDuplicateKeyErr(err) {
					continue
				}
				return err
			}
		}
		return nil
	})
}

// EnsureDemoLoan creates one delivered loan with a ten week schedule so
// a fresh local install has something to pay against. No-op once any
// loan exists.
func EnsureDemoLoan(db *gorm.DB, now time.Time) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&loandomain.Loan{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		loan := &loandomain.Loan{
			ID:          node.Generate(),
			CustomerRef: demoCustomerRef,
			Principal:   decimal.NewFromInt(1000),
			TermWeeks:   10,
			Currency:    "MXN",
			Status:      loandomain.LoanStatusDelivered,
			CreatedAt:   now.UTC(),
			UpdatedAt:   now.UTC(),
		}
		if err := tx.Create(loan).Error; err != nil {
			return err
		}

		capital := decimal.NewFromInt(100)
		interest := decimal.NewFromInt(30)
		firstDue := now.UTC().Truncate(24 * time.Hour).AddDate(0, 0, 7)
		installments := make([]*loandomain.Installment, 0, loan.TermWeeks)
		for week := 1; week <= loan.TermWeeks; week++ {
			installments = append(installments, &loandomain.Installment{
				ID:          node.Generate(),
				LoanID:      loan.ID,
				Week:        week,
				DueDate:     firstDue.AddDate(0, 0, 7*(week-1)),
				CapitalDue:  capital,
				InterestDue: interest,
				Status:      loandomain.InstallmentStatusPending,
				CreatedAt:   now.UTC(),
				UpdatedAt:   now.UTC(),
			})
		}
		return tx.Create(&installments).Error
	})
}
