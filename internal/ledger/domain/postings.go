package domain

import (
	"fmt"

	loandomain "github.com/creditera/cobranza/internal/loan/domain"
	"github.com/shopspring/decimal"
)

// CashAccountFor maps a payment method to the account the money lands
// in: cash collected in person, bank for transfers and card payments.
func CashAccountFor(method loandomain.PaymentMethod) AccountCode {
	if method == loandomain.PaymentMethodCash {
		return AccountCodeCash
	}
	return AccountCodeBank
}

// PaymentLines builds the balanced posting for one payment slice:
// debit the cash/bank account for the full applied amount, credit the
// receivable for capital, and recognize interest and penalty income.
func PaymentLines(method loandomain.PaymentMethod, week int, applied, capital, interest, penalty decimal.Decimal) []Line {
	lines := []Line{
		{
			AccountCode: CashAccountFor(method),
			Debit:       applied,
			Description: fmt.Sprintf("payment received, week %d", week),
		},
	}
	if capital.IsPositive() {
		lines = append(lines, Line{
			AccountCode: AccountCodeLoansReceivable,
			Credit:      capital,
			Description: fmt.Sprintf("capital repayment, week %d", week),
		})
	}
	if interest.IsPositive() {
		lines = append(lines, Line{
			AccountCode: AccountCodeInterestIncome,
			Credit:      interest,
			Description: fmt.Sprintf("interest income, week %d", week),
		})
	}
	if penalty.IsPositive() {
		lines = append(lines, Line{
			AccountCode: AccountCodePenaltyIncome,
			Credit:      penalty,
			Description: fmt.Sprintf("penalty income, week %d", week),
		})
	}
	return lines
}

// DeliveryLines builds the two posting pairs for a financed product
// delivery: the customer now owes the sale price, and the goods leave
// inventory at cost.
func DeliveryLines(price, cost decimal.Decimal) []Line {
	return []Line{
		{AccountCode: AccountCodeLoansReceivable, Debit: price, Description: "financed product delivered"},
		{AccountCode: AccountCodeSalesRevenue, Credit: price, Description: "financed product sale"},
		{AccountCode: AccountCodeCostOfGoodsSold, Debit: cost, Description: "cost of delivered product"},
		{AccountCode: AccountCodeInventory, Credit: cost, Description: "inventory out"},
	}
}

// WriteOffLines expenses the remaining receivable of a written-off
// loan.
func WriteOffLines(outstanding decimal.Decimal) []Line {
	return []Line{
		{AccountCode: AccountCodeWriteOffExpense, Debit: outstanding, Description: "loan written off"},
		{AccountCode: AccountCodeLoansReceivable, Credit: outstanding, Description: "receivable written off"},
	}
}
