// Package money centralizes monetary arithmetic for the loan book.
// Every amount that is computed, compared, or split goes through
// decimal.Decimal; native floats are never used for money.
package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrNoWeights = errors.New("money: split requires at least one positive weight")

// Zero is the zero amount.
var Zero = decimal.Zero

// Round2 rounds to two decimal places, half up. This is the single
// rounding rule of the system; every monetary value persisted or
// posted has passed through it.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Split apportions total across weighted buckets. Parts always sum to
// exactly total: each part is rounded to cents and the leftover cents
// land in the first bucket. A zero-weight bucket receives zero.
func Split(total decimal.Decimal, weights ...decimal.Decimal) ([]decimal.Decimal, error) {
	if len(weights) == 0 {
		return nil, ErrNoWeights
	}

	sum := decimal.Zero
	for _, w := range weights {
		sum = sum.Add(w)
	}
	if !sum.IsPositive() {
		return nil, ErrNoWeights
	}

	parts := make([]decimal.Decimal, len(weights))
	allocated := decimal.Zero
	for i, w := range weights {
		parts[i] = Round2(total.Mul(w).Div(sum))
		allocated = allocated.Add(parts[i])
	}

	// Remainder cents go to the first bucket.
	parts[0] = parts[0].Add(total.Sub(allocated))
	return parts, nil
}
