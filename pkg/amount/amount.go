// Package amount holds integer token amounts in the funding token's base unit.
package amount

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNotInteger = errors.New("amount must be a whole number of base units")
	ErrNegative   = errors.New("amount must not be negative")
	ErrPercentSum = errors.New("percentages must total exactly 100")
)

var hundred = decimal.NewFromInt(100)

// Validate rejects fractional and negative amounts
func Validate(a decimal.Decimal) error {
	if a.IsNegative() {
		return ErrNegative
	}
	if !a.IsInteger() {
		return ErrNotInteger
	}
	return nil
}

// Parse reads a base-10 integer amount
func Parse(s string) (decimal.Decimal, error) {
	a, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if err := Validate(a); err != nil {
		return decimal.Zero, err
	}
	return a, nil
}

// SplitByPercent divides total into tranches. Each tranche is truncated and
// the last one takes the remainder, so the parts always sum to total.
func SplitByPercent(total decimal.Decimal, percents []int) ([]decimal.Decimal, error) {
	sum := 0
	for _, p := range percents {
		if p <= 0 || p > 100 {
			return nil, fmt.Errorf("percentage %d out of range", p)
		}
		sum += p
	}
	if sum != 100 {
		return nil, ErrPercentSum
	}

	parts := make([]decimal.Decimal, len(percents))
	allocated := decimal.Zero
	for i, p := range percents {
		if i == len(percents)-1 {
			parts[i] = total.Sub(allocated)
			break
		}
		parts[i] = PercentOf(total, decimal.NewFromInt(int64(p)))
		allocated = allocated.Add(parts[i])
	}
	return parts, nil
}

// PercentOf returns a*pct/100 truncated to whole units
func PercentOf(a, pct decimal.Decimal) decimal.Decimal {
	q, _ := a.Mul(pct).QuoRem(hundred, 0)
	return q
}

// ProRata returns a*num/den truncated to whole units; zero when den is zero
func ProRata(a, num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	q, _ := a.Mul(num).QuoRem(den, 0)
	return q
}

// Min returns the smaller amount
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
