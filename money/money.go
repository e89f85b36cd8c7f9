// Package money converts between XLM display amounts and integer stroops.
//
// Arithmetic runs on shopspring/decimal so that values such as 4.35 XLM
// convert to exactly 43,500,000 stroops instead of drifting below the
// boundary and flooring one stroop short.
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// StroopsPerXLM is the fixed multiplier between display units and stroops.
const StroopsPerXLM = 10_000_000

// MonthsPerYear turns a monthly salary into the annual base salary the contract stores.
const MonthsPerYear = 12

var (
	// ErrInvalidAmount is returned for text that is not a finite decimal number.
	ErrInvalidAmount = errors.New("amount is not a number")

	// ErrNotPositive is returned for zero or negative amounts.
	ErrNotPositive = errors.New("amount must be positive")

	// ErrTooLarge is returned when the stroop value does not fit in an int64.
	ErrTooLarge = errors.New("amount is too large")
)

var (
	stroopsPerXLM = decimal.NewFromInt(StroopsPerXLM)
	maxStroops    = decimal.NewFromInt(math.MaxInt64)
)

// Bounds on amount text accepted by ParseXLM. Rescaling a decimal costs
// time proportional to its exponent, so "1e50000000" must be refused before
// any arithmetic.
const (
	MaxAmountLength = 40
	MaxExponent     = 18
	MinExponent     = -30
)

// ParseXLM parses a positive, finite XLM amount.
func ParseXLM(raw string) (decimal.Decimal, error) {
	text := strings.TrimSpace(raw)
	if len(text) > MaxAmountLength {
		return decimal.Zero, fmt.Errorf("%w: longer than %d characters", ErrInvalidAmount, MaxAmountLength)
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if exp := d.Exponent(); exp > MaxExponent || exp < MinExponent {
		return decimal.Zero, fmt.Errorf("%w: exponent %d out of range", ErrInvalidAmount, exp)
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrNotPositive
	}
	return d, nil
}

// ToStroops returns floor(xlm * 10,000,000).
func ToStroops(xlm decimal.Decimal) (int64, error) {
	return floorStroops(xlm.Mul(stroopsPerXLM))
}

// AnnualStroops returns floor(monthly * 12 * 10,000,000).
func AnnualStroops(monthly decimal.Decimal) (int64, error) {
	return floorStroops(monthly.Mul(decimal.NewFromInt(MonthsPerYear)).Mul(stroopsPerXLM))
}

// StroopsToXLM converts an integer stroop string as printed by the CLI into XLM.
func StroopsToXLM(stroops string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(stroops))
	if err != nil {
		return 0, fmt.Errorf("parse stroops %q: %w", stroops, err)
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("parse stroops %q: not an integer", stroops)
	}
	xlm, _ := d.Div(stroopsPerXLM).Float64()
	return xlm, nil
}

func floorStroops(d decimal.Decimal) (int64, error) {
	d = d.Floor()
	if d.GreaterThan(maxStroops) {
		return 0, ErrTooLarge
	}
	return d.IntPart(), nil
}
