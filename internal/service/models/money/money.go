package money

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrNegativeAmount = errors.New("money amount cannot be negative")
	ErrOverflow       = errors.New("money arithmetic overflow")
	ErrZeroDivisor    = errors.New("money ratio divisor must be positive")
)

// Money is a monetary amount in minor units (e.g. cents). The platform is
// single-currency, so no currency code is carried. Equality is value-based.
type Money int64

// New creates a Money value, rejecting negative amounts. Signed deltas are
// handled separately via Delta.
func New(amount int64) (Money, error) {
	if amount < 0 {
		return 0, fmt.Errorf("%w: %d", ErrNegativeAmount, amount)
	}

	return Money(amount), nil
}

// MustNew is New that panics; intended for constants and tests.
func MustNew(amount int64) Money {
	m, err := New(amount)
	if err != nil {
		panic(err)
	}

	return m
}

// Int64 returns the amount in minor units.
func (m Money) Int64() int64 {
	return int64(m)
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m == 0
}

// Add returns m + other, failing on int64 overflow.
func (m Money) Add(other Money) (Money, error) {
	if int64(m) > math.MaxInt64-int64(other) {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, m, other)
	}

	return m + other, nil
}

// Sub returns m - other, failing if the result would be negative.
func (m Money) Sub(other Money) (Money, error) {
	if other > m {
		return 0, fmt.Errorf("%w: %d - %d", ErrNegativeAmount, m, other)
	}

	return m - other, nil
}

// MulQuantity returns m * qty, failing on overflow.
func (m Money) MulQuantity(qty int) (Money, error) {
	if qty < 0 {
		return 0, fmt.Errorf("%w: quantity %d", ErrNegativeAmount, qty)
	}
	if qty == 0 || m == 0 {
		return 0, nil
	}
	if int64(m) > math.MaxInt64/int64(qty) {
		return 0, fmt.Errorf("%w: %d * %d", ErrOverflow, m, qty)
	}

	return m * Money(qty), nil
}

// Ratio computes floor(m * part / whole) using integer cross multiplication.
// The floor is load-bearing: proportional refunds must round in the platform's
// favour, never crediting the buyer more than the proportion.
func (m Money) Ratio(part, whole Money) (Money, error) {
	if whole <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrZeroDivisor, whole)
	}
	if part > whole {
		return 0, fmt.Errorf("%w: part %d exceeds whole %d", ErrNegativeAmount, part, whole)
	}
	if m == 0 || part == 0 {
		return 0, nil
	}
	if int64(m) > math.MaxInt64/int64(part) {
		// Fall back to splitting the product to avoid overflow on large orders.
		quot := int64(m) / int64(whole)
		rem := int64(m) % int64(whole)

		return Money(quot*int64(part) + rem*int64(part)/int64(whole)), nil
	}

	return m * part / whole, nil
}
