package types

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mkrogh/bookmarket-backend/pkg/enums"
)

// Money is an immutable amount in a single currency. All arithmetic is exact
// decimal arithmetic; operations across currencies are rejected.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency enums.Currency  `json:"currency"`
}

// NewMoney builds a Money value, rejecting negative amounts and unknown currencies.
func NewMoney(amount decimal.Decimal, currency enums.Currency) (Money, error) {
	if amount.IsNegative() {
		return Money{}, fmt.Errorf("money amount cannot be negative, got %s", amount)
	}
	if !currency.IsValid() {
		return Money{}, fmt.Errorf("invalid currency %q", currency)
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// MustMoney is a test/bootstrap helper that panics on invalid input.
func MustMoney(amount string, currency enums.Currency) Money {
	money, err := NewMoney(decimal.RequireFromString(amount), currency)
	if err != nil {
		panic(err)
	}
	return money
}

// Zero returns the zero amount in the given currency.
func Zero(currency enums.Currency) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

// Add returns the sum of two amounts in the same currency.
func (m Money) Add(other Money) (Money, error) {
	if err := m.requireSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

// Subtract returns the difference, rejecting results below zero.
func (m Money) Subtract(other Money) (Money, error) {
	if err := m.requireSameCurrency(other); err != nil {
		return Money{}, err
	}
	result := m.Amount.Sub(other.Amount)
	if result.IsNegative() {
		return Money{}, fmt.Errorf("money subtraction would go negative: %s - %s", m.Amount, other.Amount)
	}
	return Money{Amount: result, Currency: m.Currency}, nil
}

// Multiply scales the amount by a non-negative integer factor.
func (m Money) Multiply(factor int) (Money, error) {
	if factor < 0 {
		return Money{}, fmt.Errorf("money factor cannot be negative, got %d", factor)
	}
	return Money{Amount: m.Amount.Mul(decimal.NewFromInt(int64(factor))), Currency: m.Currency}, nil
}

// Equals reports structural equality of amount and currency.
func (m Money) Equals(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

// LessThan compares amounts in the same currency.
func (m Money) LessThan(other Money) (bool, error) {
	if err := m.requireSameCurrency(other); err != nil {
		return false, err
	}
	return m.Amount.LessThan(other.Amount), nil
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// String renders the amount with two decimals and the currency code.
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.StringFixed(2), m.Currency)
}

func (m Money) requireSameCurrency(other Money) error {
	if m.Currency != other.Currency {
		return fmt.Errorf("currency mismatch: %s vs %s", m.Currency, other.Currency)
	}
	return nil
}
