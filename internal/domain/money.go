/**
 * @description
 * This file defines the Money value type used for all balances and amounts in
 * the ledger. Money is a fixed-point decimal with exactly two fractional
 * digits, backed by shopspring/decimal so that arithmetic is exact and never
 * goes through binary floating point.
 *
 * @notes
 * - Amounts cross the API as strings (e.g. "25.50") and are stored in
 *   NUMERIC(18,2) columns; Money converts at those boundaries only and all
 *   arithmetic happens on the decimal representation.
 * - Parsing rejects values with more than two fractional digits so that a
 *   parsed value always formats back to the same string.
 *
 * @dependencies
 * - github.com/shopspring/decimal: Exact decimal arithmetic.
 */

package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Money is a monetary value with two fractional digits. The zero value is
// 0.00 and is ready to use.
type Money struct {
	amount decimal.Decimal
}

// NewMoneyFromString parses a decimal string such as "100", "0.5" or "25.50"
// into a Money. It fails on non-numeric input and on values that carry more
// than two fractional digits, so parse/format round-trips are lossless.
func NewMoneyFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid monetary amount %q: %w", s, err)
	}
	if !d.Equal(d.Truncate(2)) {
		return Money{}, fmt.Errorf("invalid monetary amount %q: more than two fractional digits", s)
	}
	return Money{amount: d.Round(2)}, nil
}

// MoneyFromDecimal converts an arbitrary decimal into Money, rounding to two
// fractional digits. Intended for values that are already scale-2 (database
// columns); rounding only normalizes trailing zeros.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{amount: d.Round(2)}
}

// ZeroMoney returns 0.00.
func ZeroMoney() Money {
	return Money{}
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount)}
}

// Sub returns m - other.
func (m Money) Sub(other Money) Money {
	return Money{amount: m.amount.Sub(other.amount)}
}

// Cmp compares m against other: -1 if m < other, 0 if equal, +1 if m > other.
func (m Money) Cmp(other Money) int {
	return m.amount.Cmp(other.amount)
}

// Equal reports whether the two values are numerically equal.
func (m Money) Equal(other Money) bool {
	return m.amount.Equal(other.amount)
}

// IsPositive reports whether m > 0.
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// IsNegative reports whether m < 0.
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// String formats the value with exactly two fractional digits, e.g. "60.00".
func (m Money) String() string {
	return m.amount.StringFixed(2)
}

// MarshalJSON encodes the value as a quoted decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts either a quoted decimal string or a bare JSON number.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := string(data)
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	parsed, err := NewMoneyFromString(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value implements driver.Valuer so Money can be written to NUMERIC columns.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner so Money can be read back from NUMERIC columns.
func (m *Money) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*m = ZeroMoney()
		return nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("cannot scan %q into Money: %w", v, err)
		}
		*m = MoneyFromDecimal(d)
		return nil
	case []byte:
		d, err := decimal.NewFromString(string(v))
		if err != nil {
			return fmt.Errorf("cannot scan %q into Money: %w", v, err)
		}
		*m = MoneyFromDecimal(d)
		return nil
	case int64:
		*m = MoneyFromDecimal(decimal.NewFromInt(v))
		return nil
	case float64:
		// Some drivers hand numerics back as float64; go through the string
		// form to avoid binary rounding artifacts.
		d, err := decimal.NewFromString(strconv.FormatFloat(v, 'f', -1, 64))
		if err != nil {
			return fmt.Errorf("cannot scan %v into Money: %w", v, err)
		}
		*m = MoneyFromDecimal(d)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Money", src)
	}
}
