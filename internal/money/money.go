package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Precision is the number of fractional digits carried by every Amount.
// All arithmetic rounds half-up to this precision so that independently
// computed totals agree bit-for-bit.
const Precision = 2

// DefaultMaxAmount is the guard-rail ceiling for a single amount. Values
// above it are rejected at construction.
var DefaultMaxAmount = decimal.RequireFromString("999999999999.99")

// InvalidAmountError is returned when an amount cannot be constructed.
type InvalidAmountError struct {
	Value  string
	Reason string
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount %q: %s", e.Value, e.Reason)
}

// Amount is a fixed-precision monetary value. The zero value is 0.00.
type Amount struct {
	d decimal.Decimal
}

// Zero is the additive identity.
func Zero() Amount {
	return Amount{d: decimal.Zero}
}

// New builds an Amount from a decimal, rounding half-up to Precision.
func New(d decimal.Decimal) Amount {
	return Amount{d: d.Round(Precision)}
}

// FromFloat builds an Amount from a float64, rounding half-up to Precision.
func FromFloat(f float64) Amount {
	return Amount{d: decimal.NewFromFloat(f).Round(Precision)}
}

// Parse builds an Amount from its textual representation.
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, &InvalidAmountError{Value: s, Reason: "not a decimal number"}
	}
	return Amount{d: d.Round(Precision)}, nil
}

// ParsePositive builds an Amount that must be strictly positive and within
// the guard-rail ceiling. This is the constructor for transaction amounts.
func ParsePositive(s string) (Amount, error) {
	a, err := Parse(s)
	if err != nil {
		return Amount{}, err
	}
	if !a.IsPositive() {
		return Amount{}, &InvalidAmountError{Value: s, Reason: "must be greater than zero"}
	}
	if a.d.GreaterThan(DefaultMaxAmount) {
		return Amount{}, &InvalidAmountError{Value: s, Reason: "exceeds maximum allowed amount"}
	}
	return a, nil
}

// Add returns a+b at Precision.
func (a Amount) Add(b Amount) Amount {
	return Amount{d: a.d.Add(b.d).Round(Precision)}
}

// Sub returns a-b at Precision.
func (a Amount) Sub(b Amount) Amount {
	return Amount{d: a.d.Sub(b.d).Round(Precision)}
}

// Neg returns -a.
func (a Amount) Neg() Amount {
	return Amount{d: a.d.Neg()}
}

// Abs returns |a|.
func (a Amount) Abs() Amount {
	return Amount{d: a.d.Abs()}
}

// MulRate applies a rate (e.g. an annual interest rate pro-rated by time)
// and rounds half-up to Precision at the end of the multiplication, not in
// the middle, so day-count math keeps full precision until posting.
func (a Amount) MulRate(rate decimal.Decimal) Amount {
	return Amount{d: a.d.Mul(rate).Round(Precision)}
}

// Cmp compares on the rounded representation: -1 if a<b, 0 if equal, 1 if a>b.
func (a Amount) Cmp(b Amount) int {
	return a.d.Cmp(b.d)
}

// Equal reports a == b on the rounded representation.
func (a Amount) Equal(b Amount) bool { return a.d.Equal(b.d) }

// LessThan reports a < b.
func (a Amount) LessThan(b Amount) bool { return a.d.LessThan(b.d) }

// GreaterThan reports a > b.
func (a Amount) GreaterThan(b Amount) bool { return a.d.GreaterThan(b.d) }

// IsZero reports a == 0.00.
func (a Amount) IsZero() bool { return a.d.IsZero() }

// IsPositive reports a > 0.
func (a Amount) IsPositive() bool { return a.d.IsPositive() }

// IsNegative reports a < 0.
func (a Amount) IsNegative() bool { return a.d.IsNegative() }

// Decimal exposes the underlying decimal for rate math.
func (a Amount) Decimal() decimal.Decimal { return a.d }

// String renders the canonical fixed-point form, e.g. "125000.00".
func (a Amount) String() string {
	return a.d.StringFixed(Precision)
}

// MarshalJSON encodes the amount as a JSON string to avoid float parsing
// on the wire.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts either a JSON string or a bare number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
