package aggregate

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.New(100, 0)

// Percentage is a ratio expressed in percent, rounded to two decimals.
// The zero value is "not set", which is what a zero denominator yields.
type Percentage struct {
	value decimal.Decimal
	set   bool
}

// percentOf returns part/whole*100. A zero whole yields an unset Percentage.
func percentOf(part, whole int64) Percentage {
	if whole == 0 {
		return Percentage{}
	}
	v := decimal.New(part, 0).Mul(hundred).DivRound(decimal.New(whole, 0), 2)
	return Percentage{value: v, set: true}
}

// Value returns the percentage and whether it is set.
func (p Percentage) Value() (float64, bool) {
	if !p.set {
		return 0, false
	}
	return p.value.InexactFloat64(), true
}

func (p Percentage) IsSet() bool {
	return p.set
}

// String renders the value with two decimals, or "n/a" when unset.
func (p Percentage) String() string {
	if !p.set {
		return "n/a"
	}
	return p.value.StringFixed(2)
}

// MarshalJSON encodes an unset percentage as null.
func (p Percentage) MarshalJSON() ([]byte, error) {
	if !p.set {
		return []byte("null"), nil
	}
	return []byte(p.value.StringFixed(2)), nil
}
