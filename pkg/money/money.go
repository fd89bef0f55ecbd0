// Package money holds the fixed-point types used for prices, refund percentages
// and pricing multipliers. All arithmetic is integer based; rounding happens
// only where a caller asks for it.
package money

import (
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

const (
	moneyScale   = 2
	percentScale = 2
	rateScale    = 4
)

// Money is an amount in minor units (cents).
type Money int64

func FromCents(c int64) Money { return Money(c) }

func FromUnits(u int64) Money { return Money(u * pow10[moneyScale]) }

func Parse(s string) (Money, error) {
	v, err := parseFixed(s, moneyScale)
	return Money(v), err
}

// MustParse is for constants and tests.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Cents() int64 { return int64(m) }

func (m Money) String() string { return formatFixed(int64(m), moneyScale) }

func (m Money) Add(o Money) Money { return m + o }

func (m Money) Sub(o Money) Money { return m - o }

func (m Money) Mul(n int) Money { return m * Money(n) }

func (m Money) IsZero() bool { return m == 0 }

func (m Money) IsNegative() bool { return m < 0 }

// ApplyPercent returns round(m * p / 100, 2).
func (m Money) ApplyPercent(p Percent) Money {
	return Money(roundDiv(int64(m)*int64(p), 100*pow10[percentScale]))
}

// ApplyRate returns round(m * r, 2).
func (m Money) ApplyRate(r Rate) Money {
	return Money(roundDiv(int64(m)*int64(r), pow10[rateScale]))
}

// DivRound splits m into n parts, rounded to cents.
func (m Money) DivRound(n int) Money {
	if n <= 0 {
		return 0
	}
	return Money(roundDiv(int64(m), int64(n)))
}

func Sum(ms ...Money) Money {
	var total Money
	for _, m := range ms {
		total += m
	}
	return total
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	v, err := unmarshalJSONFixed(data, moneyScale)
	if err != nil {
		return err
	}
	*m = Money(v)
	return nil
}

func (m Money) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return marshalDecimal(int64(m), moneyScale)
}

func (m *Money) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	v, err := unmarshalDecimal(t, data, moneyScale)
	if err != nil {
		return err
	}
	*m = Money(v)
	return nil
}

// Percent is a percentage with two decimals, 8000 == 80.00%.
type Percent int64

func PercentFromInt(p int) Percent { return Percent(int64(p) * pow10[percentScale]) }

func ParsePercent(s string) (Percent, error) {
	v, err := parseFixed(s, percentScale)
	return Percent(v), err
}

func (p Percent) String() string { return formatFixed(int64(p), percentScale) }

func (p Percent) Valid() bool { return p >= 0 && p <= PercentFromInt(100) }

func (p Percent) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

func (p *Percent) UnmarshalJSON(data []byte) error {
	v, err := unmarshalJSONFixed(data, percentScale)
	if err != nil {
		return err
	}
	*p = Percent(v)
	return nil
}

func (p Percent) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return marshalDecimal(int64(p), percentScale)
}

func (p *Percent) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	v, err := unmarshalDecimal(t, data, percentScale)
	if err != nil {
		return err
	}
	*p = Percent(v)
	return nil
}

// Rate is a multiplier with four decimals, 12500 == 1.2500.
type Rate int64

const RateOne Rate = 10000

func ParseRate(s string) (Rate, error) {
	v, err := parseFixed(s, rateScale)
	return Rate(v), err
}

// Ratio returns num/den as a Rate. A non-positive denominator yields RateOne.
func Ratio(num, den Money) Rate {
	if den <= 0 {
		return RateOne
	}
	return Rate(roundDiv(int64(num)*pow10[rateScale], int64(den)))
}

func (r Rate) String() string { return formatFixed(int64(r), rateScale) }

func (r Rate) MarshalJSON() ([]byte, error) {
	return []byte(`"` + r.String() + `"`), nil
}

func (r *Rate) UnmarshalJSON(data []byte) error {
	v, err := unmarshalJSONFixed(data, rateScale)
	if err != nil {
		return err
	}
	*r = Rate(v)
	return nil
}

func (r Rate) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return marshalDecimal(int64(r), rateScale)
}

func (r *Rate) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	v, err := unmarshalDecimal(t, data, rateScale)
	if err != nil {
		return err
	}
	*r = Rate(v)
	return nil
}
