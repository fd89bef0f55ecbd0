package money

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

var ErrInvalidAmount = errors.New("invalid decimal amount")

var pow10 = [...]int64{1, 10, 100, 1000, 10000, 100000}

// formatFixed renders v, interpreted with scale fractional digits.
func formatFixed(v int64, scale int) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	unit := pow10[scale]
	if scale == 0 {
		return sign + strconv.FormatInt(v, 10)
	}
	return fmt.Sprintf("%s%d.%0*d", sign, v/unit, scale, v%unit)
}

// parseFixed parses a plain decimal literal into an integer with scale fractional digits.
// Extra fractional digits are rounded half away from zero.
func parseFixed(s string, scale int) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return ratToScaled(r, scale)
}

func ratToScaled(r *big.Rat, scale int) (int64, error) {
	scaled := new(big.Rat).Mul(r, new(big.Rat).SetInt64(pow10[scale]))
	num := new(big.Int).Set(scaled.Num())
	den := scaled.Denom()

	neg := num.Sign() < 0
	num.Abs(num)
	q, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	if new(big.Int).Mul(rem, big.NewInt(2)).Cmp(den) >= 0 {
		q.Add(q, big.NewInt(1))
	}
	if neg {
		q.Neg(q)
	}
	if !q.IsInt64() {
		return 0, fmt.Errorf("%w: out of range", ErrInvalidAmount)
	}
	return q.Int64(), nil
}

// roundDiv divides a by b rounding half away from zero. b must be positive.
func roundDiv(a, b int64) int64 {
	if a >= 0 {
		return (a + b/2) / b
	}
	return -((-a + b/2) / b)
}

func marshalDecimal(v int64, scale int) (bsontype.Type, []byte, error) {
	d, err := primitive.ParseDecimal128(formatFixed(v, scale))
	if err != nil {
		return 0, nil, err
	}
	return bson.MarshalValue(d)
}

func unmarshalDecimal(t bsontype.Type, data []byte, scale int) (int64, error) {
	switch t {
	case bsontype.Decimal128:
		d, _, ok := bsoncore.ReadDecimal128(data)
		if !ok {
			return 0, fmt.Errorf("%w: truncated decimal128", ErrInvalidAmount)
		}
		bi, exp, err := d.BigInt()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
		}
		r := new(big.Rat).SetInt(bi)
		if exp > 0 {
			r.Mul(r, new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil)))
		} else if exp < 0 {
			r.Quo(r, new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-exp)), nil)))
		}
		return ratToScaled(r, scale)
	case bsontype.Int64:
		v, _, ok := bsoncore.ReadInt64(data)
		if !ok {
			return 0, fmt.Errorf("%w: truncated int64", ErrInvalidAmount)
		}
		return v * pow10[scale], nil
	case bsontype.Int32:
		v, _, ok := bsoncore.ReadInt32(data)
		if !ok {
			return 0, fmt.Errorf("%w: truncated int32", ErrInvalidAmount)
		}
		return int64(v) * pow10[scale], nil
	case bsontype.Null:
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: unsupported bson type %s", ErrInvalidAmount, t)
	}
}

func unmarshalJSONFixed(data []byte, scale int) (int64, error) {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		return 0, nil
	}
	return parseFixed(s, scale)
}
