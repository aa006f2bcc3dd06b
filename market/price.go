package market

import (
	"fmt"
	"math"
	"math/big"
	"math/bits"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the fixed-point denominator shared by prices and fund amounts
// (6 implied decimal digits: 1_000_000 == 1.00).
const Scale uint64 = 1_000_000

const scaleExp = -6

// Price is a quote in Scale units. 150000 is 0.15.
type Price uint64

// Amount is a fund or principal size in Scale units of its asset.
type Amount uint64

func (p Price) String() string  { return formatMicros(uint64(p)) }
func (a Amount) String() string { return formatMicros(uint64(a)) }

// Float is only meant for display and logging.
func (p Price) Float() float64 {
	return float64(p) / float64(Scale)
}

func formatMicros(v uint64) string {
	d := decimal.NewFromBigInt(new(big.Int).SetUint64(v), scaleExp)
	return d.StringFixed(6)
}

// ParsePrice accepts either a decimal quote ("0.15") or, when integer is
// true, a raw micros value ("150000").
func ParsePrice(s string, integer bool) (Price, error) {
	v, err := parseMicros(s, integer)
	return Price(v), err
}

// ParseAmount mirrors ParsePrice for amounts.
func ParseAmount(s string, integer bool) (Amount, error) {
	v, err := parseMicros(s, integer)
	return Amount(v), err
}

func parseMicros(s string, integer bool) (uint64, error) {
	s = strings.TrimSpace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("parse %q: negative value", s)
	}
	if !integer {
		d = d.Shift(6)
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("parse %q: more than 6 decimal places", s)
	}
	bi := d.BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("parse %q: out of range", s)
	}
	return bi.Uint64(), nil
}

// MulDiv returns floor(a*b/c) with a 128-bit intermediate product. ok is
// false when c is zero or the quotient does not fit in 64 bits.
func MulDiv(a, b, c uint64) (q uint64, ok bool) {
	if c == 0 {
		return 0, false
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return 0, false
	}
	q, _ = bits.Div64(hi, lo, c)
	return q, true
}

// AbsDiff is |a-b| without underflow.
func AbsDiff(a, b Price) uint64 {
	if a > b {
		return uint64(a - b)
	}
	return uint64(b - a)
}

// FitsInt64 reports whether v can be negated and stored as int64.
func FitsInt64(v uint64) bool {
	return v <= math.MaxInt64
}
