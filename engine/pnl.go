package engine

import (
	"math"

	"github.com/rustyeddy/levtrader/market"
)

// PnL is the signed result of holding amount from entry to current.
//
// The magnitude is floor(|current-entry| * amount / entry), computed with
// a 128-bit intermediate. Longs gain when the price rose, shorts when it
// fell; anything else, including no move, is a loss of that magnitude.
func PnL(dir market.Direction, entry, current market.Price, amount market.Amount) (int64, error) {
	if entry == 0 {
		return 0, ErrInvalidPrice
	}
	if !dir.Valid() {
		return 0, ErrInvalidDirection
	}

	mag, ok := market.MulDiv(market.AbsDiff(current, entry), uint64(amount), uint64(entry))
	if !ok || !market.FitsInt64(mag) {
		return 0, ErrOverflow
	}

	gain := (dir == market.Long && current > entry) || (dir == market.Short && current < entry)
	if gain {
		return int64(mag), nil
	}
	return -int64(mag), nil
}

// Settlement is what a closed position pays back: the principal plus a
// gain, or minus a loss, never below zero.
func Settlement(amount market.Amount, pnl int64) (market.Amount, error) {
	if pnl >= 0 {
		gain := uint64(pnl)
		if gain > math.MaxUint64-uint64(amount) {
			return 0, ErrOverflow
		}
		return amount + market.Amount(gain), nil
	}

	// two's complement: this is |pnl| even for math.MinInt64
	loss := uint64(-pnl)
	if loss >= uint64(amount) {
		return 0, nil
	}
	return amount - market.Amount(loss), nil
}
