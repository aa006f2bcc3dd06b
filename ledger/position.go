package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/levtrader/market"
)

// Position is one leveraged bet on an asset's price.
//
// PnL, ExitPrice, Settlement and ClosedAt are only meaningful once the
// position is closed; PnL is nil exactly while Status is Open.
type Position struct {
	ID         uint64           `json:"id"`
	Trader     market.Account   `json:"trader"`
	Asset      market.Asset     `json:"asset"`
	EntryPrice market.Price     `json:"entry_price"`
	Amount     market.Amount    `json:"amount"`
	Direction  market.Direction `json:"direction"`
	Status     market.Status    `json:"status"`
	PnL        *int64           `json:"pnl,omitempty"`

	ExitPrice  market.Price  `json:"exit_price,omitempty"`
	Settlement market.Amount `json:"settlement,omitempty"`
	OpenedAt   time.Time     `json:"opened_at"`
	ClosedAt   time.Time     `json:"closed_at,omitempty"`
}

func (p Position) IsOpen() bool {
	return p.Status == market.Open
}

// Validate checks the structural invariants of a stored position.
func (p Position) Validate() error {
	if p.ID == 0 {
		return errors.New("position: id must be > 0")
	}
	if p.Trader == "" {
		return fmt.Errorf("position %d: trader is required", p.ID)
	}
	if p.Asset == "" {
		return fmt.Errorf("position %d: asset is required", p.ID)
	}
	if p.EntryPrice == 0 {
		return fmt.Errorf("position %d: entry price must be > 0", p.ID)
	}
	if !p.Direction.Valid() {
		return fmt.Errorf("position %d: invalid direction %d", p.ID, p.Direction)
	}
	switch p.Status {
	case market.Open:
		if p.PnL != nil {
			return fmt.Errorf("position %d: open position carries a pnl", p.ID)
		}
	case market.Closed:
		if p.PnL == nil {
			return fmt.Errorf("position %d: closed position has no pnl", p.ID)
		}
	default:
		return fmt.Errorf("position %d: invalid status %d", p.ID, p.Status)
	}
	return nil
}

// Stats summarizes positions for one trader or for the whole ledger.
type Stats struct {
	Total  uint64 `json:"total"`
	Active uint64 `json:"active"`
}
