// Package autotrade layers simple policies over the engine: which side
// to take on a new position, and when an open position should be closed
// on its own.
package autotrade

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rustyeddy/levtrader/ledger"
	"github.com/rustyeddy/levtrader/market"
)

// Auto-close thresholds on a position's live PnL.
const (
	StopLoss   int64 = -500
	TakeProfit int64 = 1000
)

// Close reasons written to the journal.
const (
	ReasonStopLoss   = "StopLoss"
	ReasonTakeProfit = "TakeProfit"
)

// ShouldAutoClose reports whether pnl crossed the stop-loss or the
// take-profit threshold. Both bounds are exclusive.
func ShouldAutoClose(pnl int64) bool {
	return pnl < StopLoss || pnl > TakeProfit
}

// Engine is the slice of engine.Engine the auto trader drives.
type Engine interface {
	Price(ctx context.Context, asset market.Asset) (market.Price, error)
	OpenRecorded(ctx context.Context, trader market.Account, asset market.Asset, amount market.Amount, dir market.Direction) (uint64, error)
	Close(ctx context.Context, id uint64, reason string) (int64, error)
	UnrealizedPnL(ctx context.Context, id uint64) (int64, error)
	TraderActivePositions(ctx context.Context, trader market.Account) ([]ledger.Position, error)
	RecordTransaction(ctx context.Context, trader market.Account, txID uint64) error
}

type Trader struct {
	engine   Engine
	strategy string
	log      *zap.Logger
}

// New returns an auto trader. defaultStrategy is used when a call names
// no strategy.
func New(e Engine, defaultStrategy string, log *zap.Logger) *Trader {
	if log == nil {
		log = zap.NewNop()
	}
	if defaultStrategy == "" {
		defaultStrategy = DefaultStrategy
	}
	return &Trader{engine: e, strategy: defaultStrategy, log: log.Named("autotrade")}
}

// AutoTrade opens a position on the side chosen by strategy and records
// it in the trader's transaction history. Both land in one ledger batch,
// so a failure leaves neither behind.
func (t *Trader) AutoTrade(ctx context.Context, trader market.Account, asset market.Asset, amount market.Amount, strategy string) (uint64, error) {
	if strategy == "" {
		strategy = t.strategy
	}
	px, err := t.engine.Price(ctx, asset)
	if err != nil {
		return 0, fmt.Errorf("auto trade: %w", err)
	}
	dir := DecideDirection(strategy, asset, px)

	id, err := t.engine.OpenRecorded(ctx, trader, asset, amount, dir)
	if err != nil {
		return 0, fmt.Errorf("auto trade: %w", err)
	}

	t.log.Info("auto trade",
		zap.Uint64("position_id", id),
		zap.String("trader", string(trader)),
		zap.String("strategy", strategy),
		zap.String("direction", dir.String()),
	)
	return id, nil
}

// AutoClosePositions closes every open position of trader whose live PnL
// crossed a threshold, in the order the positions were opened. It returns
// the closed ids, an empty slice when nothing matched. The first failure
// stops the sweep; ids closed before it are still returned.
func (t *Trader) AutoClosePositions(ctx context.Context, trader market.Account) ([]uint64, error) {
	closed := []uint64{}

	open, err := t.engine.TraderActivePositions(ctx, trader)
	if err != nil {
		return closed, fmt.Errorf("auto close: %w", err)
	}

	for _, p := range open {
		pnl, err := t.engine.UnrealizedPnL(ctx, p.ID)
		if err != nil {
			return closed, fmt.Errorf("auto close: %w", err)
		}
		if !ShouldAutoClose(pnl) {
			continue
		}

		reason := ReasonTakeProfit
		if pnl < StopLoss {
			reason = ReasonStopLoss
		}
		if _, err := t.engine.Close(ctx, p.ID, reason); err != nil {
			return closed, fmt.Errorf("auto close: %w", err)
		}
		closed = append(closed, p.ID)

		if err := t.engine.RecordTransaction(ctx, trader, p.ID); err != nil {
			return closed, fmt.Errorf("auto close: position %d closed: %w", p.ID, err)
		}

		t.log.Info("auto closed",
			zap.Uint64("position_id", p.ID),
			zap.String("trader", string(trader)),
			zap.Int64("pnl", pnl),
			zap.String("reason", reason),
		)
	}
	return closed, nil
}
