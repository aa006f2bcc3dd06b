package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rustyeddy/levtrader/events"
	"github.com/rustyeddy/levtrader/market"
)

// UpdatePrice overwrites the oracle price for asset. The override is
// otherwise unconditional, but zero is rejected with ErrInvalidPrice: it
// would become the entry price of the next position and make PnL
// undefined. Callers are not checked against the owner here; gate with
// IsOwner first.
func (e *Engine) UpdatePrice(ctx context.Context, asset market.Asset, price market.Price) error {
	if price == 0 {
		return fmt.Errorf("update price %s: %w", asset, ErrInvalidPrice)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tx := e.ledger.Begin()
	if err := tx.SetPriceOverride(asset, price); err != nil {
		return fmt.Errorf("update price %s: %w", asset, err)
	}
	if _, err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("update price %s: %w", asset, err)
	}

	e.log.Info("oracle price updated", zap.String("asset", string(asset)), zap.Uint64("price", uint64(price)))
	e.publish(ctx, events.PriceUpdated, events.PriceSet{Asset: string(asset), Price: uint64(price)})
	return nil
}

// OraclePrice returns the pushed price for asset, if there is one.
func (e *Engine) OraclePrice(ctx context.Context, asset market.Asset) (market.Price, bool, error) {
	return e.prices.Oracle(ctx, asset)
}

// Price is the price the engine would use for asset right now.
func (e *Engine) Price(ctx context.Context, asset market.Asset) (market.Price, error) {
	return e.prices.Price(ctx, asset)
}
