// Package pricing resolves the current price of an asset: an oracle
// override when one has been pushed, otherwise a static reference table.
package pricing

import (
	"context"
	"fmt"

	"github.com/rustyeddy/levtrader/market"
)

// Source is anything that can quote an asset.
type Source interface {
	Price(ctx context.Context, asset market.Asset) (market.Price, error)
}

// OverrideReader exposes the oracle overrides kept in the ledger.
type OverrideReader interface {
	PriceOverride(ctx context.Context, asset market.Asset) (market.Price, bool, error)
}

// Fallback is quoted for any asset missing from the static table.
const Fallback market.Price = 150_000

var static = map[market.Asset]market.Price{
	market.XLM:  150_000,
	market.USDC: 1_000_000,
	market.USDT: 1_000_000,
	market.BTC:  45_000_000,
	market.ETH:  3_000_000,
}

// Default returns the static reference price for asset. It never fails.
func Default(asset market.Asset) market.Price {
	if p, ok := static[asset]; ok {
		return p
	}
	return Fallback
}

// Known lists the assets in the static table, in display order.
func Known() []market.Asset {
	return []market.Asset{market.XLM, market.USDC, market.USDT, market.BTC, market.ETH}
}

// StaticSource quotes the reference table only.
type StaticSource struct{}

func (StaticSource) Price(_ context.Context, asset market.Asset) (market.Price, error) {
	return Default(asset), nil
}

// Resolver prefers oracle overrides and falls back to the static table.
// Only a storage failure is reported as an error.
type Resolver struct {
	overrides OverrideReader
	fallback  Source
}

func NewResolver(overrides OverrideReader) *Resolver {
	return &Resolver{overrides: overrides, fallback: StaticSource{}}
}

// WithFallback swaps the source used when no override exists.
func (r *Resolver) WithFallback(s Source) *Resolver {
	r.fallback = s
	return r
}

func (r *Resolver) Price(ctx context.Context, asset market.Asset) (market.Price, error) {
	p, ok, err := r.Oracle(ctx, asset)
	if err != nil {
		return 0, err
	}
	if ok {
		return p, nil
	}
	return r.fallback.Price(ctx, asset)
}

// Oracle returns the override for asset, if any.
func (r *Resolver) Oracle(ctx context.Context, asset market.Asset) (market.Price, bool, error) {
	if r.overrides == nil {
		return 0, false, nil
	}
	p, ok, err := r.overrides.PriceOverride(ctx, asset)
	if err != nil {
		return 0, false, fmt.Errorf("price override %s: %w", asset, err)
	}
	return p, ok, nil
}
