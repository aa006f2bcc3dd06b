// Package ledger is the typed, transactional view of everything the
// engine persists: positions, per-trader accounts, the id counter, the
// transaction histories and the oracle price overrides.
//
// Reads go straight to the store. Writes are staged on a Tx, which sees
// its own writes, and land in one store.Apply call on Commit.
package ledger

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/rustyeddy/levtrader/market"
	"github.com/rustyeddy/levtrader/store"
)

// Ledger owns the persisted state. Construct one per process with New.
type Ledger struct {
	store store.Store
}

func New(s store.Store) *Ledger {
	return &Ledger{store: s}
}

// Close releases the underlying store.
func (l *Ledger) Close() error {
	return l.store.Close()
}

// Begin starts a new write batch.
func (l *Ledger) Begin() *Tx {
	return &Tx{l: l, writes: make(map[string][]byte)}
}

// Undo holds the values a committed batch overwrote.
type Undo []store.Entry

// Revert restores the values captured by a Commit.
func (l *Ledger) Revert(ctx context.Context, u Undo) error {
	if len(u) == 0 {
		return nil
	}
	if err := l.store.Apply(ctx, u); err != nil {
		return fmt.Errorf("ledger revert: %w", err)
	}
	return nil
}

// Read helpers. Each runs against a fresh, empty batch.

func (l *Ledger) Position(ctx context.Context, id uint64) (Position, bool, error) {
	return l.Begin().Position(ctx, id)
}

func (l *Ledger) NextID(ctx context.Context) (uint64, error) {
	return l.Begin().NextID(ctx)
}

func (l *Ledger) TraderPositions(ctx context.Context, a market.Account) ([]uint64, error) {
	return l.Begin().TraderPositions(ctx, a)
}

func (l *Ledger) TraderTxs(ctx context.Context, a market.Account) ([]uint64, error) {
	return l.Begin().TraderTxs(ctx, a)
}

func (l *Ledger) GlobalTxs(ctx context.Context) ([]uint64, error) {
	return l.Begin().GlobalTxs(ctx)
}

func (l *Ledger) ActivePositions(ctx context.Context) ([]uint64, error) {
	return l.Begin().ActivePositions(ctx)
}

func (l *Ledger) Deposit(ctx context.Context, a market.Account) (market.Amount, error) {
	return l.Begin().Deposit(ctx, a)
}

func (l *Ledger) Quote(ctx context.Context, a market.Account) (market.Amount, error) {
	return l.Begin().Quote(ctx, a)
}

func (l *Ledger) PriceOverride(ctx context.Context, asset market.Asset) (market.Price, bool, error) {
	return l.Begin().PriceOverride(ctx, asset)
}

func decode(key string, raw []byte, v any) error {
	if err := sonic.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("ledger decode %s: %w", key, err)
	}
	return nil
}

func encode(key string, v any) ([]byte, error) {
	b, err := sonic.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("ledger encode %s: %w", key, err)
	}
	return b, nil
}
