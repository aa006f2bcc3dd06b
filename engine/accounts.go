package engine

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/rustyeddy/levtrader/events"
	"github.com/rustyeddy/levtrader/journal"
	"github.com/rustyeddy/levtrader/ledger"
	"github.com/rustyeddy/levtrader/market"
)

// IsOwner reports whether caller is the configured owner identity.
func (e *Engine) IsOwner(caller market.Account) bool {
	return e.cfg.Owner != "" && caller == e.cfg.Owner
}

// Deposit credits amount of the deposit asset to trader and returns the
// new balance.
func (e *Engine) Deposit(ctx context.Context, trader market.Account, amount market.Amount) (market.Amount, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx := e.ledger.Begin()
	bal, err := tx.Deposit(ctx, trader)
	if err != nil {
		return 0, fmt.Errorf("deposit: %w", err)
	}
	if uint64(amount) > math.MaxUint64-uint64(bal) {
		return 0, fmt.Errorf("deposit: %w", ErrOverflow)
	}
	bal += amount
	if err := tx.SetDeposit(trader, bal); err != nil {
		return 0, fmt.Errorf("deposit: %w", err)
	}
	if _, err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("deposit: %w", err)
	}

	e.log.Info("funds deposited",
		zap.String("trader", string(trader)),
		zap.String("asset", string(e.cfg.DepositAsset)),
		zap.Uint64("amount", uint64(amount)),
		zap.Uint64("balance", uint64(bal)),
	)
	e.snapshotLocked(ctx, trader, "deposit")
	e.publish(ctx, events.FundsDeposited, events.Deposited{
		Trader: string(trader),
		Asset:  string(e.cfg.DepositAsset),
		Amount: uint64(amount),
	})
	return bal, nil
}

// Swap converts amount of the trader's deposit into the quote asset at
// the current deposit-asset price and returns the quote amount received.
func (e *Engine) Swap(ctx context.Context, trader market.Account, amount market.Amount) (market.Amount, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx := e.ledger.Begin()
	bal, err := tx.Deposit(ctx, trader)
	if err != nil {
		return 0, fmt.Errorf("swap: %w", err)
	}
	if bal < amount {
		return 0, fmt.Errorf("swap: %s has %s, needs %s: %w", trader, bal, amount, ErrInsufficientFunds)
	}

	px, err := e.prices.Price(ctx, e.cfg.DepositAsset)
	if err != nil {
		return 0, fmt.Errorf("swap: %w", err)
	}
	out, ok := market.MulDiv(uint64(amount), uint64(px), market.Scale)
	if !ok {
		return 0, fmt.Errorf("swap: %w", ErrOverflow)
	}

	quote, err := tx.Quote(ctx, trader)
	if err != nil {
		return 0, fmt.Errorf("swap: %w", err)
	}
	if out > math.MaxUint64-uint64(quote) {
		return 0, fmt.Errorf("swap: %w", ErrOverflow)
	}
	if err := tx.SetDeposit(trader, bal-amount); err != nil {
		return 0, fmt.Errorf("swap: %w", err)
	}
	if err := tx.SetQuote(trader, quote+market.Amount(out)); err != nil {
		return 0, fmt.Errorf("swap: %w", err)
	}
	if _, err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("swap: %w", err)
	}

	e.log.Info("swap completed",
		zap.String("trader", string(trader)),
		zap.Uint64("in", uint64(amount)),
		zap.Uint64("out", out),
		zap.Uint64("price", uint64(px)),
	)
	e.snapshotLocked(ctx, trader, "swap")
	e.publish(ctx, events.SwapCompleted, events.Swapped{
		Trader: string(trader),
		In:     uint64(amount),
		Out:    out,
		Price:  uint64(px),
	})
	return market.Amount(out), nil
}

// RecordTransaction appends txID to the trader's and the global history.
func (e *Engine) RecordTransaction(ctx context.Context, trader market.Account, txID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx := e.ledger.Begin()
	if err := tx.AppendTraderTx(ctx, trader, txID); err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}
	if err := tx.AppendGlobalTx(ctx, txID); err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}
	if _, err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}
	return nil
}

func (e *Engine) snapshotLocked(ctx context.Context, trader market.Account, reason string) {
	dep, err := e.ledger.Deposit(ctx, trader)
	if err != nil {
		e.log.Warn("balance snapshot", zap.Error(err))
		return
	}
	quote, err := e.ledger.Quote(ctx, trader)
	if err != nil {
		e.log.Warn("balance snapshot", zap.Error(err))
		return
	}
	if err := e.journal.RecordBalance(ctx, journal.BalanceSnapshot{
		Time:    e.now().UTC(),
		Trader:  string(trader),
		Deposit: uint64(dep),
		Quote:   uint64(quote),
		Reason:  reason,
	}); err != nil {
		e.log.Error("journal balance", zap.String("trader", string(trader)), zap.Error(err))
	}
}

// Queries.

// Position returns the stored position or ErrNotFound.
func (e *Engine) Position(ctx context.Context, id uint64) (ledger.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positionLocked(ctx, id)
}

func (e *Engine) positionLocked(ctx context.Context, id uint64) (ledger.Position, error) {
	p, ok, err := e.ledger.Position(ctx, id)
	if err != nil {
		return ledger.Position{}, fmt.Errorf("position %d: %w", id, err)
	}
	if !ok {
		return ledger.Position{}, fmt.Errorf("position %d: %w", id, ErrNotFound)
	}
	return p, nil
}

// TraderPositions returns every position the trader opened, oldest first.
func (e *Engine) TraderPositions(ctx context.Context, trader market.Account) ([]ledger.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.traderPositionsLocked(ctx, trader, false)
}

// TraderActivePositions is TraderPositions restricted to open positions.
func (e *Engine) TraderActivePositions(ctx context.Context, trader market.Account) ([]ledger.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.traderPositionsLocked(ctx, trader, true)
}

func (e *Engine) traderPositionsLocked(ctx context.Context, trader market.Account, openOnly bool) ([]ledger.Position, error) {
	ids, err := e.ledger.TraderPositions(ctx, trader)
	if err != nil {
		return nil, fmt.Errorf("trader positions: %w", err)
	}
	out := make([]ledger.Position, 0, len(ids))
	for _, id := range ids {
		p, err := e.positionLocked(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("trader positions: %w", err)
		}
		if openOnly && !p.IsOpen() {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (e *Engine) TraderHistory(ctx context.Context, trader market.Account) ([]uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.TraderTxs(ctx, trader)
}

func (e *Engine) GlobalHistory(ctx context.Context) ([]uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.GlobalTxs(ctx)
}

func (e *Engine) DepositBalance(ctx context.Context, trader market.Account) (market.Amount, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Deposit(ctx, trader)
}

func (e *Engine) QuoteBalance(ctx context.Context, trader market.Account) (market.Amount, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Quote(ctx, trader)
}

// TraderStats counts the trader's positions and how many are still open.
func (e *Engine) TraderStats(ctx context.Context, trader market.Account) (ledger.Stats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	all, err := e.traderPositionsLocked(ctx, trader, false)
	if err != nil {
		return ledger.Stats{}, err
	}
	s := ledger.Stats{Total: uint64(len(all))}
	for _, p := range all {
		if p.IsOpen() {
			s.Active++
		}
	}
	return s, nil
}

// GlobalStats counts positions ever created and those still open.
func (e *Engine) GlobalStats(ctx context.Context) (ledger.Stats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	created, err := e.ledger.NextID(ctx)
	if err != nil {
		return ledger.Stats{}, fmt.Errorf("global stats: %w", err)
	}
	active, err := e.ledger.ActivePositions(ctx)
	if err != nil {
		return ledger.Stats{}, fmt.Errorf("global stats: %w", err)
	}
	return ledger.Stats{Total: created, Active: uint64(len(active))}, nil
}
