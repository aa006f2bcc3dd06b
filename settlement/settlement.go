// Package settlement moves funds out of escrow when a position closes.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/rustyeddy/levtrader/market"
)

var (
	ErrInsufficientBalance = errors.New("settlement: insufficient balance")
	ErrInvalidAmount       = errors.New("settlement: amount must be > 0")
)

// Gateway transfers amount of asset between accounts.
type Gateway interface {
	Transfer(ctx context.Context, from, to market.Account, asset market.Asset, amount market.Amount) error
}

// Transfer is one completed movement of funds.
type Transfer struct {
	From   market.Account `json:"from"`
	To     market.Account `json:"to"`
	Asset  market.Asset   `json:"asset"`
	Amount market.Amount  `json:"amount"`
}

// Treasury is an in-memory token ledger standing in for the real
// transfer mechanism.
type Treasury struct {
	mu       sync.Mutex
	balances map[market.Account]map[market.Asset]market.Amount
	history  []Transfer
	log      *zap.Logger
}

func NewTreasury(log *zap.Logger) *Treasury {
	if log == nil {
		log = zap.NewNop()
	}
	return &Treasury{
		balances: make(map[market.Account]map[market.Asset]market.Amount),
		log:      log.Named("treasury"),
	}
}

// Credit mints amount into an account, typically to fund escrow.
func (t *Treasury) Credit(acct market.Account, asset market.Asset, amount market.Amount) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.add(acct, asset, amount)
}

func (t *Treasury) Balance(acct market.Account, asset market.Asset) market.Amount {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balances[acct][asset]
}

// History returns a copy of completed transfers, oldest first.
func (t *Treasury) History() []Transfer {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Transfer, len(t.history))
	copy(out, t.history)
	return out
}

func (t *Treasury) Transfer(ctx context.Context, from, to market.Account, asset market.Asset, amount market.Amount) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if amount == 0 {
		return ErrInvalidAmount
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	have := t.balances[from][asset]
	if have < amount {
		t.log.Warn("transfer rejected",
			zap.String("from", string(from)),
			zap.String("asset", string(asset)),
			zap.Uint64("amount", uint64(amount)),
			zap.Uint64("balance", uint64(have)),
		)
		return fmt.Errorf("%w: %s has %s %s, needs %s", ErrInsufficientBalance, from, have, asset, amount)
	}
	if uint64(t.balances[to][asset])+uint64(amount) < uint64(amount) {
		return fmt.Errorf("settlement: balance overflow for %s", to)
	}

	t.balances[from][asset] = have - amount
	t.add(to, asset, amount)
	t.history = append(t.history, Transfer{From: from, To: to, Asset: asset, Amount: amount})

	t.log.Debug("transfer",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("asset", string(asset)),
		zap.Uint64("amount", uint64(amount)),
	)
	return nil
}

func (t *Treasury) add(acct market.Account, asset market.Asset, amount market.Amount) {
	m, ok := t.balances[acct]
	if !ok {
		m = make(map[market.Asset]market.Amount)
		t.balances[acct] = m
	}
	m[asset] += amount
}

// GatewayFunc adapts a function to Gateway.
type GatewayFunc func(ctx context.Context, from, to market.Account, asset market.Asset, amount market.Amount) error

func (f GatewayFunc) Transfer(ctx context.Context, from, to market.Account, asset market.Asset, amount market.Amount) error {
	return f(ctx, from, to, asset, amount)
}
