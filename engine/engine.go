// Package engine owns the position lifecycle: opening against a quoted
// price, valuing open positions, closing and settling them, and the
// account bookkeeping around deposits, swaps and transaction history.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/levtrader/events"
	"github.com/rustyeddy/levtrader/journal"
	"github.com/rustyeddy/levtrader/ledger"
	"github.com/rustyeddy/levtrader/market"
	"github.com/rustyeddy/levtrader/pricing"
	"github.com/rustyeddy/levtrader/settlement"
)

// ManualClose is the journal reason when the caller gives none.
const ManualClose = "ManualClose"

// revertTimeout bounds the rollback of a close whose payout failed. The
// rollback runs detached from the caller's context, which may already be
// cancelled.
const revertTimeout = 5 * time.Second

type Config struct {
	// Owner may push oracle prices.
	Owner market.Account
	// Escrow is the account settlements are paid from.
	Escrow market.Account
	// DepositAsset backs positions and is what settlements pay out in.
	DepositAsset market.Asset
	// QuoteAsset is what Swap converts deposits into.
	QuoteAsset market.Asset
}

type Engine struct {
	mu      sync.Mutex
	cfg     Config
	ledger  *ledger.Ledger
	prices  *pricing.Resolver
	gateway settlement.Gateway
	bus     events.Bus
	journal journal.Journal
	log     *zap.Logger
	now     func() time.Time
}

type Option func(*Engine)

func WithBus(b events.Bus) Option { return func(e *Engine) { e.bus = b } }

func WithJournal(j journal.Journal) Option { return func(e *Engine) { e.journal = j } }

func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.log = l } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithFallbackPrices replaces the static table used when no oracle
// override exists.
func WithFallbackPrices(s pricing.Source) Option {
	return func(e *Engine) { e.prices.WithFallback(s) }
}

func New(cfg Config, l *ledger.Ledger, gw settlement.Gateway, opts ...Option) *Engine {
	if cfg.DepositAsset == "" {
		cfg.DepositAsset = market.XLM
	}
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = market.USDC
	}
	e := &Engine{
		cfg:     cfg,
		ledger:  l,
		prices:  pricing.NewResolver(l),
		gateway: gw,
		bus:     events.Nop{},
		journal: journal.Nop{},
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	e.log = e.log.Named("engine")
	return e
}

func (e *Engine) Config() Config { return e.cfg }

// Open creates a position for trader at the current price of asset.
// The funds check runs before an id is allocated, so a rejected open
// leaves the counter untouched.
func (e *Engine) Open(ctx context.Context, trader market.Account, asset market.Asset, amount market.Amount, dir market.Direction) (uint64, error) {
	return e.open(ctx, trader, asset, amount, dir, false)
}

// OpenRecorded is Open followed by RecordTransaction of the new id, with
// the position and the history entries committed as one batch.
func (e *Engine) OpenRecorded(ctx context.Context, trader market.Account, asset market.Asset, amount market.Amount, dir market.Direction) (uint64, error) {
	return e.open(ctx, trader, asset, amount, dir, true)
}

func (e *Engine) open(ctx context.Context, trader market.Account, asset market.Asset, amount market.Amount, dir market.Direction, record bool) (uint64, error) {
	if !dir.Valid() {
		return 0, fmt.Errorf("open position: %w", ErrInvalidDirection)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tx := e.ledger.Begin()

	balance, err := tx.Deposit(ctx, trader)
	if err != nil {
		return 0, fmt.Errorf("open position: %w", err)
	}
	if balance < amount {
		return 0, fmt.Errorf("open position: %s has %s, needs %s: %w", trader, balance, amount, ErrInsufficientFunds)
	}

	entry, err := e.prices.Price(ctx, asset)
	if err != nil {
		return 0, fmt.Errorf("open position: %w", err)
	}
	if entry == 0 {
		return 0, fmt.Errorf("open position: %s: %w", asset, ErrInvalidPrice)
	}

	id, err := tx.AllocateID(ctx)
	if err != nil {
		return 0, fmt.Errorf("open position: %w", err)
	}

	p := ledger.Position{
		ID:         id,
		Trader:     trader,
		Asset:      asset,
		EntryPrice: entry,
		Amount:     amount,
		Direction:  dir,
		Status:     market.Open,
		OpenedAt:   e.now().UTC(),
	}
	if err := tx.PutPosition(p); err != nil {
		return 0, fmt.Errorf("open position: %w", err)
	}
	if err := tx.AppendTraderPosition(ctx, trader, id); err != nil {
		return 0, fmt.Errorf("open position: %w", err)
	}
	if err := tx.AddActive(ctx, id); err != nil {
		return 0, fmt.Errorf("open position: %w", err)
	}
	if record {
		if err := tx.AppendTraderTx(ctx, trader, id); err != nil {
			return 0, fmt.Errorf("open position: %w", err)
		}
		if err := tx.AppendGlobalTx(ctx, id); err != nil {
			return 0, fmt.Errorf("open position: %w", err)
		}
	}
	if _, err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("open position: %w", err)
	}

	e.log.Info("position opened",
		zap.Uint64("position_id", id),
		zap.String("trader", string(trader)),
		zap.String("asset", string(asset)),
		zap.String("direction", dir.String()),
		zap.Uint64("amount", uint64(amount)),
		zap.Uint64("entry_price", uint64(entry)),
	)
	e.publish(ctx, events.PositionOpened, events.Opened{
		ID:        id,
		Trader:    string(trader),
		Asset:     string(asset),
		Amount:    uint64(amount),
		Direction: dir.String(),
	})
	return id, nil
}

// Close settles an open position at the current price and returns its
// PnL. An empty reason is recorded as ManualClose.
//
// The closed state is committed before the payout is requested. If the
// gateway rejects the payout, the committed writes are reverted and
// ErrTransferFailed is returned, leaving the position open.
func (e *Engine) Close(ctx context.Context, id uint64, reason string) (int64, error) {
	if reason == "" {
		reason = ManualClose
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.closeLocked(ctx, id, reason)
}

func (e *Engine) closeLocked(ctx context.Context, id uint64, reason string) (int64, error) {
	tx := e.ledger.Begin()

	p, ok, err := tx.Position(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("close position %d: %w", id, err)
	}
	if !ok {
		return 0, fmt.Errorf("close position %d: %w", id, ErrNotFound)
	}
	if !p.IsOpen() {
		return 0, fmt.Errorf("close position %d: %w", id, ErrAlreadyClosed)
	}

	current, err := e.prices.Price(ctx, p.Asset)
	if err != nil {
		return 0, fmt.Errorf("close position %d: %w", id, err)
	}
	pnl, err := PnL(p.Direction, p.EntryPrice, current, p.Amount)
	if err != nil {
		return 0, fmt.Errorf("close position %d: %w", id, err)
	}
	payout, err := Settlement(p.Amount, pnl)
	if err != nil {
		return 0, fmt.Errorf("close position %d: %w", id, err)
	}

	p.Status = market.Closed
	p.PnL = &pnl
	p.ExitPrice = current
	p.Settlement = payout
	p.ClosedAt = e.now().UTC()

	if err := tx.PutPosition(p); err != nil {
		return 0, fmt.Errorf("close position %d: %w", id, err)
	}
	if err := tx.RemoveActive(ctx, id); err != nil {
		return 0, fmt.Errorf("close position %d: %w", id, err)
	}
	undo, err := tx.Commit(ctx)
	if err != nil {
		return 0, fmt.Errorf("close position %d: %w", id, err)
	}

	if payout > 0 {
		terr := e.gateway.Transfer(ctx, e.cfg.Escrow, p.Trader, e.cfg.DepositAsset, payout)
		if terr != nil {
			e.log.Error("settlement transfer failed, reverting close",
				zap.Uint64("position_id", id),
				zap.Uint64("settlement", uint64(payout)),
				zap.Error(terr),
			)
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), revertTimeout)
			rerr := e.ledger.Revert(rctx, undo)
			cancel()
			if rerr != nil {
				e.log.Error("revert after failed transfer", zap.Uint64("position_id", id), zap.Error(rerr))
				return 0, fmt.Errorf("close position %d: %w: %w", id, ErrTransferFailed, errors.Join(terr, rerr))
			}
			return 0, fmt.Errorf("close position %d: %w: %w", id, ErrTransferFailed, terr)
		}
	}

	if err := e.journal.RecordSettlement(ctx, journal.SettlementRecord{
		PositionID: p.ID,
		Trader:     string(p.Trader),
		Asset:      string(p.Asset),
		Direction:  p.Direction.String(),
		Amount:     uint64(p.Amount),
		EntryPrice: uint64(p.EntryPrice),
		ExitPrice:  uint64(current),
		PnL:        pnl,
		Settlement: uint64(payout),
		OpenTime:   p.OpenedAt,
		CloseTime:  p.ClosedAt,
		Reason:     reason,
	}); err != nil {
		// funds already moved, so a journal failure does not undo the close
		e.log.Error("journal settlement", zap.Uint64("position_id", id), zap.Error(err))
	}

	e.log.Info("position closed",
		zap.Uint64("position_id", id),
		zap.String("trader", string(p.Trader)),
		zap.Int64("pnl", pnl),
		zap.Uint64("settlement", uint64(payout)),
		zap.String("reason", reason),
	)
	e.publish(ctx, events.PositionClosed, events.Closed{
		ID:         id,
		Trader:     string(p.Trader),
		PnL:        pnl,
		Settlement: uint64(payout),
	})
	return pnl, nil
}

// UnrealizedPnL values an open position at the current price. A closed
// position reports the PnL it was settled with.
func (e *Engine) UnrealizedPnL(ctx context.Context, id uint64) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.livePnLLocked(ctx, id)
}

func (e *Engine) livePnLLocked(ctx context.Context, id uint64) (int64, error) {
	p, err := e.positionLocked(ctx, id)
	if err != nil {
		return 0, err
	}
	if !p.IsOpen() {
		if p.PnL == nil {
			return 0, fmt.Errorf("position %d: %s without pnl: %w", id, p.Status, ErrCorruptRecord)
		}
		return *p.PnL, nil
	}
	current, err := e.prices.Price(ctx, p.Asset)
	if err != nil {
		return 0, fmt.Errorf("position %d: %w", id, err)
	}
	pnl, err := PnL(p.Direction, p.EntryPrice, current, p.Amount)
	if err != nil {
		return 0, fmt.Errorf("position %d: %w", id, err)
	}
	return pnl, nil
}

func (e *Engine) publish(ctx context.Context, topic string, payload any) {
	if err := e.bus.Publish(ctx, events.NewEvent(topic, payload)); err != nil {
		e.log.Warn("publish event", zap.String("topic", topic), zap.Error(err))
	}
}
