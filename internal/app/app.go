// Package app assembles the engine and its collaborators from a config.
// Short-lived CLI commands use Open; the long-running service uses Module.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rustyeddy/levtrader/autotrade"
	"github.com/rustyeddy/levtrader/config"
	"github.com/rustyeddy/levtrader/engine"
	"github.com/rustyeddy/levtrader/events"
	"github.com/rustyeddy/levtrader/journal"
	"github.com/rustyeddy/levtrader/ledger"
	"github.com/rustyeddy/levtrader/market"
	"github.com/rustyeddy/levtrader/settlement"
	"github.com/rustyeddy/levtrader/store"
)

// App is a fully wired engine plus the resources it holds open.
type App struct {
	Config   *config.Config
	Log      *zap.Logger
	Engine   *engine.Engine
	Auto     *autotrade.Trader
	Feed     *events.Memory
	Treasury *settlement.Treasury
	Journal  journal.Journal

	closers []func() error
}

// Open builds an App. The caller must Close it.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (_ *App, err error) {
	a := &App{Config: cfg, Log: log}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	s, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	l := ledger.New(s)
	a.closers = append(a.closers, l.Close)

	a.Journal, err = NewJournal(cfg.Journal)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.Journal.Close)

	bus, feed, closeBus, err := NewBus(cfg.Events, log)
	if err != nil {
		return nil, err
	}
	a.Feed = feed
	a.closers = append(a.closers, closeBus)

	a.Treasury = NewTreasury(cfg, log)
	a.Engine = NewEngine(cfg, l, a.Treasury, bus, a.Journal, log)
	a.Auto = autotrade.New(a.Engine, cfg.AutoTrade.DefaultStrategy, log)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func NewJournal(cfg config.JournalConfig) (journal.Journal, error) {
	switch cfg.Type {
	case "csv":
		j, err := journal.NewCSV(cfg.SettlementsFile, cfg.BalancesFile)
		if err != nil {
			return nil, fmt.Errorf("create journal: %w", err)
		}
		return j, nil
	case "sqlite":
		j, err := journal.NewSQLite(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("create journal: %w", err)
		}
		return j, nil
	}
	return journal.Nop{}, nil
}

// NewBus returns the bus the engine publishes to and the in-process feed
// that websocket clients subscribe to. close flushes any remote sink.
func NewBus(cfg config.EventsConfig, log *zap.Logger) (events.Bus, *events.Memory, func() error, error) {
	feed := events.NewMemory()
	bus := events.Multi{feed}
	if cfg.Log {
		bus = append(bus, events.NewLog(log))
	}
	closeFn := func() error { return nil }
	if cfg.Kafka != nil {
		k, err := events.NewKafka(*cfg.Kafka, log)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("kafka events: %w", err)
		}
		bus = append(bus, k)
		closeFn = k.Close
	}
	return bus, feed, closeFn, nil
}

// NewTreasury seeds the escrow account with the configured balance of the
// deposit asset.
func NewTreasury(cfg *config.Config, log *zap.Logger) *settlement.Treasury {
	t := settlement.NewTreasury(log)
	if cfg.Settlement.TreasuryBalance > 0 {
		t.Credit(market.Account(cfg.EscrowAccount), asset(cfg.DepositAsset), market.Amount(cfg.Settlement.TreasuryBalance))
	}
	return t
}

func NewEngine(cfg *config.Config, l *ledger.Ledger, gw settlement.Gateway, bus events.Bus, j journal.Journal, log *zap.Logger) *engine.Engine {
	return engine.New(engine.Config{
		Owner:        market.Account(cfg.Owner),
		Escrow:       market.Account(cfg.EscrowAccount),
		DepositAsset: asset(cfg.DepositAsset),
		QuoteAsset:   asset(cfg.QuoteAsset),
	}, l, gw,
		engine.WithBus(bus),
		engine.WithJournal(j),
		engine.WithLogger(log),
	)
}

// asset normalizes a symbol that config validation already accepted.
func asset(s string) market.Asset {
	a, err := market.NewAsset(s)
	if err != nil {
		return market.Asset(s)
	}
	return a
}
