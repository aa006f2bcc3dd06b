package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/rustyeddy/levtrader/api"
	"github.com/rustyeddy/levtrader/autotrade"
	"github.com/rustyeddy/levtrader/config"
	"github.com/rustyeddy/levtrader/engine"
	"github.com/rustyeddy/levtrader/events"
	"github.com/rustyeddy/levtrader/journal"
	"github.com/rustyeddy/levtrader/ledger"
	"github.com/rustyeddy/levtrader/settlement"
	"github.com/rustyeddy/levtrader/store"
	"github.com/rustyeddy/levtrader/telegram"
)

// Module wires the long-running service: storage, engine, the HTTP API
// and, when a token is configured, the Telegram bot.
func Module(cfg *config.Config, log *zap.Logger) fx.Option {
	return fx.Module("levtrader",
		fx.Supply(cfg, log),
		fx.Provide(
			provideLedger,
			provideJournal,
			provideBus,
			NewTreasury,
			func(cfg *config.Config, l *ledger.Ledger, t *settlement.Treasury, bus events.Bus, j journal.Journal, log *zap.Logger) *engine.Engine {
				return NewEngine(cfg, l, t, bus, j, log)
			},
			func(cfg *config.Config, e *engine.Engine, log *zap.Logger) *autotrade.Trader {
				return autotrade.New(e, cfg.AutoTrade.DefaultStrategy, log)
			},
			func(cfg *config.Config, e *engine.Engine, auto *autotrade.Trader, feed *events.Memory, log *zap.Logger) *api.Server {
				return api.New(cfg.Server.Addr, e, auto, feed, log)
			},
		),
		fx.Invoke(
			registerHTTP,
			registerTelegram,
		),
	)
}

func provideLedger(lc fx.Lifecycle, cfg *config.Config) (*ledger.Ledger, error) {
	s, err := store.Open(context.Background(), cfg.Store)
	if err != nil {
		return nil, err
	}
	l := ledger.New(s)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return l.Close() },
	})
	return l, nil
}

func provideJournal(lc fx.Lifecycle, cfg *config.Config) (journal.Journal, error) {
	j, err := NewJournal(cfg.Journal)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return j.Close() },
	})
	return j, nil
}

func provideBus(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (events.Bus, *events.Memory, error) {
	bus, feed, closeFn, err := NewBus(cfg.Events, log)
	if err != nil {
		return nil, nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return closeFn() },
	})
	return bus, feed, nil
}

func registerHTTP(lc fx.Lifecycle, s *api.Server) {
	lc.Append(fx.Hook{
		OnStart: s.Start,
		OnStop:  s.Stop,
	})
}

func registerTelegram(lc fx.Lifecycle, cfg *config.Config, e *engine.Engine, auto *autotrade.Trader, log *zap.Logger) error {
	if cfg.Telegram.Token == "" {
		log.Info("telegram disabled: no token configured")
		return nil
	}
	bot, err := telegram.NewBot(cfg.Telegram.Token, cfg.Telegram.PollTimeout, telegram.NewCommands(e, auto, log), log)
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStart: bot.Start,
		OnStop:  bot.Stop,
	})
	return nil
}
