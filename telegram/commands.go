// Package telegram is a chat front end for the engine. Commands turns a
// message into a reply; Bot moves messages between Telegram and Commands.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/rustyeddy/levtrader/autotrade"
	"github.com/rustyeddy/levtrader/engine"
	"github.com/rustyeddy/levtrader/market"
	"github.com/rustyeddy/levtrader/pricing"
)

const helpText = `Commands:
/prices - current prices
/deposit <amount> - add funds
/open <asset> <amount> <long|short> - open a position
/close <id> - close a position
/positions - your open positions
/auto <asset> <amount> [strategy] - let a strategy pick the side
/autoclose - close positions past stop loss or take profit
/stats - your totals`

// TraderID is the account a chat trades as.
func TraderID(chatID int64) market.Account {
	return market.Account("tg:" + strconv.FormatInt(chatID, 10))
}

type Commands struct {
	engine *engine.Engine
	auto   *autotrade.Trader
	log    *zap.Logger
}

func NewCommands(e *engine.Engine, auto *autotrade.Trader, log *zap.Logger) *Commands {
	if log == nil {
		log = zap.NewNop()
	}
	return &Commands{engine: e, auto: auto, log: log.Named("telegram")}
}

// Handle runs one command for trader and returns the reply text.
// Amounts are typed as decimals, e.g. "/deposit 12.5".
func (c *Commands) Handle(ctx context.Context, trader market.Account, text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return helpText
	}
	cmd := strings.ToLower(fields[0])
	// "/open@SomeBot" in group chats
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	args := fields[1:]

	var (
		reply string
		err   error
	)
	switch cmd {
	case "/start":
		reply = "Welcome, " + string(trader) + ".\n\n" + helpText
	case "/help":
		reply = helpText
	case "/prices":
		reply, err = c.prices(ctx)
	case "/deposit":
		reply, err = c.deposit(ctx, trader, args)
	case "/open":
		reply, err = c.open(ctx, trader, args)
	case "/close":
		reply, err = c.close(ctx, args)
	case "/positions":
		reply, err = c.positions(ctx, trader)
	case "/auto":
		reply, err = c.autoTrade(ctx, trader, args)
	case "/autoclose":
		reply, err = c.autoClose(ctx, trader)
	case "/stats":
		reply, err = c.stats(ctx, trader)
	default:
		return "Unknown command " + fields[0] + ". Try /help."
	}
	if err != nil {
		c.log.Debug("command failed", zap.String("trader", string(trader)), zap.String("cmd", cmd), zap.Error(err))
		return describe(err)
	}
	return reply
}

type usageError string

func (u usageError) Error() string { return "usage: " + string(u) }

func describe(err error) string {
	var u usageError
	switch {
	case errors.As(err, &u):
		return u.Error()
	case errors.Is(err, engine.ErrInsufficientFunds):
		return "Insufficient funds. /deposit first."
	case errors.Is(err, engine.ErrNotFound):
		return "No such position."
	case errors.Is(err, engine.ErrAlreadyClosed):
		return "That position is already closed."
	case errors.Is(err, engine.ErrTransferFailed):
		return "Settlement transfer failed; the position is still open."
	}
	return "Error: " + err.Error()
}

func (c *Commands) prices(ctx context.Context) (string, error) {
	var b strings.Builder
	for _, a := range pricing.Known() {
		px, err := c.engine.Price(ctx, a)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "%-5s %s\n", a, px)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (c *Commands) deposit(ctx context.Context, trader market.Account, args []string) (string, error) {
	if len(args) != 1 {
		return "", usageError("/deposit <amount>")
	}
	amt, err := market.ParseAmount(args[0], false)
	if err != nil {
		return "", err
	}
	bal, err := c.engine.Deposit(ctx, trader, amt)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Deposited %s %s. Balance %s.", amt, c.engine.Config().DepositAsset, bal), nil
}

func (c *Commands) open(ctx context.Context, trader market.Account, args []string) (string, error) {
	if len(args) != 3 {
		return "", usageError("/open <asset> <amount> <long|short>")
	}
	asset, err := market.NewAsset(args[0])
	if err != nil {
		return "", err
	}
	amt, err := market.ParseAmount(args[1], false)
	if err != nil {
		return "", err
	}
	dir, err := market.ParseDirection(args[2])
	if err != nil {
		return "", err
	}
	id, err := c.engine.Open(ctx, trader, asset, amt, dir)
	if err != nil {
		return "", err
	}
	p, err := c.engine.Position(ctx, id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Opened #%d: %s %s %s at %s.", id, dir, amt, asset, p.EntryPrice), nil
}

func (c *Commands) close(ctx context.Context, args []string) (string, error) {
	if len(args) != 1 {
		return "", usageError("/close <id>")
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil {
		return "", usageError("/close <id>")
	}
	pnl, err := c.engine.Close(ctx, id, "")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Closed #%d, PnL %s.", id, signed(pnl)), nil
}

func (c *Commands) positions(ctx context.Context, trader market.Account) (string, error) {
	open, err := c.engine.TraderActivePositions(ctx, trader)
	if err != nil {
		return "", err
	}
	if len(open) == 0 {
		return "No open positions.", nil
	}
	var b strings.Builder
	for _, p := range open {
		pnl, err := c.engine.UnrealizedPnL(ctx, p.ID)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "#%d %s %s %s @ %s  PnL %s\n", p.ID, p.Direction, p.Amount, p.Asset, p.EntryPrice, signed(pnl))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (c *Commands) autoTrade(ctx context.Context, trader market.Account, args []string) (string, error) {
	if len(args) < 2 || len(args) > 3 {
		return "", usageError("/auto <asset> <amount> [strategy]")
	}
	asset, err := market.NewAsset(args[0])
	if err != nil {
		return "", err
	}
	amt, err := market.ParseAmount(args[1], false)
	if err != nil {
		return "", err
	}
	strategy := ""
	if len(args) == 3 {
		if _, err := autotrade.Lookup(args[2]); err != nil {
			return "", err
		}
		strategy = args[2]
	}
	id, err := c.auto.AutoTrade(ctx, trader, asset, amt, strategy)
	if err != nil {
		return "", err
	}
	p, err := c.engine.Position(ctx, id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Auto opened #%d: %s %s %s at %s.", id, p.Direction, amt, asset, p.EntryPrice), nil
}

func (c *Commands) autoClose(ctx context.Context, trader market.Account) (string, error) {
	closed, err := c.auto.AutoClosePositions(ctx, trader)
	if err != nil && len(closed) == 0 {
		return "", err
	}
	msg := "Nothing to close."
	if len(closed) > 0 {
		ids := make([]string, len(closed))
		for i, id := range closed {
			ids[i] = "#" + strconv.FormatUint(id, 10)
		}
		msg = "Closed " + strings.Join(ids, ", ") + "."
	}
	if err != nil {
		msg += " Stopped early: " + describe(err)
	}
	return msg, nil
}

func (c *Commands) stats(ctx context.Context, trader market.Account) (string, error) {
	st, err := c.engine.TraderStats(ctx, trader)
	if err != nil {
		return "", err
	}
	dep, err := c.engine.DepositBalance(ctx, trader)
	if err != nil {
		return "", err
	}
	quote, err := c.engine.QuoteBalance(ctx, trader)
	if err != nil {
		return "", err
	}
	cfg := c.engine.Config()
	return fmt.Sprintf("Positions: %d (%d open)\n%s: %s\n%s: %s",
		st.Total, st.Active, cfg.DepositAsset, dep, cfg.QuoteAsset, quote), nil
}

func signed(pnl int64) string {
	if pnl < 0 {
		// uint64(-pnl) is still |pnl| for MinInt64
		return "-" + market.Amount(uint64(-pnl)).String()
	}
	return "+" + market.Amount(uint64(pnl)).String()
}
