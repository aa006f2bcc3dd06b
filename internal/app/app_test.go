package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/rustyeddy/levtrader/config"
	"github.com/rustyeddy/levtrader/engine"
	"github.com/rustyeddy/levtrader/journal"
	"github.com/rustyeddy/levtrader/market"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(dir, "state.db")
	cfg.Journal.DBPath = filepath.Join(dir, "journal.db")
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Events.Log = false
	cfg.DepositAsset = "xlm"
	return cfg
}

func TestOpenSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a, err := Open(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, market.XLM, a.Engine.Config().DepositAsset)
	assert.Equal(t, market.Amount(cfg.Settlement.TreasuryBalance), a.Treasury.Balance("escrow", market.XLM))

	_, err = a.Engine.Deposit(ctx, "alice", 10_000)
	require.NoError(t, err)
	id, err := a.Engine.Open(ctx, "alice", market.XLM, 1_000, market.Long)
	require.NoError(t, err)
	_, err = a.Engine.Close(ctx, id, engine.ManualClose)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	a, err = Open(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	p, err := a.Engine.Position(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, market.Closed, p.Status)

	j, ok := a.Journal.(*journal.SQLite)
	require.True(t, ok)
	rec, err := j.GetSettlement(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, engine.ManualClose, rec.Reason)
}

func TestNewJournal(t *testing.T) {
	j, err := NewJournal(config.JournalConfig{Type: "none"})
	require.NoError(t, err)
	assert.IsType(t, journal.Nop{}, j)

	dir := t.TempDir()
	j, err = NewJournal(config.JournalConfig{
		Type:            "csv",
		SettlementsFile: filepath.Join(dir, "s.csv"),
		BalancesFile:    filepath.Join(dir, "b.csv"),
	})
	require.NoError(t, err)
	assert.IsType(t, &journal.CSV{}, j)
	require.NoError(t, j.Close())
}

func TestModuleStartsAndStops(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Type = "memory"
	cfg.Journal.Type = "none"

	var e *engine.Engine
	app := fxtest.New(t,
		Module(cfg, zap.NewNop()),
		fx.Populate(&e),
	)
	app.RequireStart()

	require.NotNil(t, e)
	_, err := e.Deposit(context.Background(), "bob", 5)
	assert.NoError(t, err)

	app.RequireStop()
}
