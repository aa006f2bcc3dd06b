package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/levtrader/events"
	"github.com/rustyeddy/levtrader/journal"
	"github.com/rustyeddy/levtrader/ledger"
	"github.com/rustyeddy/levtrader/market"
	"github.com/rustyeddy/levtrader/settlement"
	"github.com/rustyeddy/levtrader/store"
)

const (
	owner  market.Account = "owner"
	escrow market.Account = "escrow"
	alice  market.Account = "alice"
	bob    market.Account = "bob"
)

type testJournal struct {
	mu          sync.Mutex
	settlements []journal.SettlementRecord
	balances    []journal.BalanceSnapshot
}

func (j *testJournal) RecordSettlement(_ context.Context, r journal.SettlementRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.settlements = append(j.settlements, r)
	return nil
}

func (j *testJournal) RecordBalance(_ context.Context, s journal.BalanceSnapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.balances = append(j.balances, s)
	return nil
}

func (j *testJournal) Close() error { return nil }

type harness struct {
	e        *Engine
	mem      *store.Memory
	treasury *settlement.Treasury
	journal  *testJournal
	events   <-chan events.Event
}

var clock = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()

	mem := store.NewMemory()
	tr := settlement.NewTreasury(nil)
	tr.Credit(escrow, market.XLM, 1_000_000_000)

	bus := events.NewMemory()
	ch, cancel := bus.Subscribe(256)
	t.Cleanup(cancel)

	j := &testJournal{}
	e := New(Config{Owner: owner, Escrow: escrow}, ledger.New(mem), tr,
		WithBus(bus),
		WithJournal(j),
		WithClock(func() time.Time { return clock }),
	)
	return &harness{e: e, mem: mem, treasury: tr, journal: j, events: ch}
}

func (h *harness) deposit(t *testing.T, trader market.Account, amt market.Amount) {
	t.Helper()
	_, err := h.e.Deposit(context.Background(), trader, amt)
	require.NoError(t, err)
}

func (h *harness) setPrice(t *testing.T, asset market.Asset, p market.Price) {
	t.Helper()
	require.NoError(t, h.e.UpdatePrice(context.Background(), asset, p))
}

func (h *harness) drain() []events.Event {
	var out []events.Event
	for {
		select {
		case ev := <-h.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func topics(evs []events.Event) []string {
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Topic)
	}
	return out
}

func TestOpenAssignsIncreasingIDs(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.deposit(t, alice, 10_000)
	h.deposit(t, bob, 10_000)

	var prev uint64
	seen := map[uint64]bool{}
	for i := 0; i < 10; i++ {
		trader := alice
		if i%2 == 1 {
			trader = bob
		}
		id, err := h.e.Open(ctx, trader, market.XLM, 100, market.Long)
		require.NoError(t, err)
		assert.Greater(t, id, prev)
		assert.False(t, seen[id])
		seen[id] = true
		prev = id
	}
	assert.Equal(t, uint64(10), prev)

	stats, err := h.e.GlobalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.Stats{Total: 10, Active: 10}, stats)
}

func TestOpenPersistsPosition(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.deposit(t, alice, 5000)
	h.drain()

	id, err := h.e.Open(ctx, alice, market.BTC, 1000, market.Short)
	require.NoError(t, err)

	p, err := h.e.Position(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, alice, p.Trader)
	assert.Equal(t, market.BTC, p.Asset)
	assert.Equal(t, market.Price(45_000_000), p.EntryPrice)
	assert.Equal(t, market.Amount(1000), p.Amount)
	assert.Equal(t, market.Short, p.Direction)
	assert.Equal(t, market.Open, p.Status)
	assert.Nil(t, p.PnL)
	assert.True(t, clock.Equal(p.OpenedAt))

	// open does not debit the deposit
	bal, err := h.e.DepositBalance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, market.Amount(5000), bal)

	evs := h.drain()
	require.Len(t, evs, 1)
	assert.Equal(t, events.PositionOpened, evs[0].Topic)
	assert.Equal(t, events.Opened{ID: id, Trader: "alice", Asset: "BTC", Amount: 1000, Direction: "short"}, evs[0].Payload)
}

func TestOpenInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.deposit(t, alice, 999)

	before := h.mem.Len()
	_, err := h.e.Open(ctx, alice, market.XLM, 1000, market.Long)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, before, h.mem.Len())

	next, err := h.e.ledger.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), next)

	// exactly the balance is allowed
	id, err := h.e.Open(ctx, alice, market.XLM, 999, market.Long)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	// trader with no deposit at all
	_, err = h.e.Open(ctx, bob, market.XLM, 1, market.Long)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestOpenRejectsInvalidDirection(t *testing.T) {
	h := newHarness(t)
	h.deposit(t, alice, 1000)

	_, err := h.e.Open(context.Background(), alice, market.XLM, 10, market.Direction(0))
	assert.ErrorIs(t, err, ErrInvalidDirection)
}

func TestCloseLongAndShort(t *testing.T) {
	tests := []struct {
		name       string
		dir        market.Direction
		wantPnL    int64
		wantSettle market.Amount
	}{
		{"long gains when price rises", market.Long, 100, 1100},
		{"short loses when price rises", market.Short, -100, 900},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t)
			h.deposit(t, alice, 1000)
			h.setPrice(t, market.XLM, 150000)

			id, err := h.e.Open(ctx, alice, market.XLM, 1000, tt.dir)
			require.NoError(t, err)

			h.setPrice(t, market.XLM, 165000)
			h.drain()

			pnl, err := h.e.Close(ctx, id, "")
			require.NoError(t, err)
			assert.Equal(t, tt.wantPnL, pnl)

			p, err := h.e.Position(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, market.Closed, p.Status)
			require.NotNil(t, p.PnL)
			assert.Equal(t, tt.wantPnL, *p.PnL)
			assert.Equal(t, market.Price(165000), p.ExitPrice)
			assert.Equal(t, tt.wantSettle, p.Settlement)

			assert.Equal(t, tt.wantSettle, h.treasury.Balance(alice, market.XLM))

			require.Len(t, h.journal.settlements, 1)
			rec := h.journal.settlements[0]
			assert.Equal(t, ManualClose, rec.Reason)
			assert.Equal(t, tt.wantPnL, rec.PnL)
			assert.Equal(t, uint64(tt.wantSettle), rec.Settlement)

			evs := h.drain()
			require.Len(t, evs, 1)
			assert.Equal(t, events.Closed{ID: id, Trader: "alice", PnL: tt.wantPnL, Settlement: uint64(tt.wantSettle)}, evs[0].Payload)
		})
	}
}

func TestCloseUnchangedPriceSettlesPrincipal(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.deposit(t, alice, 1000)

	id, err := h.e.Open(ctx, alice, market.XLM, 1000, market.Long)
	require.NoError(t, err)

	p, err := h.e.Position(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, market.Price(150000), p.EntryPrice)

	pnl, err := h.e.Close(ctx, id, "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), pnl)

	p, err = h.e.Position(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, market.Amount(1000), p.Settlement)
	assert.Equal(t, market.Amount(1000), h.treasury.Balance(alice, market.XLM))
}

func TestCloseTotalLossPaysNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.deposit(t, alice, 1000)
	h.setPrice(t, market.ETH, 1_000_000)

	id, err := h.e.Open(ctx, alice, market.ETH, 1000, market.Short)
	require.NoError(t, err)

	// price triples: short loses 2000 on 1000 principal
	h.setPrice(t, market.ETH, 3_000_000)
	pnl, err := h.e.Close(ctx, id, "")
	require.NoError(t, err)
	assert.Equal(t, int64(-2000), pnl)

	p, err := h.e.Position(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, market.Amount(0), p.Settlement)
	assert.Empty(t, h.treasury.History())
	assert.Len(t, h.journal.settlements, 1)
}

func TestCloseMissingOrClosed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.deposit(t, alice, 1000)

	_, err := h.e.Close(ctx, 42, "")
	assert.ErrorIs(t, err, ErrNotFound)

	id, err := h.e.Open(ctx, alice, market.XLM, 500, market.Long)
	require.NoError(t, err)
	_, err = h.e.Close(ctx, id, "")
	require.NoError(t, err)

	before := h.mem.Len()
	paid := h.treasury.Balance(alice, market.XLM)
	h.drain()

	_, err = h.e.Close(ctx, id, "")
	assert.ErrorIs(t, err, ErrAlreadyClosed)

	assert.Equal(t, before, h.mem.Len())
	assert.Equal(t, paid, h.treasury.Balance(alice, market.XLM))
	assert.Len(t, h.journal.settlements, 1)
	assert.Empty(t, h.drain())
}

func TestCloseRollsBackOnTransferFailure(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	bus := events.NewMemory()
	ch, cancel := bus.Subscribe(16)
	defer cancel()
	j := &testJournal{}

	fail := true
	gw := settlement.GatewayFunc(func(context.Context, market.Account, market.Account, market.Asset, market.Amount) error {
		if fail {
			return errors.New("escrow frozen")
		}
		return nil
	})
	e := New(Config{Escrow: escrow}, ledger.New(mem), gw, WithBus(bus), WithJournal(j))

	_, err := e.Deposit(ctx, alice, 1000)
	require.NoError(t, err)
	id, err := e.Open(ctx, alice, market.XLM, 1000, market.Long)
	require.NoError(t, err)
	for len(ch) > 0 {
		<-ch
	}

	_, err = e.Close(ctx, id, "")
	assert.ErrorIs(t, err, ErrTransferFailed)
	assert.ErrorContains(t, err, "escrow frozen")

	p, err := e.Position(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, market.Open, p.Status)
	assert.Nil(t, p.PnL)

	stats, err := e.GlobalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.Active)
	assert.Empty(t, j.settlements)
	assert.Len(t, ch, 0)

	// retry succeeds once the gateway recovers
	fail = false
	pnl, err := e.Close(ctx, id, "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), pnl)
	assert.Len(t, ch, 1)
}

func TestCloseRollsBackWhenCallerCancels(t *testing.T) {
	bg := context.Background()
	ctx, cancel := context.WithCancel(bg)
	defer cancel()

	gw := settlement.GatewayFunc(func(context.Context, market.Account, market.Account, market.Asset, market.Amount) error {
		cancel()
		return ctx.Err()
	})
	e := New(Config{Escrow: escrow}, ledger.New(store.NewMemory()), gw)

	_, err := e.Deposit(bg, alice, 1000)
	require.NoError(t, err)
	id, err := e.Open(bg, alice, market.XLM, 1000, market.Long)
	require.NoError(t, err)

	_, err = e.Close(ctx, id, "")
	assert.ErrorIs(t, err, ErrTransferFailed)
	assert.ErrorIs(t, err, context.Canceled)

	p, err := e.Position(bg, id)
	require.NoError(t, err)
	assert.Equal(t, market.Open, p.Status)
	assert.Nil(t, p.PnL)

	stats, err := e.GlobalStats(bg)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.Active)
}

type flakyStore struct {
	*store.Memory
	fail bool
}

func (s *flakyStore) Apply(ctx context.Context, entries []store.Entry) error {
	if s.fail {
		return errors.New("disk full")
	}
	return s.Memory.Apply(ctx, entries)
}

func TestOpenRecordedCommitsOnce(t *testing.T) {
	ctx := context.Background()
	st := &flakyStore{Memory: store.NewMemory()}
	e := New(Config{Escrow: escrow}, ledger.New(st), settlement.NewTreasury(nil))

	_, err := e.Deposit(ctx, alice, 5000)
	require.NoError(t, err)

	id, err := e.OpenRecorded(ctx, alice, market.XLM, 1000, market.Short)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	hist, err := e.TraderHistory(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, hist)
	global, err := e.GlobalHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, global)

	st.fail = true
	id, err = e.OpenRecorded(ctx, alice, market.XLM, 1000, market.Long)
	assert.ErrorContains(t, err, "disk full")
	assert.Zero(t, id)
	st.fail = false

	_, err = e.Position(ctx, 2)
	assert.ErrorIs(t, err, ErrNotFound)
	hist, err = e.TraderHistory(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, hist)
	stats, err := e.GlobalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.Total)
	assert.Equal(t, uint64(1), stats.Active)
}

func TestUnrealizedPnLClosedWithoutPnL(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	raw := []byte(`{"id":7,"trader":"alice","asset":"XLM","entry_price":150000,"amount":10,"direction":"long","status":"closed"}`)
	require.NoError(t, h.mem.Apply(ctx, []store.Entry{{Key: "position:7", Value: raw}}))

	_, err := h.e.UnrealizedPnL(ctx, 7)
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

func TestUnrealizedPnL(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.deposit(t, alice, 10_000)

	id, err := h.e.Open(ctx, alice, market.XLM, 10_000, market.Long)
	require.NoError(t, err)

	h.setPrice(t, market.XLM, 142_500)
	pnl, err := h.e.UnrealizedPnL(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(-500), pnl)

	h.setPrice(t, market.XLM, 157_500)
	_, err = h.e.Close(ctx, id, "")
	require.NoError(t, err)

	// closed positions keep their settled pnl
	h.setPrice(t, market.XLM, 300_000)
	pnl, err = h.e.UnrealizedPnL(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(500), pnl)

	_, err = h.e.UnrealizedPnL(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOracleOverrides(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	p, err := h.e.Price(ctx, "UNKNOWN_SYMBOL")
	require.NoError(t, err)
	assert.Equal(t, market.Price(150000), p)

	h.setPrice(t, market.XLM, 160000)

	got, ok, err := h.e.OraclePrice(ctx, market.XLM)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, market.Price(160000), got)

	p, err = h.e.Price(ctx, market.XLM)
	require.NoError(t, err)
	assert.Equal(t, market.Price(160000), p)

	_, ok, err = h.e.OraclePrice(ctx, market.ETH)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, h.e.UpdatePrice(ctx, market.XLM, 0), ErrInvalidPrice)

	evs := h.drain()
	require.Len(t, evs, 1)
	assert.Equal(t, events.PriceUpdated, evs[0].Topic)
}

func TestDepositAccumulates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	bal, err := h.e.Deposit(ctx, alice, 700)
	require.NoError(t, err)
	assert.Equal(t, market.Amount(700), bal)

	bal, err = h.e.Deposit(ctx, alice, 300)
	require.NoError(t, err)
	assert.Equal(t, market.Amount(1000), bal)

	assert.Equal(t, []string{events.FundsDeposited, events.FundsDeposited}, topics(h.drain()))
	require.Len(t, h.journal.balances, 2)
	assert.Equal(t, uint64(1000), h.journal.balances[1].Deposit)
}

func TestSwap(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.deposit(t, alice, 10_000_000)

	out, err := h.e.Swap(ctx, alice, 4_000_000)
	require.NoError(t, err)
	// 4 XLM at 0.15 = 0.6 USDC
	assert.Equal(t, market.Amount(600_000), out)

	dep, err := h.e.DepositBalance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, market.Amount(6_000_000), dep)

	q, err := h.e.QuoteBalance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, market.Amount(600_000), q)

	_, err = h.e.Swap(ctx, alice, 6_000_001)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	dep, err = h.e.DepositBalance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, market.Amount(6_000_000), dep)
}

func TestRecordTransactionAndHistory(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	require.NoError(t, h.e.RecordTransaction(ctx, alice, 1))
	require.NoError(t, h.e.RecordTransaction(ctx, bob, 2))
	require.NoError(t, h.e.RecordTransaction(ctx, alice, 3))

	hist, err := h.e.TraderHistory(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 3}, hist)

	global, err := h.e.GlobalHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, global)

	empty, err := h.e.TraderHistory(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTraderQueriesAndStats(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.deposit(t, alice, 10_000)
	h.deposit(t, bob, 10_000)

	a1, err := h.e.Open(ctx, alice, market.XLM, 100, market.Long)
	require.NoError(t, err)
	_, err = h.e.Open(ctx, bob, market.BTC, 100, market.Short)
	require.NoError(t, err)
	a2, err := h.e.Open(ctx, alice, market.ETH, 100, market.Short)
	require.NoError(t, err)

	_, err = h.e.Close(ctx, a1, "")
	require.NoError(t, err)

	all, err := h.e.TraderPositions(ctx, alice)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, a1, all[0].ID)
	assert.Equal(t, a2, all[1].ID)

	active, err := h.e.TraderActivePositions(ctx, alice)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, a2, active[0].ID)

	st, err := h.e.TraderStats(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, ledger.Stats{Total: 2, Active: 1}, st)

	gs, err := h.e.GlobalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.Stats{Total: 3, Active: 2}, gs)

	none, err := h.e.TraderPositions(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestIsOwner(t *testing.T) {
	h := newHarness(t)
	assert.True(t, h.e.IsOwner(owner))
	assert.False(t, h.e.IsOwner(alice))

	anon := New(Config{}, ledger.New(store.NewMemory()), settlement.NewTreasury(nil))
	assert.False(t, anon.IsOwner(""))
}

func TestConcurrentOpensKeepIDsUnique(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.deposit(t, alice, 1_000_000)

	const n = 50
	ids := make(chan uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := h.e.Open(ctx, alice, market.XLM, 10, market.Long)
			assert.NoError(t, err)
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[uint64]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)

	all, err := h.e.TraderPositions(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, all, n)
}

func TestBalanceReadsDuringDeposits(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.e.Deposit(ctx, alice, 10)
			assert.NoError(t, err)
		}()
	}

	var last market.Amount
	for i := 0; i < 20; i++ {
		bal, err := h.e.DepositBalance(ctx, alice)
		require.NoError(t, err)
		assert.True(t, bal >= last, "balance went from %s to %s", last, bal)
		last = bal
	}
	wg.Wait()

	bal, err := h.e.DepositBalance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, market.Amount(200), bal)
}
