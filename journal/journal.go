// Package journal keeps an append-only record of settled positions and
// account balance snapshots, separate from the ledger, for reporting.
package journal

import (
	"context"
	"time"
)

// SettlementRecord describes one closed position and what it paid out.
type SettlementRecord struct {
	PositionID uint64
	Trader     string
	Asset      string
	Direction  string
	Amount     uint64
	EntryPrice uint64
	ExitPrice  uint64
	PnL        int64
	Settlement uint64
	OpenTime   time.Time
	CloseTime  time.Time
	Reason     string
}

// BalanceSnapshot is a trader's balances right after they changed.
type BalanceSnapshot struct {
	Time    time.Time
	Trader  string
	Deposit uint64
	Quote   uint64
	Reason  string
}

type Journal interface {
	RecordSettlement(ctx context.Context, rec SettlementRecord) error
	RecordBalance(ctx context.Context, snap BalanceSnapshot) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordSettlement(context.Context, SettlementRecord) error { return nil }
func (Nop) RecordBalance(context.Context, BalanceSnapshot) error     { return nil }
func (Nop) Close() error                                              { return nil }
