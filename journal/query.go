package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const settlementColumns = `position_id, trader, asset, direction, amount, entry_price, exit_price, pnl, settlement, open_time, close_time, reason`

type scanner interface {
	Scan(dest ...any) error
}

func scanSettlement(s scanner) (SettlementRecord, error) {
	var rec SettlementRecord
	err := s.Scan(
		&rec.PositionID,
		&rec.Trader,
		&rec.Asset,
		&rec.Direction,
		&rec.Amount,
		&rec.EntryPrice,
		&rec.ExitPrice,
		&rec.PnL,
		&rec.Settlement,
		&rec.OpenTime,
		&rec.CloseTime,
		&rec.Reason,
	)
	return rec, err
}

// GetSettlement returns the record for one closed position.
func (j *SQLite) GetSettlement(ctx context.Context, positionID uint64) (SettlementRecord, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT `+settlementColumns+`
		FROM settlements
		WHERE position_id = ?`, positionID)

	rec, err := scanSettlement(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return SettlementRecord{}, fmt.Errorf("settlement for position %d not found", positionID)
		}
		return SettlementRecord{}, err
	}
	return rec, nil
}

// ListSettlementsClosedBetween returns settlements whose close_time is within [start, end).
func (j *SQLite) ListSettlementsClosedBetween(ctx context.Context, start, end time.Time) ([]SettlementRecord, error) {
	return j.list(ctx, `
		SELECT `+settlementColumns+`
		FROM settlements
		WHERE close_time >= ? AND close_time < ?
		ORDER BY close_time ASC, position_id ASC`, start.UTC(), end.UTC())
}

// ListSettlementsByTrader returns a trader's settlements oldest first.
func (j *SQLite) ListSettlementsByTrader(ctx context.Context, trader string) ([]SettlementRecord, error) {
	return j.list(ctx, `
		SELECT `+settlementColumns+`
		FROM settlements
		WHERE trader = ?
		ORDER BY close_time ASC, position_id ASC`, trader)
}

func (j *SQLite) list(ctx context.Context, query string, args ...any) ([]SettlementRecord, error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SettlementRecord
	for rows.Next() {
		rec, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Summary aggregates realized results over a set of settlements.
type Summary struct {
	Count       int
	Wins        int
	Losses      int
	NetPnL      int64
	GrossProfit int64
	GrossLoss   int64
	Paid        uint64
}

func Summarize(recs []SettlementRecord) Summary {
	var s Summary
	for _, r := range recs {
		s.Count++
		s.NetPnL += r.PnL
		s.Paid += r.Settlement
		switch {
		case r.PnL > 0:
			s.Wins++
			s.GrossProfit += r.PnL
		case r.PnL < 0:
			s.Losses++
			s.GrossLoss += -r.PnL
		}
	}
	return s
}

// ListBalances returns a trader's balance snapshots oldest first.
func (j *SQLite) ListBalances(ctx context.Context, trader string) ([]BalanceSnapshot, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT time, trader, deposit, quote, reason
		FROM balances
		WHERE trader = ?
		ORDER BY time ASC`, trader)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BalanceSnapshot
	for rows.Next() {
		var s BalanceSnapshot
		if err := rows.Scan(&s.Time, &s.Trader, &s.Deposit, &s.Quote, &s.Reason); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
