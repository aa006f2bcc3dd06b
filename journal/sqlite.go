package journal

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordSettlement(ctx context.Context, r SettlementRecord) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO settlements
		(position_id, trader, asset, direction, amount, entry_price, exit_price, pnl, settlement, open_time, close_time, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.PositionID, r.Trader, r.Asset, r.Direction, r.Amount, r.EntryPrice,
		r.ExitPrice, r.PnL, r.Settlement, r.OpenTime.UTC(), r.CloseTime.UTC(), r.Reason,
	)
	if err != nil {
		return fmt.Errorf("journal: record settlement %d: %w", r.PositionID, err)
	}
	return nil
}

func (j *SQLite) RecordBalance(ctx context.Context, s BalanceSnapshot) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO balances
		(time, trader, deposit, quote, reason)
		VALUES (?, ?, ?, ?, ?)`,
		s.Time.UTC(), s.Trader, s.Deposit, s.Quote, s.Reason,
	)
	if err != nil {
		return fmt.Errorf("journal: record balance for %s: %w", s.Trader, err)
	}
	return nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
