package journal

import (
	"context"
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

var (
	settlementHeader = []string{"position_id", "trader", "asset", "direction", "amount", "entry_price", "exit_price", "pnl", "settlement", "open_time", "close_time", "reason"}
	balanceHeader    = []string{"time", "trader", "deposit", "quote", "reason"}
)

type CSV struct {
	settlements *csv.Writer
	balances    *csv.Writer
	sf, bf      *os.File
}

func NewCSV(settlementsPath, balancesPath string) (*CSV, error) {
	sf, err := os.Create(settlementsPath)
	if err != nil {
		return nil, err
	}
	bf, err := os.Create(balancesPath)
	if err != nil {
		_ = sf.Close()
		return nil, err
	}

	sw := csv.NewWriter(sf)
	bw := csv.NewWriter(bf)

	if err := sw.Write(settlementHeader); err != nil {
		return nil, err
	}
	if err := bw.Write(balanceHeader); err != nil {
		return nil, err
	}

	sw.Flush()
	if err := sw.Error(); err != nil {
		return nil, err
	}
	bw.Flush()
	if err := bw.Error(); err != nil {
		return nil, err
	}

	return &CSV{sw, bw, sf, bf}, nil
}

func (j *CSV) RecordSettlement(_ context.Context, r SettlementRecord) error {
	err := j.settlements.Write([]string{
		u(r.PositionID),
		r.Trader,
		r.Asset,
		r.Direction,
		u(r.Amount),
		u(r.EntryPrice),
		u(r.ExitPrice),
		strconv.FormatInt(r.PnL, 10),
		u(r.Settlement),
		r.OpenTime.UTC().Format(time.RFC3339),
		r.CloseTime.UTC().Format(time.RFC3339),
		r.Reason,
	})
	if err != nil {
		return err
	}
	j.settlements.Flush()
	return j.settlements.Error()
}

func (j *CSV) RecordBalance(_ context.Context, s BalanceSnapshot) error {
	err := j.balances.Write([]string{
		s.Time.UTC().Format(time.RFC3339),
		s.Trader,
		u(s.Deposit),
		u(s.Quote),
		s.Reason,
	})
	if err != nil {
		return err
	}
	j.balances.Flush()
	return j.balances.Error()
}

func (j *CSV) Close() error {
	j.settlements.Flush()
	if err := j.settlements.Error(); err != nil {
		return err
	}
	j.balances.Flush()
	if err := j.balances.Error(); err != nil {
		return err
	}

	if err := j.sf.Close(); err != nil {
		return err
	}
	if err := j.bf.Close(); err != nil {
		return err
	}
	return nil
}

func u(x uint64) string {
	return strconv.FormatUint(x, 10)
}
