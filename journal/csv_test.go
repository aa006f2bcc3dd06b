package journal

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVJournalHeaders(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sPath := filepath.Join(dir, "settlements.csv")
	bPath := filepath.Join(dir, "balances.csv")

	j, err := NewCSV(sPath, bPath)
	require.NoError(t, err)
	assert.NoError(t, j.Close())

	assert.Equal(t, [][]string{settlementHeader}, readCSV(t, sPath))
	assert.Equal(t, [][]string{balanceHeader}, readCSV(t, bPath))
}

func TestCSVJournalRecordSettlement(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sPath := filepath.Join(dir, "settlements.csv")
	bPath := filepath.Join(dir, "balances.csv")

	j, err := NewCSV(sPath, bPath)
	require.NoError(t, err)

	closeT := time.Date(2024, 1, 2, 4, 5, 6, 0, time.UTC)
	rec := sampleSettlement(7, closeT)
	rec.PnL = -12
	rec.Settlement = 988
	require.NoError(t, j.RecordSettlement(context.Background(), rec))
	require.NoError(t, j.Close())

	rows := readCSV(t, sPath)
	require.Len(t, rows, 2)
	want := []string{
		"7",
		"alice",
		"XLM",
		"long",
		"1000",
		"150000",
		"165000",
		"-12",
		"988",
		closeT.Add(-time.Hour).Format(time.RFC3339),
		closeT.Format(time.RFC3339),
		"ManualClose",
	}
	assert.Equal(t, want, rows[1])
}

func TestCSVJournalRecordBalance(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sPath := filepath.Join(dir, "settlements.csv")
	bPath := filepath.Join(dir, "balances.csv")

	j, err := NewCSV(sPath, bPath)
	require.NoError(t, err)

	ts := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	require.NoError(t, j.RecordBalance(context.Background(), BalanceSnapshot{
		Time:    ts,
		Trader:  "bob",
		Deposit: 2500,
		Quote:   375,
		Reason:  "swap",
	}))
	require.NoError(t, j.Close())

	rows := readCSV(t, bPath)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{ts.Format(time.RFC3339), "bob", "2500", "375", "swap"}, rows[1])
}
