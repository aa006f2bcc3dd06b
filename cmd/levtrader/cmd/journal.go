package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/levtrader/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query settlement journal data",
	Long: `Query and display settlement records from the SQLite journal.

Subcommands:
  position - Get the settlement of a specific position
  today    - List settlements closed today
  day      - List settlements closed on a specific day
  trader   - List a trader's settlements with a summary

Examples:
  levtrader journal position 12
  levtrader journal today
  levtrader journal day 2024-01-15
  levtrader journal trader alice`,
}

var journalPositionCmd = &cobra.Command{
	Use:   "position <position-id>",
	Short: "Get the settlement of a specific position",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalPosition,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List settlements closed today",
	Args:  cobra.NoArgs,
	RunE:  runJournalToday,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List settlements closed on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var journalTraderCmd = &cobra.Command{
	Use:   "trader <account>",
	Short: "List a trader's settlements",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrader,
}

var journalDBPath string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalPositionCmd)
	journalCmd.AddCommand(journalTodayCmd)
	journalCmd.AddCommand(journalDayCmd)
	journalCmd.AddCommand(journalTraderCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "", "path to SQLite journal DB (default: journal.db_path)")
}

func openJournal() (*journal.SQLite, error) {
	path := journalDBPath
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		if cfg.Journal.Type != "sqlite" {
			return nil, fmt.Errorf("journal type is %q; only sqlite journals can be queried", cfg.Journal.Type)
		}
		path = cfg.Journal.DBPath
	}
	j, err := journal.NewSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

func runJournalPosition(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("position id: %w", err)
	}
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	rec, err := j.GetSettlement(context.Background(), id)
	if err != nil {
		return fmt.Errorf("get settlement: %w", err)
	}

	fmt.Println(journal.FormatSettlementOrg(rec))
	return nil
}

func runJournalToday(cmd *cobra.Command, args []string) error {
	return listDay(time.Now().In(time.Local).Format("2006-01-02"))
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	return listDay(args[0])
}

func listDay(day string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	start, end, err := dayBounds(time.Local, day)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	recs, err := j.ListSettlementsClosedBetween(context.Background(), start, end)
	if err != nil {
		return fmt.Errorf("query settlements: %w", err)
	}

	fmt.Println(journal.FormatSettlementsOrg(recs))
	return nil
}

func runJournalTrader(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	recs, err := j.ListSettlementsByTrader(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("query settlements: %w", err)
	}

	fmt.Println(journal.FormatSettlementsOrg(recs))
	s := journal.Summarize(recs)
	fmt.Printf("\n%d settled (%d won, %d lost), net pnl %d, paid %d\n", s.Count, s.Wins, s.Losses, s.NetPnL, s.Paid)
	return nil
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start, end, nil
}
