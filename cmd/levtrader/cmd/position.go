package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/levtrader/internal/app"
	"github.com/rustyeddy/levtrader/ledger"
	"github.com/rustyeddy/levtrader/market"
)

var openCmd = &cobra.Command{
	Use:   "open <asset> <amount> <long|short>",
	Short: "Open a position at the current price",
	Long: `Open a leveraged position for the acting account. The account must
hold at least amount in deposits.

Example:
  levtrader open XLM 100 long --as alice`,
	Args: cobra.ExactArgs(3),
	RunE: runOpen,
}

var closeCmd = &cobra.Command{
	Use:   "close <position-id>",
	Short: "Close a position and pay out its settlement",
	Args:  cobra.ExactArgs(1),
	RunE:  runClose,
}

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "List the acting account's positions",
	Args:  cobra.NoArgs,
	RunE:  runPositions,
}

var (
	closeReason   string
	positionsOpen bool
)

func init() {
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(closeCmd)
	rootCmd.AddCommand(positionsCmd)

	closeCmd.Flags().StringVarP(&closeReason, "reason", "r", "", "reason recorded in the journal")
	positionsCmd.Flags().BoolVar(&positionsOpen, "open", false, "only open positions")
}

func runOpen(cmd *cobra.Command, args []string) error {
	asset, err := market.NewAsset(args[0])
	if err != nil {
		return err
	}
	amt, err := market.ParseAmount(args[1], false)
	if err != nil {
		return err
	}
	dir, err := market.ParseDirection(args[2])
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		id, err := a.Engine.Open(ctx, actor(a.Config), asset, amt, dir)
		if err != nil {
			return err
		}
		p, err := a.Engine.Position(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Opened position %d\n", id)
		printPosition(p)
		return nil
	})
}

func runClose(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("position id: %w", err)
	}
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if _, err := a.Engine.Close(ctx, id, closeReason); err != nil {
			return err
		}
		p, err := a.Engine.Position(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Closed position %d\n", id)
		printPosition(p)
		return nil
	})
}

func runPositions(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		who := actor(a.Config)
		var (
			list []ledger.Position
			err  error
		)
		if positionsOpen {
			list, err = a.Engine.TraderActivePositions(ctx, who)
		} else {
			list, err = a.Engine.TraderPositions(ctx, who)
		}
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Printf("No positions for %s\n", who)
			return nil
		}
		for _, p := range list {
			printPosition(p)
		}
		return nil
	})
}

func printPosition(p ledger.Position) {
	fmt.Printf("  #%d %s %s %s %s @ %s [%s]\n",
		p.ID, p.Trader, p.Direction, p.Amount, p.Asset, p.EntryPrice, p.Status)
	if p.PnL != nil {
		fmt.Printf("      exit %s  pnl %d  settlement %s\n", p.ExitPrice, *p.PnL, p.Settlement)
	}
}
