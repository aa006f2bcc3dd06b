package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/levtrader/autotrade"
	"github.com/rustyeddy/levtrader/internal/app"
	"github.com/rustyeddy/levtrader/market"
)

var autoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Strategy driven opens and threshold closes",
	Long: fmt.Sprintf(`Let a strategy choose the side of a new position, or close every open
position whose PnL is below %d or above %d.

Strategies: %s

Examples:
  levtrader auto trade XLM 50 --strategy mean-revert --as alice
  levtrader auto close --as alice`, autotrade.StopLoss, autotrade.TakeProfit, strings.Join(autotrade.Names(), ", ")),
}

var autoTradeCmd = &cobra.Command{
	Use:   "trade <asset> <amount>",
	Short: "Open a position on the strategy's side",
	Args:  cobra.ExactArgs(2),
	RunE:  runAutoTrade,
}

var autoCloseCmd = &cobra.Command{
	Use:   "close",
	Short: "Close positions past stop loss or take profit",
	Args:  cobra.NoArgs,
	RunE:  runAutoClose,
}

var autoStrategy string

func init() {
	rootCmd.AddCommand(autoCmd)
	autoCmd.AddCommand(autoTradeCmd)
	autoCmd.AddCommand(autoCloseCmd)

	autoTradeCmd.Flags().StringVarP(&autoStrategy, "strategy", "s", "", "strategy name (default: autotrade.default_strategy)")
}

func runAutoTrade(cmd *cobra.Command, args []string) error {
	asset, err := market.NewAsset(args[0])
	if err != nil {
		return err
	}
	amt, err := market.ParseAmount(args[1], false)
	if err != nil {
		return err
	}
	if autoStrategy != "" {
		if _, err := autotrade.Lookup(autoStrategy); err != nil {
			return err
		}
	}
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		id, err := a.Auto.AutoTrade(ctx, actor(a.Config), asset, amt, autoStrategy)
		if err != nil {
			return err
		}
		p, err := a.Engine.Position(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Auto opened position %d\n", id)
		printPosition(p)
		return nil
	})
}

func runAutoClose(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		closed, err := a.Auto.AutoClosePositions(ctx, actor(a.Config))
		for _, id := range closed {
			fmt.Printf("✓ Closed position %d\n", id)
		}
		if err != nil {
			return err
		}
		if len(closed) == 0 {
			fmt.Println("Nothing to close")
		}
		return nil
	})
}
