package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/levtrader/internal/app"
	"github.com/rustyeddy/levtrader/market"
)

var depositCmd = &cobra.Command{
	Use:   "deposit <amount>",
	Short: "Credit funds to an account",
	Long: `Add amount of the deposit asset to the acting account's balance.
Amounts are decimals with up to six places.

Example:
  levtrader deposit 250 --as alice`,
	Args: cobra.ExactArgs(1),
	RunE: runDeposit,
}

var swapCmd = &cobra.Command{
	Use:   "swap <amount>",
	Short: "Convert deposit funds into the quote asset",
	Args:  cobra.ExactArgs(1),
	RunE:  runSwap,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show position counts and balances",
	Long: `Show the acting account's position counts and balances, followed by
the global totals.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(depositCmd)
	rootCmd.AddCommand(swapCmd)
	rootCmd.AddCommand(statsCmd)
}

func runDeposit(cmd *cobra.Command, args []string) error {
	amt, err := market.ParseAmount(args[0], false)
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		who := actor(a.Config)
		bal, err := a.Engine.Deposit(ctx, who, amt)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Deposited %s %s to %s\n", amt, a.Engine.Config().DepositAsset, who)
		fmt.Printf("  Balance: %s\n", bal)
		return nil
	})
}

func runSwap(cmd *cobra.Command, args []string) error {
	amt, err := market.ParseAmount(args[0], false)
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		who := actor(a.Config)
		out, err := a.Engine.Swap(ctx, who, amt)
		if err != nil {
			return err
		}
		ec := a.Engine.Config()
		fmt.Printf("✓ Swapped %s %s for %s %s\n", amt, ec.DepositAsset, out, ec.QuoteAsset)
		return nil
	})
}

func runStats(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		who := actor(a.Config)
		st, err := a.Engine.TraderStats(ctx, who)
		if err != nil {
			return err
		}
		dep, err := a.Engine.DepositBalance(ctx, who)
		if err != nil {
			return err
		}
		quote, err := a.Engine.QuoteBalance(ctx, who)
		if err != nil {
			return err
		}
		global, err := a.Engine.GlobalStats(ctx)
		if err != nil {
			return err
		}
		ec := a.Engine.Config()
		fmt.Printf("%s\n", who)
		fmt.Printf("  Positions: %d (%d open)\n", st.Total, st.Active)
		fmt.Printf("  %s: %s\n", ec.DepositAsset, dep)
		fmt.Printf("  %s: %s\n", ec.QuoteAsset, quote)
		fmt.Printf("Global\n")
		fmt.Printf("  Positions: %d (%d open)\n", global.Total, global.Active)
		return nil
	})
}
