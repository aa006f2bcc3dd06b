package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/levtrader/internal/app"
	"github.com/rustyeddy/levtrader/market"
	"github.com/rustyeddy/levtrader/pricing"
)

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Read or push oracle prices",
	Long: `Read current prices or push an oracle price.

Subcommands:
  get [asset...] - show prices (all reference assets when none given)
  set <asset> <price> - push an oracle price (owner only)

Examples:
  levtrader price get XLM BTC
  levtrader price set XLM 0.162`,
}

var priceGetCmd = &cobra.Command{
	Use:   "get [asset...]",
	Short: "Show current prices",
	RunE:  runPriceGet,
}

var priceSetCmd = &cobra.Command{
	Use:   "set <asset> <price>",
	Short: "Push an oracle price",
	Args:  cobra.ExactArgs(2),
	RunE:  runPriceSet,
}

func init() {
	rootCmd.AddCommand(priceCmd)
	priceCmd.AddCommand(priceGetCmd)
	priceCmd.AddCommand(priceSetCmd)
}

func runPriceGet(cmd *cobra.Command, args []string) error {
	assets := pricing.Known()
	if len(args) > 0 {
		assets = assets[:0:0]
		for _, s := range args {
			a, err := market.NewAsset(s)
			if err != nil {
				return err
			}
			assets = append(assets, a)
		}
	}
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		for _, asset := range assets {
			px, err := a.Engine.Price(ctx, asset)
			if err != nil {
				return err
			}
			_, oracle, err := a.Engine.OraclePrice(ctx, asset)
			if err != nil {
				return err
			}
			src := "reference"
			if oracle {
				src = "oracle"
			}
			fmt.Printf("%-6s %14s  (%s)\n", asset, px, src)
		}
		return nil
	})
}

func runPriceSet(cmd *cobra.Command, args []string) error {
	asset, err := market.NewAsset(args[0])
	if err != nil {
		return err
	}
	px, err := market.ParsePrice(args[1], false)
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if who := actor(a.Config); !a.Engine.IsOwner(who) {
			return fmt.Errorf("%s is not the owner", who)
		}
		if err := a.Engine.UpdatePrice(ctx, asset, px); err != nil {
			return err
		}
		fmt.Printf("✓ %s oracle price set to %s\n", asset, px)
		return nil
	})
}
