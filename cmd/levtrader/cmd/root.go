package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/rustyeddy/levtrader/config"
	"github.com/rustyeddy/levtrader/internal/app"
	"github.com/rustyeddy/levtrader/market"
	"github.com/rustyeddy/levtrader/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "levtrader",
	Short: "Leveraged position ledger and settlement engine",
	Long: `levtrader keeps a ledger of leveraged long and short positions, values
them against oracle or reference prices, and settles them out of an
escrow account when they close.

It can run as a service (HTTP API, event stream, Telegram bot) or be
driven one command at a time against the same store.

Configuration comes from --config (YAML or JSON) with LEVTRADER_*
environment overrides, e.g. LEVTRADER_STORE_TYPE=memory.`,
	SilenceUsage: true,
}

var v = viper.New()

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return err
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.PersistentFlags().String("config", "", "config file (YAML or JSON); defaults are used when empty")
	rootCmd.PersistentFlags().String("as", "", "account to act as (default: the configured owner)")
	rootCmd.PersistentFlags().String("log-level", "", "override logging.level")

	_ = v.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("as", rootCmd.PersistentFlags().Lookup("as"))
	_ = v.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	v.SetEnvPrefix("LEVTRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// overridable lists the scalar settings that flags or the environment may
// replace after the file is read.
func overridable(cfg *config.Config) map[string]*string {
	return map[string]*string{
		"owner":           &cfg.Owner,
		"escrow_account":  &cfg.EscrowAccount,
		"deposit_asset":   &cfg.DepositAsset,
		"quote_asset":     &cfg.QuoteAsset,
		"store.type":      &cfg.Store.Type,
		"store.path":      &cfg.Store.Path,
		"store.addr":      &cfg.Store.Addr,
		"store.dsn":       &cfg.Store.DSN,
		"journal.type":    &cfg.Journal.Type,
		"journal.db_path": &cfg.Journal.DBPath,
		"server.addr":     &cfg.Server.Addr,
		"telegram.token":  &cfg.Telegram.Token,
		"logging.level":   &cfg.Logging.Level,
		"logging.format":  &cfg.Logging.Format,
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if path := v.GetString("config"); path != "" {
		var err error
		if cfg, err = config.LoadFromFile(path); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	for key, dst := range overridable(cfg) {
		if s := v.GetString(key); s != "" {
			*dst = s
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// actor is the account a one-shot command acts as.
func actor(cfg *config.Config) market.Account {
	if as := v.GetString("as"); as != "" {
		return market.Account(as)
	}
	return market.Account(cfg.Owner)
}

// withApp loads config, opens the store and runs fn against the engine.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			log.Warn("close", zap.Error(cerr))
		}
	}()
	return fn(ctx, a)
}
