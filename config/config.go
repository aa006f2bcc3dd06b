package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/levtrader/autotrade"
	"github.com/rustyeddy/levtrader/events"
	"github.com/rustyeddy/levtrader/market"
	"github.com/rustyeddy/levtrader/store"
)

// Config is the complete service configuration.
type Config struct {
	Owner         string `json:"owner" yaml:"owner"`
	EscrowAccount string `json:"escrow_account" yaml:"escrow_account"`
	DepositAsset  string `json:"deposit_asset" yaml:"deposit_asset"`
	QuoteAsset    string `json:"quote_asset" yaml:"quote_asset"`

	Store      store.Config     `json:"store" yaml:"store"`
	Journal    JournalConfig    `json:"journal" yaml:"journal"`
	Events     EventsConfig     `json:"events" yaml:"events"`
	Settlement SettlementConfig `json:"settlement" yaml:"settlement"`
	Server     ServerConfig     `json:"server" yaml:"server"`
	Telegram   TelegramConfig   `json:"telegram" yaml:"telegram"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
	AutoTrade  AutoTradeConfig  `json:"autotrade" yaml:"autotrade"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type            string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	SettlementsFile string `json:"settlements_file,omitempty" yaml:"settlements_file,omitempty"`
	BalancesFile    string `json:"balances_file,omitempty" yaml:"balances_file,omitempty"`
	DBPath          string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

type EventsConfig struct {
	// Log mirrors every event into the service log.
	Log   bool                `json:"log" yaml:"log"`
	Kafka *events.KafkaConfig `json:"kafka,omitempty" yaml:"kafka,omitempty"`
}

// SettlementConfig seeds the in-memory treasury that pays settlements.
type SettlementConfig struct {
	TreasuryBalance uint64 `json:"treasury_balance" yaml:"treasury_balance"`
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

type TelegramConfig struct {
	Token       string `json:"token,omitempty" yaml:"token,omitempty"`
	PollTimeout int    `json:"poll_timeout" yaml:"poll_timeout"` // seconds
}

type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // "json" or "console"
}

type AutoTradeConfig struct {
	DefaultStrategy string `json:"default_strategy" yaml:"default_strategy"`
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile writes YAML for .yaml/.yml paths and JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Owner == "" {
		return fmt.Errorf("owner is required")
	}
	if c.EscrowAccount == "" {
		return fmt.Errorf("escrow_account is required")
	}
	if _, err := market.NewAsset(c.DepositAsset); err != nil {
		return fmt.Errorf("deposit_asset: %w", err)
	}
	if _, err := market.NewAsset(c.QuoteAsset); err != nil {
		return fmt.Errorf("quote_asset: %w", err)
	}

	switch c.Store.Type {
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path required for sqlite store")
		}
	case "redis":
		if c.Store.Addr == "" {
			return fmt.Errorf("store.addr required for redis store")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn required for postgres store")
		}
	default:
		return fmt.Errorf("store.type must be one of memory, sqlite, redis, postgres")
	}

	switch c.Journal.Type {
	case "none":
	case "csv":
		if c.Journal.SettlementsFile == "" || c.Journal.BalancesFile == "" {
			return fmt.Errorf("journal settlements_file and balances_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}

	if c.Events.Kafka != nil && len(c.Events.Kafka.Brokers) == 0 {
		return fmt.Errorf("events.kafka.brokers must not be empty")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Telegram.PollTimeout < 0 {
		return fmt.Errorf("telegram.poll_timeout must not be negative")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console'")
	}
	if _, err := autotrade.Lookup(c.AutoTrade.DefaultStrategy); err != nil {
		return fmt.Errorf("autotrade.default_strategy: %w", err)
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Owner:         "owner",
		EscrowAccount: "escrow",
		DepositAsset:  string(market.XLM),
		QuoteAsset:    string(market.USDC),
		Store: store.Config{
			Type: "sqlite",
			Path: "./levtrader.db",
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./journal.db",
		},
		Events: EventsConfig{
			Log: true,
		},
		Settlement: SettlementConfig{
			TreasuryBalance: 1_000_000 * market.Scale,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Telegram: TelegramConfig{
			PollTimeout: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		AutoTrade: AutoTradeConfig{
			DefaultStrategy: autotrade.DefaultStrategy,
		},
	}
}
