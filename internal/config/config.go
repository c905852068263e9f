package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"spot-perps-arb/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Tokens   TokensConfig   `mapstructure:"tokens"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	Arb      ArbConfig      `mapstructure:"arb"`
	Server   ServerConfig   `mapstructure:"server"`
	Alerting AlertingConfig `mapstructure:"alerting"`
	Export   ExportConfig   `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// TokensConfig locates the static bank configuration file.
type TokensConfig struct {
	Path string `mapstructure:"path"`
}

// RetryConfig tunes the exponential backoff wrapped around fetches.
type RetryConfig struct {
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	Multiplier   float64       `mapstructure:"multiplier"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
}

// SourcesConfig covers every external data source.
type SourcesConfig struct {
	MoneyMarkets MoneyMarketsConfig `mapstructure:"money_markets"`
	Hyperliquid  HyperliquidConfig  `mapstructure:"hyperliquid"`
	Drift        DriftConfig        `mapstructure:"drift"`
	Birdeye      BirdeyeConfig      `mapstructure:"birdeye"`
	Retry        RetryConfig        `mapstructure:"retry"`
}

// MoneyMarketsConfig points at the lending-rate aggregator API.
type MoneyMarketsConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// HyperliquidConfig covers the Hyperliquid info API.
type HyperliquidConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// DriftConfig covers the Drift data API. MarketIndexes maps perp symbols to
// the market index the funding-rate history endpoint expects.
type DriftConfig struct {
	BaseURL        string         `mapstructure:"base_url"`
	RequestTimeout time.Duration  `mapstructure:"request_timeout"`
	MarketIndexes  map[string]int `mapstructure:"market_indexes"`
}

// BirdeyeConfig covers the price-history API. MinInterval is the app-wide
// pacing gate shared across every caller of the client.
type BirdeyeConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MinInterval    time.Duration `mapstructure:"min_interval"`
}

// RefreshConfig governs the serve-loop cadence and quote freshness.
type RefreshConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	CacheEntries  int           `mapstructure:"cache_entries"`
}

// ArbConfig holds the calculation defaults. Variants maps each base asset to
// the spot variants evaluated for it, in evaluation order; the base asset is
// also the perp symbol used on funding venues.
type ArbConfig struct {
	TargetHours      int                 `mapstructure:"target_hours"`
	MaxLeverage      float64             `mapstructure:"max_leverage"`
	ShortMinLeverage float64             `mapstructure:"short_min_leverage"`
	DisplayLeverage  float64             `mapstructure:"display_leverage"`
	LookbackHours    int                 `mapstructure:"lookback_hours"`
	TotalCapitalUSD  float64             `mapstructure:"total_capital_usd"`
	Variants         map[string][]string `mapstructure:"variants"`
}

// ServerConfig configures the JSON API.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// AlertingConfig defines alert thresholds and routing.
type AlertingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// ThresholdPct is the minimum annualized opportunity magnitude (in
	// percent) that triggers an alert.
	ThresholdPct float64        `mapstructure:"threshold_pct"`
	Cooldown     time.Duration  `mapstructure:"cooldown"`
	Channels     []string       `mapstructure:"channels"`
	Telegram     TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ARBWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "arbwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("tokens.path", "token_config.json")

	v.SetDefault("sources.money_markets.base_url", "https://historical-apy.asgard.finance")
	v.SetDefault("sources.money_markets.request_timeout", "12s")
	v.SetDefault("sources.hyperliquid.base_url", "https://api-ui.hyperliquid.xyz/info")
	v.SetDefault("sources.hyperliquid.request_timeout", "5s")
	v.SetDefault("sources.hyperliquid.user_agent", "arbwatcher/1.0")
	v.SetDefault("sources.drift.base_url", "https://mainnet-beta.api.drift.trade")
	v.SetDefault("sources.drift.request_timeout", "5s")
	v.SetDefault("sources.drift.market_indexes", map[string]int{"SOL": 0, "BTC": 1, "ETH": 2})
	v.SetDefault("sources.birdeye.base_url", "https://public-api.birdeye.so")
	v.SetDefault("sources.birdeye.request_timeout", "10s")
	v.SetDefault("sources.birdeye.min_interval", "1s")
	v.SetDefault("sources.retry.initial_delay", "500ms")
	v.SetDefault("sources.retry.multiplier", 2.0)
	v.SetDefault("sources.retry.max_attempts", 10)

	v.SetDefault("refresh.interval", "5m")
	v.SetDefault("refresh.align_to_bucket", true)
	v.SetDefault("refresh.startup_delay", "0s")
	v.SetDefault("refresh.cache_ttl", "5m")
	v.SetDefault("refresh.cache_entries", 512)

	v.SetDefault("arb.target_hours", 8760)
	v.SetDefault("arb.max_leverage", 5.0)
	v.SetDefault("arb.short_min_leverage", 2.0)
	v.SetDefault("arb.display_leverage", 2.0)
	v.SetDefault("arb.variants", map[string][]string{
		"SOL": {"SOL", "JITOSOL", "JUPSOL", "INF"},
		"BTC": {"WBTC", "CBBTC"},
	})
	v.SetDefault("arb.lookback_hours", 720)
	v.SetDefault("arb.total_capital_usd", 10000.0)

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.addr", ":8080")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.threshold_pct", 5.0)
	v.SetDefault("alerting.cooldown", "30m")
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh.interval must be greater than zero")
	}
	if c.Arb.TargetHours <= 0 {
		return fmt.Errorf("arb.target_hours must be greater than zero")
	}
	if c.Arb.MaxLeverage < 1 {
		return fmt.Errorf("arb.max_leverage must be at least 1")
	}
	if c.Arb.ShortMinLeverage < 1 {
		return fmt.Errorf("arb.short_min_leverage must be at least 1")
	}
	if c.Arb.DisplayLeverage < 1 {
		return fmt.Errorf("arb.display_leverage must be at least 1")
	}
	if c.Arb.TotalCapitalUSD <= 0 {
		return fmt.Errorf("arb.total_capital_usd must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Sources.Retry.MaxAttempts <= 0 || c.Sources.Retry.MaxAttempts > 10 {
		return fmt.Errorf("sources.retry.max_attempts must be between 1 and 10")
	}
	if c.Alerting.ThresholdPct < 0 {
		return fmt.Errorf("alerting.threshold_pct cannot be negative")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
