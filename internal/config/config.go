package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	DB     DBConfig     `mapstructure:"db"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Cron   CronConfig   `mapstructure:"cron"`

	Market    MarketConfig    `mapstructure:"market"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Reasoning ReasoningConfig `mapstructure:"reasoning"`
	Scanner   ScannerConfig   `mapstructure:"scanner"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	// DSN empty selects the in-memory store (dev and tests).
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type AuthConfig struct {
	Disabled bool   `mapstructure:"disabled"`
	Token    string `mapstructure:"token"`
}

type CronConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Scan    string `mapstructure:"scan"`
}

// MarketConfig controls the quote/indicator cache and fetch retries.
type MarketConfig struct {
	QuoteTTL     time.Duration `mapstructure:"quote_ttl"`
	IndicatorTTL time.Duration `mapstructure:"indicator_ttl"`

	RetryAttempts    int           `mapstructure:"retry_attempts"`
	RateLimitBackoff time.Duration `mapstructure:"rate_limit_backoff"`
	TransientBackoff time.Duration `mapstructure:"transient_backoff"`

	IndicatorInterval string `mapstructure:"indicator_interval"`
}

type ProvidersConfig struct {
	AlphaVantage AlphaVantageConfig `mapstructure:"alpha_vantage"`
	Binance      BinanceConfig      `mapstructure:"binance"`
}

type AlphaVantageConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKeyEnv string        `mapstructure:"api_key_env"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type BinanceConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ReasoningConfig struct {
	// APIKeyEnv names the env var holding the credential. An empty or unset
	// credential routes every decision to the local heuristic.
	APIKeyEnv   string        `mapstructure:"api_key_env"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int64         `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type ScannerConfig struct {
	Symbols     []string      `mapstructure:"symbols"`
	SymbolDelay time.Duration `mapstructure:"symbol_delay"`

	// Interval drives the plain ticker loop when cron is disabled.
	Interval time.Duration `mapstructure:"interval"`

	// RSI revert thresholds for the cleanup pass. A BUY closes once RSI rises
	// above BuyRevertRSI; a SELL closes once RSI falls below SellRevertRSI.
	BuyRevertRSI  float64 `mapstructure:"buy_revert_rsi"`
	SellRevertRSI float64 `mapstructure:"sell_revert_rsi"`

	SeedOnStart bool `mapstructure:"seed_on_start"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("auth.disabled", false)
	v.SetDefault("auth.token", "")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.scan", "@every 1h")

	v.SetDefault("market.quote_ttl", "30m")
	v.SetDefault("market.indicator_ttl", "1m")
	v.SetDefault("market.retry_attempts", 2)
	v.SetDefault("market.rate_limit_backoff", "5s")
	v.SetDefault("market.transient_backoff", "2s")
	v.SetDefault("market.indicator_interval", "15min")

	v.SetDefault("providers.alpha_vantage.base_url", "https://www.alphavantage.co/query")
	v.SetDefault("providers.alpha_vantage.api_key_env", "ALPHA_VANTAGE_API_KEY")
	v.SetDefault("providers.alpha_vantage.timeout", "15s")
	v.SetDefault("providers.binance.base_url", "https://api.binance.com/api/v3")
	v.SetDefault("providers.binance.timeout", "10s")

	v.SetDefault("reasoning.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("reasoning.base_url", "")
	v.SetDefault("reasoning.model", "gpt-4o")
	v.SetDefault("reasoning.temperature", 0.2)
	v.SetDefault("reasoning.max_tokens", 900)
	v.SetDefault("reasoning.timeout", "45s")

	v.SetDefault("scanner.symbols", []string{
		"EUR/USD", "GBP/USD", "USD/JPY", "BTC/USD", "ETH/USD", "AAPL", "TSLA",
	})
	v.SetDefault("scanner.symbol_delay", "3s")
	v.SetDefault("scanner.interval", "1h")
	v.SetDefault("scanner.buy_revert_rsi", 55)
	v.SetDefault("scanner.sell_revert_rsi", 45)
	v.SetDefault("scanner.seed_on_start", true)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
