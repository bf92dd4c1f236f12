package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete configuration for the trading platform.
type Config struct {
	Broker    BrokerConfig    `yaml:"broker"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Risk      RiskConfig      `yaml:"risk"`
	Execution ExecutionConfig `yaml:"execution"`
	Strategy  StrategyConfig  `yaml:"strategy"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
}

// BrokerConfig carries the venue credentials and endpoints. AppKey,
// AppSecretKey, AccountID, and AccountPassword are required; they are
// normally supplied as ${VAR} placeholders resolved from the environment.
type BrokerConfig struct {
	AppKey          string `yaml:"appkey"`
	AppSecretKey    string `yaml:"appsecretkey"`
	AccountID       string `yaml:"account_id"`
	AccountPassword string `yaml:"account_password"`
	PaperTrading    bool   `yaml:"paper_trading"`
	RESTBase        string `yaml:"rest_base"`
	WSBase          string `yaml:"ws_base"`
	TokenPath       string `yaml:"token_path"` // on-disk token record, e.g. data/ls_token.json
}

// SchedulerConfig controls the four daily cron-style jobs (C18).
type SchedulerConfig struct {
	UniverseScanAt  string `yaml:"universe_scan_at"`  // "08:10"
	EngineStartAt   string `yaml:"engine_start_at"`   // "08:30"
	PrimarySessionAt string `yaml:"primary_session_at"` // "09:00"
	SettlementAt    string `yaml:"settlement_at"`     // "15:30"
	ReportDir       string `yaml:"report_dir"`
}

// RiskConfig holds the risk manager's configurable limits (C15).
type RiskConfig struct {
	MaxMDD                    float64 `yaml:"max_mdd"`
	MaxPositionSize           float64 `yaml:"max_position_size"`
	MaxDailyLoss              float64 `yaml:"max_daily_loss"`
	MaxSlippage               float64 `yaml:"max_slippage"`
	MaxDailyTradesPerSymbol   int     `yaml:"max_daily_trades_per_symbol"`
	ConsecutiveLossCooldown   int     `yaml:"consecutive_loss_cooldown"` // losses in a row before cooldown; parsed but not read by cmd/trader
}

// ExecutionConfig controls the realtime execution engine (C16).
type ExecutionConfig struct {
	Timeframe       string        `yaml:"timeframe"` // e.g. "1m", "5m"
	FillAwaitSeconds int          `yaml:"fill_await_seconds"`
}

// StrategyConfig selects and parameterizes one strategy instance via the
// name -> constructor registry (C12).
type StrategyConfig struct {
	Name    string             `yaml:"name"`    // registry key, e.g. "MACrossStrategy"
	Symbols []string           `yaml:"symbols"` // tradable universe
	Params  map[string]float64 `yaml:"params"`
}

// FillAwait returns the configured fill-await deadline.
func (c ExecutionConfig) FillAwait() time.Duration {
	if c.FillAwaitSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.FillAwaitSeconds) * time.Second
}

// BarInterval parses Timeframe ("1m", "5m", "1h") into a time.Duration,
// falling back to one minute on an unparseable value.
func (c ExecutionConfig) BarInterval() time.Duration {
	d, err := time.ParseDuration(c.Timeframe)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// StorageConfig controls the OHLC bar store.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // sqlite file path, or ":memory:"
}

// LogConfig controls the structured logging handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML config at path, layering .env (if present) into the
// process environment first, then expanding ${VAR} placeholders against
// the environment, then applying defaults. Required broker credentials
// must be non-empty after expansion.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	expanded := os.Expand(string(data), func(key string) string {
		v, _ := os.LookupEnv(key)
		return v
	})

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validateRequired(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Risk.MaxMDD <= 0 {
		cfg.Risk.MaxMDD = 0.20
	}
	if cfg.Risk.MaxPositionSize <= 0 {
		cfg.Risk.MaxPositionSize = 0.10
	}
	if cfg.Risk.MaxDailyLoss <= 0 {
		cfg.Risk.MaxDailyLoss = 0.05
	}
	if cfg.Risk.MaxSlippage <= 0 {
		cfg.Risk.MaxSlippage = 0.005
	}
	if cfg.Risk.MaxDailyTradesPerSymbol <= 0 {
		cfg.Risk.MaxDailyTradesPerSymbol = 10
	}
	if cfg.Execution.Timeframe == "" {
		cfg.Execution.Timeframe = "1m"
	}
	if cfg.Strategy.Name == "" {
		cfg.Strategy.Name = "MACrossStrategy"
	}
	if cfg.Strategy.Params == nil {
		cfg.Strategy.Params = map[string]float64{}
	}
	if cfg.Scheduler.UniverseScanAt == "" {
		cfg.Scheduler.UniverseScanAt = "08:10"
	}
	if cfg.Scheduler.EngineStartAt == "" {
		cfg.Scheduler.EngineStartAt = "08:30"
	}
	if cfg.Scheduler.PrimarySessionAt == "" {
		cfg.Scheduler.PrimarySessionAt = "09:00"
	}
	if cfg.Scheduler.SettlementAt == "" {
		cfg.Scheduler.SettlementAt = "15:30"
	}
	if cfg.Scheduler.ReportDir == "" {
		cfg.Scheduler.ReportDir = "reports"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "data/bars.db"
	}
	if cfg.Broker.TokenPath == "" {
		cfg.Broker.TokenPath = "data/ls_token.json"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func validateRequired(cfg *Config) error {
	missing := []string{}
	if cfg.Broker.AppKey == "" {
		missing = append(missing, "broker.appkey")
	}
	if cfg.Broker.AppSecretKey == "" {
		missing = append(missing, "broker.appsecretkey")
	}
	if cfg.Broker.AccountID == "" {
		missing = append(missing, "broker.account_id")
	}
	if cfg.Broker.AccountPassword == "" {
		missing = append(missing, "broker.account_password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config keys: %v", missing)
	}
	return nil
}
