package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rustyeddy/bintrader/bot"
	"github.com/rustyeddy/bintrader/calendar"
	"github.com/rustyeddy/bintrader/market"
	"github.com/rustyeddy/bintrader/risk"
	"github.com/rustyeddy/bintrader/schedule"
	"github.com/rustyeddy/bintrader/strategies"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalid            = errors.New("invalid config")
	ErrMissingCredentials = errors.New("missing broker credentials")
)

// Environment variables holding the broker login.
const (
	EnvEmail    = "BINTRADER_EMAIL"
	EnvPassword = "BINTRADER_PASSWORD"
)

// Config represents the complete trading configuration
type Config struct {
	Account  AccountConfig  `json:"account" yaml:"account"`
	Risk     RiskConfig     `json:"risk" yaml:"risk"`
	Trading  TradingConfig  `json:"trading" yaml:"trading"`
	News     NewsConfig     `json:"news" yaml:"news"`
	Broker   BrokerConfig   `json:"broker" yaml:"broker"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Schedule ScheduleConfig `json:"schedule" yaml:"schedule"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

// AccountConfig selects the broker account. A zero balance asks the broker.
type AccountConfig struct {
	Type    string  `json:"type" yaml:"type"` // "practice" or "real"
	Balance float64 `json:"balance" yaml:"balance"`
}

// RiskConfig holds the capital management inputs. Percentages are in points.
type RiskConfig struct {
	StakeMode            string  `json:"stake_mode" yaml:"stake_mode"`
	StakeValue           float64 `json:"stake_value" yaml:"stake_value"`
	CapitalStrategy      string  `json:"capital_strategy" yaml:"capital_strategy"`
	SorosLevels          int     `json:"soros_levels" yaml:"soros_levels"`
	MartingaleMultiplier float64 `json:"martingale_multiplier" yaml:"martingale_multiplier"`
	StopLoss             float64 `json:"stop_loss" yaml:"stop_loss"`
	TakeProfit           float64 `json:"take_profit" yaml:"take_profit"`
}

// TradingConfig drives the session loop. Durations use time.ParseDuration
// syntax, e.g. "1m", "5s".
type TradingConfig struct {
	Assets         []string `json:"assets" yaml:"assets"`
	Timeframe      string   `json:"timeframe" yaml:"timeframe"`
	Expiration     string   `json:"expiration" yaml:"expiration"`
	CandleCount    int      `json:"candle_count" yaml:"candle_count"`
	MinCandles     int      `json:"min_candles" yaml:"min_candles"`
	PostTradePause string   `json:"post_trade_pause" yaml:"post_trade_pause"`
	IdleWait       string   `json:"idle_wait" yaml:"idle_wait"`
	Strategies     []string `json:"strategies" yaml:"strategies"`
}

type NewsConfig struct {
	Enabled       bool     `json:"enabled" yaml:"enabled"`
	EventsFile    string   `json:"events_file" yaml:"events_file"`
	Impacts       []string `json:"impacts" yaml:"impacts"`
	MinutesBefore int      `json:"minutes_before" yaml:"minutes_before"`
	MinutesAfter  int      `json:"minutes_after" yaml:"minutes_after"`
}

// BrokerConfig selects the broker implementation. Only "sim" ships.
type BrokerConfig struct {
	Type            string  `json:"type" yaml:"type"`
	Seed            int64   `json:"seed" yaml:"seed"`
	Payout          float64 `json:"payout" yaml:"payout"`
	ConnectAttempts int     `json:"connect_attempts" yaml:"connect_attempts"`
	ConnectBackoff  string  `json:"connect_backoff" yaml:"connect_backoff"`
	// HistoryFile optionally seeds the simulator with recorded candles.
	HistoryFile string `json:"history_file,omitempty" yaml:"history_file,omitempty"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "csv", "sqlite" or "both"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// ScheduleConfig holds cron specs with a seconds field.
type ScheduleConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Start   string `json:"start" yaml:"start"`
	Stop    string `json:"stop" yaml:"stop"`
}

type MetricsConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Credentials is the broker login read from the environment.
type Credentials struct {
	Email    string
	Password string
}

// LoadFromFile loads configuration from a file (YAML or JSON). Fields the
// file omits keep their Default values.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", jerr)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Account.Type {
	case "practice", "real":
	default:
		return invalid("account.type must be 'practice' or 'real', got %q", c.Account.Type)
	}
	if c.Account.Balance < 0 {
		return invalid("account.balance must not be negative")
	}

	if _, err := c.RiskSettings(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	if len(c.Trading.Assets) == 0 {
		return invalid("trading.assets is required")
	}
	for name, v := range map[string]string{
		"trading.timeframe":        c.Trading.Timeframe,
		"trading.expiration":       c.Trading.Expiration,
		"trading.post_trade_pause": c.Trading.PostTradePause,
		"trading.idle_wait":        c.Trading.IdleWait,
		"broker.connect_backoff":   c.Broker.ConnectBackoff,
	} {
		if _, err := parseDuration(v); err != nil {
			return invalid("%s: %v", name, err)
		}
	}
	if d, _ := parseDuration(c.Trading.Timeframe); d <= 0 {
		return invalid("trading.timeframe must be positive")
	}
	if d, _ := parseDuration(c.Trading.Expiration); d <= 0 {
		return invalid("trading.expiration must be positive")
	}
	if c.Trading.MinCandles <= 0 || c.Trading.CandleCount < c.Trading.MinCandles {
		return invalid("trading.candle_count (%d) must be >= min_candles (%d) > 0",
			c.Trading.CandleCount, c.Trading.MinCandles)
	}
	if len(c.Trading.Strategies) == 0 {
		return invalid("trading.strategies is required")
	}
	reg := strategies.Default()
	for _, name := range c.Trading.Strategies {
		if _, err := reg.New(name); err != nil {
			return fmt.Errorf("%w: trading.strategies: %w", ErrInvalid, err)
		}
	}

	if c.News.Enabled {
		if c.News.EventsFile == "" {
			return invalid("news.events_file required when news is enabled")
		}
		for _, imp := range c.News.Impacts {
			switch calendar.Impact(strings.ToLower(imp)) {
			case calendar.Low, calendar.Medium, calendar.High:
			default:
				return invalid("unknown news impact %q", imp)
			}
		}
		if c.News.MinutesBefore < 0 || c.News.MinutesAfter < 0 {
			return invalid("news minutes must not be negative")
		}
	}

	if c.Broker.Type != "sim" {
		return invalid("broker.type must be 'sim', got %q", c.Broker.Type)
	}
	if c.Broker.Payout <= 0 {
		return invalid("broker.payout must be positive")
	}
	if c.Broker.ConnectAttempts < 1 {
		return invalid("broker.connect_attempts must be >= 1")
	}

	switch c.Journal.Type {
	case "csv":
		if c.Journal.TradesFile == "" {
			return invalid("journal trades_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return invalid("journal db_path required for SQLite type")
		}
	case "both":
		if c.Journal.TradesFile == "" || c.Journal.DBPath == "" {
			return invalid("journal trades_file and db_path required for both")
		}
	default:
		return invalid("journal.type must be 'csv', 'sqlite' or 'both'")
	}

	if c.Schedule.Enabled {
		if _, err := schedule.Parse(c.Schedule.Start); err != nil {
			return invalid("schedule.start: %v", err)
		}
		if _, err := schedule.Parse(c.Schedule.Stop); err != nil {
			return invalid("schedule.stop: %v", err)
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level must be debug, info, warn or error")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return invalid("log.format must be 'text' or 'json'")
	}
	return nil
}

// RiskSettings converts the risk section into risk.Settings.
func (c *Config) RiskSettings() (risk.Settings, error) {
	mode, err := risk.ParseStakeMode(c.Risk.StakeMode)
	if err != nil {
		return risk.Settings{}, err
	}
	policy, err := risk.ParsePolicy(c.Risk.CapitalStrategy, c.Risk.SorosLevels, c.Risk.MartingaleMultiplier)
	if err != nil {
		return risk.Settings{}, err
	}
	s := risk.Settings{
		Stake:         risk.StakeConfig{Mode: mode, Value: decimal.NewFromFloat(c.Risk.StakeValue)},
		Policy:        policy,
		StopLossPct:   decimal.NewFromFloat(c.Risk.StopLoss),
		TakeProfitPct: decimal.NewFromFloat(c.Risk.TakeProfit),
	}
	if err := s.Validate(); err != nil {
		return risk.Settings{}, err
	}
	return s, nil
}

// BotConfig converts the trading section into the session configuration.
// Call it on a validated Config.
func (c *Config) BotConfig() bot.Config {
	timeframe, _ := parseDuration(c.Trading.Timeframe)
	expiration, _ := parseDuration(c.Trading.Expiration)
	pause, _ := parseDuration(c.Trading.PostTradePause)
	idle, _ := parseDuration(c.Trading.IdleWait)
	backoff, _ := parseDuration(c.Broker.ConnectBackoff)

	return bot.Config{
		Timeframe:       timeframe,
		Expiration:      expiration,
		CandleCount:     c.Trading.CandleCount,
		MinCandles:      c.Trading.MinCandles,
		PostTradePause:  pause,
		IdleWait:        idle,
		Preferred:       c.Trading.Assets,
		ConnectAttempts: c.Broker.ConnectAttempts,
		ConnectBackoff:  backoff,
		InitialBalance:  decimal.NewFromFloat(c.Account.Balance),
	}
}

// NewsWindow returns the blackout window around each event.
func (c *Config) NewsWindow() (before, after time.Duration) {
	return time.Duration(c.News.MinutesBefore) * time.Minute, time.Duration(c.News.MinutesAfter) * time.Minute
}

// NewsImpacts returns the configured impact levels.
func (c *Config) NewsImpacts() []calendar.Impact {
	out := make([]calendar.Impact, 0, len(c.News.Impacts))
	for _, imp := range c.News.Impacts {
		out = append(out, calendar.Impact(strings.ToLower(imp)))
	}
	return out
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// LoadCredentials reads the broker login from the environment after loading
// any env files that exist. Values already set in the environment win.
func LoadCredentials(envFiles ...string) (Credentials, error) {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Credentials{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	creds := Credentials{
		Email:    strings.TrimSpace(os.Getenv(EnvEmail)),
		Password: os.Getenv(EnvPassword),
	}
	var missing []string
	if creds.Email == "" {
		missing = append(missing, EnvEmail)
	}
	if creds.Password == "" {
		missing = append(missing, EnvPassword)
	}
	if len(missing) > 0 {
		return creds, fmt.Errorf("%w: %s not set", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return creds, nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{Type: "practice"},
		Risk: RiskConfig{
			StakeMode:            "percentage",
			StakeValue:           1,
			CapitalStrategy:      "none",
			SorosLevels:          2,
			MartingaleMultiplier: 2,
			StopLoss:             10,
			TakeProfit:           5,
		},
		Trading: TradingConfig{
			Assets:         append([]string(nil), market.PreferredAssets...),
			Timeframe:      "1m",
			Expiration:     "1m",
			CandleCount:    110,
			MinCandles:     100,
			PostTradePause: "5s",
			IdleWait:       "1m",
			Strategies:     []string{strategies.BollingerRSIName, strategies.BermanName, strategies.PullbackName},
		},
		News: NewsConfig{
			Impacts:       []string{string(calendar.High)},
			MinutesBefore: 15,
			MinutesAfter:  15,
		},
		Broker: BrokerConfig{
			Type:            "sim",
			Seed:            1,
			Payout:          0.8,
			ConnectAttempts: 3,
			ConnectBackoff:  "5s",
		},
		Journal: JournalConfig{
			Type:       "csv",
			TradesFile: "./trades.csv",
		},
		Schedule: ScheduleConfig{
			Start: "0 0 9 * * 1-5",
			Stop:  "0 0 17 * * 1-5",
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}
