package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rustyeddy/bintrader/calendar"
	"github.com/rustyeddy/bintrader/risk"
	"github.com/rustyeddy/bintrader/strategies"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()
	require.NoError(t, Default().Validate())
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"bintrader.yaml", "bintrader.yml", "bintrader.json"} {
		name := name
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			cfg.Risk.CapitalStrategy = "soros"
			cfg.Risk.SorosLevels = 3
			cfg.Trading.Strategies = []string{strategies.PullbackName}
			cfg.Journal.Type = "both"
			cfg.Journal.DBPath = "./trades.db"

			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, cfg.SaveToFile(path))

			got, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, got)
		})
	}
}

func TestLoadKeepsDefaultsForOmittedFields(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
risk:
  stake_mode: fixed
  stake_value: 25
  capital_strategy: martingale
trading:
  assets: [EURUSD]
`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fixed", cfg.Risk.StakeMode)
	assert.Equal(t, 25.0, cfg.Risk.StakeValue)
	assert.Equal(t, 2.0, cfg.Risk.MartingaleMultiplier)
	assert.Equal(t, []string{"EURUSD"}, cfg.Trading.Assets)
	assert.Equal(t, "1m", cfg.Trading.Timeframe)
	assert.Equal(t, "sim", cfg.Broker.Type)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := LoadFromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	garbage := filepath.Join(dir, "garbage.yaml")
	require.NoError(t, os.WriteFile(garbage, []byte("risk: [unclosed"), 0o644))
	_, err = LoadFromFile(garbage)
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("risk:\n  stop_loss: -1\n"), 0o644))
	_, err = LoadFromFile(bad)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.ErrorIs(t, err, risk.ErrInvalidSettings)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"account type", func(c *Config) { c.Account.Type = "demo" }},
		{"negative balance", func(c *Config) { c.Account.Balance = -1 }},
		{"stake mode", func(c *Config) { c.Risk.StakeMode = "kelly" }},
		{"zero stake", func(c *Config) { c.Risk.StakeValue = 0 }},
		{"capital strategy", func(c *Config) { c.Risk.CapitalStrategy = "fibonacci" }},
		{"soros levels", func(c *Config) { c.Risk.CapitalStrategy = "soros"; c.Risk.SorosLevels = 0 }},
		{"martingale multiplier", func(c *Config) { c.Risk.CapitalStrategy = "martingale"; c.Risk.MartingaleMultiplier = 1 }},
		{"stop loss", func(c *Config) { c.Risk.StopLoss = 0 }},
		{"take profit", func(c *Config) { c.Risk.TakeProfit = -5 }},
		{"no assets", func(c *Config) { c.Trading.Assets = nil }},
		{"timeframe syntax", func(c *Config) { c.Trading.Timeframe = "one minute" }},
		{"zero expiration", func(c *Config) { c.Trading.Expiration = "0s" }},
		{"candle count", func(c *Config) { c.Trading.CandleCount = 50 }},
		{"unknown strategy", func(c *Config) { c.Trading.Strategies = []string{"berman", "magic"} }},
		{"no strategies", func(c *Config) { c.Trading.Strategies = nil }},
		{"news file", func(c *Config) { c.News.Enabled = true }},
		{"news impact", func(c *Config) { c.News.Enabled = true; c.News.EventsFile = "x.yaml"; c.News.Impacts = []string{"huge"} }},
		{"broker type", func(c *Config) { c.Broker.Type = "bybit" }},
		{"payout", func(c *Config) { c.Broker.Payout = 0 }},
		{"connect attempts", func(c *Config) { c.Broker.ConnectAttempts = 0 }},
		{"journal type", func(c *Config) { c.Journal.Type = "parquet" }},
		{"csv path", func(c *Config) { c.Journal.TradesFile = "" }},
		{"sqlite path", func(c *Config) { c.Journal.Type = "sqlite" }},
		{"schedule spec", func(c *Config) { c.Schedule.Enabled = true; c.Schedule.Start = "9am" }},
		{"log level", func(c *Config) { c.Log.Level = "trace" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestRiskSettings(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Risk.StakeMode = "fixed"
	cfg.Risk.StakeValue = 12.5
	cfg.Risk.CapitalStrategy = "soros"
	cfg.Risk.SorosLevels = 4

	s, err := cfg.RiskSettings()
	require.NoError(t, err)
	assert.Equal(t, risk.Fixed, s.Stake.Mode)
	assert.True(t, s.Stake.Value.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, risk.SorosPolicy(4), s.Policy)
	assert.True(t, s.StopLossPct.Equal(decimal.NewFromInt(10)))
	assert.True(t, s.TakeProfitPct.Equal(decimal.NewFromInt(5)))
}

func TestBotConfig(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Account.Balance = 250
	cfg.Trading.PostTradePause = "10s"

	bc := cfg.BotConfig()
	assert.Equal(t, time.Minute, bc.Timeframe)
	assert.Equal(t, time.Minute, bc.Expiration)
	assert.Equal(t, 10*time.Second, bc.PostTradePause)
	assert.Equal(t, 5*time.Second, bc.ConnectBackoff)
	assert.Equal(t, 110, bc.CandleCount)
	assert.Equal(t, 100, bc.MinCandles)
	assert.Equal(t, 3, bc.ConnectAttempts)
	assert.Equal(t, cfg.Trading.Assets, bc.Preferred)
	assert.True(t, bc.InitialBalance.Equal(decimal.NewFromInt(250)))
}

func TestNewsSettings(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.News.Impacts = []string{"HIGH", "medium"}
	cfg.News.MinutesBefore = 30
	cfg.News.MinutesAfter = 10

	before, after := cfg.NewsWindow()
	assert.Equal(t, 30*time.Minute, before)
	assert.Equal(t, 10*time.Minute, after)
	assert.Equal(t, []calendar.Impact{calendar.High, calendar.Medium}, cfg.NewsImpacts())
}

// unset clears an env var for the test and restores it afterwards.
func unset(t *testing.T, key string) {
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoadCredentialsFromEnvFile(t *testing.T) {
	unset(t, EnvEmail)
	unset(t, EnvPassword)

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("BINTRADER_EMAIL=trader@example.com\nBINTRADER_PASSWORD=s3cret\n"), 0o600))

	creds, err := LoadCredentials(filepath.Join(t.TempDir(), "absent.env"), path)
	require.NoError(t, err)
	assert.Equal(t, Credentials{Email: "trader@example.com", Password: "s3cret"}, creds)
}

func TestLoadCredentialsEnvironmentWins(t *testing.T) {
	t.Setenv(EnvEmail, "env@example.com")
	t.Setenv(EnvPassword, "from-env")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("BINTRADER_EMAIL=file@example.com\n"), 0o600))

	creds, err := LoadCredentials(path)
	require.NoError(t, err)
	assert.Equal(t, "env@example.com", creds.Email)
	assert.Equal(t, "from-env", creds.Password)
}

func TestLoadCredentialsMissing(t *testing.T) {
	unset(t, EnvEmail)
	t.Setenv(EnvPassword, "only-password")

	_, err := LoadCredentials()
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.Contains(t, err.Error(), EnvEmail)
}
