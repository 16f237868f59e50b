package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/market"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.Equal(t, 1_000_000.0, cfg.Account.InitialBalance)
	assert.Equal(t, 0.2, cfg.Account.MarginRate)
	assert.Equal(t, 100, cfg.Replay.StartOffset)
	assert.Equal(t, map[int]int{1: 1000, 2: 500, 5: 200, 10: 100}, cfg.Replay.Speeds)
	assert.True(t, cfg.Policy.AverageOnBuyOnly)
	assert.True(t, cfg.Policy.CloseAllResetsPositions)
	assert.Len(t, cfg.Series.Symbols, 4)
	assert.Equal(t, 0.01, cfg.Strategy.RiskPct)
	assert.Equal(t, 5, cfg.Strategy.Limits.MaxOpenTrades)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid config", func(*Config) {}, ""},
		{"negative balance", func(c *Config) { c.Account.InitialBalance = -1 }, "account.initial_balance must be positive"},
		{"margin rate too high", func(c *Config) { c.Account.MarginRate = 1.5 }, "account.margin_rate"},
		{"negative offset", func(c *Config) { c.Replay.StartOffset = -1 }, "replay.start_offset"},
		{"no speeds", func(c *Config) { c.Replay.Speeds = nil }, "replay.speeds is required"},
		{"bad speed", func(c *Config) { c.Replay.Speeds[3] = 0 }, "must both be positive"},
		{"default speed missing", func(c *Config) { c.Replay.DefaultSpeed = 4 }, "replay.default_speed"},
		{"bad interval", func(c *Config) { c.Series.Interval = "soon" }, "series.interval"},
		{"bad start", func(c *Config) { c.Series.Start = "yesterday" }, "series.start"},
		{"unknown symbol", func(c *Config) { c.Replay.Symbol = "INVALID" }, "unknown symbol"},
		{"duplicate symbol", func(c *Config) { c.Series.Symbols = append(c.Series.Symbols, c.Series.Symbols[0]) }, "duplicate symbol"},
		{"zero start price", func(c *Config) { c.Series.Symbols[1].StartPrice = 0 }, "start_price must be positive"},
		{"csv needs files", func(c *Config) { c.Journal.Type = journal.TypeCSV }, "trades_file and equity_file"},
		{"sqlite needs path", func(c *Config) { c.Journal.Type = journal.TypeSQLite }, "db_path required"},
		{"unknown journal", func(c *Config) { c.Journal.Type = "kafka" }, "journal.type"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"negative quantity", func(c *Config) { c.Strategy.Quantity = -1 }, "strategy.quantity"},
		{"risk pct too high", func(c *Config) { c.Strategy.RiskPct = 2 }, "strategy.risk_pct"},
		{"bad limits", func(c *Config) { c.Strategy.Limits.MaxOpenTrades = -1 }, "strategy.limits"},
		{"data dir skips symbol checks", func(c *Config) {
			c.Series.DataDir = "bars"
			c.Series.Symbols = nil
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		ext  string
	}{
		{"json format", ".json"},
		{"yaml format", ".yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Series.Seed = 42
			cfg.Policy.AverageOnBuyOnly = false
			cfg.Replay.Speeds = map[int]int{1: 750, 4: 50}
			path := filepath.Join(tmpDir, "test"+tt.ext)

			require.NoError(t, cfg.SaveToFile(path))
			_, err := os.Stat(path)
			require.NoError(t, err)

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestLoadKeepsDefaultsForMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("account:\n  initial_balance: 5000\nseries:\n  seed: 9\n"), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, cfg.Account.InitialBalance)
	assert.Equal(t, 0.2, cfg.Account.MarginRate)
	assert.Equal(t, int64(9), cfg.Series.Seed)
	assert.Equal(t, Default().Replay.Speeds, cfg.Replay.Speeds)
	assert.Len(t, cfg.Series.Symbols, 4)
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path.yaml")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("account:\n  margin_rate: 3\n"), 0o644))
	_, err = LoadFromFile(path)
	assert.ErrorContains(t, err, "invalid config")
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PAPERTRADER_INITIAL_BALANCE", "250000")
	t.Setenv("PAPERTRADER_SEED", "77")
	t.Setenv("PAPERTRADER_SYMBOL", "TCS")
	t.Setenv("PAPERTRADER_PORT", "9090")
	t.Setenv("PAPERTRADER_JOURNAL_TYPE", "sqlite")
	t.Setenv("PAPERTRADER_JOURNAL_DB", "j.db")
	t.Setenv("PAPERTRADER_STRATEGY", "ema-cross")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, 250000.0, cfg.Account.InitialBalance)
	assert.Equal(t, int64(77), cfg.Series.Seed)
	assert.Equal(t, "TCS", cfg.Replay.Symbol)
	assert.Equal(t, "localhost:9090", cfg.Addr())
	assert.Equal(t, "ema-cross", cfg.Strategy.Name)
	assert.NoError(t, cfg.Validate())

	t.Setenv("PAPERTRADER_MARGIN_RATE", "lots")
	assert.ErrorContains(t, cfg.ApplyEnv(), "PAPERTRADER_MARGIN_RATE")
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("PAPERTRADER_START_OFFSET=7\n"), 0o644))
	t.Setenv("PAPERTRADER_START_OFFSET", "")
	os.Unsetenv("PAPERTRADER_START_OFFSET")

	require.NoError(t, LoadEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Replay.StartOffset)
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.Series.Start = "2024-01-01T00:00:00Z"

	assert.Equal(t, time.Second, cfg.SpeedTable()[1])
	assert.Equal(t, market.DefaultSymbols(), cfg.SymbolSpecs())

	opts := cfg.GenOptions()
	assert.Equal(t, 5*time.Minute, opts.Interval)
	assert.Equal(t, 2000, opts.Bars)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), opts.Start.UTC())

	lo := cfg.LedgerOptions()
	assert.Equal(t, 1_000_000.0, lo.InitialBalance)
	require.NotNil(t, lo.Policy)
	assert.Equal(t, cfg.Policy, *lo.Policy)

	assert.Equal(t, journal.TypeNone, cfg.JournalOptions().Type)
}

func TestProviderFromDataDir(t *testing.T) {
	dir := t.TempDir()
	bars := []market.Bar{
		{Time: 60, Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 100},
		{Time: 120, Open: 10.5, High: 12, Low: 10, Close: 11, Volume: 100},
	}
	f, err := os.Create(filepath.Join(dir, "abc.csv"))
	require.NoError(t, err)
	require.NoError(t, market.WriteCSV(f, bars))
	require.NoError(t, f.Close())

	cfg := Default()
	cfg.Series.DataDir = dir
	p, err := cfg.Provider()
	require.NoError(t, err)
	assert.Equal(t, []string{"ABC"}, p.Symbols())
	assert.Equal(t, bars, p.Bars("ABC"))

	cfg.Series.DataDir = t.TempDir()
	_, err = cfg.Provider()
	assert.Error(t, err)
}

func TestLoadSampleConfig(t *testing.T) {
	cfg, err := LoadFromFile(filepath.Join("..", "examples", "papertrader.yaml"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.Series.Seed)
	assert.Equal(t, journal.TypeSQLite, cfg.Journal.Type)
	assert.Len(t, cfg.Series.Symbols, 4)
	assert.Equal(t, 1.5, cfg.Strategy.Limits.MinRR)
	assert.Empty(t, cfg.Strategy.Name)
}
