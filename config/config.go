package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/replay"
	"github.com/rustyeddy/papertrader/risk"
	"github.com/rustyeddy/papertrader/sim"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "PAPERTRADER_"

// Config is the complete configuration of a paper-trading session.
type Config struct {
	Account AccountConfig `json:"account" yaml:"account"`
	Replay  ReplayConfig  `json:"replay" yaml:"replay"`
	Series  SeriesConfig  `json:"series" yaml:"series"`
	Policy  sim.Policy    `json:"policy" yaml:"policy"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
	Log     LogConfig     `json:"log" yaml:"log"`
	Server  ServerConfig  `json:"server" yaml:"server"`

	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
}

type AccountConfig struct {
	ID             string  `json:"id" yaml:"id"`
	Name           string  `json:"name" yaml:"name"`
	InitialBalance float64 `json:"initial_balance" yaml:"initial_balance"`
	MarginRate     float64 `json:"margin_rate" yaml:"margin_rate"`
}

type ReplayConfig struct {
	Symbol       string `json:"symbol" yaml:"symbol"`
	StartOffset  int    `json:"start_offset" yaml:"start_offset"`
	DefaultSpeed int    `json:"default_speed" yaml:"default_speed"`
	// Speeds maps a multiplier to the tick interval in milliseconds.
	Speeds map[int]int `json:"speeds" yaml:"speeds"`
}

type SeriesConfig struct {
	Seed     int64  `json:"seed" yaml:"seed"` // 0 picks a random seed
	Bars     int    `json:"bars" yaml:"bars"`
	Interval string `json:"interval" yaml:"interval"` // e.g. "5m"
	Start    string `json:"start,omitempty" yaml:"start,omitempty"` // RFC3339, default 180 days ago

	// DataDir, when set, loads <SYMBOL>.csv files instead of generating.
	DataDir string `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`

	Symbols []SymbolConfig `json:"symbols" yaml:"symbols"`
}

type SymbolConfig struct {
	Symbol     string  `json:"symbol" yaml:"symbol"`
	Name       string  `json:"name" yaml:"name"`
	StartPrice float64 `json:"start_price" yaml:"start_price"`
	Volatility float64 `json:"volatility" yaml:"volatility"`
	Drift      float64 `json:"drift" yaml:"drift"`
}

type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

type LogConfig struct {
	Level      string `json:"level" yaml:"level"`
	Console    bool   `json:"console" yaml:"console"`
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	MaxSize    int    `json:"max_size" yaml:"max_size"` // megabytes
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAge     int    `json:"max_age" yaml:"max_age"` // days
}

// StrategyConfig drives "trader replay" when no script is given.
type StrategyConfig struct {
	Name     string  `json:"name,omitempty" yaml:"name,omitempty"`
	Quantity int64   `json:"quantity" yaml:"quantity"` // 0 sizes from risk_pct
	RiskPct  float64 `json:"risk_pct" yaml:"risk_pct"`
	LongOnly bool    `json:"long_only" yaml:"long_only"`

	Limits risk.Limits `json:"limits" yaml:"limits"`
}

type ServerConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// Default returns the reference configuration: 1,000,000 opening balance,
// 20% margin, replay starting at bar 100.
func Default() *Config {
	cfg := &Config{
		Account: AccountConfig{
			ID:             sim.DefaultAccountID,
			Name:           sim.DefaultAccountName,
			InitialBalance: sim.DefaultInitialBalance,
			MarginRate:     0.20,
		},
		Replay: ReplayConfig{
			Symbol:       market.DefaultSymbol,
			StartOffset:  replay.DefaultStartOffset,
			DefaultSpeed: 1,
			Speeds:       defaultSpeeds(),
		},
		Series: SeriesConfig{
			Bars:     market.DefaultBars,
			Interval: market.DefaultInterval.String(),
		},
		Policy: sim.DefaultPolicy(),
		Journal: JournalConfig{
			Type: journal.TypeNone,
		},
		Log: LogConfig{
			Level:      "info",
			Console:    true,
			MaxSize:    100,
			MaxBackups: 7,
			MaxAge:     30,
		},
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Strategy: StrategyConfig{
			RiskPct: 0.01,
			Limits:  risk.DefaultLimits(),
		},
	}
	cfg.Series.Symbols = defaultSymbols()
	return cfg
}

func defaultSpeeds() map[int]int {
	out := map[int]int{}
	for x, d := range replay.DefaultSpeeds() {
		out[x] = int(d / time.Millisecond)
	}
	return out
}

func defaultSymbols() []SymbolConfig {
	var out []SymbolConfig
	for _, s := range market.DefaultSymbols() {
		out = append(out, SymbolConfig{
			Symbol:     s.Symbol,
			Name:       s.Name,
			StartPrice: s.StartPrice,
			Volatility: s.Volatility,
			Drift:      s.Drift,
		})
	}
	return out
}

// LoadFromFile loads configuration from a YAML or JSON file. Fields the
// file leaves out keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	cfg.Replay.Speeds = nil

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		cfg.Replay.Speeds = nil
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}
	if len(cfg.Replay.Speeds) == 0 {
		cfg.Replay.Speeds = defaultSpeeds()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Load reads path (or the defaults when path is empty), then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadEnv loads .env style files into the process environment. Missing
// files are ignored; variables already set win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// SaveToFile writes YAML for .yaml/.yml paths and indented JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
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

// ApplyEnv overrides fields from PAPERTRADER_* variables.
func (c *Config) ApplyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, parse func(string) error) error {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok || v == "" {
			return nil
		}
		if err := parse(v); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		return nil
	}
	float := func(dst *float64) func(string) error {
		return func(v string) (err error) {
			*dst, err = strconv.ParseFloat(v, 64)
			return err
		}
	}
	integer := func(dst *int) func(string) error {
		return func(v string) (err error) {
			*dst, err = strconv.Atoi(v)
			return err
		}
	}

	str("ACCOUNT_NAME", &c.Account.Name)
	str("SYMBOL", &c.Replay.Symbol)
	str("SERIES_INTERVAL", &c.Series.Interval)
	str("DATA_DIR", &c.Series.DataDir)
	str("JOURNAL_TYPE", &c.Journal.Type)
	str("JOURNAL_DB", &c.Journal.DBPath)
	str("JOURNAL_TRADES", &c.Journal.TradesFile)
	str("JOURNAL_EQUITY", &c.Journal.EquityFile)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)
	str("HOST", &c.Server.Host)
	str("STRATEGY", &c.Strategy.Name)

	for _, err := range []error{
		num("INITIAL_BALANCE", float(&c.Account.InitialBalance)),
		num("MARGIN_RATE", float(&c.Account.MarginRate)),
		num("START_OFFSET", integer(&c.Replay.StartOffset)),
		num("SERIES_BARS", integer(&c.Series.Bars)),
		num("PORT", integer(&c.Server.Port)),
		num("SEED", func(v string) (err error) {
			c.Series.Seed, err = strconv.ParseInt(v, 10, 64)
			return err
		}),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.InitialBalance <= 0 {
		return fmt.Errorf("account.initial_balance must be positive")
	}
	if c.Account.MarginRate <= 0 || c.Account.MarginRate > 1 {
		return fmt.Errorf("account.margin_rate must be in (0, 1]")
	}

	if c.Replay.StartOffset < 0 {
		return fmt.Errorf("replay.start_offset must not be negative")
	}
	if len(c.Replay.Speeds) == 0 {
		return fmt.Errorf("replay.speeds is required")
	}
	for x, ms := range c.Replay.Speeds {
		if x <= 0 || ms <= 0 {
			return fmt.Errorf("replay.speeds: %dx -> %dms must both be positive", x, ms)
		}
	}
	if _, ok := c.Replay.Speeds[c.Replay.DefaultSpeed]; !ok {
		return fmt.Errorf("replay.default_speed %d is not in replay.speeds", c.Replay.DefaultSpeed)
	}

	if c.Series.Bars <= 0 {
		return fmt.Errorf("series.bars must be positive")
	}
	if d, err := time.ParseDuration(c.Series.Interval); err != nil || d <= 0 {
		return fmt.Errorf("series.interval %q must be a positive duration", c.Series.Interval)
	}
	if c.Series.Start != "" {
		if _, err := time.Parse(time.RFC3339, c.Series.Start); err != nil {
			return fmt.Errorf("series.start: %w", err)
		}
	}
	if c.Series.DataDir == "" {
		if err := c.validateSymbols(); err != nil {
			return err
		}
	}

	switch c.Journal.Type {
	case "", journal.TypeNone:
	case journal.TypeCSV:
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for CSV type")
		}
	case journal.TypeSQLite:
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if c.Strategy.Quantity < 0 {
		return fmt.Errorf("strategy.quantity must not be negative")
	}
	if c.Strategy.RiskPct < 0 || c.Strategy.RiskPct > 1 {
		return fmt.Errorf("strategy.risk_pct must be within [0, 1]")
	}
	if err := c.Strategy.Limits.Validate(); err != nil {
		return fmt.Errorf("strategy.limits: %w", err)
	}
	return nil
}

func (c *Config) validateSymbols() error {
	if len(c.Series.Symbols) == 0 {
		return fmt.Errorf("series.symbols is required")
	}
	seen := map[string]bool{}
	for _, s := range c.Series.Symbols {
		if s.Symbol == "" {
			return fmt.Errorf("series.symbols: symbol is required")
		}
		if seen[s.Symbol] {
			return fmt.Errorf("series.symbols: duplicate symbol %s", s.Symbol)
		}
		seen[s.Symbol] = true
		if s.StartPrice <= 0 {
			return fmt.Errorf("series.symbols: %s start_price must be positive", s.Symbol)
		}
		if s.Volatility < 0 {
			return fmt.Errorf("series.symbols: %s volatility must not be negative", s.Symbol)
		}
	}
	if c.Replay.Symbol != "" && !seen[c.Replay.Symbol] {
		return fmt.Errorf("unknown symbol: %s", c.Replay.Symbol)
	}
	return nil
}

// SpeedTable converts replay.speeds to intervals.
func (c *Config) SpeedTable() map[int]time.Duration {
	out := make(map[int]time.Duration, len(c.Replay.Speeds))
	for x, ms := range c.Replay.Speeds {
		out[x] = time.Duration(ms) * time.Millisecond
	}
	return out
}

// SymbolSpecs converts series.symbols for the generator.
func (c *Config) SymbolSpecs() []market.SymbolSpec {
	out := make([]market.SymbolSpec, 0, len(c.Series.Symbols))
	for _, s := range c.Series.Symbols {
		out = append(out, market.SymbolSpec{
			Symbol:     s.Symbol,
			Name:       s.Name,
			StartPrice: s.StartPrice,
			Volatility: s.Volatility,
			Drift:      s.Drift,
		})
	}
	return out
}

// GenOptions converts the series section. Call it on a validated config.
func (c *Config) GenOptions() market.GenOptions {
	interval, _ := time.ParseDuration(c.Series.Interval)
	opts := market.GenOptions{
		Seed:     c.Series.Seed,
		Bars:     c.Series.Bars,
		Interval: interval,
	}
	if c.Series.Start != "" {
		opts.Start, _ = time.Parse(time.RFC3339, c.Series.Start)
	}
	return opts
}

// Provider builds the price series: loaded from series.data_dir when set,
// generated otherwise.
func (c *Config) Provider() (*market.Provider, error) {
	if c.Series.DataDir == "" {
		return market.NewProvider(c.SymbolSpecs(), c.GenOptions()), nil
	}

	paths, err := filepath.Glob(filepath.Join(c.Series.DataDir, "*.csv"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no *.csv files in %s", c.Series.DataDir)
	}
	sort.Strings(paths)

	series := map[string][]market.Bar{}
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		bars, err := market.ReadCSV(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		sym := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		series[strings.ToUpper(sym)] = bars
	}
	return market.NewProviderFromBars(series)
}

func (c *Config) LedgerOptions() sim.Options {
	policy := c.Policy
	return sim.Options{
		AccountID:      c.Account.ID,
		Name:           c.Account.Name,
		InitialBalance: c.Account.InitialBalance,
		MarginRate:     c.Account.MarginRate,
		Policy:         &policy,
	}
}

func (c *Config) JournalOptions() journal.Options {
	return journal.Options{
		Type:       c.Journal.Type,
		TradesFile: c.Journal.TradesFile,
		EquityFile: c.Journal.EquityFile,
		DBPath:     c.Journal.DBPath,
	}
}

// Addr is host:port for the HTTP server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
