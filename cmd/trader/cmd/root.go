package cmd

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrader/config"
	"github.com/rustyeddy/papertrader/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "A chart replay paper-trading simulator",
	Long: `Trader replays historical or generated price series bar by bar and
lets you trade them against a paper broker with margin accounting.

It provides tools for:
  - Serving the replay session over HTTP and websocket
  - Running scripted replays and printing the resulting P&L
  - Exporting generated series to CSV
  - Querying the SQLite trade journal

Configuration is read from a YAML or JSON file (-f), .env files and
PAPERTRADER_* environment variables, in that order.`,
	SilenceUsage: true,
}

var (
	cfgFile  string
	envFiles []string
	logLevel string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "f", "", "config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env", []string{".env"}, ".env files to load")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level")
}

// loadConfig resolves the configuration for commands that need it.
func loadConfig() (*config.Config, error) {
	if err := config.LoadEnv(envFiles...); err != nil {
		return nil, err
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) zerolog.Logger {
	return logging.New(cfg.Log, cmd.ErrOrStderr())
}
