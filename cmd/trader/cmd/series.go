package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrader/market"
)

var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "Inspect or export the price series",
	Long: `Work with the price series a session replays.

Subcommands:
  list    - Show each symbol with its bar count and price range
  export  - Write each series to <dir>/<SYMBOL>.csv

Exported files can be loaded back with series.data_dir.

Examples:
  trader series list
  trader series export --out data --seed 42`,
}

var seriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List symbols and their series",
	Args:  cobra.NoArgs,
	RunE:  runSeriesList,
}

var seriesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export series to CSV",
	Args:  cobra.NoArgs,
	RunE:  runSeriesExport,
}

var (
	seriesSeed      int64
	seriesOut       string
	seriesSymbol    string
	seriesTimeframe string
)

func init() {
	rootCmd.AddCommand(seriesCmd)
	seriesCmd.AddCommand(seriesListCmd)
	seriesCmd.AddCommand(seriesExportCmd)

	seriesCmd.PersistentFlags().Int64Var(&seriesSeed, "seed", 0, "override series.seed")
	seriesExportCmd.Flags().StringVarP(&seriesOut, "out", "o", "data", "output directory")
	seriesExportCmd.Flags().StringVar(&seriesSymbol, "symbol", "", "export one symbol only")
	seriesExportCmd.Flags().StringVar(&seriesTimeframe, "tf", "", "resample to a timeframe, e.g. M15, H1 or 30m")
}

func seriesProvider() (*market.Provider, int64, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, 0, err
	}
	if seriesSeed != 0 {
		cfg.Series.Seed = seriesSeed
	}
	seed, _ := market.ResolveSeed(cfg.Series.Seed)
	cfg.Series.Seed = seed

	p, err := cfg.Provider()
	if err != nil {
		return nil, 0, err
	}
	return p, seed, nil
}

func runSeriesList(cmd *cobra.Command, args []string) error {
	p, seed, err := seriesProvider()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tNAME\tBARS\tFIRST\tLAST\tLOW\tHIGH")
	for _, sym := range p.Symbols() {
		spec, _ := p.Spec(sym)
		bars := p.Bars(sym)
		if len(bars) == 0 {
			fmt.Fprintf(w, "%s\t%s\t0\t-\t-\t-\t-\n", sym, spec.Name)
			continue
		}
		lo, hi := bars[0].Low, bars[0].High
		for _, b := range bars {
			lo, hi = min(lo, b.Low), max(hi, b.High)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\n",
			sym, spec.Name, len(bars), bars[0].Open, bars[len(bars)-1].Close, lo, hi)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seed: %d\n", seed)
	return nil
}

func runSeriesExport(cmd *cobra.Command, args []string) error {
	p, seed, err := seriesProvider()
	if err != nil {
		return err
	}

	symbols := p.Symbols()
	if seriesSymbol != "" {
		if _, ok := p.Spec(seriesSymbol); !ok {
			return fmt.Errorf("unknown symbol: %s", seriesSymbol)
		}
		symbols = []string{seriesSymbol}
	}

	var tf time.Duration
	if seriesTimeframe != "" {
		if tf, err = market.ParseTimeframe(seriesTimeframe); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(seriesOut, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for _, sym := range symbols {
		bars := p.Bars(sym)
		if tf > 0 {
			if bars, err = market.Resample(bars, tf); err != nil {
				return err
			}
		}
		path := filepath.Join(seriesOut, sym+".csv")
		if err := writeSeries(path, bars); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: %d bars -> %s\n", sym, len(bars), path)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seed: %d\n", seed)
	return nil
}

func writeSeries(path string, bars []market.Bar) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := market.WriteCSV(f, bars); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
