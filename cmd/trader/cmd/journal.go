package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrader/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query trade journal data",
	Long: `Query and display trade journal records from the SQLite database.

Subcommands:
  trade   - Get details of a specific trade by ID
  trades  - List closed trades, optionally for one day
  equity  - List equity snapshots for one day
  stats   - Summarize every closed trade

Examples:
  trader journal trade 01HXYZ...
  trader journal trades --day 2024-01-15
  trader journal stats --db papertrader.sqlite`,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <trade-id>",
	Short: "Get details of a specific trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var journalTradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "List closed trades",
	Args:  cobra.NoArgs,
	RunE:  runJournalTrades,
}

var journalEquityCmd = &cobra.Command{
	Use:   "equity",
	Short: "List equity snapshots for a day",
	Args:  cobra.NoArgs,
	RunE:  runJournalEquity,
}

var journalStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize closed trades",
	Args:  cobra.NoArgs,
	RunE:  runJournalStats,
}

var (
	journalDBPath    string
	journalTradesDay string
	journalEquityDay string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTradeCmd)
	journalCmd.AddCommand(journalTradesCmd)
	journalCmd.AddCommand(journalEquityCmd)
	journalCmd.AddCommand(journalStatsCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "", "path to SQLite journal DB (default journal.db_path)")
	journalTradesCmd.Flags().StringVar(&journalTradesDay, "day", "", "only trades closed on YYYY-MM-DD, or 'today'")
	journalEquityCmd.Flags().StringVar(&journalEquityDay, "day", "today", "YYYY-MM-DD or 'today'")
}

func openJournalDB() (*journal.SQLite, error) {
	path := journalDBPath
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.Journal.DBPath
	}
	if path == "" {
		return nil, fmt.Errorf("no journal database: pass --db or set journal.db_path")
	}
	j, err := journal.NewSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	rec, err := j.GetTrade(args[0])
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Trade %s\n", rec.TradeID)
	fmt.Fprintf(out, "  Symbol: %s %s x%d\n", rec.Symbol, rec.Side, rec.Quantity)
	fmt.Fprintf(out, "  Entry: %.2f at %s\n", rec.EntryPrice, rec.OpenTime.Format(time.RFC3339))
	fmt.Fprintf(out, "  Exit: %.2f at %s\n", rec.ExitPrice, rec.CloseTime.Format(time.RFC3339))
	fmt.Fprintf(out, "  P&L: %.2f (%.2f%%)\n", rec.RealizedPL, rec.PnLPercent)
	fmt.Fprintf(out, "  Reason: %s\n", rec.Reason)
	return nil
}

func runJournalTrades(cmd *cobra.Command, args []string) error {
	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	var recs []journal.TradeRecord
	if journalTradesDay == "" {
		recs, err = j.ListTrades()
	} else {
		var start, end time.Time
		if start, end, err = dayBounds(time.Local, journalTradesDay); err != nil {
			return fmt.Errorf("date: %w", err)
		}
		recs, err = j.ListTradesClosedBetween(start, end)
	}
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}

	return printTrades(cmd.OutOrStdout(), recs)
}

func printTrades(out io.Writer, recs []journal.TradeRecord) error {
	if len(recs) == 0 {
		fmt.Fprintln(out, "no trades")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "ID\tSYMBOL\tSIDE\tQTY\tENTRY\tEXIT\tP&L\tP&L%\tCLOSED\tREASON\t")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%s\t%s\t\n",
			r.TradeID, r.Symbol, r.Side, r.Quantity, r.EntryPrice, r.ExitPrice,
			r.RealizedPL, r.PnLPercent, r.CloseTime.Local().Format("2006-01-02 15:04"), r.Reason)
	}
	return w.Flush()
}

func runJournalEquity(cmd *cobra.Command, args []string) error {
	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	start, end, err := dayBounds(time.Local, journalEquityDay)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	snaps, err := j.ListEquityBetween(start, end)
	if err != nil {
		return fmt.Errorf("query equity: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(snaps) == 0 {
		fmt.Fprintln(out, "no equity snapshots")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "TIME\tBALANCE\tEQUITY\tMARGIN\tAVAILABLE\tOPEN\t")
	for _, s := range snaps {
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%d\t\n",
			s.Time.Local().Format("15:04:05"), s.Balance, s.Equity, s.Margin, s.AvailableMargin, s.OpenTrades)
	}
	return w.Flush()
}

func runJournalStats(cmd *cobra.Command, args []string) error {
	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	st, err := j.Stats()
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Trades: %d (%d wins, %d losses)\n", st.Trades, st.Wins, st.Losses)
	fmt.Fprintf(out, "Gross profit: %.2f\n", st.GrossProfit)
	fmt.Fprintf(out, "Gross loss: %.2f\n", st.GrossLoss)
	fmt.Fprintf(out, "Net P&L: %.2f\n", st.NetPL)
	fmt.Fprintf(out, "Profit factor: %.2f\n", st.ProfitFactor)
	return nil
}

// dayBounds returns [start, end) of day in loc. "today" is the current
// local date.
func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	if day == "today" {
		day = time.Now().In(loc).Format("2006-01-02")
	}
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start, end, nil
}
