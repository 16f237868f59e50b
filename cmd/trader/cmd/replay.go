package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrader/internal/logging"
	"github.com/rustyeddy/papertrader/replay"
	"github.com/rustyeddy/papertrader/session"
	"github.com/rustyeddy/papertrader/strategies"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Run a scripted replay and print the result",
	Long: `Replay a symbol without a timer, driven by a command script.

A script is a CSV file of "command,argument" lines, e.g.

  # open a long, let it run, close it
  STEP,20
  BUY,10
  STEP,50
  CLOSE,#1
  PLAY_TO_END

Without a script the replay runs to the end of the series. With
--strategy a named strategy trades every bar's close instead, reversing
its position on each signal.

Examples:
  trader replay -s examples/breakout.csv
  trader replay -s examples/breakout.csv --symbol TCS --json
  trader replay --strategy ema-cross --quantity 25 --close-end`,
	Args: cobra.NoArgs,
	RunE: runReplay,
}

var (
	replayScript  string
	replaySymbol  string
	replayStrict  bool
	replayJSON    bool
	replayConnect bool
	replayCloseAt bool

	replayStrategy string
	replayQuantity int64
	replayRiskPct  float64
	replayLongOnly bool
)

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringVarP(&replayScript, "script", "s", "", "CSV command script")
	replayCmd.Flags().StringVar(&replaySymbol, "symbol", "", "symbol to replay (default replay.symbol)")
	replayCmd.Flags().BoolVar(&replayStrict, "strict", false, "fail on the first rejected order")
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "print the result as JSON")
	replayCmd.Flags().BoolVar(&replayConnect, "connect", true, "start with the paper broker connected")
	replayCmd.Flags().BoolVar(&replayCloseAt, "close-end", false, "close all open trades at the end")
	replayCmd.Flags().StringVar(&replayStrategy, "strategy", "", "trade a named strategy ("+strings.Join(strategies.Names(), ", ")+")")
	replayCmd.Flags().Int64Var(&replayQuantity, "quantity", 0, "strategy order size (default strategy.quantity, else sized from --risk)")
	replayCmd.Flags().Float64Var(&replayRiskPct, "risk", 0, "strategy risk per trade as a fraction of equity (default strategy.risk_pct)")
	replayCmd.Flags().BoolVar(&replayLongOnly, "long-only", false, "strategy exits on sell signals instead of going short")
	replayCmd.MarkFlagsMutuallyExclusive("script", "strategy")
}

type replayResult struct {
	Report   replay.Report         `json:"report"`
	Strategy *strategies.RunReport `json:"strategy,omitempty"`
	Session  session.Snapshot      `json:"session"`
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if replaySymbol != "" {
		cfg.Replay.Symbol = replaySymbol
	}
	if replayStrategy != "" {
		cfg.Strategy.Name = replayStrategy
	}
	if replayQuantity > 0 {
		cfg.Strategy.Quantity = replayQuantity
	}
	if replayRiskPct > 0 {
		cfg.Strategy.RiskPct = replayRiskPct
	}
	cfg.Strategy.LongOnly = cfg.Strategy.LongOnly || replayLongOnly
	log := newLogger(cmd, cfg)

	sess, j, _, err := openSession(cfg, &log)
	if err != nil {
		return err
	}
	defer j.Close()
	defer sess.Shutdown()

	sess.SetConnected(replayConnect)

	var (
		rep   replay.Report
		strat *strategies.RunReport
	)
	switch {
	case replayScript == "" && cfg.Strategy.Name != "":
		st, err := strategies.New(cfg.Strategy.Name)
		if err != nil {
			return err
		}
		slog := logging.WithSymbol(log, sess.Symbol())
		run, err := strategies.NewRunner(st, strategies.RunnerOptions{
			Quantity: cfg.Strategy.Quantity,
			RiskPct:  cfg.Strategy.RiskPct,
			LongOnly: cfg.Strategy.LongOnly,
			Limits:   &cfg.Strategy.Limits,
			Logger:   &slog,
		}).Run(cmd.Context(), sess)
		if err != nil {
			return fmt.Errorf("strategy error: %w", err)
		}
		strat = &run
		rep.Final = run.Final
	case replayScript != "":
		rep, err = replay.ScriptFile(cmd.Context(), replayScript, sess, replay.ScriptOptions{
			Strict: replayStrict,
			Logger: &log,
		})
		if err != nil {
			return fmt.Errorf("replay error: %w", err)
		}
	default:
		rep.Final = sess.PlayToEnd()
	}

	if replayCloseAt {
		if _, res := sess.CloseAll(); !res.OK() {
			return fmt.Errorf("close all: %w", res.Err())
		}
	}

	res := replayResult{Report: rep, Strategy: strat, Session: sess.Snapshot()}
	if replayJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printReplay(cmd, res)
	return nil
}

func printReplay(cmd *cobra.Command, res replayResult) {
	out := cmd.OutOrStdout()
	snap, sum := res.Session, res.Session.Summary

	fmt.Fprintf(out, "Replay complete: %s bar %d/%d\n", snap.Symbol, snap.Replay.CurrentIndex+1, snap.Replay.TotalCandles)
	fmt.Fprintf(out, "  Commands: %d (opened %d, closed %d, rejected %d)\n",
		res.Report.Commands, res.Report.Opened, res.Report.Closed, len(res.Report.Rejected))
	for _, r := range res.Report.Rejected {
		fmt.Fprintf(out, "    line %d %s: %s\n", r.Line, r.Command, r.Result.Code)
	}
	if st := res.Strategy; st != nil {
		fmt.Fprintf(out, "  Strategy: %s (%d signals, opened %d, closed %d, rejected %d)\n",
			st.Strategy, len(st.Signals), st.Opened, st.Closed, st.Rejected)
	}
	fmt.Fprintf(out, "  Balance: %.2f\n", snap.Account.Balance)
	fmt.Fprintf(out, "  Equity: %.2f\n", snap.Account.Equity)
	fmt.Fprintf(out, "  Margin Used: %.2f\n", snap.Account.Margin)
	fmt.Fprintf(out, "  Realized P&L: %.2f\n", sum.RealizedPnL)
	fmt.Fprintf(out, "  Unrealized P&L: %.2f\n", sum.UnrealizedPnL)
	fmt.Fprintf(out, "  Total P&L: %.2f (%.2f%%)\n", sum.TotalPnL, sum.TotalPercent)
	fmt.Fprintf(out, "  Win rate: %.1f%% (%d/%d)\n", sum.WinRate, sum.Wins, sum.ClosedTrades)
}
