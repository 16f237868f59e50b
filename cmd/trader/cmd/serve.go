package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrader/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the replay session over HTTP",
	Long: `Start the HTTP API and websocket feed for one replay session.

The server shuts down gracefully on SIGINT or SIGTERM, closing the
journal after the last request.

Examples:
  trader serve
  trader serve -f papertrader.yaml --addr :9000 --connect`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveAddr    string
	serveConnect bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from server.host and server.port)")
	serveCmd.Flags().BoolVar(&serveConnect, "connect", false, "start with the paper broker connected")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cmd, cfg)

	sess, j, hist, err := openSession(cfg, &log)
	if err != nil {
		return err
	}
	defer j.Close()
	defer sess.Shutdown()

	if serveConnect {
		sess.SetConnected(true)
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.Addr()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("symbol", sess.Symbol()).
		Int("bars", sess.Replay().TotalCandles).
		Str("journal", cfg.Journal.Type).
		Msg("session ready")

	srv := server.New(sess, &log)
	srv.SetHistory(hist)
	return srv.ListenAndServe(ctx, addr)
}
