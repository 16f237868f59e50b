package cmd

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/papertrader/config"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/session"
	"github.com/rustyeddy/papertrader/sim"
)

// historyLimit caps the in-process trade and equity history.
const historyLimit = 10_000

// openSession wires a session from cfg: price series, journal and ledger.
// The ledger writes to the configured journal and to an in-process history
// the server reads back. The caller closes the returned journal after the
// session.
func openSession(cfg *config.Config, log *zerolog.Logger) (*session.Session, journal.Journal, *journal.Memory, error) {
	if cfg.Series.DataDir == "" {
		seed, fixed := market.ResolveSeed(cfg.Series.Seed)
		cfg.Series.Seed = seed
		log.Info().Int64("seed", seed).Bool("fixed", fixed).Msg("series seed")
	}

	provider, err := cfg.Provider()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load series: %w", err)
	}

	j, err := journal.Open(cfg.JournalOptions())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open journal: %w", err)
	}

	hist := journal.NewMemoryLimit(historyLimit)
	lopts := cfg.LedgerOptions()
	lopts.Journal = journal.Multi{j, hist}
	lopts.Logger = log

	sess, err := session.New(session.Options{
		Provider:    provider,
		Ledger:      sim.NewLedger(lopts),
		Symbol:      cfg.Replay.Symbol,
		StartOffset: cfg.Replay.StartOffset,
		Speeds:      cfg.SpeedTable(),
		Speed:       cfg.Replay.DefaultSpeed,
		Logger:      log,
	})
	if err != nil {
		j.Close()
		return nil, nil, nil, err
	}
	return sess, j, hist, nil
}
