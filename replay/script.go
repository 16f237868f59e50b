package replay

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/papertrader/broker"
)

// Driver is the part of a session a script can drive.
type Driver interface {
	Replay() State
	Step(n int) State
	Seek(i int) State
	PlayToEnd() State
	Reset()
	SelectSymbol(symbol string) error
	SetConnected(connected bool)
	Buy(qty int64) (broker.Trade, broker.Result)
	Sell(qty int64) (broker.Trade, broker.Result)
	Close(tradeID string) (broker.Trade, broker.Result)
	CloseAll() (broker.CloseAllResult, broker.Result)
	TradeAt(n int) (broker.Trade, bool)
}

type ScriptOptions struct {
	// Strict turns ledger rejections into errors instead of report entries.
	Strict bool
	Logger *zerolog.Logger
}

// Rejection is a trade command the ledger refused.
type Rejection struct {
	Line    int           `json:"line"`
	Command string        `json:"command"`
	Result  broker.Result `json:"result"`
}

type Report struct {
	Commands int         `json:"commands"`
	Opened   int         `json:"opened"`
	Closed   int         `json:"closed"`
	Rejected []Rejection `json:"rejected"`
	Final    State       `json:"final"`
}

// ScriptFile opens path and runs it with Script.
func ScriptFile(ctx context.Context, path string, d Driver, opts ScriptOptions) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, err
	}
	defer f.Close()
	return Script(ctx, f, d, opts)
}

// Script replays a CSV of session commands, one per row:
//
//	command,arg
//	CONNECT
//	STEP,5
//	BUY,10
//	SEEK,400
//	CLOSE,#1
//	PLAY_TO_END
//	CLOSE_ALL
//
// Commands (case-insensitive):
//
//	STEP n         move the cursor n bars (default 1)
//	SEEK i         move the cursor to bar i
//	PLAY_TO_END    tick bar by bar to the end of the series
//	BUY qty        open a long on the selected symbol
//	SELL qty       open a short on the selected symbol
//	CLOSE ref      close a trade by id, or #n for the n-th trade placed
//	CLOSE_ALL      close every open trade
//	SYMBOL s       switch symbol
//	CONNECT        connect the paper broker
//	DISCONNECT     disconnect it
//	RESET          reset the replay and the ledger
//
// A header row starting with "command" is skipped, as are blank rows and
// rows starting with '#'.
func Script(ctx context.Context, r io.Reader, d Driver, opts ScriptOptions) (Report, error) {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	rep := Report{Rejected: []Rejection{}}
	first := true
	for {
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rep, err
		}
		line, _ := cr.FieldPos(0)

		if first {
			first = false
			if strings.EqualFold(strings.TrimSpace(row[0]), "command") {
				continue
			}
		}
		cmd := strings.ToUpper(strings.TrimSpace(row[0]))
		if cmd == "" {
			continue
		}
		arg := ""
		if len(row) > 1 {
			arg = strings.TrimSpace(row[1])
		}

		res, err := runCommand(d, cmd, arg, &rep)
		if err != nil {
			return rep, fmt.Errorf("line %d: %s: %w", line, cmd, err)
		}
		rep.Commands++

		if !res.OK() {
			log.Warn().Int("line", line).Str("command", cmd).Str("code", res.Code.String()).Msg(res.Reason)
			if opts.Strict {
				return rep, fmt.Errorf("line %d: %s: %w", line, cmd, res.Err())
			}
			rep.Rejected = append(rep.Rejected, Rejection{Line: line, Command: cmd, Result: res})
		}
	}

	rep.Final = d.Replay()
	log.Info().Int("commands", rep.Commands).Int("rejected", len(rep.Rejected)).Msg("script done")
	return rep, nil
}

func runCommand(d Driver, cmd, arg string, rep *Report) (broker.Result, error) {
	ok := broker.Result{}

	switch cmd {
	case "STEP":
		n := 1
		if arg != "" {
			v, err := strconv.Atoi(arg)
			if err != nil {
				return ok, fmt.Errorf("bad count %q: %w", arg, err)
			}
			n = v
		}
		d.Step(n)

	case "SEEK":
		i, err := strconv.Atoi(arg)
		if err != nil {
			return ok, fmt.Errorf("bad index %q: %w", arg, err)
		}
		d.Seek(i)

	case "PLAY_TO_END":
		d.PlayToEnd()

	case "BUY", "SELL":
		qty, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return ok, fmt.Errorf("bad quantity %q: %w", arg, err)
		}
		var res broker.Result
		if cmd == "BUY" {
			_, res = d.Buy(qty)
		} else {
			_, res = d.Sell(qty)
		}
		if res.OK() {
			rep.Opened++
		}
		return res, nil

	case "CLOSE":
		id, err := resolveTradeRef(d, arg)
		if err != nil {
			return ok, err
		}
		_, res := d.Close(id)
		if res.OK() {
			rep.Closed++
		}
		return res, nil

	case "CLOSE_ALL":
		out, res := d.CloseAll()
		rep.Closed += len(out.Closed)
		return res, nil

	case "SYMBOL":
		if arg == "" {
			return ok, fmt.Errorf("missing symbol")
		}
		if err := d.SelectSymbol(arg); err != nil {
			return ok, err
		}

	case "CONNECT":
		d.SetConnected(true)

	case "DISCONNECT":
		d.SetConnected(false)

	case "RESET":
		d.Reset()

	default:
		return ok, fmt.Errorf("unknown command")
	}
	return ok, nil
}

// resolveTradeRef accepts a trade id or #n, the n-th trade placed.
func resolveTradeRef(d Driver, ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("missing trade reference")
	}
	if !strings.HasPrefix(ref, "#") {
		return ref, nil
	}
	n, err := strconv.Atoi(ref[1:])
	if err != nil {
		return "", fmt.Errorf("bad trade reference %q: %w", ref, err)
	}
	t, ok := d.TradeAt(n)
	if !ok {
		// let the ledger report it as not found
		return ref, nil
	}
	return t.ID, nil
}
