package journal

import "fmt"

// Journal types accepted by Open.
const (
	TypeNone   = "none"
	TypeCSV    = "csv"
	TypeSQLite = "sqlite"
)

// Options selects and configures a journal.
type Options struct {
	Type       string
	TradesFile string
	EquityFile string
	DBPath     string
}

// Open builds the journal described by opts. An empty type is TypeNone.
func Open(opts Options) (Journal, error) {
	switch opts.Type {
	case "", TypeNone:
		return Nop{}, nil
	case TypeCSV:
		return NewCSV(opts.TradesFile, opts.EquityFile)
	case TypeSQLite:
		return NewSQLite(opts.DBPath)
	}
	return nil, fmt.Errorf("unknown journal type %q", opts.Type)
}
