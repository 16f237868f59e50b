package market

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
)

// WriteCSV writes bars with a time,open,high,low,close,volume header.
func WriteCSV(w io.Writer, bars []Bar) error {
	if err := gocsv.Marshal(&bars, w); err != nil {
		return fmt.Errorf("write bars: %w", err)
	}
	return nil
}

// ReadCSV reads bars written by WriteCSV and validates them.
func ReadCSV(r io.Reader) ([]Bar, error) {
	var bars []Bar
	if err := gocsv.Unmarshal(r, &bars); err != nil {
		return nil, fmt.Errorf("read bars: %w", err)
	}
	if err := ValidateSeries(bars); err != nil {
		return nil, err
	}
	return bars, nil
}
