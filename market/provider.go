package market

import (
	"fmt"
	"math/rand"
	"sort"
)

// Provider owns one finite, immutable bar series per symbol and hands out
// prefixes of it. It is safe for concurrent readers because nothing is
// written after construction.
type Provider struct {
	order  []string
	specs  map[string]SymbolSpec
	series map[string][]Bar
}

// NewProvider generates a series for every spec. Symbol i uses
// seed+i so symbols do not share a walk.
func NewProvider(specs []SymbolSpec, opts GenOptions) *Provider {
	opts = opts.withDefaults()
	p := &Provider{
		specs:  make(map[string]SymbolSpec, len(specs)),
		series: make(map[string][]Bar, len(specs)),
	}
	for i, s := range specs {
		rng := rand.New(rand.NewSource(opts.Seed + int64(i)))
		p.order = append(p.order, s.Symbol)
		p.specs[s.Symbol] = s
		p.series[s.Symbol] = Generate(s, rng, opts)
	}
	return p
}

// NewProviderFromBars wraps existing series, e.g. fixtures or CSV imports.
// Symbols are ordered alphabetically.
func NewProviderFromBars(series map[string][]Bar) (*Provider, error) {
	p := &Provider{
		specs:  make(map[string]SymbolSpec, len(series)),
		series: make(map[string][]Bar, len(series)),
	}
	for sym, bars := range series {
		if err := ValidateSeries(bars); err != nil {
			return nil, fmt.Errorf("series %s: %w", sym, err)
		}
		cp := make([]Bar, len(bars))
		copy(cp, bars)
		p.series[sym] = cp
		spec := SymbolSpec{Symbol: sym, Name: sym}
		if len(bars) > 0 {
			spec.StartPrice = bars[0].Open
		}
		p.specs[sym] = spec
		p.order = append(p.order, sym)
	}
	sort.Strings(p.order)
	return p, nil
}

// Symbols returns the known symbols in catalog order.
func (p *Provider) Symbols() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

func (p *Provider) Spec(symbol string) (SymbolSpec, bool) {
	s, ok := p.specs[symbol]
	return s, ok
}

// Total is the series length for symbol, 0 when unknown.
func (p *Provider) Total(symbol string) int {
	return len(p.series[symbol])
}

// BarAt returns the bar at index.
func (p *Provider) BarAt(symbol string, index int) (Bar, bool) {
	bars := p.series[symbol]
	if index < 0 || index >= len(bars) {
		return Bar{}, false
	}
	return bars[index], true
}

// SliceUpTo returns bars [0, index] inclusive. Callers pass an index the
// replay clock already clamped; out of range values are clamped here as
// well rather than panicking. Unknown symbols yield an empty slice.
func (p *Provider) SliceUpTo(symbol string, index int) []Bar {
	bars, ok := p.series[symbol]
	if !ok || index < 0 || len(bars) == 0 {
		return []Bar{}
	}
	if index >= len(bars) {
		index = len(bars) - 1
	}
	out := make([]Bar, index+1)
	copy(out, bars[:index+1])
	return out
}

// Bars returns a copy of the full series.
func (p *Provider) Bars(symbol string) []Bar {
	return p.SliceUpTo(symbol, p.Total(symbol)-1)
}
