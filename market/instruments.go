// market/instruments.go
package market

// SymbolSpec describes a tradable symbol and the random walk used to
// synthesize its demo series.
type SymbolSpec struct {
	Symbol     string  `json:"symbol" yaml:"symbol"`
	Name       string  `json:"name" yaml:"name"`
	StartPrice float64 `json:"start_price" yaml:"start_price"`
	Volatility float64 `json:"volatility" yaml:"volatility"`
	Drift      float64 `json:"drift" yaml:"drift"`
}

// DefaultSymbol is selected when a session starts.
const DefaultSymbol = "NIFTY50"

// DefaultSymbols is the demo catalog, in display order.
func DefaultSymbols() []SymbolSpec {
	return []SymbolSpec{
		{Symbol: "NIFTY50", Name: "NIFTY 50", StartPrice: 22500, Volatility: 0.003, Drift: 0.00005},
		{Symbol: "BANKNIFTY", Name: "BANK NIFTY", StartPrice: 48500, Volatility: 0.005, Drift: 0.00003},
		{Symbol: "RELIANCE", Name: "Reliance Industries", StartPrice: 2950, Volatility: 0.004, Drift: 0.0001},
		{Symbol: "TCS", Name: "Tata Consultancy Services", StartPrice: 4200, Volatility: 0.0025, Drift: 0.00008},
	}
}
