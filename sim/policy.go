package sim

// Policy switches two ledger behaviours that traders may not expect.
// Both are on by default.
type Policy struct {
	// AverageOnBuyOnly recomputes the average price only for BUY fills
	// adding to a long. When false, SELL fills adding to a short average
	// too.
	AverageOnBuyOnly bool `yaml:"average_on_buy_only" json:"averageOnBuyOnly"`

	// CloseAllResetsPositions empties the position map on CloseAllTrades.
	// A single CloseTrade never touches positions either way.
	CloseAllResetsPositions bool `yaml:"close_all_resets_positions" json:"closeAllResetsPositions"`
}

func DefaultPolicy() Policy {
	return Policy{
		AverageOnBuyOnly:        true,
		CloseAllResetsPositions: true,
	}
}
