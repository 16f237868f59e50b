package risk

import "fmt"

// Limits gate automated entries. A zero field disables its check.
type Limits struct {
	// MaxRiskPct caps the loss at stop as a fraction of equity.
	MaxRiskPct float64 `json:"max_risk_pct" yaml:"max_risk_pct"`
	// MaxDailyLossPct stops new entries once the day's realized loss
	// reaches this fraction of equity.
	MaxDailyLossPct float64 `json:"max_daily_loss_pct" yaml:"max_daily_loss_pct"`

	MaxOpenTrades int     `json:"max_open_trades" yaml:"max_open_trades"`
	MaxMarginPct  float64 `json:"max_margin_pct" yaml:"max_margin_pct"`

	MinRR float64 `json:"min_rr" yaml:"min_rr"`
}

func DefaultLimits() Limits {
	return Limits{
		MaxRiskPct:      0.02,
		MaxDailyLossPct: 0.05,
		MaxOpenTrades:   5,
		MaxMarginPct:    0.5,
		MinRR:           1.5,
	}
}

// Validate rejects negative limits and fractions above one.
func (l Limits) Validate() error {
	fractions := []struct {
		name string
		v    float64
	}{
		{"max_risk_pct", l.MaxRiskPct},
		{"max_daily_loss_pct", l.MaxDailyLossPct},
		{"max_margin_pct", l.MaxMarginPct},
	}
	for _, f := range fractions {
		if f.v < 0 || f.v > 1 {
			return fmt.Errorf("%s must be within [0, 1], got %g", f.name, f.v)
		}
	}
	if l.MaxOpenTrades < 0 {
		return fmt.Errorf("max_open_trades must not be negative")
	}
	if l.MinRR < 0 {
		return fmt.Errorf("min_rr must not be negative")
	}
	return nil
}

// Exposure is the account state an entry is checked against.
type Exposure struct {
	Equity      float64
	Margin      float64
	OpenTrades  int
	DayRealized float64
}
