package risk

import (
	"fmt"
	"math"

	"github.com/rustyeddy/papertrader/broker"
)

// DefaultMarginRate is the share of notional locked per open trade.
const DefaultMarginRate = 0.20

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// MarginRequired is the cash a trade locks while it is open.
func MarginRequired(price float64, qty int64, rate float64) float64 {
	return price * float64(qty) * rate
}

// TradePnL is the realized P&L of closing a trade at exit. Longs gain when
// price rises, shorts when it falls.
func TradePnL(side broker.Side, entry, exit float64, qty int64) float64 {
	if side == broker.Sell {
		return (entry - exit) * float64(qty)
	}
	return (exit - entry) * float64(qty)
}

// PnLPercent expresses pnl as a percentage of the trade's notional.
func PnLPercent(pnl, entry float64, qty int64) float64 {
	notional := entry * float64(qty)
	if notional == 0 {
		return 0
	}
	return pnl / notional * 100
}

// RR is reward over risk, 0 when there is no risk.
func RR(entry, stop, takeProfit float64) float64 {
	risk := abs(entry - stop)
	reward := abs(takeProfit - entry)
	if risk == 0 {
		return 0
	}
	return reward / risk
}

// Plan is what the risk/reward tool shows next to an order ticket.
type Plan struct {
	Side          broker.Side `json:"side"`
	Entry         float64     `json:"entry"`
	StopLoss      float64     `json:"stopLoss"`
	TakeProfit    float64     `json:"takeProfit"`
	Quantity      int64       `json:"quantity"`
	RiskPerUnit   float64     `json:"riskPerUnit"`
	RewardPerUnit float64     `json:"rewardPerUnit"`
	TotalRisk     float64     `json:"totalRisk"`
	TotalReward   float64     `json:"totalReward"`
	Ratio         float64     `json:"ratio"`
	RiskPercent   float64     `json:"riskPercent"`
	RewardPercent float64     `json:"rewardPercent"`
}

// RiskReward evaluates an entry with a stop and a target.
func RiskReward(side broker.Side, entry, stop, target float64, qty int64) Plan {
	p := Plan{
		Side:          side,
		Entry:         entry,
		StopLoss:      stop,
		TakeProfit:    target,
		Quantity:      qty,
		RiskPerUnit:   abs(entry - stop),
		RewardPerUnit: abs(target - entry),
		Ratio:         RR(entry, stop, target),
	}
	p.TotalRisk = p.RiskPerUnit * float64(qty)
	p.TotalReward = p.RewardPerUnit * float64(qty)
	if entry > 0 {
		p.RiskPercent = p.RiskPerUnit / entry * 100
		p.RewardPercent = p.RewardPerUnit / entry * 100
	}
	return p
}

// DefaultLevels places the stop 1% against the trade and the target 2%
// in its favor, a 1:2 setup.
func DefaultLevels(side broker.Side, entry float64) (stop, target float64) {
	risk := entry * 0.01
	reward := entry * 0.02
	if side == broker.Sell {
		return entry + risk, entry - reward
	}
	return entry - risk, entry + reward
}

// Validate reports a stop or target on the wrong side of entry.
func (p Plan) Validate() error {
	if !(p.Entry > 0) {
		return fmt.Errorf("entry must be positive")
	}
	if p.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	long := p.Side != broker.Sell
	if long && (p.StopLoss >= p.Entry || p.TakeProfit <= p.Entry) {
		return fmt.Errorf("long plan needs stop < entry < target")
	}
	if !long && (p.StopLoss <= p.Entry || p.TakeProfit >= p.Entry) {
		return fmt.Errorf("short plan needs target < entry < stop")
	}
	return nil
}

// SizeForRisk is the largest whole quantity whose loss at stop stays within
// riskPct of equity. It returns 0 when the stop equals entry.
func SizeForRisk(equity, riskPct, entry, stop float64) int64 {
	perUnit := abs(entry - stop)
	if perUnit == 0 || equity <= 0 || riskPct <= 0 {
		return 0
	}
	return int64(math.Floor(equity * riskPct / perUnit))
}
