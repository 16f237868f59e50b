package risk

import (
	"fmt"
	"strings"
)

type Violation struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// Check is the outcome of Evaluate. Allowed is false when any violation
// was found.
type Check struct {
	Allowed    bool        `json:"allowed"`
	Violations []Violation `json:"violations,omitempty"`

	PlannedRisk    float64 `json:"plannedRisk"`
	PlannedRiskPct float64 `json:"plannedRiskPct"`
	PlannedRR      float64 `json:"plannedRr"`
}

func (c *Check) add(code, msg string) {
	c.Violations = append(c.Violations, Violation{Code: code, Msg: msg})
	c.Allowed = false
}

// Err joins the violation codes, nil when allowed.
func (c Check) Err() error {
	if c.Allowed {
		return nil
	}
	codes := make([]string, len(c.Violations))
	for i, v := range c.Violations {
		codes[i] = v.Code
	}
	return fmt.Errorf("risk limits: %s", strings.Join(codes, ", "))
}

// Evaluate checks a planned entry against the limits. Every check runs so
// the caller sees all violations at once.
func Evaluate(l Limits, p Plan, x Exposure) Check {
	c := Check{Allowed: true}

	if err := p.Validate(); err != nil {
		c.add("BAD_PLAN", err.Error())
		return c
	}

	c.PlannedRisk = p.TotalRisk
	if x.Equity > 0 {
		c.PlannedRiskPct = p.TotalRisk / x.Equity
	}
	c.PlannedRR = p.Ratio

	if l.MaxRiskPct > 0 && c.PlannedRiskPct > l.MaxRiskPct {
		c.add("RISK_TOO_HIGH", fmt.Sprintf("planned risk %.2f%% exceeds max %.2f%%",
			100*c.PlannedRiskPct, 100*l.MaxRiskPct))
	}
	if l.MinRR > 0 && c.PlannedRR < l.MinRR {
		c.add("RR_TOO_LOW", fmt.Sprintf("RR %.2f below minimum %.2f", c.PlannedRR, l.MinRR))
	}
	if l.MaxOpenTrades > 0 && x.OpenTrades >= l.MaxOpenTrades {
		c.add("TOO_MANY_OPEN_TRADES", fmt.Sprintf("open trades %d >= max %d", x.OpenTrades, l.MaxOpenTrades))
	}
	if l.MaxMarginPct > 0 && x.Equity > 0 && x.Margin/x.Equity > l.MaxMarginPct {
		c.add("MARGIN_TOO_HIGH", fmt.Sprintf("margin used %.2f%% exceeds max %.2f%%",
			100*x.Margin/x.Equity, 100*l.MaxMarginPct))
	}
	if l.MaxDailyLossPct > 0 {
		limit := -l.MaxDailyLossPct * x.Equity
		if x.DayRealized <= limit {
			c.add("DAILY_LOSS_LIMIT", fmt.Sprintf("day realized %.2f <= limit %.2f", x.DayRealized, limit))
		}
	}
	return c
}
