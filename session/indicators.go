package session

import "github.com/rustyeddy/papertrader/indicators"

// Indicator computes cfg over the bars visible at the cursor, so an
// overlay never looks ahead of the replay.
func (s *Session) Indicator(cfg indicators.Config) (indicators.Overlay, error) {
	return indicators.Calc(cfg, s.Visible())
}
