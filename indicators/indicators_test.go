package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/papertrader/market"
)

func createTestBars() []market.Bar {
	raw := [][4]float64{
		{100, 105, 99, 102},
		{102, 107, 101, 105},
		{105, 108, 104, 106},
		{106, 110, 105, 108},
		{108, 112, 107, 110},
		{110, 113, 109, 111},
		{111, 115, 110, 113},
		{113, 116, 112, 114},
		{114, 118, 113, 116},
		{116, 120, 115, 118},
	}
	bars := make([]market.Bar, len(raw))
	for i, r := range raw {
		bars[i] = market.Bar{Time: int64(i+1) * 60, Open: r[0], High: r[1], Low: r[2], Close: r[3], Volume: 1000}
	}
	return bars
}

func TestMA(t *testing.T) {
	bars := createTestBars()

	ma, err := MA(bars, 5)
	require.NoError(t, err)
	// Last 5 closes: 111,113,114,116,118 => 572/5 = 114.4
	assert.InDelta(t, 114.4, ma, 0.001)

	_, err = MA(bars, 11)
	assert.Error(t, err)
	_, err = MA(bars, 0)
	assert.Error(t, err)
}

func TestEMA(t *testing.T) {
	bars := createTestBars()

	ema, err := EMA(bars, 5)
	require.NoError(t, err)
	assert.Greater(t, ema, 0.0)

	// trending up, so the EMA lags above the SMA of the first window
	sma, _ := MA(bars[:5], 5)
	assert.Greater(t, ema, sma)
}

func TestSimpleMAStreaming(t *testing.T) {
	bars := createTestBars()

	t.Run("basic functionality", func(t *testing.T) {
		ma := NewMA(3)
		assert.Equal(t, "SMA(3)", ma.Name())
		assert.Equal(t, 3, ma.Warmup())
		assert.False(t, ma.Ready())
		assert.Equal(t, 0.0, ma.Value())

		ma.Update(bars[0])
		ma.Update(bars[1])
		assert.False(t, ma.Ready())

		ma.Update(bars[2])
		assert.True(t, ma.Ready())
		assert.InDelta(t, (102.0+105.0+106.0)/3.0, ma.Value(), 0.001)

		// only the last 3 count
		ma.Update(bars[3])
		assert.InDelta(t, (105.0+106.0+108.0)/3.0, ma.Value(), 0.001)
	})

	t.Run("reset functionality", func(t *testing.T) {
		ma := NewMA(2)
		ma.Update(bars[0])
		ma.Update(bars[1])
		assert.True(t, ma.Ready())

		ma.Reset()
		assert.False(t, ma.Ready())
		assert.Equal(t, 0.0, ma.Value())
	})

	t.Run("matches batch calculation", func(t *testing.T) {
		ma := NewMA(3)
		for _, b := range bars {
			ma.Update(b)
		}
		batch, _ := MA(bars, 3)
		assert.InDelta(t, batch, ma.Value(), 0.001)
	})
}

func TestExponentialMAStreaming(t *testing.T) {
	bars := createTestBars()

	ema := NewEMA(3)
	assert.Equal(t, "EMA(3)", ema.Name())
	ema.Update(bars[0])
	ema.Update(bars[1])
	assert.False(t, ema.Ready())

	ema.Update(bars[2])
	require.True(t, ema.Ready())
	seed := (102.0 + 105.0 + 106.0) / 3.0
	assert.InDelta(t, seed, ema.Value(), 0.001)

	// multiplier = 2/(3+1) = 0.5
	ema.Update(bars[3])
	assert.InDelta(t, (108.0-seed)*0.5+seed, ema.Value(), 0.001)

	full := NewEMA(5)
	for _, b := range bars {
		full.Update(b)
	}
	batch, _ := EMA(bars, 5)
	assert.InDelta(t, batch, full.Value(), 0.001)
}

func TestATR(t *testing.T) {
	bars := []market.Bar{
		{High: 10, Low: 8, Close: 9},
		{High: 11, Low: 9, Close: 10},
		{High: 12, Low: 10, Close: 11},
		{High: 11, Low: 9, Close: 10},
		{High: 12, Low: 10, Close: 11},
		{High: 13, Low: 11, Close: 12},
	}
	atr, err := ATRFunc(bars, 3)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, atr, 1e-9)

	stream := NewATR(3)
	assert.Equal(t, 4, stream.Warmup())
	for i, b := range bars {
		stream.Update(b)
		assert.Equal(t, i >= 3, stream.Ready(), "bar %d", i)
	}
	assert.InDelta(t, atr, stream.Value(), 1e-9)

	_, err = ATRFunc(bars[:3], 3)
	assert.Error(t, err)
}

func TestTrueRange(t *testing.T) {
	current := market.Bar{High: 110, Low: 100, Close: 105}
	assert.Equal(t, 10.0, trueRange(current, market.Bar{Close: 104}))
	// gap up: previous close below the low
	assert.Equal(t, 15.0, trueRange(current, market.Bar{Close: 95}))
}

func TestADXStrongTrend(t *testing.T) {
	bars := make([]market.Bar, 40)
	for i := range bars {
		c := 100 + float64(i)*2
		bars[i] = market.Bar{Time: int64(i), Open: c - 1, High: c + 1, Low: c - 1.5, Close: c}
	}

	adx := NewADX(5)
	for i, b := range bars {
		adx.Update(b)
		if i < adx.Warmup()-1 {
			assert.False(t, adx.Ready(), "bar %d", i)
		}
	}
	require.True(t, adx.Ready())
	// only up moves, so DX is 100 throughout
	assert.InDelta(t, 100.0, adx.Value(), 1e-6)

	adx.Reset()
	assert.False(t, adx.Ready())
	assert.Equal(t, 0.0, adx.Value())
}

func TestBollinger(t *testing.T) {
	bb := NewBollinger(4, 2)
	assert.Equal(t, "BB(4,2)", bb.Name())
	for _, c := range []float64{2, 4, 4, 4} {
		bb.Update(market.Bar{Close: c})
	}
	up, mid, lo := bb.Bands()
	// mean 3.5, population sd sqrt(0.75)
	sd := math.Sqrt(0.75)
	assert.InDelta(t, 3.5, mid, 1e-9)
	assert.InDelta(t, 3.5+2*sd, up, 1e-9)
	assert.InDelta(t, 3.5-2*sd, lo, 1e-9)
}

func TestCalc(t *testing.T) {
	bars := createTestBars()

	tests := []struct {
		name   string
		cfg    Config
		want   string
		pane   Pane
		lines  []string
		points int
	}{
		{"sma default period too long", Config{Type: "sma"}, "SMA(20)", PaneOverlay, []string{"value"}, 0},
		{"ema", Config{Type: "EMA", Period: 3}, "EMA(3)", PaneOverlay, []string{"value"}, 8},
		{"atr", Config{Type: "atr", Period: 3}, "ATR(3)", PaneSeparate, []string{"value"}, 7},
		{"adx", Config{Type: "adx", Period: 2}, "ADX(2)", PaneSeparate, []string{"value"}, 6},
		{"bollinger", Config{Type: "bb", Period: 5}, "BB(5,2)", PaneOverlay, []string{"upper", "middle", "lower"}, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Calc(tt.cfg, bars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Name)
			assert.Equal(t, tt.pane, out.Pane)
			require.Len(t, out.Lines, len(tt.lines))
			for _, l := range tt.lines {
				require.Contains(t, out.Lines, l)
				assert.Len(t, out.Lines[l], tt.points)
				if tt.points > 0 {
					assert.Equal(t, bars[len(bars)-1].Time, out.Lines[l][tt.points-1].Time)
				}
			}
		})
	}

	_, err := Calc(Config{Type: "rsi"}, bars)
	assert.Error(t, err)
	_, err = Calc(Config{Type: "ema", Period: -1}, bars)
	assert.Error(t, err)
}
