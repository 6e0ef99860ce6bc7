package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"charting-systemv1/internal/model"
)

func closes(vals ...float64) []model.Bar {
	bars := make([]model.Bar, len(vals))
	for i, v := range vals {
		bars[i] = model.Bar{
			Time: int64(i) * 60,
			Open: v, High: v + 1, Low: v - 1, Close: v,
			Volume: 10,
		}
	}
	return bars
}

func TestCalcSMA_ConstantSeries(t *testing.T) {
	bars := closes(100, 100, 100, 100, 100, 100)
	plots, err := calcSMA(bars, map[string]float64{"period": 4})
	require.NoError(t, err)

	pts := plots["sma"]
	require.Len(t, pts, 3)
	for _, p := range pts {
		assert.InDelta(t, 100.0, p.Value, 1e-9)
	}
	assert.Equal(t, bars[3].Time, pts[0].Time, "first value at index period-1")
}

func TestCalcSMA_RollingWindow(t *testing.T) {
	plots, err := calcSMA(closes(1, 2, 3, 4, 5), map[string]float64{"period": 3})
	require.NoError(t, err)
	pts := plots["sma"]
	require.Len(t, pts, 3)
	assert.InDelta(t, 2.0, pts[0].Value, 1e-9)
	assert.InDelta(t, 3.0, pts[1].Value, 1e-9)
	assert.InDelta(t, 4.0, pts[2].Value, 1e-9)
}

func TestCalcSMA_BadPeriod(t *testing.T) {
	_, err := calcSMA(closes(1, 2, 3), map[string]float64{"period": 0})
	assert.Error(t, err)
}

func TestCalcEMA_SeedEqualsSMA(t *testing.T) {
	plots, err := calcEMA(closes(2, 4, 6, 8), map[string]float64{"period": 3})
	require.NoError(t, err)
	pts := plots["ema"]
	require.Len(t, pts, 2)
	assert.InDelta(t, 4.0, pts[0].Value, 1e-9) // (2+4+6)/3
	// next = 8*0.5 + 4*0.5
	assert.InDelta(t, 6.0, pts[1].Value, 1e-9)
}

func TestCalcRSI_AllGainsIsHundred(t *testing.T) {
	plots, err := calcRSI(closes(1, 2, 3, 4, 5, 6, 7), map[string]float64{"period": 3})
	require.NoError(t, err)
	pts := plots["rsi"]
	require.NotEmpty(t, pts)
	for _, p := range pts {
		assert.InDelta(t, 100.0, p.Value, 1e-9)
	}
}

func TestCalcRSI_Midpoint(t *testing.T) {
	// Alternating equal gains and losses: RS=1 → RSI=50 once smoothing settles.
	vals := []float64{10}
	for i := 0; i < 40; i++ {
		if i%2 == 0 {
			vals = append(vals, vals[len(vals)-1]+1)
		} else {
			vals = append(vals, vals[len(vals)-1]-1)
		}
	}
	plots, err := calcRSI(closes(vals...), map[string]float64{"period": 14})
	require.NoError(t, err)
	pts := plots["rsi"]
	require.NotEmpty(t, pts)
	assert.InDelta(t, 50.0, pts[len(pts)-1].Value, 5.0)
}

func TestCalcMACD_PlotAlignment(t *testing.T) {
	vals := make([]float64, 60)
	for i := range vals {
		vals[i] = 100 + math.Sin(float64(i)/5)*10
	}
	bars := closes(vals...)

	plots, err := calcMACD(bars, map[string]float64{"fast": 12, "slow": 26, "signal": 9})
	require.NoError(t, err)

	macd, sig, hist := plots["macd"], plots["signal"], plots["histogram"]
	require.Len(t, macd, 60-26+1)
	require.Len(t, sig, len(macd)-9+1)
	require.Len(t, hist, len(sig))
	assert.Equal(t, bars[25].Time, macd[0].Time)
	assert.Equal(t, bars[25+8].Time, sig[0].Time)
	// histogram = macd - signal at the same timestamp
	last := len(sig) - 1
	assert.InDelta(t, macd[len(macd)-1].Value-sig[last].Value, hist[last].Value, 1e-9)
}

func TestCalcMACD_RejectsInvertedPeriods(t *testing.T) {
	_, err := calcMACD(closes(1, 2, 3), map[string]float64{"fast": 26, "slow": 12, "signal": 9})
	assert.Error(t, err)
}

func TestCalcBollinger_ConstantSeriesCollapses(t *testing.T) {
	plots, err := calcBollinger(closes(50, 50, 50, 50, 50), map[string]float64{"period": 4, "mult": 2})
	require.NoError(t, err)
	require.Len(t, plots["basis"], 2)
	for i := range plots["basis"] {
		assert.InDelta(t, 50.0, plots["basis"][i].Value, 1e-9)
		assert.InDelta(t, 50.0, plots["upper"][i].Value, 1e-9)
		assert.InDelta(t, 50.0, plots["lower"][i].Value, 1e-9)
	}
}

func TestCalcBollinger_BandsBracketBasis(t *testing.T) {
	plots, err := calcBollinger(closes(1, 5, 3, 9, 7, 2, 8), map[string]float64{"period": 5, "mult": 2})
	require.NoError(t, err)
	for i := range plots["basis"] {
		assert.Greater(t, plots["upper"][i].Value, plots["basis"][i].Value)
		assert.Less(t, plots["lower"][i].Value, plots["basis"][i].Value)
	}
}

func TestCalcVWAP_TracksVolumeWeights(t *testing.T) {
	bars := []model.Bar{
		{Time: 0, High: 11, Low: 9, Close: 10, Volume: 10},   // typical 10
		{Time: 60, High: 21, Low: 19, Close: 20, Volume: 30}, // typical 20
	}
	plots, err := calcVWAP(bars, nil)
	require.NoError(t, err)
	pts := plots["vwap"]
	require.Len(t, pts, 2)
	assert.InDelta(t, 10.0, pts[0].Value, 1e-9)
	assert.InDelta(t, (10.0*10+20.0*30)/40, pts[1].Value, 1e-9)
}

func TestCalcVWAP_ZeroVolumeFallsBackToTypical(t *testing.T) {
	bars := []model.Bar{{Time: 0, High: 12, Low: 8, Close: 10, Volume: 0}}
	plots, err := calcVWAP(bars, nil)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, plots["vwap"][0].Value, 1e-9)
}

func TestCalcATR_ConstantRange(t *testing.T) {
	bars := make([]model.Bar, 10)
	for i := range bars {
		bars[i] = model.Bar{Time: int64(i) * 60, Open: 100, High: 102, Low: 98, Close: 100, Volume: 1}
	}
	plots, err := calcATR(bars, map[string]float64{"period": 5})
	require.NoError(t, err)
	pts := plots["atr"]
	require.NotEmpty(t, pts)
	for _, p := range pts {
		assert.InDelta(t, 4.0, p.Value, 1e-9)
	}
}

func TestCalc_ShortWindowsReturnEmptyNotError(t *testing.T) {
	short := closes(1, 2)
	for _, id := range []string{"sma", "ema", "rsi", "macd", "bbands", "atr"} {
		ind, ok := DefaultRegistry().Lookup(id)
		require.True(t, ok, id)
		plots, err := ind.Calculate(short, ind.DefaultParams)
		require.NoError(t, err, id)
		for name, pts := range plots {
			assert.Empty(t, pts, "%s/%s", id, name)
		}
	}
}
