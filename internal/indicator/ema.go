package indicator

import "charting-systemv1/internal/model"

// calcEMA computes an exponential moving average of closes, seeded with the
// SMA of the first period values.
func calcEMA(bars []model.Bar, params map[string]float64) (PlotSet, error) {
	period, err := intParam(params, "period", 9, 1)
	if err != nil {
		return nil, err
	}
	return PlotSet{"ema": emaSeries(bars, period)}, nil
}

// emaSeries returns EMA points starting at index period-1.
func emaSeries(bars []model.Bar, period int) []model.PlotPoint {
	closes := make([]float64, len(bars))
	for i := range bars {
		closes[i] = bars[i].Close
	}
	values := emaValues(closes, period)
	if values == nil {
		return nil
	}
	points := make([]model.PlotPoint, len(values))
	for i, v := range values {
		points[i] = model.PlotPoint{Time: bars[period-1+i].Time, Value: v}
	}
	return points
}

// emaValues computes the EMA over a raw float series. The first output value
// corresponds to input index period-1 (the SMA seed).
func emaValues(values []float64, period int) []float64 {
	if len(values) < period || period < 1 {
		return nil
	}
	multiplier := 2.0 / float64(period+1)

	seed := 0.0
	for _, v := range values[:period] {
		seed += v
	}
	seed /= float64(period)

	out := make([]float64, 0, len(values)-period+1)
	out = append(out, seed)
	current := seed
	for _, v := range values[period:] {
		current = v*multiplier + current*(1-multiplier)
		out = append(out, current)
	}
	return out
}
