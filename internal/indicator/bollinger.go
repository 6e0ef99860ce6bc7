package indicator

import (
	"math"

	"charting-systemv1/internal/model"
)

// calcBollinger computes Bollinger Bands: an SMA basis with upper and lower
// bands at mult population standard deviations. Plots: "basis", "upper",
// "lower".
func calcBollinger(bars []model.Bar, params map[string]float64) (PlotSet, error) {
	period, err := intParam(params, "period", 20, 2)
	if err != nil {
		return nil, err
	}
	mult := param(params, "mult", 2)

	if len(bars) < period {
		return PlotSet{"basis": nil, "upper": nil, "lower": nil}, nil
	}

	n := len(bars) - period + 1
	basis := make([]model.PlotPoint, 0, n)
	upper := make([]model.PlotPoint, 0, n)
	lower := make([]model.PlotPoint, 0, n)

	sum, sumSq := 0.0, 0.0
	for i := range bars {
		c := bars[i].Close
		sum += c
		sumSq += c * c
		if i >= period {
			old := bars[i-period].Close
			sum -= old
			sumSq -= old * old
		}
		if i < period-1 {
			continue
		}
		mean := sum / float64(period)
		variance := sumSq/float64(period) - mean*mean
		if variance < 0 {
			variance = 0 // float cancellation guard
		}
		dev := mult * math.Sqrt(variance)
		ts := bars[i].Time
		basis = append(basis, model.PlotPoint{Time: ts, Value: mean})
		upper = append(upper, model.PlotPoint{Time: ts, Value: mean + dev})
		lower = append(lower, model.PlotPoint{Time: ts, Value: mean - dev})
	}

	return PlotSet{"basis": basis, "upper": upper, "lower": lower}, nil
}
