package indicator

import "charting-systemv1/internal/model"

// calcSMA computes a simple moving average of closes over a rolling window,
// using a running sum so the pass stays O(n).
func calcSMA(bars []model.Bar, params map[string]float64) (PlotSet, error) {
	period, err := intParam(params, "period", 20, 1)
	if err != nil {
		return nil, err
	}

	points := smaPoints(bars, period)
	return PlotSet{"sma": points}, nil
}

func smaPoints(bars []model.Bar, period int) []model.PlotPoint {
	if len(bars) < period {
		return nil
	}
	points := make([]model.PlotPoint, 0, len(bars)-period+1)
	sum := 0.0
	for i := range bars {
		sum += bars[i].Close
		if i >= period {
			sum -= bars[i-period].Close
		}
		if i >= period-1 {
			points = append(points, model.PlotPoint{
				Time:  bars[i].Time,
				Value: sum / float64(period),
			})
		}
	}
	return points
}
