package indicator

import "charting-systemv1/internal/model"

// calcRSI computes the Relative Strength Index using Wilder's smoothing.
// The first value is emitted at index period (one delta per bar before it).
func calcRSI(bars []model.Bar, params map[string]float64) (PlotSet, error) {
	period, err := intParam(params, "period", 14, 1)
	if err != nil {
		return nil, err
	}
	if len(bars) <= period {
		return PlotSet{"rsi": nil}, nil
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		delta := bars[i].Close - bars[i-1].Close
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	points := make([]model.PlotPoint, 0, len(bars)-period)
	points = append(points, model.PlotPoint{Time: bars[period].Time, Value: rsiValue(avgGain, avgLoss)})

	for i := period + 1; i < len(bars); i++ {
		delta := bars[i].Close - bars[i-1].Close
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		points = append(points, model.PlotPoint{Time: bars[i].Time, Value: rsiValue(avgGain, avgLoss)})
	}

	return PlotSet{"rsi": points}, nil
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
