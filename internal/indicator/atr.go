package indicator

import (
	"math"

	"charting-systemv1/internal/model"
)

// calcATR computes the Average True Range with Wilder's smoothing. The first
// value is the plain mean of the first period true ranges, emitted at index
// period.
func calcATR(bars []model.Bar, params map[string]float64) (PlotSet, error) {
	period, err := intParam(params, "period", 14, 1)
	if err != nil {
		return nil, err
	}
	if len(bars) <= period {
		return PlotSet{"atr": nil}, nil
	}

	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += trueRange(&bars[i], &bars[i-1])
	}
	atr := sum / float64(period)

	points := make([]model.PlotPoint, 0, len(bars)-period)
	points = append(points, model.PlotPoint{Time: bars[period].Time, Value: atr})
	for i := period + 1; i < len(bars); i++ {
		atr = (atr*float64(period-1) + trueRange(&bars[i], &bars[i-1])) / float64(period)
		points = append(points, model.PlotPoint{Time: bars[i].Time, Value: atr})
	}
	return PlotSet{"atr": points}, nil
}

func trueRange(cur, prev *model.Bar) float64 {
	hl := cur.High - cur.Low
	hc := math.Abs(cur.High - prev.Close)
	lc := math.Abs(cur.Low - prev.Close)
	return math.Max(hl, math.Max(hc, lc))
}
