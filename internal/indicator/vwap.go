package indicator

import "charting-systemv1/internal/model"

// calcVWAP computes the volume-weighted average price, cumulative from the
// start of the window, using the typical price (h+l+c)/3 per bar. Bars with
// zero volume contribute nothing; until the first traded bar the plot tracks
// the typical price itself.
func calcVWAP(bars []model.Bar, _ map[string]float64) (PlotSet, error) {
	points := make([]model.PlotPoint, 0, len(bars))
	cumPV, cumV := 0.0, 0.0
	for i := range bars {
		typical := (bars[i].High + bars[i].Low + bars[i].Close) / 3
		cumPV += typical * bars[i].Volume
		cumV += bars[i].Volume

		value := typical
		if cumV > 0 {
			value = cumPV / cumV
		}
		points = append(points, model.PlotPoint{Time: bars[i].Time, Value: value})
	}
	return PlotSet{"vwap": points}, nil
}
