package indicator

import (
	"fmt"

	"charting-systemv1/internal/model"
)

// calcMACD computes the MACD line (fast EMA - slow EMA), its signal EMA and
// the histogram. Three plots: "macd", "signal", "histogram".
func calcMACD(bars []model.Bar, params map[string]float64) (PlotSet, error) {
	fast, err := intParam(params, "fast", 12, 1)
	if err != nil {
		return nil, err
	}
	slow, err := intParam(params, "slow", 26, 1)
	if err != nil {
		return nil, err
	}
	signal, err := intParam(params, "signal", 9, 1)
	if err != nil {
		return nil, err
	}
	if fast >= slow {
		return nil, fmt.Errorf("fast period %d must be below slow period %d", fast, slow)
	}

	closes := make([]float64, len(bars))
	for i := range bars {
		closes[i] = bars[i].Close
	}

	fastEMA := emaValues(closes, fast) // starts at index fast-1
	slowEMA := emaValues(closes, slow) // starts at index slow-1
	if slowEMA == nil {
		return PlotSet{"macd": nil, "signal": nil, "histogram": nil}, nil
	}

	// MACD line exists where both EMAs do: from bar index slow-1.
	macdVals := make([]float64, len(slowEMA))
	macdPts := make([]model.PlotPoint, len(slowEMA))
	for i := range slowEMA {
		barIdx := slow - 1 + i
		macdVals[i] = fastEMA[barIdx-(fast-1)] - slowEMA[i]
		macdPts[i] = model.PlotPoint{Time: bars[barIdx].Time, Value: macdVals[i]}
	}

	sigVals := emaValues(macdVals, signal) // starts at macd index signal-1
	sigPts := make([]model.PlotPoint, len(sigVals))
	histPts := make([]model.PlotPoint, len(sigVals))
	for i := range sigVals {
		barIdx := slow - 1 + signal - 1 + i
		sigPts[i] = model.PlotPoint{Time: bars[barIdx].Time, Value: sigVals[i]}
		histPts[i] = model.PlotPoint{Time: bars[barIdx].Time, Value: macdVals[signal-1+i] - sigVals[i]}
	}

	return PlotSet{"macd": macdPts, "signal": sigPts, "histogram": histPts}, nil
}
