// Package indicator provides technical indicator calculations over bar data
// and the engine that keeps rendered plot series in step with a live chart.
//
// Indicators are registered by string id and compute over the full bar
// window each cycle; they are not streaming-incremental internally. The
// engine decides whether the renderer needs a full series replace or just a
// new last point.
package indicator

import (
	"fmt"

	"charting-systemv1/internal/model"
)

// PlotSet maps plot names to their computed point series.
type PlotSet map[string][]model.PlotPoint

// CalcFunc evaluates an indicator against a read-only bar window.
type CalcFunc func(bars []model.Bar, params map[string]float64) (PlotSet, error)

// Indicator is one registered indicator implementation. Callers depend only
// on this, never on concrete indicator internals.
type Indicator struct {
	ID            string
	Overlay       bool // overlay plots share the primary price pane
	DefaultParams map[string]float64
	Calculate     CalcFunc
}

// Registry is a lookup of indicator implementations by id.
type Registry struct {
	byID map[string]Indicator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Indicator)}
}

// Register adds or replaces an indicator implementation.
func (r *Registry) Register(ind Indicator) {
	r.byID[ind.ID] = ind
}

// Lookup returns the implementation for id.
func (r *Registry) Lookup(id string) (Indicator, bool) {
	ind, ok := r.byID[id]
	return ind, ok
}

// IDs returns all registered ids (unordered).
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.byID))
	for id := range r.byID {
		out = append(out, id)
	}
	return out
}

// DefaultRegistry returns a registry with all built-in indicators.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Indicator{
		ID: "sma", Overlay: true,
		DefaultParams: map[string]float64{"period": 20},
		Calculate:     calcSMA,
	})
	r.Register(Indicator{
		ID: "ema", Overlay: true,
		DefaultParams: map[string]float64{"period": 9},
		Calculate:     calcEMA,
	})
	r.Register(Indicator{
		ID: "rsi", Overlay: false,
		DefaultParams: map[string]float64{"period": 14},
		Calculate:     calcRSI,
	})
	r.Register(Indicator{
		ID: "macd", Overlay: false,
		DefaultParams: map[string]float64{"fast": 12, "slow": 26, "signal": 9},
		Calculate:     calcMACD,
	})
	r.Register(Indicator{
		ID: "bbands", Overlay: true,
		DefaultParams: map[string]float64{"period": 20, "mult": 2},
		Calculate:     calcBollinger,
	})
	r.Register(Indicator{
		ID: "vwap", Overlay: true,
		DefaultParams: map[string]float64{},
		Calculate:     calcVWAP,
	})
	r.Register(Indicator{
		ID: "atr", Overlay: false,
		DefaultParams: map[string]float64{"period": 14},
		Calculate:     calcATR,
	})
	return r
}

// param reads a parameter with a fallback default.
func param(params map[string]float64, name string, def float64) float64 {
	if v, ok := params[name]; ok {
		return v
	}
	return def
}

// intParam reads an integer parameter, rejecting values below min.
func intParam(params map[string]float64, name string, def float64, min int) (int, error) {
	v := int(param(params, name, def))
	if v < min {
		return 0, fmt.Errorf("parameter %q must be >= %d, got %d", name, min, v)
	}
	return v, nil
}
