package indicator

import (
	"fmt"
	"log/slog"

	"charting-systemv1/internal/model"
	"charting-systemv1/internal/render"
)

// instance is one active indicator config bound to its renderer handles.
type instance struct {
	cfg   model.IndicatorConfig
	ind   Indicator
	pane  int
	plots map[string]render.Series // plotName → handle
}

// Engine evaluates the active indicator set against a bar series and keeps
// the renderer's plot series in step. Single-goroutine: the owning panel
// calls it from its update loop. The engine only reads the bar slice, never
// mutates it.
type Engine struct {
	registry *Registry
	renderer render.Renderer
	log      *slog.Logger

	active map[string]*instance // keyed by config InstanceID
	order  []string             // activation order, drives pane allocation

	nextPane int // next dedicated pane to hand out (0 is the price pane)

	// Bar-window fingerprint from the previous Update. Same length and same
	// final bar time means the tail changed in place, so plots only need
	// their last point refreshed. Heuristic: an interior correction that
	// preserves both is mis-classified as incremental; kept for
	// compatibility.
	fpLen  int
	fpLast int64
	seeded bool
}

// NewEngine creates an engine over the given registry and renderer.
func NewEngine(registry *Registry, renderer render.Renderer, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		registry: registry,
		renderer: renderer,
		log:      log,
		active:   make(map[string]*instance),
		nextPane: 1,
	}
}

// SetConfigs reconciles the active set against cfgs. Deactivated instances
// release every plot handle they were holding; new ones are activated in
// slice order, which fixes their pane allocation. Duplicate ids differing
// only by params are distinct instances.
func (e *Engine) SetConfigs(cfgs []model.IndicatorConfig) {
	want := make(map[string]model.IndicatorConfig, len(cfgs))
	wantOrder := make([]string, 0, len(cfgs))
	for _, cfg := range cfgs {
		id := cfg.InstanceID()
		if _, dup := want[id]; dup {
			continue
		}
		want[id] = cfg
		wantOrder = append(wantOrder, id)
	}

	// Drop instances that left the active set.
	kept := e.order[:0]
	for _, id := range e.order {
		if _, ok := want[id]; ok {
			kept = append(kept, id)
			continue
		}
		e.removePlots(e.active[id])
		delete(e.active, id)
	}
	e.order = kept

	for _, id := range wantOrder {
		cfg := want[id]
		if inst, ok := e.active[id]; ok {
			inst.cfg = cfg // refresh visibility/style
			continue
		}
		ind, ok := e.registry.Lookup(cfg.ID)
		if !ok {
			// Unknown id is a recoverable per-indicator failure.
			e.log.Warn("unknown indicator id, skipping", "id", cfg.ID)
			continue
		}
		pane := 0
		if !ind.Overlay {
			pane = e.nextPane
			e.nextPane++
		}
		e.active[id] = &instance{
			cfg:   cfg,
			ind:   ind,
			pane:  pane,
			plots: make(map[string]render.Series),
		}
		e.order = append(e.order, id)
	}
}

// Update recomputes every active, visible indicator against bars and pushes
// the results to the renderer. A failing indicator is skipped for the cycle
// without touching the others.
func (e *Engine) Update(bars []model.Bar) {
	incremental := e.seeded && len(bars) > 0 &&
		len(bars) == e.fpLen && bars[len(bars)-1].Time == e.fpLast

	e.fpLen = len(bars)
	if len(bars) > 0 {
		e.fpLast = bars[len(bars)-1].Time
	} else {
		e.fpLast = 0
	}
	e.seeded = true

	for _, id := range e.order {
		inst := e.active[id]
		if !inst.cfg.Visible {
			e.removePlots(inst)
			continue
		}

		plots, err := e.safeCalculate(inst, bars)
		if err != nil {
			e.log.Warn("indicator evaluation failed, skipping cycle",
				"instance", id, "err", err)
			continue
		}

		// Reconcile plot-set changes: stale handles go before new ones come.
		for name, handle := range inst.plots {
			if _, ok := plots[name]; !ok {
				handle.Remove()
				delete(inst.plots, name)
			}
		}

		for name, points := range plots {
			handle, existed := inst.plots[name]
			if !existed {
				handle = e.renderer.AddSeries(render.SeriesSpec{
					ID:        id + "/" + name,
					Type:      seriesTypeFor(name),
					Pane:      inst.pane,
					Color:     inst.cfg.Color,
					LineWidth: inst.cfg.LineWidth,
				})
				inst.plots[name] = handle
			}
			if incremental && existed {
				if len(points) > 0 {
					handle.Update(points[len(points)-1])
				}
				continue
			}
			handle.SetData(points)
		}
	}
}

// Teardown releases every plot handle the engine holds. No orphaned series
// survive a chart teardown.
func (e *Engine) Teardown() {
	for _, id := range e.order {
		e.removePlots(e.active[id])
	}
	e.active = make(map[string]*instance)
	e.order = nil
	e.nextPane = 1
	e.seeded = false
}

// PaneOf reports the pane allocated to a config instance.
func (e *Engine) PaneOf(instanceID string) (int, bool) {
	inst, ok := e.active[instanceID]
	if !ok {
		return 0, false
	}
	return inst.pane, true
}

func (e *Engine) removePlots(inst *instance) {
	for name, handle := range inst.plots {
		handle.Remove()
		delete(inst.plots, name)
	}
}

// safeCalculate runs Calculate with merged params, turning panics into
// errors so one broken indicator cannot take down the update path.
func (e *Engine) safeCalculate(inst *instance, bars []model.Bar) (plots PlotSet, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("indicator %s panicked: %v", inst.cfg.ID, r)
		}
	}()

	params := make(map[string]float64, len(inst.ind.DefaultParams)+len(inst.cfg.Params))
	for k, v := range inst.ind.DefaultParams {
		params[k] = v
	}
	for k, v := range inst.cfg.Params {
		params[k] = v
	}
	return inst.ind.Calculate(bars, params)
}

func seriesTypeFor(plotName string) render.SeriesType {
	if plotName == "histogram" {
		return render.SeriesHistogram
	}
	return render.SeriesLine
}
