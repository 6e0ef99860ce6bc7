package gateway

import (
	"encoding/json"
	"log"

	"charting-systemv1/internal/model"
	"charting-systemv1/internal/render"
)

// Renderer is a render.Renderer that mirrors every call to connected
// WebSocket clients. It keeps the current panel state in an embedded
// Recorder so clients that connect later receive a full snapshot.
type Renderer struct {
	hub   *Hub
	panel string
	state *render.Recorder
}

func newRenderer(h *Hub, panel string) *Renderer {
	return &Renderer{hub: h, panel: panel, state: render.NewRecorder()}
}

func (r *Renderer) emit(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("[gateway] frame encode failed for panel %s: %v", r.panel, err)
		return
	}
	r.hub.broadcast(payload)
}

func (r *Renderer) SetBars(bars []model.Bar) {
	r.state.SetBars(bars)
	r.emit(barsMsg{Type: msgBars, Panel: r.panel, Bars: bars})
}

func (r *Renderer) UpdateBar(bar model.Bar) {
	r.state.UpdateBar(bar)
	r.emit(barMsg{Type: msgBar, Panel: r.panel, Bar: bar})
}

func (r *Renderer) AddSeries(spec render.SeriesSpec) render.Series {
	return &wsSeries{r: r, spec: spec, state: r.state.AddSeries(spec)}
}

func (r *Renderer) SetVisibleRange(from, to int64) {
	r.state.SetVisibleRange(from, to)
	r.emit(visibleRangeMsg{Type: msgVisibleRange, Panel: r.panel, From: from, To: to})
}

// Bars exposes the current candle state for the HTTP snapshot endpoint.
func (r *Renderer) Bars() []model.Bar {
	return r.state.Bars()
}

// snapshot builds the late-join frame from recorded state.
func (r *Renderer) snapshot() snapshotMsg {
	snap := snapshotMsg{
		Type:   msgSnapshot,
		Panel:  r.panel,
		Bars:   r.state.Bars(),
		Series: []snapshotSeries{},
	}
	for _, s := range r.state.Series() {
		snap.Series = append(snap.Series, snapshotSeries{
			Spec:   s.Spec,
			Points: append([]model.PlotPoint(nil), s.Points...),
		})
	}
	return snap
}

// wsSeries forwards point mutations for one plot series.
type wsSeries struct {
	r     *Renderer
	spec  render.SeriesSpec
	state render.Series
}

func (s *wsSeries) SetData(points []model.PlotPoint) {
	s.state.SetData(points)
	s.r.emit(seriesDataMsg{Type: msgSeriesData, Panel: s.r.panel, Spec: s.spec, Points: points})
}

func (s *wsSeries) Update(p model.PlotPoint) {
	s.state.Update(p)
	s.r.emit(seriesPointMsg{Type: msgSeriesPoint, Panel: s.r.panel, Series: s.spec.ID, Point: p})
}

func (s *wsSeries) Remove() {
	s.state.Remove()
	s.r.emit(seriesRemoveMsg{Type: msgSeriesRemove, Panel: s.r.panel, Series: s.spec.ID})
}
