package render

import (
	"sync"

	"charting-systemv1/internal/model"
)

// Recorder is an in-memory Renderer that records every call. It backs unit
// tests across packages and the snapshot endpoint of the HTTP API.
type Recorder struct {
	mu sync.Mutex

	bars        []model.Bar
	fullResets  int
	barUpdates  int
	series      map[string]*RecordedSeries
	visibleFrom int64
	visibleTo   int64
	rangeSets   int
}

// NewRecorder creates an empty recording renderer.
func NewRecorder() *Recorder {
	return &Recorder{series: make(map[string]*RecordedSeries)}
}

func (r *Recorder) SetBars(bars []model.Bar) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bars = append([]model.Bar(nil), bars...)
	r.fullResets++
}

func (r *Recorder) UpdateBar(bar model.Bar) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.barUpdates++
	for i := len(r.bars) - 1; i >= 0; i-- {
		if r.bars[i].Time == bar.Time {
			r.bars[i] = bar
			return
		}
	}
	r.bars = append(r.bars, bar)
}

func (r *Recorder) AddSeries(spec SeriesSpec) Series {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &RecordedSeries{rec: r, Spec: spec}
	r.series[spec.ID] = s
	return s
}

func (r *Recorder) SetVisibleRange(from, to int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visibleFrom, r.visibleTo = from, to
	r.rangeSets++
}

// Bars returns a copy of the recorded candle series.
func (r *Recorder) Bars() []model.Bar {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Bar(nil), r.bars...)
}

// Counts returns (full bar resets, single-bar updates).
func (r *Recorder) Counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fullResets, r.barUpdates
}

// Series returns the live (non-removed) series keyed by id.
func (r *Recorder) Series() map[string]*RecordedSeries {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*RecordedSeries, len(r.series))
	for id, s := range r.series {
		out[id] = s
	}
	return out
}

// VisibleRange returns the last requested range and how often it was set.
func (r *Recorder) VisibleRange() (from, to int64, sets int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visibleFrom, r.visibleTo, r.rangeSets
}

// RecordedSeries captures the point state of one allocated series.
type RecordedSeries struct {
	rec  *Recorder
	Spec SeriesSpec

	Points     []model.PlotPoint
	DataResets int
	PointSets  int
}

func (s *RecordedSeries) SetData(points []model.PlotPoint) {
	s.rec.mu.Lock()
	defer s.rec.mu.Unlock()
	s.Points = append([]model.PlotPoint(nil), points...)
	s.DataResets++
}

func (s *RecordedSeries) Update(p model.PlotPoint) {
	s.rec.mu.Lock()
	defer s.rec.mu.Unlock()
	s.PointSets++
	for i := len(s.Points) - 1; i >= 0; i-- {
		if s.Points[i].Time == p.Time {
			s.Points[i] = p
			return
		}
	}
	s.Points = append(s.Points, p)
}

func (s *RecordedSeries) Remove() {
	s.rec.mu.Lock()
	defer s.rec.mu.Unlock()
	delete(s.rec.series, s.Spec.ID)
}
