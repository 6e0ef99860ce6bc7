// Package render defines the contract between the chart core and whatever
// actually draws pixels. The core only ever emits a full-replace or a
// single-point update per logical series; it never assumes the renderer does
// its own diffing.
package render

import "charting-systemv1/internal/model"

// SeriesType hints how a plot should be drawn.
type SeriesType string

const (
	SeriesLine      SeriesType = "line"
	SeriesHistogram SeriesType = "histogram"
)

// SeriesSpec describes one logical plot series to allocate.
type SeriesSpec struct {
	ID        string // unique within the renderer, "instanceId/plotName"
	Type      SeriesType
	Pane      int // 0 = primary price pane
	Color     string
	LineWidth int
}

// Series is the handle for one allocated plot series.
type Series interface {
	// SetData replaces all points of the series.
	SetData(points []model.PlotPoint)
	// Update overwrites or appends the point at p.Time.
	Update(p model.PlotPoint)
	// Remove releases the series; the handle must not be used afterwards.
	Remove()
}

// Renderer is the produced-to surface of one chart panel.
type Renderer interface {
	// SetBars replaces the panel's candle/volume series wholesale.
	SetBars(bars []model.Bar)
	// UpdateBar applies a single-bar incremental update at bar.Time.
	UpdateBar(bar model.Bar)
	// AddSeries allocates a plot series for an indicator.
	AddSeries(spec SeriesSpec) Series
	// SetVisibleRange asks the view to scroll to [from, to]. The caller owns
	// its own viewport math; this is intent, not state.
	SetVisibleRange(from, to int64)
}
