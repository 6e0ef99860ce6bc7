package gateway

import (
	"charting-systemv1/internal/model"
	"charting-systemv1/internal/render"
)

// Outbound envelope types. Every frame the hub pushes carries a "type" and
// the owning panel so one socket can drive several linked charts.
const (
	msgSnapshot     = "snapshot"
	msgBars         = "bars"
	msgBar          = "bar"
	msgSeriesData   = "series_data"
	msgSeriesPoint  = "series_point"
	msgSeriesRemove = "series_remove"
	msgVisibleRange = "visible_range"
	msgIndicators   = "indicators"
	msgPong         = "pong"
	msgError        = "error"
)

type barsMsg struct {
	Type  string      `json:"type"`
	Panel string      `json:"panel"`
	Bars  []model.Bar `json:"bars"`
}

type barMsg struct {
	Type  string    `json:"type"`
	Panel string    `json:"panel"`
	Bar   model.Bar `json:"bar"`
}

type seriesDataMsg struct {
	Type   string            `json:"type"`
	Panel  string            `json:"panel"`
	Spec   render.SeriesSpec `json:"spec"`
	Points []model.PlotPoint `json:"points"`
}

type seriesPointMsg struct {
	Type   string          `json:"type"`
	Panel  string          `json:"panel"`
	Series string          `json:"series"`
	Point  model.PlotPoint `json:"point"`
}

type seriesRemoveMsg struct {
	Type   string `json:"type"`
	Panel  string `json:"panel"`
	Series string `json:"series"`
}

type visibleRangeMsg struct {
	Type  string `json:"type"`
	Panel string `json:"panel"`
	From  int64  `json:"from"`
	To    int64  `json:"to"`
}

type indicatorsMsg struct {
	Type    string                  `json:"type"`
	Panel   string                  `json:"panel"`
	Configs []model.IndicatorConfig `json:"configs"`
}

// snapshotSeries is one plot series inside a snapshot frame.
type snapshotSeries struct {
	Spec   render.SeriesSpec `json:"spec"`
	Points []model.PlotPoint `json:"points"`
}

type snapshotMsg struct {
	Type   string           `json:"type"`
	Panel  string           `json:"panel"`
	Bars   []model.Bar      `json:"bars"`
	Series []snapshotSeries `json:"series"`
}

type errorMsg struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Inbound client commands.
type clientCommand struct {
	Type     string                  `json:"type"` // "set_instrument", "set_indicators", "crosshair", ping via Ping field
	Panel    string                  `json:"panel"`
	Market   string                  `json:"market,omitempty"`
	Symbol   string                  `json:"symbol,omitempty"`
	Interval string                  `json:"interval,omitempty"`
	Configs  []model.IndicatorConfig `json:"configs,omitempty"`
	Time     int64                   `json:"time,omitempty"`
	Price    float64                 `json:"price,omitempty"`
	Ping     int64                   `json:"ping,omitempty"`
}
