package model

import (
	"encoding/json"
	"sort"
)

// IndicatorConfig describes one active indicator instance on a chart.
// Two configs may share the same ID with different Params; they are told
// apart by InstanceID.
type IndicatorConfig struct {
	ID        string             `json:"id" yaml:"id"` // registry key, e.g. "sma"
	Params    map[string]float64 `json:"params,omitempty" yaml:"params,omitempty"`
	Visible   bool               `json:"visible" yaml:"visible"`
	Color     string             `json:"color,omitempty" yaml:"color,omitempty"`
	LineWidth int                `json:"lineWidth,omitempty" yaml:"lineWidth,omitempty"`
}

// InstanceID derives a stable identity from ID plus canonicalized params so
// duplicate indicators differing only by params coexist in an active set.
func (c *IndicatorConfig) InstanceID() string {
	if len(c.Params) == 0 {
		return c.ID
	}
	names := make([]string, 0, len(c.Params))
	for name := range c.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	out := c.ID + "("
	for i, name := range names {
		if i > 0 {
			out += ","
		}
		v, _ := json.Marshal(c.Params[name])
		out += name + "=" + string(v)
	}
	return out + ")"
}

// PlotPoint is a single (time, value) sample of an indicator plot.
type PlotPoint struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

// PlotSeries is one named output line of an indicator instance.
// Overlay plots share the primary price pane; non-overlay plots occupy a
// dedicated pane allocated in indicator-activation order.
type PlotSeries struct {
	IndicatorID string      `json:"indicatorId"` // instance id of the owning config
	PlotName    string      `json:"plotName"`
	Points      []PlotPoint `json:"points"`
	Overlay     bool        `json:"overlay"`
}
