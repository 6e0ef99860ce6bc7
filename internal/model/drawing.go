package model

// Drawing tool types.
const (
	DrawingTrendline = "trendline"
	DrawingHLine     = "hline"
)

// DrawingPoint anchors a drawing at a (time, price) coordinate.
type DrawingPoint struct {
	Time  int64   `json:"time"`
	Price float64 `json:"price"`
}

// Drawing is a user-created chart annotation. It is a tagged union on Type:
// trendlines carry P1/P2, horizontal lines carry Price only.
// ID is assigned locally at creation time; RemoteID is whatever identity the
// remote store last reported and is informational only (the replace-all sync
// strategy churns it on every cycle).
type Drawing struct {
	ID       string        `json:"id"`
	RemoteID string        `json:"remoteId,omitempty"`
	Type     string        `json:"type"`
	P1       *DrawingPoint `json:"p1,omitempty"`
	P2       *DrawingPoint `json:"p2,omitempty"`
	Price    float64       `json:"price,omitempty"`
}

// Degenerate reports whether the drawing carries no usable geometry.
// A trendline whose two anchors share a time value collapses to a vertical
// segment the renderer cannot place, so it is dropped at creation.
func (d *Drawing) Degenerate() bool {
	switch d.Type {
	case DrawingTrendline:
		return d.P1 == nil || d.P2 == nil || d.P1.Time == d.P2.Time
	case DrawingHLine:
		return false
	default:
		return true
	}
}
