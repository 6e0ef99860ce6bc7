package model

// SyncEvent is an "active crosshair" broadcast between chart panels.
// Last writer wins; the bus keeps no history.
type SyncEvent struct {
	SourceID  string  `json:"sourceId"` // panel that produced the event
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
}
