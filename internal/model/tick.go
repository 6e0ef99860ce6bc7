package model

// Tick represents a single market data tick from a live feed.
// Ticks are unordered: the feed may deliver them late, out of order or
// duplicated, so consumers must bucket by TS and never trust arrival order.
type Tick struct {
	Market    string  `json:"market"`
	Symbol    string  `json:"symbol"`
	TS        int64   `json:"ts"`  // event timestamp (Unix seconds)
	LastPrice float64 `json:"ltp"` // last traded price
	Volume    float64 `json:"volume,omitempty"`
	HasVolume bool    `json:"-"` // true when the feed supplied a volume field
}

// Key returns a unique key for this tick's instrument: "market:symbol".
func (t *Tick) Key() string {
	return t.Market + ":" + t.Symbol
}
