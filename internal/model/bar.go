package model

import "encoding/json"

// Session labels which trading session a bar belongs to.
type Session string

const (
	SessionRTH     Session = "rth"
	SessionPre     Session = "pre"
	SessionPreOpen Session = "pre_open"
	SessionPost    Session = "post"
	SessionClosing Session = "closing"
)

// Bar is one OHLCV candle at a fixed time bucket.
// Time is the bucket start in Unix seconds and is the unique, ascending key
// within a series. Invariant: Low <= min(Open,Close) <= max(Open,Close) <= High.
type Bar struct {
	Time       int64   `json:"time"` // bucket start (Unix seconds)
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	Volume     float64 `json:"volume"`
	Session    Session `json:"session,omitempty"`
	IsExtended bool    `json:"isExtended,omitempty"`
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}

// LiveCandle is a server-pushed partial or complete bar for a native push
// interval. Unlike a Tick it is already bucket-aligned by the feed.
type LiveCandle struct {
	Market   string  `json:"market"`
	Symbol   string  `json:"symbol"`
	Interval string  `json:"interval"` // native interval string, e.g. "1m"
	Time     int64   `json:"t"`        // bucket start (Unix seconds)
	Open     float64 `json:"o"`
	High     float64 `json:"h"`
	Low      float64 `json:"l"`
	Close    float64 `json:"c"`
	Volume   float64 `json:"v"`
}

// Bar converts the live candle into a series bar.
func (lc *LiveCandle) Bar() Bar {
	return Bar{
		Time:   lc.Time,
		Open:   lc.Open,
		High:   lc.High,
		Low:    lc.Low,
		Close:  lc.Close,
		Volume: lc.Volume,
	}
}

// BucketStart returns the left edge of the fixed-size time window containing ts.
func BucketStart(ts, periodSeconds int64) int64 {
	if periodSeconds <= 0 {
		return ts
	}
	return ts - (ts % periodSeconds)
}
