// Package merge normalizes raw OHLCV rows into a clean bar series.
// Upstream history feeds disagree on field naming ("time" vs "t"), repeat
// timestamps and occasionally ship inconsistent OHLC quadruples, so every
// series entering the chart pipeline passes through Normalize first.
package merge

import (
	"encoding/json"
	"math"
	"sort"

	"charting-systemv1/internal/model"
)

// RawBar is one unvalidated OHLCV row as fetched from a history source.
// Missing price fields decode to NaN so Normalize drops the row.
type RawBar struct {
	Time   int64
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64

	Session    model.Session
	IsExtended bool
}

// rawBarWire accepts both long and short field spellings.
type rawBarWire struct {
	Time   *int64   `json:"time"`
	T      *int64   `json:"t"`
	Open   *float64 `json:"open"`
	O      *float64 `json:"o"`
	High   *float64 `json:"high"`
	H      *float64 `json:"h"`
	Low    *float64 `json:"low"`
	L      *float64 `json:"l"`
	Close  *float64 `json:"close"`
	C      *float64 `json:"c"`
	Volume *float64 `json:"volume"`
	V      *float64 `json:"v"`

	Session    string `json:"session"`
	IsExtended bool   `json:"isExtended"`
}

// UnmarshalJSON resolves alternate key spellings, long names winning when a
// row carries both.
func (r *RawBar) UnmarshalJSON(data []byte) error {
	var w rawBarWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.Time = pickInt(w.Time, w.T)
	r.Open = pickFloat(w.Open, w.O)
	r.High = pickFloat(w.High, w.H)
	r.Low = pickFloat(w.Low, w.L)
	r.Close = pickFloat(w.Close, w.C)
	if v := pickFloat(w.Volume, w.V); !math.IsNaN(v) {
		r.Volume = v
	} else {
		r.Volume = 0 // volume is optional upstream
	}
	r.Session = model.Session(w.Session)
	r.IsExtended = w.IsExtended
	return nil
}

func pickInt(long, short *int64) int64 {
	if long != nil {
		return *long
	}
	if short != nil {
		return *short
	}
	return -1
}

func pickFloat(long, short *float64) float64 {
	if long != nil {
		return *long
	}
	if short != nil {
		return *short
	}
	return math.NaN()
}

// Normalize turns raw rows into a time-ascending series with one bar per
// unique timestamp, last seen winning on duplicates. High and low are
// recomputed as max/min of the whole quadruple, which defends against feeds
// that send an inconsistent OHLC set. Rows with any non-finite numeric field
// or a negative timestamp are dropped silently; garbled upstream rows are
// expected and must not abort the pipeline. Idempotent: Normalize of an
// already-normalized series returns the same series.
func Normalize(rows []RawBar) []model.Bar {
	byTime := make(map[int64]model.Bar, len(rows))
	for i := range rows {
		row := &rows[i]
		if row.Time < 0 || !finite(row.Open, row.High, row.Low, row.Close, row.Volume) {
			continue
		}
		byTime[row.Time] = model.Bar{
			Time:       row.Time,
			Open:       row.Open,
			High:       math.Max(math.Max(row.Open, row.High), math.Max(row.Low, row.Close)),
			Low:        math.Min(math.Min(row.Open, row.High), math.Min(row.Low, row.Close)),
			Close:      row.Close,
			Volume:     row.Volume,
			Session:    row.Session,
			IsExtended: row.IsExtended,
		}
	}

	out := make([]model.Bar, 0, len(byTime))
	for _, b := range byTime {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

// NormalizeBars re-runs the dedup/clamp pass over an existing bar slice.
func NormalizeBars(bars []model.Bar) []model.Bar {
	rows := make([]RawBar, len(bars))
	for i, b := range bars {
		rows[i] = RawBar{
			Time: b.Time, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close,
			Volume: b.Volume, Session: b.Session, IsExtended: b.IsExtended,
		}
	}
	return Normalize(rows)
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
