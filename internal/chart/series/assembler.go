// Package series maintains the live bar sequence for one chart instance.
// The Assembler folds ticks or server-aggregated candles into the tail of a
// previously fetched historical series. Only the trailing bar is ever mutated
// by live data; interior corrections come exclusively from a fresh reseed.
package series

import (
	"charting-systemv1/internal/model"
)

// UpdateKind tells the caller what a live event did to the series, so the
// renderer adapter can pick a single-point update over a full replace.
type UpdateKind int

const (
	// UpdateNone: the event was stale or unroutable and was discarded.
	UpdateNone UpdateKind = iota
	// UpdateAppend: a new trailing bar was appended.
	UpdateAppend
	// UpdateReplaceTail: the trailing bar changed in place.
	UpdateReplaceTail
	// UpdateReplaceAt: an interior bar with a matching bucket was replaced.
	UpdateReplaceAt
	// UpdateFull: the whole sequence was replaced (reseed).
	UpdateFull
)

// Update describes the effect of one live event on the series.
type Update struct {
	Kind  UpdateKind
	Bar   model.Bar // the bar written (zero value for UpdateNone/UpdateFull)
	Index int       // position written, -1 when not applicable
}

// Assembler is the per-(market,symbol,timeframe) live series state machine.
// It is single-goroutine: the owning panel applies updates in arrival order,
// since each update's correctness depends on the current tail state.
type Assembler struct {
	key  model.InstrumentKey
	bars []model.Bar

	// SessionOf, when set, tags bars appended from ticks with their trading
	// session (optional).
	SessionOf func(ts int64) (model.Session, bool)

	// OnStaleDrop is called when a tick or candle is discarded because it
	// maps to no existing bucket (optional, metrics hook).
	OnStaleDrop func()
}

// New creates an empty assembler for the given instrument.
func New(key model.InstrumentKey) *Assembler {
	return &Assembler{key: key}
}

// Key returns the instrument this assembler owns.
func (a *Assembler) Key() model.InstrumentKey { return a.key }

// Bars returns the current sequence. The slice is owned by the assembler;
// readers (the indicator engine) must treat it as immutable for the cycle.
func (a *Assembler) Bars() []model.Bar { return a.bars }

// Reseed replaces the whole held sequence with a fresh historical fetch.
func (a *Assembler) Reseed(bars []model.Bar) Update {
	a.bars = make([]model.Bar, len(bars))
	copy(a.bars, bars)
	return Update{Kind: UpdateFull, Index: -1}
}

// Reset clears all state. Must be called on any symbol or timeframe change:
// stale bars from a different instrument must never leak into a new one.
func (a *Assembler) Reset() {
	a.bars = nil
}

// ApplyCandle folds a server-aggregated candle into the series. Equal bucket
// replaces the tail, newer appends, older is resolved by a linear scan and
// in-place replace; a gap is never inserted, and a candle that maps to no
// existing bar is discarded.
func (a *Assembler) ApplyCandle(lc model.LiveCandle) Update {
	bar := lc.Bar()
	bar.Time = model.BucketStart(bar.Time, a.key.TFSeconds)

	n := len(a.bars)
	if n == 0 {
		a.bars = append(a.bars, bar)
		return Update{Kind: UpdateAppend, Bar: bar, Index: 0}
	}

	tail := a.bars[n-1].Time
	switch {
	case bar.Time == tail:
		bar.Session = a.bars[n-1].Session
		bar.IsExtended = a.bars[n-1].IsExtended
		a.bars[n-1] = bar
		return Update{Kind: UpdateReplaceTail, Bar: bar, Index: n - 1}

	case bar.Time > tail:
		a.tagSession(&bar)
		a.bars = append(a.bars, bar)
		return Update{Kind: UpdateAppend, Bar: bar, Index: n}

	default:
		// Late candle: replace in place if its bucket exists.
		for i := n - 2; i >= 0; i-- {
			if a.bars[i].Time == bar.Time {
				bar.Session = a.bars[i].Session
				bar.IsExtended = a.bars[i].IsExtended
				a.bars[i] = bar
				return Update{Kind: UpdateReplaceAt, Bar: bar, Index: i}
			}
			if a.bars[i].Time < bar.Time {
				break // sorted ascending, bucket cannot exist further left
			}
		}
		if a.OnStaleDrop != nil {
			a.OnStaleDrop()
		}
		return Update{Kind: UpdateNone, Index: -1}
	}
}

// ApplyTick folds a raw tick into the series using the tick's own timestamp
// for bucketing. A tick whose bucket is older than the tail and matches no
// existing bar is discarded: fabricating a historical bar from a stale tick
// would corrupt ordering.
func (a *Assembler) ApplyTick(t model.Tick) Update {
	bucket := model.BucketStart(t.TS, a.key.TFSeconds)

	n := len(a.bars)
	if n == 0 {
		bar := a.newTickBar(bucket, t)
		a.bars = append(a.bars, bar)
		return Update{Kind: UpdateAppend, Bar: bar, Index: 0}
	}

	tail := a.bars[n-1].Time
	switch {
	case bucket == tail:
		a.mergeTick(&a.bars[n-1], t)
		return Update{Kind: UpdateReplaceTail, Bar: a.bars[n-1], Index: n - 1}

	case bucket > tail:
		bar := a.newTickBar(bucket, t)
		a.bars = append(a.bars, bar)
		return Update{Kind: UpdateAppend, Bar: bar, Index: n}

	default:
		for i := n - 2; i >= 0; i-- {
			if a.bars[i].Time == bucket {
				a.mergeTick(&a.bars[i], t)
				return Update{Kind: UpdateReplaceAt, Bar: a.bars[i], Index: i}
			}
			if a.bars[i].Time < bucket {
				break
			}
		}
		if a.OnStaleDrop != nil {
			a.OnStaleDrop()
		}
		return Update{Kind: UpdateNone, Index: -1}
	}
}

func (a *Assembler) newTickBar(bucket int64, t model.Tick) model.Bar {
	bar := model.Bar{
		Time:  bucket,
		Open:  t.LastPrice,
		High:  t.LastPrice,
		Low:   t.LastPrice,
		Close: t.LastPrice,
	}
	if t.HasVolume {
		bar.Volume = t.Volume
	}
	a.tagSession(&bar)
	return bar
}

func (a *Assembler) mergeTick(bar *model.Bar, t model.Tick) {
	if t.LastPrice > bar.High {
		bar.High = t.LastPrice
	}
	if t.LastPrice < bar.Low {
		bar.Low = t.LastPrice
	}
	bar.Close = t.LastPrice
	if t.HasVolume {
		bar.Volume = t.Volume // feed reports cumulative bucket volume
	}
}

func (a *Assembler) tagSession(bar *model.Bar) {
	if a.SessionOf == nil {
		return
	}
	if s, ok := a.SessionOf(bar.Time); ok {
		bar.Session = s
		bar.IsExtended = s != model.SessionRTH
	}
}
