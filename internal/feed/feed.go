// Package feed delivers live market data. A Feed pushes raw ticks and, where
// the upstream supports it, pre-bucketed candles for its native intervals.
package feed

import "charting-systemv1/internal/model"

// Feed is a live market-data source keyed by (market, symbol).
// Implementations must never block on delivery: a consumer that cannot keep
// up loses data rather than stalling the feed.
type Feed interface {
	// Subscribe starts delivery for one instrument. Subscribing twice is a
	// no-op.
	Subscribe(market, symbol string) error

	// Unsubscribe stops delivery for one instrument.
	Unsubscribe(market, symbol string) error

	// Ticks is the raw tick stream for all subscribed instruments.
	Ticks() <-chan model.Tick

	// Candles is the pre-bucketed candle stream. Feeds without native
	// candle support keep this channel open and silent.
	Candles() <-chan model.LiveCandle

	// NativeIntervals lists the interval strings the feed buckets
	// server-side, e.g. ["1m","5m","15m"]. Empty means ticks only.
	NativeIntervals() []string
}
