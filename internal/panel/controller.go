// Package panel drives one chart panel: it owns the historical fetch
// pipeline, the live bar series, the indicator engine and the panel's
// membership on the crosshair sync bus.
package panel

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"charting-systemv1/internal/chart/merge"
	"charting-systemv1/internal/chart/resample"
	"charting-systemv1/internal/chart/series"
	"charting-systemv1/internal/feed"
	"charting-systemv1/internal/history"
	"charting-systemv1/internal/indicator"
	"charting-systemv1/internal/logger"
	"charting-systemv1/internal/market"
	"charting-systemv1/internal/metrics"
	"charting-systemv1/internal/model"
	"charting-systemv1/internal/panesync"
	"charting-systemv1/internal/render"
	"charting-systemv1/internal/ringbuf"
)

// ErrStaleRequest is returned when a historical fetch completes after the
// panel has already moved to a different instrument or timeframe. The late
// result is discarded, never applied.
var ErrStaleRequest = errors.New("panel: stale fetch discarded")

const (
	defaultLookback   = 5 * 24 * time.Hour
	defaultSyncMargin = 60 // bars of context either side of a sync event
	defaultRingSize   = 1024
	baseInterval      = "1m"
)

// overridable for tests
var timeNow = time.Now

// Config wires one panel instance.
type Config struct {
	// ID identifies the panel on the sync bus (no self-echo key).
	ID string

	Renderer render.Renderer
	Registry *indicator.Registry
	History  history.Source
	Feed     feed.Feed        // nil disables live updates
	Bus      *panesync.Bus    // nil disables crosshair sync
	Metrics  *metrics.Metrics // nil disables instrumentation
	Log      *slog.Logger

	// Lookback is the historical window fetched on instrument change.
	// Zero means 5 days.
	Lookback time.Duration

	// SyncMargin is the number of bars of context requested around a
	// received crosshair event. Zero means 60.
	SyncMargin int64
}

// Controller is the per-panel pipeline coordinator. Live updates are applied
// in arrival order on the Run goroutine; SetInstrument may be called from any
// goroutine and uses a monotonically increasing request token so a late
// fetch for a previous instrument can never clobber the current series.
type Controller struct {
	id       string
	renderer render.Renderer
	engine   *indicator.Engine
	history  history.Source
	feed     feed.Feed
	bus      *panesync.Bus
	met      *metrics.Metrics
	log      *slog.Logger

	lookback   time.Duration
	syncMargin int64

	ring *ringbuf.Ring

	events   <-chan model.SyncEvent
	unsubBus func()

	mu       sync.Mutex
	key      model.InstrumentKey
	interval string
	native   bool // the feed buckets this interval server-side
	asm      *series.Assembler
	reqToken uint64
}

// NewController creates a panel and registers it on the sync bus.
func NewController(cfg Config) *Controller {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = defaultLookback
	}
	if cfg.SyncMargin <= 0 {
		cfg.SyncMargin = defaultSyncMargin
	}

	c := &Controller{
		id:         cfg.ID,
		renderer:   cfg.Renderer,
		engine:     indicator.NewEngine(cfg.Registry, cfg.Renderer, cfg.Log),
		history:    cfg.History,
		feed:       cfg.Feed,
		bus:        cfg.Bus,
		met:        cfg.Metrics,
		log:        cfg.Log.With("panel", cfg.ID),
		lookback:   cfg.Lookback,
		syncMargin: cfg.SyncMargin,
		ring:       ringbuf.New(defaultRingSize),
	}
	if c.bus != nil {
		c.events, c.unsubBus = c.bus.Subscribe(c.id)
	}
	return c
}

// SetInstrument switches the panel to (market, symbol, interval), fetching
// the historical window and reseeding the live series. Interior state from
// the previous instrument never leaks: the assembler is rebuilt from scratch.
// Returns ErrStaleRequest when a newer SetInstrument superseded this one
// while the fetch was in flight; the series is left unchanged in that case.
func (c *Controller) SetInstrument(ctx context.Context, mkt, symbol, interval string) error {
	tf, err := model.IntervalSeconds(interval)
	if err != nil {
		return errors.Wrap(err, "set instrument")
	}
	key := model.InstrumentKey{Market: mkt, Symbol: symbol, TFSeconds: tf}

	// One trace ID covers the whole load: feed subscription, history fetch
	// and reseed all log and propagate it.
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(symbol, timeNow()))

	c.mu.Lock()
	c.reqToken++
	token := c.reqToken
	prev := c.key
	c.mu.Unlock()

	if c.feed != nil && prev != key {
		if prev.Symbol != "" {
			c.feed.Unsubscribe(prev.Market, prev.Symbol)
		}
		if err := c.feed.Subscribe(mkt, symbol); err != nil {
			c.log.Warn("feed subscribe failed",
				append(logger.LogWithTrace(ctx), "key", key.String(), "err", err)...)
		}
	}

	native := c.nativeInterval(interval)
	fetchInterval := interval
	if !native {
		fetchInterval = baseInterval
	}

	now := timeNow()
	start := now
	rows, err := c.history.Fetch(ctx, history.Request{
		Market:   mkt,
		Symbol:   symbol,
		Interval: fetchInterval,
		From:     now.Add(-c.lookback).Unix(),
		To:       now.Unix(),
	})
	if c.met != nil {
		c.met.HistoryFetchDur.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if c.met != nil {
			c.met.HistoryFetchErrors.Inc()
		}
		// In-flight bar state stays untouched on a failed fetch.
		return errors.Wrap(err, "fetch history")
	}

	bars := merge.Normalize(rows)
	if !native {
		bars = resample.Aggregate(bars, tf)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reqToken != token {
		if c.met != nil {
			c.met.StaleFetchesTossed.Inc()
		}
		return ErrStaleRequest
	}

	c.key = key
	c.interval = interval
	c.native = native

	asm := series.New(key)
	asm.SessionOf = func(ts int64) (model.Session, bool) {
		s, _ := market.SessionAt(mkt, ts)
		return s, true
	}
	asm.OnStaleDrop = func() {
		if c.met != nil {
			c.met.StaleDrops.Inc()
		}
	}
	asm.Reseed(bars)
	c.asm = asm

	c.renderer.SetBars(asm.Bars())
	c.updateIndicators()

	c.log.Info("instrument set",
		append(logger.LogWithTrace(ctx), "key", key.String(), "bars", len(bars), "native", native)...)
	return nil
}

// SetIndicators replaces the active indicator configs and recomputes against
// the current series.
func (c *Controller) SetIndicators(cfgs []model.IndicatorConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engine.SetConfigs(cfgs)
	c.updateIndicators()
}

// Bars returns a snapshot of the current series.
func (c *Controller) Bars() []model.Bar {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.asm == nil {
		return nil
	}
	return append([]model.Bar(nil), c.asm.Bars()...)
}

// Instrument returns the current instrument key and interval. A zero key
// means SetInstrument has not succeeded yet.
func (c *Controller) Instrument() (model.InstrumentKey, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key, c.interval
}

// PublishCrosshair broadcasts this panel's crosshair position to the group.
func (c *Controller) PublishCrosshair(ts int64, price float64) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(model.SyncEvent{SourceID: c.id, Timestamp: ts, Price: price})
	if c.met != nil {
		c.met.SyncEventsTotal.Inc()
	}
}

// Run applies live updates until ctx is cancelled. Must be called at most
// once per controller.
func (c *Controller) Run(ctx context.Context) {
	var ticks <-chan model.Tick
	var candles <-chan model.LiveCandle
	if c.feed != nil {
		ticks = c.feed.Ticks()
		candles = c.feed.Candles()
	}

	for {
		select {
		case <-ctx.Done():
			return

		case t, ok := <-ticks:
			if !ok {
				ticks = nil
				continue
			}
			c.pushTick(t)
			// Fold the rest of the burst into the ring first; indicators
			// recompute once per burst, not once per tick.
		burst:
			for {
				select {
				case t, ok := <-ticks:
					if !ok {
						ticks = nil
						break burst
					}
					c.pushTick(t)
				default:
					break burst
				}
			}
			c.drainTicks()

		case lc, ok := <-candles:
			if !ok {
				candles = nil
				continue
			}
			c.onCandle(lc)

		case ev, ok := <-c.events:
			if !ok {
				return
			}
			c.onSyncEvent(ev)
		}
	}
}

// Teardown releases the bus subscription, the feed subscription and every
// indicator plot the panel holds.
func (c *Controller) Teardown() {
	if c.unsubBus != nil {
		c.unsubBus()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.feed != nil && c.key.Symbol != "" {
		c.feed.Unsubscribe(c.key.Market, c.key.Symbol)
	}
	c.engine.Teardown()
	if c.asm != nil {
		c.asm.Reset()
		c.asm = nil
	}
	c.key = model.InstrumentKey{}
}

// pushTick enqueues a tick for the next drain. A full ring drops the tick.
func (c *Controller) pushTick(t model.Tick) {
	if !c.ring.Push(t) && c.met != nil {
		c.met.RingBufOverflow.Inc()
	}
}

// drainTicks coalesces a tick burst: every queued tick is folded into the
// series, then indicators recompute once.
func (c *Controller) drainTicks() {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed := false
	for {
		t, ok := c.ring.Pop()
		if !ok {
			break
		}
		if c.asm == nil || c.native {
			continue // candle path owns this interval
		}
		if t.Market != c.key.Market || t.Symbol != c.key.Symbol {
			continue
		}
		u := c.asm.ApplyTick(t)
		if u.Kind == series.UpdateNone {
			continue
		}
		c.renderer.UpdateBar(u.Bar)
		changed = true
		if c.met != nil {
			c.met.TicksTotal.Inc()
		}
	}
	if changed {
		c.updateIndicators()
	}
}

func (c *Controller) onCandle(lc model.LiveCandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.asm == nil || !c.native {
		return
	}
	if lc.Market != c.key.Market || lc.Symbol != c.key.Symbol || lc.Interval != c.interval {
		return
	}
	u := c.asm.ApplyCandle(lc)
	if u.Kind == series.UpdateNone {
		return
	}
	c.renderer.UpdateBar(u.Bar)
	if c.met != nil {
		c.met.LiveCandles.Inc()
	}
	c.updateIndicators()
}

// onSyncEvent scrolls this panel's view to a window around the broadcast
// timestamp. The event carries intent only; the margin math is local.
func (c *Controller) onSyncEvent(ev model.SyncEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.key.TFSeconds == 0 {
		return
	}
	margin := c.syncMargin * c.key.TFSeconds
	c.renderer.SetVisibleRange(ev.Timestamp-margin, ev.Timestamp+margin)
}

// updateIndicators recomputes all active indicators. Callers hold c.mu.
func (c *Controller) updateIndicators() {
	if c.asm == nil {
		return
	}
	start := timeNow()
	c.engine.Update(c.asm.Bars())
	if c.met != nil {
		c.met.IndicatorUpdateDur.Observe(time.Since(start).Seconds())
	}
}

func (c *Controller) nativeInterval(interval string) bool {
	if c.feed == nil {
		return false
	}
	for _, iv := range c.feed.NativeIntervals() {
		if iv == interval {
			return true
		}
	}
	return false
}
