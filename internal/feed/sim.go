package feed

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"charting-systemv1/internal/model"
)

// SimConfig configures the synthetic feed.
type SimConfig struct {
	// Interval between generated ticks per instrument. Defaults to 100ms.
	Interval time.Duration

	// StartPrices seeds the walk per "market:symbol" key. Unknown
	// instruments start at 1000.
	StartPrices map[string]float64

	// Seed for the deterministic random source. Zero uses wall-clock time.
	Seed int64
}

// SimFeed generates random-walk ticks for every subscribed instrument. It is
// a drop-in Feed for offline development and tests; it has no native candle
// intervals, so consumers always take the tick path.
type SimFeed struct {
	cfg    SimConfig
	tickCh chan model.Tick
	rng    *rand.Rand

	mu     sync.Mutex
	prices map[string]float64 // current walk state per subscribed key
}

// NewSimFeed creates a SimFeed.
func NewSimFeed(cfg SimConfig) *SimFeed {
	if cfg.Interval <= 0 {
		cfg.Interval = 100 * time.Millisecond
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SimFeed{
		cfg:    cfg,
		tickCh: make(chan model.Tick, 1024),
		rng:    rand.New(rand.NewSource(seed)),
		prices: make(map[string]float64),
	}
}

func (f *SimFeed) Ticks() <-chan model.Tick         { return f.tickCh }
func (f *SimFeed) Candles() <-chan model.LiveCandle { return nil }
func (f *SimFeed) NativeIntervals() []string        { return nil }

func (f *SimFeed) Subscribe(market, symbol string) error {
	key := market + ":" + symbol
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.prices[key]; ok {
		return nil
	}
	price := f.cfg.StartPrices[key]
	if price <= 0 {
		price = 1000
	}
	f.prices[key] = price
	return nil
}

func (f *SimFeed) Unsubscribe(market, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.prices, market+":"+symbol)
	return nil
}

// Run emits ticks for every subscribed instrument until ctx is cancelled.
func (f *SimFeed) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			f.emitAll()
		}
	}
}

func (f *SimFeed) emitAll() {
	now := time.Now().Unix()

	f.mu.Lock()
	defer f.mu.Unlock()
	for key, price := range f.prices {
		price = f.walk(price)
		f.prices[key] = price

		market, symbol := splitKey(key)
		tick := model.Tick{
			Market:    market,
			Symbol:    symbol,
			TS:        now,
			LastPrice: price,
			Volume:    float64(f.rng.Intn(100) + 1),
			HasVolume: true,
		}
		select {
		case f.tickCh <- tick:
		default: // slow consumer, drop tick
		}
	}
}

// walk applies a tiny random walk (±0.1%) to simulate price movement.
func (f *SimFeed) walk(price float64) float64 {
	pct := (f.rng.Float64()*0.2 - 0.1) / 100.0
	price += price * pct
	if price < 0.01 {
		price = 0.01
	}
	return price
}

func splitKey(key string) (market, symbol string) {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i], key[i+1:]
		}
	}
	return "", key
}
