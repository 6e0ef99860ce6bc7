package feed

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pquerna/otp/totp"

	"charting-systemv1/internal/model"
)

// WSConfig configures the WebSocket feed client.
type WSConfig struct {
	// URL of the feed server, e.g. "ws://localhost:9001/ws"
	URL string

	// Intervals the server buckets itself. Empty means ticks only.
	NativeIntervals []string

	// Credentials for the auth handshake. Zero value skips auth entirely
	// (test servers).
	ClientCode string
	Password   string
	TOTPSecret string

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 2 seconds if zero.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration
}

func (c *WSConfig) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
}

// wire envelopes and commands.
type wsEnvelope struct {
	Type string          `json:"type"` // "tick" or "candle"
	Data json.RawMessage `json:"data"`
}

type wsCommand struct {
	Action     string `json:"action"` // "auth", "subscribe", "unsubscribe"
	Market     string `json:"market,omitempty"`
	Symbol     string `json:"symbol,omitempty"`
	ClientCode string `json:"clientCode,omitempty"`
	Password   string `json:"password,omitempty"`
	TOTP       string `json:"totp,omitempty"`
}

// wireTick mirrors model.Tick but keeps volume optional so the consumer can
// tell "volume 0" apart from "no volume field".
type wireTick struct {
	Market    string   `json:"market"`
	Symbol    string   `json:"symbol"`
	TS        int64    `json:"ts"`
	LastPrice float64  `json:"ltp"`
	Volume    *float64 `json:"volume,omitempty"`
}

// WSFeed streams ticks and native-interval candles from a JSON WebSocket
// server. Reconnects automatically with exponential backoff and replays the
// auth handshake and active subscriptions on every reconnect.
type WSFeed struct {
	cfg WSConfig

	tickCh   chan model.Tick
	candleCh chan model.LiveCandle

	mu   sync.Mutex
	subs map[string]wsCommand // key "market:symbol"
	conn *websocket.Conn

	// writeMu serializes writes to conn. Subscribe and Unsubscribe run on
	// caller goroutines while runOnce replays subscriptions and the ctx
	// watcher sends the close frame; the connection permits one writer.
	writeMu sync.Mutex

	// Optional hooks. OnConnect fires after a successful connect and auth
	// handshake, OnDisconnect after the connection is lost and before the
	// backoff delay, OnTick for every tick accepted off the wire.
	OnConnect    func()
	OnDisconnect func()
	OnTick       func(ts int64)
}

// NewWSFeed creates a WSFeed. Returns an error if the URL is unparseable.
func NewWSFeed(cfg WSConfig) (*WSFeed, error) {
	cfg.defaults()
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, err
	}
	return &WSFeed{
		cfg:      cfg,
		tickCh:   make(chan model.Tick, 1024),
		candleCh: make(chan model.LiveCandle, 256),
		subs:     make(map[string]wsCommand),
	}, nil
}

func (f *WSFeed) Ticks() <-chan model.Tick         { return f.tickCh }
func (f *WSFeed) Candles() <-chan model.LiveCandle { return f.candleCh }
func (f *WSFeed) NativeIntervals() []string        { return f.cfg.NativeIntervals }

// Subscribe registers the instrument and, if connected, sends the subscribe
// command right away. Pending subscriptions are flushed on (re)connect.
func (f *WSFeed) Subscribe(market, symbol string) error {
	cmd := wsCommand{Action: "subscribe", Market: market, Symbol: symbol}
	f.mu.Lock()
	key := market + ":" + symbol
	if _, ok := f.subs[key]; ok {
		f.mu.Unlock()
		return nil
	}
	f.subs[key] = cmd
	conn := f.conn
	f.mu.Unlock()

	if conn != nil {
		return f.writeJSON(conn, cmd)
	}
	return nil
}

// Unsubscribe removes the instrument and notifies the server if connected.
func (f *WSFeed) Unsubscribe(market, symbol string) error {
	f.mu.Lock()
	delete(f.subs, market+":"+symbol)
	conn := f.conn
	f.mu.Unlock()

	if conn != nil {
		return f.writeJSON(conn, wsCommand{Action: "unsubscribe", Market: market, Symbol: symbol})
	}
	return nil
}

// writeJSON is the single write path to the connection.
func (f *WSFeed) writeJSON(conn *websocket.Conn, v interface{}) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	return conn.WriteJSON(v)
}

// Run connects and streams until ctx is cancelled. Reconnects automatically
// on disconnect.
func (f *WSFeed) Run(ctx context.Context) error {
	delay := f.cfg.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := f.runOnce(ctx)
		if err == nil {
			return nil
		}

		log.Printf("[feed] disconnected (%v), reconnecting in %s...", err, delay)
		if f.OnDisconnect != nil {
			f.OnDisconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > f.cfg.MaxReconnectDelay {
			delay = f.cfg.MaxReconnectDelay
		}
	}
}

// runOnce makes a single connection attempt and reads until disconnect or
// ctx cancel.
func (f *WSFeed) runOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Printf("[feed] connected to %s", f.cfg.URL)

	if err := f.authenticate(conn); err != nil {
		return err
	}
	if f.OnConnect != nil {
		f.OnConnect()
	}

	// Replay active subscriptions.
	f.mu.Lock()
	f.conn = conn
	pending := make([]wsCommand, 0, len(f.subs))
	for _, cmd := range f.subs {
		pending = append(pending, cmd)
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.conn = nil
		f.mu.Unlock()
	}()

	for _, cmd := range pending {
		if err := f.writeJSON(conn, cmd); err != nil {
			return err
		}
	}

	go func() {
		<-ctx.Done()
		f.writeMu.Lock()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
		f.writeMu.Unlock()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}
		f.dispatch(raw)
	}
}

// authenticate sends the login command with a fresh TOTP code. Skipped when
// no credentials are configured.
func (f *WSFeed) authenticate(conn *websocket.Conn) error {
	if f.cfg.ClientCode == "" {
		return nil
	}
	code, err := totp.GenerateCode(f.cfg.TOTPSecret, time.Now())
	if err != nil {
		return err
	}
	return f.writeJSON(conn, wsCommand{
		Action:     "auth",
		ClientCode: f.cfg.ClientCode,
		Password:   f.cfg.Password,
		TOTP:       code,
	})
}

func (f *WSFeed) dispatch(raw []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("[feed] parse error: %v (raw: %s)", err, raw)
		return
	}

	switch env.Type {
	case "tick":
		var wt wireTick
		if err := json.Unmarshal(env.Data, &wt); err != nil {
			log.Printf("[feed] bad tick payload: %v", err)
			return
		}
		if wt.Symbol == "" {
			return
		}
		tick := model.Tick{
			Market:    wt.Market,
			Symbol:    wt.Symbol,
			TS:        wt.TS,
			LastPrice: wt.LastPrice,
		}
		if wt.Volume != nil {
			tick.Volume = *wt.Volume
			tick.HasVolume = true
		}
		if f.OnTick != nil {
			f.OnTick(tick.TS)
		}
		select {
		case f.tickCh <- tick:
		default:
			log.Println("[feed] tick channel full, dropping tick")
		}

	case "candle":
		var lc model.LiveCandle
		if err := json.Unmarshal(env.Data, &lc); err != nil {
			log.Printf("[feed] bad candle payload: %v", err)
			return
		}
		if lc.Symbol == "" {
			return
		}
		select {
		case f.candleCh <- lc:
		default:
			log.Println("[feed] candle channel full, dropping candle")
		}

	default:
		log.Printf("[feed] unknown message type %q", env.Type)
	}
}
