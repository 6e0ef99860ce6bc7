// cmd/ticksim is a simulated market data server for offline chart development.
// Speaks the same JSON protocol the WebSocket feed client expects: clients
// optionally authenticate, then subscribe per instrument and receive tick
// envelopes plus forming 1m candle envelopes.
//
// Config (env vars):
//
//	TICKSIM_ADDR          listen address (default ":9001")
//	TICKSIM_INSTRUMENTS   comma-separated MARKET:SYMBOL pairs (default "NSE:SBIN")
//	TICKSIM_INTERVAL_MS   tick interval milliseconds (default "250")
//	TICKSIM_TOTP_SECRET   when set, auth commands must carry a valid code
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pquerna/otp/totp"
)

type envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type command struct {
	Action     string `json:"action"`
	Market     string `json:"market,omitempty"`
	Symbol     string `json:"symbol,omitempty"`
	ClientCode string `json:"clientCode,omitempty"`
	TOTP       string `json:"totp,omitempty"`
}

type tickData struct {
	Market string  `json:"market"`
	Symbol string  `json:"symbol"`
	TS     int64   `json:"ts"`
	LTP    float64 `json:"ltp"`
	Volume float64 `json:"volume"`
}

type candleData struct {
	Market   string  `json:"market"`
	Symbol   string  `json:"symbol"`
	Interval string  `json:"interval"`
	Time     int64   `json:"t"`
	Open     float64 `json:"o"`
	High     float64 `json:"h"`
	Low      float64 `json:"l"`
	Close    float64 `json:"c"`
	Volume   float64 `json:"v"`
}

// instrument holds per-symbol walk and forming candle state.
type instrument struct {
	Market string
	Symbol string
	Price  float64

	bucket int64
	candle candleData
}

func (in *instrument) key() string { return in.Market + ":" + in.Symbol }

// applyTick folds one tick into the forming 1m candle, resetting it on
// bucket rollover.
func (in *instrument) applyTick(ts int64, price, qty float64) {
	bucket := ts - ts%60
	if bucket != in.bucket {
		in.bucket = bucket
		in.candle = candleData{
			Market: in.Market, Symbol: in.Symbol, Interval: "1m",
			Time: bucket, Open: price, High: price, Low: price, Close: price,
		}
	}
	c := &in.candle
	if price > c.High {
		c.High = price
	}
	if price < c.Low {
		c.Low = price
	}
	c.Close = price
	c.Volume += qty
}

type client struct {
	conn *websocket.Conn
	send chan []byte

	mu   sync.Mutex
	subs map[string]bool
}

func (c *client) subscribed(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subs[key]
}

type hub struct {
	mu      sync.RWMutex
	clients map[*client]bool
}

func newHub() *hub {
	return &hub{clients: make(map[*client]bool)}
}

func (h *hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
}

func (h *hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// broadcast sends msg to clients subscribed to key, dropping for slow ones.
func (h *hub) broadcast(key string, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.subscribed(key) {
			continue
		}
		select {
		case c.send <- msg:
		default:
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsHandler(h *hub, totpSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[ticksim] upgrade error: %v", err)
			return
		}
		log.Printf("[ticksim] client connected: %s", r.RemoteAddr)

		c := &client{conn: conn, send: make(chan []byte, 256), subs: make(map[string]bool)}
		h.register(c)

		go func() {
			for msg := range c.send {
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			}
		}()

		defer func() {
			h.unregister(c)
			conn.Close()
			log.Printf("[ticksim] client disconnected: %s", r.RemoteAddr)
		}()

		authed := totpSecret == ""
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var cmd command
			if json.Unmarshal(raw, &cmd) != nil {
				continue
			}
			switch cmd.Action {
			case "auth":
				if totpSecret == "" || totp.Validate(cmd.TOTP, totpSecret) {
					authed = true
					log.Printf("[ticksim] client %s authenticated as %s", r.RemoteAddr, cmd.ClientCode)
				} else {
					log.Printf("[ticksim] client %s failed auth", r.RemoteAddr)
					return
				}
			case "subscribe":
				if !authed {
					log.Printf("[ticksim] subscribe before auth from %s", r.RemoteAddr)
					return
				}
				c.mu.Lock()
				c.subs[cmd.Market+":"+cmd.Symbol] = true
				c.mu.Unlock()
			case "unsubscribe":
				c.mu.Lock()
				delete(c.subs, cmd.Market+":"+cmd.Symbol)
				c.mu.Unlock()
			}
		}
	}
}

// walk applies a ±0.1% random step with a floor of 0.01.
func walk(price float64) float64 {
	pct := (rand.Float64()*0.2 - 0.1) / 100.0
	price += price * pct
	if price < 0.01 {
		price = 0.01
	}
	return price
}

func runGenerator(h *hub, instruments []*instrument, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now().Unix()
		for _, in := range instruments {
			in.Price = walk(in.Price)
			qty := float64(rand.Intn(100) + 1)
			in.applyTick(now, in.Price, qty)

			tick, _ := json.Marshal(envelope{Type: "tick", Data: tickData{
				Market: in.Market, Symbol: in.Symbol, TS: now, LTP: in.Price, Volume: qty,
			}})
			h.broadcast(in.key(), tick)

			candle, _ := json.Marshal(envelope{Type: "candle", Data: in.candle})
			h.broadcast(in.key(), candle)
		}
	}
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[ticksim] starting simulated feed server...")

	addr := envOrDefault("TICKSIM_ADDR", ":9001")
	pairs := envOrDefault("TICKSIM_INSTRUMENTS", "NSE:SBIN")
	intervalMs := envIntOrDefault("TICKSIM_INTERVAL_MS", 250)
	totpSecret := os.Getenv("TICKSIM_TOTP_SECRET")

	instruments := parseInstruments(pairs)
	if len(instruments) == 0 {
		log.Fatalf("[ticksim] no instruments configured via TICKSIM_INSTRUMENTS")
	}
	log.Printf("[ticksim] instruments: %v interval: %dms", pairs, intervalMs)

	h := newHub()
	go runGenerator(h, instruments, time.Duration(intervalMs)*time.Millisecond)

	http.HandleFunc("/ws", wsHandler(h, totpSecret))
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"ticksim"}`)
	})

	log.Printf("[ticksim] listening on %s (WebSocket: ws://localhost%s/ws)", addr, addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("[ticksim] server error: %v", err)
	}
}

func parseInstruments(s string) []*instrument {
	startPrices := map[string]float64{
		"NSE:SBIN":    812.50,
		"NSE:NIFTY50": 25660.00,
		"NYSE:AAPL":   232.40,
	}

	var result []*instrument
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		seg := strings.SplitN(part, ":", 2)
		if len(seg) != 2 {
			log.Printf("[ticksim] skipping invalid instrument spec: %q", part)
			continue
		}
		market, symbol := strings.TrimSpace(seg[0]), strings.ToUpper(strings.TrimSpace(seg[1]))
		price := startPrices[market+":"+symbol]
		if price == 0 {
			price = 1000.00
		}
		result = append(result, &instrument{Market: market, Symbol: symbol, Price: price})
	}
	return result
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
