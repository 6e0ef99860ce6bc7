package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"charting-systemv1/internal/model"
	"charting-systemv1/internal/render"
)

type fakeControl struct {
	mu          sync.Mutex
	instruments []string
	configs     [][]model.IndicatorConfig
	crosshairs  []int64
}

func (f *fakeControl) SetInstrument(_ context.Context, market, symbol, interval string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instruments = append(f.instruments, market+":"+symbol+":"+interval)
	return nil
}

func (f *fakeControl) SetIndicators(cfgs []model.IndicatorConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs = append(f.configs, cfgs)
}

func (f *fakeControl) PublishCrosshair(ts int64, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.crosshairs = append(f.crosshairs, ts)
}

func (f *fakeControl) snapshotCalls() (instruments []string, configs [][]model.IndicatorConfig, crosshairs []int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.instruments...),
		append([][]model.IndicatorConfig(nil), f.configs...),
		append([]int64(nil), f.crosshairs...)
}

type frame struct {
	Type  string `json:"type"`
	Panel string `json:"panel"`
}

// readFrames reads one WebSocket message and splits coalesced frames.
func readFrames(t *testing.T, conn *websocket.Conn) [][]byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return bytes.Split(msg, []byte{'\n'})
}

// waitFrame reads messages until a frame of the wanted type arrives.
func waitFrame(t *testing.T, conn *websocket.Conn, wantType string) []byte {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, raw := range readFrames(t, conn) {
			var f frame
			if json.Unmarshal(raw, &f) == nil && f.Type == wantType {
				return raw
			}
		}
	}
	t.Fatalf("no %q frame received", wantType)
	return nil
}

func dialHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	waitClients(t, h, 1)
	return conn
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d clients, have %d", n, h.ClientCount())
}

func minuteBars(t0 int64, n int) []model.Bar {
	bars := make([]model.Bar, n)
	for i := range bars {
		v := 100.0 + float64(i)
		bars[i] = model.Bar{Time: t0 + int64(i)*60, Open: v, High: v + 1, Low: v - 1, Close: v + 0.5, Volume: 10}
	}
	return bars
}

func TestSnapshotOnConnect(t *testing.T) {
	h := NewHub()
	r := h.AttachPanel("main")

	r.SetBars(minuteBars(1700000000, 3))
	s := r.AddSeries(render.SeriesSpec{ID: "sma/line", Type: render.SeriesLine, Pane: 0})
	s.SetData([]model.PlotPoint{{Time: 1700000000, Value: 100.5}})

	conn := dialHub(t, h)

	raw := waitFrame(t, conn, msgSnapshot)
	var snap snapshotMsg
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Panel != "main" {
		t.Errorf("panel = %q", snap.Panel)
	}
	if len(snap.Bars) != 3 {
		t.Errorf("expected 3 bars in snapshot, got %d", len(snap.Bars))
	}
	if len(snap.Series) != 1 || snap.Series[0].Spec.ID != "sma/line" {
		t.Errorf("snapshot series = %+v", snap.Series)
	}
}

func TestLiveFramesReachClient(t *testing.T) {
	h := NewHub()
	r := h.AttachPanel("main")
	r.SetBars(minuteBars(1700000000, 2))

	conn := dialHub(t, h)
	waitFrame(t, conn, msgSnapshot)

	r.UpdateBar(model.Bar{Time: 1700000060, Open: 101, High: 103, Low: 100, Close: 102.5, Volume: 25})

	raw := waitFrame(t, conn, msgBar)
	var bm barMsg
	if err := json.Unmarshal(raw, &bm); err != nil {
		t.Fatalf("decode bar frame: %v", err)
	}
	if bm.Bar.Close != 102.5 {
		t.Errorf("bar close = %v", bm.Bar.Close)
	}

	s := r.AddSeries(render.SeriesSpec{ID: "rsi/line", Type: render.SeriesLine, Pane: 1})
	s.SetData([]model.PlotPoint{{Time: 1700000000, Value: 55}})

	raw = waitFrame(t, conn, msgSeriesData)
	var sd seriesDataMsg
	if err := json.Unmarshal(raw, &sd); err != nil {
		t.Fatalf("decode series frame: %v", err)
	}
	if sd.Spec.Pane != 1 || len(sd.Points) != 1 {
		t.Errorf("series frame = %+v", sd)
	}

	s.Remove()
	waitFrame(t, conn, msgSeriesRemove)
}

func TestClientCommandsRouteToPanel(t *testing.T) {
	h := NewHub()
	ctrl := &fakeControl{}
	h.AttachPanel("main")
	h.BindControl("main", ctrl)

	conn := dialHub(t, h)

	cmds := []clientCommand{
		{Type: "set_indicators", Panel: "main", Configs: []model.IndicatorConfig{{ID: "sma", Visible: true}}},
		{Type: "crosshair", Panel: "main", Time: 1700000120, Price: 101.5},
		{Type: "set_instrument", Panel: "main", Market: "NSE", Symbol: "SBIN", Interval: "5m"},
	}
	for _, cmd := range cmds {
		if err := conn.WriteJSON(cmd); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		instruments, configs, crosshairs := ctrl.snapshotCalls()
		if len(instruments) == 1 && len(configs) == 1 && len(crosshairs) == 1 {
			if instruments[0] != "NSE:SBIN:5m" {
				t.Errorf("instrument = %q", instruments[0])
			}
			if configs[0][0].ID != "sma" {
				t.Errorf("configs = %+v", configs[0])
			}
			if crosshairs[0] != 1700000120 {
				t.Errorf("crosshair = %d", crosshairs[0])
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("commands did not reach the panel control")
}

func TestUnknownPanelCommandSendsError(t *testing.T) {
	h := NewHub()
	h.AttachPanel("main")

	conn := dialHub(t, h)
	waitFrame(t, conn, msgSnapshot)

	cmd := clientCommand{Type: "set_instrument", Panel: "ghost", Market: "NSE", Symbol: "SBIN", Interval: "1m"}
	if err := conn.WriteJSON(cmd); err != nil {
		t.Fatalf("write: %v", err)
	}

	raw := waitFrame(t, conn, msgError)
	var em errorMsg
	if err := json.Unmarshal(raw, &em); err != nil {
		t.Fatalf("decode error frame: %v", err)
	}
	if !strings.Contains(em.Error, "ghost") {
		t.Errorf("error = %q", em.Error)
	}
}

func TestRemoveClientIsIdempotent(t *testing.T) {
	h := NewHub()
	c := &Client{send: make(chan []byte, 1), hub: h}
	h.clients[c] = true

	h.RemoveClient(c)
	h.RemoveClient(c)

	if h.ClientCount() != 0 {
		t.Errorf("count = %d", h.ClientCount())
	}
}
