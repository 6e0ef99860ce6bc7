// Package gateway exposes chart panels over WebSocket. The hub owns the set
// of connected browser clients, fans render frames out to them, and routes
// client commands back into the owning panel.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"charting-systemv1/internal/model"
)

// PanelControl is the command surface the hub needs from a chart panel.
type PanelControl interface {
	SetInstrument(ctx context.Context, market, symbol, interval string) error
	SetIndicators(cfgs []model.IndicatorConfig)
	PublishCrosshair(ts int64, price float64)
}

type panelEntry struct {
	control  PanelControl
	renderer *Renderer
}

// Hub manages WebSocket clients for one sync group of linked chart panels.
// Every client receives frames for every attached panel and filters by the
// envelope's panel field.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	panels  map[string]*panelEntry

	upgrader websocket.Upgrader

	// Configs is optional; when set, set_indicators commands persist there.
	Configs *ConfigStore
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		panels:  make(map[string]*panelEntry),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// AttachPanel registers a panel and returns the Renderer its controller
// should draw to. Frames rendered before any client connects are kept as
// state and replayed to late joiners via the snapshot frame. The panel's
// command surface is wired separately with BindControl because the
// controller itself is constructed around the returned renderer.
func (h *Hub) AttachPanel(id string) *Renderer {
	r := newRenderer(h, id)
	h.mu.Lock()
	h.panels[id] = &panelEntry{renderer: r}
	h.mu.Unlock()
	return r
}

// BindControl routes client commands for the panel to control.
func (h *Hub) BindControl(id string, control PanelControl) {
	h.mu.Lock()
	if e, ok := h.panels[id]; ok {
		e.control = control
	}
	h.mu.Unlock()
}

// DetachPanel removes a panel. Connected clients simply stop receiving
// frames for it.
func (h *Hub) DetachPanel(id string) {
	h.mu.Lock()
	delete(h.panels, id)
	h.mu.Unlock()
}

func (h *Hub) controlFor(id string) PanelControl {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if e, ok := h.panels[id]; ok {
		return e.control
	}
	return nil
}

// broadcast sends one encoded frame to every connected client, dropping it
// for clients whose send queue is full.
func (h *Hub) broadcast(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
		}
	}
}

// HandleWS upgrades the HTTP request, registers the client, and sends a
// snapshot frame per attached panel before live frames flow.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade failed: %v", err)
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}

	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	snapshots := make([][]byte, 0, len(h.panels))
	for id, e := range h.panels {
		snap, err := json.Marshal(e.renderer.snapshot())
		if err != nil {
			log.Printf("[gateway] snapshot encode failed for panel %s: %v", id, err)
			continue
		}
		snapshots = append(snapshots, snap)
	}
	h.mu.Unlock()

	log.Printf("[gateway] ws client connected (%d total)", count)

	for _, snap := range snapshots {
		client.send <- snap
	}

	go client.writePump()
	go client.readPump()
}

// RemoveClient drops a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
