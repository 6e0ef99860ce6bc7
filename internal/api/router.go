// Package api serves the chart engine's REST surface: drawing persistence,
// bar snapshots, and the WebSocket upgrade for live panels.
package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"charting-systemv1/internal/drawing"
	"charting-systemv1/internal/model"
)

// BarsProvider exposes the current candle window of one panel.
type BarsProvider interface {
	Bars() []model.Bar
}

// Config wires the router's dependencies.
type Config struct {
	// Drawings backs the chart-drawings endpoints. Required.
	Drawings drawing.LocalStore
	// Panels maps panel id to its bar snapshot source.
	Panels map[string]BarsProvider
	// HandleWS, when set, is mounted at /ws.
	HandleWS http.HandlerFunc
	// JWTSecret enables bearer-token auth on all /api routes when non-empty.
	JWTSecret string
}

// NewRouter builds the HTTP routing table.
func NewRouter(cfg Config) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	if cfg.HandleWS != nil {
		r.HandleFunc("/ws", cfg.HandleWS)
	}

	api := r.PathPrefix("/api").Subrouter()
	if cfg.JWTSecret != "" {
		api.Use(jwtMiddleware(cfg.JWTSecret))
	}

	dh := &drawingsHandler{store: cfg.Drawings}
	api.HandleFunc("/chart-drawings/{symbol}", dh.list).Methods(http.MethodGet)
	api.HandleFunc("/chart-drawings/{symbol}", dh.create).Methods(http.MethodPost)
	api.HandleFunc("/chart-drawings/{symbol}/{id}", dh.remove).Methods(http.MethodDelete)

	sh := &snapshotHandler{panels: cfg.Panels}
	api.HandleFunc("/charts/{panel}/bars", sh.bars).Methods(http.MethodGet)

	return r
}

type snapshotHandler struct {
	panels map[string]BarsProvider
}

func (h *snapshotHandler) bars(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["panel"]
	p, ok := h.panels[id]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown panel: "+id)
		return
	}
	bars := p.Bars()
	if bars == nil {
		bars = []model.Bar{}
	}
	writeJSON(w, http.StatusOK, bars)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] response encode failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
