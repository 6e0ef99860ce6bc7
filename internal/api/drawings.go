package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"charting-systemv1/internal/drawing"
	"charting-systemv1/internal/model"
)

// drawingDTO is the wire shape of one drawing. The server assigns id on
// create; clients never send one.
type drawingDTO struct {
	ID    string              `json:"id,omitempty"`
	Type  string              `json:"type"`
	P1    *model.DrawingPoint `json:"p1,omitempty"`
	P2    *model.DrawingPoint `json:"p2,omitempty"`
	Price float64             `json:"price,omitempty"`
}

func toDTO(d model.Drawing) drawingDTO {
	return drawingDTO{ID: d.ID, Type: d.Type, P1: d.P1, P2: d.P2, Price: d.Price}
}

type drawingsHandler struct {
	store drawing.LocalStore
}

func (h *drawingsHandler) list(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	rows, err := h.store.Load(r.Context(), symbol)
	if err != nil {
		log.Printf("[api] load drawings for %s: %v", symbol, err)
		writeError(w, http.StatusInternalServerError, "load failed")
		return
	}

	out := make([]drawingDTO, 0, len(rows))
	for _, d := range rows {
		out = append(out, toDTO(d))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *drawingsHandler) create(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	var in drawingDTO
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}

	d := model.Drawing{
		ID:    uuid.NewString(),
		Type:  in.Type,
		P1:    in.P1,
		P2:    in.P2,
		Price: in.Price,
	}
	if d.Degenerate() {
		writeError(w, http.StatusBadRequest, "degenerate drawing")
		return
	}

	rows, err := h.store.Load(r.Context(), symbol)
	if err != nil {
		log.Printf("[api] load drawings for %s: %v", symbol, err)
		writeError(w, http.StatusInternalServerError, "load failed")
		return
	}
	rows = append(rows, d)
	if err := h.store.Save(r.Context(), symbol, rows); err != nil {
		log.Printf("[api] save drawings for %s: %v", symbol, err)
		writeError(w, http.StatusInternalServerError, "save failed")
		return
	}

	writeJSON(w, http.StatusCreated, toDTO(d))
}

func (h *drawingsHandler) remove(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	symbol, id := vars["symbol"], vars["id"]

	rows, err := h.store.Load(r.Context(), symbol)
	if err != nil {
		log.Printf("[api] load drawings for %s: %v", symbol, err)
		writeError(w, http.StatusInternalServerError, "load failed")
		return
	}

	kept := rows[:0]
	found := false
	for _, d := range rows {
		if d.ID == id {
			found = true
			continue
		}
		kept = append(kept, d)
	}
	if !found {
		writeError(w, http.StatusNotFound, "unknown drawing: "+id)
		return
	}

	if err := h.store.Save(r.Context(), symbol, kept); err != nil {
		log.Printf("[api] save drawings for %s: %v", symbol, err)
		writeError(w, http.StatusInternalServerError, "save failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
