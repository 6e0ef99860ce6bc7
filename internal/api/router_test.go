package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"

	"charting-systemv1/internal/model"
)

type memStore struct {
	rows map[string][]model.Drawing
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string][]model.Drawing)}
}

func (m *memStore) Load(_ context.Context, symbol string) ([]model.Drawing, error) {
	return append([]model.Drawing(nil), m.rows[symbol]...), nil
}

func (m *memStore) Save(_ context.Context, symbol string, drawings []model.Drawing) error {
	m.rows[symbol] = append([]model.Drawing(nil), drawings...)
	return nil
}

type staticBars []model.Bar

func (s staticBars) Bars() []model.Bar { return s }

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestDrawingsCRUD(t *testing.T) {
	r := NewRouter(Config{Drawings: newMemStore()})

	// Empty list
	rec := doJSON(t, r, http.MethodGet, "/api/chart-drawings/SBIN", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}
	var rows []drawingDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected empty list, got %v", rows)
	}

	// Create a trendline
	in := drawingDTO{
		Type: model.DrawingTrendline,
		P1:   &model.DrawingPoint{Time: 1700000000, Price: 100},
		P2:   &model.DrawingPoint{Time: 1700000600, Price: 105},
	}
	rec = doJSON(t, r, http.MethodPost, "/api/chart-drawings/SBIN", in)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", rec.Code, rec.Body.String())
	}
	var created drawingDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.ID == "" {
		t.Fatal("expected server-assigned id")
	}

	// List shows it
	rec = doJSON(t, r, http.MethodGet, "/api/chart-drawings/SBIN", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].ID != created.ID {
		t.Fatalf("list after create = %v", rows)
	}

	// Delete it
	rec = doJSON(t, r, http.MethodDelete, "/api/chart-drawings/SBIN/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rec.Code)
	}
	rec = doJSON(t, r, http.MethodGet, "/api/chart-drawings/SBIN", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected empty list after delete, got %v", rows)
	}
}

func TestCreateRejectsDegenerateDrawing(t *testing.T) {
	r := NewRouter(Config{Drawings: newMemStore()})

	in := drawingDTO{
		Type: model.DrawingTrendline,
		P1:   &model.DrawingPoint{Time: 1700000000, Price: 100},
		P2:   &model.DrawingPoint{Time: 1700000000, Price: 105},
	}
	rec := doJSON(t, r, http.MethodPost, "/api/chart-drawings/SBIN", in)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestDeleteUnknownDrawing(t *testing.T) {
	r := NewRouter(Config{Drawings: newMemStore()})

	rec := doJSON(t, r, http.MethodDelete, "/api/chart-drawings/SBIN/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rec.Code)
	}
}

func TestBarsSnapshot(t *testing.T) {
	bars := staticBars{
		{Time: 1700000000, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 10},
		{Time: 1700000060, Open: 100.5, High: 102, Low: 100, Close: 101, Volume: 12},
	}
	r := NewRouter(Config{
		Drawings: newMemStore(),
		Panels:   map[string]BarsProvider{"main": bars},
	})

	rec := doJSON(t, r, http.MethodGet, "/api/charts/main/bars", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var got []model.Bar
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1].Close != 101 {
		t.Fatalf("bars = %v", got)
	}

	rec = doJSON(t, r, http.MethodGet, "/api/charts/ghost/bars", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown panel: status %d", rec.Code)
	}
}

func TestJWTMiddleware(t *testing.T) {
	const secret = "test-secret"
	r := NewRouter(Config{Drawings: newMemStore(), JWTSecret: secret})

	// No token
	rec := doJSON(t, r, http.MethodGet, "/api/chart-drawings/SBIN", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", rec.Code)
	}

	// Garbage token
	req := httptest.NewRequest(http.MethodGet, "/api/chart-drawings/SBIN", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status %d", rec.Code)
	}

	// Valid token
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/chart-drawings/SBIN", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: status %d body %s", rec.Code, rec.Body.String())
	}

	// Healthz never requires auth
	rec = doJSON(t, r, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: status %d", rec.Code)
	}
}
