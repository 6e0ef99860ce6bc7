package drawing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"charting-systemv1/internal/model"
)

const defaultAPITimeout = 4 * time.Second

// remoteDrawing is the wire shape of one drawing on the persistence API. The
// server assigns id; everything else round-trips unchanged.
type remoteDrawing struct {
	ID    string              `json:"id,omitempty"`
	Type  string              `json:"type"`
	P1    *model.DrawingPoint `json:"p1,omitempty"`
	P2    *model.DrawingPoint `json:"p2,omitempty"`
	Price float64             `json:"price,omitempty"`
}

// APIStore is a RemoteStore over the chart-drawings REST API.
type APIStore struct {
	cli *resty.Client
}

// NewAPIStore creates a client for the drawing API at baseURL, authenticating
// every request with the given bearer token.
func NewAPIStore(baseURL, token string) *APIStore {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(defaultAPITimeout)
	client.SetHeader("Content-Type", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}
	return &APIStore{cli: client}
}

// List fetches all drawings stored for symbol.
func (s *APIStore) List(ctx context.Context, symbol string) ([]model.Drawing, error) {
	resp, err := s.cli.R().
		SetContext(ctx).
		Get("/chart-drawings/" + symbol)
	if err != nil {
		return nil, errors.Wrap(err, "list drawings for "+symbol)
	}
	if resp.IsError() {
		return nil, errors.Errorf("list drawings for %s: status %d", symbol, resp.StatusCode())
	}

	var rows []remoteDrawing
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return nil, errors.Wrap(err, "decode drawings for "+symbol)
	}

	out := make([]model.Drawing, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.Drawing{
			ID:       row.ID,
			RemoteID: row.ID,
			Type:     row.Type,
			P1:       row.P1,
			P2:       row.P2,
			Price:    row.Price,
		})
	}
	return out, nil
}

// Create stores one drawing and returns the server-assigned id.
func (s *APIStore) Create(ctx context.Context, symbol string, d model.Drawing) (string, error) {
	body := remoteDrawing{Type: d.Type, P1: d.P1, P2: d.P2, Price: d.Price}

	var created remoteDrawing
	resp, err := s.cli.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&created).
		Post("/chart-drawings/" + symbol)
	if err != nil {
		return "", errors.Wrap(err, "create drawing for "+symbol)
	}
	if resp.IsError() {
		return "", errors.Errorf("create drawing for %s: status %d", symbol, resp.StatusCode())
	}
	return created.ID, nil
}

// Delete removes one drawing by its server id.
func (s *APIStore) Delete(ctx context.Context, symbol, remoteID string) error {
	resp, err := s.cli.R().
		SetContext(ctx).
		Delete(fmt.Sprintf("/chart-drawings/%s/%s", symbol, remoteID))
	if err != nil {
		return errors.Wrap(err, "delete drawing "+remoteID)
	}
	if resp.IsError() {
		return errors.Errorf("delete drawing %s: status %d", remoteID, resp.StatusCode())
	}
	return nil
}
