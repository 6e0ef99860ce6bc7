// Package history fetches finite historical bar windows from the upstream
// data API. Responses are raw rows: normalization and dedup happen in the
// merge package, not here.
package history

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"charting-systemv1/internal/chart/merge"
	"charting-systemv1/internal/logger"
)

const (
	defaultFetchTimeout = 10 * time.Second
	defaultRetryCount   = 2
)

// Request identifies one historical window. From and To are Unix seconds,
// inclusive on both ends. Interval is the upstream's native interval string,
// e.g. "1m", "5m", "1d".
type Request struct {
	Market   string
	Symbol   string
	Interval string
	From     int64
	To       int64
}

// Source provides historical bars. Implementations must return the full
// window ordered or unordered; callers normalize.
type Source interface {
	Fetch(ctx context.Context, req Request) ([]merge.RawBar, error)
}

// Client is a Source over the upstream REST API.
type Client struct {
	cli *resty.Client
}

// NewClient creates a Client for the history API at baseURL, authenticating
// with the given bearer token if non-empty.
func NewClient(baseURL, token string) *Client {
	cli := resty.New()
	cli.SetBaseURL(baseURL)
	cli.SetTimeout(defaultFetchTimeout)
	cli.SetRetryCount(defaultRetryCount)
	if token != "" {
		cli.SetAuthToken(token)
	}
	return &Client{cli: cli}
}

// Fetch retrieves the raw rows for one window. The upstream returns either a
// bare JSON array or an envelope with a "candles" field; both are accepted.
func (c *Client) Fetch(ctx context.Context, req Request) ([]merge.RawBar, error) {
	r := c.cli.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"interval": req.Interval,
			"from":     strconv.FormatInt(req.From, 10),
			"to":       strconv.FormatInt(req.To, 10),
		})
	if tid := logger.TraceID(ctx); tid != "" {
		r.SetHeader("X-Trace-Id", tid)
	}
	resp, err := r.Get("/historical/" + req.Market + "/" + req.Symbol)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch history %s:%s %s", req.Market, req.Symbol, req.Interval)
	}
	if resp.IsError() {
		return nil, errors.Errorf("fetch history %s:%s %s: status %d",
			req.Market, req.Symbol, req.Interval, resp.StatusCode())
	}
	return decodeRows(resp.Body())
}

type envelope struct {
	Candles []merge.RawBar `json:"candles"`
}

func decodeRows(body []byte) ([]merge.RawBar, error) {
	var rows []merge.RawBar
	if err := json.Unmarshal(body, &rows); err == nil {
		return rows, nil
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.Wrap(err, "decode history response")
	}
	return env.Candles, nil
}
