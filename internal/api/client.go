// Package api is the HTTP client for the attack statistics backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/keilerkonzept/sshdash/internal/cache"
	"github.com/keilerkonzept/sshdash/internal/dataset"
	"github.com/keilerkonzept/sshdash/internal/metrics"
	"github.com/keilerkonzept/sshdash/internal/query"
)

const maxBodySize = 64 * 1024 * 1024

var (
	ErrNotArray    = errors.New("response is not a JSON array")
	ErrNotObject   = errors.New("response is not a JSON object")
	ErrContentType = errors.New("response is not JSON")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Path string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Path, e.Code)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Path, e.Code, e.Body)
}

// Client issues GET requests against base, e.g. "http://localhost:5000/api".
// Requests are never retried.
type Client struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter
	cache   cache.Store
	log     *zap.Logger
	metrics *metrics.Fetch
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithRateLimit throttles outgoing requests; rps <= 0 disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, burst))
	}
}

func WithCache(s cache.Store) Option { return func(c *Client) { c.cache = s } }

func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

func WithMetrics(m *metrics.Fetch) Option { return func(c *Client) { c.metrics = m } }

func New(base string, opts ...Option) *Client {
	c := &Client{
		base:  strings.TrimRight(base, "/"),
		http:  &http.Client{Timeout: 30 * time.Second},
		cache: cache.Nop{},
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) get(ctx context.Context, req query.Request) ([]byte, error) {
	key := req.Key()
	if e, ok := c.cache.Get(ctx, key); ok {
		c.metrics.ObserveCacheHit()
		return e.Body, nil
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	body, ctype, err := c.do(ctx, req)
	elapsed := time.Since(start)
	c.metrics.ObserveRequest(elapsed, err)
	if err != nil {
		c.log.Warn("request failed", zap.String("path", req.Path), zap.Duration("elapsed", elapsed), zap.Error(err))
		return nil, err
	}
	c.log.Debug("request done",
		zap.String("path", req.Path),
		zap.String("query", req.Params.Encode()),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", elapsed))
	c.cache.Set(ctx, key, cache.Entry{Body: body, ContentType: ctype, Fetched: start})
	return body, nil
}

func (c *Client) do(ctx context.Context, req query.Request) ([]byte, string, error) {
	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL(c.base), nil)
	if err != nil {
		return nil, "", err
	}
	hreq.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(hreq)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", req.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, "", fmt.Errorf("%s: read body: %w", req.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &StatusError{Path: req.Path, Code: resp.StatusCode, Body: snippet(body)}
	}
	ctype := resp.Header.Get("Content-Type")
	mt, _, err := mime.ParseMediaType(ctype)
	if err != nil || !(mt == "application/json" || strings.HasSuffix(mt, "+json")) {
		return nil, "", fmt.Errorf("%s: %w (content-type %q)", req.Path, ErrContentType, ctype)
	}
	return body, ctype, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

func decodeArray(path string, body []byte, v any) error {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return fmt.Errorf("%s: %w", path, ErrNotArray)
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("%s: decode: %w", path, err)
	}
	return nil
}

func decodeObject(path string, body []byte, v any) error {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("%s: %w", path, ErrNotObject)
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("%s: decode: %w", path, err)
	}
	return nil
}

// TotalAttacks fetches a {date, attacks} series.
func (c *Client) TotalAttacks(ctx context.Context, req query.Request) ([]dataset.DailyCount, error) {
	body, err := c.get(ctx, req)
	if err != nil {
		return nil, err
	}
	var out []dataset.DailyCount
	if err := decodeArray(req.Path, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SeriesRows fetches {date, attacks, <seriesKey>} rows of a per-dimension
// endpoint.
func (c *Client) SeriesRows(ctx context.Context, req query.Request, seriesKey string) ([]dataset.SeriesRow, error) {
	body, err := c.get(ctx, req)
	if err != nil {
		return nil, err
	}
	var raw []map[string]json.RawMessage
	if err := decodeArray(req.Path, body, &raw); err != nil {
		return nil, err
	}
	out := make([]dataset.SeriesRow, 0, len(raw))
	for i, m := range raw {
		var row dataset.SeriesRow
		if err := json.Unmarshal(m["date"], &row.Date); err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", req.Path, i, err)
		}
		if a, ok := m["attacks"]; ok && string(a) != "null" {
			if err := json.Unmarshal(a, &row.Attacks); err != nil {
				return nil, fmt.Errorf("%s: row %d: attacks: %w", req.Path, i, err)
			}
		}
		row.Key = scalar(m[seriesKey])
		row.Country = scalar(m["country"])
		out = append(out, row)
	}
	return out, nil
}

// scalar renders a JSON string or number as text; anything else is empty.
func scalar(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// Summary fetches discovery-table rows.
func (c *Client) Summary(ctx context.Context, req query.Request) ([]dataset.RankEntity, error) {
	body, err := c.get(ctx, req)
	if err != nil {
		return nil, err
	}
	var out []dataset.RankEntity
	if err := decodeArray(req.Path, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Count fetches a {total_<dim>s: n} response.
func (c *Client) Count(ctx context.Context, req query.Request, field string) (int, error) {
	body, err := c.get(ctx, req)
	if err != nil {
		return 0, err
	}
	var m map[string]json.Number
	if err := decodeObject(req.Path, body, &m); err != nil {
		return 0, err
	}
	n, ok := m[field]
	if !ok {
		return 0, fmt.Errorf("%s: missing %q", req.Path, field)
	}
	v, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("%s: %q: %w", req.Path, field, err)
	}
	return int(v), nil
}

// DateRange fetches the first and last day of the dataset.
func (c *Client) DateRange(ctx context.Context) (dataset.DateRange, error) {
	req := query.DateRangeRequest()
	body, err := c.get(ctx, req)
	if err != nil {
		return dataset.DateRange{}, err
	}
	var resp struct {
		Min dataset.Date `json:"min_date"`
		Max dataset.Date `json:"max_date"`
	}
	if err := decodeObject(req.Path, body, &resp); err != nil {
		return dataset.DateRange{}, err
	}
	if resp.Min.IsZero() || resp.Max.IsZero() {
		return dataset.DateRange{}, fmt.Errorf("%s: empty dataset", req.Path)
	}
	return dataset.DateRange{Start: resp.Min, End: resp.Max}, nil
}
