// Package apex is a thin Go client for the chartd HTTP API.
package apex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	cerr "github.com/Ap3pp3rs94/chartly-apex/pkg/errors"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/telemetry"
)

const (
	RequestIDHeader      = "X-Request-Id"
	IdempotencyKeyHeader = "Idempotency-Key"

	DefaultMaxRequestBytes  = int64(4 * 1024 * 1024)
	DefaultMaxResponseBytes = int64(8 * 1024 * 1024)
	DefaultTimeout          = 15 * time.Second
)

type Client struct {
	BaseURL string

	// Optional static headers applied to every request.
	StaticHeaders map[string]string

	HTTP *http.Client

	MaxRequestBytes  int64
	MaxResponseBytes int64
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:          strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTP:             &http.Client{Timeout: DefaultTimeout},
		MaxRequestBytes:  DefaultMaxRequestBytes,
		MaxResponseBytes: DefaultMaxResponseBytes,
		StaticHeaders:    map[string]string{},
	}
}

type RequestOption func(*requestCfg)

type requestCfg struct {
	requestID string
	headers   map[string]string
}

// WithRequestID forces a request id header for this request. Without it the
// id bound to ctx by telemetry.WithRequestID is sent.
func WithRequestID(reqID string) RequestOption {
	return func(c *requestCfg) { c.requestID = strings.TrimSpace(reqID) }
}

func WithHeader(k, v string) RequestOption {
	return func(c *requestCfg) {
		if c.headers == nil {
			c.headers = map[string]string{}
		}
		c.headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
}

// WithIdempotencyKey makes a create replay-safe.
func WithIdempotencyKey(key string) RequestOption {
	return WithHeader(IdempotencyKeyHeader, key)
}

// ---- typed calls ----

// Chart mirrors the chartd chart view.
type Chart struct {
	ID         string            `json:"id"`
	Attributes map[string]string `json:"attributes"`
	Mounted    bool              `json:"mounted"`
	Scheduler  string            `json:"scheduler"`
	DelayMS    int64             `json:"delay_ms"`
	Error      *cerr.ErrorBody   `json:"error,omitempty"`
}

// Config is the derived configuration of a chart.
type Config struct {
	Type       string         `json:"type"`
	Config     map[string]any `json:"config"`
	Series     any            `json:"series"`
	Labels     []string       `json:"labels,omitempty"`
	Categories []string       `json:"categories,omitempty"`
	Warnings   []string       `json:"warnings,omitempty"`
}

// CreateChart registers a chart with attrs applied. Non-string values are
// sent as JSON and stored as their JSON text.
func (c *Client) CreateChart(ctx context.Context, attrs map[string]any, opts ...RequestOption) (Chart, error) {
	var out Chart
	err := c.DoJSON(ctx, http.MethodPost, "/charts", map[string]any{"attributes": attrs}, &out, opts...)
	return out, err
}

func (c *Client) GetChart(ctx context.Context, id string, opts ...RequestOption) (Chart, error) {
	var out Chart
	err := c.DoJSON(ctx, http.MethodGet, chartPath(id, ""), nil, &out, opts...)
	return out, err
}

func (c *Client) DeleteChart(ctx context.Context, id string, opts ...RequestOption) error {
	return c.DoJSON(ctx, http.MethodDelete, chartPath(id, ""), nil, nil, opts...)
}

// SetAttribute records one attribute; a nil value removes it.
func (c *Client) SetAttribute(ctx context.Context, id, name string, value any, opts ...RequestOption) (Chart, error) {
	var out Chart
	p := chartPath(id, "/attributes/"+url.PathEscape(name))
	err := c.DoJSON(ctx, http.MethodPut, p, map[string]any{"value": value}, &out, opts...)
	return out, err
}

// PatchAttributes applies several mutations at once; nil values remove.
func (c *Client) PatchAttributes(ctx context.Context, id string, attrs map[string]any, opts ...RequestOption) (Chart, error) {
	var out Chart
	err := c.DoJSON(ctx, http.MethodPatch, chartPath(id, "/attributes"), attrs, &out, opts...)
	return out, err
}

// Flush applies pending mutations without waiting for the quiescence window.
func (c *Client) Flush(ctx context.Context, id string, opts ...RequestOption) (Chart, error) {
	var out Chart
	err := c.DoJSON(ctx, http.MethodPost, chartPath(id, "/flush"), nil, &out, opts...)
	return out, err
}

func (c *Client) SetUpdateDelay(ctx context.Context, id string, d time.Duration, opts ...RequestOption) (Chart, error) {
	var out Chart
	err := c.DoJSON(ctx, http.MethodPut, chartPath(id, "/delay"), map[string]string{"delay": d.String()}, &out, opts...)
	return out, err
}

func (c *Client) Config(ctx context.Context, id string, opts ...RequestOption) (Config, error) {
	var out Config
	err := c.DoJSON(ctx, http.MethodGet, chartPath(id, "/config"), nil, &out, opts...)
	return out, err
}

// Export returns the chart series encoded as format (json, csv or xlsx).
func (c *Client) Export(ctx context.Context, id, format string, opts ...RequestOption) ([]byte, error) {
	p := chartPath(id, "/export?format="+url.QueryEscape(format))
	return c.doRaw(ctx, http.MethodGet, p, nil, opts...)
}

func (c *Client) Health(ctx context.Context, opts ...RequestOption) (telemetry.HealthSnapshot, error) {
	var out telemetry.HealthSnapshot
	raw, err := c.doRaw(ctx, http.MethodGet, "/health", nil, opts...)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusServiceUnavailable {
		raw, err = apiErr.RawBody, nil
	}
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("apex sdk: decode health: %w", err)
	}
	return out, nil
}

func chartPath(id, suffix string) string {
	return "/charts/" + url.PathEscape(id) + suffix
}

// DoJSON sends body as JSON and decodes a JSON response into out when out
// is non-nil. Non-2xx responses return *APIError.
func (c *Client) DoJSON(ctx context.Context, method, path string, body any, out any, opts ...RequestOption) error {
	raw, err := c.doRaw(ctx, method, path, body, opts...)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("apex sdk: decode response json: %w", err)
	}
	return nil
}

// ---- errors ----

// APIError is a decoded chartd error envelope.
type APIError struct {
	Status    int
	Code      cerr.Code
	Message   string
	Retryable bool
	Kind      string
	RequestID string
	RawBody   []byte
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "request failed"
	}
	return fmt.Sprintf("apex api error: status=%d code=%s retryable=%t msg=%s", e.Status, e.Code, e.Retryable, msg)
}

// Unwrap exposes the code so cerr.HasCode and errors.Is work on API errors.
func (e *APIError) Unwrap() error { return cerr.New(e.Code, e.Message) }

// ---- request execution ----

func (c *Client) doRaw(ctx context.Context, method, path string, body any, opts ...RequestOption) ([]byte, error) {
	if c == nil {
		return nil, errors.New("apex sdk: nil client")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		return nil, errors.New("apex sdk: base url required")
	}
	hc := c.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	maxReq, maxResp := c.MaxRequestBytes, c.MaxResponseBytes
	if maxReq <= 0 {
		maxReq = DefaultMaxRequestBytes
	}
	if maxResp <= 0 {
		maxResp = DefaultMaxResponseBytes
	}

	cfg := requestCfg{}
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}
	if cfg.requestID == "" {
		cfg.requestID = telemetry.RequestID(ctx)
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("apex sdk: encode request json: %w", err)
		}
		if int64(len(b)) > maxReq {
			return nil, fmt.Errorf("apex sdk: request body too large (%d>%d)", len(b), maxReq)
		}
		reqBody = bytes.NewReader(b)
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req, err := http.NewRequestWithContext(ctx, method, base+path, reqBody)
	if err != nil {
		return nil, err
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.StaticHeaders {
		if k = strings.TrimSpace(k); k != "" {
			req.Header.Set(k, strings.TrimSpace(v))
		}
	}
	for k, v := range cfg.headers {
		if k != "" {
			req.Header.Set(k, v)
		}
	}
	if cfg.requestID != "" {
		req.Header.Set(RequestIDHeader, cfg.requestID)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResp+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > maxResp {
		return nil, fmt.Errorf("apex sdk: response body too large (%d>%d)", len(raw), maxResp)
	}
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return raw, nil
	}
	return nil, parseErrorEnvelope(resp.StatusCode, raw)
}

func parseErrorEnvelope(status int, raw []byte) *APIError {
	out := &APIError{
		Status:    status,
		Code:      cerr.Internal,
		Message:   "request failed",
		Retryable: true,
		Kind:      "server",
		RawBody:   raw,
	}
	var env cerr.ErrorEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return out
	}
	if cerr.Known(env.Error.Code) {
		out.Code = env.Error.Code
		if meta, ok := cerr.Meta(out.Code); ok {
			out.Retryable = meta.Retryable
			out.Kind = meta.Kind
		}
	}
	if env.Error.Message != "" {
		out.Message = env.Error.Message
	}
	if env.Error.Kind != "" {
		out.Kind = env.Error.Kind
	}
	out.RequestID = env.Error.RequestID
	return out
}
