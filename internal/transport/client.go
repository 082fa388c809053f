// Package transport turns a logical (method, path, body) call into a
// best-effort JSON request against the remote record service. Network
// failures are retried with doubling backoff; once retries run out, reads
// degrade to a failed ReadResult while writes return the error.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"arksync/internal/logging"
	"arksync/internal/metrics"
)

const (
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 3
	// DefaultInitialBackoff is the delay before the first retry.
	DefaultInitialBackoff = 500 * time.Millisecond
	// DefaultTimeout bounds a single attempt.
	DefaultTimeout = 15 * time.Second

	// DefaultMaxResponseSize caps a response body.
	DefaultMaxResponseSize int64 = 32 * 1024 * 1024
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// TokenSource returns the bearer token to attach, or "" for none.
type TokenSource func() string

// Client is the remote transport.
type Client struct {
	baseURL        string
	http           *http.Client
	maxRetries     int
	initialBackoff time.Duration
	sleep          SleepFunc
	token          TokenSource
	maxResponse    int64
	logger         *zap.Logger
	metrics        *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithMaxRetries sets how many retries follow the first attempt.
func WithMaxRetries(n int) Option { return func(c *Client) { c.maxRetries = n } }

// WithInitialBackoff sets the delay before the first retry.
func WithInitialBackoff(d time.Duration) Option { return func(c *Client) { c.initialBackoff = d } }

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep(fn SleepFunc) Option { return func(c *Client) { c.sleep = fn } }

// WithTokenSource attaches a bearer token to each request.
func WithTokenSource(ts TokenSource) Option { return func(c *Client) { c.token = ts } }

// WithMaxResponseSize caps the response body; larger responses fail with
// ErrResponseTooLarge.
func WithMaxResponseSize(n int64) Option { return func(c *Client) { c.maxResponse = n } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.logger = l } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option { return func(c *Client) { c.metrics = m } }

// New returns a Client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &http.Client{Timeout: DefaultTimeout},
		maxRetries:     DefaultMaxRetries,
		initialBackoff: DefaultInitialBackoff,
		sleep:          sleepContext,
		maxResponse:    DefaultMaxResponseSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrNop(c.logger)
	return c
}

// ReadResult is the outcome of a read. Reads never return errors; a failed
// read carries Success=false and the failure message so callers can fall back
// to local data.
type ReadResult struct {
	Success bool
	Message string
	Data    json.RawMessage
	Err     error
}

// Read issues a GET. Malformed responses are retried like network failures.
func (c *Client) Read(ctx context.Context, path string) ReadResult {
	data, err := c.do(ctx, http.MethodGet, path, nil, true)
	if err != nil {
		c.logger.Info("remote read failed, continuing offline", zap.String("path", path), zap.Error(err))
		return ReadResult{Success: false, Message: err.Error(), Err: err}
	}
	return ReadResult{Success: true, Data: data}
}

// Write issues a POST with a JSON body and returns the envelope data. A
// malformed response fails immediately; retrying a write the server may have
// applied risks duplicate effects.
func (c *Client) Write(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, path, body, false)
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, retryMalformed bool) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}
	backoff := c.initialBackoff
	for attempt := 0; ; attempt++ {
		data, err := c.once(ctx, method, path, payload)
		if err == nil {
			c.metrics.Attempt(method, "success")
			return data, nil
		}
		kind := KindOf(err)
		c.metrics.Attempt(method, outcome(kind))
		retryable := kind == KindNetwork || (retryMalformed && kind == KindMalformed)
		if !retryable || attempt >= c.maxRetries || ctx.Err() != nil {
			return nil, err
		}
		c.logger.Debug("remote call failed, retrying",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		if serr := c.sleep(ctx, backoff); serr != nil {
			return nil, err
		}
		backoff *= 2
	}
}

func (c *Client) once(ctx context.Context, method, path string, payload []byte) (json.RawMessage, error) {
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Message: err.Error(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponse+1))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Status: resp.StatusCode, Message: "read response body: " + err.Error(), Err: err}
	}
	if int64(len(raw)) > c.maxResponse {
		return nil, &Error{
			Kind:    KindServer,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("response too large: more than %d bytes", c.maxResponse),
			Err:     ErrResponseTooLarge,
		}
	}
	if !isJSON(resp.Header.Get("Content-Type")) {
		return nil, &Error{
			Kind:    KindMalformed,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("expected JSON, got content type %q", resp.Header.Get("Content-Type")),
			Err:     ErrMalformedResponse,
		}
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, &Error{Kind: KindMalformed, Status: resp.StatusCode, Message: "decode response: " + err.Error(), Err: ErrMalformedResponse}
		}
		failed := env.Success != nil && !*env.Success
		if failed || resp.StatusCode >= http.StatusBadRequest {
			return nil, &Error{Kind: KindServer, Status: resp.StatusCode, Message: failureMessage(env, resp.StatusCode)}
		}
		if env.Success != nil {
			return env.Data, nil
		}
		return json.RawMessage(trimmed), nil
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &Error{Kind: KindServer, Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	if len(trimmed) > 0 && !json.Valid(trimmed) {
		return nil, &Error{Kind: KindMalformed, Status: resp.StatusCode, Message: "response body is not valid JSON", Err: ErrMalformedResponse}
	}
	return json.RawMessage(trimmed), nil
}

func outcome(k Kind) string {
	if k == "" {
		return "error"
	}
	return string(k) + "_error"
}

func failureMessage(env envelope, status int) string {
	switch {
	case env.Message != "":
		return env.Message
	case env.Error != "":
		return env.Error
	default:
		return http.StatusText(status)
	}
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	media, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return media == "application/json" || strings.HasSuffix(media, "+json")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
