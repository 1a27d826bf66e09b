// Package httpclient is the transport used for every backend call.
// It handles bearer authentication, retries for idempotent requests,
// client-side rate limiting, request ids, tracing, metrics and the
// global 401 hook.
package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/campusfin/client/internal/domain/shared"
	"github.com/campusfin/client/internal/infrastructure/config"
	"github.com/campusfin/client/internal/infrastructure/logger"
	"github.com/campusfin/client/internal/infrastructure/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const tracerName = "github.com/campusfin/client/internal/infrastructure/httpclient"

// HeaderRequestID carries a per-request identifier to the backend
const HeaderRequestID = "X-Request-ID"

// TokenSource supplies the current bearer token. An empty token means the
// request is sent without an Authorization header.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource
type TokenFunc func() string

// Token implements TokenSource
func (f TokenFunc) Token() string { return f() }

// UnauthorizedFunc is called whenever the backend answers 401
type UnauthorizedFunc func(ctx context.Context)

// Client is the backend HTTP client.
type Client struct {
	httpClient     *http.Client
	baseURL        *url.URL
	userAgent      string
	tokens         TokenSource
	onUnauthorized UnauthorizedFunc
	retryConfig    RetryConfig
	limiter        *rate.Limiter
	metrics        *metrics.Recorder
	tracer         trace.Tracer
	logger         *zap.Logger
}

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxRetries  int
	RetryDelay  time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	ShouldRetry func(resp *http.Response, err error) bool
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  2,
		RetryDelay:  500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Multiplier:  2.0,
		ShouldRetry: defaultShouldRetry,
	}
}

func defaultShouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	// Retry on 5xx errors and 429 (Too Many Requests)
	return resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
}

// Option configures a Client
type Option func(*Client)

// WithTokenSource sets where bearer tokens come from
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithUnauthorizedHandler sets the hook run on every 401 response
func WithUnauthorizedHandler(fn UnauthorizedFunc) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// WithRetryConfig overrides the retry policy
func WithRetryConfig(rc RetryConfig) Option {
	return func(c *Client) {
		if rc.ShouldRetry == nil {
			rc.ShouldRetry = defaultShouldRetry
		}
		if rc.Multiplier == 0 {
			rc.Multiplier = 2.0
		}
		c.retryConfig = rc
	}
}

// WithMetrics records request counts and durations
func WithMetrics(m *metrics.Recorder) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTracer overrides the tracer taken from the global provider
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHTTPClient replaces the underlying *http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a backend client from the API configuration.
func New(cfg config.APIConfig, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.TLSSkipVerify,
		},
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	retry := DefaultRetryConfig()
	retry.MaxRetries = cfg.MaxRetries
	if cfg.RetryDelay > 0 {
		retry.RetryDelay = cfg.RetryDelay
	}

	c := &Client{
		httpClient:  &http.Client{Transport: transport, Timeout: cfg.Timeout},
		baseURL:     base,
		userAgent:   cfg.UserAgent,
		retryConfig: retry,
		tracer:      otel.Tracer(tracerName),
		logger:      zap.NewNop(),
	}
	if cfg.RateLimitQPS > 0 {
		burst := cfg.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitQPS), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Request represents an HTTP request to be executed.
type Request struct {
	Method string
	Path   string
	Query  map[string]string
	// JSON is marshaled as the request body when set
	JSON any
	// Form is sent as application/x-www-form-urlencoded when set
	Form url.Values
	// Endpoint is the low-cardinality label used for metrics and spans.
	// Defaults to Path.
	Endpoint string
	// SkipUnauthorizedHook is set for requests whose 401 means "bad credentials"
	// rather than "session ended".
	SkipUnauthorizedHook bool
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
}

// Do executes req and reads the whole body. Any non-2xx status is returned
// as *shared.NetworkError carrying the backend detail.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	httpResp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &shared.NetworkError{Op: req.op(), StatusCode: httpResp.StatusCode, Err: fmt.Errorf("reading response body: %w", err)}
	}
	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
		Duration:   time.Since(start),
	}, nil
}

// DoJSON executes req and decodes the response body into out (when non-nil).
func (c *Client) DoJSON(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &shared.NetworkError{Op: req.op(), StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

// Open executes req and returns the response body unread. The caller must
// close it. Used for binary downloads.
func (c *Client) Open(ctx context.Context, req Request) (io.ReadCloser, error) {
	httpResp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	return httpResp.Body, nil
}

// Get performs a GET request and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, query map[string]string, out any) error {
	return c.DoJSON(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.DoJSON(ctx, Request{Method: http.MethodPost, Path: path, JSON: body}, out)
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.DoJSON(ctx, Request{Method: http.MethodPut, Path: path, JSON: body}, out)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.DoJSON(ctx, Request{Method: http.MethodDelete, Path: path}, nil)
}

// BaseURL returns the client's base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// send runs the retry loop and returns a successful response with its body
// still open. Error responses are drained, closed and converted.
func (c *Client) send(ctx context.Context, req Request) (*http.Response, error) {
	u, err := c.buildURL(req.Path, req.Query)
	if err != nil {
		return nil, fmt.Errorf("building URL: %w", err)
	}

	body, contentType, err := req.encodeBody()
	if err != nil {
		return nil, err
	}

	endpoint := req.endpoint()
	ctx, span := c.tracer.Start(ctx, req.Method+" "+endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", u.Path),
		),
	)
	defer span.End()

	requestID := uuid.NewString()
	ctx, log := logger.WithRequestID(ctx, c.logger, requestID)
	log = logger.WithTraceContext(ctx, log).With(zap.String("method", req.Method), zap.String("endpoint", endpoint))

	maxRetries := 0
	if req.idempotent() {
		maxRetries = c.retryConfig.MaxRetries
	}

	var (
		httpResp *http.Response
		lastErr  error
	)
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.calculateBackoff(attempt)
			log.Debug("retrying request", zap.Int("attempt", attempt), zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return nil, c.fail(span, &shared.NetworkError{Op: req.op(), Err: ctx.Err()})
			case <-time.After(delay):
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, c.fail(span, &shared.NetworkError{Op: req.op(), Err: err})
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("creating HTTP request: %w", err)
		}
		c.setHeaders(httpReq, contentType, requestID)
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

		start := time.Now()
		httpResp, err = c.httpClient.Do(httpReq)
		elapsed := time.Since(start)

		status := 0
		if httpResp != nil {
			status = httpResp.StatusCode
		}
		c.metrics.ObserveRequest(req.Method, endpoint, status, elapsed)
		lastErr = err

		if attempt < maxRetries && c.retryConfig.ShouldRetry(httpResp, err) {
			if httpResp != nil {
				drain(httpResp.Body)
			}
			continue
		}
		break
	}

	if lastErr != nil {
		log.Warn("request failed", zap.Error(lastErr))
		return nil, c.fail(span, &shared.NetworkError{Op: req.op(), Err: lastErr})
	}

	span.SetAttributes(attribute.Int("http.response.status_code", httpResp.StatusCode))
	if httpResp.StatusCode >= 200 && httpResp.StatusCode < 300 {
		log.Debug("request completed", zap.Int("status", httpResp.StatusCode))
		return httpResp, nil
	}

	defer httpResp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(httpResp.Body, 64<<10))
	netErr := &shared.NetworkError{
		Op:         req.op(),
		StatusCode: httpResp.StatusCode,
		Detail:     parseDetail(raw),
	}
	log.Info("backend returned error", zap.Int("status", httpResp.StatusCode), zap.String("detail", netErr.Detail))

	if httpResp.StatusCode == http.StatusUnauthorized && !req.SkipUnauthorizedHook && c.onUnauthorized != nil {
		c.onUnauthorized(ctx)
	}
	return nil, c.fail(span, netErr)
}

func (c *Client) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// buildURL joins path onto the base URL, keeping the base path prefix.
func (c *Client) buildURL(path string, query map[string]string) (*url.URL, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawPath = ""

	if len(query) > 0 {
		q := url.Values{}
		for k, v := range query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return &u, nil
}

func (c *Client) setHeaders(req *http.Request, contentType, requestID string) {
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set(HeaderRequestID, requestID)
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
}

// calculateBackoff calculates the backoff delay for the given attempt.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryConfig.RetryDelay) * math.Pow(c.retryConfig.Multiplier, float64(attempt-1))
	if c.retryConfig.MaxDelay > 0 && delay > float64(c.retryConfig.MaxDelay) {
		delay = float64(c.retryConfig.MaxDelay)
	}
	// Add jitter (±25%)
	jitter := delay * 0.25
	delay = delay + (rand.Float64()*2-1)*jitter
	return time.Duration(delay)
}

func (r Request) encodeBody() ([]byte, string, error) {
	switch {
	case r.Form != nil:
		return []byte(r.Form.Encode()), "application/x-www-form-urlencoded", nil
	case r.JSON != nil:
		b, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, "", fmt.Errorf("marshaling request body: %w", err)
		}
		return b, "application/json", nil
	}
	return nil, "", nil
}

func (r Request) endpoint() string {
	if r.Endpoint != "" {
		return r.Endpoint
	}
	return r.Path
}

func (r Request) op() string {
	return r.Method + " " + r.endpoint()
}

func (r Request) idempotent() bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func drain(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 64<<10))
	_ = rc.Close()
}
