package httpx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/smartfile/smartfile_sdk_go/internal/logger"
)

const (
	// DefaultConnectTimeout bounds connection establishment only; reads are
	// bounded by the caller's context.
	DefaultConnectTimeout = 30 * time.Second
	// DefaultUserAgent is sent when no other User-Agent is configured.
	DefaultUserAgent = "SmartFile Go API client v2.1"
	// FormContentType is the default request content type.
	FormContentType = "application/x-www-form-urlencoded"
)

// Signer adds authentication to an outbound request.
type Signer interface {
	Sign(req *http.Request) error
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used by the helper.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithHeaders assigns default headers added to every request.
func WithHeaders(h http.Header) Option {
	return func(c *Client) {
		for k, values := range h {
			for _, v := range values {
				c.headers.Add(k, v)
			}
		}
	}
}

// WithUserAgent replaces the default User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if strings.TrimSpace(ua) != "" {
			c.headers.Set("User-Agent", ua)
		}
	}
}

// WithRetryPolicy overrides the default retry configuration.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) {
		c.retryPolicy = policy
	}
}

// WithConnectTimeout changes the dial timeout of the default transport. It
// has no effect when WithHTTPClient supplies a client.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.connectTimeout = d
		}
	}
}

// WithRateLimit throttles outbound attempts to limit per second with the
// given burst.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) {
		if limit <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithLogger routes per-attempt debug logs to z.
func WithLogger(z zerolog.Logger) Option {
	return func(c *Client) {
		c.log = logger.FromZerolog(z)
	}
}

// Client wraps http.Client providing base URL, signing and retry utilities.
type Client struct {
	baseURL        *url.URL
	httpClient     *http.Client
	headers        http.Header
	retryPolicy    RetryPolicy
	connectTimeout time.Duration
	limiter        *rate.Limiter
	log            *logger.Logger
}

// Request describes a single outbound request.
type Request struct {
	Method string
	// Path is either an absolute http(s) URL or a path appended to the
	// client's base URL. It may carry its own query string.
	Path         string
	Query        url.Values
	Header       http.Header
	Signer       Signer
	DisableRetry bool
	Body         io.Reader
	GetBody      func() (io.ReadCloser, error)
}

// Response is a fully buffered HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// NewClient creates a Client for the provided base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("httpx: base URL is required")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("httpx: invalid base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("httpx: invalid base URL %q: scheme must be http or https", baseURL)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("httpx: invalid base URL %q: missing host", baseURL)
	}

	c := &Client{
		baseURL:        parsed,
		headers:        make(http.Header),
		retryPolicy:    DefaultRetryPolicy,
		connectTimeout: DefaultConnectTimeout,
		log:            logger.Nop(),
	}
	c.headers.Set("User-Agent", DefaultUserAgent)

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Transport: newTransport(c.connectTimeout)}
	}
	c.retryPolicy = c.retryPolicy.normalized()
	return c, nil
}

func newTransport(connectTimeout time.Duration) *http.Transport {
	dialer := &net.Dialer{Timeout: connectTimeout}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   connectTimeout,
		ExpectContinueTimeout: time.Second,
		DisableKeepAlives:     true,
	}
}

// BaseURL returns a copy of the configured base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Send executes req and buffers the whole response body. Any HTTP status is
// returned as a Response; only transport failures produce an error.
func (c *Client) Send(ctx context.Context, req *Request) (*Response, error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	body, err := ReadAllAndClose(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: resp.Request.URL.String(), Err: fmt.Errorf("read response body: %w", err)}
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// Do executes the provided request and returns the streaming response. The
// caller must close the body.
func (c *Client) Do(ctx context.Context, req *Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("httpx: request is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if req.Method == "" {
		return nil, errors.New("httpx: HTTP method is required")
	}

	var replay []byte
	if req.Body != nil && req.GetBody == nil && c.retryPolicy.MaxRetries > 0 && !req.DisableRetry {
		// Buffer the body so it can be replayed.
		data, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("httpx: read request body: %w", err)
		}
		replay = data
		req.Body = nil
	}

	fullURL, err := c.buildURL(req.Path, req.Query)
	if err != nil {
		return nil, err
	}

	attempt := 0
	backoff := newBackoff(c.retryPolicy)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		body, err := prepareBody(req, replay, attempt == 0)
		if err != nil {
			return nil, err
		}

		httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, body)
		if err != nil {
			return nil, err
		}
		// The remote API expects one request per connection.
		httpReq.Close = true
		httpReq.Header = cloneHeader(c.headers)
		for k, values := range req.Header {
			httpReq.Header.Del(k)
			for _, v := range values {
				httpReq.Header.Add(k, v)
			}
		}
		if httpReq.Header.Get("Content-Type") == "" {
			httpReq.Header.Set("Content-Type", FormContentType)
		}
		if req.Signer != nil {
			if err := req.Signer.Sign(httpReq); err != nil {
				if rc, ok := body.(io.Closer); ok {
					_ = rc.Close()
				}
				return nil, err
			}
		}

		start := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		c.logAttempt(req.Method, fullURL, attempt, resp, err, time.Since(start))
		if err != nil {
			closeBody(respBody(resp))
			if !c.shouldRetry(req, attempt, resp, err) {
				return nil, &TransportError{Method: req.Method, URL: fullURL, Err: err}
			}
			c.logRetry(req.Method, attempt, 0, err)
			if err := sleep(ctx, backoff.forAttempt(attempt)); err != nil {
				return nil, err
			}
			attempt++
			continue
		}

		if c.shouldRetry(req, attempt, resp, nil) {
			closeBody(resp.Body)
			c.logRetry(req.Method, attempt, resp.StatusCode, nil)
			if err := sleep(ctx, backoff.forAttempt(attempt)); err != nil {
				return nil, err
			}
			attempt++
			continue
		}
		return resp, nil
	}
}

func (c *Client) logAttempt(method, fullURL string, attempt int, resp *http.Response, err error, elapsed time.Duration) {
	fields := map[string]interface{}{
		"method":  method,
		"url":     fullURL,
		"attempt": attempt,
		"elapsed": elapsed.String(),
	}
	if resp != nil {
		fields["status"] = resp.StatusCode
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	c.log.DebugWith("httpx: request", fields)
}

func (c *Client) logRetry(method string, attempt, status int, err error) {
	log := c.log.With().Str("method", method).Int("attempt", attempt+1).Err(err)
	if status != 0 {
		log = log.Int("status", status)
	}
	log.Logger().Warn("httpx: retrying request")
}

func prepareBody(req *Request, replay []byte, first bool) (io.Reader, error) {
	if replay != nil {
		return bytes.NewReader(replay), nil
	}
	if first && req.Body != nil {
		body := req.Body
		req.Body = nil
		return body, nil
	}
	if req.GetBody != nil {
		return req.GetBody()
	}
	return nil, nil
}

func (c *Client) shouldRetry(req *Request, attempt int, resp *http.Response, err error) bool {
	if req.DisableRetry || attempt >= c.retryPolicy.MaxRetries {
		return false
	}
	return c.retryPolicy.retryable(resp, err)
}

func closeBody(rc io.ReadCloser) {
	if rc != nil {
		_ = rc.Close()
	}
}

func respBody(resp *http.Response) io.ReadCloser {
	if resp == nil {
		return nil
	}
	return resp.Body
}

func (c *Client) buildURL(path string, q url.Values) (string, error) {
	var raw string
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		raw = path
	} else {
		base := *c.baseURL
		base.RawQuery = ""
		base.Fragment = ""
		raw = strings.TrimRight(base.String(), "/") + "/" + strings.TrimLeft(path, "/")
	}
	full, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("httpx: invalid request path %q: %w", path, err)
	}
	if len(q) > 0 {
		merged := full.Query()
		for k, values := range q {
			for _, v := range values {
				merged.Add(k, v)
			}
		}
		full.RawQuery = merged.Encode()
	}
	return full.String(), nil
}

// ReadAllAndClose drains the reader and ensures it is closed.
func ReadAllAndClose(rc io.ReadCloser) ([]byte, error) {
	defer closeBody(rc)
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func cloneHeader(src http.Header) http.Header {
	dst := make(http.Header, len(src))
	for k, values := range src {
		vCopy := make([]string, len(values))
		copy(vCopy, values)
		dst[k] = vCopy
	}
	return dst
}
