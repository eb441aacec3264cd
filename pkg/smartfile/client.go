package smartfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/smartfile/smartfile_sdk_go/internal/httpx"
	"github.com/smartfile/smartfile_sdk_go/internal/logger"
)

// DefaultBaseURL is the hosted API root.
const DefaultBaseURL = "https://app.smartfile.com/api/2"

// Client provides authenticated access to the SmartFile API.
type Client struct {
	http        *httpx.Client
	auth        Authenticator
	oauth       *OAuth
	policy      StatusPolicy
	downloadDir string
	log         *logger.Logger
}

// New constructs a client that signs requests with auth. An empty baseURL
// selects DefaultBaseURL.
func New(baseURL string, auth Authenticator, opts ...Option) (*Client, error) {
	s := defaultSettings()
	for _, opt := range opts {
		opt(s)
	}
	return newClient(baseURL, auth, s)
}

// NewBasic constructs a client using HTTP Basic authentication.
func NewBasic(baseURL, key, password string, opts ...Option) (*Client, error) {
	return New(baseURL, BasicAuth{Key: key, Password: password}, opts...)
}

// NewOAuth constructs a client using OAuth 1.0a. Unless WithAccessToken is
// given, the handshake must be completed through OAuth() before other calls
// succeed.
func NewOAuth(baseURL, clientToken, clientSecret string, opts ...Option) (*Client, error) {
	s := defaultSettings()
	for _, opt := range opts {
		opt(s)
	}
	c, err := newClient(baseURL, nil, s)
	if err != nil {
		return nil, err
	}

	oauthBase := s.oauthBaseURL
	if oauthBase == "" {
		u := c.http.BaseURL()
		oauthBase = u.Scheme + "://" + u.Host
	} else if _, err := url.Parse(oauthBase); err != nil {
		return nil, fmt.Errorf("smartfile: invalid OAuth base URL: %w", err)
	}

	c.oauth = newOAuth(c.http, oauthBase, clientToken, clientSecret, c.policy)
	if s.accessToken != "" || s.accessSecret != "" {
		c.oauth.SetAccessToken(s.accessToken, s.accessSecret)
	}
	c.auth = c.oauth
	return c, nil
}

func newClient(baseURL string, auth Authenticator, s *settings) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	hc, err := httpx.NewClient(baseURL, s.httpOpts...)
	if err != nil {
		return nil, fmt.Errorf("smartfile: %w", err)
	}
	return &Client{
		http:        hc,
		auth:        auth,
		policy:      s.policy,
		downloadDir: s.downloadDir,
		log:         logger.FromZerolog(s.log),
	}, nil
}

// OAuth returns the OAuth authenticator, or nil for other schemes.
func (c *Client) OAuth() *OAuth {
	return c.oauth
}

// Get performs GET path with params encoded into the query string.
func (c *Client) Get(ctx context.Context, path string, params map[string]any) (map[string]any, error) {
	return c.call(ctx, http.MethodGet, path, params, c.auth)
}

// Post performs a form-encoded POST.
func (c *Client) Post(ctx context.Context, path string, fields map[string]any) (map[string]any, error) {
	return c.call(ctx, http.MethodPost, path, fields, c.auth)
}

// Put performs a form-encoded PUT.
func (c *Client) Put(ctx context.Context, path string, fields map[string]any) (map[string]any, error) {
	return c.call(ctx, http.MethodPut, path, fields, c.auth)
}

// Delete performs DELETE path.
func (c *Client) Delete(ctx context.Context, path string) (map[string]any, error) {
	return c.call(ctx, http.MethodDelete, path, nil, c.auth)
}

func (c *Client) call(ctx context.Context, method, path string, fields map[string]any, signer Authenticator) (map[string]any, error) {
	req := &httpx.Request{Method: method, Path: path}
	if signer != nil {
		req.Signer = signer
	}
	switch method {
	case http.MethodGet, http.MethodDelete:
		if len(fields) > 0 {
			req.Query = httpx.FormValues(fields)
		}
	default:
		body := []byte(httpx.EncodeForm(fields))
		req.Body = bytes.NewReader(body)
	}
	return c.send(ctx, req)
}

func (c *Client) send(ctx context.Context, req *httpx.Request) (map[string]any, error) {
	resp, err := c.http.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	return Classify(c.policy, req.Method, resp.StatusCode, resp.Body)
}

// open issues GET path and returns the streaming response when it succeeded.
// A failure status is drained into a *ResponseError.
func (c *Client) open(ctx context.Context, path string) (*http.Response, error) {
	req := &httpx.Request{Method: http.MethodGet, Path: path}
	if c.auth != nil {
		req.Signer = c.auth
	}
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if c.policy.Allows(http.MethodGet, resp.StatusCode) {
		return resp, nil
	}
	body, readErr := httpx.ReadAllAndClose(resp.Body)
	if readErr != nil {
		body = nil
	}
	_, err = Classify(c.policy, http.MethodGet, resp.StatusCode, body)
	return nil, err
}

// copyBody streams the response into w, reporting read failures as
// transport errors.
func copyBody(w io.Writer, resp *http.Response) (int64, error) {
	defer resp.Body.Close()
	n, err := io.Copy(markedWriter{w}, resp.Body)
	if err != nil {
		var werr *writeError
		if errors.As(err, &werr) {
			return n, werr.err
		}
		return n, &TransportError{Method: http.MethodGet, URL: resp.Request.URL.String(), Err: err}
	}
	return n, nil
}

// writeError marks failures on the destination side of a copy.
type writeError struct{ err error }

func (e *writeError) Error() string { return e.err.Error() }
func (e *writeError) Unwrap() error { return e.err }

type markedWriter struct{ w io.Writer }

func (m markedWriter) Write(p []byte) (int, error) {
	n, err := m.w.Write(p)
	if err != nil {
		return n, &writeError{err: err}
	}
	return n, nil
}
