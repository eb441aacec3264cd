package smartfile

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/smartfile/smartfile_sdk_go/internal/httpx"
)

// RetryPolicy configures opt-in retries of transient failures.
type RetryPolicy = httpx.RetryPolicy

// Option configures a Client.
type Option func(*settings)

type settings struct {
	httpOpts     []httpx.Option
	policy       StatusPolicy
	downloadDir  string
	oauthBaseURL string
	accessToken  string
	accessSecret string
	log          zerolog.Logger
}

func defaultSettings() *settings {
	return &settings{
		policy:      DefaultStatusPolicy(),
		downloadDir: ".",
		log:         zerolog.Nop(),
	}
}

// WithHTTPClient replaces the underlying net/http client.
func WithHTTPClient(h *http.Client) Option {
	return func(s *settings) { s.httpOpts = append(s.httpOpts, httpx.WithHTTPClient(h)) }
}

// WithHeaders adds headers sent with every request.
func WithHeaders(h http.Header) Option {
	return func(s *settings) { s.httpOpts = append(s.httpOpts, httpx.WithHeaders(h)) }
}

// WithUserAgent replaces the default User-Agent.
func WithUserAgent(ua string) Option {
	return func(s *settings) { s.httpOpts = append(s.httpOpts, httpx.WithUserAgent(ua)) }
}

// WithConnectTimeout changes the 30 second connect timeout.
func WithConnectTimeout(d time.Duration) Option {
	return func(s *settings) { s.httpOpts = append(s.httpOpts, httpx.WithConnectTimeout(d)) }
}

// WithRetryPolicy enables retries. By default every call is a single attempt.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *settings) { s.httpOpts = append(s.httpOpts, httpx.WithRetryPolicy(p)) }
}

// WithRateLimit caps outbound requests at perSecond with the given burst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *settings) {
		s.httpOpts = append(s.httpOpts, httpx.WithRateLimit(rate.Limit(perSecond), burst))
	}
}

// WithLogger sends per-request debug logs to z.
func WithLogger(z zerolog.Logger) Option {
	return func(s *settings) {
		s.log = z
		s.httpOpts = append(s.httpOpts, httpx.WithLogger(z))
	}
}

// WithSuccessStatuses overrides the success statuses accepted for method.
func WithSuccessStatuses(method string, codes ...int) Option {
	return func(s *settings) {
		s.policy = s.policy.clone()
		s.policy[strings.ToUpper(method)] = append([]int(nil), codes...)
	}
}

// WithDownloadDir sets the directory Download writes into. Default ".".
func WithDownloadDir(dir string) Option {
	return func(s *settings) {
		if strings.TrimSpace(dir) != "" {
			s.downloadDir = dir
		}
	}
}

// WithOAuthBaseURL sets the root the /oauth/ endpoints live under. Default
// is the scheme and host of the API base URL.
func WithOAuthBaseURL(u string) Option {
	return func(s *settings) { s.oauthBaseURL = u }
}

// WithAccessToken starts an OAuth client with a persisted access pair.
func WithAccessToken(token, secret string) Option {
	return func(s *settings) {
		s.accessToken = token
		s.accessSecret = secret
	}
}
