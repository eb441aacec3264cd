package smartfile

import (
	"fmt"
	"os"
	"strings"
)

const (
	envMode     = "SMARTFILE_MODE"
	envAPIURL   = "SMARTFILE_API_URL"
	envAPIKey   = "API_KEY"
	envAPIPass  = "API_PASS"
	envMockSeed = "SMARTFILE_MOCK_SEED"

	// ModeHTTP talks to a real API endpoint.
	ModeHTTP = "http"
	// ModeMock serves every call from an in-process mock API.
	ModeMock = "mock"
	modeAuto = "auto"
)

// NewFromEnv builds a Basic-auth client from API_KEY and API_PASS. The API
// root comes from SMARTFILE_API_URL and defaults to DefaultBaseURL.
//
// SMARTFILE_MODE selects the backend: "http" (the default) requires the
// credentials, "mock" runs against an in-process mock seeded from the YAML
// file in SMARTFILE_MOCK_SEED, and "auto" picks http when credentials are
// present and mock otherwise.
func NewFromEnv(opts ...Option) (*Client, error) {
	client, _, err := NewFromEnvWithMode(opts...)
	return client, err
}

// NewFromEnvWithMode is NewFromEnv that also reports the resolved mode.
func NewFromEnvWithMode(opts ...Option) (client *Client, mode string, err error) {
	mode = strings.ToLower(strings.TrimSpace(os.Getenv(envMode)))
	key := strings.TrimSpace(os.Getenv(envAPIKey))
	pass := os.Getenv(envAPIPass)

	switch mode {
	case "", ModeHTTP:
		if key == "" || pass == "" {
			return nil, "", fmt.Errorf("smartfile: %s and %s must be set", envAPIKey, envAPIPass)
		}
		return newHTTPFromEnv(key, pass, opts)
	case modeAuto:
		if key != "" && pass != "" {
			return newHTTPFromEnv(key, pass, opts)
		}
		return newMockFromEnv(key, pass, opts)
	case ModeMock:
		return newMockFromEnv(key, pass, opts)
	default:
		return nil, "", fmt.Errorf("smartfile: unsupported %s value %q", envMode, mode)
	}
}

func newHTTPFromEnv(key, pass string, opts []Option) (*Client, string, error) {
	baseURL := strings.TrimSpace(os.Getenv(envAPIURL))
	client, err := NewBasic(baseURL, key, pass, opts...)
	if err != nil {
		return nil, "", fmt.Errorf("smartfile: init client from environment: %w", err)
	}
	return client, ModeHTTP, nil
}
