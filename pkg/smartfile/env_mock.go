package smartfile

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/smartfile/smartfile_sdk_go/pkg/smartfile/mock"
)

// mockBaseURL is never dialled; the mock transport answers every request.
const mockBaseURL = "http://smartfile.mock" + mock.DefaultPrefix

const (
	mockKey  = "mock"
	mockPass = "mock"
)

func newMockFromEnv(key, pass string, opts []Option) (*Client, string, error) {
	if key == "" || pass == "" {
		key, pass = mockKey, mockPass
	}
	api := mock.New(mock.Options{Key: key, Password: pass})
	if path := strings.TrimSpace(os.Getenv(envMockSeed)); path != "" {
		seed, err := mock.LoadSeed(path)
		if err != nil {
			return nil, "", fmt.Errorf("smartfile: load mock seed: %w", err)
		}
		if err := api.ApplySeed(seed); err != nil {
			return nil, "", fmt.Errorf("smartfile: apply mock seed: %w", err)
		}
	}

	opts = append(append([]Option(nil), opts...), WithHTTPClient(&http.Client{Transport: api.Transport()}))
	client, err := NewBasic(mockBaseURL, key, pass, opts...)
	if err != nil {
		return nil, "", fmt.Errorf("smartfile: init mock client: %w", err)
	}
	return client, ModeMock, nil
}
