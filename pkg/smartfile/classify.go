package smartfile

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/smartfile/smartfile_sdk_go/internal/sfapi"
)

// StatusPolicy lists the success statuses accepted per HTTP method.
type StatusPolicy map[string][]int

// DefaultStatusPolicy returns GET=200, POST=200|201, PUT=200, DELETE=204.
func DefaultStatusPolicy() StatusPolicy {
	return StatusPolicy{
		http.MethodGet:    {http.StatusOK},
		http.MethodPost:   {http.StatusOK, http.StatusCreated},
		http.MethodPut:    {http.StatusOK},
		http.MethodDelete: {http.StatusNoContent},
	}
}

// Allows reports whether status is a success for method. Methods without an
// entry accept 200 only.
func (p StatusPolicy) Allows(method string, status int) bool {
	codes, ok := p[strings.ToUpper(method)]
	if !ok {
		return status == http.StatusOK
	}
	for _, c := range codes {
		if c == status {
			return true
		}
	}
	return false
}

func (p StatusPolicy) clone() StatusPolicy {
	out := make(StatusPolicy, len(p))
	for k, v := range p {
		out[k] = append([]int(nil), v...)
	}
	return out
}

// Classify turns a raw API response into its decoded JSON mapping or a
// *ResponseError. A successful empty body yields a nil map.
func Classify(policy StatusPolicy, method string, status int, body []byte) (map[string]any, error) {
	if policy == nil {
		policy = DefaultStatusPolicy()
	}
	method = strings.ToUpper(method)
	if !policy.Allows(method, status) {
		return nil, &ResponseError{
			Method:     method,
			StatusCode: status,
			Message:    sfapi.ErrorMessage(status, body),
			Body:       body,
		}
	}
	out, err := sfapi.DecodeObject(body)
	if err != nil {
		return nil, fmt.Errorf("smartfile: %s: %w", method, err)
	}
	return out, nil
}
