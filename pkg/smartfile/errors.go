package smartfile

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/smartfile/smartfile_sdk_go/internal/httpx"
)

// TransportError reports that no HTTP response was received: connection
// refused, DNS failure or connect timeout.
type TransportError = httpx.TransportError

// ResponseError reports a status the API does not treat as success for the
// request method.
type ResponseError struct {
	Method     string
	StatusCode int
	// Message is the best-effort text extracted from the response body.
	Message string
	Body    []byte
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("smartfile: %s returned %d: %s", e.Method, e.StatusCode, e.Message)
}

// AuthError reports an OAuth step invoked out of order, missing credentials,
// or a rejection by the server.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("smartfile: oauth %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

var (
	// ErrNoClientCredentials means the OAuth client token or secret is empty.
	ErrNoClientCredentials = errors.New("client token and secret are required")
	// ErrNoRequestToken means the step needs a request token that is not held.
	ErrNoRequestToken = errors.New("no request token; call RequestToken first")
	// ErrNoAccessToken means requests cannot be signed yet.
	ErrNoAccessToken = errors.New("no access token; complete the OAuth handshake first")
	// ErrOAuthRejected means the server answered "Could not verify OAuth request."
	ErrOAuthRejected = errors.New("could not verify OAuth request")
)

// IsTransport reports whether err is a connection-level failure.
func IsTransport(err error) bool {
	var e *TransportError
	return errors.As(err, &e)
}

// IsResponse reports whether err carries a non-success API status.
func IsResponse(err error) bool {
	var e *ResponseError
	return errors.As(err, &e)
}

// IsAuth reports whether err came from the OAuth authenticator.
func IsAuth(err error) bool {
	var e *AuthError
	return errors.As(err, &e)
}

// IsNotFound reports whether the API answered 404.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// StatusCode returns the HTTP status attached to err, or 0.
func StatusCode(err error) int {
	var e *ResponseError
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}
