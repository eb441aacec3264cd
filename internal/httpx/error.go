package httpx

import (
	"fmt"
)

// TransportError reports that a request never produced an HTTP response:
// connection refused, DNS failure, dial timeout, or a broken read.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("transport error: %s %s: %v", e.Method, e.URL, e.Err)
}

// Unwrap exposes the underlying network error.
func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Timeout reports whether the failure was a timeout.
func (e *TransportError) Timeout() bool {
	if e == nil {
		return false
	}
	t, ok := e.Err.(interface{ Timeout() bool })
	return ok && t.Timeout()
}
