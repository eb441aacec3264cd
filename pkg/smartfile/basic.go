package smartfile

import (
	"encoding/base64"
	"net/http"
)

// Authenticator adds credentials to an outbound request.
type Authenticator interface {
	Sign(req *http.Request) error
}

// BasicAuth signs requests with an API key and password.
type BasicAuth struct {
	Key      string
	Password string
}

// Header returns the Authorization header value.
func (a BasicAuth) Header() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(a.Key+":"+a.Password))
}

func (a BasicAuth) Sign(req *http.Request) error {
	req.Header.Set("Authorization", a.Header())
	return nil
}
