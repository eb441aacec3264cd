package mock

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// rejectedBody is what the API sends for any OAuth verification failure.
const rejectedBody = "Could not verify OAuth request."

type requestToken struct {
	secret   string
	callback string
	verifier string // set once authorized
}

var errUnknownToken = errors.New("unknown request token")

func newTokenValue() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Authorize approves a pending request token the way a user would on the
// authorization page, and returns the verifier to pass to AccessToken.
func (s *Server) Authorize(token string) (string, error) {
	verifier, _, err := s.authorize(token)
	return verifier, err
}

func (s *Server) authorize(token string) (verifier, callback string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.requestTokens[token]
	if !ok {
		return "", "", errUnknownToken
	}
	if rt.verifier == "" {
		rt.verifier = newTokenValue()[:16]
	}
	return rt.verifier, rt.callback, nil
}

// IssueAccessToken registers an access pair directly, skipping the handshake.
func (s *Server) IssueAccessToken() (token, secret string) {
	token, secret = newTokenValue(), newTokenValue()
	s.mu.Lock()
	s.accessTokens[token] = secret
	s.mu.Unlock()
	return token, secret
}

func (s *Server) handleRequestToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.oauthEnabled() ||
		!equal(r.PostForm.Get("oauth_consumer_key"), s.opts.ClientToken) ||
		r.PostForm.Get("oauth_signature_method") != "PLAINTEXT" ||
		!equal(r.PostForm.Get("oauth_signature"), s.opts.ClientSecret+"&") ||
		!s.freshNonce(r.PostForm.Get("oauth_nonce")) {
		writeText(w, http.StatusUnauthorized, rejectedBody)
		return
	}

	token, secret := newTokenValue(), newTokenValue()
	s.mu.Lock()
	s.requestTokens[token] = &requestToken{secret: secret, callback: r.PostForm.Get("callback_uri")}
	s.mu.Unlock()

	writeText(w, http.StatusOK, url.Values{
		"oauth_token":        {token},
		"oauth_token_secret": {secret},
	}.Encode())
}

// handleAuthorize stands in for the interactive approval page: it approves
// the token immediately. With a callback the user agent is redirected to it,
// otherwise the verifier is shown in the body.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("oauth_token")
	verifier, callback, err := s.authorize(token)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Invalid request token."})
		return
	}

	values := url.Values{"oauth_token": {token}, "oauth_verifier": {verifier}}
	if callback != "" {
		sep := "?"
		if strings.Contains(callback, "?") {
			sep = "&"
		}
		http.Redirect(w, r, callback+sep+values.Encode(), http.StatusFound)
		return
	}
	writeText(w, http.StatusOK, values.Encode())
}

func (s *Server) handleAccessToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}
	token := r.PostForm.Get("oauth_token")
	fresh := s.freshNonce(r.PostForm.Get("oauth_nonce"))

	s.mu.Lock()
	rt, ok := s.requestTokens[token]
	valid := ok && fresh && s.oauthEnabled() &&
		rt.verifier != "" &&
		equal(r.PostForm.Get("oauth_verifier"), rt.verifier) &&
		equal(r.PostForm.Get("oauth_consumer_key"), s.opts.ClientToken) &&
		r.PostForm.Get("oauth_signature_method") == "PLAINTEXT" &&
		equal(r.PostForm.Get("oauth_signature"), s.opts.ClientSecret+"&"+rt.secret)
	var access, secret string
	if valid {
		delete(s.requestTokens, token)
		access, secret = newTokenValue(), newTokenValue()
		s.accessTokens[access] = secret
	}
	s.mu.Unlock()

	if !valid {
		writeText(w, http.StatusUnauthorized, rejectedBody)
		return
	}
	writeText(w, http.StatusOK, url.Values{
		"oauth_token":        {access},
		"oauth_token_secret": {secret},
	}.Encode())
}

// authenticate checks the Authorization header of an API request.
func (s *Server) authenticate(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	switch {
	case strings.HasPrefix(header, "Basic "):
		if s.opts.Key == "" {
			return false
		}
		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, "Basic "))
		if err != nil {
			return false
		}
		key, pass, ok := strings.Cut(string(raw), ":")
		return ok && equal(key, s.opts.Key) && equal(pass, s.opts.Password)
	case strings.HasPrefix(header, "OAuth "):
		if !s.oauthEnabled() {
			return false
		}
		params := ParseOAuthHeader(header)
		s.mu.RLock()
		secret, ok := s.accessTokens[params["oauth_token"]]
		s.mu.RUnlock()
		return ok &&
			equal(params["oauth_consumer_key"], s.opts.ClientToken) &&
			params["oauth_signature_method"] == "PLAINTEXT" &&
			params["oauth_version"] == "1.0" &&
			params["oauth_timestamp"] != "" &&
			equal(params["oauth_signature"], s.opts.ClientSecret+"&"+secret) &&
			s.freshNonce(params["oauth_nonce"])
	}
	return false
}

// ParseOAuthHeader splits an `OAuth k="v",k="v"` header into its
// parameters and percent-decodes each value. A value that does not decode is
// kept as written.
func ParseOAuthHeader(header string) map[string]string {
	out := make(map[string]string)
	rest, ok := strings.CutPrefix(header, "OAuth ")
	if !ok {
		return out
	}
	for _, part := range strings.Split(rest, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		v = strings.Trim(v, `"`)
		if decoded, err := url.PathUnescape(v); err == nil {
			v = decoded
		}
		out[k] = v
	}
	return out
}

// freshNonce records nonce and reports whether it had not been seen.
func (s *Server) freshNonce(nonce string) bool {
	if nonce == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.nonces[nonce]; seen {
		return false
	}
	s.nonces[nonce] = struct{}{}
	return true
}

func (s *Server) oauthEnabled() bool {
	return s.opts.ClientToken != "" && s.opts.ClientSecret != ""
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
