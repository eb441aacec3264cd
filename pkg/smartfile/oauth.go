package smartfile

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/garyburd/go-oauth/oauth"

	"github.com/smartfile/smartfile_sdk_go/internal/httpx"
	"github.com/smartfile/smartfile_sdk_go/internal/sfapi"
)

const (
	requestTokenPath = "/oauth/request_token/"
	authorizePath    = "/oauth/authorize/"
	accessTokenPath  = "/oauth/access_token/"

	rejectedBody = "Could not verify OAuth request."
)

// OAuthState is the position of an OAuth authenticator in the three-legged
// handshake.
type OAuthState int

const (
	StateUnauthenticated OAuthState = iota
	StateHasRequestToken
	StateHasAccessToken
)

func (s OAuthState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateHasRequestToken:
		return "has_request_token"
	case StateHasAccessToken:
		return "has_access_token"
	default:
		return "unknown"
	}
}

// OAuth performs the PLAINTEXT OAuth 1.0a handshake and signs requests once
// an access token is held. The token field holds the request pair in
// StateHasRequestToken and the access pair in StateHasAccessToken.
type OAuth struct {
	mu     sync.Mutex
	client oauth.Client
	state  OAuthState
	token  oauth.Credentials

	base      string
	transport *httpx.Client
	policy    StatusPolicy
	now       func() time.Time
	nonce     func() string
}

func newOAuth(transport *httpx.Client, baseURL, clientToken, clientSecret string, policy StatusPolicy) *OAuth {
	base := strings.TrimRight(baseURL, "/")
	return &OAuth{
		client: oauth.Client{
			Credentials:                   oauth.Credentials{Token: clientToken, Secret: clientSecret},
			TemporaryCredentialRequestURI: base + requestTokenPath,
			ResourceOwnerAuthorizationURI: base + authorizePath,
			TokenRequestURI:               base + accessTokenPath,
		},
		base:      base,
		transport: transport,
		policy:    policy,
		now:       time.Now,
		nonce:     newNonce,
	}
}

// State returns the current handshake state.
func (o *OAuth) State() OAuthState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Credentials returns the access token pair so the caller can persist it.
// ok is false until the handshake has completed.
func (o *OAuth) Credentials() (token oauth.Credentials, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateHasAccessToken {
		return oauth.Credentials{}, false
	}
	return o.token, true
}

// SetAccessToken installs a previously persisted access pair.
func (o *OAuth) SetAccessToken(token, secret string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.token = oauth.Credentials{Token: token, Secret: secret}
	o.state = StateHasAccessToken
}

// RequestToken obtains a request token. callbackURL is optional. Any token
// held before the call is discarded on success.
func (o *OAuth) RequestToken(ctx context.Context, callbackURL string) error {
	consumer := o.client.Credentials
	if consumer.Token == "" || consumer.Secret == "" {
		return &AuthError{Op: "request token", Err: ErrNoClientCredentials}
	}

	var form orderedForm
	if callbackURL != "" {
		form.add("callback_uri", callbackURL)
	}
	o.addProtocolParams(&form, consumer.Token)
	form.add("oauth_signature", consumer.Secret+"&")

	pair, err := o.exchange(ctx, "request token", o.client.TemporaryCredentialRequestURI, form)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.token = pair
	o.state = StateHasRequestToken
	o.mu.Unlock()
	return nil
}

// AuthorizationURL returns the page the user must visit to approve the
// request token. It performs no I/O.
func (o *OAuth) AuthorizationURL() (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateHasRequestToken {
		return "", &AuthError{Op: "authorization url", Err: ErrNoRequestToken}
	}
	pending := o.token
	return o.client.AuthorizationURL(&pending, nil), nil
}

// AccessToken exchanges the approved request token and verifier for an
// access token.
func (o *OAuth) AccessToken(ctx context.Context, verifier string) error {
	o.mu.Lock()
	if o.state != StateHasRequestToken {
		o.mu.Unlock()
		return &AuthError{Op: "access token", Err: ErrNoRequestToken}
	}
	pending := o.token
	o.mu.Unlock()

	consumer := o.client.Credentials
	var form orderedForm
	o.addProtocolParams(&form, consumer.Token)
	form.add("oauth_token", pending.Token)
	form.add("oauth_verifier", verifier)
	// The ampersand goes on the wire percent-encoded.
	form.addRaw("oauth_signature", url.QueryEscape(consumer.Secret)+"%26"+url.QueryEscape(pending.Secret))

	pair, err := o.exchange(ctx, "access token", o.client.TokenRequestURI, form)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.token = pair
	o.state = StateHasAccessToken
	o.mu.Unlock()
	return nil
}

// Sign adds the PLAINTEXT OAuth Authorization header. It fails until an
// access token is held. Every value is percent-encoded; the signature keeps
// its literal "&" between the two encoded secrets.
func (o *OAuth) Sign(req *http.Request) error {
	o.mu.Lock()
	state, access := o.state, o.token
	o.mu.Unlock()
	if state != StateHasAccessToken {
		return &AuthError{Op: "sign", Err: ErrNoAccessToken}
	}
	consumer := o.client.Credentials
	req.Header.Set("Authorization", fmt.Sprintf(
		`OAuth oauth_consumer_key="%s",oauth_token="%s",oauth_nonce="%s",oauth_timestamp="%d",oauth_signature_method="PLAINTEXT",oauth_version="1.0",oauth_signature="%s&%s"`,
		headerEscape(consumer.Token), headerEscape(access.Token), headerEscape(o.nonce()), o.now().Unix(),
		headerEscape(consumer.Secret), headerEscape(access.Secret),
	))
	return nil
}

// headerEscape percent-encodes everything outside the RFC 3986 unreserved set.
func headerEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func (o *OAuth) addProtocolParams(form *orderedForm, consumerKey string) {
	form.add("oauth_version", "1.0")
	form.add("oauth_nonce", o.nonce())
	form.add("oauth_timestamp", strconv.FormatInt(o.now().Unix(), 10))
	form.add("oauth_consumer_key", consumerKey)
	form.add("oauth_signature_method", "PLAINTEXT")
}

func (o *OAuth) exchange(ctx context.Context, op, endpoint string, form orderedForm) (oauth.Credentials, error) {
	body := []byte(form.encode())
	resp, err := o.transport.Send(ctx, &httpx.Request{
		Method: http.MethodPost,
		Path:   endpoint,
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return oauth.Credentials{}, err
	}
	if strings.TrimSpace(string(resp.Body)) == rejectedBody {
		return oauth.Credentials{}, &AuthError{Op: op, Err: ErrOAuthRejected}
	}
	if !o.policy.Allows(http.MethodPost, resp.StatusCode) {
		return oauth.Credentials{}, &AuthError{Op: op, Err: &ResponseError{
			Method:     http.MethodPost,
			StatusCode: resp.StatusCode,
			Message:    sfapi.ErrorMessage(resp.StatusCode, resp.Body),
			Body:       resp.Body,
		}}
	}
	token, secret, err := sfapi.ParseTokenBody(resp.Body)
	if err != nil {
		return oauth.Credentials{}, &AuthError{Op: op, Err: err}
	}
	return oauth.Credentials{Token: token, Secret: secret}, nil
}

// orderedForm is a form body whose parameters keep insertion order.
type orderedForm struct {
	pairs []string
}

func (f *orderedForm) add(key, value string) {
	f.pairs = append(f.pairs, url.QueryEscape(key)+"="+url.QueryEscape(value))
}

// addRaw appends a value that is already form-encoded.
func (f *orderedForm) addRaw(key, encoded string) {
	f.pairs = append(f.pairs, url.QueryEscape(key)+"="+encoded)
}

func (f *orderedForm) encode() string {
	return strings.Join(f.pairs, "&")
}
