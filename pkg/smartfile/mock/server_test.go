package mock_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smartfile/smartfile_sdk_go/internal/httpx"
	"github.com/smartfile/smartfile_sdk_go/pkg/smartfile/mock"
)

func newServer(t *testing.T, opts mock.Options) (*mock.Server, *httptest.Server) {
	t.Helper()
	m := mock.New(opts)
	srv := httptest.NewServer(m)
	t.Cleanup(srv.Close)
	return m, srv
}

func doForm(t *testing.T, method, target, auth string, form url.Values) (int, []byte) {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, target, body)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, data
}

const basicAuth = "Basic YWJjOmRlZg==" // abc:def

func TestPingNeedsNoAuth(t *testing.T) {
	_, srv := newServer(t, mock.Options{})
	status, body := doForm(t, http.MethodGet, srv.URL+"/api/2/ping/", "", nil)
	if status != http.StatusOK {
		t.Fatalf("unexpected status %d", status)
	}
	var payload map[string]string
	if err := json.Unmarshal(body, &payload); err != nil || payload["ping"] != "pong" {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestRequiresCredentials(t *testing.T) {
	_, srv := newServer(t, mock.Options{Key: "abc", Password: "def"})

	status, _ := doForm(t, http.MethodGet, srv.URL+"/api/2/path/info/", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", status)
	}
	status, _ = doForm(t, http.MethodGet, srv.URL+"/api/2/path/info/", "Basic d3Jvbmc6d3Jvbmc=", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong credentials, got %d", status)
	}
	status, _ = doForm(t, http.MethodGet, srv.URL+"/api/2/path/info/", basicAuth, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 with valid credentials, got %d", status)
	}
}

func TestFileOperations(t *testing.T) {
	m, srv := newServer(t, mock.Options{Key: "abc", Password: "def"})
	if err := m.Seed([]mock.SeedEntry{
		{Path: "/docs/report.txt", Content: "numbers"},
		{Path: "/archive", Dir: true},
	}); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	api := srv.URL + "/api/2"

	status, body := doForm(t, http.MethodGet, api+"/path/info/docs?children=on", basicAuth, nil)
	if status != http.StatusOK {
		t.Fatalf("info: unexpected status %d: %s", status, body)
	}
	var info mock.EntryInfo
	if err := json.Unmarshal(body, &info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if !info.IsDir || len(info.Children) != 1 || info.Children[0].Name != "report.txt" || info.Children[0].Size != 7 {
		t.Fatalf("unexpected info %+v", info)
	}

	status, body = doForm(t, http.MethodPost, api+"/path/oper/create/", basicAuth, url.Values{"path": {"/new/nested"}})
	if status != http.StatusCreated || !m.Exists("/new/nested") {
		t.Fatalf("create: unexpected status %d: %s", status, body)
	}

	status, body = doForm(t, http.MethodPost, api+"/path/oper/move/", basicAuth, url.Values{"src": {"/docs/report.txt"}, "dst": {"/archive"}})
	if status != http.StatusOK {
		t.Fatalf("move: unexpected status %d: %s", status, body)
	}
	if data, ok := m.File("/archive/report.txt"); !ok || string(data) != "numbers" {
		t.Fatalf("moved file missing")
	}
	if m.Exists("/docs/report.txt") {
		t.Fatalf("source still present after move")
	}

	status, body = doForm(t, http.MethodPost, api+"/path/oper/remove/", basicAuth, url.Values{"path": {"/archive", "/new"}})
	if status != http.StatusOK {
		t.Fatalf("remove: unexpected status %d: %s", status, body)
	}
	if m.Exists("/archive/report.txt") || m.Exists("/new/nested") {
		t.Fatalf("remove left entries behind")
	}
}

func TestErrorBodies(t *testing.T) {
	_, srv := newServer(t, mock.Options{Key: "abc", Password: "def"})
	api := srv.URL + "/api/2"

	status, body := doForm(t, http.MethodGet, api+"/path/info/missing", basicAuth, nil)
	if status != http.StatusNotFound || !strings.Contains(string(body), `"detail":"Not found."`) {
		t.Fatalf("unexpected 404 body %d %s", status, body)
	}

	status, body = doForm(t, http.MethodPost, api+"/path/oper/create/", basicAuth, url.Values{})
	if status != http.StatusBadRequest || !strings.Contains(string(body), `"field_errors"`) {
		t.Fatalf("unexpected 400 body %d %s", status, body)
	}
}

func TestAddUserConflict(t *testing.T) {
	m, srv := newServer(t, mock.Options{Key: "abc", Password: "def"})
	form := url.Values{"name": {"Bob"}, "username": {"bob"}, "password": {"pw"}, "email": {"bob@example.com"}}

	status, _ := doForm(t, http.MethodPost, srv.URL+"/api/2/users/add/", basicAuth, form)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	status, body := doForm(t, http.MethodPost, srv.URL+"/api/2/users/add/", basicAuth, form)
	if status != http.StatusBadRequest || !strings.Contains(string(body), "already exists") {
		t.Fatalf("expected conflict, got %d %s", status, body)
	}
	if users := m.Users(); len(users) != 1 || users[0].Email != "bob@example.com" {
		t.Fatalf("unexpected users %+v", users)
	}
}

func TestDownloadIsChunkedOnTheWire(t *testing.T) {
	m, srv := newServer(t, mock.Options{Key: "abc", Password: "def", ChunkSize: 1000})
	payload := bytes.Repeat([]byte("0123456789"), 1000)
	if err := m.Seed([]mock.SeedEntry{{Path: "/big.bin", Content: string(payload)}}); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	addr := strings.TrimPrefix(srv.URL, "http://")
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	request := "GET /api/2/path/data/big.bin HTTP/1.1\r\n" +
		"Host: " + addr + "\r\n" +
		"Authorization: " + basicAuth + "\r\n" +
		"Connection: close\r\n\r\n"
	if _, err := io.WriteString(conn, request); err != nil {
		t.Fatalf("write request: %v", err)
	}
	raw, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if !bytes.Contains(raw, []byte("Transfer-Encoding: chunked")) {
		head, _, _ := bytes.Cut(raw, []byte("\r\n\r\n"))
		t.Fatalf("expected chunked response, got headers %q", head)
	}

	resp, err := httpx.ParseRawResponse(raw)
	if err != nil {
		t.Fatalf("ParseRawResponse: %v", err)
	}
	if resp.StatusCode != http.StatusOK || !bytes.Equal(resp.Body, payload) {
		t.Fatalf("decoded body mismatch: status %d, %d bytes", resp.StatusCode, len(resp.Body))
	}
}

func TestOAuthHandshake(t *testing.T) {
	m, srv := newServer(t, mock.Options{ClientToken: "ct", ClientSecret: "cs"})

	status, body := doForm(t, http.MethodPost, srv.URL+"/oauth/request_token/", "", url.Values{
		"oauth_version":          {"1.0"},
		"oauth_nonce":            {"n1"},
		"oauth_timestamp":        {"1"},
		"oauth_consumer_key":     {"ct"},
		"oauth_signature_method": {"PLAINTEXT"},
		"oauth_signature":        {"cs&"},
	})
	if status != http.StatusOK {
		t.Fatalf("request token: %d %s", status, body)
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		t.Fatalf("parse token body: %v", err)
	}
	token, secret := values.Get("oauth_token"), values.Get("oauth_token_secret")

	verifier, err := m.Authorize(token)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}

	status, body = doForm(t, http.MethodPost, srv.URL+"/oauth/access_token/", "", url.Values{
		"oauth_version":          {"1.0"},
		"oauth_nonce":            {"n2"},
		"oauth_timestamp":        {"2"},
		"oauth_consumer_key":     {"ct"},
		"oauth_signature_method": {"PLAINTEXT"},
		"oauth_token":            {token},
		"oauth_verifier":         {verifier},
		"oauth_signature":        {"cs&" + secret},
	})
	if status != http.StatusOK {
		t.Fatalf("access token: %d %s", status, body)
	}
	values, _ = url.ParseQuery(string(body))
	access, accessSecret := values.Get("oauth_token"), values.Get("oauth_token_secret")

	header := `OAuth oauth_consumer_key="ct",oauth_token="` + access + `",oauth_nonce="n3",oauth_timestamp="3",oauth_signature_method="PLAINTEXT",oauth_version="1.0",oauth_signature="cs&` + accessSecret + `"`
	status, _ = doForm(t, http.MethodGet, srv.URL+"/api/2/path/info/", header, nil)
	if status != http.StatusOK {
		t.Fatalf("signed request rejected: %d", status)
	}

	// Replayed nonce.
	status, _ = doForm(t, http.MethodGet, srv.URL+"/api/2/path/info/", header, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected replay to be rejected, got %d", status)
	}
}

func TestOAuthRejectsBadSignature(t *testing.T) {
	_, srv := newServer(t, mock.Options{ClientToken: "ct", ClientSecret: "cs"})
	status, body := doForm(t, http.MethodPost, srv.URL+"/oauth/request_token/", "", url.Values{
		"oauth_nonce":            {"n1"},
		"oauth_consumer_key":     {"ct"},
		"oauth_signature_method": {"PLAINTEXT"},
		"oauth_signature":        {"wrong&"},
	})
	if status != http.StatusUnauthorized || string(body) != "Could not verify OAuth request." {
		t.Fatalf("unexpected rejection %d %q", status, body)
	}
}

func TestParseOAuthHeader(t *testing.T) {
	got := mock.ParseOAuthHeader(`OAuth oauth_consumer_key="ck",oauth_token="tk",oauth_signature="a&b"`)
	if got["oauth_consumer_key"] != "ck" || got["oauth_token"] != "tk" || got["oauth_signature"] != "a&b" {
		t.Fatalf("unexpected params %v", got)
	}
	got = mock.ParseOAuthHeader(`OAuth oauth_consumer_key="c%2C%22k%22",oauth_signature="s%25e&a%26b"`)
	if got["oauth_consumer_key"] != `c,"k"` || got["oauth_signature"] != "s%e&a&b" {
		t.Fatalf("values not decoded: %v", got)
	}
	if len(mock.ParseOAuthHeader("Basic xyz")) != 0 {
		t.Fatalf("expected no params for non-OAuth header")
	}
}

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	doc := `
files:
  - path: /docs
    dir: true
  - path: /docs/hello.txt
    content: hello
  - path: /bin/data.bin
    base64: AAEC
users:
  - username: alice
    name: Alice
    email: alice@example.com
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	seed, err := mock.LoadSeed(path)
	if err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}
	m := mock.New(mock.Options{})
	if err := m.ApplySeed(seed); err != nil {
		t.Fatalf("ApplySeed: %v", err)
	}
	if data, ok := m.File("/docs/hello.txt"); !ok || string(data) != "hello" {
		t.Fatalf("seeded text file missing")
	}
	if data, ok := m.File("/bin/data.bin"); !ok || !bytes.Equal(data, []byte{0, 1, 2}) {
		t.Fatalf("seeded binary file mismatch: %v", data)
	}
	if users := m.Users(); len(users) != 1 || users[0].Username != "alice" {
		t.Fatalf("unexpected users %+v", users)
	}
}
