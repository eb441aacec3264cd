package smartfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/smartfile/smartfile_sdk_go/internal/httpx"
)

// NewUser describes an account created through /users/add/.
type NewUser struct {
	Name     string
	Username string
	Password string
	Email    string
}

// Ping checks that the API is reachable. It is sent unsigned.
func (c *Client) Ping(ctx context.Context) (map[string]any, error) {
	return c.call(ctx, http.MethodGet, "/ping/", nil, nil)
}

// Info returns metadata for remotePath. With children set the listing of a
// directory's entries is included.
func (c *Client) Info(ctx context.Context, remotePath string, children bool) (map[string]any, error) {
	var params map[string]any
	if children {
		params = map[string]any{"children": "on"}
	}
	return c.Get(ctx, "/path/info/"+escapeRemote(remotePath), params)
}

// Mkdir creates a remote directory.
func (c *Client) Mkdir(ctx context.Context, remotePath string) (map[string]any, error) {
	if strings.TrimSpace(remotePath) == "" {
		return nil, fmt.Errorf("smartfile: path is required")
	}
	return c.Post(ctx, "/path/oper/create/", map[string]any{"path": remotePath})
}

// Upload sends the local file to the account root.
func (c *Client) Upload(ctx context.Context, localPath string) (map[string]any, error) {
	return c.UploadTo(ctx, localPath, "")
}

// UploadTo sends the local file into remoteDir as a multipart body. The part
// is named after the file's base name.
func (c *Client) UploadTo(ctx context.Context, localPath, remoteDir string) (map[string]any, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("smartfile: open upload: %w", err)
	}
	defer f.Close()

	name := filepath.Base(localPath)
	body, err := httpx.NewMultipartBody(name, name, f)
	if err != nil {
		return nil, fmt.Errorf("smartfile: %w", err)
	}

	target := "/path/data/"
	if dir := escapeRemote(remoteDir); dir != "" {
		target += dir + "/"
	}
	return c.send(ctx, &httpx.Request{
		Method: http.MethodPost,
		Path:   target,
		Header: http.Header{"Content-Type": {body.ContentType}},
		Body:   body.Reader(),
		GetBody: func() (io.ReadCloser, error) {
			return io.NopCloser(body.Reader()), nil
		},
		Signer: c.auth,
	})
}

// Download fetches remotePath into the download directory under its base
// name, overwriting any existing file. Nothing is written when the API
// reports a failure. It returns the local path.
func (c *Client) Download(ctx context.Context, remotePath string) (string, error) {
	name := path.Base(strings.Trim(remotePath, "/"))
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("smartfile: remote path %q has no file name", remotePath)
	}
	resp, err := c.open(ctx, "/path/data/"+escapeRemote(remotePath))
	if err != nil {
		return "", err
	}

	local := filepath.Join(c.downloadDir, name)
	f, err := os.Create(local)
	if err != nil {
		resp.Body.Close()
		return "", fmt.Errorf("smartfile: create %s: %w", local, err)
	}
	n, err := copyBody(f, resp)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("smartfile: close %s: %w", local, cerr)
	}
	if err != nil {
		return "", err
	}
	c.log.DebugWith("smartfile: downloaded", map[string]interface{}{
		"remote": remotePath,
		"local":  local,
		"bytes":  n,
	})
	return local, nil
}

// DownloadTo streams remotePath into w and returns the byte count.
func (c *Client) DownloadTo(ctx context.Context, remotePath string, w io.Writer) (int64, error) {
	if w == nil {
		return 0, errors.New("smartfile: writer is nil")
	}
	resp, err := c.open(ctx, "/path/data/"+escapeRemote(remotePath))
	if err != nil {
		return 0, err
	}
	return copyBody(w, resp)
}

// Move moves src to the dst directory.
func (c *Client) Move(ctx context.Context, src, dst string) (map[string]any, error) {
	return c.Post(ctx, "/path/oper/move/", map[string]any{"src": src, "dst": dst})
}

// Remove deletes one or more remote paths.
func (c *Client) Remove(ctx context.Context, paths ...string) (map[string]any, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("smartfile: at least one path is required")
	}
	var field any = paths
	if len(paths) == 1 {
		field = paths[0]
	}
	return c.Post(ctx, "/path/oper/remove/", map[string]any{"path": field})
}

// CreateUser adds a user to the account.
func (c *Client) CreateUser(ctx context.Context, u NewUser) (map[string]any, error) {
	return c.Post(ctx, "/users/add/", map[string]any{
		"name":     u.Name,
		"username": u.Username,
		"password": u.Password,
		"email":    u.Email,
	})
}

// escapeRemote percent-encodes each segment of a remote path and drops the
// leading and trailing slashes.
func escapeRemote(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
