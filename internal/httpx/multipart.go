package httpx

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/google/uuid"
)

const boundaryPrefix = "----------------------------"

// MultipartBody is a buffered multipart/form-data payload carrying one file.
type MultipartBody struct {
	ContentType string
	Data        []byte
}

// Reader returns a fresh reader over the encoded payload.
func (m *MultipartBody) Reader() *bytes.Reader {
	return bytes.NewReader(m.Data)
}

// NewMultipartBody encodes content as a single file part named field with
// the given filename and an application/octet-stream part type.
func NewMultipartBody(field, filename string, content io.Reader) (*MultipartBody, error) {
	if strings.TrimSpace(field) == "" {
		return nil, fmt.Errorf("httpx: multipart field name is required")
	}
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	if err := w.SetBoundary(newBoundary()); err != nil {
		return nil, fmt.Errorf("httpx: multipart boundary: %w", err)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(field), escapeQuotes(filename)))
	header.Set("Content-Type", "application/octet-stream")
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("httpx: multipart part: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("httpx: multipart copy: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("httpx: multipart close: %w", err)
	}
	return &MultipartBody{
		ContentType: w.FormDataContentType(),
		Data:        buf.Bytes(),
	}, nil
}

func newBoundary() string {
	return boundaryPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
