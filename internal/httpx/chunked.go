package httpx

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
)

// DefaultChunkSize is the chunk length used by EncodeChunked when none is given.
const DefaultChunkSize = 4096

// EncodeChunked frames data with HTTP/1.1 chunked transfer encoding: each
// chunk is a hex length, CRLF, the bytes and a CRLF, followed by the
// zero-length terminator chunk and the final CRLF.
func EncodeChunked(data []byte, chunkSize int) []byte {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	buf := &bytes.Buffer{}
	w := httputil.NewChunkedWriter(buf)
	for len(data) > 0 {
		n := chunkSize
		if n > len(data) {
			n = len(data)
		}
		// Writes to a bytes.Buffer cannot fail.
		_, _ = w.Write(data[:n])
		data = data[n:]
	}
	_ = w.Close()
	buf.WriteString("\r\n")
	return buf.Bytes()
}

// DecodeChunked reverses EncodeChunked. It fails on malformed framing or a
// stream that ends before the terminating zero-length chunk.
func DecodeChunked(raw []byte) ([]byte, error) {
	out, err := io.ReadAll(httputil.NewChunkedReader(bytes.NewReader(raw)))
	if err != nil {
		return nil, fmt.Errorf("httpx: decode chunked body: %w", err)
	}
	return out, nil
}

// ParseRawResponse splits a raw HTTP/1.1 response stream into status,
// headers and body. A chunked body is de-chunked.
func ParseRawResponse(raw []byte) (*Response, error) {
	if len(raw) == 0 {
		return nil, errors.New("httpx: empty response")
	}
	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(raw)), nil)
	if err != nil {
		return nil, fmt.Errorf("httpx: parse response: %w", err)
	}
	body, err := ReadAllAndClose(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpx: read response body: %w", err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}
