package sfapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

const (
	// MessageNotFound is reported for a 404 whose body carries no detail.
	MessageNotFound = "Invalid URL, check your API path"
	// MessageServerError is reported for any other failure without detail.
	MessageServerError = "Server error; check response for errors"
)

// ErrorMessage extracts a human-readable message from a failed API response.
//
// A "field_errors" member wins: when it holds structured data the whole
// payload is re-serialized so every field is visible, otherwise the string is
// used as-is. Next comes "detail". A JSON body carrying neither falls back to
// a fixed message chosen by status. A body that is not JSON is returned
// verbatim.
func ErrorMessage(status int, body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return fallbackMessage(status)
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		var other any
		if json.Unmarshal(trimmed, &other) == nil {
			// Valid JSON but not an object.
			return fallbackMessage(status)
		}
		return string(body)
	}

	if raw, ok := payload["field_errors"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s != "" {
				return s
			}
		} else if compact, err := compactJSON(trimmed); err == nil {
			return compact
		}
	}
	if raw, ok := payload["detail"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s != "" {
				return s
			}
		} else if len(raw) > 0 && string(raw) != "null" {
			return string(raw)
		}
	}
	return fallbackMessage(status)
}

func fallbackMessage(status int) string {
	if status == http.StatusNotFound {
		return MessageNotFound
	}
	return MessageServerError
}

func compactJSON(data []byte) (string, error) {
	buf := &bytes.Buffer{}
	if err := json.Compact(buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// DecodeObject parses a successful response body. An empty body yields nil.
// A JSON object is returned as a map; any other JSON value is wrapped as
// {"result": value}.
func DecodeObject(body []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var v any
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("sfapi: decode response: %w", err)
	}
	if obj, ok := v.(map[string]any); ok {
		return obj, nil
	}
	return map[string]any{"result": v}, nil
}

// ParseTokenBody reads oauth_token and oauth_token_secret from a
// form-encoded token endpoint response.
func ParseTokenBody(body []byte) (token, secret string, err error) {
	values, err := url.ParseQuery(string(bytes.TrimSpace(body)))
	if err != nil {
		return "", "", fmt.Errorf("sfapi: parse token response: %w", err)
	}
	token = values.Get("oauth_token")
	secret = values.Get("oauth_token_secret")
	if token == "" || secret == "" {
		return "", "", errors.New("sfapi: token response missing oauth_token or oauth_token_secret")
	}
	return token, secret, nil
}
