package sfapi

import (
	"encoding/json"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected string
	}{
		{
			name:     "structured field errors",
			status:   400,
			body:     `{"field_errors": {"path": ["This field is required."]}}`,
			expected: `{"field_errors":{"path":["This field is required."]}}`,
		},
		{
			name:     "string field errors",
			status:   400,
			body:     `{"field_errors":"bad request"}`,
			expected: "bad request",
		},
		{
			name:     "detail",
			status:   404,
			body:     `{"detail":"Not found."}`,
			expected: "Not found.",
		},
		{
			name:     "field errors beat detail",
			status:   400,
			body:     `{"detail":"ignored","field_errors":"used"}`,
			expected: "used",
		},
		{
			name:     "404 without detail",
			status:   404,
			body:     `{}`,
			expected: MessageNotFound,
		},
		{
			name:     "500 without detail",
			status:   500,
			body:     `{"other":1}`,
			expected: MessageServerError,
		},
		{
			name:     "non-object json",
			status:   502,
			body:     `[1,2]`,
			expected: MessageServerError,
		},
		{
			name:     "not json",
			status:   502,
			body:     `<html>Bad Gateway</html>`,
			expected: `<html>Bad Gateway</html>`,
		},
		{
			name:     "empty 404",
			status:   404,
			body:     ``,
			expected: MessageNotFound,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := ErrorMessage(tc.status, []byte(tc.body))
			if got != tc.expected {
				t.Fatalf("ErrorMessage mismatch: expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestDecodeObject(t *testing.T) {
	obj, err := DecodeObject([]byte(`{"ping":"pong"}`))
	if err != nil {
		t.Fatalf("DecodeObject returned error: %v", err)
	}
	if obj["ping"] != "pong" {
		t.Fatalf("unexpected object %v", obj)
	}

	obj, err = DecodeObject([]byte(`[{"name":"a"}]`))
	if err != nil {
		t.Fatalf("DecodeObject returned error: %v", err)
	}
	list, ok := obj["result"].([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("expected wrapped list, got %v", obj)
	}

	obj, err = DecodeObject([]byte(`{"size":12}`))
	if err != nil {
		t.Fatalf("DecodeObject returned error: %v", err)
	}
	if n, ok := obj["size"].(json.Number); !ok || n.String() != "12" {
		t.Fatalf("expected json.Number, got %T %v", obj["size"], obj["size"])
	}

	obj, err = DecodeObject([]byte("  "))
	if err != nil || obj != nil {
		t.Fatalf("expected nil for empty body, got %v %v", obj, err)
	}

	if _, err := DecodeObject([]byte(`{"broken":`)); err == nil {
		t.Fatalf("expected error for invalid json")
	}
}

func TestParseTokenBody(t *testing.T) {
	token, secret, err := ParseTokenBody([]byte("oauth_token=abc&oauth_token_secret=s%26t\n"))
	if err != nil {
		t.Fatalf("ParseTokenBody returned error: %v", err)
	}
	if token != "abc" || secret != "s&t" {
		t.Fatalf("unexpected pair %q %q", token, secret)
	}

	if _, _, err := ParseTokenBody([]byte("oauth_token=abc")); err == nil {
		t.Fatalf("expected error when secret is missing")
	}
}
