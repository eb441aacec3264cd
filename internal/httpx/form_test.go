package httpx

import (
	"testing"
)

func TestEncodeForm(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]any
		want   string
	}{
		{name: "empty", fields: nil, want: ""},
		{name: "scalar", fields: map[string]any{"path": "/docs/reports"}, want: "path=%2Fdocs%2Freports"},
		{name: "list strips indices", fields: map[string]any{"tags": []string{"a", "b"}}, want: "tags=a&tags=b"},
		{name: "sorted keys", fields: map[string]any{"src": "/a", "dst": "/b"}, want: "dst=%2Fb&src=%2Fa"},
		{name: "nil skipped", fields: map[string]any{"name": "x", "email": nil}, want: "name=x"},
		{name: "bool", fields: map[string]any{"is_active": true, "admin": false}, want: "admin=0&is_active=1"},
		{name: "nested map", fields: map[string]any{"user": map[string]any{"name": "bob"}}, want: "user%5Bname%5D=bob"},
		{name: "int slice", fields: map[string]any{"ids": []int{3, 4}}, want: "ids=3&ids=4"},
		{name: "float", fields: map[string]any{"quota": 1.5}, want: "quota=1.5"},
		{name: "brackets in value kept", fields: map[string]any{"path": "/photo[1].jpg"}, want: "path=%2Fphoto%5B1%5D.jpg"},
		{name: "brackets in list item kept", fields: map[string]any{"path": []string{"/keep[2]", "/b"}}, want: "path=%2Fkeep%5B2%5D&path=%2Fb"},
		{name: "list under nested key", fields: map[string]any{"user": map[string]any{"groups": []string{"a", "b"}}}, want: "user%5Bgroups%5D=a&user%5Bgroups%5D=b"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := EncodeForm(tc.fields); got != tc.want {
				t.Fatalf("EncodeForm mismatch: want %q, got %q", tc.want, got)
			}
		})
	}
}

func TestFormValuesRepeatsListKey(t *testing.T) {
	values := FormValues(map[string]any{"path": []string{"/a.txt", "/b.txt"}})
	got := values["path"]
	if len(got) != 2 || got[0] != "/a.txt" || got[1] != "/b.txt" {
		t.Fatalf("unexpected values %v", got)
	}
}
