package memory

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseEmbedding(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		wantLen int
		wantNil bool
	}{
		{"float64 slice", []float64{1, 0, 0}, 3, false},
		{"float32 slice", []float32{0.5, 0.5}, 2, false},
		{"any slice of numbers", []any{float64(1), float64(2)}, 2, false},
		{"any slice with int", []any{1, 2, 3}, 3, false},
		{"json string", "[0.1, 0.2, 0.3]", 3, false},
		{"json bytes", []byte("[1,2]"), 2, false},
		{"raw message", json.RawMessage("[4,5,6]"), 3, false},
		{"nil", nil, 0, true},
		{"empty slice", []float64{}, 0, true},
		{"garbage string", "not an embedding", 0, true},
		{"json object", `{"a":1}`, 0, true},
		{"any slice with string", []any{"a", "b"}, 0, true},
		{"truncated json", "[1, 2,", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseEmbedding(tt.input)
			if tt.wantNil {
				if got != nil {
					t.Errorf("ParseEmbedding(%v) = %v, want nil", tt.input, got)
				}
				return
			}
			if len(got) != tt.wantLen {
				t.Errorf("ParseEmbedding(%v) len = %d, want %d", tt.input, len(got), tt.wantLen)
			}
		})
	}
}

func TestTitle(t *testing.T) {
	m := &Memory{Content: "Deployed v2.1 to production\nDetails: rolled out at noon."}
	if got := m.Title(); got != "Deployed v2.1 to production" {
		t.Errorf("Title() = %q", got)
	}

	long := &Memory{Content: "this is a deliberately very long first line that should be cut off at eighty characters to keep previews compact"}
	if got := long.Title(); len(got) > 80 {
		t.Errorf("Title() len = %d, want <= 80", len(got))
	}
}

func TestPreview(t *testing.T) {
	m := &Memory{Content: "short"}
	if got := m.Preview(100); got != "short" {
		t.Errorf("Preview() = %q", got)
	}

	m2 := &Memory{Content: "abcdefghij"}
	if got := m2.Preview(4); got != "abcd..." {
		t.Errorf("Preview() = %q", got)
	}
}

func TestHasEmbedding(t *testing.T) {
	cases := []struct {
		mem  Memory
		want bool
	}{
		{Memory{Embedding: []float64{1, 0, 0}}, true},
		{Memory{Embedding: []float64{0, 0, 0}}, false},
		{Memory{Embedding: nil}, false},
		{Memory{CreatedAt: time.Now()}, false},
	}
	for i, c := range cases {
		if got := c.mem.HasEmbedding(); got != c.want {
			t.Errorf("case %d: HasEmbedding() = %v, want %v", i, got, c.want)
		}
	}
}
