package memory

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a memory id does not exist in the source.
// This is the one hard failure relationship analysis surfaces to its caller.
var ErrNotFound = errors.New("memory not found")

// Memory is a single knowledge item. It is an immutable input to the
// engine — callers own the records, the engine never mutates them.
type Memory struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	Embedding  []float64      `json:"embedding,omitempty"`
	Type       string         `json:"memory_type"`
	Importance float64        `json:"importance_score"`
	CreatedAt  time.Time      `json:"created_at"`
	Tags       []string       `json:"tags,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Source is the injected data-access collaborator. The engine reads memory
// snapshots through it and performs no writes.
type Source interface {
	GetMemory(ctx context.Context, id string) (*Memory, error)
	GetCandidates(ctx context.Context, excludeID string, limit int) ([]Memory, error)
}

// Title returns the first line of the content, capped at 80 characters.
// Memories carry no separate title field; the first line stands in for one.
func (m *Memory) Title() string {
	line := m.Content
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)
	if len(line) > 80 {
		line = strings.TrimSpace(line[:80])
	}
	return line
}

// Preview returns the first n characters of content, cut at a rune boundary.
func (m *Memory) Preview(n int) string {
	runes := []rune(m.Content)
	if len(runes) <= n {
		return m.Content
	}
	return string(runes[:n]) + "..."
}

// ParseEmbedding coerces the many shapes an embedding arrives in — []float64,
// []float32, []any of numbers, a JSON-encoded string, or raw JSON bytes —
// into a []float64. Returns nil for anything unparseable so a single bad
// candidate can be skipped instead of failing a whole comparison batch.
func ParseEmbedding(v any) []float64 {
	switch e := v.(type) {
	case nil:
		return nil
	case []float64:
		if len(e) == 0 {
			return nil
		}
		return e
	case []float32:
		if len(e) == 0 {
			return nil
		}
		out := make([]float64, len(e))
		for i, f := range e {
			out[i] = float64(f)
		}
		return out
	case []any:
		out := make([]float64, 0, len(e))
		for _, raw := range e {
			switch n := raw.(type) {
			case float64:
				out = append(out, n)
			case float32:
				out = append(out, float64(n))
			case int:
				out = append(out, float64(n))
			case int64:
				out = append(out, float64(n))
			case json.Number:
				f, err := n.Float64()
				if err != nil {
					return nil
				}
				out = append(out, f)
			default:
				return nil
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case string:
		return parseEmbeddingJSON([]byte(e))
	case []byte:
		return parseEmbeddingJSON(e)
	case json.RawMessage:
		return parseEmbeddingJSON(e)
	default:
		return nil
	}
}

func parseEmbeddingJSON(data []byte) []float64 {
	s := strings.TrimSpace(string(data))
	if !strings.HasPrefix(s, "[") {
		return nil
	}
	var vec []float64
	if err := json.Unmarshal([]byte(s), &vec); err != nil {
		return nil
	}
	if len(vec) == 0 {
		return nil
	}
	return vec
}

// HasEmbedding reports whether the memory carries a usable embedding.
func (m *Memory) HasEmbedding() bool {
	if len(m.Embedding) == 0 {
		return false
	}
	for _, v := range m.Embedding {
		if v != 0 {
			return true
		}
	}
	return false
}
