package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/lodestone-labs/synapse/internal/memory"
	"github.com/lodestone-labs/synapse/internal/synthesis"
)

// encodeEmbedding converts a []float64 to a binary BLOB (8 bytes per float64).
func encodeEmbedding(vec []float64) []byte {
	buf := make([]byte, len(vec)*8)
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// decodeEmbedding converts a binary BLOB back to []float64.
func decodeEmbedding(buf []byte) []float64 {
	n := len(buf) / 8
	vec := make([]float64, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return vec
}

// SaveMemory inserts or replaces a memory and its embedding. An empty ID
// gets a fresh UUID; the assigned ID is written back to m.
func (db *DB) SaveMemory(ctx context.Context, m *memory.Memory) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Type == "" {
		m.Type = "episodic"
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	tags, err := json.Marshal(m.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	if m.Tags == nil {
		tags = []byte("[]")
	}
	meta, err := json.Marshal(m.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if m.Metadata == nil {
		meta = []byte("{}")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save memory: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memories (id, content, memory_type, importance, tags, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content, memory_type = excluded.memory_type,
			importance = excluded.importance, tags = excluded.tags,
			metadata = excluded.metadata
	`, m.ID, m.Content, m.Type, m.Importance, string(tags), string(meta), m.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save memory: %w", err)
	}

	if len(m.Embedding) > 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO memory_vectors (memory_id, embedding, dimensions, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(memory_id) DO UPDATE SET
				embedding = excluded.embedding, dimensions = excluded.dimensions
		`, m.ID, encodeEmbedding(m.Embedding), len(m.Embedding), time.Now().UnixMilli())
		if err != nil {
			return fmt.Errorf("save embedding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save memory: %w", err)
	}
	return nil
}

const memoryColumns = `
	m.id, m.content, m.memory_type, m.importance, m.tags, m.metadata, m.created_at, v.embedding
`

// GetMemory returns the memory with the given ID, or memory.ErrNotFound.
func (db *DB) GetMemory(ctx context.Context, id string) (*memory.Memory, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+memoryColumns+`
		FROM memories m LEFT JOIN memory_vectors v ON v.memory_id = m.id
		WHERE m.id = ?
	`, id)

	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("memory %s: %w", id, memory.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get memory %s: %w", id, err)
	}
	return m, nil
}

// GetCandidates returns up to limit memories excluding the given ID, newest
// first. limit <= 0 means no limit.
func (db *DB) GetCandidates(ctx context.Context, excludeID string, limit int) ([]memory.Memory, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx, `
		SELECT `+memoryColumns+`
		FROM memories m LEFT JOIN memory_vectors v ON v.memory_id = m.id
		WHERE m.id != ?
		ORDER BY m.created_at DESC
		LIMIT ?
	`, excludeID, limit)
	if err != nil {
		return nil, fmt.Errorf("get candidates: %w", err)
	}
	defer rows.Close()

	return collectMemories(rows)
}

// ListMemories returns all memories, newest first.
func (db *DB) ListMemories(ctx context.Context) ([]memory.Memory, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+memoryColumns+`
		FROM memories m LEFT JOIN memory_vectors v ON v.memory_id = m.id
		ORDER BY m.created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	return collectMemories(rows)
}

// DeleteMemory removes a memory. The embedding goes with it via cascade.
func (db *DB) DeleteMemory(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, "DELETE FROM memories WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete memory %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete memory %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("memory %s: %w", id, memory.ErrNotFound)
	}
	return nil
}

// CountMemories returns the number of stored memories.
func (db *DB) CountMemories(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories").Scan(&n)
	return n, err
}

// SaveSynthesisLinks persists the links a synthesis run signaled between its
// results and their source memories.
func (db *DB) SaveSynthesisLinks(ctx context.Context, links []synthesis.Link) error {
	if len(links) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save links: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	for _, l := range links {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO synthesis_links (synthesis_id, memory_id, created_at)
			VALUES (?, ?, ?)
			ON CONFLICT(synthesis_id, memory_id) DO NOTHING
		`, l.FromID, l.ToID, now); err != nil {
			return fmt.Errorf("save link %s -> %s: %w", l.FromID, l.ToID, err)
		}
	}
	return tx.Commit()
}

// LinkedMemoryIDs returns the source memory IDs linked to a synthesis.
func (db *DB) LinkedMemoryIDs(ctx context.Context, synthesisID string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT memory_id FROM synthesis_links WHERE synthesis_id = ? ORDER BY memory_id
	`, synthesisID)
	if err != nil {
		return nil, fmt.Errorf("linked memories: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*memory.Memory, error) {
	var m memory.Memory
	var tags, meta string
	var createdAt int64
	var blob []byte

	if err := row.Scan(&m.ID, &m.Content, &m.Type, &m.Importance, &tags, &meta, &createdAt, &blob); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tags), &m.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	if err := json.Unmarshal([]byte(meta), &m.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	m.CreatedAt = time.UnixMilli(createdAt)
	if len(blob) > 0 {
		m.Embedding = decodeEmbedding(blob)
	}
	return &m, nil
}

func collectMemories(rows *sql.Rows) ([]memory.Memory, error) {
	var out []memory.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}
