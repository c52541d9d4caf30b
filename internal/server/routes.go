package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lodestone-labs/synapse/internal/cluster"
	"github.com/lodestone-labs/synapse/internal/layout"
	"github.com/lodestone-labs/synapse/internal/memory"
	"github.com/lodestone-labs/synapse/internal/relgraph"
	"github.com/lodestone-labs/synapse/internal/scoring"
	"github.com/lodestone-labs/synapse/internal/synthesis"
)

const requestTimeout = 60 * time.Second

func (s *Server) handleCreateMemory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID         string          `json:"id"`
		Content    string          `json:"content"`
		Type       string          `json:"memory_type"`
		Importance float64         `json:"importance_score"`
		Embedding  json.RawMessage `json:"embedding"`
		Tags       []string        `json:"tags"`
		Metadata   map[string]any  `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content required")
		return
	}

	m := &memory.Memory{
		ID:         req.ID,
		Content:    req.Content,
		Type:       req.Type,
		Importance: req.Importance,
		Embedding:  memory.ParseEmbedding(req.Embedding),
		Tags:       req.Tags,
		Metadata:   req.Metadata,
	}
	if err := s.db.SaveMemory(r.Context(), m); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	mems, err := s.db.ListMemories(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(mems),
		"memories": mems,
	})
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "memoryID")
	m, err := s.db.GetMemory(r.Context(), id)
	if err != nil {
		if errors.Is(err, memory.ErrNotFound) {
			writeError(w, http.StatusNotFound, "memory not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "memoryID")
	if err := s.db.DeleteMemory(r.Context(), id); err != nil {
		if errors.Is(err, memory.ErrNotFound) {
			writeError(w, http.StatusNotFound, "memory not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleRelationships runs relationship analysis for one memory. A missing
// target is 404; every other failure is already folded into the result
// envelope and returns 200.
func (s *Server) handleRelationships(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "memoryID")

	opts := relgraph.Options{
		Signals:        parseSignals(r.URL.Query().Get("signals")),
		MaxConnections: queryInt(r, "max_connections"),
		Depth:          queryInt(r, "depth"),
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	result, err := s.analyzer.AnalyzeMemory(ctx, id, opts)
	if err != nil {
		if errors.Is(err, memory.ErrNotFound) {
			writeError(w, http.StatusNotFound, "memory not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Strategy         string   `json:"strategy"`
		MemoryIDs        []string `json:"memory_ids"`
		IncludeCitations bool     `json:"include_citations"`
		CreateLinks      bool     `json:"create_links"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Strategy == "" {
		writeError(w, http.StatusBadRequest, "strategy required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	mems, err := s.loadMemories(ctx, req.MemoryIDs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	results, links, err := s.synth.Synthesize(ctx, mems, synthesis.Request{
		Strategy:         synthesis.Strategy(req.Strategy),
		IncludeCitations: req.IncludeCitations,
		CreateLinks:      req.CreateLinks,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if len(links) > 0 {
		if err := s.db.SaveSynthesisLinks(ctx, links); err != nil {
			log.Printf("server: save synthesis links: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"strategy": req.Strategy,
		"count":    len(results),
		"results":  results,
		"links":    links,
	})
}

func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	strategy := r.URL.Query().Get("strategy")
	if strategy == "" {
		strategy = "tag"
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	mems, err := s.db.ListMemories(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var clusters []*cluster.Cluster
	switch strategy {
	case "tag":
		clusters = s.clusterer.ByTag(mems)
	case "semantic":
		clusters = s.clusterer.Semantic(mems)
	case "implicit":
		clusters = s.clusterer.Implicit(ctx, mems)
	case "hierarchy":
		root := s.clusterer.BuildHierarchy(mems)
		writeJSON(w, http.StatusOK, map[string]any{
			"strategy":  strategy,
			"hierarchy": root,
		})
		return
	default:
		writeError(w, http.StatusBadRequest, "unknown clustering strategy")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"strategy": strategy,
		"count":    len(clusters),
		"clusters": clusters,
	})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := layout.Options{
		Algorithm:      layout.Algorithm(q.Get("algorithm")),
		Clustering:     layout.Clustering(q.Get("clustering")),
		Sizing:         layout.Sizing(q.Get("sizing")),
		Colors:         layout.ColorScheme(q.Get("colors")),
		IncludeOrphans: q.Get("include_orphans") == "true",
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	mems, err := s.db.ListMemories(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rels := s.allRelationships(mems)
	graph, err := layout.Build(mems, rels, opts)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, graph)
}

// allRelationships scores every memory against the rest and deduplicates
// unordered pairs, producing the edge set for graph layout.
func (s *Server) allRelationships(mems []memory.Memory) []relgraph.Score {
	var rels []relgraph.Score
	seen := make(map[string]bool)
	for i := range mems {
		direct := s.analyzer.Analyze(&mems[i], mems, nil)
		direct = s.analyzer.FilterAndRank(direct, s.cfg.Analysis.MaxConnections)
		for _, rel := range direct {
			a, b := rel.TargetID, rel.RelatedID
			if b < a {
				a, b = b, a
			}
			key := a + "|" + b
			if seen[key] {
				continue
			}
			seen[key] = true
			rels = append(rels, rel)
		}
	}
	return rels
}

// loadMemories fetches the named memories, or every memory when ids is
// empty. Missing IDs are logged and skipped.
func (s *Server) loadMemories(ctx context.Context, ids []string) ([]memory.Memory, error) {
	if len(ids) == 0 {
		return s.db.ListMemories(ctx)
	}
	var mems []memory.Memory
	for _, id := range ids {
		m, err := s.db.GetMemory(ctx, id)
		if err != nil {
			log.Printf("server: load memory %s: %v", id, err)
			continue
		}
		mems = append(mems, *m)
	}
	return mems, nil
}

func parseSignals(raw string) []scoring.SignalType {
	if raw == "" {
		return nil
	}
	var signals []scoring.SignalType
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			signals = append(signals, scoring.SignalType(part))
		}
	}
	return signals
}

func queryInt(r *http.Request, key string) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 0
}
