package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lodestone-labs/synapse/internal/cluster"
	"github.com/lodestone-labs/synapse/internal/config"
	"github.com/lodestone-labs/synapse/internal/llm"
	"github.com/lodestone-labs/synapse/internal/relgraph"
	"github.com/lodestone-labs/synapse/internal/scoring"
	"github.com/lodestone-labs/synapse/internal/store"
	"github.com/lodestone-labs/synapse/internal/synthesis"
)

// Server is the synapse HTTP API server.
type Server struct {
	db        *store.DB
	analyzer  *relgraph.Analyzer
	synth     *synthesis.Engine
	clusterer *cluster.Clusterer
	cfg       config.Config
	router    chi.Router
	version   string
	started   time.Time
}

// New creates a Server wired to the given database, LLM client (may be nil),
// and configuration.
func New(db *store.DB, client llm.Client, cfg config.Config, version string) *Server {
	scorer := scoring.NewScorer()
	if cfg.Analysis.TemporalWindowHours > 0 {
		scorer.TemporalWindow = time.Duration(cfg.Analysis.TemporalWindowHours) * time.Hour
	}

	clusterer := cluster.New(client)
	if cfg.Synthesis.ClusterSeed != 0 {
		clusterer.Seed = cfg.Synthesis.ClusterSeed
	}

	s := &Server{
		db:        db,
		analyzer:  relgraph.New(db, scorer, cfg.Analysis),
		synth:     synthesis.New(client, cfg.Synthesis),
		clusterer: clusterer,
		cfg:       cfg,
		version:   version,
		started:   time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/memories", s.handleCreateMemory)
		r.Get("/memories", s.handleListMemories)
		r.Get("/memories/{memoryID}", s.handleGetMemory)
		r.Delete("/memories/{memoryID}", s.handleDeleteMemory)
		r.Get("/memories/{memoryID}/relationships", s.handleRelationships)

		r.Post("/synthesize", s.handleSynthesize)
		r.Get("/clusters", s.handleClusters)
		r.Get("/graph", s.handleGraph)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
