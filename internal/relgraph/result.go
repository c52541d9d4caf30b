package relgraph

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/lodestone-labs/synapse/internal/memory"
	"github.com/lodestone-labs/synapse/internal/metrics"
	"github.com/lodestone-labs/synapse/internal/scoring"
)

// Options controls one top-level relationship analysis.
type Options struct {
	Signals        []scoring.SignalType // empty = all
	MaxConnections int                  // 0 = configured default
	Depth          int                  // 0 = configured default; 1 = no extended network
	CandidateLimit int                  // 0 = 4x max connections
}

// Summary describes what an analysis looked at.
type Summary struct {
	CandidatesScored int                  `json:"candidates_scored"`
	Threshold        float64              `json:"similarity_threshold"`
	Signals          []scoring.SignalType `json:"signal_types"`
	Depth            int                  `json:"depth"`
}

// Result is the envelope returned by AnalyzeMemory. Relationship analysis is
// an advisory feature: unexpected failures land in Err instead of
// propagating, so the caller always receives a usable (possibly empty)
// result.
type Result struct {
	MemoryID string                  `json:"memory_id"`
	Direct   []Score                 `json:"direct_relationships"`
	Extended map[string]NetworkEntry `json:"extended_network"`
	Insights Insights                `json:"insights"`
	Summary  Summary                 `json:"analysis_summary"`
	Err      string                  `json:"error,omitempty"`
}

// AnalyzeMemory runs the full analysis pipeline for one target memory:
// score all candidates, filter and rank, expand the extended network, and
// aggregate insights. A missing target is the one hard failure
// (memory.ErrNotFound); every other error is folded into the result
// envelope.
func (a *Analyzer) AnalyzeMemory(ctx context.Context, id string, opts Options) (result *Result, err error) {
	done := metrics.TimeAnalysis("analyze_memory")
	defer func() { done(err == nil && (result == nil || result.Err == "")) }()

	target, err := a.source.GetMemory(ctx, id)
	if err != nil {
		if errors.Is(err, memory.ErrNotFound) {
			return nil, fmt.Errorf("analyze %s: %w", id, err)
		}
		return nil, fmt.Errorf("analyze %s: fetch target: %w", id, err)
	}

	// Anything unexpected below degrades to an error envelope.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("analyze: recovered from panic for %s: %v", id, r)
			result = &Result{MemoryID: id, Err: fmt.Sprintf("analysis failed: %v", r)}
			err = nil
		}
	}()

	maxConns := opts.MaxConnections
	if maxConns <= 0 {
		maxConns = a.cfg.MaxConnections
	}
	depth := opts.Depth
	if depth <= 0 {
		depth = a.cfg.MaxDepth
	}
	signals := opts.Signals
	if len(signals) == 0 {
		signals = scoring.AllSignals
	}
	candLimit := opts.CandidateLimit
	if candLimit <= 0 {
		candLimit = maxConns * 4
	}

	candidates, err := a.source.GetCandidates(ctx, id, candLimit)
	if err != nil {
		log.Printf("analyze: candidates for %s: %v", id, err)
		return &Result{MemoryID: id, Err: fmt.Sprintf("fetch candidates: %v", err)}, nil
	}

	direct := a.FilterAndRank(a.Analyze(target, candidates, signals), maxConns)

	// Depth 1 means direct relationships only.
	extended := a.ExpandNetwork(ctx, direct, depth-1, maxConns)

	return &Result{
		MemoryID: id,
		Direct:   direct,
		Extended: extended,
		Insights: GenerateInsights(direct),
		Summary: Summary{
			CandidatesScored: len(candidates),
			Threshold:        a.cfg.SimilarityThreshold,
			Signals:          signals,
			Depth:            depth,
		},
	}, nil
}
