package relgraph

import (
	"sort"

	"github.com/lodestone-labs/synapse/internal/config"
	"github.com/lodestone-labs/synapse/internal/memory"
	"github.com/lodestone-labs/synapse/internal/scoring"
)

// Strength categories for composite scores.
const (
	StrengthWeak     = "weak"     // < 0.4
	StrengthModerate = "moderate" // < 0.7
	StrengthStrong   = "strong"   // >= 0.7
)

// Score is one scored relationship between a target memory and a candidate.
type Score struct {
	TargetID    string                         `json:"target_id"`
	RelatedID   string                         `json:"related_id"`
	Signals     map[scoring.SignalType]float64 `json:"per_type_scores"`
	Composite   float64                        `json:"composite_score"`
	PrimaryType scoring.SignalType             `json:"primary_type"`
	Strength    string                         `json:"strength_category"`
}

// Analyzer scores candidate memories against a target and assembles
// relationship graphs. It holds no state across calls; concurrent analyses
// over different snapshots are independent.
type Analyzer struct {
	source memory.Source
	scorer *scoring.Scorer
	cfg    config.AnalysisConfig
}

// New creates an Analyzer over the given source with the given tunables.
// Zero-valued bounds fall back to the package defaults.
func New(source memory.Source, scorer *scoring.Scorer, cfg config.AnalysisConfig) *Analyzer {
	def := config.Default().Analysis
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = def.MaxConnections
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = def.MaxDepth
	}
	if cfg.BranchLimit <= 0 {
		cfg.BranchLimit = def.BranchLimit
	}
	if cfg.SecondaryLimit <= 0 {
		cfg.SecondaryLimit = def.SecondaryLimit
	}
	if scorer == nil {
		scorer = scoring.NewScorer()
	}
	return &Analyzer{source: source, scorer: scorer, cfg: cfg}
}

// Analyze scores every candidate with a valid embedding against the target,
// keeps those whose composite score clears the similarity threshold, and
// returns them sorted by composite score descending. The sort is stable:
// ties keep the original candidate order.
func (a *Analyzer) Analyze(target *memory.Memory, candidates []memory.Memory, signals []scoring.SignalType) []Score {
	if len(signals) == 0 {
		signals = scoring.AllSignals
	}

	var scores []Score
	for i := range candidates {
		cand := &candidates[i]
		if cand.ID == target.ID {
			continue // never link a memory to itself
		}
		if !cand.HasEmbedding() {
			continue
		}

		perType := a.scorer.Score(target, cand, signals)
		if len(perType) == 0 {
			continue
		}

		composite := a.composite(perType, signals)
		if composite <= a.cfg.SimilarityThreshold {
			continue
		}

		scores = append(scores, Score{
			TargetID:    target.ID,
			RelatedID:   cand.ID,
			Signals:     perType,
			Composite:   composite,
			PrimaryType: primaryType(perType, signals),
			Strength:    strengthCategory(composite),
		})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Composite > scores[j].Composite
	})
	return scores
}

// FilterAndRank re-applies the threshold and truncates to maxConnections.
func (a *Analyzer) FilterAndRank(scores []Score, maxConnections int) []Score {
	if maxConnections <= 0 {
		maxConnections = a.cfg.MaxConnections
	}
	var kept []Score
	for _, s := range scores {
		if s.Composite > a.cfg.SimilarityThreshold {
			kept = append(kept, s)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Composite > kept[j].Composite
	})
	if len(kept) > maxConnections {
		kept = kept[:maxConnections]
	}
	return kept
}

// composite combines per-signal scores into a single [0,1] value using the
// configured weights. Signals absent from the score map contribute nothing;
// with no configured weights every requested signal weighs equally.
func (a *Analyzer) composite(perType map[scoring.SignalType]float64, signals []scoring.SignalType) float64 {
	var sum, totalWeight float64
	for _, sig := range signals {
		v, ok := perType[sig]
		if !ok {
			continue
		}
		w := 1.0
		if len(a.cfg.Weights) > 0 {
			if cw, ok := a.cfg.Weights[string(sig)]; ok && cw > 0 {
				w = cw
			}
		}
		sum += v * w
		totalWeight += w
	}
	if totalWeight == 0 {
		return 0
	}
	c := sum / totalWeight
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// primaryType returns the highest-scoring signal, breaking ties by the
// declaration order of the requested signals.
func primaryType(perType map[scoring.SignalType]float64, signals []scoring.SignalType) scoring.SignalType {
	var best scoring.SignalType
	bestVal := -1.0
	for _, sig := range signals {
		v, ok := perType[sig]
		if !ok {
			continue
		}
		if v > bestVal {
			bestVal = v
			best = sig
		}
	}
	return best
}

func strengthCategory(composite float64) string {
	switch {
	case composite >= 0.7:
		return StrengthStrong
	case composite >= 0.4:
		return StrengthModerate
	default:
		return StrengthWeak
	}
}
