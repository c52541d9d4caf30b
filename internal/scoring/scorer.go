package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/lodestone-labs/synapse/internal/memory"
)

// SignalType identifies one relationship signal between two memories.
type SignalType string

const (
	SignalSemantic   SignalType = "semantic_similarity"
	SignalTemporal   SignalType = "temporal_proximity"
	SignalOverlap    SignalType = "content_overlap"
	SignalHierarchy  SignalType = "conceptual_hierarchy"
	SignalCausal     SignalType = "causal_relationship"
	SignalContextual SignalType = "contextual_association"
)

// AllSignals lists every signal in declaration order. The order matters:
// it breaks ties when picking a relationship's primary type.
var AllSignals = []SignalType{
	SignalSemantic,
	SignalTemporal,
	SignalOverlap,
	SignalHierarchy,
	SignalCausal,
	SignalContextual,
}

// DefaultTemporalWindow is how far apart two memories can be created and
// still register temporal proximity.
const DefaultTemporalWindow = 24 * time.Hour

// Scorer computes per-signal relationship scores between memory pairs.
// All signal functions return values in [0,1] and never fail — malformed
// input scores zero or omits the signal rather than aborting a comparison.
type Scorer struct {
	TemporalWindow time.Duration
	MaxImportance  float64 // scale ceiling for importance proximity (0 = auto)
}

// NewScorer returns a Scorer with the default temporal window.
func NewScorer() *Scorer {
	return &Scorer{TemporalWindow: DefaultTemporalWindow}
}

type signalFunc func(s *Scorer, a, b *memory.Memory) (float64, bool)

// signalFuncs is the dispatch table from signal type to its scoring function.
// The second return value reports whether the signal applies at all (a missing
// embedding omits the semantic signal instead of scoring it zero).
var signalFuncs = map[SignalType]signalFunc{
	SignalSemantic: func(s *Scorer, a, b *memory.Memory) (float64, bool) {
		if !a.HasEmbedding() || !b.HasEmbedding() {
			return 0, false
		}
		return s.Semantic(a.Embedding, b.Embedding), true
	},
	SignalTemporal: func(s *Scorer, a, b *memory.Memory) (float64, bool) {
		return s.Temporal(a.CreatedAt, b.CreatedAt), true
	},
	SignalOverlap: func(s *Scorer, a, b *memory.Memory) (float64, bool) {
		return s.ContentOverlap(a.Content, b.Content), true
	},
	SignalHierarchy: func(s *Scorer, a, b *memory.Memory) (float64, bool) {
		return s.Hierarchy(a, b), true
	},
	SignalCausal: func(s *Scorer, a, b *memory.Memory) (float64, bool) {
		return s.DetectCausality(a, b), true
	},
	SignalContextual: func(s *Scorer, a, b *memory.Memory) (float64, bool) {
		return s.Contextual(a, b), true
	},
}

// Score computes every requested signal for the pair (a, b). Signals that do
// not apply (e.g. semantic with a missing embedding) are omitted from the map.
func (s *Scorer) Score(a, b *memory.Memory, signals []SignalType) map[SignalType]float64 {
	if len(signals) == 0 {
		signals = AllSignals
	}
	out := make(map[SignalType]float64, len(signals))
	for _, sig := range signals {
		fn, ok := signalFuncs[sig]
		if !ok {
			continue
		}
		if v, applies := fn(s, a, b); applies {
			out[sig] = clamp01(v)
		}
	}
	return out
}

// Semantic returns max(0, cosine(a, b)). Zero-norm or mismatched vectors
// score zero.
func (s *Scorer) Semantic(a, b []float64) float64 {
	return math.Max(0, CosineSimilarity(a, b))
}

// Temporal returns 1.0 at zero time difference, decaying linearly to 0 at
// the window edge, and 0 beyond it.
func (s *Scorer) Temporal(a, b time.Time) float64 {
	window := s.TemporalWindow
	if window <= 0 {
		window = DefaultTemporalWindow
	}
	delta := a.Sub(b)
	if delta < 0 {
		delta = -delta
	}
	if delta >= window {
		return 0
	}
	return 1 - float64(delta)/float64(window)
}

// ContentOverlap returns the Jaccard overlap of the two contents' token sets
// after lowercasing and stop-word removal.
func (s *Scorer) ContentOverlap(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	shared := 0
	for tok := range setA {
		if setB[tok] {
			shared++
		}
	}
	union := len(setA) + len(setB) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// Hierarchy estimates whether one memory is a more general or more specific
// restatement of the other: shared tags plus a content-length ratio.
func (s *Scorer) Hierarchy(a, b *memory.Memory) float64 {
	shared := sharedTagCount(a.Tags, b.Tags)
	tagScore := math.Min(float64(shared)/3.0, 1.0)

	lenA, lenB := float64(len(a.Content)), float64(len(b.Content))
	ratioScore := 0.0
	if lenA > 0 && lenB > 0 {
		longer, shorter := lenA, lenB
		if lenB > lenA {
			longer, shorter = lenB, lenA
		}
		// A large length gap with shared vocabulary suggests an
		// abstract/detailed pairing.
		ratio := shorter / longer
		if ratio < 0.5 {
			ratioScore = 1 - ratio
		}
	}

	return clamp01(0.6*tagScore + 0.4*ratioScore)
}

// causalKeywords signal that the later memory describes an effect.
var causalKeywords = []string{
	"because", "due to", "as a result", "therefore", "caused",
	"led to", "resulted in", "consequently", "so that", "after",
	"since", "thanks to", "triggered",
}

// DetectCausality scores whether `from` plausibly caused `to`. An effect
// cannot precede its cause, so it returns 0 unless `to` was created strictly
// after `from`. Evidence accumulates from causal keywords in the later
// content and the earlier memory's title appearing in the later content,
// capped at 1.0.
func (s *Scorer) DetectCausality(from, to *memory.Memory) float64 {
	if !to.CreatedAt.After(from.CreatedAt) {
		return 0
	}

	later := strings.ToLower(to.Content)
	score := 0.0
	for _, kw := range causalKeywords {
		if strings.Contains(later, kw) {
			score += 0.2
		}
	}

	title := strings.ToLower(from.Title())
	if len(title) >= 4 && strings.Contains(later, title) {
		score += 0.4
	}

	return math.Min(score, 1.0)
}

// Contextual combines memory-type equality and importance proximity.
func (s *Scorer) Contextual(a, b *memory.Memory) float64 {
	typeScore := 0.0
	if a.Type != "" && a.Type == b.Type {
		typeScore = 1.0
	}

	scale := s.MaxImportance
	if scale <= 0 {
		scale = math.Max(math.Max(a.Importance, b.Importance), 1.0)
	}
	diff := math.Abs(a.Importance-b.Importance) / scale
	impScore := 1 - math.Min(diff, 1.0)

	return clamp01(0.5*typeScore + 0.5*impScore)
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Mismatched lengths or zero norms score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

func sharedTagCount(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[strings.ToLower(t)] = true
	}
	n := 0
	for _, t := range b {
		if set[strings.ToLower(t)] {
			n++
		}
	}
	return n
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
