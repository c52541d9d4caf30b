package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/lodestone-labs/synapse/internal/cluster"
	"github.com/lodestone-labs/synapse/internal/config"
	"github.com/lodestone-labs/synapse/internal/llm"
	"github.com/lodestone-labs/synapse/internal/memory"
	"github.com/lodestone-labs/synapse/internal/metrics"
	"github.com/lodestone-labs/synapse/internal/scoring"
)

// Strategy selects how a memory set is turned into narratives.
type Strategy string

const (
	StrategyHierarchical Strategy = "hierarchical"
	StrategyTemporal     Strategy = "temporal"
	StrategySemantic     Strategy = "semantic"
	StrategyCausal       Strategy = "causal"
	StrategyComparative  Strategy = "comparative"
	StrategyAbstractive  Strategy = "abstractive"
)

// Request describes one synthesis invocation.
type Request struct {
	Strategy         Strategy `json:"strategy"`
	IncludeCitations bool     `json:"include_citations"`
	CreateLinks      bool     `json:"create_links"`
}

// Synthesized is one higher-level narrative produced from source memories.
// It references its sources but never mutates them.
type Synthesized struct {
	ID              string              `json:"id"`
	Title           string              `json:"title"`
	Content         string              `json:"content"`
	SynthesisType   Strategy            `json:"synthesis_type"`
	SourceMemoryIDs []string            `json:"source_memory_ids"`
	Confidence      float64             `json:"confidence_score"`
	KeyConcepts     []string            `json:"key_concepts"`
	Relationships   map[string][]string `json:"relationships"`
	Metadata        map[string]any      `json:"synthesis_metadata"`
}

// Link signals a relationship to be created between a synthesized result and
// one of its sources. The engine never persists these itself.
type Link struct {
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
}

// Engine dispatches synthesis requests to strategy implementations. Prose
// generation is delegated to the LLM client; on failure each narrative
// degrades to a deterministic fallback rather than erroring.
type Engine struct {
	llm       llm.Client
	clusterer *cluster.Clusterer
	scorer    *scoring.Scorer
	cfg       config.SynthesisConfig
}

// New builds an Engine. client may be nil; every narrative then uses the
// fallback path.
func New(client llm.Client, cfg config.SynthesisConfig) *Engine {
	def := config.Default().Synthesis
	if cfg.MaxChainLength <= 0 {
		cfg.MaxChainLength = def.MaxChainLength
	}
	if cfg.ChainThreshold <= 0 {
		cfg.ChainThreshold = def.ChainThreshold
	}
	if cfg.CausalityThreshold <= 0 {
		cfg.CausalityThreshold = def.CausalityThreshold
	}
	if cfg.ClusterSeed == 0 {
		cfg.ClusterSeed = def.ClusterSeed
	}

	c := cluster.New(client)
	c.Seed = cfg.ClusterSeed
	return &Engine{
		llm:       client,
		clusterer: c,
		scorer:    scoring.NewScorer(),
		cfg:       cfg,
	}
}

var strategies = map[Strategy]func(*Engine, context.Context, []memory.Memory) []*Synthesized{
	StrategyHierarchical: (*Engine).hierarchical,
	StrategyTemporal:     (*Engine).temporal,
	StrategySemantic:     (*Engine).semantic,
	StrategyCausal:       (*Engine).causal,
	StrategyComparative:  (*Engine).comparative,
	StrategyAbstractive:  (*Engine).abstractive,
}

// Strategies lists the known strategy names.
func Strategies() []Strategy {
	return []Strategy{
		StrategyHierarchical, StrategyTemporal, StrategySemantic,
		StrategyCausal, StrategyComparative, StrategyAbstractive,
	}
}

// Synthesize runs the requested strategy over the given memories. The second
// return value carries relationship links to create when the request asks for
// them. Unknown strategies are the only error.
func (e *Engine) Synthesize(ctx context.Context, mems []memory.Memory, req Request) ([]*Synthesized, []Link, error) {
	fn, ok := strategies[req.Strategy]
	if !ok {
		return nil, nil, fmt.Errorf("unknown synthesis strategy %q", req.Strategy)
	}
	if len(mems) == 0 {
		return nil, nil, nil
	}

	results := fn(e, ctx, mems)

	var links []Link
	byID := make(map[string]memory.Memory, len(mems))
	for _, m := range mems {
		byID[m.ID] = m
	}
	for _, r := range results {
		if req.IncludeCitations {
			r.Content += citations(r.SourceMemoryIDs, byID)
		}
		if req.CreateLinks {
			for _, src := range r.SourceMemoryIDs {
				links = append(links, Link{FromID: r.ID, ToID: src})
			}
		}
	}
	return results, links, nil
}

func citations(sourceIDs []string, byID map[string]memory.Memory) string {
	var b strings.Builder
	b.WriteString("\n\nSources:\n")
	for _, id := range sourceIDs {
		m, ok := byID[id]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "[%s] - %s\n", m.Title(), m.CreatedAt.Format("2006-01-02"))
	}
	return strings.TrimRight(b.String(), "\n")
}

// llmSynthesis is the JSON contract the synthesis prompts ask for. The extra
// fields are strategy-specific and land in the result metadata when present.
type llmSynthesis struct {
	Content       string              `json:"content"`
	Concepts      []string            `json:"concepts"`
	Relationships map[string][]string `json:"relationships"`
	Confidence    float64             `json:"confidence"`

	KeyEvents       []string `json:"key_events,omitempty"`
	Similarities    []string `json:"similarities,omitempty"`
	Differences     []string `json:"differences,omitempty"`
	Insights        []string `json:"insights,omitempty"`
	Principles      []string `json:"principles,omitempty"`
	Generalizations []string `json:"generalizations,omitempty"`
	Implications    []string `json:"implications,omitempty"`
}

// generate produces one narrative over the given sources. Any collaborator
// failure or malformed response degrades to the deterministic fallback.
func (e *Engine) generate(ctx context.Context, strategy Strategy, title, instruction string, sources []memory.Memory, extraFields string) *Synthesized {
	if e.llm == nil {
		return e.fallback(strategy, title, sources)
	}

	excerpts := make([]string, len(sources))
	for i, m := range sources {
		excerpts[i] = fmt.Sprintf("[%s, %s] %s", m.Title(), m.CreatedAt.Format("2006-01-02"), m.Preview(400))
	}

	resp, err := e.llm.Complete(ctx, llm.Request{
		Prompt:      llm.SynthesisPrompt(instruction, excerpts, extraFields),
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
	})
	if err != nil {
		log.Printf("synthesis: %s generation failed: %v", strategy, err)
		return e.fallback(strategy, title, sources)
	}

	parsed, ok := parseSynthesis(resp.Content)
	if !ok {
		log.Printf("synthesis: %s returned malformed response, using fallback", strategy)
		return e.fallback(strategy, title, sources)
	}

	metrics.Default().IncSynthesis(string(strategy), false)
	out := &Synthesized{
		ID:              uuid.NewString(),
		Title:           title,
		Content:         parsed.Content,
		SynthesisType:   strategy,
		SourceMemoryIDs: sourceIDs(sources),
		Confidence:      clamp01(parsed.Confidence),
		KeyConcepts:     parsed.Concepts,
		Relationships:   parsed.Relationships,
		Metadata:        map[string]any{},
	}
	for key, vals := range map[string][]string{
		"key_events":      parsed.KeyEvents,
		"similarities":    parsed.Similarities,
		"differences":     parsed.Differences,
		"insights":        parsed.Insights,
		"principles":      parsed.Principles,
		"generalizations": parsed.Generalizations,
		"implications":    parsed.Implications,
	} {
		if len(vals) > 0 {
			out.Metadata[key] = vals
		}
	}
	return out
}

// fallback builds the templated synthesis used when generation is
// unavailable. Confidence is fixed at 0.5 and the result is flagged.
func (e *Engine) fallback(strategy Strategy, title string, sources []memory.Memory) *Synthesized {
	metrics.Default().IncSynthesis(string(strategy), true)

	var b strings.Builder
	fmt.Fprintf(&b, "Summary of %d related memories:\n", len(sources))
	for _, m := range sources {
		fmt.Fprintf(&b, "- %s (%s)\n", m.Title(), m.CreatedAt.Format("2006-01-02"))
	}

	concepts := topConcepts(sources, 5)
	return &Synthesized{
		ID:              uuid.NewString(),
		Title:           title,
		Content:         strings.TrimRight(b.String(), "\n"),
		SynthesisType:   strategy,
		SourceMemoryIDs: sourceIDs(sources),
		Confidence:      0.5,
		KeyConcepts:     concepts,
		Relationships:   map[string][]string{},
		Metadata:        map[string]any{"fallback": true},
	}
}

// parseSynthesis extracts the JSON object from an LLM response, tolerating
// code fences and surrounding prose.
func parseSynthesis(content string) (*llmSynthesis, bool) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		if len(lines) > 2 {
			content = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	var parsed llmSynthesis
	if err := json.Unmarshal([]byte(content[start:end+1]), &parsed); err != nil {
		return nil, false
	}
	if parsed.Content == "" {
		return nil, false
	}
	return &parsed, true
}

func sourceIDs(mems []memory.Memory) []string {
	ids := make([]string, len(mems))
	for i, m := range mems {
		ids[i] = m.ID
	}
	return ids
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
