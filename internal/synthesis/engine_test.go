package synthesis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/lodestone-labs/synapse/internal/config"
	"github.com/lodestone-labs/synapse/internal/llm"
	"github.com/lodestone-labs/synapse/internal/memory"
)

const validResponse = `{"content": "a synthesized narrative", "concepts": ["testing"], "relationships": {"testing": ["quality"]}, "confidence": 0.9}`

func newEngine(client llm.Client) *Engine {
	return New(client, config.Default().Synthesis)
}

func mems(n int, gap time.Duration) []memory.Memory {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]memory.Memory, n)
	for i := range out {
		out[i] = memory.Memory{
			ID:         fmt.Sprintf("m%d", i),
			Content:    fmt.Sprintf("note %d about project deployment", i),
			Type:       "episodic",
			Importance: 0.5,
			CreatedAt:  base.Add(time.Duration(i) * gap),
			Tags:       []string{"project"},
		}
	}
	return out
}

func TestUnknownStrategy(t *testing.T) {
	_, _, err := newEngine(nil).Synthesize(context.Background(), mems(3, time.Hour), Request{Strategy: "mystery"})
	if err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func TestEmptyInput(t *testing.T) {
	results, links, err := newEngine(nil).Synthesize(context.Background(), nil, Request{Strategy: StrategySemantic})
	if err != nil || results != nil || links != nil {
		t.Errorf("empty input: results=%v links=%v err=%v", results, links, err)
	}
}

func TestFallbackOnInvalidJSON(t *testing.T) {
	mock := &llm.MockClient{Response: &llm.Response{Content: "sorry, I cannot produce JSON today"}}
	e := newEngine(mock)

	results, _, err := e.Synthesize(context.Background(), mems(4, time.Hour), Request{Strategy: StrategyHierarchical})
	if err != nil {
		t.Fatalf("fallback must not surface an error: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one synthesis")
	}
	for _, r := range results {
		if r.Confidence != 0.5 {
			t.Errorf("fallback confidence = %v, want 0.5", r.Confidence)
		}
		if fb, _ := r.Metadata["fallback"].(bool); !fb {
			t.Errorf("fallback flag missing: %v", r.Metadata)
		}
		if r.Content == "" {
			t.Error("fallback content empty")
		}
	}
}

func TestFallbackOnClientError(t *testing.T) {
	mock := &llm.MockClient{Err: errors.New("deadline exceeded")}
	results, _, err := newEngine(mock).Synthesize(context.Background(), mems(4, time.Hour), Request{Strategy: StrategyAbstractive})
	if err != nil {
		t.Fatalf("collaborator failure must degrade, not error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("abstractive produces one result, got %d", len(results))
	}
	if fb, _ := results[0].Metadata["fallback"].(bool); !fb || results[0].Confidence != 0.5 {
		t.Errorf("expected fallback result, got confidence=%v metadata=%v", results[0].Confidence, results[0].Metadata)
	}
}

func TestGenerateParsesResponse(t *testing.T) {
	mock := &llm.MockClient{Response: &llm.Response{Content: validResponse}}
	results, _, err := newEngine(mock).Synthesize(context.Background(), mems(3, time.Hour), Request{Strategy: StrategyAbstractive})
	if err != nil {
		t.Fatal(err)
	}
	r := results[0]
	if r.Content != "a synthesized narrative" || r.Confidence != 0.9 {
		t.Errorf("parsed result: content=%q confidence=%v", r.Content, r.Confidence)
	}
	if len(r.KeyConcepts) != 1 || r.KeyConcepts[0] != "testing" {
		t.Errorf("concepts = %v", r.KeyConcepts)
	}
	if r.ID == "" {
		t.Error("missing id")
	}
	if len(r.SourceMemoryIDs) != 3 {
		t.Errorf("sources = %v", r.SourceMemoryIDs)
	}
}

func TestParseSynthesisCodeFence(t *testing.T) {
	fenced := "```json\n" + validResponse + "\n```"
	parsed, ok := parseSynthesis(fenced)
	if !ok || parsed.Content != "a synthesized narrative" {
		t.Errorf("fenced parse failed: ok=%v parsed=%+v", ok, parsed)
	}

	prose := "Here is the result:\n" + validResponse + "\nHope that helps."
	if _, ok := parseSynthesis(prose); !ok {
		t.Error("surrounding prose should be tolerated")
	}

	if _, ok := parseSynthesis("no json here"); ok {
		t.Error("plain prose should not parse")
	}
	if _, ok := parseSynthesis(`{"concepts": []}`); ok {
		t.Error("object without content should not parse")
	}
}

func TestCitations(t *testing.T) {
	mock := &llm.MockClient{Response: &llm.Response{Content: validResponse}}
	input := mems(3, time.Hour)
	results, _, err := newEngine(mock).Synthesize(context.Background(), input, Request{
		Strategy:         StrategyAbstractive,
		IncludeCitations: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	content := results[0].Content
	if !strings.Contains(content, "Sources:") {
		t.Fatalf("missing citation block:\n%s", content)
	}
	want := fmt.Sprintf("[%s] - 2026-01-01", input[0].Title())
	if !strings.Contains(content, want) {
		t.Errorf("missing citation line %q in:\n%s", want, content)
	}
}

func TestCreateLinks(t *testing.T) {
	mock := &llm.MockClient{Response: &llm.Response{Content: validResponse}}
	input := mems(3, time.Hour)
	results, links, err := newEngine(mock).Synthesize(context.Background(), input, Request{
		Strategy:    StrategyAbstractive,
		CreateLinks: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 3 {
		t.Fatalf("got %d links, want 3", len(links))
	}
	for _, l := range links {
		if l.FromID != results[0].ID {
			t.Errorf("link source %q != synthesis id %q", l.FromID, results[0].ID)
		}
	}
}

func TestCausalChains(t *testing.T) {
	g := &CausalGraph{
		Nodes: []string{"A", "B", "C"},
		Edges: map[string]map[string]float64{
			"A": {"B": 0.8},
			"B": {"C": 0.6},
		},
	}

	chains := g.Chains(5, 0.3)
	full := findChain(chains, "A", "B", "C")
	if full == nil {
		t.Fatalf("chain A->B->C missing from %v", chains)
	}
	if diff := full.Strength - 0.48; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("chain strength = %v, want 0.48", full.Strength)
	}

	// Raising the threshold above the product excludes the long chain but
	// keeps the strong single edge.
	strict := g.Chains(5, 0.5)
	if findChain(strict, "A", "B", "C") != nil {
		t.Error("A->B->C should not survive threshold 0.5")
	}
	if findChain(strict, "A", "B") == nil {
		t.Error("A->B (0.8) should survive threshold 0.5")
	}
}

func TestCausalChainLengthBound(t *testing.T) {
	g := &CausalGraph{Edges: map[string]map[string]float64{}}
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("n%d", i)
		g.Nodes = append(g.Nodes, id)
		if i > 0 {
			g.Edges[fmt.Sprintf("n%d", i-1)] = map[string]float64{id: 1.0}
		}
	}

	for _, chain := range g.Chains(5, 0.3) {
		if len(chain.IDs) > 5 {
			t.Errorf("chain exceeds length bound: %v", chain.IDs)
		}
	}
}

func TestCausalStrengthNonIncreasing(t *testing.T) {
	g := &CausalGraph{
		Nodes: []string{"A", "B", "C", "D"},
		Edges: map[string]map[string]float64{
			"A": {"B": 0.9},
			"B": {"C": 0.9},
			"C": {"D": 0.9},
		},
	}
	byLen := make(map[int]float64)
	for _, chain := range g.Chains(5, 0.3) {
		if strings.HasPrefix(chain.IDs[0], "A") {
			byLen[len(chain.IDs)] = chain.Strength
		}
	}
	if byLen[3] > byLen[2] || byLen[4] > byLen[3] {
		t.Errorf("strength grew with length: %v", byLen)
	}
}

func TestBuildCausalGraphTemporalOrder(t *testing.T) {
	e := newEngine(nil)
	earlier := memory.Memory{ID: "cause", Content: "Server migration", CreatedAt: time.Now().Add(-2 * time.Hour)}
	later := memory.Memory{
		ID:        "effect",
		Content:   "Outage caused by the server migration; downtime resulted in alerts because of it",
		CreatedAt: time.Now(),
	}

	g := e.BuildCausalGraph([]memory.Memory{earlier, later})
	if _, ok := g.Edges["cause"]["effect"]; !ok {
		t.Errorf("expected cause->effect edge, got %v", g.Edges)
	}
	if _, ok := g.Edges["effect"]["cause"]; ok {
		t.Error("effect must not point back at its cause")
	}
}

func TestCausalStrategyScenario(t *testing.T) {
	mock := &llm.MockClient{Response: &llm.Response{Content: validResponse}}
	e := newEngine(mock)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	input := []memory.Memory{
		{ID: "a", Content: "Database upgrade", CreatedAt: base},
		{ID: "b", Content: "Slow queries caused by the database upgrade, resulted in timeouts because of lock contention after rollout", CreatedAt: base.Add(time.Hour)},
		{ID: "c", Content: "Rollback triggered because the slow queries led to an outage; as a result traffic dropped after midnight due to errors", CreatedAt: base.Add(2 * time.Hour)},
	}

	results, _, err := e.Synthesize(context.Background(), input, Request{Strategy: StrategyCausal})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 {
		t.Fatal("expected causal syntheses")
	}
	for _, r := range results {
		strength, ok := r.Metadata["chain_strength"].(float64)
		if !ok || strength <= 0.3 {
			t.Errorf("chain strength %v not above threshold", r.Metadata["chain_strength"])
		}
	}
}

func TestTemporalAnalysis(t *testing.T) {
	// Perfectly regular spacing: CV = 0 -> periodic, single bucket.
	_, buckets, pattern := AnalyzeTimeline(mems(6, 24*time.Hour))
	if !pattern.Periodic {
		t.Errorf("regular intervals should be periodic, CV=%v", pattern.Variation)
	}
	if len(buckets) != 1 {
		t.Errorf("got %d buckets, want 1", len(buckets))
	}

	// Two dense groups separated by a long gap split into two buckets.
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var split []memory.Memory
	for i := 0; i < 3; i++ {
		split = append(split, memory.Memory{ID: fmt.Sprintf("a%d", i), CreatedAt: base.Add(time.Duration(i) * time.Hour)})
	}
	for i := 0; i < 3; i++ {
		split = append(split, memory.Memory{ID: fmt.Sprintf("b%d", i), CreatedAt: base.Add(30*24*time.Hour + time.Duration(i)*time.Hour)})
	}
	_, buckets, pattern = AnalyzeTimeline(split)
	if pattern.Periodic {
		t.Error("bimodal timeline should not be periodic")
	}
	if len(buckets) != 2 {
		t.Fatalf("got %d buckets, want 2", len(buckets))
	}
	if len(buckets[0]) != 3 || len(buckets[1]) != 3 {
		t.Errorf("bucket sizes %d/%d, want 3/3", len(buckets[0]), len(buckets[1]))
	}
}

func TestTemporalPerBucketSyntheses(t *testing.T) {
	mock := &llm.MockClient{Response: &llm.Response{Content: validResponse}}
	e := newEngine(mock)

	// 12 memories in two dense groups: whole-timeline + per-bucket results.
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var input []memory.Memory
	for i := 0; i < 6; i++ {
		input = append(input, memory.Memory{ID: fmt.Sprintf("a%d", i), Content: "early", CreatedAt: base.Add(time.Duration(i) * time.Hour)})
		input = append(input, memory.Memory{ID: fmt.Sprintf("b%d", i), Content: "late", CreatedAt: base.Add(60*24*time.Hour + time.Duration(i)*time.Hour)})
	}

	results, _, err := e.Synthesize(context.Background(), input, Request{Strategy: StrategyTemporal})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want whole-timeline + 2 buckets", len(results))
	}
	if results[0].Metadata["bucket_count"] != 2 {
		t.Errorf("bucket_count = %v", results[0].Metadata["bucket_count"])
	}
}

func TestTemporalSmallInputSingleResult(t *testing.T) {
	mock := &llm.MockClient{Response: &llm.Response{Content: validResponse}}
	results, _, err := newEngine(mock).Synthesize(context.Background(), mems(5, time.Hour), Request{Strategy: StrategyTemporal})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("small inputs get only the whole-timeline synthesis, got %d", len(results))
	}
}

func TestSemanticStrategySkipsSingletons(t *testing.T) {
	mock := &llm.MockClient{Response: &llm.Response{Content: validResponse}}
	e := newEngine(mock)

	// All share one embedding direction -> one cluster -> one synthesis.
	input := mems(4, time.Hour)
	for i := range input {
		input[i].Embedding = []float64{1, 0.1 * float64(i)}
	}
	results, _, err := e.Synthesize(context.Background(), input, Request{Strategy: StrategySemantic})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results, want 1", len(results))
	}

	// A single memory can never form a 2-member cluster.
	results, _, err = e.Synthesize(context.Background(), input[:1], Request{Strategy: StrategySemantic})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("singleton input produced %d syntheses", len(results))
	}
}

func TestHierarchicalSkipsSmallGroups(t *testing.T) {
	mock := &llm.MockClient{Response: &llm.Response{Content: validResponse}}
	e := newEngine(mock)

	input := []memory.Memory{
		{ID: "1", Content: "alpha note", Type: "episodic", Tags: []string{"alpha"}, CreatedAt: time.Now()},
		{ID: "2", Content: "alpha followup", Type: "episodic", Tags: []string{"alpha"}, CreatedAt: time.Now()},
		{ID: "3", Content: "lonely", Type: "episodic", Tags: []string{"beta"}, CreatedAt: time.Now()},
	}
	results, _, err := e.Synthesize(context.Background(), input, Request{Strategy: StrategyHierarchical})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 (beta has a single member)", len(results))
	}
	if results[0].Metadata["theme"] != "alpha" {
		t.Errorf("theme = %v", results[0].Metadata["theme"])
	}
}

func TestComparativeGroups(t *testing.T) {
	mock := &llm.MockClient{Response: &llm.Response{Content: validResponse}}
	e := newEngine(mock)

	input := []memory.Memory{
		{ID: "1", Content: "kubernetes cluster deployment rollout strategy notes", CreatedAt: time.Now()},
		{ID: "2", Content: "kubernetes cluster upgrade rollback strategy planning", CreatedAt: time.Now()},
		{ID: "3", Content: "banana bread recipe with walnuts", CreatedAt: time.Now()},
	}
	results, _, err := e.Synthesize(context.Background(), input, Request{Strategy: StrategyComparative})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d comparison groups, want 1", len(results))
	}
	if size := results[0].Metadata["group_size"]; size != 2 {
		t.Errorf("group_size = %v, want 2", size)
	}
}

func TestAbstractiveConcepts(t *testing.T) {
	e := newEngine(nil) // nil client: fallback path still extracts concepts

	input := []memory.Memory{
		{ID: "1", Content: "deployment pipeline failure during release", CreatedAt: time.Now()},
		{ID: "2", Content: "deployment rollback after pipeline alert", CreatedAt: time.Now()},
		{ID: "3", Content: "deployment freeze while pipeline stabilizes", CreatedAt: time.Now()},
	}
	results, _, err := e.Synthesize(context.Background(), input, Request{Strategy: StrategyAbstractive})
	if err != nil {
		t.Fatal(err)
	}
	r := results[0]
	if len(r.KeyConcepts) == 0 || r.KeyConcepts[0] != "deployment" {
		t.Errorf("key concepts = %v, want deployment first", r.KeyConcepts)
	}
	if related := r.Relationships["deployment"]; len(related) == 0 {
		t.Errorf("co-occurrence relationships missing: %v", r.Relationships)
	}
}

func findChain(chains []CausalChain, ids ...string) *CausalChain {
	for i, c := range chains {
		if len(c.IDs) != len(ids) {
			continue
		}
		match := true
		for j := range ids {
			if c.IDs[j] != ids[j] {
				match = false
				break
			}
		}
		if match {
			return &chains[i]
		}
	}
	return nil
}
