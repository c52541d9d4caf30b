package synthesis

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lodestone-labs/synapse/internal/memory"
	"github.com/lodestone-labs/synapse/internal/scoring"
)

// hierarchical synthesizes one narrative per theme group at each abstraction
// level. Theme groups with fewer than two members are skipped.
func (e *Engine) hierarchical(ctx context.Context, mems []memory.Memory) []*Synthesized {
	root := e.clusterer.BuildHierarchy(mems)

	var out []*Synthesized
	for _, level := range root.SubThemes {
		for _, theme := range level.SubThemes {
			if len(theme.Memories) < 2 {
				continue
			}
			instruction := fmt.Sprintf(
				"Synthesize the memories under theme %q (%s) into one coherent narrative capturing what they collectively say.",
				theme.Theme, level.Theme)
			s := e.generate(ctx, StrategyHierarchical, "Theme: "+theme.Theme, instruction, theme.Memories, "")
			s.Metadata["theme"] = theme.Theme
			s.Metadata["abstraction_level"] = level.Theme
			out = append(out, s)
		}
	}
	return out
}

// semantic synthesizes one narrative per embedding cluster with at least two
// members.
func (e *Engine) semantic(ctx context.Context, mems []memory.Memory) []*Synthesized {
	var out []*Synthesized
	for _, c := range e.clusterer.Semantic(mems) {
		if len(c.Memories) < 2 {
			continue
		}
		instruction := fmt.Sprintf(
			"These memories cluster around %q. Synthesize them into one narrative describing the shared topic.", c.Theme)
		s := e.generate(ctx, StrategySemantic, "Cluster: "+c.Theme, instruction, c.Memories, "")
		s.Metadata["theme"] = c.Theme
		s.Metadata["cluster_importance"] = c.Importance
		out = append(out, s)
	}
	return out
}

// Comparable-set bounds: members must be similar enough to compare but not
// near-duplicates.
const (
	comparableMin = 0.15
	comparableMax = 0.85
)

// comparative groups memories into comparable sets and synthesizes a
// contrast narrative per set.
func (e *Engine) comparative(ctx context.Context, mems []memory.Memory) []*Synthesized {
	used := make([]bool, len(mems))
	extraFields := ",\n  \"similarities\": [...],\n  \"differences\": [...],\n  \"insights\": [...]"

	var out []*Synthesized
	for i := range mems {
		if used[i] {
			continue
		}
		group := []memory.Memory{mems[i]}
		used[i] = true
		for j := i + 1; j < len(mems); j++ {
			if used[j] {
				continue
			}
			overlap := e.scorer.ContentOverlap(mems[i].Content, mems[j].Content)
			if overlap > comparableMin && overlap < comparableMax {
				group = append(group, mems[j])
				used[j] = true
			}
		}
		if len(group) < 2 {
			continue
		}

		s := e.generate(ctx, StrategyComparative, "Comparison: "+group[0].Title(),
			"Compare and contrast these memories. Identify their similarities, their differences, and what the contrast reveals.",
			group, extraFields)
		s.Metadata["group_size"] = len(group)
		out = append(out, s)
	}
	return out
}

// abstractive extracts a concept co-occurrence graph across all inputs and
// synthesizes a single high-level narrative.
func (e *Engine) abstractive(ctx context.Context, mems []memory.Memory) []*Synthesized {
	concepts := topConcepts(mems, 8)
	cooc := conceptGraph(mems, concepts)

	instruction := "Abstract these memories into general principles. State the higher-level patterns they demonstrate, not the individual details."
	if len(concepts) > 0 {
		instruction += fmt.Sprintf(" The dominant concepts are: %s.", strings.Join(concepts, ", "))
	}
	extraFields := ",\n  \"principles\": [...],\n  \"generalizations\": [...],\n  \"implications\": [...]"

	s := e.generate(ctx, StrategyAbstractive, "Abstraction", instruction, mems, extraFields)
	if len(s.KeyConcepts) == 0 {
		s.KeyConcepts = concepts
	}
	if len(s.Relationships) == 0 {
		s.Relationships = cooc
	}
	return []*Synthesized{s}
}

// topConcepts returns the n most frequent non-stop-word tokens across the
// memory contents, counting each token once per memory.
func topConcepts(mems []memory.Memory, n int) []string {
	counts := make(map[string]int)
	for _, m := range mems {
		seen := make(map[string]bool)
		for _, tok := range scoring.Tokenize(m.Content) {
			if !seen[tok] {
				counts[tok]++
				seen[tok] = true
			}
		}
	}

	tokens := make([]string, 0, len(counts))
	for tok := range counts {
		tokens = append(tokens, tok)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if counts[tokens[i]] != counts[tokens[j]] {
			return counts[tokens[i]] > counts[tokens[j]]
		}
		return tokens[i] < tokens[j]
	})
	if len(tokens) > n {
		tokens = tokens[:n]
	}
	return tokens
}

// conceptGraph maps each top concept to the other top concepts it co-occurs
// with inside at least one memory.
func conceptGraph(mems []memory.Memory, concepts []string) map[string][]string {
	isConcept := make(map[string]bool, len(concepts))
	for _, c := range concepts {
		isConcept[c] = true
	}

	pairs := make(map[string]map[string]bool)
	for _, m := range mems {
		present := make(map[string]bool)
		for _, tok := range scoring.Tokenize(m.Content) {
			if isConcept[tok] {
				present[tok] = true
			}
		}
		for a := range present {
			for b := range present {
				if a == b {
					continue
				}
				if pairs[a] == nil {
					pairs[a] = make(map[string]bool)
				}
				pairs[a][b] = true
			}
		}
	}

	out := make(map[string][]string, len(pairs))
	for a, related := range pairs {
		var list []string
		for b := range related {
			list = append(list, b)
		}
		sort.Strings(list)
		out[a] = list
	}
	return out
}
