package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/lodestone-labs/synapse/internal/llm"
	"github.com/lodestone-labs/synapse/internal/memory"
	"github.com/lodestone-labs/synapse/internal/scoring"
)

// UncategorizedTheme labels memories no strategy could place.
const UncategorizedTheme = "uncategorized"

// Cluster is a group of memories sharing a theme, optionally nested.
// A cluster owns its sub-themes; they are never shared across parents.
type Cluster struct {
	Theme      string          `json:"theme"`
	Memories   []memory.Memory `json:"memories"`
	SubThemes  []*Cluster      `json:"sub_themes,omitempty"`
	Importance float64         `json:"importance_score"`
}

// Clusterer groups memories into theme clusters. The LLM client is optional;
// without it implicit clustering falls back to the uncategorized bucket.
type Clusterer struct {
	LLM  llm.Client
	Seed int64 // k-means seed; fixed for deterministic clustering
}

// New returns a Clusterer with a fixed default seed.
func New(client llm.Client) *Clusterer {
	return &Clusterer{LLM: client, Seed: 1}
}

// ByTag groups memories by their first tag. Untagged memories fall back to
// the first word of their content as a theme label.
func (c *Clusterer) ByTag(mems []memory.Memory) []*Cluster {
	groups := make(map[string][]memory.Memory)
	var order []string
	for _, m := range mems {
		theme := tagTheme(&m)
		if _, seen := groups[theme]; !seen {
			order = append(order, theme)
		}
		groups[theme] = append(groups[theme], m)
	}

	clusters := make([]*Cluster, 0, len(order))
	for _, theme := range order {
		clusters = append(clusters, newCluster(theme, groups[theme]))
	}
	return clusters
}

// Semantic clusters memories by k-means over their embeddings with
// k = min(5, n/3). Fewer than two clusters collapse into one. Memories
// without embeddings are collected into an uncategorized cluster.
// Deterministic given the configured seed.
func (c *Clusterer) Semantic(mems []memory.Memory) []*Cluster {
	var embeddable []memory.Memory
	var rest []memory.Memory
	for _, m := range mems {
		if m.HasEmbedding() {
			embeddable = append(embeddable, m)
		} else {
			rest = append(rest, m)
		}
	}

	var clusters []*Cluster

	k := len(embeddable) / 3
	if k > 5 {
		k = 5
	}
	if k < 2 {
		if len(embeddable) > 0 {
			clusters = append(clusters, newCluster(semanticTheme(embeddable), embeddable))
		}
	} else {
		vectors := make([][]float64, len(embeddable))
		for i := range embeddable {
			vectors[i] = embeddable[i].Embedding
		}
		assignments := kmeans(vectors, k, c.Seed, 50)

		groups := make([][]memory.Memory, k)
		for i, cl := range assignments {
			groups[cl] = append(groups[cl], embeddable[i])
		}
		for _, group := range groups {
			if len(group) == 0 {
				continue
			}
			clusters = append(clusters, newCluster(semanticTheme(group), group))
		}
	}

	if len(rest) > 0 {
		clusters = append(clusters, newCluster(UncategorizedTheme, rest))
	}
	return clusters
}

// Implicit asks the text-generation collaborator to propose theme labels for
// memories with no usable tags. Malformed responses degrade to a single
// uncategorized cluster instead of failing.
func (c *Clusterer) Implicit(ctx context.Context, mems []memory.Memory) []*Cluster {
	var untagged []memory.Memory
	for _, m := range mems {
		if len(m.Tags) == 0 {
			untagged = append(untagged, m)
		}
	}
	if len(untagged) == 0 {
		return nil
	}
	if c.LLM == nil {
		return []*Cluster{newCluster(UncategorizedTheme, untagged)}
	}

	excerpts := make([]string, len(untagged))
	for i, m := range untagged {
		excerpts[i] = fmt.Sprintf("%d. %s", i, m.Preview(150))
	}

	resp, err := c.LLM.Complete(ctx, llm.Request{Prompt: llm.ThemeLabelPrompt(excerpts)})
	if err != nil {
		log.Printf("cluster: theme labeling failed: %v", err)
		return []*Cluster{newCluster(UncategorizedTheme, untagged)}
	}

	labels := parseThemeLabels(resp.Content)
	if len(labels) == 0 {
		return []*Cluster{newCluster(UncategorizedTheme, untagged)}
	}

	groups := make(map[string][]memory.Memory)
	var order []string
	for i, m := range untagged {
		theme, ok := labels[i]
		if !ok || theme == "" {
			theme = UncategorizedTheme
		}
		if _, seen := groups[theme]; !seen {
			order = append(order, theme)
		}
		groups[theme] = append(groups[theme], m)
	}

	clusters := make([]*Cluster, 0, len(order))
	for _, theme := range order {
		clusters = append(clusters, newCluster(theme, groups[theme]))
	}
	return clusters
}

// themeLabel is the JSON structure returned by the theme labeling LLM.
type themeLabel struct {
	Index int    `json:"index"`
	Theme string `json:"theme"`
}

// parseThemeLabels extracts the JSON array of labels from the LLM response.
// Returns nil on anything malformed; the caller falls back to uncategorized.
func parseThemeLabels(content string) map[int]string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		if len(lines) > 2 {
			content = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}
	content = strings.TrimSpace(content)

	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end < 0 || end <= start {
		return nil
	}

	var labels []themeLabel
	if err := json.Unmarshal([]byte(content[start:end+1]), &labels); err != nil {
		return nil
	}

	out := make(map[int]string, len(labels))
	for _, l := range labels {
		out[l.Index] = strings.ToLower(strings.TrimSpace(l.Theme))
	}
	return out
}

func tagTheme(m *memory.Memory) string {
	if len(m.Tags) > 0 && strings.TrimSpace(m.Tags[0]) != "" {
		return strings.ToLower(strings.TrimSpace(m.Tags[0]))
	}
	if words := scoring.Tokenize(m.Title()); len(words) > 0 {
		return words[0]
	}
	return UncategorizedTheme
}

// semanticTheme labels a semantic cluster by its most frequent non-stop-word
// token across member contents.
func semanticTheme(mems []memory.Memory) string {
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
	best, bestCount := UncategorizedTheme, 0
	var keys []string
	for tok := range counts {
		keys = append(keys, tok)
	}
	sort.Strings(keys) // deterministic tie-break
	for _, tok := range keys {
		if counts[tok] > bestCount {
			best, bestCount = tok, counts[tok]
		}
	}
	return best
}
