package synthesis

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lodestone-labs/synapse/internal/memory"
)

// CausalGraph is a directed graph over memory IDs with weighted edges.
// An edge u->v means u plausibly caused v.
type CausalGraph struct {
	Nodes []string
	Edges map[string]map[string]float64
}

// CausalChain is an ordered sequence of memory IDs connected by causal edges.
// Strength is the product of edge weights, so it never grows with length.
type CausalChain struct {
	IDs      []string `json:"memory_ids"`
	Strength float64  `json:"strength"`
}

// BuildCausalGraph detects directed causal edges between the given memories.
// An edge exists only when causality evidence exceeds the threshold and the
// effect strictly follows the cause in time.
func (e *Engine) BuildCausalGraph(mems []memory.Memory) *CausalGraph {
	g := &CausalGraph{Edges: make(map[string]map[string]float64)}
	for _, m := range mems {
		g.Nodes = append(g.Nodes, m.ID)
	}

	for i := range mems {
		for j := range mems {
			if i == j || !mems[j].CreatedAt.After(mems[i].CreatedAt) {
				continue
			}
			w := e.scorer.DetectCausality(&mems[i], &mems[j])
			if w <= e.cfg.CausalityThreshold {
				continue
			}
			if g.Edges[mems[i].ID] == nil {
				g.Edges[mems[i].ID] = make(map[string]float64)
			}
			g.Edges[mems[i].ID][mems[j].ID] = w
		}
	}
	return g
}

// Chains enumerates simple paths of at most maxLen nodes and keeps those
// whose strength exceeds threshold. Paths never revisit a node, keeping the
// search polynomial under the length bound.
func (g *CausalGraph) Chains(maxLen int, threshold float64) []CausalChain {
	var chains []CausalChain
	visited := make(map[string]bool)

	var walk func(path []string, strength float64)
	walk = func(path []string, strength float64) {
		last := path[len(path)-1]
		if len(path) >= 2 && strength > threshold {
			chains = append(chains, CausalChain{
				IDs:      append([]string(nil), path...),
				Strength: strength,
			})
		}
		if len(path) >= maxLen {
			return
		}

		nexts := make([]string, 0, len(g.Edges[last]))
		for next := range g.Edges[last] {
			nexts = append(nexts, next)
		}
		sort.Strings(nexts) // deterministic enumeration order
		for _, next := range nexts {
			if visited[next] {
				continue
			}
			visited[next] = true
			walk(append(path, next), strength*g.Edges[last][next])
			visited[next] = false
		}
	}

	starts := append([]string(nil), g.Nodes...)
	sort.Strings(starts)
	for _, start := range starts {
		visited[start] = true
		walk([]string{start}, 1)
		visited[start] = false
	}

	sort.SliceStable(chains, func(i, j int) bool {
		return chains[i].Strength > chains[j].Strength
	})
	return chains
}

// causal synthesizes one narrative per causal chain found in the input set.
func (e *Engine) causal(ctx context.Context, mems []memory.Memory) []*Synthesized {
	byID := make(map[string]memory.Memory, len(mems))
	for _, m := range mems {
		byID[m.ID] = m
	}

	g := e.BuildCausalGraph(mems)
	chains := g.Chains(e.cfg.MaxChainLength, e.cfg.ChainThreshold)

	var out []*Synthesized
	for _, chain := range chains {
		sources := make([]memory.Memory, 0, len(chain.IDs))
		titles := make([]string, 0, len(chain.IDs))
		for _, id := range chain.IDs {
			m := byID[id]
			sources = append(sources, m)
			titles = append(titles, m.Title())
		}

		instruction := fmt.Sprintf(
			"Explain the causal chain connecting these memories in order (%s). Describe how each event led to the next.",
			strings.Join(titles, " -> "))
		s := e.generate(ctx, StrategyCausal, "Causal chain: "+titles[0], instruction, sources, "")
		s.Metadata["chain_strength"] = chain.Strength
		s.Metadata["chain_length"] = len(chain.IDs)
		out = append(out, s)
	}
	return out
}
