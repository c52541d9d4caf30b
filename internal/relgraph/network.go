package relgraph

import (
	"context"
	"log"

	"github.com/lodestone-labs/synapse/internal/scoring"
)

// NetworkEntry is one node of the extended relationship network.
type NetworkEntry struct {
	RelatedID string  `json:"related_id"`
	Preview   string  `json:"memory_preview"`
	Secondary []Score `json:"secondary_relationships"`
	Count     int     `json:"relationship_count"`
}

// ExpandNetwork recursively expands the extended network around the direct
// relationships. Hard caps keep the traversal polynomial: the whole network
// holds at most min(BranchLimit, len(direct)) entries, each recursion halves
// maxConnections and decrements remainingDepth, and each entry keeps at most
// SecondaryLimit secondary relationships. A failed fetch skips that node and
// never aborts the traversal.
func (a *Analyzer) ExpandNetwork(ctx context.Context, direct []Score, remainingDepth, maxConnections int) map[string]NetworkEntry {
	visited := map[string]bool{}
	for _, rel := range direct {
		visited[rel.TargetID] = true
	}
	maxEntries := a.cfg.BranchLimit
	if len(direct) < maxEntries {
		maxEntries = len(direct)
	}
	return a.expand(ctx, direct, remainingDepth, maxConnections, maxEntries, visited)
}

func (a *Analyzer) expand(ctx context.Context, rels []Score, remainingDepth, maxConnections, maxEntries int, visited map[string]bool) map[string]NetworkEntry {
	network := make(map[string]NetworkEntry)
	if remainingDepth <= 0 || len(rels) == 0 || maxEntries <= 0 {
		return network
	}

	limit := a.cfg.BranchLimit
	if len(rels) < limit {
		limit = len(rels)
	}

	for _, rel := range rels[:limit] {
		if len(network) >= maxEntries {
			break
		}
		if visited[rel.RelatedID] {
			continue
		}
		visited[rel.RelatedID] = true

		mem, err := a.source.GetMemory(ctx, rel.RelatedID)
		if err != nil {
			log.Printf("expand: fetch %s: %v", rel.RelatedID, err)
			continue
		}

		candidates, err := a.source.GetCandidates(ctx, rel.RelatedID, maxConnections)
		if err != nil {
			log.Printf("expand: candidates for %s: %v", rel.RelatedID, err)
			continue
		}

		secondary := a.Analyze(mem, candidates, scoring.AllSignals)
		if len(secondary) > a.cfg.SecondaryLimit {
			secondary = secondary[:a.cfg.SecondaryLimit]
		}

		network[rel.RelatedID] = NetworkEntry{
			RelatedID: rel.RelatedID,
			Preview:   mem.Preview(100),
			Secondary: secondary,
			Count:     len(secondary),
		}

		// Deeper levels contribute entries for nodes not already seen,
		// within whatever entry budget remains.
		sub := a.expand(ctx, secondary, remainingDepth-1, maxConnections/2, maxEntries-len(network), visited)
		for id, entry := range sub {
			if len(network) >= maxEntries {
				break
			}
			if _, exists := network[id]; !exists {
				network[id] = entry
			}
		}
	}

	return network
}
