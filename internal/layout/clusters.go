package layout

import (
	"sort"
	"strings"
)

// assignClusters partitions nodes per the requested scheme and writes the
// cluster index onto each node. Returns the number of clusters.
func assignClusters(g *Graph, scheme Clustering, tagsByID map[string][]string) int {
	switch scheme {
	case ClusterTag:
		return clusterByKey(g, func(n *Node) string {
			tags := tagsByID[n.ID]
			if len(tags) > 0 && strings.TrimSpace(tags[0]) != "" {
				return strings.ToLower(strings.TrimSpace(tags[0]))
			}
			return ""
		})
	case ClusterType:
		return clusterByKey(g, func(n *Node) string { return n.memType })
	case ClusterCommunity:
		return clusterByCommunity(g)
	default:
		for _, n := range g.Nodes {
			n.Cluster = 0
		}
		if len(g.Nodes) == 0 {
			return 0
		}
		return 1
	}
}

func clusterByKey(g *Graph, key func(*Node) string) int {
	index := make(map[string]int)
	for _, n := range g.Nodes {
		k := key(n)
		id, ok := index[k]
		if !ok {
			id = len(index)
			index[k] = id
		}
		n.Cluster = id
	}
	return len(index)
}

const labelPropagationRounds = 10

// clusterByCommunity runs synchronous label propagation: every node starts
// in its own community and repeatedly adopts the label carrying the most
// edge weight among its neighbors. Nodes are visited in ID order and ties
// break toward the smallest label, so the result is deterministic.
func clusterByCommunity(g *Graph) int {
	labels := make(map[string]int, len(g.Nodes))
	ordered := append([]*Node(nil), g.Nodes...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
	for i, n := range ordered {
		labels[n.ID] = i
	}

	adj := make(map[string]map[string]float64)
	for _, e := range g.Edges {
		if adj[e.Source] == nil {
			adj[e.Source] = make(map[string]float64)
		}
		if adj[e.Target] == nil {
			adj[e.Target] = make(map[string]float64)
		}
		adj[e.Source][e.Target] += e.Weight
		adj[e.Target][e.Source] += e.Weight
	}

	for round := 0; round < labelPropagationRounds; round++ {
		changed := false
		for _, n := range ordered {
			weight := make(map[int]float64)
			for peer, w := range adj[n.ID] {
				weight[labels[peer]] += w
			}
			if len(weight) == 0 {
				continue
			}

			best, bestWeight := labels[n.ID], weight[labels[n.ID]]
			cands := make([]int, 0, len(weight))
			for label := range weight {
				cands = append(cands, label)
			}
			sort.Ints(cands)
			for _, label := range cands {
				if weight[label] > bestWeight {
					best, bestWeight = label, weight[label]
				}
			}
			if best != labels[n.ID] {
				labels[n.ID] = best
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	// Compact labels to 0..k-1 in first-seen order.
	compact := make(map[int]int)
	for _, n := range ordered {
		label := labels[n.ID]
		if _, ok := compact[label]; !ok {
			compact[label] = len(compact)
		}
	}
	for _, n := range g.Nodes {
		n.Cluster = compact[labels[n.ID]]
	}
	return len(compact)
}
