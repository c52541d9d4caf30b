package layout

import (
	"fmt"
	"time"

	"github.com/lodestone-labs/synapse/internal/memory"
	"github.com/lodestone-labs/synapse/internal/metrics"
	"github.com/lodestone-labs/synapse/internal/relgraph"
)

// Algorithm selects how nodes are positioned.
type Algorithm string

const (
	AlgorithmForce        Algorithm = "force_directed"
	AlgorithmHierarchical Algorithm = "hierarchical"
	AlgorithmCircular     Algorithm = "circular"
	AlgorithmRadial       Algorithm = "radial"
	AlgorithmTimeline     Algorithm = "timeline"
	AlgorithmClustered    Algorithm = "clustered"
)

// Clustering selects how nodes are partitioned before layout.
type Clustering string

const (
	ClusterNone      Clustering = "none"
	ClusterCommunity Clustering = "community"
	ClusterTag       Clustering = "tag"
	ClusterType      Clustering = "type"
)

// Sizing selects the node size driver.
type Sizing string

const (
	SizeByImportance  Sizing = "importance"
	SizeByConnections Sizing = "connections"
)

// ColorScheme selects how nodes are colored.
type ColorScheme string

const (
	ColorByType       ColorScheme = "type"
	ColorByImportance ColorScheme = "importance"
	ColorByAge        ColorScheme = "age"
	ColorByCluster    ColorScheme = "cluster"
)

// canvasExtent is the half-width of the square layout canvas. Every
// algorithm scales its output to fit within ±canvasExtent.
const canvasExtent = 500.0

// Node is one positioned memory in the rendered graph.
type Node struct {
	ID      string  `json:"id"`
	Label   string  `json:"label"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Size    float64 `json:"size"`
	Color   string  `json:"color"`
	Cluster int     `json:"cluster"`
	Degree  int     `json:"degree"`

	importance float64
	memType    string
	createdAt  time.Time
}

// Edge is an undirected weighted connection between two nodes.
type Edge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
	Type   string  `json:"type"`
}

// Graph is the positioned output ready for rendering.
type Graph struct {
	Nodes     []*Node   `json:"nodes"`
	Edges     []Edge    `json:"edges"`
	Algorithm Algorithm `json:"algorithm"`
	Clusters  int       `json:"clusters"`
}

// Options control graph construction and layout.
type Options struct {
	Algorithm      Algorithm   `json:"algorithm"`
	Clustering     Clustering  `json:"clustering"`
	Sizing         Sizing      `json:"sizing"`
	Colors         ColorScheme `json:"colors"`
	IncludeOrphans bool        `json:"include_orphans"`
}

// Build assembles an attributed graph from memories and relationship scores,
// partitions it when clustering is requested, runs the selected layout, and
// applies sizing and coloring. Orphan nodes are dropped unless requested.
func Build(mems []memory.Memory, rels []relgraph.Score, opts Options) (*Graph, error) {
	if opts.Algorithm == "" {
		opts.Algorithm = AlgorithmForce
	}
	if opts.Sizing == "" {
		opts.Sizing = SizeByImportance
	}
	if opts.Colors == "" {
		opts.Colors = ColorByType
	}

	nodes := make([]*Node, 0, len(mems))
	index := make(map[string]*Node, len(mems))
	for _, m := range mems {
		n := &Node{
			ID:         m.ID,
			Label:      m.Title(),
			importance: m.Importance,
			memType:    m.Type,
			createdAt:  m.CreatedAt,
		}
		nodes = append(nodes, n)
		index[m.ID] = n
	}

	var edges []Edge
	for _, r := range rels {
		if index[r.TargetID] == nil || index[r.RelatedID] == nil {
			continue
		}
		edges = append(edges, Edge{
			Source: r.TargetID,
			Target: r.RelatedID,
			Weight: r.Composite,
			Type:   string(r.PrimaryType),
		})
		index[r.TargetID].Degree++
		index[r.RelatedID].Degree++
	}

	if !opts.IncludeOrphans {
		kept := nodes[:0]
		for _, n := range nodes {
			if n.Degree > 0 {
				kept = append(kept, n)
			} else {
				delete(index, n.ID)
			}
		}
		nodes = kept
	}
	if len(nodes) == 0 {
		return &Graph{Nodes: []*Node{}, Edges: []Edge{}, Algorithm: opts.Algorithm}, nil
	}

	g := &Graph{Nodes: nodes, Edges: edges, Algorithm: opts.Algorithm}

	tagsByID := make(map[string][]string, len(mems))
	for _, m := range mems {
		tagsByID[m.ID] = m.Tags
	}
	g.Clusters = assignClusters(g, opts.Clustering, tagsByID)

	switch opts.Algorithm {
	case AlgorithmForce:
		layoutForce(g)
	case AlgorithmHierarchical:
		layoutHierarchical(g)
	case AlgorithmCircular:
		layoutCircular(g)
	case AlgorithmRadial:
		layoutRadial(g)
	case AlgorithmTimeline:
		layoutTimeline(g)
	case AlgorithmClustered:
		layoutClustered(g)
	default:
		return nil, fmt.Errorf("unknown layout algorithm %q", opts.Algorithm)
	}

	applySizing(g, opts.Sizing)
	applyColors(g, opts.Colors)

	metrics.Default().IncLayout(string(opts.Algorithm))
	return g, nil
}

// applySizing maps the chosen driver through normalize(v)*1.5 + 0.5.
func applySizing(g *Graph, sizing Sizing) {
	values := make([]float64, len(g.Nodes))
	for i, n := range g.Nodes {
		if sizing == SizeByConnections {
			values[i] = float64(n.Degree)
		} else {
			values[i] = n.importance
		}
	}

	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	for i, n := range g.Nodes {
		norm := 0.5
		if max > min {
			norm = (values[i] - min) / (max - min)
		}
		n.Size = norm*1.5 + 0.5
	}
}
