package layout

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/lodestone-labs/synapse/internal/memory"
	"github.com/lodestone-labs/synapse/internal/relgraph"
)

func graphInput(n int) ([]memory.Memory, []relgraph.Score) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mems := make([]memory.Memory, n)
	for i := range mems {
		mems[i] = memory.Memory{
			ID:         fmt.Sprintf("m%d", i),
			Content:    fmt.Sprintf("memory %d", i),
			Type:       "episodic",
			Importance: float64(i) / float64(n),
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		}
	}
	// Chain topology: m0-m1-m2-...
	var rels []relgraph.Score
	for i := 1; i < n; i++ {
		rels = append(rels, relgraph.Score{
			TargetID:    mems[i-1].ID,
			RelatedID:   mems[i].ID,
			Composite:   0.6,
			PrimaryType: "semantic_similarity",
		})
	}
	return mems, rels
}

func TestBuildExcludesOrphans(t *testing.T) {
	mems, rels := graphInput(4)
	mems = append(mems, memory.Memory{ID: "orphan", Content: "alone", CreatedAt: time.Now()})

	g, err := Build(mems, rels, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Nodes) != 4 {
		t.Errorf("got %d nodes, want 4 (orphan dropped)", len(g.Nodes))
	}

	g, err = Build(mems, rels, Options{IncludeOrphans: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Nodes) != 5 {
		t.Errorf("got %d nodes, want 5 with orphans included", len(g.Nodes))
	}
}

func TestBuildEdgeAttributes(t *testing.T) {
	mems, rels := graphInput(3)
	g, err := Build(mems, rels, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Edges) != 2 {
		t.Fatalf("got %d edges, want 2", len(g.Edges))
	}
	for _, e := range g.Edges {
		if e.Type != "semantic_similarity" {
			t.Errorf("edge type = %q, want the primary signal name", e.Type)
		}
		if e.Weight != 0.6 {
			t.Errorf("edge weight = %v, want the composite score", e.Weight)
		}
	}
}

func TestBuildUnknownAlgorithm(t *testing.T) {
	mems, rels := graphInput(3)
	if _, err := Build(mems, rels, Options{Algorithm: "spiral"}); err == nil {
		t.Fatal("expected error for unknown algorithm")
	}
}

func TestBuildEmpty(t *testing.T) {
	g, err := Build(nil, nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Nodes) != 0 || len(g.Edges) != 0 {
		t.Errorf("empty input should yield empty graph: %+v", g)
	}
}

func TestForceLayoutBounds(t *testing.T) {
	mems, rels := graphInput(12)
	g, err := Build(mems, rels, Options{Algorithm: AlgorithmForce})
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range g.Nodes {
		if math.Abs(n.X) > canvasExtent || math.Abs(n.Y) > canvasExtent {
			t.Errorf("node %s at (%v,%v) outside canvas", n.ID, n.X, n.Y)
		}
	}
	// Distinct positions.
	seen := make(map[string]bool)
	for _, n := range g.Nodes {
		key := fmt.Sprintf("%.1f,%.1f", n.X, n.Y)
		if seen[key] {
			t.Errorf("nodes overlap at %s", key)
		}
		seen[key] = true
	}
}

func TestForceLayoutDeterministic(t *testing.T) {
	mems, rels := graphInput(10)
	first, err := Build(mems, rels, Options{Algorithm: AlgorithmForce})
	if err != nil {
		t.Fatal(err)
	}
	second, err := Build(mems, rels, Options{Algorithm: AlgorithmForce})
	if err != nil {
		t.Fatal(err)
	}
	for i := range first.Nodes {
		if first.Nodes[i].X != second.Nodes[i].X || first.Nodes[i].Y != second.Nodes[i].Y {
			t.Fatalf("node %s moved between identical runs", first.Nodes[i].ID)
		}
	}
}

func TestHierarchicalLevels(t *testing.T) {
	mems, rels := graphInput(5)
	g, err := Build(mems, rels, Options{Algorithm: AlgorithmHierarchical})
	if err != nil {
		t.Fatal(err)
	}

	// Chain m0->m1->...->m4: levels are strictly increasing in Y.
	byID := make(map[string]*Node)
	for _, n := range g.Nodes {
		byID[n.ID] = n
	}
	for i := 1; i < 5; i++ {
		prev := byID[fmt.Sprintf("m%d", i-1)]
		cur := byID[fmt.Sprintf("m%d", i)]
		if cur.Y <= prev.Y {
			t.Errorf("m%d (y=%v) not below m%d (y=%v)", i, cur.Y, i-1, prev.Y)
		}
	}
}

func TestHierarchicalCycleFallsBack(t *testing.T) {
	mems, _ := graphInput(3)
	rels := []relgraph.Score{
		{TargetID: "m0", RelatedID: "m1", Composite: 0.5},
		{TargetID: "m1", RelatedID: "m2", Composite: 0.5},
		{TargetID: "m2", RelatedID: "m0", Composite: 0.5},
	}
	g, err := Build(mems, rels, Options{Algorithm: AlgorithmHierarchical})
	if err != nil {
		t.Fatal(err)
	}
	// No in-degree-0 root: force fallback still positions everything.
	for _, n := range g.Nodes {
		if math.Abs(n.X) > canvasExtent || math.Abs(n.Y) > canvasExtent {
			t.Errorf("fallback left %s outside canvas", n.ID)
		}
	}
}

func TestCircularLayout(t *testing.T) {
	mems, rels := graphInput(8)
	g, err := Build(mems, rels, Options{Algorithm: AlgorithmCircular})
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range g.Nodes {
		r := math.Hypot(n.X, n.Y)
		if math.Abs(r-circleRadius) > 1e-6 {
			t.Errorf("node %s at radius %v, want %v", n.ID, r, circleRadius)
		}
	}
}

func TestRadialCenter(t *testing.T) {
	// Star topology: hub connected to everything.
	base := time.Now()
	mems := []memory.Memory{{ID: "hub", Content: "hub", CreatedAt: base}}
	var rels []relgraph.Score
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("spoke%d", i)
		mems = append(mems, memory.Memory{ID: id, Content: id, CreatedAt: base})
		rels = append(rels, relgraph.Score{TargetID: "hub", RelatedID: id, Composite: 0.5})
	}

	g, err := Build(mems, rels, Options{Algorithm: AlgorithmRadial})
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range g.Nodes {
		if n.ID == "hub" {
			if n.X != 0 || n.Y != 0 {
				t.Errorf("hub at (%v,%v), want origin", n.X, n.Y)
			}
		} else if r := math.Hypot(n.X, n.Y); math.Abs(r-200) > 1e-6 {
			t.Errorf("neighbor %s at radius %v, want inner ring 200", n.ID, r)
		}
	}
}

func TestTimelineOrdering(t *testing.T) {
	mems, rels := graphInput(6)
	g, err := Build(mems, rels, Options{Algorithm: AlgorithmTimeline})
	if err != nil {
		t.Fatal(err)
	}

	byID := make(map[string]*Node)
	for _, n := range g.Nodes {
		byID[n.ID] = n
	}
	for i := 1; i < 6; i++ {
		if byID[fmt.Sprintf("m%d", i)].X <= byID[fmt.Sprintf("m%d", i-1)].X {
			t.Errorf("timeline x not increasing at m%d", i)
		}
	}
	first, last := byID["m0"], byID["m5"]
	if first.X != -canvasExtent || last.X != canvasExtent {
		t.Errorf("extremes at %v and %v, want ±%v", first.X, last.X, canvasExtent)
	}
}

func TestClusteredLayoutSeparation(t *testing.T) {
	// Two disconnected communities.
	base := time.Now()
	var mems []memory.Memory
	var rels []relgraph.Score
	for _, prefix := range []string{"a", "b"} {
		for i := 0; i < 4; i++ {
			mems = append(mems, memory.Memory{ID: fmt.Sprintf("%s%d", prefix, i), Content: prefix, CreatedAt: base})
		}
		for i := 1; i < 4; i++ {
			rels = append(rels, relgraph.Score{
				TargetID:  fmt.Sprintf("%s%d", prefix, i-1),
				RelatedID: fmt.Sprintf("%s%d", prefix, i),
				Composite: 0.8,
			})
		}
	}

	g, err := Build(mems, rels, Options{Algorithm: AlgorithmClustered, Clustering: ClusterCommunity})
	if err != nil {
		t.Fatal(err)
	}
	if g.Clusters != 2 {
		t.Fatalf("got %d communities, want 2", g.Clusters)
	}
	for _, n := range g.Nodes {
		for _, m := range g.Nodes {
			if n.ID[0] != m.ID[0] && n.Cluster == m.Cluster {
				t.Errorf("%s and %s share a community", n.ID, m.ID)
			}
		}
	}
}

func TestCommunityDetectionMerges(t *testing.T) {
	mems, rels := graphInput(5)
	g, err := Build(mems, rels, Options{Clustering: ClusterCommunity})
	if err != nil {
		t.Fatal(err)
	}
	// A connected chain collapses into one community.
	if g.Clusters != 1 {
		t.Errorf("connected graph split into %d communities", g.Clusters)
	}
}

func TestTagAndTypeClustering(t *testing.T) {
	base := time.Now()
	mems := []memory.Memory{
		{ID: "1", Content: "a", Type: "episodic", Tags: []string{"work"}, CreatedAt: base},
		{ID: "2", Content: "b", Type: "semantic", Tags: []string{"work"}, CreatedAt: base},
		{ID: "3", Content: "c", Type: "episodic", Tags: []string{"home"}, CreatedAt: base},
	}
	rels := []relgraph.Score{
		{TargetID: "1", RelatedID: "2", Composite: 0.5},
		{TargetID: "2", RelatedID: "3", Composite: 0.5},
	}

	g, err := Build(mems, rels, Options{Clustering: ClusterTag})
	if err != nil {
		t.Fatal(err)
	}
	if g.Clusters != 2 {
		t.Errorf("tag clustering: %d clusters, want 2", g.Clusters)
	}

	g, err = Build(mems, rels, Options{Clustering: ClusterType})
	if err != nil {
		t.Fatal(err)
	}
	if g.Clusters != 2 {
		t.Errorf("type clustering: %d clusters, want 2", g.Clusters)
	}
}

func TestSizing(t *testing.T) {
	mems, rels := graphInput(5)
	g, err := Build(mems, rels, Options{Sizing: SizeByImportance})
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range g.Nodes {
		if n.Size < 0.5 || n.Size > 2.0 {
			t.Errorf("size %v outside [0.5, 2.0]", n.Size)
		}
	}

	g, err = Build(mems, rels, Options{Sizing: SizeByConnections})
	if err != nil {
		t.Fatal(err)
	}
	// Chain: endpoints have degree 1, middles degree 2.
	for _, n := range g.Nodes {
		if n.ID == "m0" || n.ID == "m4" {
			if n.Size != 0.5 {
				t.Errorf("endpoint %s size %v, want 0.5", n.ID, n.Size)
			}
		} else if n.Size != 2.0 {
			t.Errorf("middle %s size %v, want 2.0", n.ID, n.Size)
		}
	}
}

func TestColorSchemes(t *testing.T) {
	mems, rels := graphInput(4)
	mems[0].Type = "semantic"

	g, err := Build(mems, rels, Options{Colors: ColorByType})
	if err != nil {
		t.Fatal(err)
	}
	byID := make(map[string]*Node)
	for _, n := range g.Nodes {
		byID[n.ID] = n
	}
	if byID["m0"].Color != typePalette["semantic"] || byID["m1"].Color != typePalette["episodic"] {
		t.Errorf("type colors: m0=%s m1=%s", byID["m0"].Color, byID["m1"].Color)
	}

	g, err = Build(mems, rels, Options{Colors: ColorByImportance})
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range g.Nodes {
		if len(n.Color) != 7 || n.Color[0] != '#' {
			t.Errorf("bad color %q", n.Color)
		}
	}

	g, err = Build(mems, rels, Options{Colors: ColorByCluster, Clustering: ClusterCommunity})
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range g.Nodes {
		if n.Color != clusterPalette[n.Cluster%len(clusterPalette)] {
			t.Errorf("cluster color mismatch for %s", n.ID)
		}
	}
}
