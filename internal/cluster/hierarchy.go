package cluster

import (
	"fmt"
	"time"

	"github.com/lodestone-labs/synapse/internal/memory"
)

// RootTheme is the synthetic root of a theme hierarchy.
const RootTheme = "knowledge"

// AbstractionLevel assigns a memory its place in the hierarchy: semantic
// memories are the most abstract (3), long-form content sits in the middle
// (2), everything else is concrete detail (1).
func AbstractionLevel(m *memory.Memory) int {
	switch {
	case m.Type == "semantic":
		return 3
	case len(m.Content) > 1000:
		return 2
	default:
		return 1
	}
}

// BuildHierarchy arranges memories into a tree: a synthetic root, one child
// per abstraction level (highest first), and per-level theme clusters below
// that. Each node owns its sub-themes; no cluster has more than one parent.
func (c *Clusterer) BuildHierarchy(mems []memory.Memory) *Cluster {
	root := newCluster(RootTheme, nil)

	byLevel := make(map[int][]memory.Memory)
	for _, m := range mems {
		lvl := AbstractionLevel(&m)
		byLevel[lvl] = append(byLevel[lvl], m)
	}

	for lvl := 3; lvl >= 1; lvl-- {
		group, ok := byLevel[lvl]
		if !ok {
			continue
		}
		levelNode := newCluster(fmt.Sprintf("level-%d", lvl), group)
		levelNode.SubThemes = c.ByTag(group)
		root.SubThemes = append(root.SubThemes, levelNode)
	}

	root.Memories = nil
	root.Importance = Importance(mems, time.Now())
	return root
}

// ParentIndex builds the derived parent lookup for a hierarchy. Parents are
// not stored on nodes; path-to-root queries go through this map.
func ParentIndex(root *Cluster) map[*Cluster]*Cluster {
	parents := make(map[*Cluster]*Cluster)
	var walk func(node *Cluster)
	walk = func(node *Cluster) {
		for _, child := range node.SubThemes {
			parents[child] = node
			walk(child)
		}
	}
	walk(root)
	return parents
}

// PathToRoot returns the themes from the given node up to the root,
// inclusive.
func PathToRoot(node *Cluster, parents map[*Cluster]*Cluster) []string {
	var path []string
	for n := node; n != nil; n = parents[n] {
		path = append(path, n.Theme)
	}
	return path
}

// Recency thresholds for cluster importance.
const (
	recencyFresh = 30 * 24 * time.Hour
	recencyStale = 365 * 24 * time.Hour
)

// Importance scores a cluster from its current members:
// 0.5 * normalized average member importance + 0.3 * size factor (saturating
// at 10 members) + 0.2 * recency of the newest member. Always recomputed,
// never cached across membership changes.
func Importance(mems []memory.Memory, now time.Time) float64 {
	if len(mems) == 0 {
		return 0
	}

	var sum, maxImp float64
	newest := mems[0].CreatedAt
	for _, m := range mems {
		sum += m.Importance
		if m.Importance > maxImp {
			maxImp = m.Importance
		}
		if m.CreatedAt.After(newest) {
			newest = m.CreatedAt
		}
	}
	if maxImp <= 0 {
		maxImp = 1
	}
	avg := sum / float64(len(mems)) / maxImp

	size := float64(len(mems)) / 10
	if size > 1 {
		size = 1
	}

	return 0.5*avg + 0.3*size + 0.2*recencyFactor(now.Sub(newest))
}

// recencyFactor is 1.0 within 30 days, 0 beyond a year, linear in between.
func recencyFactor(age time.Duration) float64 {
	if age <= recencyFresh {
		return 1
	}
	if age >= recencyStale {
		return 0
	}
	return 1 - float64(age-recencyFresh)/float64(recencyStale-recencyFresh)
}

func newCluster(theme string, mems []memory.Memory) *Cluster {
	return &Cluster{
		Theme:      theme,
		Memories:   mems,
		Importance: Importance(mems, time.Now()),
	}
}
