package layout

import (
	"fmt"
	"time"
)

// typePalette maps memory types to fixed colors. Unknown types get gray.
var typePalette = map[string]string{
	"episodic":   "#3b82f6",
	"semantic":   "#8b5cf6",
	"procedural": "#22c55e",
	"working":    "#f59e0b",
}

const defaultColor = "#71717a"

// clusterPalette cycles per cluster index.
var clusterPalette = []string{
	"#8b5cf6", "#06b6d4", "#22c55e", "#f59e0b", "#ef4444",
	"#14b8a6", "#eab308", "#3b82f6", "#d946ef", "#f97316",
}

func applyColors(g *Graph, scheme ColorScheme) {
	switch scheme {
	case ColorByImportance:
		min, max := g.Nodes[0].importance, g.Nodes[0].importance
		for _, n := range g.Nodes {
			if n.importance < min {
				min = n.importance
			}
			if n.importance > max {
				max = n.importance
			}
		}
		for _, n := range g.Nodes {
			frac := 0.5
			if max > min {
				frac = (n.importance - min) / (max - min)
			}
			// Blue (low) to red (high).
			n.Color = lerpColor(0x3b, 0x82, 0xf6, 0xef, 0x44, 0x44, frac)
		}
	case ColorByAge:
		now := time.Now()
		for _, n := range g.Nodes {
			ageDays := now.Sub(n.createdAt).Hours() / 24
			frac := ageDays / 365
			if frac > 1 {
				frac = 1
			}
			if frac < 0 {
				frac = 0
			}
			// Green (fresh) to gray (old).
			n.Color = lerpColor(0x22, 0xc5, 0x5e, 0x71, 0x71, 0x7a, frac)
		}
	case ColorByCluster:
		for _, n := range g.Nodes {
			n.Color = clusterPalette[n.Cluster%len(clusterPalette)]
		}
	default:
		for _, n := range g.Nodes {
			if c, ok := typePalette[n.memType]; ok {
				n.Color = c
			} else {
				n.Color = defaultColor
			}
		}
	}
}

func lerpColor(r1, g1, b1, r2, g2, b2 int, frac float64) string {
	lerp := func(a, b int) int {
		return a + int(float64(b-a)*frac)
	}
	return fmt.Sprintf("#%02x%02x%02x", lerp(r1, r2), lerp(g1, g2), lerp(b1, b2))
}
