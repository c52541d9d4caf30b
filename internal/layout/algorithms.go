package layout

import (
	"math"
	"sort"
)

const forceIterations = 50

// layoutForce runs a spring embedding: repulsion between every pair,
// attraction along edges, both proportional to an ideal spacing of
// canvasExtent/√n. Initial positions are deterministic (a circle), so the
// layout is stable run to run.
func layoutForce(g *Graph) {
	layoutForceNodes(g.Nodes, g.Edges, canvasExtent)
}

func layoutForceNodes(nodes []*Node, edges []Edge, extent float64) {
	n := len(nodes)
	if n == 0 {
		return
	}
	if n == 1 {
		nodes[0].X, nodes[0].Y = 0, 0
		return
	}

	// Seed on a circle to break symmetry without randomness.
	for i, node := range nodes {
		angle := 2 * math.Pi * float64(i) / float64(n)
		node.X = extent * 0.5 * math.Cos(angle)
		node.Y = extent * 0.5 * math.Sin(angle)
	}

	index := make(map[string]*Node, n)
	for _, node := range nodes {
		index[node.ID] = node
	}

	k := extent / math.Sqrt(float64(n))
	temp := extent / 10

	dx := make([]float64, n)
	dy := make([]float64, n)
	pos := make(map[string]int, n)
	for i, node := range nodes {
		pos[node.ID] = i
	}

	for iter := 0; iter < forceIterations; iter++ {
		for i := range dx {
			dx[i], dy[i] = 0, 0
		}

		// Repulsion.
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				ddx := nodes[i].X - nodes[j].X
				ddy := nodes[i].Y - nodes[j].Y
				dist := math.Hypot(ddx, ddy)
				if dist < 0.01 {
					dist = 0.01
				}
				force := k * k / dist
				fx := ddx / dist * force
				fy := ddy / dist * force
				dx[i] += fx
				dy[i] += fy
				dx[j] -= fx
				dy[j] -= fy
			}
		}

		// Attraction along edges, scaled by weight.
		for _, e := range edges {
			si, sok := pos[e.Source]
			ti, tok := pos[e.Target]
			if !sok || !tok {
				continue
			}
			ddx := nodes[si].X - nodes[ti].X
			ddy := nodes[si].Y - nodes[ti].Y
			dist := math.Hypot(ddx, ddy)
			if dist < 0.01 {
				dist = 0.01
			}
			force := dist * dist / k * e.Weight
			fx := ddx / dist * force
			fy := ddy / dist * force
			dx[si] -= fx
			dy[si] -= fy
			dx[ti] += fx
			dy[ti] += fy
		}

		// Apply displacement, capped by temperature, and cool.
		for i, node := range nodes {
			disp := math.Hypot(dx[i], dy[i])
			if disp < 0.01 {
				continue
			}
			limit := math.Min(disp, temp)
			node.X += dx[i] / disp * limit
			node.Y += dy[i] / disp * limit
			node.X = math.Max(-extent, math.Min(extent, node.X))
			node.Y = math.Max(-extent, math.Min(extent, node.Y))
		}
		temp *= 0.95
	}
}

const (
	levelSpacing = 150.0
	slotSpacing  = 120.0
)

// layoutHierarchical treats edges as directed (source -> target), BFS-assigns
// levels from in-degree-0 roots, and positions nodes row by row. Without any
// root the graph is cyclic and falls back to the force layout.
func layoutHierarchical(g *Graph) {
	indegree := make(map[string]int, len(g.Nodes))
	children := make(map[string][]string)
	for _, n := range g.Nodes {
		indegree[n.ID] = 0
	}
	for _, e := range g.Edges {
		indegree[e.Target]++
		children[e.Source] = append(children[e.Source], e.Target)
	}

	var roots []string
	for _, n := range g.Nodes {
		if indegree[n.ID] == 0 {
			roots = append(roots, n.ID)
		}
	}
	if len(roots) == 0 {
		layoutForce(g)
		return
	}
	sort.Strings(roots)

	level := make(map[string]int, len(g.Nodes))
	queue := append([]string(nil), roots...)
	for _, r := range roots {
		level[r] = 0
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		next := sortedStrings(children[cur])
		for _, child := range next {
			if _, seen := level[child]; seen {
				continue
			}
			level[child] = level[cur] + 1
			queue = append(queue, child)
		}
	}

	// Unreachable nodes (disconnected from every root) go below the tree.
	maxLevel := 0
	for _, l := range level {
		if l > maxLevel {
			maxLevel = l
		}
	}
	for _, n := range g.Nodes {
		if _, ok := level[n.ID]; !ok {
			level[n.ID] = maxLevel + 1
		}
	}

	slots := make(map[int]int)
	for _, n := range g.Nodes {
		l := level[n.ID]
		n.X = float64(slots[l]) * slotSpacing
		n.Y = float64(l) * levelSpacing
		slots[l]++
	}
	// Center each row horizontally.
	for _, n := range g.Nodes {
		width := float64(slots[level[n.ID]]-1) * slotSpacing
		n.X -= width / 2
	}
}

const circleRadius = 400.0

// layoutCircular places nodes evenly on a circle.
func layoutCircular(g *Graph) {
	n := len(g.Nodes)
	for i, node := range g.Nodes {
		angle := 2 * math.Pi * float64(i) / float64(n)
		node.X = circleRadius * math.Cos(angle)
		node.Y = circleRadius * math.Sin(angle)
	}
}

// layoutRadial puts the highest-degree node at the center, its direct
// neighbors on an inner ring, and everything else on an outer ring.
func layoutRadial(g *Graph) {
	center := g.Nodes[0]
	for _, n := range g.Nodes[1:] {
		if n.Degree > center.Degree {
			center = n
		}
	}
	center.X, center.Y = 0, 0

	neighbor := make(map[string]bool)
	for _, e := range g.Edges {
		if e.Source == center.ID {
			neighbor[e.Target] = true
		}
		if e.Target == center.ID {
			neighbor[e.Source] = true
		}
	}

	var inner, outer []*Node
	for _, n := range g.Nodes {
		switch {
		case n == center:
		case neighbor[n.ID]:
			inner = append(inner, n)
		default:
			outer = append(outer, n)
		}
	}

	placeRing(inner, 200)
	placeRing(outer, 400)
}

func placeRing(nodes []*Node, radius float64) {
	for i, n := range nodes {
		angle := 2 * math.Pi * float64(i) / float64(len(nodes))
		n.X = radius * math.Cos(angle)
		n.Y = radius * math.Sin(angle)
	}
}

// timelineYOffsets is the repeating vertical pattern that keeps concurrent
// nodes from stacking.
var timelineYOffsets = []float64{0, 80, -80, 160, -160}

// layoutTimeline positions nodes by creation time, x normalized to the
// canvas extent, y cycling through fixed offsets.
func layoutTimeline(g *Graph) {
	ordered := append([]*Node(nil), g.Nodes...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].createdAt.Before(ordered[j].createdAt)
	})

	first := ordered[0].createdAt
	last := ordered[len(ordered)-1].createdAt
	span := last.Sub(first).Seconds()

	for i, n := range ordered {
		frac := 0.5
		if span > 0 {
			frac = n.createdAt.Sub(first).Seconds() / span
		}
		n.X = -canvasExtent + frac*2*canvasExtent
		n.Y = timelineYOffsets[i%len(timelineYOffsets)]
	}
}

// layoutClustered arranges cluster groups on a grid and runs a local spring
// embedding inside each cell.
func layoutClustered(g *Graph) {
	groups := make(map[int][]*Node)
	for _, n := range g.Nodes {
		groups[n.Cluster] = append(groups[n.Cluster], n)
	}

	ids := make([]int, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	cols := int(math.Ceil(math.Sqrt(float64(len(ids)))))
	cellSize := 2 * canvasExtent / float64(cols)
	localExtent := cellSize / 2.5

	member := make(map[string]int, len(g.Nodes))
	for id, nodes := range groups {
		for _, n := range nodes {
			member[n.ID] = id
		}
	}

	for i, id := range ids {
		nodes := groups[id]

		var local []Edge
		for _, e := range g.Edges {
			if member[e.Source] == id && member[e.Target] == id {
				local = append(local, e)
			}
		}
		layoutForceNodes(nodes, local, localExtent)

		row, col := i/cols, i%cols
		cx := -canvasExtent + cellSize*(float64(col)+0.5)
		cy := -canvasExtent + cellSize*(float64(row)+0.5)
		for _, n := range nodes {
			n.X += cx
			n.Y += cy
		}
	}
}

func sortedStrings(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
