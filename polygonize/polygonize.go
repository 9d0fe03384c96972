// Package polygonize converts a label grid into one polygon per
// 4-connected component, with vertices in world coordinates.
//
// Rings are traced along pixel edges and keep one vertex per pixel corner.
// Two polygons that touch therefore share their common boundary vertex for
// vertex, which is the property the segmenter's intersection machinery
// relies on.
package polygonize

import (
	"github.com/paulmach/orb"

	"github.com/rainflame/geopolygonize/raster"
	"github.com/rainflame/geopolygonize/vector"
)

type corner struct{ r, c int }

type edge struct {
	from, to corner
}

// Polygonize traces every connected component of the grid into a labeled
// polygon. The grid's transform places the polygons in world space.
func Polygonize(g *raster.Grid) *vector.FeatureSet {
	components, labels := labelComponents(g)
	edges := collectEdges(g, components)

	fs := &vector.FeatureSet{}
	for id := 0; id < len(labels); id++ {
		rings := linkRings(edges[id])
		poly := assemblePolygon(rings, g.Transform)
		if len(poly) == 0 {
			continue
		}
		fs.Append(poly, labels[id])
	}
	return fs
}

// labelComponents assigns a component id to every pixel (4-connectivity,
// same label) and returns each component's label value.
func labelComponents(g *raster.Grid) ([]int32, []int32) {
	components := make([]int32, len(g.Data))
	for i := range components {
		components[i] = -1
	}
	var labels []int32

	var stack []int
	next := int32(0)
	for seed := range g.Data {
		if components[seed] >= 0 {
			continue
		}
		value := g.Data[seed]
		id := next
		next++
		labels = append(labels, value)

		stack = append(stack[:0], seed)
		components[seed] = id
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := idx/g.Height, idx%g.Height
			for _, d := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
				nx, ny := x+d[0], y+d[1]
				if !g.In(nx, ny) {
					continue
				}
				nidx := nx*g.Height + ny
				if components[nidx] >= 0 || g.Data[nidx] != value {
					continue
				}
				components[nidx] = id
				stack = append(stack, nidx)
			}
		}
	}
	return components, labels
}

// collectEdges emits the boundary edges of each component. Every cell
// contributes one directed edge per side whose neighbor belongs to a
// different component (or lies outside the grid); the directions walk each
// cell clockwise in (row, col) space, so interior edges between cells of
// the same component cancel and the survivors form closed loops.
func collectEdges(g *raster.Grid, components []int32) [][]edge {
	var count int32
	for _, id := range components {
		if id >= count {
			count = id + 1
		}
	}
	edges := make([][]edge, count)

	same := func(x, y int, id int32) bool {
		return g.In(x, y) && components[x*g.Height+y] == id
	}

	for x := 0; x < g.Width; x++ {
		for y := 0; y < g.Height; y++ {
			id := components[x*g.Height+y]
			if !same(x-1, y, id) { // top
				edges[id] = append(edges[id], edge{corner{x, y}, corner{x, y + 1}})
			}
			if !same(x, y+1, id) { // right
				edges[id] = append(edges[id], edge{corner{x, y + 1}, corner{x + 1, y + 1}})
			}
			if !same(x+1, y, id) { // bottom
				edges[id] = append(edges[id], edge{corner{x + 1, y + 1}, corner{x + 1, y}})
			}
			if !same(x, y-1, id) { // left
				edges[id] = append(edges[id], edge{corner{x + 1, y}, corner{x, y}})
			}
		}
	}
	return edges
}

// linkRings chains a component's boundary edges into closed corner loops.
// Where a component touches itself diagonally, four edges meet at one
// corner; taking the sharpest right turn keeps each loop simple instead of
// crossing through the junction.
func linkRings(edges []edge) [][]corner {
	byStart := make(map[corner][]int, len(edges))
	for i, e := range edges {
		byStart[e.from] = append(byStart[e.from], i)
	}
	used := make([]bool, len(edges))

	var rings [][]corner
	for i := range edges {
		if used[i] {
			continue
		}
		start := edges[i].from
		ring := []corner{start}
		curr := i
		for {
			used[curr] = true
			end := edges[curr].to
			ring = append(ring, end)
			if end == start {
				break
			}
			next := pickNext(edges, byStart[end], used, edges[curr])
			if next < 0 {
				break // open chain; cannot happen for well-formed edge sets
			}
			curr = next
		}
		rings = append(rings, ring)
	}
	return rings
}

// pickNext prefers the sharpest right turn relative to the incoming edge.
func pickNext(edges []edge, candidates []int, used []bool, incoming edge) int {
	dr := incoming.to.r - incoming.from.r
	dc := incoming.to.c - incoming.from.c
	// right turn, straight, left turn, back
	prefs := [4][2]int{{dc, -dr}, {dr, dc}, {-dc, dr}, {-dr, -dc}}
	for _, want := range prefs {
		for _, ci := range candidates {
			if used[ci] {
				continue
			}
			e := edges[ci]
			if e.to.r-e.from.r == want[0] && e.to.c-e.from.c == want[1] {
				return ci
			}
		}
	}
	return -1
}

// assemblePolygon orders a component's loops into exterior plus holes. The
// loop with the largest absolute area encloses the rest. Exterior rings are
// wound counter-clockwise and holes clockwise, the orientation orb expects.
func assemblePolygon(rings [][]corner, t raster.Affine) orb.Polygon {
	if len(rings) == 0 {
		return nil
	}
	orbRings := make([]orb.Ring, len(rings))
	areas := make([]float64, len(rings))
	largest := 0
	for i, ring := range rings {
		r := make(orb.Ring, len(ring))
		for j, cr := range ring {
			x, y := t.Apply(float64(cr.c), float64(cr.r))
			r[j] = orb.Point{x, y}
		}
		orbRings[i] = r
		areas[i] = signedArea(r)
		if abs(areas[i]) > abs(areas[largest]) {
			largest = i
		}
	}

	poly := make(orb.Polygon, 0, len(orbRings))
	ext := orbRings[largest]
	if areas[largest] < 0 {
		ext = reverse(ext)
	}
	poly = append(poly, ext)
	for i, r := range orbRings {
		if i == largest {
			continue
		}
		if areas[i] > 0 {
			r = reverse(r)
		}
		poly = append(poly, r)
	}
	return poly
}

func signedArea(r orb.Ring) float64 {
	area := 0.0
	for i := 0; i < len(r)-1; i++ {
		area += r[i][0]*r[i+1][1] - r[i+1][0]*r[i][1]
	}
	return area / 2
}

func reverse(r orb.Ring) orb.Ring {
	out := make(orb.Ring, len(r))
	for i := range r {
		out[i] = r[len(r)-1-i]
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
