package segmenter

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/tidwall/rtree"
)

// The fixer decomposes a polygon whose rebuilt rings self-intersect into a
// list of valid polygons whose union covers the original: the exterior ring
// is polygonized into simple faces, interior rings likewise, interior faces
// are assigned to the exterior face containing them, and an interior face
// whose border meaningfully intersects its exterior is cut out of it
// instead of kept as a hole.

// polygonValid reports whether every ring of the polygon is simple.
func polygonValid(p orb.Polygon) bool {
	for _, ring := range p {
		if !ringSimple(ring) {
			return false
		}
	}
	return true
}

// ringSimple checks that no two non-adjacent edges of the ring touch.
func ringSimple(r orb.Ring) bool {
	pts := openRing(r)
	n := len(pts)
	if n < 3 {
		return false
	}

	var index rtree.RTree
	for i := 0; i < n; i++ {
		p, q := pts[i], pts[(i+1)%n]
		index.Insert(
			[2]float64{minf(p[0], q[0]) - Epsilon, minf(p[1], q[1]) - Epsilon},
			[2]float64{maxf(p[0], q[0]) + Epsilon, maxf(p[1], q[1]) + Epsilon}, i)
	}

	simple := true
	for i := 0; i < n && simple; i++ {
		p, q := pts[i], pts[(i+1)%n]
		index.Search(
			[2]float64{minf(p[0], q[0]) - Epsilon, minf(p[1], q[1]) - Epsilon},
			[2]float64{maxf(p[0], q[0]) + Epsilon, maxf(p[1], q[1]) + Epsilon},
			func(_, _ [2]float64, data interface{}) bool {
				j := data.(int)
				if j == i || j == (i+1)%n || (j+1)%n == i {
					return true // same or adjacent edge
				}
				points, overlap := segIntersection(p, q, pts[j], pts[(j+1)%n])
				if overlap || len(points) > 0 {
					simple = false
					return false
				}
				return true
			})
	}
	return simple
}

// FixPolygon decomposes an invalid polygon into valid ones. When the
// decomposition itself comes out invalid, the original and the attempted
// fix are dumped as GeoJSON and a *GeometryError is returned.
func FixPolygon(polygon orb.Polygon) ([]orb.Polygon, error) {
	exteriorFaces := mergeOverlapping(polygonizeRing(polygon[0]))

	var interiorFaces []orb.Polygon
	for _, hole := range polygon[1:] {
		interiorFaces = append(interiorFaces, polygonizeRing(hole)...)
	}
	interiorFaces = mergeOverlapping(interiorFaces)

	// Assign each interior face to the exterior face containing it.
	perFaceInteriors := make([][]orb.Polygon, len(exteriorFaces))
	for _, inner := range interiorFaces {
		pt := polygonInteriorPoint(inner)
		for e, outer := range exteriorFaces {
			if ringContainsPt(outer[0], pt) {
				perFaceInteriors[e] = append(perFaceInteriors[e], inner)
				break
			}
		}
	}

	var fixed []orb.Polygon
	for e, outer := range exteriorFaces {
		pieces, holes := handleCuts(outer, perFaceInteriors[e])
		for _, piece := range pieces {
			out := orb.Polygon{piece[0]}
			for _, hole := range holes {
				pt := polygonInteriorPoint(hole)
				if ringContainsPt(piece[0], pt) {
					out = append(out, reverseRingOrient(hole[0]))
				}
			}
			if !polygonValid(out) {
				origPath, fixedPath := dumpGeometries(polygon, out)
				return nil, &GeometryError{
					Reason:    "polygon is not valid after fixing",
					OrigPath:  origPath,
					FixedPath: fixedPath,
				}
			}
			fixed = append(fixed, out)
		}
	}
	return fixed, nil
}

// handleCuts subtracts interior faces whose border meaningfully intersects
// the exterior face; the rest stay holes. All interior faces start inside
// the exterior.
func handleCuts(exterior orb.Polygon, interiors []orb.Polygon) ([]orb.Polygon, []orb.Polygon) {
	pieces := []orb.Polygon{exterior}
	var holes []orb.Polygon
	for _, inner := range interiors {
		cut := false
		var next []orb.Polygon
		for _, piece := range pieces {
			if meaningfulIntersection(piece, inner) {
				cut = true
				next = append(next, differencePolygons(piece, inner)...)
			} else {
				next = append(next, piece)
			}
		}
		pieces = next
		if !cut {
			holes = append(holes, inner)
		}
	}
	return pieces, holes
}

// meaningfulIntersection reports whether the two polygons' exterior rings
// intersect in more than a single point.
func meaningfulIntersection(p1, p2 orb.Polygon) bool {
	a, b := openRing(p1[0]), openRing(p2[0])
	var found []orb.Point
	for i := 0; i < len(a); i++ {
		for j := 0; j < len(b); j++ {
			points, overlap := segIntersection(a[i], a[(i+1)%len(a)], b[j], b[(j+1)%len(b)])
			if overlap {
				return true
			}
			for _, pt := range points {
				dup := false
				for _, f := range found {
					if pointsEqual(f, pt) {
						dup = true
						break
					}
				}
				if !dup {
					found = append(found, pt)
				}
				if len(found) > 1 {
					return true
				}
			}
		}
	}
	return false
}

// polygonizeRing nodes a (possibly self-intersecting) ring and extracts
// its simple faces as polygons.
func polygonizeRing(r orb.Ring) []orb.Polygon {
	g := newPlanarGraph(r)
	var faces []orb.Polygon
	for _, cycle := range g.faces() {
		ring := lineToRing(orb.LineString(cycle))
		if ringSignedArea(ring) > Epsilon {
			faces = append(faces, orb.Polygon{ring})
		}
	}
	return faces
}

// mergeOverlapping unions faces that contain or meaningfully intersect one
// another, leaving a set of disjoint simple polygons.
func mergeOverlapping(polys []orb.Polygon) []orb.Polygon {
	n := len(polys)
	if n < 2 {
		return polys
	}

	shells := make([]orb.Polygon, n)
	for i, p := range polys {
		shells[i] = orb.Polygon{p[0]}
	}

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(i, j int) {
		ri, rj := find(i), find(j)
		if ri != rj {
			parent[ri] = rj
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if polygonContainsPolygon(shells[i], shells[j]) ||
				polygonContainsPolygon(shells[j], shells[i]) ||
				meaningfulIntersection(shells[i], shells[j]) {
				union(i, j)
			}
		}
	}

	groups := make(map[int][]orb.Polygon)
	var order []int
	for i := 0; i < n; i++ {
		root := find(i)
		if _, seen := groups[root]; !seen {
			order = append(order, root)
		}
		groups[root] = append(groups[root], shells[i])
	}

	var out []orb.Polygon
	for _, root := range order {
		group := groups[root]
		if len(group) == 1 {
			out = append(out, group[0])
			continue
		}
		out = append(out, unionPolygons(group)...)
	}
	return out
}

func polygonContainsPolygon(outer, inner orb.Polygon) bool {
	return ringContainsPt(outer[0], polygonInteriorPoint(inner))
}

func polygonInteriorPoint(p orb.Polygon) orb.Point {
	r := openRing(p[0])
	n := len(r)
	for i := 0; i < n; i++ {
		a, b, c := r[i], r[(i+1)%n], r[(i+2)%n]
		centroid := orb.Point{(a[0] + b[0] + c[0]) / 3, (a[1] + b[1] + c[1]) / 3}
		if ringContainsPt(p[0], centroid) {
			return centroid
		}
	}
	return r[0]
}

func reverseRingOrient(r orb.Ring) orb.Ring {
	out := make(orb.Ring, len(r))
	for i := range r {
		out[i] = r[len(r)-1-i]
	}
	return out
}

// dumpGeometries writes the original and attempted-fix polygons to GeoJSON
// files for inspection and returns their paths.
func dumpGeometries(orig, fixed orb.Polygon) (string, string) {
	dir := os.TempDir()
	id := os.Getpid()
	origPath := filepath.Join(dir, fmt.Sprintf("orig_polygon_%d.geojson", id))
	fixedPath := filepath.Join(dir, fmt.Sprintf("fixed_polygon_%d.geojson", id))
	writeGeoJSON(origPath, orig)
	writeGeoJSON(fixedPath, fixed)
	return origPath, fixedPath
}

func writeGeoJSON(path string, p orb.Polygon) {
	data, err := json.Marshal(geojson.NewGeometry(p))
	if err != nil {
		return
	}
	_ = os.WriteFile(path, data, 0o644)
}

// planarGraph is the noded edge graph of one ring.
type planarGraph struct {
	points []orb.Point
	nbrs   [][]int // sorted by angle
}

func newPlanarGraph(r orb.Ring) *planarGraph {
	pts := openRing(r)
	n := len(pts)

	type seg struct{ a, b orb.Point }
	segs := make([]seg, 0, n)
	for i := 0; i < n; i++ {
		a, b := pts[i], pts[(i+1)%n]
		if !pointsEqual(a, b) {
			segs = append(segs, seg{a, b})
		}
	}

	// Node every edge at its intersections with every other edge.
	splits := make([][]float64, len(segs))
	for i := 0; i < len(segs); i++ {
		for j := i + 1; j < len(segs); j++ {
			points, overlap := segIntersection(segs[i].a, segs[i].b, segs[j].a, segs[j].b)
			if overlap {
				// collinear overlap: cut both at each other's endpoints
				points = append(points, segs[j].a, segs[j].b, segs[i].a, segs[i].b)
			}
			for _, pt := range points {
				if t := paramOn(segs[i].a, segs[i].b, pt); t > Epsilon && t < 1-Epsilon {
					splits[i] = append(splits[i], t)
				}
				if t := paramOn(segs[j].a, segs[j].b, pt); t > Epsilon && t < 1-Epsilon {
					splits[j] = append(splits[j], t)
				}
			}
		}
	}

	g := &planarGraph{}
	nodeID := func(p orb.Point) int {
		for i, q := range g.points {
			if pointsEqual(q, p) {
				return i
			}
		}
		g.points = append(g.points, p)
		g.nbrs = append(g.nbrs, nil)
		return len(g.points) - 1
	}
	addEdge := func(a, b orb.Point) {
		ai, bi := nodeID(a), nodeID(b)
		if ai == bi {
			return
		}
		for _, w := range g.nbrs[ai] {
			if w == bi {
				return
			}
		}
		g.nbrs[ai] = append(g.nbrs[ai], bi)
		g.nbrs[bi] = append(g.nbrs[bi], ai)
	}

	for i, s := range segs {
		ts := append([]float64{0, 1}, splits[i]...)
		sort.Float64s(ts)
		prev := s.a
		for _, t := range ts[1:] {
			pt := orb.Point{s.a[0] + t*(s.b[0]-s.a[0]), s.a[1] + t*(s.b[1]-s.a[1])}
			if !pointsEqual(prev, pt) {
				addEdge(prev, pt)
				prev = pt
			}
		}
	}

	for v := range g.nbrs {
		vi := v
		sort.Slice(g.nbrs[vi], func(x, y int) bool {
			return g.angleTo(vi, g.nbrs[vi][x]) < g.angleTo(vi, g.nbrs[vi][y])
		})
	}
	return g
}

func (g *planarGraph) angleTo(from, to int) float64 {
	return math.Atan2(g.points[to][1]-g.points[from][1], g.points[to][0]-g.points[from][0])
}

// faces walks every directed arc once, always taking the clockwise-next
// neighbor from the reversed incoming arc. Bounded faces come out
// counter-clockwise; the unbounded face comes out clockwise and is
// discarded by the caller through its negative area.
func (g *planarGraph) faces() [][]orb.Point {
	type arc struct{ u, v int }
	used := make(map[arc]bool)

	var cycles [][]orb.Point
	for u := range g.nbrs {
		for _, v := range g.nbrs[u] {
			if used[arc{u, v}] {
				continue
			}
			var cycle []orb.Point
			cu, cv := u, v
			for {
				used[arc{cu, cv}] = true
				cycle = append(cycle, g.points[cu])
				next := g.clockwiseNext(cv, cu)
				cu, cv = cv, next
				if cu == u && cv == v {
					break
				}
				if len(cycle) > 4*len(g.points)+8 {
					cycle = nil // malformed walk, drop it
					break
				}
			}
			if len(cycle) >= 3 {
				cycles = append(cycles, cycle)
			}
		}
	}
	return cycles
}

// clockwiseNext returns, among at's neighbors, the first one clockwise
// from the direction back to from.
func (g *planarGraph) clockwiseNext(at, from int) int {
	nbrs := g.nbrs[at]
	back := g.angleTo(at, from)

	best := -1
	bestAngle := math.Inf(-1)
	wrap := -1
	wrapAngle := math.Inf(-1)
	for _, w := range nbrs {
		a := g.angleTo(at, w)
		if a > wrapAngle {
			wrap, wrapAngle = w, a
		}
		if a < back-Epsilon && a > bestAngle {
			best, bestAngle = w, a
		}
	}
	if best >= 0 {
		return best
	}
	return wrap
}

// paramOn returns pt's parameter along ab, or -1 when pt is off the
// segment.
func paramOn(a, b, pt orb.Point) float64 {
	if distToSegment(pt, a, b) > Epsilon {
		return -1
	}
	d := dist(a, b)
	if d == 0 {
		return -1
	}
	return dist(a, pt) / d
}

// segIntersection intersects two segments. It returns crossing or touch
// points, and overlap=true when the segments are collinear with a shared
// extent of positive length.
func segIntersection(p1, p2, q1, q2 orb.Point) ([]orb.Point, bool) {
	rx, ry := p2[0]-p1[0], p2[1]-p1[1]
	sx, sy := q2[0]-q1[0], q2[1]-q1[1]
	denom := rx*sy - ry*sx
	qpx, qpy := q1[0]-p1[0], q1[1]-p1[1]

	if math.Abs(denom) <= Epsilon {
		// parallel: check collinearity
		if math.Abs(qpx*ry-qpy*rx) > Epsilon {
			return nil, false
		}
		rlen2 := rx*rx + ry*ry
		if rlen2 == 0 {
			return nil, false
		}
		t0 := (qpx*rx + qpy*ry) / rlen2
		t1 := t0 + (sx*rx+sy*ry)/rlen2
		lo, hi := math.Min(t0, t1), math.Max(t0, t1)
		lo, hi = math.Max(lo, 0), math.Min(hi, 1)
		if hi < lo {
			return nil, false
		}
		a := orb.Point{p1[0] + lo*rx, p1[1] + lo*ry}
		b := orb.Point{p1[0] + hi*rx, p1[1] + hi*ry}
		if pointsEqual(a, b) {
			return []orb.Point{a}, false
		}
		return nil, true
	}

	t := (qpx*sy - qpy*sx) / denom
	u := (qpx*ry - qpy*rx) / denom
	tol := Epsilon
	if t < -tol || t > 1+tol || u < -tol || u > 1+tol {
		return nil, false
	}
	return []orb.Point{{p1[0] + t*rx, p1[1] + t*ry}}, false
}
