package segmenter

import (
	"github.com/arl/assertgo"
	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"
)

// intersectionsComputer finds, for every pair of boundaries, the portion of
// geometry they share, classified as either one closed loop (the rings
// coincide entirely around it) or an ordered list of open segments.
// Point-only contact is dropped.
type intersectionsComputer struct {
	boundaries []*Boundary
}

func newIntersectionsComputer(boundaries []*Boundary) *intersectionsComputer {
	return &intersectionsComputer{boundaries: boundaries}
}

func (ic *intersectionsComputer) computeIntersections() {
	var index rtree.RTree
	for i, b := range ic.boundaries {
		bound := b.Line.Bound()
		index.Insert([2]float64{bound.Min[0], bound.Min[1]},
			[2]float64{bound.Max[0], bound.Max[1]}, i)
	}

	for bIdx, curr := range ic.boundaries {
		bound := curr.Line.Bound()
		var candidates []int
		index.Search([2]float64{bound.Min[0], bound.Min[1]},
			[2]float64{bound.Max[0], bound.Max[1]},
			func(_, _ [2]float64, data interface{}) bool {
				n := data.(int)
				if n > bIdx { // n == bIdx is self, n < bIdx handled already
					candidates = append(candidates, n)
				}
				return true
			})

		for _, n := range candidates {
			other := ic.boundaries[n]

			raw := ic.rawIntersection(curr, other)
			pieces := flattenToPieces(raw)
			segments := connectedSegments(pieces)
			if len(segments) == 0 {
				continue
			}

			closed := false
			for _, seg := range segments {
				if lineClosed(seg) {
					closed = true
				}
			}
			if closed {
				assert.True(len(segments) == 1,
					"boundaries %d and %d: a closed intersection must be the only intersection",
					curr.Idx, other.Idx)
				curr.AddClosedIntersection(other, segments[0])
				other.AddClosedIntersection(curr, segments[0])
			} else {
				curr.AddIntersection(other, segments)
				other.AddIntersection(curr, segments)
			}
		}
	}
}

// computeBorderIntersections intersects every boundary with the pinned
// outer border and stores the result on the boundary.
func (ic *intersectionsComputer) computeBorderIntersections(border orb.Ring) {
	borderBoundary, err := NewBoundary(-1, ringToLine(border))
	if err != nil {
		return
	}
	for _, b := range ic.boundaries {
		pieces := edgesOn(b, borderBoundary)
		segments := connectedSegments(pieces)
		b.SetBorderIntersections(segments)
	}
}

// rawIntersection computes the geometric intersection of two rings as a
// geometry collection: the shared edges as a MultiLineString and isolated
// shared vertices as a MultiPoint. Rings coming out of the polygonizer
// coincide edge for edge wherever they touch, so an edge either lies on
// the other ring entirely or not at all.
func (ic *intersectionsComputer) rawIntersection(a, b *Boundary) orb.Geometry {
	pieces := edgesOn(a, b)
	for _, piece := range edgesOn(b, a) {
		if !containsPiece(pieces, piece) {
			pieces = append(pieces, piece)
		}
	}

	var points orb.MultiPoint
	onPieces := func(p orb.Point) bool {
		for _, piece := range pieces {
			if pointsEqual(p, piece[0]) || pointsEqual(p, piece[1]) {
				return true
			}
		}
		return false
	}
	for _, p := range a.Line[:len(a.Line)-1] {
		if b.OnBoundary(p) && !onPieces(p) {
			points = append(points, p)
		}
	}

	var collection orb.Collection
	if len(pieces) > 0 {
		mls := make(orb.MultiLineString, len(pieces))
		copy(mls, pieces)
		collection = append(collection, mls)
	}
	if len(points) > 0 {
		collection = append(collection, points)
	}
	switch len(collection) {
	case 0:
		return nil
	case 1:
		return collection[0]
	default:
		return collection
	}
}

// edgesOn returns a's ring edges that lie on b, each as a two-vertex piece
// in a's direction.
func edgesOn(a, b *Boundary) []orb.LineString {
	aBound := a.Line.Bound()
	bBound := b.Line.Bound()
	if aBound.Min[0] > bBound.Max[0] || bBound.Min[0] > aBound.Max[0] ||
		aBound.Min[1] > bBound.Max[1] || bBound.Min[1] > aBound.Max[1] {
		return nil
	}

	var pieces []orb.LineString
	for i := 0; i < len(a.Line)-1; i++ {
		p, q := a.Line[i], a.Line[i+1]
		mid := orb.Point{(p[0] + q[0]) / 2, (p[1] + q[1]) / 2}
		if b.OnBoundary(p) && b.OnBoundary(q) && b.OnBoundary(mid) {
			pieces = append(pieces, orb.LineString{p, q})
		}
	}
	return pieces
}

func containsPiece(pieces []orb.LineString, piece orb.LineString) bool {
	for _, other := range pieces {
		if (pointsEqual(other[0], piece[0]) && pointsEqual(other[1], piece[1])) ||
			(pointsEqual(other[0], piece[1]) && pointsEqual(other[1], piece[0])) {
			return true
		}
	}
	return false
}

// flattenToPieces normalizes a geometry to a flat list of two-vertex
// pieces: MultiLineStrings and Collections are split recursively, points
// are dropped.
func flattenToPieces(g orb.Geometry) []orb.LineString {
	switch t := g.(type) {
	case nil:
		return nil
	case orb.LineString:
		if len(t) < 2 {
			return nil // invalid segment, effectively skip
		}
		assert.True(len(t) == 2, "expect piece LineString to have only two points")
		return []orb.LineString{t}
	case orb.MultiLineString:
		var pieces []orb.LineString
		for _, ls := range t {
			pieces = append(pieces, flattenToPieces(ls)...)
		}
		return pieces
	case orb.Collection:
		var pieces []orb.LineString
		for _, sub := range t {
			pieces = append(pieces, flattenToPieces(sub)...)
		}
		return pieces
	default:
		// Point, MultiPoint or non-existent intersection
		return nil
	}
}

// connectedSegments reassembles two-vertex pieces into maximal connected
// segments by walking start-to-end and end-to-start linkages. A walk that
// returns to its origin closes the segment into a ring.
func connectedSegments(pieces []orb.LineString) []orb.LineString {
	if len(pieces) == 0 {
		return nil
	}

	startMap := make(map[orb.Point][]int, len(pieces))
	endMap := make(map[orb.Point][]int, len(pieces))
	for i, p := range pieces {
		assert.True(len(p) == 2, "expect each piece to have only two points")
		startMap[p[0]] = append(startMap[p[0]], i)
		endMap[p[1]] = append(endMap[p[1]], i)
	}

	visited := make([]bool, len(pieces))
	var segments []orb.LineString
	for i := range pieces {
		if visited[i] {
			continue
		}
		visited[i] = true
		start, end := pieces[i][0], pieces[i][1]

		// former half: extend backwards from the piece's start
		former := orb.LineString{start}
		curr := start
		for {
			idx, ok := pickPiece(endMap[curr], visited)
			if !ok {
				break
			}
			curr = pieces[idx][0]
			former = append(former, curr)
			if visited[idx] {
				break // reached termination in former half of segment
			}
			visited[idx] = true
		}

		isRing := len(former) > 2 && pointsEqual(former[len(former)-1], start)
		var latter orb.LineString
		if !isRing {
			// latter half: extend forwards from the piece's end
			latter = orb.LineString{end}
			curr = end
			for {
				idx, ok := pickPiece(startMap[curr], visited)
				if !ok {
					break
				}
				curr = pieces[idx][1]
				latter = append(latter, curr)
				if visited[idx] {
					break // reached termination in latter half of segment
				}
				visited[idx] = true
			}
		}

		segment := make(orb.LineString, 0, len(former)+len(latter))
		for j := len(former) - 1; j >= 0; j-- {
			segment = append(segment, former[j])
		}
		segment = append(segment, latter...)
		segments = append(segments, segment)
	}
	return segments
}

// pickPiece prefers an unvisited piece; a visited one is returned once so
// ring walks can close on their origin.
func pickPiece(ids []int, visited []bool) (int, bool) {
	if len(ids) == 0 {
		return 0, false
	}
	for _, id := range ids {
		if !visited[id] {
			return id, true
		}
	}
	return ids[0], true
}
