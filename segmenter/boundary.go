package segmenter

import (
	"fmt"
	"sort"

	"github.com/arl/assertgo"
	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"
)

// positionedPoint is a point keyed by its arc-length position along a
// boundary. Positions are the sort key for everything.
type positionedPoint struct {
	point    orb.Point
	position float64
}

type pointPair struct {
	start orb.Point
	end   orb.Point
}

// Boundary is a single closed polygon ring with the bookkeeping the
// computers hang off it: arc-length cache, edge index, intersections with
// neighbor boundaries, cutpoints and the segments cut between them.
type Boundary struct {
	Idx  int
	Line orb.LineString

	length     float64
	cumulative map[orb.Point]float64
	sortCache  map[orb.Point]float64
	edgeIndex  rtree.RTree

	// neighbor boundary idx -> shared geometry
	closedIntersections map[int]orb.LineString
	intersections       map[int][]orb.LineString
	borderIntersections []orb.LineString

	cutpoints []positionedPoint

	Segments            []*Segment
	segmentMap          map[pointPair]int
	potentialReferences [][]*Segment
	ModifiedLine        orb.LineString
}

// NewBoundary wraps one closed ring line. The boundary keeps its own copy
// of the coordinates and precomputes the arc-length cache and edge index.
func NewBoundary(idx int, line orb.LineString) (*Boundary, error) {
	if !lineClosed(line) {
		return nil, fmt.Errorf("boundary %d: ring is not closed", idx)
	}
	b := &Boundary{
		Idx:                 idx,
		Line:                append(orb.LineString{}, line...),
		cumulative:          make(map[orb.Point]float64, len(line)),
		sortCache:           make(map[orb.Point]float64),
		closedIntersections: make(map[int]orb.LineString),
		intersections:       make(map[int][]orb.LineString),
	}

	// Cumulative distance from the start vertex; the end vertex is the
	// start again and keeps position 0.
	pos := 0.0
	b.cumulative[b.Line[0]] = 0
	for i := 1; i < len(b.Line)-1; i++ {
		pos += dist(b.Line[i-1], b.Line[i])
		if _, ok := b.cumulative[b.Line[i]]; !ok {
			b.cumulative[b.Line[i]] = pos
		}
	}
	b.length = pos + dist(b.Line[len(b.Line)-2], b.Line[len(b.Line)-1])

	for i := 0; i < len(b.Line)-1; i++ {
		p, q := b.Line[i], b.Line[i+1]
		min := [2]float64{minf(p[0], q[0]), minf(p[1], q[1])}
		max := [2]float64{maxf(p[0], q[0]), maxf(p[1], q[1])}
		b.edgeIndex.Insert(min, max, i)
	}
	return b, nil
}

// Length returns the ring's total arc length.
func (b *Boundary) Length() float64 { return b.length }

// Start returns the ring's start vertex.
func (b *Boundary) Start() orb.Point { return b.Line[0] }

// PointSortKey returns the point's arc-length position along the ring. A
// point off the vertex set is located on its containing edge through the
// edge index and projected.
func (b *Boundary) PointSortKey(p orb.Point) (float64, error) {
	if pos, ok := b.sortCache[p]; ok {
		return pos, nil
	}
	if pos, ok := b.cumulative[p]; ok {
		b.sortCache[p] = pos
		return pos, nil
	}

	edge, found := b.locateEdge(p)
	if !found {
		return 0, fmt.Errorf("boundary %d: point (%g, %g) is not on the ring",
			b.Idx, p[0], p[1])
	}
	a, c := b.Line[edge], b.Line[edge+1]
	pos := b.cumulative[a] + projectOnSegment(p, a, c)
	b.sortCache[p] = pos
	return pos, nil
}

// locateEdge finds the ring edge containing p, if any.
func (b *Boundary) locateEdge(p orb.Point) (int, bool) {
	min := [2]float64{p[0] - Epsilon, p[1] - Epsilon}
	max := [2]float64{p[0] + Epsilon, p[1] + Epsilon}
	best, bestDist := -1, Epsilon
	b.edgeIndex.Search(min, max, func(_, _ [2]float64, data interface{}) bool {
		i := data.(int)
		if d := distToSegment(p, b.Line[i], b.Line[i+1]); d <= bestDist {
			best, bestDist = i, d
		}
		return true
	})
	return best, best >= 0
}

// OnBoundary reports whether the point lies on the ring.
func (b *Boundary) OnBoundary(p orb.Point) bool {
	if pointsEqual(p, b.Line[0]) || pointsEqual(p, b.Line[len(b.Line)-1]) {
		return true
	}
	if _, ok := b.cumulative[p]; ok {
		return true
	}
	_, found := b.locateEdge(p)
	return found
}

// AddClosedIntersection records a neighbor whose shared geometry is a full
// closed loop.
func (b *Boundary) AddClosedIntersection(other *Boundary, closed orb.LineString) {
	assert.True(lineClosed(closed), "closed intersection of %d and %d is not a ring", b.Idx, other.Idx)
	b.closedIntersections[other.Idx] = closed
}

// AddIntersection records the open intersection segments shared with a
// neighbor.
func (b *Boundary) AddIntersection(other *Boundary, segments []orb.LineString) {
	b.intersections[other.Idx] = segments
}

// SetBorderIntersections records the portions of the ring lying on the
// pinned border.
func (b *Boundary) SetBorderIntersections(segments []orb.LineString) {
	b.borderIntersections = segments
}

// BorderIntersections returns the portions of the ring lying on the pinned
// border.
func (b *Boundary) BorderIntersections() []orb.LineString {
	return b.borderIntersections
}

// neighborIdxs returns the sorted neighbor ids of the given map, keeping
// iteration deterministic.
func neighborIdxs[T any](m map[int]T) []int {
	out := make([]int, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// AddCutpoint inserts a cutpoint at its arc-length position. Two points
// whose positions agree within Epsilon collapse to one cutpoint.
func (b *Boundary) AddCutpoint(p orb.Point) error {
	pos, err := b.PointSortKey(p)
	if err != nil {
		return err
	}
	i := sort.Search(len(b.cutpoints), func(i int) bool {
		return b.cutpoints[i].position >= pos-Epsilon
	})
	if i < len(b.cutpoints) && abs(b.cutpoints[i].position-pos) <= Epsilon {
		return nil
	}
	b.cutpoints = append(b.cutpoints, positionedPoint{})
	copy(b.cutpoints[i+1:], b.cutpoints[i:])
	b.cutpoints[i] = positionedPoint{point: p, position: pos}
	return nil
}

// Cutpoints returns the cutpoints in arc-length order.
func (b *Boundary) Cutpoints() []orb.Point {
	out := make([]orb.Point, len(b.cutpoints))
	for i, pp := range b.cutpoints {
		out[i] = pp.point
	}
	return out
}

// SetSegments installs the segments produced by the mapping computer and
// resets the potential-reference slots.
func (b *Boundary) SetSegments(segments []*Segment) {
	assert.True(len(b.cutpoints) == len(segments),
		"boundary %d: %d segments for %d cutpoints", b.Idx, len(segments), len(b.cutpoints))
	b.Segments = segments
	b.segmentMap = make(map[pointPair]int, len(segments))
	for i, s := range segments {
		b.segmentMap[pointPair{s.Start, s.End}] = i
	}
	b.potentialReferences = make([][]*Segment, len(segments))
}

// AddPotentialReference offers ref as a candidate owner for whichever of
// this boundary's segments covers the same geometry.
func (b *Boundary) AddPotentialReference(ref *Segment) error {
	idx, _, err := b.segmentIdxAndOrientation(ref.Start, ref.End, ref.Line)
	if err != nil {
		return err
	}
	b.potentialReferences[idx] = append(b.potentialReferences[idx], ref)
	return nil
}

// SegmentsWithPotentialReferences pairs each segment with its candidates.
func (b *Boundary) SegmentsWithPotentialReferences() ([]*Segment, [][]*Segment) {
	assert.True(len(b.Segments) == len(b.potentialReferences),
		"boundary %d: potential references out of sync", b.Idx)
	return b.Segments, b.potentialReferences
}

// GetSegment returns the segment running from start to end.
func (b *Boundary) GetSegment(start, end orb.Point) (*Segment, error) {
	idx, ok := b.lookupSegment(start, end)
	if !ok {
		return nil, fmt.Errorf("boundary %d: no segment from (%g, %g) to (%g, %g)",
			b.Idx, start[0], start[1], end[0], end[1])
	}
	return b.Segments[idx], nil
}

func (b *Boundary) lookupSegment(start, end orb.Point) (int, bool) {
	if idx, ok := b.segmentMap[pointPair{start, end}]; ok {
		return idx, true
	}
	// tolerance fallback for coordinates that were recomputed rather
	// than copied
	for i, s := range b.Segments {
		if pointsEqual(s.Start, start) && pointsEqual(s.End, end) {
			return i, true
		}
	}
	return 0, false
}

// orientationOf derives the orientation of ref relative to the matching
// segment of this boundary.
func (b *Boundary) orientationOf(ref *Segment) (Orientation, error) {
	_, orientation, err := b.segmentIdxAndOrientation(ref.Start, ref.End, ref.Line)
	return orientation, err
}

// segmentIdxAndOrientation finds which of this boundary's segments matches
// the (start, end, line) triple, and whether it runs forward or backward.
// Boundaries with one or two segments need the line to disambiguate,
// because both endpoints coincide (one segment: the whole ring) or the
// reversed pair exists too (two segments).
func (b *Boundary) segmentIdxAndOrientation(start, end orb.Point, line orb.LineString) (int, Orientation, error) {
	assert.True(b.segmentMap != nil, "boundary %d: segments not set", b.Idx)

	switch len(b.Segments) {
	case 1:
		own := b.Segments[0]
		if ringCyclicEqual(lineToRing(own.Line), lineToRing(line)) {
			ownArea := ringSignedArea(lineToRing(own.Line))
			refArea := ringSignedArea(lineToRing(line))
			if ownArea*refArea < 0 {
				return 0, Backward, nil
			}
			return 0, Forward, nil
		}
		return 0, Forward, fmt.Errorf("boundary %d: single segment does not match reference ring", b.Idx)

	case 2:
		firstIdx, ok1 := b.lookupSegment(start, end)
		secondIdx, ok2 := b.lookupSegment(end, start)
		if !ok1 || !ok2 {
			return 0, Forward, fmt.Errorf("boundary %d: two-segment lookup failed", b.Idx)
		}
		reverse := reverseLine(line)
		first, second := b.Segments[firstIdx], b.Segments[secondIdx]
		switch {
		case linesEqual(first.Line, line):
			return firstIdx, Forward, nil
		case linesEqual(first.Line, reverse):
			return firstIdx, Backward, nil
		case linesEqual(second.Line, reverse):
			return secondIdx, Backward, nil
		case linesEqual(second.Line, line):
			return secondIdx, Forward, nil
		}
		return 0, Forward, fmt.Errorf("boundary %d: neither segment matches the reference line", b.Idx)

	default:
		if idx, ok := b.lookupSegment(start, end); ok {
			return idx, Forward, nil
		}
		if idx, ok := b.lookupSegment(end, start); ok {
			return idx, Backward, nil
		}
		return 0, Forward, fmt.Errorf("boundary %d: no segment between the reference endpoints", b.Idx)
	}
}

// Rebuild stitches the segments' modified lines back into the ring. Each
// segment contributes its coordinates minus the joint it shares with its
// successor.
func (b *Boundary) Rebuild() error {
	if len(b.Segments) == 0 {
		return fmt.Errorf("boundary %d: rebuild before mapping", b.Idx)
	}
	for _, s := range b.Segments {
		s.Rebuild()
	}

	var out orb.LineString
	for _, s := range b.Segments {
		line := s.ModifiedLine
		out = append(out, line[:len(line)-1]...)
	}
	last := b.Segments[len(b.Segments)-1].ModifiedLine
	out = append(out, last[len(last)-1])
	b.ModifiedLine = out
	return nil
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
