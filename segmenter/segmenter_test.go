package segmenter

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitSquare(x, y float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{x, y}, {x + 1, y}, {x + 1, y + 1}, {x, y + 1}, {x, y},
	}}
}

// insertMidpoints is an endpoint-preserving per-segment operation that
// changes the interior of every line, making replication observable.
func insertMidpoints(line orb.LineString) orb.LineString {
	out := orb.LineString{line[0]}
	for i := 1; i < len(line); i++ {
		prev, curr := line[i-1], line[i]
		out = append(out, orb.Point{(prev[0] + curr[0]) / 2, (prev[1] + curr[1]) / 2}, curr)
	}
	return out
}

func TestSegmenterAdjacentSquares(t *testing.T) {
	a := unitSquare(0, 0)
	b := unitSquare(1, 0)

	s, err := New([]orb.Polygon{a, b}, []int32{1, 2}, false)
	require.NoError(t, err)

	boundaries := s.Boundaries()
	require.Len(t, boundaries, 2)

	// every boundary has as many segments as cutpoints
	for _, bd := range boundaries {
		assert.Equal(t, len(bd.Cutpoints()), len(bd.Segments),
			"boundary %d: segments vs cutpoints", bd.Idx)
	}

	// exactly one segment pair shares a reference across the boundaries
	shared := 0
	for _, seg := range boundaries[1].Segments {
		if seg.Reference.Boundary == boundaries[0] {
			shared++
			assert.Equal(t, Backward, seg.Orientation)
		}
	}
	assert.Equal(t, 1, shared)

	s.RunPerSegment(insertMidpoints)
	result, err := s.Result()
	require.NoError(t, err)
	require.Equal(t, 2, result.Len())

	// the central invariant: every segment's modified line equals its
	// reference's, possibly reversed
	for _, bd := range boundaries {
		for _, seg := range bd.Segments {
			want := seg.Reference.ModifiedLine
			if seg.Orientation == Backward {
				want = reverseLine(want)
			}
			assert.True(t, linesEqual(seg.ModifiedLine, want),
				"boundary %d: segment diverged from its reference", bd.Idx)
		}
	}
}

func TestSegmenterSharedEdgeCoincides(t *testing.T) {
	// 2x2 checkerboard of unit squares
	polys := []orb.Polygon{
		unitSquare(0, 0), unitSquare(1, 0),
		unitSquare(0, 1), unitSquare(1, 1),
	}
	s, err := New(polys, []int32{1, 2, 2, 1}, false)
	require.NoError(t, err)

	s.RunPerSegment(insertMidpoints)
	result, err := s.Result()
	require.NoError(t, err)
	require.Equal(t, 4, result.Len())

	// collect every undirected edge of every result ring; each interior
	// edge must appear exactly twice, coordinate for coordinate
	type edge [2]orb.Point
	canon := func(a, b orb.Point) edge {
		if a[0] < b[0] || (a[0] == b[0] && a[1] <= b[1]) {
			return edge{a, b}
		}
		return edge{b, a}
	}
	counts := make(map[edge]int)
	for _, f := range result.Features {
		ring := f.Polygon[0]
		for i := 0; i < len(ring)-1; i++ {
			counts[canon(ring[i], ring[i+1])]++
		}
	}
	for e, c := range counts {
		assert.LessOrEqual(t, c, 2, "edge %v appears %d times", e, c)
	}
	twice := 0
	for _, c := range counts {
		if c == 2 {
			twice++
		}
	}
	// four interior half-edges, each subdivided once by insertMidpoints
	assert.Equal(t, 8, twice)
}

func TestSegmenterHoleIsland(t *testing.T) {
	// an island whose exterior coincides entirely with the field's hole:
	// a closed intersection
	field := orb.Polygon{
		orb.Ring{{0, 0}, {3, 0}, {3, 3}, {0, 3}, {0, 0}},
		orb.Ring{{1, 1}, {1, 2}, {2, 2}, {2, 1}, {1, 1}}, // hole, clockwise
	}
	island := orb.Polygon{
		orb.Ring{{1, 1}, {2, 1}, {2, 2}, {1, 2}, {1, 1}}, // counter-clockwise
	}

	s, err := New([]orb.Polygon{field, island}, []int32{1, 2}, false)
	require.NoError(t, err)

	boundaries := s.Boundaries()
	require.Len(t, boundaries, 3) // field exterior, field hole, island exterior

	hole, islandExt := boundaries[1], boundaries[2]
	require.Len(t, islandExt.Segments, len(islandExt.Cutpoints()))

	// the island's geometry is owned by the hole boundary (smaller id)
	for _, seg := range islandExt.Segments {
		assert.Equal(t, hole, seg.Reference.Boundary)
	}

	s.RunPerSegment(insertMidpoints)
	result, err := s.Result()
	require.NoError(t, err)
	require.Equal(t, 2, result.Len())

	modifiedHole := result.Features[0].Polygon[1]
	modifiedIsland := result.Features[1].Polygon[0]
	assert.True(t, ringCyclicEqual(modifiedHole, modifiedIsland),
		"hole ring and island exterior diverged")
}

func TestSegmenterPinnedBorderHolds(t *testing.T) {
	polys := []orb.Polygon{unitSquare(0, 0), unitSquare(1, 0)}
	s, err := New(polys, []int32{1, 2}, true)
	require.NoError(t, err)

	// identity op: the border check must pass trivially
	s.RunPerSegment(func(l orb.LineString) orb.LineString { return l })
	result, err := s.Result()
	require.NoError(t, err)
	assert.Equal(t, 2, result.Len())
}

func TestConnectedSegmentsReassembly(t *testing.T) {
	// three chained pieces, presented out of order, all running in +x
	pieces := []orb.LineString{
		{{1, 0}, {2, 0}},
		{{0, 0}, {1, 0}},
		{{2, 0}, {3, 0}},
	}
	segments := connectedSegments(pieces)
	require.Len(t, segments, 1)
	assert.True(t, linesEqual(segments[0], orb.LineString{{0, 0}, {1, 0}, {2, 0}, {3, 0}}) ||
		linesEqual(segments[0], orb.LineString{{3, 0}, {2, 0}, {1, 0}, {0, 0}}))
}

func TestConnectedSegmentsRing(t *testing.T) {
	pieces := []orb.LineString{
		{{0, 0}, {1, 0}},
		{{1, 0}, {1, 1}},
		{{1, 1}, {0, 0}},
	}
	segments := connectedSegments(pieces)
	require.Len(t, segments, 1)
	assert.True(t, lineClosed(segments[0]) || len(segments[0]) == 4,
		"expected a closed walk, got %v", segments[0])
}

func TestFixPolygonBowtie(t *testing.T) {
	// a figure-eight exterior decomposes into two triangles
	bowtie := orb.Polygon{orb.Ring{
		{0, 0}, {2, 2}, {2, 0}, {0, 2}, {0, 0},
	}}
	require.False(t, polygonValid(bowtie))

	fixed, err := FixPolygon(bowtie)
	require.NoError(t, err)
	require.Len(t, fixed, 2)
	for _, p := range fixed {
		assert.True(t, polygonValid(p))
	}
}

func TestCutpointDedup(t *testing.T) {
	b, err := NewBoundary(0, orb.LineString{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}})
	require.NoError(t, err)

	require.NoError(t, b.AddCutpoint(orb.Point{0, 0}))
	require.NoError(t, b.AddCutpoint(orb.Point{1, 0}))
	// within epsilon of an existing cutpoint: collapses
	require.NoError(t, b.AddCutpoint(orb.Point{1, 1e-12}))
	assert.Len(t, b.Cutpoints(), 2)
}

func TestBoundaryCutterWraps(t *testing.T) {
	b, err := NewBoundary(0, orb.LineString{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}})
	require.NoError(t, err)

	// cut from (1,0) around the seam back to (1,0)
	cutter := newBoundaryCutter(b, []orb.Point{{1, 0}, {1, 1}, {1, 0}})
	segments, err := cutter.cutBoundary()
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.True(t, linesEqual(segments[0], orb.LineString{{1, 0}, {1, 1}}))
	assert.True(t, linesEqual(segments[1], orb.LineString{{1, 1}, {0, 1}, {0, 0}, {1, 0}}))
}
