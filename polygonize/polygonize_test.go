package polygonize

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/rainflame/geopolygonize/raster"
)

func gridFrom(t *testing.T, rows [][]int32) *raster.Grid {
	t.Helper()
	g := raster.NewGrid(len(rows), len(rows[0]), raster.Identity())
	for x, row := range rows {
		for y, v := range row {
			g.Set(x, y, v)
		}
	}
	return g
}

func TestPolygonizeUniformGrid(t *testing.T) {
	g := gridFrom(t, [][]int32{
		{5, 5, 5},
		{5, 5, 5},
	})
	fs := Polygonize(g)
	if fs.Len() != 1 {
		t.Fatalf("got %d polygons, want 1", fs.Len())
	}
	f := fs.Features[0]
	if f.Label != 5 {
		t.Fatalf("label = %d, want 5", f.Label)
	}
	if got := planar.Area(f.Polygon); got != 6 {
		t.Fatalf("area = %v, want 6", got)
	}
}

func TestPolygonizeCheckerboard(t *testing.T) {
	g := gridFrom(t, [][]int32{
		{1, 2},
		{2, 1},
	})
	fs := Polygonize(g)
	if fs.Len() != 4 {
		t.Fatalf("got %d polygons, want 4", fs.Len())
	}
	ones, twos := 0, 0
	for _, f := range fs.Features {
		if got := planar.Area(f.Polygon); got != 1 {
			t.Fatalf("unit cell area = %v, want 1", got)
		}
		if len(f.Polygon[0]) != 5 {
			t.Fatalf("unit cell ring has %d coords, want 5", len(f.Polygon[0]))
		}
		switch f.Label {
		case 1:
			ones++
		case 2:
			twos++
		}
	}
	if ones != 2 || twos != 2 {
		t.Fatalf("got %d ones and %d twos, want 2 and 2", ones, twos)
	}
}

func TestPolygonizeSharedEdgesCoincide(t *testing.T) {
	g := gridFrom(t, [][]int32{
		{1, 2},
	})
	fs := Polygonize(g)
	if fs.Len() != 2 {
		t.Fatalf("got %d polygons, want 2", fs.Len())
	}

	// collect each polygon's undirected edge set and look for the
	// shared one
	type edge [2]orb.Point
	canon := func(a, b orb.Point) edge {
		if a[0] < b[0] || (a[0] == b[0] && a[1] < b[1]) {
			return edge{a, b}
		}
		return edge{b, a}
	}
	counts := make(map[edge]int)
	for _, f := range fs.Features {
		ring := f.Polygon[0]
		for i := 0; i < len(ring)-1; i++ {
			counts[canon(ring[i], ring[i+1])]++
		}
	}
	shared := 0
	for _, c := range counts {
		if c == 2 {
			shared++
		}
	}
	if shared != 1 {
		t.Fatalf("neighbors share %d coincident edges, want exactly 1", shared)
	}
}

func TestPolygonizeHoleRing(t *testing.T) {
	// a field of 1 with an embedded single pixel of 2
	g := gridFrom(t, [][]int32{
		{1, 1, 1},
		{1, 2, 1},
		{1, 1, 1},
	})
	fs := Polygonize(g)
	if fs.Len() != 2 {
		t.Fatalf("got %d polygons, want 2", fs.Len())
	}

	var outer, inner *orb.Polygon
	for i := range fs.Features {
		switch fs.Features[i].Label {
		case 1:
			outer = &fs.Features[i].Polygon
		case 2:
			inner = &fs.Features[i].Polygon
		}
	}
	if outer == nil || inner == nil {
		t.Fatalf("missing a label")
	}
	if len(*outer) != 2 {
		t.Fatalf("outer polygon has %d rings, want 2 (exterior + hole)", len(*outer))
	}
	if got := planar.Area(*outer); got != 8 {
		t.Fatalf("outer area = %v, want 8", got)
	}

	// the hole's ring is the embedded polygon's exterior reversed
	hole := (*outer)[1]
	ext := (*inner)[0]
	if len(hole) != len(ext) {
		t.Fatalf("hole has %d coords, exterior has %d", len(hole), len(ext))
	}
	if !cyclicReversed(hole, ext) {
		t.Fatalf("hole ring %v is not the reverse of exterior %v", hole, ext)
	}
}

// cyclicReversed reports whether a equals b reversed up to rotation.
func cyclicReversed(a, b orb.Ring) bool {
	an := a[:len(a)-1]
	bn := b[:len(b)-1]
	if len(an) != len(bn) {
		return false
	}
	n := len(an)
	for shift := 0; shift < n; shift++ {
		match := true
		for i := 0; i < n; i++ {
			if an[(shift-i+n)%n] != bn[i] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func TestPolygonizeLShape(t *testing.T) {
	// an L of 2 in a field of 1; both polygons must come back and the
	// total area must cover the grid
	g := gridFrom(t, [][]int32{
		{2, 1, 1},
		{2, 1, 1},
		{2, 2, 2},
	})
	fs := Polygonize(g)
	if fs.Len() != 2 {
		t.Fatalf("got %d polygons, want 2", fs.Len())
	}
	total := 0.0
	for _, f := range fs.Features {
		total += planar.Area(f.Polygon)
	}
	if total != 9 {
		t.Fatalf("total area = %v, want 9", total)
	}
}
