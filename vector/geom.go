package vector

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ringArea returns the signed shoelace area of a ring; positive when the
// ring winds counter-clockwise.
func ringArea(r orb.Ring) float64 {
	n := len(r)
	if n < 3 {
		return 0
	}
	area := 0.0
	for i := 0; i < n-1; i++ {
		area += r[i][0]*r[i+1][1] - r[i+1][0]*r[i][1]
	}
	if r[0] != r[n-1] {
		area += r[n-1][0]*r[0][1] - r[0][0]*r[n-1][1]
	}
	return area / 2
}

func ringContains(r orb.Ring, pt orb.Point) bool {
	return planar.RingContains(r, pt)
}

// ringInteriorPoint returns a point strictly inside the ring. It walks the
// ring's corners and probes each corner triangle's centroid.
func ringInteriorPoint(r orb.Ring) orb.Point {
	n := len(r)
	if n > 0 && r[0] == r[n-1] {
		n--
	}
	if n < 3 {
		if n == 0 {
			return orb.Point{}
		}
		return r[0]
	}
	for i := 0; i < n; i++ {
		a, b, c := r[i], r[(i+1)%n], r[(i+2)%n]
		centroid := orb.Point{(a[0] + b[0] + c[0]) / 3, (a[1] + b[1] + c[1]) / 3}
		if planar.RingContains(r, centroid) {
			return centroid
		}
	}
	// Degenerate ring; fall back to a vertex mean.
	var sx, sy float64
	for i := 0; i < n; i++ {
		sx += r[i][0]
		sy += r[i][1]
	}
	return orb.Point{sx / float64(n), sy / float64(n)}
}
