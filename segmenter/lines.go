package segmenter

import (
	"math"

	"github.com/paulmach/orb"
)

// Small line helpers shared across the computers. All comparisons go
// through Epsilon; user coordinates are never compared exactly.

func pointsEqual(a, b orb.Point) bool {
	return math.Abs(a[0]-b[0]) <= Epsilon && math.Abs(a[1]-b[1]) <= Epsilon
}

func dist(a, b orb.Point) float64 {
	return math.Hypot(a[0]-b[0], a[1]-b[1])
}

func linesEqual(a, b orb.LineString) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !pointsEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func reverseLine(l orb.LineString) orb.LineString {
	out := make(orb.LineString, len(l))
	for i := range l {
		out[i] = l[len(l)-1-i]
	}
	return out
}

func lineClosed(l orb.LineString) bool {
	return len(l) >= 4 && pointsEqual(l[0], l[len(l)-1])
}

func lineLength(l orb.LineString) float64 {
	total := 0.0
	for i := 0; i < len(l)-1; i++ {
		total += dist(l[i], l[i+1])
	}
	return total
}

func ringToLine(r orb.Ring) orb.LineString {
	l := make(orb.LineString, len(r))
	copy(l, r)
	if len(l) > 0 && !pointsEqual(l[0], l[len(l)-1]) {
		l = append(l, l[0])
	}
	return l
}

func lineToRing(l orb.LineString) orb.Ring {
	r := make(orb.Ring, len(l))
	copy(r, l)
	if len(r) > 0 && r[0] != r[len(r)-1] {
		r = append(r, r[0])
	}
	return r
}

func ringSignedArea(r orb.Ring) float64 {
	area := 0.0
	n := len(r)
	if n < 3 {
		return 0
	}
	for i := 0; i < n-1; i++ {
		area += r[i][0]*r[i+1][1] - r[i+1][0]*r[i][1]
	}
	if r[0] != r[n-1] {
		area += r[n-1][0]*r[0][1] - r[0][0]*r[n-1][1]
	}
	return area / 2
}

// ringCyclicEqual compares two closed rings as cyclic sequences, in either
// direction.
func ringCyclicEqual(a, b orb.Ring) bool {
	an, bn := openRing(a), openRing(b)
	if len(an) != len(bn) {
		return false
	}
	n := len(an)
	if n == 0 {
		return true
	}
	for shift := 0; shift < n; shift++ {
		if !pointsEqual(an[shift], bn[0]) {
			continue
		}
		fwd, bwd := true, true
		for i := 0; i < n; i++ {
			if !pointsEqual(an[(shift+i)%n], bn[i]) {
				fwd = false
			}
			if !pointsEqual(an[(shift-i+n)%n], bn[i]) {
				bwd = false
			}
			if !fwd && !bwd {
				break
			}
		}
		if fwd || bwd {
			return true
		}
	}
	return false
}

func openRing(r orb.Ring) orb.Ring {
	if len(r) > 1 && pointsEqual(r[0], r[len(r)-1]) {
		return r[:len(r)-1]
	}
	return r
}

// cleanRing removes collinear vertices so ring comparisons are insensitive
// to subdivision points left behind by unions.
func cleanRing(r orb.Ring) orb.Ring {
	pts := openRing(r)
	n := len(pts)
	if n < 3 {
		return lineToRing(orb.LineString(pts))
	}
	kept := make(orb.Ring, 0, n)
	for i := 0; i < n; i++ {
		prev := pts[(i-1+n)%n]
		curr := pts[i]
		next := pts[(i+1)%n]
		// cross product of the incoming and outgoing edge vectors
		cross := (curr[0]-prev[0])*(next[1]-curr[1]) - (curr[1]-prev[1])*(next[0]-curr[0])
		if math.Abs(cross) > Epsilon {
			kept = append(kept, curr)
		}
	}
	if len(kept) < 3 {
		return lineToRing(orb.LineString(pts))
	}
	return lineToRing(orb.LineString(kept))
}

// distToSegment returns the distance from p to the segment ab.
func distToSegment(p, a, b orb.Point) float64 {
	abx, aby := b[0]-a[0], b[1]-a[1]
	apx, apy := p[0]-a[0], p[1]-a[1]
	denom := abx*abx + aby*aby
	if denom == 0 {
		return dist(p, a)
	}
	t := (apx*abx + apy*aby) / denom
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return dist(p, orb.Point{a[0] + t*abx, a[1] + t*aby})
}

// projectOnSegment returns the arc distance from a to p's projection on ab.
func projectOnSegment(p, a, b orb.Point) float64 {
	abx, aby := b[0]-a[0], b[1]-a[1]
	denom := abx*abx + aby*aby
	if denom == 0 {
		return 0
	}
	t := ((p[0]-a[0])*abx + (p[1]-a[1])*aby) / denom
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return t * math.Sqrt(denom)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
