package geopolygonize

import (
	"github.com/paulmach/orb"
)

// ChaikinsCornerCutting smooths a line by corner cutting: each refinement
// replaces every edge by two points at 25% and 75% along it, keeping the
// line's endpoints fixed.
func ChaikinsCornerCutting(coords orb.LineString, refinements int) orb.LineString {
	if len(coords) == 0 {
		return coords
	}

	arr := append(orb.LineString{}, coords...)
	for r := 0; r < refinements; r++ {
		n := len(arr)
		// duplicate every point, then interleave the neighbors shifted
		// by one so the weighted sum below lands on the quarter points
		l := make(orb.LineString, 0, 2*n)
		for _, p := range arr {
			l = append(l, p, p)
		}
		rr := make(orb.LineString, len(l))
		rr[0] = l[0]
		rr[len(rr)-1] = l[len(l)-1]
		for i := 2; i < len(l)-1; i += 2 {
			rr[i] = l[i-1]
		}
		for i := 1; i < len(l)-1; i += 2 {
			rr[i] = l[i+1]
		}
		out := make(orb.LineString, len(l))
		for i := range l {
			out[i] = orb.Point{
				l[i][0]*0.75 + rr[i][0]*0.25,
				l[i][1]*0.75 + rr[i][1]*0.25,
			}
		}
		arr = out
	}
	return arr
}
