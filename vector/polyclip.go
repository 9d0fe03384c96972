package vector

import (
	"math"

	polyclip "github.com/ctessum/polyclip-go"
	"github.com/paulmach/orb"
)

// ToPolyclip converts an orb polygon into a polyclip polygon. polyclip
// contours are implicitly closed, so the duplicated closing vertex is
// dropped.
func ToPolyclip(p orb.Polygon) polyclip.Polygon {
	out := make(polyclip.Polygon, 0, len(p))
	for _, ring := range p {
		n := len(ring)
		if n > 1 && ring[0] == ring[n-1] {
			n--
		}
		contour := make(polyclip.Contour, 0, n)
		for i := 0; i < n; i++ {
			contour = append(contour, polyclip.Point{X: ring[i][0], Y: ring[i][1]})
		}
		out = append(out, contour)
	}
	return out
}

// FromPolyclip reassembles a polyclip result into orb polygons. Contours
// are classified as exteriors or holes by containment depth: a contour
// inside an odd number of other contours is a hole of its smallest
// enclosing exterior.
func FromPolyclip(p polyclip.Polygon) []orb.Polygon {
	rings := make([]orb.Ring, 0, len(p))
	for _, contour := range p {
		if len(contour) < 3 {
			continue
		}
		ring := make(orb.Ring, 0, len(contour)+1)
		for _, pt := range contour {
			ring = append(ring, orb.Point{pt.X, pt.Y})
		}
		ring = append(ring, ring[0])
		rings = append(rings, ring)
	}

	depth := make([]int, len(rings))
	for i, ring := range rings {
		pt := ringInteriorPoint(ring)
		for j, other := range rings {
			if i == j {
				continue
			}
			if ringContains(other, pt) {
				depth[i]++
			}
		}
	}

	var polys []orb.Polygon
	outerIdx := make([]int, 0, len(rings))
	for i, ring := range rings {
		if depth[i]%2 != 0 {
			continue
		}
		if ringArea(ring) < 0 {
			ring = reverseRing(ring)
		}
		polys = append(polys, orb.Polygon{ring})
		outerIdx = append(outerIdx, i)
	}
	for i, ring := range rings {
		if depth[i]%2 == 0 {
			continue
		}
		pt := ringInteriorPoint(ring)
		best := -1
		bestArea := math.Inf(1)
		for pi, oi := range outerIdx {
			if depth[oi] != depth[i]-1 {
				continue
			}
			if ringContains(rings[oi], pt) {
				a := math.Abs(ringArea(rings[oi]))
				if a < bestArea {
					best, bestArea = pi, a
				}
			}
		}
		if best < 0 {
			continue
		}
		if ringArea(ring) > 0 {
			ring = reverseRing(ring)
		}
		polys[best] = append(polys[best], ring)
	}
	return polys
}

// Union returns the unary union of the polygons.
func Union(polys []orb.Polygon) []orb.Polygon {
	if len(polys) == 0 {
		return nil
	}
	acc := ToPolyclip(polys[0])
	for _, p := range polys[1:] {
		acc = acc.Construct(polyclip.UNION, ToPolyclip(p))
	}
	return FromPolyclip(acc)
}

// Difference subtracts q from p.
func Difference(p, q orb.Polygon) []orb.Polygon {
	res := ToPolyclip(p).Construct(polyclip.DIFFERENCE, ToPolyclip(q))
	return FromPolyclip(res)
}
