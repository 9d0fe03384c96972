package segmenter

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/rainflame/geopolygonize/vector"
)

func ringContainsPt(r orb.Ring, pt orb.Point) bool {
	return planar.RingContains(r, pt)
}

func unionPolygons(polys []orb.Polygon) []orb.Polygon {
	return vector.Union(polys)
}

func differencePolygons(p, q orb.Polygon) []orb.Polygon {
	return vector.Difference(p, q)
}
