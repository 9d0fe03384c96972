package segmenter

import (
	"github.com/paulmach/orb"
)

// Area owns one source polygon and the boundaries built from its rings.
// Its identity never changes; ModifiedPolygon is refreshed by Rebuild.
type Area struct {
	Polygon   orb.Polygon
	Exterior  *Boundary
	Interiors []*Boundary

	ModifiedPolygon orb.Polygon
}

func NewArea(p orb.Polygon) *Area {
	return &Area{Polygon: p}
}

// Rebuild assembles the modified polygon from the boundaries' modified
// rings. Boundaries must have been rebuilt first.
func (a *Area) Rebuild() {
	poly := make(orb.Polygon, 0, 1+len(a.Interiors))
	poly = append(poly, lineToRing(a.Exterior.ModifiedLine))
	for _, interior := range a.Interiors {
		poly = append(poly, lineToRing(interior.ModifiedLine))
	}
	a.ModifiedPolygon = poly
}
