package vector

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
)

// Shapefiles wind exterior rings clockwise and holes counter-clockwise.
// orb uses the opposite convention for orientation constants, so rings are
// re-wound on the way in and out.

// WriteShp writes the feature set as a polygon shapefile with a single
// numeric attribute named labelName.
func WriteShp(path string, fs *FeatureSet, labelName string) error {
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return fmt.Errorf("create shapefile %s: %w", path, err)
	}
	defer w.Close()

	field := shp.NumberField(strings.ToUpper(labelName), 16)
	if err := w.SetFields([]shp.Field{field}); err != nil {
		return fmt.Errorf("set fields on %s: %w", path, err)
	}

	for i, f := range fs.Features {
		poly := toShpPolygon(f.Polygon)
		w.Write(poly)
		if err := w.WriteAttribute(i, 0, int(f.Label)); err != nil {
			return fmt.Errorf("write label of feature %d to %s: %w", i, path, err)
		}
	}
	return nil
}

// MultiFeature is one labeled multipolygon record, the shape of the final
// per-label union output.
type MultiFeature struct {
	Geometry []orb.Polygon
	Label    int32
}

// WriteShpMulti writes one multipolygon record per feature: all parts of a
// feature's polygons go into a single shape, so each distinct label stays
// one record.
func WriteShpMulti(path string, features []MultiFeature, labelName string) error {
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return fmt.Errorf("create shapefile %s: %w", path, err)
	}
	defer w.Close()

	field := shp.NumberField(strings.ToUpper(labelName), 16)
	if err := w.SetFields([]shp.Field{field}); err != nil {
		return fmt.Errorf("set fields on %s: %w", path, err)
	}

	for i, f := range features {
		w.Write(toShpMultiPolygon(f.Geometry))
		if err := w.WriteAttribute(i, 0, int(f.Label)); err != nil {
			return fmt.Errorf("write label of feature %d to %s: %w", i, path, err)
		}
	}
	return nil
}

func toShpMultiPolygon(polys []orb.Polygon) *shp.Polygon {
	out := &shp.Polygon{}
	box := shp.Box{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}

	for _, p := range polys {
		for ri, ring := range p {
			pts := ringToShpPoints(ring, ri == 0)
			out.Parts = append(out.Parts, out.NumPoints)
			out.Points = append(out.Points, pts...)
			out.NumParts++
			out.NumPoints += int32(len(pts))
			for _, pt := range pts {
				box.MinX = math.Min(box.MinX, pt.X)
				box.MinY = math.Min(box.MinY, pt.Y)
				box.MaxX = math.Max(box.MaxX, pt.X)
				box.MaxY = math.Max(box.MaxY, pt.Y)
			}
		}
	}
	out.Box = box
	return out
}

// ReadShp loads a polygon shapefile written by WriteShp back into a feature
// set. Multi-ring shapes are split into one polygon per clockwise part with
// the counter-clockwise parts attached as holes of the part containing them.
func ReadShp(path string) (*FeatureSet, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shapefile %s: %w", path, err)
	}
	defer r.Close()

	fs := &FeatureSet{}
	row := 0
	for r.Next() {
		_, shape := r.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			return nil, fmt.Errorf("shapefile %s: row %d is not a polygon", path, row)
		}

		raw := r.ReadAttribute(row, 0)
		label, err := parseLabel(raw)
		if err != nil {
			return nil, fmt.Errorf("shapefile %s: row %d label %q: %w", path, row, raw, err)
		}

		for _, p := range fromShpPolygon(poly) {
			fs.Append(p, label)
		}
		row++
	}
	return fs, nil
}

func parseLabel(raw string) (int32, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty label")
	}
	// dbf numeric fields may come back with a decimal point
	if i := strings.IndexByte(raw, '.'); i >= 0 {
		raw = raw[:i]
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

func toShpPolygon(p orb.Polygon) *shp.Polygon {
	out := &shp.Polygon{}
	box := shp.Box{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}

	for ri, ring := range p {
		pts := ringToShpPoints(ring, ri == 0)
		out.Parts = append(out.Parts, out.NumPoints)
		out.Points = append(out.Points, pts...)
		out.NumParts++
		out.NumPoints += int32(len(pts))
		for _, pt := range pts {
			box.MinX = math.Min(box.MinX, pt.X)
			box.MinY = math.Min(box.MinY, pt.Y)
			box.MaxX = math.Max(box.MaxX, pt.X)
			box.MaxY = math.Max(box.MaxY, pt.Y)
		}
	}
	out.Box = box
	return out
}

func ringToShpPoints(ring orb.Ring, exterior bool) []shp.Point {
	closed := ring
	if len(closed) > 0 && closed[0] != closed[len(closed)-1] {
		closed = append(orb.Ring{}, closed...)
		closed = append(closed, closed[0])
	}
	clockwise := ring.Orientation() == orb.CW
	if clockwise != exterior {
		rev := make(orb.Ring, len(closed))
		for i := range closed {
			rev[i] = closed[len(closed)-1-i]
		}
		closed = rev
	}
	pts := make([]shp.Point, len(closed))
	for i, c := range closed {
		pts[i] = shp.Point{X: c[0], Y: c[1]}
	}
	return pts
}

func fromShpPolygon(sp *shp.Polygon) []orb.Polygon {
	n := int(sp.NumParts)
	rings := make([]orb.Ring, 0, n)
	for i := 0; i < n; i++ {
		start := int(sp.Parts[i])
		end := int(sp.NumPoints)
		if i+1 < n {
			end = int(sp.Parts[i+1])
		}
		ring := make(orb.Ring, 0, end-start)
		for _, pt := range sp.Points[start:end] {
			ring = append(ring, orb.Point{pt.X, pt.Y})
		}
		if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
			ring = append(ring, ring[0])
		}
		rings = append(rings, ring)
	}

	var polys []orb.Polygon
	var holes []orb.Ring
	for _, ring := range rings {
		if ring.Orientation() == orb.CW {
			// exterior: re-wind to orb's counter-clockwise convention
			polys = append(polys, orb.Polygon{reverseRing(ring)})
		} else {
			holes = append(holes, reverseRing(ring))
		}
	}
	for _, hole := range holes {
		hi := containingPolygon(polys, hole)
		if hi < 0 {
			// orphan hole, keep it as a degenerate polygon rather than drop data
			polys = append(polys, orb.Polygon{hole})
			continue
		}
		polys[hi] = append(polys[hi], hole)
	}
	return polys
}

func reverseRing(r orb.Ring) orb.Ring {
	out := make(orb.Ring, len(r))
	for i := range r {
		out[i] = r[len(r)-1-i]
	}
	return out
}

func containingPolygon(polys []orb.Polygon, hole orb.Ring) int {
	if len(hole) == 0 {
		return -1
	}
	pt := ringInteriorPoint(hole)
	best := -1
	bestArea := math.Inf(1)
	for i, p := range polys {
		if len(p) == 0 {
			continue
		}
		if ringContains(p[0], pt) {
			a := math.Abs(ringArea(p[0]))
			if a < bestArea {
				best, bestArea = i, a
			}
		}
	}
	return best
}
