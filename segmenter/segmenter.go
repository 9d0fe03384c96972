// Package segmenter splits polygon rings into shared segments with one
// canonical owner per segment, so that a geometric operation applied to a
// segment through its owner is replicated identically onto every polygon
// that shares it. This keeps polygons exactly coincident along shared
// boundaries through simplification and smoothing.
package segmenter

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/rainflame/geopolygonize/vector"
)

// Epsilon is the fixed tolerance for cutpoint deduplication, orientation
// checks and border equality. Coordinates are never compared exactly.
const Epsilon = 1e-10

// LineFunc transforms one segment line. It must preserve the line's first
// and last coordinates; that is what guarantees gap-free reassembly.
type LineFunc func(orb.LineString) orb.LineString

// Segmenter is the arena owning all areas, boundaries and segments of one
// polygon collection. Entities refer to one another by pointer; a
// boundary's Idx is its position in the boundaries slice.
type Segmenter struct {
	areas      []*Area
	boundaries []*Boundary
	references []*Segment // segments that own their geometry

	labels    []int32
	pinBorder bool
	border    orb.Ring
}

// New builds the full topology for the labeled polygons: intersections,
// cutpoints, mapping and references. With pinBorder, the outer ring of the
// union of all polygons is held fixed through any per-segment operation.
func New(polygons []orb.Polygon, labels []int32, pinBorder bool) (*Segmenter, error) {
	s := &Segmenter{labels: labels, pinBorder: pinBorder}

	if pinBorder {
		if err := s.buildBorder(polygons); err != nil {
			return nil, err
		}
	}
	s.buildAreas(polygons)
	if err := s.buildBoundaries(); err != nil {
		return nil, err
	}
	if err := s.buildReferences(); err != nil {
		return nil, err
	}
	return s, nil
}

// RunPerSegment applies fn to every owned reference segment. Segments that
// share a reference pick the change up during rebuild.
func (s *Segmenter) RunPerSegment(fn LineFunc) {
	for _, ref := range s.references {
		ref.ModifiedLine = fn(ref.ModifiedLine)
	}
}

// Result rebuilds every polygon from its modified segments. Polygons whose
// rebuilt rings self-intersect are decomposed into valid polygons carrying
// the same label. With pinBorder the union's outer ring is checked against
// the pinned border; a mismatch is reported as a *TopologyError alongside
// the (still usable) result.
func (s *Segmenter) Result() (*vector.FeatureSet, error) {
	for _, b := range s.boundaries {
		if err := b.Rebuild(); err != nil {
			return nil, err
		}
	}

	fs := &vector.FeatureSet{}
	for i, area := range s.areas {
		area.Rebuild()
		label := s.labels[i]
		poly := area.ModifiedPolygon
		if polygonValid(poly) {
			fs.Append(poly, label)
			continue
		}
		fixed, err := FixPolygon(poly)
		if err != nil {
			return nil, err
		}
		for _, fp := range fixed {
			fs.Append(fp, label)
		}
	}

	if s.pinBorder {
		if err := s.checkBorder(fs.Polygons()); err != nil {
			// The union can fail or drift on meaningfully invalid
			// geometry; the per-polygon result is still usable.
			return fs, err
		}
	}
	return fs, nil
}

// buildBorder unions the input polygons and keeps the cleaned exterior of
// the largest piece as the pinned border.
func (s *Segmenter) buildBorder(polygons []orb.Polygon) error {
	union := vector.Union(polygons)
	if len(union) == 0 {
		return fmt.Errorf("segmenter: empty union, cannot pin border")
	}
	largest := 0
	largestArea := 0.0
	for i, p := range union {
		if a := abs(ringSignedArea(p[0])); a > largestArea {
			largest, largestArea = i, a
		}
	}
	s.border = cleanRing(union[largest][0])
	return nil
}

// checkBorder verifies the union of the result still closes on the pinned
// border.
func (s *Segmenter) checkBorder(polygons []orb.Polygon) error {
	union := vector.Union(polygons)
	if len(union) == 0 {
		return &TopologyError{Reason: "union of result is empty"}
	}
	largest := 0
	largestArea := 0.0
	for i, p := range union {
		if a := abs(ringSignedArea(p[0])); a > largestArea {
			largest, largestArea = i, a
		}
	}
	got := cleanRing(union[largest][0])
	if !ringCyclicEqual(got, s.border) {
		return &TopologyError{Reason: "union exterior moved off the pinned border"}
	}
	return nil
}

func (s *Segmenter) buildAreas(polygons []orb.Polygon) {
	s.areas = make([]*Area, len(polygons))
	for i, p := range polygons {
		s.areas[i] = NewArea(p)
	}
}

func (s *Segmenter) buildBoundaries() error {
	count := 0
	for _, area := range s.areas {
		exterior, err := NewBoundary(count, ringToLine(area.Polygon[0]))
		if err != nil {
			return err
		}
		count++

		interiors := make([]*Boundary, 0, len(area.Polygon)-1)
		for _, hole := range area.Polygon[1:] {
			interior, err := NewBoundary(count, ringToLine(hole))
			if err != nil {
				return err
			}
			count++
			interiors = append(interiors, interior)
		}

		area.Exterior = exterior
		area.Interiors = interiors
		s.boundaries = append(s.boundaries, exterior)
		s.boundaries = append(s.boundaries, interiors...)
	}
	return nil
}

func (s *Segmenter) buildReferences() error {
	ic := newIntersectionsComputer(s.boundaries)
	ic.computeIntersections()
	if s.pinBorder {
		ic.computeBorderIntersections(s.border)
	}

	cc := newCutpointsComputer(s.boundaries)
	if err := cc.computeCutpoints(); err != nil {
		return err
	}
	if s.pinBorder {
		if err := cc.computeBorderCutpoints(); err != nil {
			return err
		}
	}

	if err := newMappingComputer(s.boundaries).computeMapping(); err != nil {
		return err
	}

	refs, err := newReferencesComputer(s.boundaries).computeReferences()
	if err != nil {
		return err
	}
	s.references = refs
	return nil
}

// Boundaries exposes the arena for tests.
func (s *Segmenter) Boundaries() []*Boundary { return s.boundaries }

// References exposes the owned reference segments for tests.
func (s *Segmenter) References() []*Segment { return s.references }
