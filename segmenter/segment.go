package segmenter

import (
	"github.com/paulmach/orb"
)

// Orientation relates a segment to its reference segment.
type Orientation int

const (
	// Forward means the reference's coordinate sequence equals the
	// segment's.
	Forward Orientation = iota
	// Backward means the reference's coordinate sequence is the
	// segment's reverse.
	Backward
)

// Segment is a maximal sub-arc of a boundary bounded by two consecutive
// cutpoints. Its geometry is owned by its reference segment, which may be
// itself.
type Segment struct {
	Boundary *Boundary
	Line     orb.LineString
	Start    orb.Point
	End      orb.Point

	// ModifiedLine accumulates per-segment operations. Only references
	// are operated on directly; every other segment copies its
	// reference's line during rebuild.
	ModifiedLine orb.LineString

	Reference   *Segment
	Orientation Orientation
}

func newSegment(b *Boundary, line orb.LineString) *Segment {
	return &Segment{
		Boundary:     b,
		Line:         line,
		Start:        line[0],
		End:          line[len(line)-1],
		ModifiedLine: line,
	}
}

// SetReference fixes the canonical segment for this geometry. The
// orientation is derived from the reference's coordinate sequence, not
// stored state.
func (s *Segment) SetReference(ref *Segment) error {
	orientation, err := s.Boundary.orientationOf(ref)
	if err != nil {
		return err
	}
	s.Reference = ref
	s.Orientation = orientation
	return nil
}

// Rebuild pulls the reference's modified line into this segment, reversed
// when the segment runs against the reference's direction.
func (s *Segment) Rebuild() {
	if s.Orientation == Backward {
		s.ModifiedLine = reverseLine(s.Reference.ModifiedLine)
		return
	}
	s.ModifiedLine = s.Reference.ModifiedLine
}
