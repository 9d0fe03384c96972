package segmenter

import (
	"github.com/paulmach/orb"
)

// referencesComputer elects one canonical owner per shared segment. Every
// segment starts as a candidate owner of itself; shared intersections add
// the lower-indexed boundary's segments as candidates on the higher-indexed
// side; the candidate with the smallest owning-boundary id wins.
type referencesComputer struct {
	boundaries []*Boundary
}

func newReferencesComputer(boundaries []*Boundary) *referencesComputer {
	return &referencesComputer{boundaries: boundaries}
}

func (rc *referencesComputer) computeReferences() ([]*Segment, error) {
	rc.seedSelfReferences()
	if err := rc.shareClosedIntersections(); err != nil {
		return nil, err
	}
	if err := rc.shareOpenIntersections(); err != nil {
		return nil, err
	}
	return rc.electReferences()
}

func (rc *referencesComputer) seedSelfReferences() {
	for _, b := range rc.boundaries {
		for i, s := range b.Segments {
			b.potentialReferences[i] = append(b.potentialReferences[i], s)
		}
	}
}

// shareClosedIntersections maps every segment of the lower-indexed
// boundary onto the coincident segment of the higher-indexed one. The
// cutpoints computer synchronized their cutpoint sets, so the segments
// pair up one to one.
func (rc *referencesComputer) shareClosedIntersections() error {
	for _, curr := range rc.boundaries {
		for _, n := range neighborIdxs(curr.closedIntersections) {
			if n <= curr.Idx {
				continue // handled already
			}
			other := rc.boundaries[n]

			cutpoints := curr.Cutpoints()
			withEnd := append(cutpoints, cutpoints[0])
			for i := 0; i < len(withEnd)-1; i++ {
				segment, err := curr.GetSegment(withEnd[i], withEnd[i+1])
				if err != nil {
					return err
				}
				if err := other.AddPotentialReference(segment); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// shareOpenIntersections splits each open intersection at the boundary's
// cutpoints lying within it and offers the lower-indexed side's segments
// as candidates for the matching segments on the higher-indexed side.
func (rc *referencesComputer) shareOpenIntersections() error {
	for _, curr := range rc.boundaries {
		for _, n := range neighborIdxs(curr.intersections) {
			if n <= curr.Idx {
				continue // handled already
			}
			other := rc.boundaries[n]

			for _, intersection := range curr.intersections[n] {
				relevant, err := rc.relevantCutpoints(curr, intersection)
				if err != nil {
					return err
				}
				for i := 0; i < len(relevant)-1; i++ {
					segment, err := curr.GetSegment(relevant[i], relevant[i+1])
					if err != nil {
						return err
					}
					if err := other.AddPotentialReference(segment); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// relevantCutpoints returns the boundary's cutpoints lying within the
// intersection's endpoints, in walk order, endpoints included. The
// boundary's cutpoint sequence acts as the line to cut: its sub-line
// between the intersection endpoints carries exactly the wanted points.
func (rc *referencesComputer) relevantCutpoints(b *Boundary, intersection orb.LineString) ([]orb.Point, error) {
	start := intersection[0]
	end := intersection[len(intersection)-1]

	super := make(orb.LineString, len(b.cutpoints))
	for i, pp := range b.cutpoints {
		super[i] = pp.point
	}
	coords, err := positionLine(super, b.PointSortKey, b.Length())
	if err != nil {
		return nil, err
	}
	cut, err := positionCutpoints(b, []orb.Point{start, end})
	if err != nil {
		return nil, err
	}
	segments := segmentsBetween(coords, cut)
	if len(segments) == 0 {
		return nil, &TopologyError{Reason: "intersection endpoints are not cutpoints"}
	}
	return []orb.Point(segments[0]), nil
}

// electReferences picks each segment's reference: the potential reference
// with the smallest owning-boundary id, the earliest offered on a tie.
// Segments that end up referencing themselves are the owned references.
func (rc *referencesComputer) electReferences() ([]*Segment, error) {
	var references []*Segment
	for _, b := range rc.boundaries {
		segments, candidates := b.SegmentsWithPotentialReferences()
		for i, s := range segments {
			best := candidates[i][0]
			for _, c := range candidates[i][1:] {
				if c.Boundary.Idx < best.Boundary.Idx {
					best = c
				}
			}
			if err := s.SetReference(best); err != nil {
				return nil, err
			}
			if s.Reference == s {
				references = append(references, s)
			}
		}
	}
	return references, nil
}
