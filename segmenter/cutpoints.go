package segmenter

import "github.com/paulmach/orb"

// cutpointsComputer populates every boundary's cutpoint set:
//
//   - every boundary's starting vertex is a cutpoint of that boundary;
//   - the endpoints of every open intersection segment are cutpoints of
//     both sharing boundaries;
//   - a neighbor's starting vertex lying on this boundary is a cutpoint of
//     this boundary (and symmetrically), for open and closed intersections
//     alike, so fully coincident boundaries end up with identical cutpoint
//     sets;
//   - when pinning, every vertex along a border intersection becomes a
//     cutpoint.
type cutpointsComputer struct {
	boundaries []*Boundary
}

func newCutpointsComputer(boundaries []*Boundary) *cutpointsComputer {
	return &cutpointsComputer{boundaries: boundaries}
}

func (cc *cutpointsComputer) computeCutpoints() error {
	if err := cc.useNeighborStartPoints(); err != nil {
		return err
	}
	return cc.useIntersectionEndpoints()
}

func (cc *cutpointsComputer) useNeighborStartPoints() error {
	for _, curr := range cc.boundaries {
		neighbors := neighborIdxs(curr.intersections)
		neighbors = append(neighbors, neighborIdxs(curr.closedIntersections)...)
		for _, n := range neighbors {
			other := cc.boundaries[n]

			if curr.OnBoundary(other.Start()) {
				if err := curr.AddCutpoint(other.Start()); err != nil {
					return err
				}
			}
			if other.OnBoundary(curr.Start()) {
				if err := other.AddCutpoint(curr.Start()); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (cc *cutpointsComputer) useIntersectionEndpoints() error {
	for _, boundary := range cc.boundaries {
		if err := boundary.AddCutpoint(boundary.Start()); err != nil {
			return err
		}
		for _, n := range neighborIdxs(boundary.intersections) {
			for _, segment := range boundary.intersections[n] {
				if lineClosed(segment) {
					continue
				}
				if err := boundary.AddCutpoint(segment[0]); err != nil {
					return err
				}
				if err := boundary.AddCutpoint(segment[len(segment)-1]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// computeBorderCutpoints pins the border: every vertex of a boundary lying
// along a border intersection becomes a cutpoint, so border segments are
// single edges that simplification cannot move.
func (cc *cutpointsComputer) computeBorderCutpoints() error {
	for _, boundary := range cc.boundaries {
		intersections := boundary.BorderIntersections()

		keepAll := len(intersections) == 1 && lineClosed(intersections[0])
		if keepAll {
			for _, coord := range boundary.Line {
				if err := boundary.AddCutpoint(coord); err != nil {
					return err
				}
			}
			continue
		}

		for _, intersection := range intersections {
			start := intersection[0]
			end := intersection[len(intersection)-1]
			cutter := newBoundaryCutter(boundary, []orb.Point{start, end})
			segments, err := cutter.cutBoundary()
			if err != nil {
				return err
			}
			for _, coord := range segments[0] {
				if err := boundary.AddCutpoint(coord); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
