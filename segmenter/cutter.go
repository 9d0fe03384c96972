package segmenter

import (
	"fmt"

	"github.com/paulmach/orb"
)

// The cutting walk below slices an ordered coordinate sequence at a set of
// positioned cutpoints. Closed rings are walked twice conceptually (0..L
// then L..2L) so a segment may wrap through the ring's seam.

// positionCutpoints assigns arc-length positions to an ordered cutpoint
// sequence, wrapping positions forward by the ring length whenever a
// cutpoint does not advance past its predecessor.
func positionCutpoints(b *Boundary, cutpoints []orb.Point) ([]positionedPoint, error) {
	out := make([]positionedPoint, 0, len(cutpoints))
	for i, cp := range cutpoints {
		pos, err := b.PointSortKey(cp)
		if err != nil {
			return nil, err
		}
		if i > 0 && pos <= out[i-1].position {
			pos += b.Length()
			if pos <= out[i-1].position {
				return nil, fmt.Errorf("boundary %d: cutpoint positions do not advance", b.Idx)
			}
		}
		out = append(out, positionedPoint{point: cp, position: pos})
	}
	return out, nil
}

// positionLine lays out a coordinate sequence for the double traversal:
// every point once at its own position and once shifted by length, plus the
// start again at twice the length when the line is a ring.
func positionLine(line orb.LineString, sortKey func(orb.Point) (float64, error), length float64) ([]positionedPoint, error) {
	pts := line
	closed := lineClosed(line)
	if closed {
		pts = line[:len(line)-1]
	}

	first := make([]positionedPoint, 0, len(pts))
	for _, p := range pts {
		pos, err := sortKey(p)
		if err != nil {
			return nil, err
		}
		first = append(first, positionedPoint{point: p, position: pos})
	}

	out := make([]positionedPoint, 0, 2*len(first)+1)
	out = append(out, first...)
	for _, pp := range first {
		out = append(out, positionedPoint{point: pp.point, position: pp.position + length})
	}
	if closed {
		out = append(out, positionedPoint{point: pts[0], position: 2 * length})
	}
	return out, nil
}

// segmentsBetween walks the positioned coordinates once in arc-length
// order and emits one sub-line per consecutive cutpoint pair: the starting
// cutpoint, every coordinate strictly between the pair, and the ending
// cutpoint.
func segmentsBetween(coords, cutpoints []positionedPoint) []orb.LineString {
	var segments []orb.LineString
	var segmentCoords orb.LineString
	started := false
	ci := 0

	for _, pc := range coords {
		if ci == len(cutpoints) {
			break
		}
		if pc.position < cutpoints[ci].position {
			if !started {
				continue
			}
			segmentCoords = append(segmentCoords, pc.point)
			continue
		}
		started = true
		for ci < len(cutpoints) && pc.position >= cutpoints[ci].position {
			segmentCoords = append(segmentCoords, cutpoints[ci].point)
			if ci > 0 {
				segments = append(segments, segmentCoords)
				segmentCoords = orb.LineString{cutpoints[ci].point}
				if pc.position > cutpoints[ci].position &&
					ci+1 < len(cutpoints) && pc.position < cutpoints[ci+1].position {
					segmentCoords = append(segmentCoords, pc.point)
				}
			}
			ci++
		}
	}
	return segments
}

// boundaryCutter cuts a boundary's ring at an ordered cutpoint sequence.
type boundaryCutter struct {
	boundary  *Boundary
	cutpoints []orb.Point
}

func newBoundaryCutter(b *Boundary, cutpoints []orb.Point) *boundaryCutter {
	return &boundaryCutter{boundary: b, cutpoints: cutpoints}
}

// cutBoundary returns one sub-line per consecutive cutpoint pair. The
// number of segments is one less than the number of inputted cutpoints.
func (bc *boundaryCutter) cutBoundary() ([]orb.LineString, error) {
	positioned, err := positionCutpoints(bc.boundary, bc.cutpoints)
	if err != nil {
		return nil, err
	}
	coords, err := positionLine(bc.boundary.Line, bc.boundary.PointSortKey, bc.boundary.Length())
	if err != nil {
		return nil, err
	}
	segments := segmentsBetween(coords, positioned)
	if len(segments) != len(bc.cutpoints)-1 {
		return nil, fmt.Errorf("boundary %d: cut produced %d segments for %d cutpoints",
			bc.boundary.Idx, len(segments), len(bc.cutpoints))
	}
	return segments, nil
}
