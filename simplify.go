package geopolygonize

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
)

// simplifyLine runs Douglas-Peucker on one segment line. Ring-shaped
// segments are split at the coordinate midpoint, simplified as two open
// halves and rejoined; simplifying the closed loop directly could collapse
// it to little more than a point.
func simplifyLine(line orb.LineString, tolerance float64) orb.LineString {
	simplifier := simplify.DouglasPeucker(tolerance)

	isRing := len(line) >= 4 && line[0] == line[len(line)-1]
	if !isRing {
		return simplifier.LineString(line.Clone())
	}

	mid := len(line) / 2
	first := line.Clone()[:mid+1]
	second := line.Clone()[mid:]
	simplified1 := simplifier.LineString(first)
	simplified2 := simplifier.LineString(second)

	out := make(orb.LineString, 0, len(simplified1)+len(simplified2)-1)
	out = append(out, simplified1[:len(simplified1)-1]...)
	out = append(out, simplified2...)
	return out
}
