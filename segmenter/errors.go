package segmenter

import "fmt"

// GeometryError reports a polygon the fixer could not repair. OrigPath and
// FixedPath point at GeoJSON dumps of the offending geometries.
type GeometryError struct {
	Reason    string
	OrigPath  string
	FixedPath string
}

func (e *GeometryError) Error() string {
	if e.OrigPath != "" {
		return fmt.Sprintf("geometry error: %s (original dumped to %s, fixed to %s)",
			e.Reason, e.OrigPath, e.FixedPath)
	}
	return "geometry error: " + e.Reason
}

// TopologyError reports a union result that disagrees with the pinned
// border or is not polygonal. Result returns it alongside a still usable
// result; no option enforces the pin.
type TopologyError struct {
	Reason string
}

func (e *TopologyError) Error() string {
	return "topology error: " + e.Reason
}
