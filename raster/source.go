package raster

import (
	"fmt"
	"math"
)

// Source is a windowed reader over a georeferenced label raster. Concrete
// raster formats (GeoTIFF and friends) live outside this module; callers
// plug them in by implementing this interface. NpySource is the built-in
// implementation.
type Source interface {
	// Dims returns the raster extent in pixels (x along rows, y along
	// columns).
	Dims() (width, height int)
	// Transform returns the affine pixel-to-world transform.
	Transform() Affine
	// PixelSize returns the world size of a pixel edge, or an error when
	// pixels are not square and no override is possible.
	PixelSize() (float64, error)
	// ReadWindow reads the rectangle [x0:x0+w, y0:y0+h] clipped to the
	// raster bounds.
	ReadWindow(x0, y0, w, h int) (*Grid, error)
}

// NpySource serves windows out of a whole-raster npy file held in memory.
type NpySource struct {
	grid *Grid
}

// OpenNpy opens a 2-D int32 npy file as a raster source. The transform
// georeferences the full raster.
func OpenNpy(path string, transform Affine) (*NpySource, error) {
	g, err := ReadNpy(path, transform)
	if err != nil {
		return nil, err
	}
	return &NpySource{grid: g}, nil
}

// NewGridSource wraps an in-memory grid as a source. Used by tests and by
// callers that already decoded their raster.
func NewGridSource(g *Grid) *NpySource {
	return &NpySource{grid: g}
}

func (s *NpySource) Dims() (int, int) {
	return s.grid.Width, s.grid.Height
}

func (s *NpySource) Transform() Affine {
	return s.grid.Transform
}

func (s *NpySource) PixelSize() (float64, error) {
	t := s.grid.Transform
	// Square-pixel check on the transform's scale terms.
	sx := math.Hypot(t.A, t.D)
	sy := math.Hypot(t.B, t.E)
	if math.Abs(sx-sy) > 1e-10 {
		return 0, fmt.Errorf("pixels are not square (%g x %g)", sx, sy)
	}
	if sx == 0 {
		return 0, fmt.Errorf("cannot infer pixel size from transform")
	}
	return sx, nil
}

func (s *NpySource) ReadWindow(x0, y0, w, h int) (*Grid, error) {
	if x0 < 0 {
		w += x0
		x0 = 0
	}
	if y0 < 0 {
		h += y0
		y0 = 0
	}
	if x0+w > s.grid.Width {
		w = s.grid.Width - x0
	}
	if y0+h > s.grid.Height {
		h = s.grid.Height - y0
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("window [%d:%d %dx%d] outside raster", x0, y0, w, h)
	}
	return s.grid.SubGrid(x0, y0, w, h)
}
