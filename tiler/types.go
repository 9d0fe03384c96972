// Package tiler runs a sequence of named steps over a fixed tile grid,
// caching each (step, tile) artifact in a tile store so later steps can
// fetch tile-local and buffered-region views of prior stage output.
package tiler

import (
	"fmt"

	"github.com/rainflame/geopolygonize/raster"
	"github.com/rainflame/geopolygonize/vector"
)

// TileParameters identifies one tile of the fixed grid by its pixel-space
// rectangle. x runs along raster rows, y along columns.
type TileParameters struct {
	StartX int
	StartY int
	Width  int
	Height int
}

func (t TileParameters) String() string {
	return fmt.Sprintf("[%d:%d] (%d,%d)", t.StartX, t.StartY, t.Width, t.Height)
}

// DataType is the payload type a step declares for its output.
type DataType int

const (
	// RasterType marks steps whose tiles are label grids.
	RasterType DataType = iota
	// VectorType marks steps whose tiles are polygon feature sets.
	VectorType
)

func (d DataType) String() string {
	if d == RasterType {
		return "raster"
	}
	return "vector"
}

// Ext returns the file extension of persisted artifacts of this type.
func (d DataType) Ext() string {
	if d == RasterType {
		return "npy"
	}
	return "shp"
}

// Payload is one stored artifact: a grid or a feature set.
type Payload interface {
	Type() DataType
}

// RasterPayload wraps a grid as a step artifact.
type RasterPayload struct {
	*raster.Grid
}

func (RasterPayload) Type() DataType { return RasterType }

// VectorPayload wraps a feature set as a step artifact.
type VectorPayload struct {
	*vector.FeatureSet
}

func (VectorPayload) Type() DataType { return VectorType }

// StepParameters names a pipeline stage and declares its output type.
// UsesRegion must be set when the step's function calls GetPrevRegion;
// it keeps such steps out of the independent execution mode.
type StepParameters struct {
	Name       string
	DataType   DataType
	UsesRegion bool
}

func (s StepParameters) String() string { return s.Name }

// StepFunc processes one tile. The helper is bound to this step: it reads
// the previous step's tiles and regions and saves this step's output.
type StepFunc func(tile TileParameters, helper *StepHelper) error

// UnionFunc folds all final tiles into the run's output once every step
// completed. Its failure is fatal to the run.
type UnionFunc func(helper *StepHelper) error

// Step pairs a step's parameters with its function.
type Step struct {
	Params StepParameters
	Fn     StepFunc
}

// PipelineParameters configures one run.
type PipelineParameters struct {
	// Width and Height are the raster extent in pixels.
	Width  int
	Height int
	// Transform georeferences pixel (0,0) of the full raster.
	Transform raster.Affine
	// TileSize is the tile edge in pixels; 0 auto-picks from the raster
	// size and worker count.
	TileSize int
	// Workers is the worker count; 0 means all CPUs.
	Workers int
	// WorkDir is the artifact directory; empty means an ephemeral
	// temporary directory.
	WorkDir string
	// LogDir receives the per-worker fault logs; empty means a
	// temporary directory.
	LogDir string
	// Debug forces the disk store and keeps the working directory.
	Debug bool
	// LabelName is the attribute name vector tiles are written with.
	LabelName string
}
