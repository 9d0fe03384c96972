// Package geopolygonize converts a categorical geographic raster into
// simplified, smoothed vector polygons whose shared boundaries stay
// exactly coincident through simplification and smoothing.
package geopolygonize

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	log "github.com/sirupsen/logrus"

	"github.com/rainflame/geopolygonize/blobifier"
	"github.com/rainflame/geopolygonize/polygonize"
	"github.com/rainflame/geopolygonize/raster"
	"github.com/rainflame/geopolygonize/segmenter"
	"github.com/rainflame/geopolygonize/tiler"
	"github.com/rainflame/geopolygonize/vector"
)

// GeoPolygonizer runs the full pipeline: per-tile read, blob cleaning,
// polygonization, per-segment simplify and smooth, and the final stitch.
type GeoPolygonizer struct {
	params    Params
	source    raster.Source
	width     int
	height    int
	transform raster.Affine
	pixelSize float64
	bctx      *BuildContext
}

// New validates the parameters and opens the input raster. The built-in
// source reads npy rasters; use NewWithSource to plug in another raster
// backend.
func New(params Params) (*GeoPolygonizer, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	src, err := raster.OpenNpy(params.InputFile, raster.NorthUp(0, 0, 1))
	if err != nil {
		return nil, &InputError{Path: params.InputFile, Err: err}
	}
	return NewWithSource(params, src)
}

// NewWithSource validates the parameters against an already opened raster
// source.
func NewWithSource(params Params, source raster.Source) (*GeoPolygonizer, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	g := &GeoPolygonizer{
		params: params,
		source: source,
		bctx:   NewBuildContext(params.Debug),
	}
	g.width, g.height = source.Dims()
	g.transform = source.Transform()

	g.pixelSize = params.PixelSize
	if g.pixelSize == 0 {
		size, err := source.PixelSize()
		if err != nil {
			return nil, &ConfigError{
				Field:  "pixel-size",
				Reason: fmt.Sprintf("cannot infer pixel size from input (%v); set it explicitly", err),
			}
		}
		g.pixelSize = size
	}
	return g, nil
}

// BuildContext exposes the run's timers and buffered log.
func (g *GeoPolygonizer) BuildContext() *BuildContext { return g.bctx }

// Run executes the pipeline to completion and writes the output layer.
func (g *GeoPolygonizer) Run(ctx context.Context) error {
	total := g.bctx.StartTimer(TimerTotal)
	defer g.bctx.StopTimer(TimerTotal, total)

	steps := []tiler.Step{
		{
			Params: tiler.StepParameters{Name: "input", DataType: tiler.RasterType},
			Fn:     g.inputTile,
		},
	}
	if g.params.MinBlobSize > 0 {
		steps = append(steps, tiler.Step{
			Params: tiler.StepParameters{Name: "clean", DataType: tiler.RasterType, UsesRegion: true},
			Fn:     g.cleanTile,
		})
	}
	steps = append(steps,
		tiler.Step{
			Params: tiler.StepParameters{Name: "polygonize", DataType: tiler.VectorType},
			Fn:     g.polygonizeTile,
		},
		tiler.Step{
			Params: tiler.StepParameters{Name: "vectorize", DataType: tiler.VectorType},
			Fn:     g.vectorizeTile,
		},
	)

	pipeline, err := tiler.NewPipeline(steps, g.stitch, tiler.PipelineParameters{
		Width:     g.width,
		Height:    g.height,
		Transform: g.transform,
		TileSize:  g.params.TileSize,
		Workers:   g.params.Workers,
		WorkDir:   g.params.TileDir,
		Debug:     g.params.Debug,
		LabelName: g.params.LabelName,
	})
	if err != nil {
		return err
	}

	if err := pipeline.Run(ctx); err != nil {
		return err
	}
	if g.params.Debug {
		log.Infof("timers:\n%s", g.bctx.Summary())
	}
	return nil
}

// clipTile clips a nominal tile rectangle against the raster bounds.
func (g *GeoPolygonizer) clipTile(tile tiler.TileParameters) (x0, y0, w, h int) {
	x0 = maxi(tile.StartX, 0)
	y0 = maxi(tile.StartY, 0)
	x1 := mini(tile.StartX+tile.Width, g.width)
	y1 := mini(tile.StartY+tile.Height, g.height)
	return x0, y0, x1 - x0, y1 - y0
}

// inputTile reads the tile's window from the source raster.
func (g *GeoPolygonizer) inputTile(tile tiler.TileParameters, helper *tiler.StepHelper) error {
	t := g.bctx.StartTimer(TimerInput)
	defer g.bctx.StopTimer(TimerInput, t)

	x0, y0, w, h := g.clipTile(tile)
	if w <= 0 || h <= 0 {
		return nil
	}
	grid, err := g.source.ReadWindow(x0, y0, w, h)
	if err != nil {
		return &InputError{Path: g.params.InputFile, Err: err}
	}
	return helper.SaveCurrTile(tile, tiler.RasterPayload{Grid: grid})
}

// cleanTile blobifies the tile over a buffered region of the input so
// components crossing the tile edge are judged by their full size. The
// buffer of min_blob_size-1 pixels is exactly what a small component could
// reach across the boundary.
func (g *GeoPolygonizer) cleanTile(tile tiler.TileParameters, helper *tiler.StepHelper) error {
	t := g.bctx.StartTimer(TimerClean)
	defer g.bctx.StopTimer(TimerClean, t)

	buffer := g.params.MinBlobSize - 1
	bx0 := maxi(tile.StartX-buffer, 0)
	by0 := maxi(tile.StartY-buffer, 0)
	bx1 := mini(tile.StartX+tile.Width+buffer, g.width)
	by1 := mini(tile.StartY+tile.Height+buffer, g.height)
	region := tiler.TileParameters{
		StartX: bx0, StartY: by0,
		Width: bx1 - bx0, Height: by1 - by0,
	}
	if region.Width <= 0 || region.Height <= 0 {
		return nil
	}

	buffered, err := helper.GetPrevRegion(region)
	if err != nil {
		return err
	}

	cleaned, err := blobifier.New(buffered, g.params.MinBlobSize).Blobify()
	if err != nil {
		return err
	}

	x0, y0, w, h := g.clipTile(tile)
	sub, err := cleaned.SubGrid(x0-region.StartX, y0-region.StartY, w, h)
	if err != nil {
		return err
	}
	return helper.SaveCurrTile(tile, tiler.RasterPayload{Grid: sub})
}

// polygonizeTile traces the tile's label grid into labeled polygons.
func (g *GeoPolygonizer) polygonizeTile(tile tiler.TileParameters, helper *tiler.StepHelper) error {
	t := g.bctx.StartTimer(TimerPolygonize)
	defer g.bctx.StopTimer(TimerPolygonize, t)

	payload, ok, err := helper.GetPrevTile(tile)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	grid := payload.(tiler.RasterPayload).Grid
	fs := polygonize.Polygonize(grid)
	return helper.SaveCurrTile(tile, tiler.VectorPayload{FeatureSet: fs})
}

// vectorizeTile simplifies and smooths the tile's polygons through the
// segmenter, pinning the tile's outer border so stitching stays seamless.
func (g *GeoPolygonizer) vectorizeTile(tile tiler.TileParameters, helper *tiler.StepHelper) error {
	t := g.bctx.StartTimer(TimerVectorize)
	defer g.bctx.StopTimer(TimerVectorize, t)

	payload, ok, err := helper.GetPrevTile(tile)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	fs := payload.(tiler.VectorPayload).FeatureSet
	if fs.Len() == 0 {
		return helper.SaveCurrTile(tile, tiler.VectorPayload{FeatureSet: fs})
	}

	seg, err := segmenter.New(fs.Polygons(), fs.Labels(), true)
	if err != nil {
		return err
	}
	seg.RunPerSegment(g.simplifyFunc())
	seg.RunPerSegment(g.smoothFunc())

	result, err := seg.Result()
	if err != nil {
		var topo *segmenter.TopologyError
		if errors.As(err, &topo) && result != nil {
			// non-fatal: the pin is checked but not enforced
			g.bctx.Warningf("tile %s: %v", tile, topo)
			log.Warnf("tile %s: %v", tile, topo)
		} else {
			return err
		}
	}
	return helper.SaveCurrTile(tile, tiler.VectorPayload{FeatureSet: result})
}

// simplifyFunc builds the Douglas-Peucker per-segment operation with
// tolerance pixel_size * simplification_pixel_window. Ring-shaped
// segments are cut at their coordinate midpoint and simplified as two
// halves, because simplifying a closed loop directly may collapse it to a
// point.
func (g *GeoPolygonizer) simplifyFunc() segmenter.LineFunc {
	tolerance := g.pixelSize * g.params.SimplificationPixelWindow
	return func(line orb.LineString) orb.LineString {
		return simplifyLine(line, tolerance)
	}
}

// smoothFunc builds the Chaikin per-segment operation.
func (g *GeoPolygonizer) smoothFunc() segmenter.LineFunc {
	iterations := g.params.SmoothingIterations
	return func(line orb.LineString) orb.LineString {
		return ChaikinsCornerCutting(line, iterations)
	}
}

// stitch concatenates all final tiles and dissolves them by label: one
// output feature per distinct label, its geometry the union of every
// polygon carrying that label.
func (g *GeoPolygonizer) stitch(helper *tiler.StepHelper) error {
	t := g.bctx.StartTimer(TimerUnion)
	defer g.bctx.StopTimer(TimerUnion, t)

	byLabel := make(map[int32][]orb.Polygon)
	var order []int32
	err := helper.GetPrevTiles(func(_ tiler.TileParameters, payload tiler.Payload) error {
		fs := payload.(tiler.VectorPayload).FeatureSet
		for _, f := range fs.Features {
			if _, seen := byLabel[f.Label]; !seen {
				order = append(order, f.Label)
			}
			byLabel[f.Label] = append(byLabel[f.Label], f.Polygon)
		}
		return nil
	})
	if err != nil {
		return err
	}

	unions := make([]vector.MultiFeature, 0, len(order))
	for _, label := range order {
		unions = append(unions, vector.MultiFeature{
			Geometry: vector.Union(byLabel[label]),
			Label:    label,
		})
	}
	log.Infof("writing %d features to %s", len(unions), g.params.OutputFile)
	return vector.WriteShpMulti(g.params.OutputFile, unions, g.params.LabelName)
}

func mini(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxi(a, b int) int {
	if a > b {
		return a
	}
	return b
}
