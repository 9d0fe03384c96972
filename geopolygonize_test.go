package geopolygonize

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainflame/geopolygonize/raster"
	"github.com/rainflame/geopolygonize/vector"
)

func TestChaikinPreservesEndpoints(t *testing.T) {
	line := orb.LineString{{0, 0}, {1, 2}, {3, 1}, {4, 4}}
	for _, refinements := range []int{0, 1, 3, 5} {
		smoothed := ChaikinsCornerCutting(line, refinements)
		assert.Equal(t, line[0], smoothed[0], "refinements=%d", refinements)
		assert.Equal(t, line[len(line)-1], smoothed[len(smoothed)-1], "refinements=%d", refinements)
	}
}

func TestChaikinCutsCorners(t *testing.T) {
	line := orb.LineString{{0, 0}, {1, 0}, {1, 1}}
	smoothed := ChaikinsCornerCutting(line, 1)
	// the corner vertex itself must be gone
	for _, p := range smoothed {
		assert.NotEqual(t, orb.Point{1, 0}, p)
	}
	// quarter points of each edge must be present
	assert.Contains(t, smoothed, orb.Point{0.75, 0})
	assert.Contains(t, smoothed, orb.Point{1, 0.25})
}

func TestSimplifyPreservesEndpoints(t *testing.T) {
	line := orb.LineString{{0, 0}, {1, 0.001}, {2, 0}, {3, 0.001}, {4, 0}}
	simplified := simplifyLine(line, 0.5)
	require.True(t, len(simplified) >= 2)
	assert.Equal(t, line[0], simplified[0])
	assert.Equal(t, line[len(line)-1], simplified[len(simplified)-1])
}

func TestSimplifyRingDoesNotCollapse(t *testing.T) {
	ring := orb.LineString{
		{0, 0}, {1, 0}, {2, 0}, {2, 1}, {2, 2}, {1, 2}, {0, 2}, {0, 1}, {0, 0},
	}
	simplified := simplifyLine(ring, 10)
	// a closed segment is simplified as two halves split at coordinate
	// index 4, so the far corner survives and the ring keeps positive extent
	assert.Equal(t, orb.LineString{{0, 0}, {2, 2}, {0, 0}}, simplified, "ring collapsed to %v", simplified)
	assert.Equal(t, simplified[0], simplified[len(simplified)-1])
}

func uniformGrid(width, height int, v int32) *raster.Grid {
	g := raster.NewGrid(width, height, raster.NorthUp(0, 0, 1))
	g.Fill(v)
	return g
}

func runPipeline(t *testing.T, g *raster.Grid, mutate func(*Params)) *vector.FeatureSet {
	t.Helper()
	params := DefaultParams()
	params.InputFile = "in-memory"
	params.OutputFile = filepath.Join(t.TempDir(), "out.shp")
	params.Workers = 1
	if mutate != nil {
		mutate(&params)
	}

	gp, err := NewWithSource(params, raster.NewGridSource(g))
	require.NoError(t, err)
	require.NoError(t, gp.Run(context.Background()))

	fs, err := vector.ReadShp(params.OutputFile)
	require.NoError(t, err)
	return fs
}

func TestRunSinglePixelClassFilled(t *testing.T) {
	// 5x5 of label 3 with one pixel of label 7; min blob size 2 absorbs
	// the single pixel
	g := uniformGrid(5, 5, 3)
	g.Set(2, 2, 7)

	fs := runPipeline(t, g, func(p *Params) {
		p.MinBlobSize = 2
	})

	require.Equal(t, 1, fs.Len())
	assert.Equal(t, int32(3), fs.Features[0].Label)
	assert.InDelta(t, 25, planar.Area(fs.Features[0].Polygon), 1e-9)
}

func TestRunTileSeamDissolves(t *testing.T) {
	// uniform 20x20 over four tiles dissolves back into one feature
	g := uniformGrid(20, 20, 5)

	fs := runPipeline(t, g, func(p *Params) {
		p.MinBlobSize = 0 // cleaning disabled
		p.TileSize = 10
	})

	require.Equal(t, 1, fs.Len())
	assert.Equal(t, int32(5), fs.Features[0].Label)

	total := 0.0
	for _, f := range fs.Features {
		total += planar.Area(f.Polygon)
	}
	assert.InDelta(t, 400, total, 1e-9)
}

func TestRunLShape(t *testing.T) {
	// an L of label 2 carved into a field of label 1
	g := uniformGrid(10, 10, 1)
	for x := 2; x < 8; x++ {
		g.Set(x, 2, 2)
	}
	for y := 2; y < 8; y++ {
		g.Set(7, y, 2)
	}

	fs := runPipeline(t, g, func(p *Params) {
		p.MinBlobSize = 3
		// tolerance 0 keeps the exact outline, so areas are checkable
		p.SimplificationPixelWindow = 0
	})

	labels := make(map[int32]float64)
	for _, f := range fs.Features {
		labels[f.Label] += planar.Area(f.Polygon)
	}
	require.Len(t, labels, 2)
	assert.InDelta(t, 100, labels[1]+labels[2], 1e-9)
	assert.InDelta(t, 11, labels[2], 1e-9) // 6 + 6 - 1 shared pixel
}

func TestRunSmallHolePreservation(t *testing.T) {
	build := func() *raster.Grid {
		g := uniformGrid(10, 10, 1)
		for x := 3; x < 6; x++ {
			for y := 3; y < 6; y++ {
				g.Set(x, y, 9)
			}
		}
		return g
	}

	// at the threshold the 3x3 hole survives
	fs := runPipeline(t, build(), func(p *Params) {
		p.MinBlobSize = 9
		p.SimplificationPixelWindow = 0
	})
	labels := make(map[int32]bool)
	for _, f := range fs.Features {
		labels[f.Label] = true
	}
	assert.True(t, labels[9], "label 9 should survive min blob size 9")

	// one past the threshold it is absorbed
	fs = runPipeline(t, build(), func(p *Params) {
		p.MinBlobSize = 10
		p.SimplificationPixelWindow = 0
	})
	for _, f := range fs.Features {
		assert.NotEqual(t, int32(9), f.Label, "label 9 should be absorbed")
	}
}

func TestRunIdempotentResume(t *testing.T) {
	g := uniformGrid(12, 12, 4)
	tileDir := t.TempDir()
	out1 := filepath.Join(t.TempDir(), "out.shp")
	out2 := filepath.Join(t.TempDir(), "out.shp")

	run := func(out string) *vector.FeatureSet {
		params := DefaultParams()
		params.InputFile = "in-memory"
		params.OutputFile = out
		params.Workers = 1
		params.TileSize = 6
		params.TileDir = tileDir
		params.Debug = true // keep tiles on disk between runs

		gp, err := NewWithSource(params, raster.NewGridSource(g))
		require.NoError(t, err)
		require.NoError(t, gp.Run(context.Background()))

		fs, err := vector.ReadShp(out)
		require.NoError(t, err)
		return fs
	}

	first := run(out1)
	second := run(out2) // resumes from the fully populated tile dir

	require.Equal(t, first.Len(), second.Len())
	for i := range first.Features {
		assert.Equal(t, first.Features[i].Label, second.Features[i].Label)
		assert.InDelta(t,
			planar.Area(first.Features[i].Polygon),
			planar.Area(second.Features[i].Polygon), 1e-9)
	}
}

func TestParamsValidate(t *testing.T) {
	ttable := []struct {
		name   string
		mutate func(*Params)
		ok     bool
	}{
		{"defaults with paths", func(p *Params) {}, true},
		{"missing input", func(p *Params) { p.InputFile = "" }, false},
		{"missing output", func(p *Params) { p.OutputFile = "" }, false},
		{"negative blob size", func(p *Params) { p.MinBlobSize = -1 }, false},
		{"negative workers", func(p *Params) { p.Workers = -1 }, false},
		{"negative smoothing", func(p *Params) { p.SmoothingIterations = -2 }, false},
	}
	for _, tt := range ttable {
		params := DefaultParams()
		params.InputFile = "in.npy"
		params.OutputFile = "out.shp"
		tt.mutate(&params)
		err := params.Validate()
		if tt.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tt.name, err)
		}
		if !tt.ok {
			if err == nil {
				t.Fatalf("%s: expected an error", tt.name)
			}
			if !IsConfigError(err) {
				t.Fatalf("%s: %v is not a config error", tt.name, err)
			}
		}
	}
}
